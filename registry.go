// registry.go
// -----------
// A minimal keyed singleton map for wiring implementations to consumers.
// Values register under an explicit string key or, when none is given, under
// their concrete type identity. Resolution of a missing key is an ordinary
// error, never a panic; callers decide whether to fall back or propagate.
package httpbridge

import (
	"fmt"
	"reflect"
	"sync"
)

// ErrDependencyNotFound is returned when no value is registered under a key.
type ErrDependencyNotFound struct {
	Key string
}

func (e *ErrDependencyNotFound) Error() string {
	return fmt.Sprintf("no dependency registered for %q", e.Key)
}

// Registry is a concurrency-safe singleton map.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]any)}
}

// Register stores value under key, or under the value's type identity when no
// key is given. Registering the same key twice replaces the earlier value.
func (r *Registry) Register(value any, key ...string) {
	k := keyFor(value, key...)
	r.mu.Lock()
	r.entries[k] = value
	r.mu.Unlock()
}

// Resolve returns the value registered under key.
func (r *Registry) Resolve(key string) (any, error) {
	r.mu.RLock()
	v, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return nil, &ErrDependencyNotFound{Key: key}
	}
	return v, nil
}

// ResolveAs resolves a value by type identity, or by key when one is given,
// and asserts it to T.
func ResolveAs[T any](r *Registry, key ...string) (T, error) {
	var zero T
	k := ""
	if len(key) > 0 && key[0] != "" {
		k = key[0]
	} else {
		k = typeKey(reflect.TypeOf(&zero).Elem())
	}
	v, err := r.Resolve(k)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("dependency under %q is %T, want %s", k, v, typeKey(reflect.TypeOf(&zero).Elem()))
	}
	return typed, nil
}

func keyFor(value any, key ...string) string {
	if len(key) > 0 && key[0] != "" {
		return key[0]
	}
	return typeKey(reflect.TypeOf(value))
}

func typeKey(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
