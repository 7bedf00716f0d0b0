// body.go
// -------
// Body is a tagged JSON value: string, number, bool, array, object, or null.
// Request payloads are expressed with it instead of raw interface{} values so
// serialization rules stay explicit and non-JSON values are rejected at build
// time rather than at the wire.
package httpbridge

import (
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

// BodyKind discriminates the variants of a Body.
type BodyKind int

const (
	KindNull BodyKind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

// Body holds one JSON value. The zero value is JSON null.
type Body struct {
	kind BodyKind
	str  string
	num  float64
	b    bool
	arr  []*Body
	obj  map[string]*Body
}

// Null returns the JSON null value.
func Null() *Body { return &Body{kind: KindNull} }

// String returns a JSON string value.
func String(s string) *Body { return &Body{kind: KindString, str: s} }

// Number returns a JSON number value.
func Number(n float64) *Body { return &Body{kind: KindNumber, num: n} }

// Bool returns a JSON boolean value.
func Bool(v bool) *Body { return &Body{kind: KindBool, b: v} }

// Array returns a JSON array of the given elements.
func Array(elems ...*Body) *Body { return &Body{kind: KindArray, arr: elems} }

// Object returns an empty JSON object. Use Set to populate it.
func Object() *Body { return &Body{kind: KindObject, obj: map[string]*Body{}} }

// ObjectOf builds a JSON object from alternating key, value pairs, where each
// value must be a *Body, string, float64, int, bool, or nil.
func ObjectOf(pairs ...any) (*Body, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("object literal needs key/value pairs, got %d items", len(pairs))
	}
	o := Object()
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("object key at position %d is %T, want string", i, pairs[i])
		}
		val, err := valueOf(pairs[i+1])
		if err != nil {
			return nil, fmt.Errorf("object value for %q: %w", key, err)
		}
		o.obj[key] = val
	}
	return o, nil
}

func valueOf(v any) (*Body, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case *Body:
		if t == nil {
			return Null(), nil
		}
		return t, nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case int:
		return Number(float64(t)), nil
	case bool:
		return Bool(t), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// Set assigns a key on an object body and returns the body for chaining. It is
// a no-op on non-object bodies.
func (b *Body) Set(key string, val *Body) *Body {
	if b.kind == KindObject {
		if val == nil {
			val = Null()
		}
		b.obj[key] = val
	}
	return b
}

// Kind reports the variant held by the body.
func (b *Body) Kind() BodyKind {
	if b == nil {
		return KindNull
	}
	return b.kind
}

// MarshalJSON serializes the value. Object keys are emitted in sorted order so
// encoding is deterministic.
func (b *Body) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	switch b.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return jsoniter.Marshal(b.str)
	case KindNumber:
		return jsoniter.Marshal(b.num)
	case KindBool:
		return jsoniter.Marshal(b.b)
	case KindArray:
		out := []byte{'['}
		for i, el := range b.arr {
			enc, err := el.MarshalJSON()
			if err != nil {
				return nil, err
			}
			if i > 0 {
				out = append(out, ',')
			}
			out = append(out, enc...)
		}
		return append(out, ']'), nil
	case KindObject:
		keys := make([]string, 0, len(b.obj))
		for k := range b.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := []byte{'{'}
		for i, k := range keys {
			enc, err := b.obj[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			if i > 0 {
				out = append(out, ',')
			}
			keyEnc, err := jsoniter.Marshal(k)
			if err != nil {
				return nil, err
			}
			out = append(out, keyEnc...)
			out = append(out, ':')
			out = append(out, enc...)
		}
		return append(out, '}'), nil
	default:
		return nil, fmt.Errorf("unknown body kind %d", b.kind)
	}
}

// UnmarshalJSON parses arbitrary JSON into the tagged form.
func (b *Body) UnmarshalJSON(data []byte) error {
	var raw any
	if err := jsoniter.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := fromAny(raw)
	if err != nil {
		return err
	}
	*b = *parsed
	return nil
}

func fromAny(v any) (*Body, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case bool:
		return Bool(t), nil
	case []any:
		arr := make([]*Body, 0, len(t))
		for _, el := range t {
			parsed, err := fromAny(el)
			if err != nil {
				return nil, err
			}
			arr = append(arr, parsed)
		}
		return Array(arr...), nil
	case map[string]any:
		o := Object()
		for k, el := range t {
			parsed, err := fromAny(el)
			if err != nil {
				return nil, err
			}
			o.obj[k] = parsed
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unsupported JSON value type %T", v)
	}
}

// StringValue returns the string payload; ok is false for other kinds.
func (b *Body) StringValue() (string, bool) {
	if b == nil || b.kind != KindString {
		return "", false
	}
	return b.str, true
}

// NumberValue returns the numeric payload; ok is false for other kinds.
func (b *Body) NumberValue() (float64, bool) {
	if b == nil || b.kind != KindNumber {
		return 0, false
	}
	return b.num, true
}

// BoolValue returns the boolean payload; ok is false for other kinds.
func (b *Body) BoolValue() (bool, bool) {
	if b == nil || b.kind != KindBool {
		return false, false
	}
	return b.b, true
}

// Get returns the value under key on an object body.
func (b *Body) Get(key string) (*Body, bool) {
	if b == nil || b.kind != KindObject {
		return nil, false
	}
	v, ok := b.obj[key]
	return v, ok
}

// Items returns the elements of an array body.
func (b *Body) Items() []*Body {
	if b == nil || b.kind != KindArray {
		return nil
	}
	return b.arr
}
