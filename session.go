// session.go
// ----------
// The Session holds the caller's current access/refresh token pair. The pair
// is set and cleared together: a refresh either fully succeeds or leaves the
// session empty, never half-updated. Persistence across process restarts is a
// collaborator's job, reached through the TokenStore capability; the session
// itself only mirrors the pair in memory.
package httpbridge

import (
	"context"
	"sync"
)

// TokenStore persists a token pair across process restarts.
type TokenStore interface {
	Load() (accessToken, refreshToken string, err error)
	Save(accessToken, refreshToken string) error
	Clear() error
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (newAccessToken string, err error)
}

// Session is safe for concurrent use.
type Session struct {
	mu      sync.RWMutex
	access  string
	refresh string
	store   TokenStore
}

// NewSession returns an empty session. When store is non-nil the persisted
// pair, if any, is loaded eagerly; a load failure leaves the session empty
// rather than failing construction.
func NewSession(store TokenStore) *Session {
	s := &Session{store: store}
	if store != nil {
		if access, refresh, err := store.Load(); err == nil && access != "" && refresh != "" {
			s.access = access
			s.refresh = refresh
		}
	}
	return s
}

// AccessToken returns the current access token, or "" when signed out.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

// RefreshToken returns the current refresh token, or "" when signed out.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

// SetTokens installs a new pair. Both tokens must be non-empty; passing an
// empty token is treated as Clear so the pair invariant holds.
func (s *Session) SetTokens(accessToken, refreshToken string) error {
	if accessToken == "" || refreshToken == "" {
		return s.Clear()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = accessToken
	s.refresh = refreshToken
	if s.store != nil {
		return s.store.Save(accessToken, refreshToken)
	}
	return nil
}

// Clear removes both tokens from memory and from the backing store.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
	if s.store != nil {
		return s.store.Clear()
	}
	return nil
}

// Authenticated reports whether a full token pair is present.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access != "" && s.refresh != ""
}
