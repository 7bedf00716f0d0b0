// interceptor.go
// --------------
// The interceptor adapts outgoing requests (auth header injection) and owns
// the retry decision table, including the 401 token-refresh sub-protocol.
// Session mutation (storing a refreshed token, clearing a dead session) is a
// side effect of this component, not the executor.
package httpbridge

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Interceptor adapts requests before sending and decides retry eligibility
// after a failed attempt. Exactly one of resp and sendErr is set: resp when an
// HTTP response arrived but failed validation, sendErr when the send itself
// failed. A true result carries the delay to wait before the next attempt.
type Interceptor interface {
	Adapt(ctx context.Context, req *Request) *Request
	ShouldRetry(ctx context.Context, req *Request, resp *Response, sendErr error, state *RetryState) (retry bool, delay time.Duration)
}

// RetryState is the per-call retry bookkeeping. It is reset for every
// top-level call and never shared across calls.
type RetryState struct {
	attempts  int
	limit     int
	refreshed bool
}

// NewRetryState returns a fresh state with the given transient-retry budget.
func NewRetryState(limit int) *RetryState {
	return &RetryState{limit: limit}
}

// Attempts reports how many transient retries have been consumed.
func (s *RetryState) Attempts() int { return s.attempts }

// Exhausted reports whether the transient-retry budget is spent.
func (s *RetryState) Exhausted() bool { return s.attempts >= s.limit }

// retriableStatuses are the transient HTTP statuses worth another attempt.
var retriableStatuses = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// AuthInterceptor is the default interceptor: it stamps Content-Type and a
// bearer token from the session, and refreshes the token once per call on 401.
type AuthInterceptor struct {
	session   *Session
	refresher Refresher
	cfg       Config
	logger    zerolog.Logger

	// refreshGroup collapses concurrent refresh attempts into one call; the
	// losers wait for and share the winner's outcome.
	refreshGroup singleflight.Group
}

// NewAuthInterceptor builds the default interceptor. refresher may be nil for
// unauthenticated APIs; a 401 then simply clears the session.
func NewAuthInterceptor(session *Session, refresher Refresher, cfg *Config) *AuthInterceptor {
	c := cfg.withDefaults()
	return &AuthInterceptor{
		session:   session,
		refresher: refresher,
		cfg:       c,
		logger:    c.Logger,
	}
}

// Adapt stamps the JSON content type and, when the session holds an access
// token, the Authorization header. Prior values for both headers are
// overwritten. Adapt never fails.
func (i *AuthInterceptor) Adapt(_ context.Context, req *Request) *Request {
	out := req.Clone()
	out.Headers["Content-Type"] = "application/json"
	if token := i.session.AccessToken(); token != "" {
		out.Headers["Authorization"] = "Bearer " + token
	}
	return out
}

// ShouldRetry walks the decision table in order, stopping at the first match:
// exhausted budget, 401 refresh sub-protocol, transient status, transient
// transport failure, otherwise no retry.
func (i *AuthInterceptor) ShouldRetry(ctx context.Context, req *Request, resp *Response, sendErr error, state *RetryState) (bool, time.Duration) {
	if state.Exhausted() {
		return false, 0
	}

	if resp != nil && resp.StatusCode == 401 {
		return i.retryAfterRefresh(ctx, req, state), 0
	}

	if resp != nil {
		if !retriableStatuses[resp.StatusCode] {
			return false, 0
		}
		delay := i.cfg.delayFor(state.attempts)
		if wait := retryAfterHint(resp); wait > delay {
			delay = wait
		}
		state.attempts++
		i.logger.Debug().
			Int("status", resp.StatusCode).
			Int("attempt", state.attempts).
			Dur("delay", delay).
			Str("url", req.URL).
			Msg("transient status, retrying")
		return true, delay
	}

	var te *TransportError
	if errors.As(sendErr, &te) && te.Transient() {
		delay := i.cfg.delayFor(state.attempts)
		state.attempts++
		i.logger.Debug().
			Err(sendErr).
			Int("attempt", state.attempts).
			Dur("delay", delay).
			Str("url", req.URL).
			Msg("transient transport failure, retrying")
		return true, delay
	}

	return false, 0
}

// retryAfterRefresh runs the token-refresh sub-protocol. A successful refresh
// grants one retry per call that does not touch the transient budget; any
// failure clears the session so the caller sees a clean signed-out state.
func (i *AuthInterceptor) retryAfterRefresh(ctx context.Context, req *Request, state *RetryState) bool {
	if state.refreshed {
		// A second 401 after a successful refresh means the new token is no
		// better than the old one.
		i.logger.Debug().Str("url", req.URL).Msg("401 after refresh, clearing session")
		if err := i.session.Clear(); err != nil {
			i.logger.Warn().Err(err).Msg("session clear failed")
		}
		return false
	}

	refreshToken := i.session.RefreshToken()
	if refreshToken == "" || i.refresher == nil {
		i.logger.Debug().Str("url", req.URL).Msg("401 without refresh token, clearing session")
		if err := i.session.Clear(); err != nil {
			i.logger.Warn().Err(err).Msg("session clear failed")
		}
		return false
	}

	_, err, shared := i.refreshGroup.Do("token-refresh", func() (any, error) {
		newAccess, err := i.refresher.RefreshAccessToken(ctx, refreshToken)
		if err != nil {
			return nil, err
		}
		// The refresh token stays; only the access token rotates.
		return newAccess, i.session.SetTokens(newAccess, refreshToken)
	})
	if err != nil {
		i.logger.Debug().Err(err).Bool("shared", shared).Msg("token refresh failed, clearing session")
		if cerr := i.session.Clear(); cerr != nil {
			i.logger.Warn().Err(cerr).Msg("session clear failed")
		}
		return false
	}
	state.refreshed = true
	i.logger.Debug().Bool("shared", shared).Msg("token refreshed, retrying request")
	return true
}

// retryAfterHint extracts a server-advertised wait from the response, if any.
func retryAfterHint(resp *Response) time.Duration {
	return retryAfterFromHeaders(resp, time.Now())
}
