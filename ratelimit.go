// ratelimit.go
// ------------
// Tracks server-advertised rate limits per host so the executor can wait out
// an exhausted window instead of burning attempts on guaranteed 429s. The
// tracker is fed from standard response headers (X-RateLimit-Limit,
// X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After); hosts that never
// advertise limits are never delayed.
package httpbridge

import (
	"strconv"
	"sync"
	"time"

	"github.com/clearroute/httpbridge/internal/timeutil"
)

// RateLimitInfo is the last advertised window for one host.
type RateLimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter stores rate limit state keyed by host.
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*RateLimitInfo
	now    func() time.Time
}

// NewRateLimiter returns an empty tracker.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		limits: make(map[string]*RateLimitInfo),
		now:    time.Now,
	}
}

// Observe records the rate limit headers of a response for the given host.
// Headers merge into the stored record field by field, so a response carrying
// only some of them never wipes what an earlier response advertised.
// Responses without rate limit headers leave the stored state untouched,
// except that a 429 with only Retry-After still records a zero-remaining
// window ending at the advertised time.
func (r *RateLimiter) Observe(host string, resp *Response) {
	if resp == nil || host == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	info := r.limits[host]
	if info == nil {
		info = &RateLimitInfo{Remaining: -1}
	}

	seen := false
	resetSeen := false
	if v := resp.Header("x-ratelimit-limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			info.Limit = n
			seen = true
		}
	}
	if v := resp.Header("x-ratelimit-remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			info.Remaining = n
			seen = true
		}
	}
	if v := resp.Header("x-ratelimit-reset"); v != "" {
		if at, ok := timeutil.ParseResetEpoch(v); ok {
			info.ResetAt = at
			seen = true
			resetSeen = true
		}
	}

	if resp.StatusCode == 429 {
		info.Remaining = 0
		seen = true
		if !resetSeen {
			if wait := retryAfterFromHeaders(resp, r.now()); wait > 0 {
				info.ResetAt = r.now().Add(wait)
			}
		}
	}

	if !seen {
		return
	}
	r.limits[host] = info
}

// Delay reports how long a request to host must wait before proceeding. Zero
// means the request may go out now.
func (r *RateLimiter) Delay(host string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.limits[host]
	if !ok || info == nil {
		return 0
	}
	if info.Remaining != 0 || info.ResetAt.IsZero() {
		return 0
	}
	if wait := info.ResetAt.Sub(r.now()); wait > 0 {
		return wait
	}
	// Window passed; forget the stale state.
	delete(r.limits, host)
	return 0
}

// Info returns a copy of the stored state for a host, for introspection.
func (r *RateLimiter) Info(host string) *RateLimitInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.limits[host]; ok && info != nil {
		dup := *info
		return &dup
	}
	return nil
}

// retryAfterFromHeaders reads the Retry-After header of a response.
func retryAfterFromHeaders(resp *Response, now time.Time) time.Duration {
	if resp == nil {
		return 0
	}
	return timeutil.ParseRetryAfter(resp.Header("retry-after"), now)
}
