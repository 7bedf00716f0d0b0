// executor.go
// -----------
// The RequestExecutor orchestrates one call: build, adapt, send, validate,
// decode, with a bounded retry loop in the middle. Build errors are
// deterministic and surface immediately; transient failures consult the
// interceptor's decision table; decoding failures are never retried. Every
// terminal failure is one of the closed taxonomy kinds.
package httpbridge

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

// RequestExecutor executes endpoints against a transport.
type RequestExecutor struct {
	builder     *RequestBuilder
	interceptor Interceptor
	validator   *ResponseValidator
	transport   Transport
	rateLimiter *RateLimiter
	cfg         Config
	logger      zerolog.Logger
}

// NewRequestExecutor wires an executor from its collaborators. transport and
// interceptor are required; cfg may be nil for defaults.
func NewRequestExecutor(transport Transport, interceptor Interceptor, cfg *Config) *RequestExecutor {
	c := cfg.withDefaults()
	return &RequestExecutor{
		builder:     NewRequestBuilder(c.Logger, c.MaxPayloadLogBytes),
		interceptor: interceptor,
		validator:   NewResponseValidator(),
		transport:   transport,
		rateLimiter: NewRateLimiter(),
		cfg:         c,
		logger:      c.Logger,
	}
}

// Execute runs the full pipeline for one endpoint and returns the validated
// raw response. Use the package-level Execute for typed decoding.
func (e *RequestExecutor) Execute(ctx context.Context, endpoint Endpoint) (*Response, error) {
	built, err := e.builder.Build(endpoint)
	if err != nil {
		e.logError(endpoint, err)
		return nil, err
	}

	limit := endpoint.retryLimit()
	if e.cfg.RetryLimit < limit {
		limit = e.cfg.RetryLimit
	}
	state := NewRetryState(limit)
	host := hostOf(built.URL)

	var lastErr error
	waited := false
	for {
		if err := ctx.Err(); err != nil {
			return nil, wrapError(ErrCancelled, err)
		}

		// Re-adapt every attempt so a token refreshed mid-call is picked up.
		adapted := e.interceptor.Adapt(ctx, built)

		// An attempt that already slept on the interceptor's delay skips the
		// rate limit check; waiting again on the same advertised window would
		// double the pause.
		if wait := e.rateLimiter.Delay(host); wait > 0 && !waited {
			e.logger.Debug().Str("host", host).Dur("wait", wait).Msg("rate limit window exhausted, waiting")
			if err := e.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		resp, sendErr := e.transport.Send(ctx, adapted)
		if sendErr != nil {
			// Per-request timeouts surface as transient transport errors; only
			// the caller's own cancellation turns into a Cancelled outcome.
			if ctx.Err() != nil {
				return nil, wrapError(ErrCancelled, sendErr)
			}
			lastErr = wrapError(ErrNetworkFailure, sendErr)
			retry, delay := e.interceptor.ShouldRetry(ctx, adapted, nil, sendErr, state)
			if !retry {
				e.logError(endpoint, lastErr)
				return nil, lastErr
			}
			if err := e.sleep(ctx, delay); err != nil {
				return nil, err
			}
			waited = delay > 0
			continue
		}

		e.rateLimiter.Observe(host, resp)

		verr := e.validator.Validate(resp)
		if verr == nil {
			e.logResponse(endpoint, resp, state)
			return resp, nil
		}

		lastErr = verr
		retry, delay := e.interceptor.ShouldRetry(ctx, adapted, resp, nil, state)
		if !retry {
			e.logError(endpoint, verr)
			return nil, verr
		}
		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
		waited = delay > 0
	}
}

// Execute runs an endpoint through the executor and decodes the response body
// into T. Decoding uses the pipeline codec: snake_case keys map onto exported
// fields and ISO-8601 timestamps parse into time.Time.
func Execute[T any](ctx context.Context, e *RequestExecutor, endpoint Endpoint) (T, error) {
	var out T
	resp, err := e.Execute(ctx, endpoint)
	if err != nil {
		return out, err
	}
	if err := decodeInto(resp.Body, &out); err != nil {
		var zero T
		e.logError(endpoint, err)
		return zero, err
	}
	return out, nil
}

// ExecuteNoContent runs an endpoint whose response body, if any, is ignored.
func ExecuteNoContent(ctx context.Context, e *RequestExecutor, endpoint Endpoint) error {
	_, err := e.Execute(ctx, endpoint)
	return err
}

// sleep waits out a retry or rate-limit delay, returning a Cancelled error as
// soon as the context is done.
func (e *RequestExecutor) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return wrapError(ErrCancelled, err)
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return wrapError(ErrCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}

func (e *RequestExecutor) logResponse(endpoint Endpoint, resp *Response, state *RetryState) {
	ev := e.logger.Debug()
	if !ev.Enabled() || endpoint.LoggingDisabled {
		return
	}
	ev = ev.Str("path", endpoint.Path).
		Int("status", resp.StatusCode).
		Int("retries", state.Attempts())
	if len(resp.Body) > 0 {
		ev = ev.Str("body", prettyPayload(resp.Body, e.cfg.MaxPayloadLogBytes))
	}
	ev.Msg("request succeeded")
}

func (e *RequestExecutor) logError(endpoint Endpoint, err error) {
	if endpoint.LoggingDisabled {
		return
	}
	e.logger.Debug().Err(err).Str("path", endpoint.Path).Msg("request failed")
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
