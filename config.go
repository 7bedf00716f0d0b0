// config.go
// ---------
// Config carries the client-wide knobs: the global retry ceiling, the retry
// delay shape, and logging. Per-endpoint settings (timeout, retry limit,
// payload logging) live on the Endpoint; the effective retry budget of a call
// is min(endpoint limit, config limit).
package httpbridge

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultRetryDelay is the fixed wait between retriable attempts.
	DefaultRetryDelay = time.Second
	// MaxRetryDelay caps the exponential backoff growth.
	MaxRetryDelay = 30 * time.Second
	// DefaultMaxPayloadLogBytes caps how much of a body the logger emits.
	DefaultMaxPayloadLogBytes = 2048
)

// Config holds client-wide settings.
type Config struct {
	// RetryLimit is the global ceiling on retries per call. Zero means
	// DefaultRetryLimit; NoRetry disables retries client-wide.
	RetryLimit int
	// RetryDelay is the wait before a retriable attempt. Zero means
	// DefaultRetryDelay.
	RetryDelay time.Duration
	// ExponentialBackoff doubles the delay per attempt, capped at
	// MaxRetryDelay, instead of waiting a fixed RetryDelay.
	ExponentialBackoff bool
	// MaxPayloadLogBytes caps logged body sizes. Zero means the default.
	MaxPayloadLogBytes int
	// Logger receives structured request/response/error events. The zero
	// value logs nowhere.
	Logger zerolog.Logger
}

func (c *Config) withDefaults() Config {
	out := Config{Logger: zerolog.Nop()}
	if c != nil {
		out = *c
	}
	if out.RetryLimit < 0 {
		out.RetryLimit = 0
	} else if out.RetryLimit == 0 {
		out.RetryLimit = DefaultRetryLimit
	}
	if out.RetryDelay <= 0 {
		out.RetryDelay = DefaultRetryDelay
	}
	if out.MaxPayloadLogBytes <= 0 {
		out.MaxPayloadLogBytes = DefaultMaxPayloadLogBytes
	}
	return out
}

// delayFor computes the wait before the given retry attempt (0-based).
func (c *Config) delayFor(attempt int) time.Duration {
	if !c.ExponentialBackoff {
		return c.RetryDelay
	}
	delay := c.RetryDelay * (1 << attempt) // base * 2^attempt
	if delay > MaxRetryDelay || delay <= 0 {
		delay = MaxRetryDelay
	}
	return delay
}
