// errors.go
// ---------
// Every failure the pipeline can surface maps into one closed taxonomy so
// callers can distinguish "fix your request" from "retry later" from "fatal"
// without string matching. Errors wrap their underlying cause and support
// errors.Is / errors.As.
package httpbridge

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates the closed set of failure classes.
type ErrorKind int

const (
	ErrInvalidURL ErrorKind = iota
	ErrInvalidResponse
	ErrNoData
	ErrDecoding
	ErrEncoding
	ErrUnauthorized
	ErrForbidden
	ErrNotFound
	ErrBadRequest
	ErrServer
	ErrNetworkFailure
	ErrUnexpectedStatus
	ErrCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case ErrInvalidURL:
		return "invalid_url"
	case ErrInvalidResponse:
		return "invalid_response"
	case ErrNoData:
		return "no_data"
	case ErrDecoding:
		return "decoding_error"
	case ErrEncoding:
		return "encoding_error"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrForbidden:
		return "forbidden"
	case ErrNotFound:
		return "not_found"
	case ErrBadRequest:
		return "bad_request"
	case ErrServer:
		return "server_error"
	case ErrNetworkFailure:
		return "network_failure"
	case ErrUnexpectedStatus:
		return "unexpected_status_code"
	case ErrCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// APIError is the structured error payload some APIs return on 400 responses.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is the single error type surfaced by the pipeline.
type Error struct {
	Kind       ErrorKind
	StatusCode int       // set for status-derived kinds
	API        *APIError // decoded body of a 400 when it parses
	cause      error
	detail     string
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.API != nil && e.API.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.API.Message)
	}
	if e.detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.detail)
	}
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: ErrNotFound})
// works without comparing causes.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// Retryable reports whether the failure class is transient. Build, decode and
// client errors are deterministic and never retryable.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case ErrServer:
		return true
	case ErrUnexpectedStatus:
		return e.StatusCode == 408 || e.StatusCode == 429
	case ErrNetworkFailure:
		var t *TransportError
		if errors.As(e.cause, &t) {
			return t.Transient()
		}
		return false
	default:
		return false
	}
}

func newError(kind ErrorKind) *Error { return &Error{Kind: kind} }

func wrapError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

func detailError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, detail: fmt.Sprintf(format, args...)}
}

func statusError(kind ErrorKind, status int) *Error {
	return &Error{Kind: kind, StatusCode: status}
}

// KindOf returns the taxonomy kind of err when it is a pipeline error.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given taxonomy kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
