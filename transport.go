// transport.go
// ------------
// The pipeline does not implement HTTP itself; it consumes a Transport
// capability. HTTPTransport is the default implementation on net/http. Send
// failures come back as *TransportError so the retry table can tell transient
// network conditions from everything else.
package httpbridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	nethttp "net/http"
	"strings"
	"syscall"
)

// Transport sends one concrete request and returns the normalized response.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// TransportFailure classifies why a send failed below the HTTP layer.
type TransportFailure int

const (
	FailureUnknown TransportFailure = iota
	FailureTimeout
	FailureNoConnectivity
	FailureConnectionLost
)

// TransportError is returned by a Transport when no HTTP response was
// received.
type TransportError struct {
	Failure TransportFailure
	Err     error
}

func (t *TransportError) Error() string {
	switch t.Failure {
	case FailureTimeout:
		return "transport timeout: " + t.Err.Error()
	case FailureNoConnectivity:
		return "no connectivity: " + t.Err.Error()
	case FailureConnectionLost:
		return "connection lost: " + t.Err.Error()
	default:
		return "transport error: " + t.Err.Error()
	}
}

func (t *TransportError) Unwrap() error { return t.Err }

// Transient reports whether retrying the send could plausibly succeed.
func (t *TransportError) Transient() bool {
	switch t.Failure {
	case FailureTimeout, FailureNoConnectivity, FailureConnectionLost:
		return true
	default:
		return false
	}
}

// HTTPTransport sends requests through a net/http client.
type HTTPTransport struct {
	Client *nethttp.Client
}

// NewHTTPTransport returns a transport over the given client, or over a fresh
// http.Client when nil. Per-request timeouts come from the Request, not the
// client, so the client's own Timeout is left alone.
func NewHTTPTransport(client *nethttp.Client) *HTTPTransport {
	if client == nil {
		client = &nethttp.Client{}
	}
	return &HTTPTransport{Client: client}
}

// Send executes the request, honoring its timeout and cache policy.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	caller := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var payload io.Reader
	if len(req.Body) > 0 {
		payload = bytes.NewReader(req.Body)
	}
	httpReq, err := nethttp.NewRequestWithContext(ctx, string(req.Method), req.URL, payload)
	if err != nil {
		return nil, &TransportError{Failure: FailureUnknown, Err: err}
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	switch req.CachePolicy {
	case CacheReload:
		httpReq.Header.Set("Cache-Control", "no-cache")
	case CacheOnly:
		httpReq.Header.Set("Cache-Control", "only-if-cached")
	}

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		// A fired per-request deadline is an ordinary timeout; only the
		// caller's own cancellation passes through as cancellation.
		if caller.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, &TransportError{Failure: FailureTimeout, Err: err}
		}
		return nil, classifySendError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Failure: FailureConnectionLost, Err: err}
	}

	headers := make(map[string]string, len(resp.Header))
	for k, vals := range resp.Header {
		if len(vals) > 0 {
			headers[strings.ToLower(k)] = vals[0]
		}
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Body:       data,
	}, nil
}

// classifySendError buckets net/http client errors into transport failures.
// Context cancellation is passed through untouched so the executor can map it
// to a cancelled outcome instead of a retry.
func classifySendError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Failure: FailureTimeout, Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &TransportError{Failure: FailureNoConnectivity, Err: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		return &TransportError{Failure: FailureNoConnectivity, Err: err}
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return &TransportError{Failure: FailureConnectionLost, Err: err}
	}

	return &TransportError{Failure: FailureUnknown, Err: err}
}
