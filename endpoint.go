// endpoint.go
// -----------
// An Endpoint describes a single API operation abstractly: method, path,
// headers, query parameters, body, timeout, cache policy, and a per-endpoint
// retry limit. Endpoints are plain values created by the caller per call; the
// RequestBuilder turns them into concrete requests.
package httpbridge

import (
	"strings"
	"time"
)

// Method is the HTTP method of an endpoint.
type Method string

const (
	GET    Method = "GET"
	POST   Method = "POST"
	PUT    Method = "PUT"
	PATCH  Method = "PATCH"
	DELETE Method = "DELETE"
)

// CachePolicy controls how intermediaries may cache the request.
type CachePolicy int

const (
	// CacheDefault lets the transport and intermediaries apply their defaults.
	CacheDefault CachePolicy = iota
	// CacheReload bypasses caches and always hits the origin.
	CacheReload
	// CacheOnly prefers a cached response when one is available.
	CacheOnly
)

const (
	// DefaultTimeout applies when an endpoint does not set its own.
	DefaultTimeout = 60 * time.Second
	// DefaultRetryLimit applies when an endpoint does not set its own.
	DefaultRetryLimit = 3
	// NoRetry disables retries for an endpoint or config; the single attempt
	// is the only one. The zero value means DefaultRetryLimit, so opting out
	// needs an explicit sentinel.
	NoRetry = -1
)

// QueryParam is one key/value pair; order is preserved when building the URL.
type QueryParam struct {
	Key   string
	Value string
}

// Endpoint is an immutable descriptor of one API operation.
//
// BaseURL is required at build time; Build fails with an InvalidURL error when
// it is empty. Zero values for Timeout and RetryLimit mean the defaults above;
// RetryLimit set to NoRetry disables retries for this endpoint.
// LoggingDisabled inverts the usual default so that the zero Endpoint logs.
type Endpoint struct {
	BaseURL         string
	Path            string
	Method          Method
	Headers         map[string]string
	QueryParams     []QueryParam
	Body            *Body
	Timeout         time.Duration
	CachePolicy     CachePolicy
	RetryLimit      int
	LoggingDisabled bool
}

func (e Endpoint) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultTimeout
	}
	return e.Timeout
}

func (e Endpoint) retryLimit() int {
	if e.RetryLimit < 0 {
		return 0
	}
	if e.RetryLimit == 0 {
		return DefaultRetryLimit
	}
	return e.RetryLimit
}

// Request is a concrete HTTP request produced by the RequestBuilder and owned
// by the executor for the duration of one call. Interceptors may replace
// headers during adaptation.
type Request struct {
	Method      Method
	URL         string
	Headers     map[string]string
	Body        []byte
	Timeout     time.Duration
	CachePolicy CachePolicy
}

// Clone returns a copy with its own header map so adaptation on retry never
// leaks headers between attempts.
func (r *Request) Clone() *Request {
	dup := *r
	dup.Headers = make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		dup.Headers[k] = v
	}
	return &dup
}

// Response is the normalized result of one transport send.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Header returns the value for a header key, matching case-insensitively the
// way HTTP headers are keyed.
func (r *Response) Header(key string) string {
	if v, ok := r.Headers[key]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
