// client.go
// ---------
// Client is the assembled pipeline: session, interceptor, executor and
// transport wired together through explicit constructors. There is no
// package-level singleton; callers hold a Client and pass it where needed, or
// park it in a Registry.
package httpbridge

import (
	"context"
)

// Client bundles a configured pipeline.
type Client struct {
	Session  *Session
	Executor *RequestExecutor
}

// Options customizes client construction. Zero fields get defaults.
type Options struct {
	// Config holds retry and logging settings.
	Config *Config
	// Transport overrides the default net/http transport.
	Transport Transport
	// TokenStore persists the session across restarts.
	TokenStore TokenStore
	// Refresher performs the 401 token refresh; nil disables refresh.
	Refresher Refresher
	// Interceptor replaces the default auth interceptor entirely.
	Interceptor Interceptor
}

// NewClient assembles a pipeline from the given options.
func NewClient(opts Options) *Client {
	transport := opts.Transport
	if transport == nil {
		transport = NewHTTPTransport(nil)
	}
	session := NewSession(opts.TokenStore)
	interceptor := opts.Interceptor
	if interceptor == nil {
		interceptor = NewAuthInterceptor(session, opts.Refresher, opts.Config)
	}
	return &Client{
		Session:  session,
		Executor: NewRequestExecutor(transport, interceptor, opts.Config),
	}
}

// Do executes an endpoint and returns the validated raw response.
func (c *Client) Do(ctx context.Context, endpoint Endpoint) (*Response, error) {
	return c.Executor.Execute(ctx, endpoint)
}

// Call executes an endpoint and decodes the response into T.
func Call[T any](ctx context.Context, c *Client, endpoint Endpoint) (T, error) {
	return Execute[T](ctx, c.Executor, endpoint)
}
