package httpbridge_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearroute/httpbridge"
	"github.com/clearroute/httpbridge/mock"
)

type fakeRefresher struct {
	mu       sync.Mutex
	calls    int
	token    string
	fail     bool
	returned []string
}

func (f *fakeRefresher) RefreshAccessToken(_ context.Context, refreshToken string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return "", errors.New("refresh rejected")
	}
	f.returned = append(f.returned, refreshToken)
	return f.token, nil
}

func (f *fakeRefresher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newPipeline(transport httpbridge.Transport, refresher httpbridge.Refresher, cfg *httpbridge.Config) (*httpbridge.Session, *httpbridge.RequestExecutor) {
	session := httpbridge.NewSession(nil)
	interceptor := httpbridge.NewAuthInterceptor(session, refresher, cfg)
	return session, httpbridge.NewRequestExecutor(transport, interceptor, cfg)
}

func fastConfig() *httpbridge.Config {
	return &httpbridge.Config{RetryDelay: time.Millisecond}
}

func productsEndpoint() httpbridge.Endpoint {
	return httpbridge.Endpoint{
		BaseURL: "https://api.example.com",
		Path:    "/products",
		Method:  httpbridge.GET,
	}
}

type product struct {
	ID    string
	Name  string
	Price float64
}

func TestExecuteDecodesTypedResult(t *testing.T) {
	transport := mock.NewTransport(mock.Step{
		Status: 200,
		Body:   []byte(`[{"id":"1","name":"Pen","price":1.5}]`),
	})
	_, exec := newPipeline(transport, nil, fastConfig())

	items, err := httpbridge.Execute[[]product](context.Background(), exec, productsEndpoint())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Pen", items[0].Name)
	assert.Equal(t, 1.5, items[0].Price)
	assert.Equal(t, 1, transport.Calls())
}

func TestExecuteRetriesServerErrorsUntilBudgetExhausted(t *testing.T) {
	transport := mock.NewTransport(mock.Step{Status: 503})
	_, exec := newPipeline(transport, nil, fastConfig())

	endpoint := productsEndpoint()
	endpoint.RetryLimit = 2

	_, err := exec.Execute(context.Background(), endpoint)
	require.Error(t, err)

	var e *httpbridge.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, httpbridge.ErrServer, e.Kind)
	assert.Equal(t, 503, e.StatusCode)
	// retry limit N means N+1 total sends
	assert.Equal(t, 3, transport.Calls())
}

func TestExecuteHonorsGlobalRetryCeiling(t *testing.T) {
	transport := mock.NewTransport(mock.Step{Status: 502})
	cfg := fastConfig()
	cfg.RetryLimit = 1
	_, exec := newPipeline(transport, nil, cfg)

	endpoint := productsEndpoint()
	endpoint.RetryLimit = 5

	_, err := exec.Execute(context.Background(), endpoint)
	require.Error(t, err)
	assert.Equal(t, 2, transport.Calls())
}

func TestExecuteRefreshesTokenOn401(t *testing.T) {
	transport := mock.NewTransport(
		mock.Step{Status: 401},
		mock.Step{Status: 200, Body: []byte(`{"ok":true}`)},
	)
	refresher := &fakeRefresher{token: "fresh-access"}
	session, exec := newPipeline(transport, refresher, fastConfig())
	require.NoError(t, session.SetTokens("stale-access", "refresh-1"))

	resp, err := exec.Execute(context.Background(), productsEndpoint())
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	assert.Equal(t, 2, transport.Calls())
	assert.Equal(t, 1, refresher.Calls())
	assert.Equal(t, "fresh-access", session.AccessToken())
	assert.Equal(t, "refresh-1", session.RefreshToken())

	sent := transport.Requests()
	assert.Equal(t, "Bearer stale-access", sent[0].Headers["Authorization"])
	assert.Equal(t, "Bearer fresh-access", sent[1].Headers["Authorization"])
}

func TestExecute401WithoutRefreshTokenClearsSession(t *testing.T) {
	transport := mock.NewTransport(mock.Step{Status: 401})
	refresher := &fakeRefresher{token: "unused"}
	session, exec := newPipeline(transport, refresher, fastConfig())

	_, err := exec.Execute(context.Background(), productsEndpoint())
	require.Error(t, err)
	assert.True(t, httpbridge.IsKind(err, httpbridge.ErrUnauthorized))

	assert.Equal(t, 1, transport.Calls())
	assert.Equal(t, 0, refresher.Calls())
	assert.False(t, session.Authenticated())
}

func TestExecuteFailedRefreshClearsSession(t *testing.T) {
	transport := mock.NewTransport(mock.Step{Status: 401})
	refresher := &fakeRefresher{fail: true}
	session, exec := newPipeline(transport, refresher, fastConfig())
	require.NoError(t, session.SetTokens("stale", "refresh-1"))

	_, err := exec.Execute(context.Background(), productsEndpoint())
	require.Error(t, err)
	assert.True(t, httpbridge.IsKind(err, httpbridge.ErrUnauthorized))
	assert.Equal(t, 1, transport.Calls())
	assert.Equal(t, 1, refresher.Calls())
	assert.False(t, session.Authenticated())
}

func TestExecutePersistent401RefreshesOnlyOnce(t *testing.T) {
	transport := mock.NewTransport(mock.Step{Status: 401})
	refresher := &fakeRefresher{token: "new-token"}
	session, exec := newPipeline(transport, refresher, fastConfig())
	require.NoError(t, session.SetTokens("stale", "refresh-1"))

	_, err := exec.Execute(context.Background(), productsEndpoint())
	require.Error(t, err)
	assert.Equal(t, 2, transport.Calls())
	assert.Equal(t, 1, refresher.Calls())
	assert.False(t, session.Authenticated())
}

func TestExecuteDoesNotRetryDeterministicClientErrors(t *testing.T) {
	for _, status := range []int{400, 403, 404, 409} {
		transport := mock.NewTransport(mock.Step{Status: status})
		_, exec := newPipeline(transport, nil, fastConfig())

		_, err := exec.Execute(context.Background(), productsEndpoint())
		require.Error(t, err, "status %d", status)
		assert.Equal(t, 1, transport.Calls(), "status %d", status)
	}
}

func TestExecuteRetriesTransientTransportFailures(t *testing.T) {
	transport := mock.NewTransport(
		mock.Step{Err: &httpbridge.TransportError{Failure: httpbridge.FailureConnectionLost, Err: errors.New("reset by peer")}},
		mock.Step{Status: 200, Body: []byte(`{}`)},
	)
	_, exec := newPipeline(transport, nil, fastConfig())

	resp, err := exec.Execute(context.Background(), productsEndpoint())
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 2, transport.Calls())
}

func TestExecuteDoesNotRetryUnknownTransportFailures(t *testing.T) {
	transport := mock.NewTransport(mock.Step{
		Err: &httpbridge.TransportError{Failure: httpbridge.FailureUnknown, Err: errors.New("tls handshake rejected")},
	})
	_, exec := newPipeline(transport, nil, fastConfig())

	_, err := exec.Execute(context.Background(), productsEndpoint())
	require.Error(t, err)
	assert.True(t, httpbridge.IsKind(err, httpbridge.ErrNetworkFailure))
	assert.Equal(t, 1, transport.Calls())
}

func TestExecutePropagatesBuildErrorsWithoutSending(t *testing.T) {
	transport := mock.NewTransport(mock.Step{Status: 200})
	_, exec := newPipeline(transport, nil, fastConfig())

	_, err := exec.Execute(context.Background(), httpbridge.Endpoint{Path: "/products"})
	require.Error(t, err)
	assert.True(t, httpbridge.IsKind(err, httpbridge.ErrInvalidURL))
	assert.Equal(t, 0, transport.Calls())
}

func TestExecuteDecodeFailureIsNotRetried(t *testing.T) {
	transport := mock.NewTransport(mock.Step{Status: 200, Body: []byte(`not json`)})
	_, exec := newPipeline(transport, nil, fastConfig())

	_, err := httpbridge.Execute[product](context.Background(), exec, productsEndpoint())
	require.Error(t, err)
	assert.True(t, httpbridge.IsKind(err, httpbridge.ErrDecoding))
	assert.Equal(t, 1, transport.Calls())
}

func TestExecuteEmptyBodyYieldsNoData(t *testing.T) {
	transport := mock.NewTransport(mock.Step{Status: 200})
	_, exec := newPipeline(transport, nil, fastConfig())

	_, err := httpbridge.Execute[product](context.Background(), exec, productsEndpoint())
	require.Error(t, err)
	assert.True(t, httpbridge.IsKind(err, httpbridge.ErrNoData))
}

func TestExecuteNoContentIgnoresBody(t *testing.T) {
	transport := mock.NewTransport(mock.Step{Status: 204})
	_, exec := newPipeline(transport, nil, fastConfig())

	require.NoError(t, httpbridge.ExecuteNoContent(context.Background(), exec, productsEndpoint()))
}

func TestExecuteCancellationDuringBackoff(t *testing.T) {
	transport := mock.NewTransport(mock.Step{Status: 503})
	cfg := &httpbridge.Config{RetryDelay: 500 * time.Millisecond}
	_, exec := newPipeline(transport, nil, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := exec.Execute(ctx, productsEndpoint())
	require.Error(t, err)
	assert.True(t, httpbridge.IsKind(err, httpbridge.ErrCancelled), "got %v", err)
	// the cancellation lands during the first backoff, so exactly one send
	assert.Equal(t, 1, transport.Calls())
}

func TestExecuteAlreadyCancelledContext(t *testing.T) {
	transport := mock.NewTransport(mock.Step{Status: 200})
	_, exec := newPipeline(transport, nil, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Execute(ctx, productsEndpoint())
	require.Error(t, err)
	assert.True(t, httpbridge.IsKind(err, httpbridge.ErrCancelled))
	assert.Equal(t, 0, transport.Calls())
}

func TestExecuteWaitsOutAdvertisedRateLimit(t *testing.T) {
	transport := mock.NewTransport(
		mock.Step{Status: 429, Headers: map[string]string{"retry-after": "1"}},
		mock.Step{Status: 200, Body: []byte(`{}`)},
	)
	_, exec := newPipeline(transport, nil, fastConfig())

	start := time.Now()
	resp, err := exec.Execute(context.Background(), productsEndpoint())
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 2, transport.Calls())
	assert.GreaterOrEqual(t, time.Since(start), time.Second)
}

func TestExecuteNoRetrySendsExactlyOnce(t *testing.T) {
	transport := mock.NewTransport(mock.Step{Status: 503})
	_, exec := newPipeline(transport, nil, fastConfig())

	endpoint := productsEndpoint()
	endpoint.RetryLimit = httpbridge.NoRetry

	_, err := exec.Execute(context.Background(), endpoint)
	require.Error(t, err)
	assert.True(t, httpbridge.IsKind(err, httpbridge.ErrServer))
	assert.Equal(t, 1, transport.Calls())
}

func TestExecuteRetryWaitIsNotDoubledByRateLimit(t *testing.T) {
	reset := strconv.FormatInt(time.Now().Add(3*time.Second).Unix(), 10)
	transport := mock.NewTransport(
		mock.Step{Status: 429, Headers: map[string]string{
			"retry-after":       "1",
			"x-ratelimit-reset": reset,
		}},
		mock.Step{Status: 200, Body: []byte(`{}`)},
	)
	_, exec := newPipeline(transport, nil, fastConfig())

	start := time.Now()
	resp, err := exec.Execute(context.Background(), productsEndpoint())
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 2, transport.Calls())
	assert.GreaterOrEqual(t, elapsed, time.Second)
	assert.Less(t, elapsed, 2500*time.Millisecond)
}
