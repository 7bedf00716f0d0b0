package httpbridge_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearroute/httpbridge"
)

func testRequest() *httpbridge.Request {
	return &httpbridge.Request{
		Method:  httpbridge.GET,
		URL:     "https://api.example.com/products",
		Headers: map[string]string{"Accept": "application/json"},
	}
}

func TestAdaptInjectsAuthHeaders(t *testing.T) {
	session := httpbridge.NewSession(nil)
	require.NoError(t, session.SetTokens("token-1", "refresh-1"))
	interceptor := httpbridge.NewAuthInterceptor(session, nil, nil)

	req := testRequest()
	req.Headers["Authorization"] = "Basic stale"
	req.Headers["Content-Type"] = "text/plain"

	adapted := interceptor.Adapt(context.Background(), req)
	assert.Equal(t, "Bearer token-1", adapted.Headers["Authorization"])
	assert.Equal(t, "application/json", adapted.Headers["Content-Type"])
	assert.Equal(t, "application/json", adapted.Headers["Accept"])

	// the original request is untouched
	assert.Equal(t, "Basic stale", req.Headers["Authorization"])
}

func TestAdaptWithoutTokenAddsNoAuthorization(t *testing.T) {
	interceptor := httpbridge.NewAuthInterceptor(httpbridge.NewSession(nil), nil, nil)

	adapted := interceptor.Adapt(context.Background(), testRequest())
	_, ok := adapted.Headers["Authorization"]
	assert.False(t, ok)
	assert.Equal(t, "application/json", adapted.Headers["Content-Type"])
}

func TestShouldRetryStopsWhenBudgetExhausted(t *testing.T) {
	interceptor := httpbridge.NewAuthInterceptor(httpbridge.NewSession(nil), nil, fastConfig())
	state := httpbridge.NewRetryState(0)

	retry, _ := interceptor.ShouldRetry(context.Background(), testRequest(), &httpbridge.Response{StatusCode: 503}, nil, state)
	assert.False(t, retry)
}

func TestShouldRetryTransientStatuses(t *testing.T) {
	for _, status := range []int{408, 429, 500, 502, 503, 504} {
		interceptor := httpbridge.NewAuthInterceptor(httpbridge.NewSession(nil), nil, fastConfig())
		state := httpbridge.NewRetryState(3)

		retry, delay := interceptor.ShouldRetry(context.Background(), testRequest(), &httpbridge.Response{StatusCode: status}, nil, state)
		assert.True(t, retry, "status %d", status)
		assert.Equal(t, time.Millisecond, delay, "status %d", status)
		assert.Equal(t, 1, state.Attempts(), "status %d", status)
	}
}

func TestShouldRetryRejectsNonTransientStatuses(t *testing.T) {
	for _, status := range []int{400, 403, 404, 409, 410, 501} {
		interceptor := httpbridge.NewAuthInterceptor(httpbridge.NewSession(nil), nil, fastConfig())
		state := httpbridge.NewRetryState(3)

		retry, _ := interceptor.ShouldRetry(context.Background(), testRequest(), &httpbridge.Response{StatusCode: status}, nil, state)
		assert.False(t, retry, "status %d", status)
		assert.Equal(t, 0, state.Attempts(), "status %d", status)
	}
}

func TestShouldRetryTransportFailures(t *testing.T) {
	interceptor := httpbridge.NewAuthInterceptor(httpbridge.NewSession(nil), nil, fastConfig())

	transient := []*httpbridge.TransportError{
		{Failure: httpbridge.FailureTimeout, Err: errors.New("timeout")},
		{Failure: httpbridge.FailureNoConnectivity, Err: errors.New("refused")},
		{Failure: httpbridge.FailureConnectionLost, Err: errors.New("reset")},
	}
	for _, te := range transient {
		state := httpbridge.NewRetryState(3)
		retry, _ := interceptor.ShouldRetry(context.Background(), testRequest(), nil, te, state)
		assert.True(t, retry, "failure %v", te.Failure)
	}

	state := httpbridge.NewRetryState(3)
	retry, _ := interceptor.ShouldRetry(context.Background(), testRequest(), nil,
		&httpbridge.TransportError{Failure: httpbridge.FailureUnknown, Err: errors.New("certificate invalid")}, state)
	assert.False(t, retry)
}

func TestShouldRetryHonorsRetryAfterHeader(t *testing.T) {
	interceptor := httpbridge.NewAuthInterceptor(httpbridge.NewSession(nil), nil, fastConfig())
	state := httpbridge.NewRetryState(3)

	resp := &httpbridge.Response{
		StatusCode: 429,
		Headers:    map[string]string{"retry-after": "2"},
	}
	retry, delay := interceptor.ShouldRetry(context.Background(), testRequest(), resp, nil, state)
	assert.True(t, retry)
	assert.Equal(t, 2*time.Second, delay)
}

type slowRefresher struct {
	mu    sync.Mutex
	calls int
}

func (s *slowRefresher) RefreshAccessToken(context.Context, string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	return "shared-token", nil
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	session := httpbridge.NewSession(nil)
	require.NoError(t, session.SetTokens("stale", "refresh-1"))
	refresher := &slowRefresher{}
	interceptor := httpbridge.NewAuthInterceptor(session, refresher, fastConfig())

	const callers = 8
	var wg sync.WaitGroup
	results := make([]bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			state := httpbridge.NewRetryState(3)
			retry, _ := interceptor.ShouldRetry(context.Background(), testRequest(), &httpbridge.Response{StatusCode: 401}, nil, state)
			results[i] = retry
		}(i)
	}
	wg.Wait()

	for i, retry := range results {
		assert.True(t, retry, "caller %d", i)
	}
	refresher.mu.Lock()
	calls := refresher.calls
	refresher.mu.Unlock()
	assert.Equal(t, 1, calls)
	assert.Equal(t, "shared-token", session.AccessToken())
	assert.Equal(t, "refresh-1", session.RefreshToken())
}
