// mock/transport.go
// -----------------
// A scriptable Transport for tests and examples. Each Step is either a
// response or a send error; steps play in order and the last one repeats, so
// a one-step script behaves like a server that always answers the same way.
// Sent requests are captured for assertions.
package mock

import (
	"context"
	"sync"

	"github.com/clearroute/httpbridge"
)

// Step is one scripted transport outcome.
type Step struct {
	Status  int
	Body    []byte
	Headers map[string]string
	Err     error
}

// Transport replays scripted steps. The zero value answers 200 with an empty
// body forever.
type Transport struct {
	mu       sync.Mutex
	steps    []Step
	next     int
	requests []*httpbridge.Request
}

// NewTransport returns a transport playing the given steps.
func NewTransport(steps ...Step) *Transport {
	return &Transport{steps: steps}
}

// Send records the request and returns the next scripted outcome.
func (t *Transport) Send(_ context.Context, req *httpbridge.Request) (*httpbridge.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.requests = append(t.requests, req.Clone())

	step := Step{Status: 200}
	if len(t.steps) > 0 {
		if t.next >= len(t.steps) {
			step = t.steps[len(t.steps)-1]
		} else {
			step = t.steps[t.next]
			t.next++
		}
	}

	if step.Err != nil {
		return nil, step.Err
	}
	headers := make(map[string]string, len(step.Headers))
	for k, v := range step.Headers {
		headers[k] = v
	}
	return &httpbridge.Response{
		StatusCode: step.Status,
		Headers:    headers,
		Body:       step.Body,
	}, nil
}

// Calls reports how many sends happened.
func (t *Transport) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.requests)
}

// Requests returns copies of every sent request, in order.
func (t *Transport) Requests() []*httpbridge.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*httpbridge.Request, len(t.requests))
	copy(out, t.requests)
	return out
}
