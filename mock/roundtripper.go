package mock

import (
	"io"
	"net/http"
	"strings"
	"sync"
)

// Step is one scripted RoundTrip outcome: an error or a reply.
type Step struct {
	Err      error
	Response Response
}

// Fail is a step failing with err at the transport level.
func Fail(err error) Step {
	return Step{Err: err}
}

// Reply is a step answering with resp.
func Reply(resp Response) Step {
	return Step{Response: resp}
}

// RoundTripper replays scripted steps without a network. The last step
// repeats once the script is drained.
type RoundTripper struct {
	mu       sync.Mutex
	steps    []Step
	calls    int
	requests []*http.Request
	bodies   [][]byte
}

// NewRoundTripper creates a RoundTripper replaying steps in order.
func NewRoundTripper(steps ...Step) *RoundTripper {
	return &RoundTripper{steps: steps}
}

// RoundTrip implements http.RoundTripper.
func (m *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		_ = req.Body.Close()
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.bodies = append(m.bodies, body)
	step := Reply(JSON(http.StatusOK, map[string]any{}))
	if len(m.steps) > 0 {
		idx := m.calls
		if idx >= len(m.steps) {
			idx = len(m.steps) - 1
		}
		step = m.steps[idx]
	}
	m.calls++
	m.mu.Unlock()

	if step.Err != nil {
		return nil, step.Err
	}

	resp := &http.Response{
		StatusCode: step.Response.StatusCode,
		Status:     http.StatusText(step.Response.StatusCode),
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(step.Response.Body)),
		Request:    req,
	}
	for k, v := range step.Response.Headers {
		resp.Header.Set(k, v)
	}
	return resp, nil
}

// Calls returns the number of RoundTrip calls.
func (m *RoundTripper) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Bodies returns the request bodies in call order.
func (m *RoundTripper) Bodies() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.bodies...)
}

// Requests returns the requests in call order.
func (m *RoundTripper) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request(nil), m.requests...)
}
