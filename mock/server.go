// Package mock provides a scripted fake of the Discord REST API and a
// scripted RoundTripper for testing code built on the discord http client.
package mock

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// ViaHeader is the Via value Discord's edge puts on API responses. A 429
// without it is treated as a block rather than a rate limit.
const ViaHeader = "1.1 google"

// Response is one scripted reply.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
	Delay      time.Duration
	// Handler, when set, replaces the scripted reply.
	Handler http.HandlerFunc
}

// WithHeader returns a copy of r with an extra header.
func (r Response) WithHeader(key, value string) Response {
	headers := make(map[string]string, len(r.Headers)+1)
	for k, v := range r.Headers {
		headers[k] = v
	}
	headers[key] = value
	r.Headers = headers
	return r
}

// Exhausted marks r as the last request of its rate-limit window.
func (r Response) Exhausted(bucket string, resetAfter float64) Response {
	return r.
		WithHeader("X-Ratelimit-Bucket", bucket).
		WithHeader("X-Ratelimit-Remaining", "0").
		WithHeader("X-Ratelimit-Reset-After", strconv.FormatFloat(resetAfter, 'f', -1, 64))
}

// JSON is an API reply with a JSON body.
func JSON(status int, v any) Response {
	body, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mock: encode json: %v", err))
	}
	return Response{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type": "application/json",
			"Via":          ViaHeader,
		},
		Body: string(body),
	}
}

// Text is an API reply with a plain text body.
func Text(status int, body string) Response {
	return Response{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type": "text/plain; charset=utf-8",
			"Via":          ViaHeader,
		},
		Body: body,
	}
}

// RateLimited is a 429 from the API rate limiter.
func RateLimited(retryAfter float64, global bool) Response {
	return JSON(http.StatusTooManyRequests, map[string]any{
		"message":     "You are being rate limited.",
		"retry_after": retryAfter,
		"global":      global,
	})
}

// Blocked is a 429 served by the edge instead of the API, e.g. a ban.
func Blocked() Response {
	return Response{
		StatusCode: http.StatusTooManyRequests,
		Headers:    map[string]string{"Content-Type": "text/html"},
		Body:       "<html>error code: 1015</html>",
	}
}

// APIError is a Discord error document.
func APIError(status, code int, message string) Response {
	return JSON(status, map[string]any{"code": code, "message": message})
}

// Request is a request received by the Server.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
	At     time.Time
}

// Server is a fake Discord API. Replies are taken from the queue registered
// for "METHOD /path" (the path without the API prefix), then from the
// fallback queue. The last reply of a queue repeats once it is drained.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	prefix   string
	routes   map[string][]Response
	fallback []Response
	requests []Request
	inflight map[string]int
	overlap  bool
}

// NewServer starts a fake API serving under /api/v10.
func NewServer() *Server {
	s := &Server{
		prefix:   "/api/v10",
		routes:   make(map[string][]Response),
		inflight: make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// BaseURL is the API root to configure the client with.
func (s *Server) BaseURL() string {
	return s.URL + s.prefix
}

// On queues replies for method and path, e.g. On("GET", "/users/@me", ...).
func (s *Server) On(method, path string, responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.routes[key] = append(s.routes[key], responses...)
}

// Fallback queues replies for requests no route matches.
func (s *Server) Fallback(responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = append(s.fallback, responses...)
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestCount returns the number of requests received so far.
func (s *Server) RequestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// LastRequest returns the most recent request, or nil.
func (s *Server) LastRequest() *Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return nil
	}
	r := s.requests[len(s.requests)-1]
	return &r
}

// Overlapped reports whether two requests for the same method and path were
// ever served at the same time.
func (s *Server) Overlapped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlap
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()

	path := r.URL.Path
	if len(path) >= len(s.prefix) && path[:len(s.prefix)] == s.prefix {
		path = path[len(s.prefix):]
	}
	key := r.Method + " " + path

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
		At:     time.Now(),
	})
	s.inflight[key]++
	if s.inflight[key] > 1 {
		s.overlap = true
	}
	resp, ok := s.next(key)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inflight[key]--
		s.mu.Unlock()
	}()

	if !ok {
		resp = APIError(http.StatusNotFound, 0, "404: Not Found")
	}
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	if resp.Handler != nil {
		resp.Handler(w, r)
		return
	}

	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = io.WriteString(w, resp.Body)
	}
}

// next must be called with s.mu held.
func (s *Server) next(key string) (Response, bool) {
	if queue, ok := s.routes[key]; ok && len(queue) > 0 {
		resp := queue[0]
		if len(queue) > 1 {
			s.routes[key] = queue[1:]
		}
		return resp, true
	}
	if len(s.fallback) > 0 {
		resp := s.fallback[0]
		if len(s.fallback) > 1 {
			s.fallback = s.fallback[1:]
		}
		return resp, true
	}
	return Response{}, false
}
