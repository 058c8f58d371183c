package httpclient

import (
	"context"
	"net/http"
)

// Requester определяет интерфейс выполнения запросов к Discord API.
// Реализуется *Client; удобен для подмены в тестах потребителей.
type Requester interface {
	Request(ctx context.Context, route Route, opts ...RequestOption) (any, error)
	SendFiles(ctx context.Context, route Route, payload any, files []*File, opts ...RequestOption) (any, error)
}

// Middleware определяет интерфейс промежуточного ПО для обработки запросов/ответов.
// Вызывается вокруг каждой попытки отдельно.
type Middleware interface {
	Process(req *http.Request, next func(*http.Request) (*http.Response, error)) (*http.Response, error)
}

// CircuitBreaker определяет интерфейс автоматического выключателя
type CircuitBreaker interface {
	Execute(fn func() (*http.Response, error)) (*http.Response, error)
	State() CircuitBreakerState
	Reset()
}

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	CircuitBreakerClosed CircuitBreakerState = iota
	CircuitBreakerOpen
	CircuitBreakerHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitBreakerClosed:
		return "closed"
	case CircuitBreakerOpen:
		return "open"
	case CircuitBreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}
