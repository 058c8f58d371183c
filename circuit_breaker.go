package httpclient

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"gitlab.citydrive.tech/back-end/go/pkg/discord-http-client/internal/clock"
)

// ErrCircuitBreakerOpen is returned for an attempt rejected by an open breaker.
// It is not retried by the request loop.
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// SimpleCircuitBreaker opens after consecutive failed attempts against the API
// and lets a probe through once the cool-down elapses. Transport errors and
// 5xx responses count as failures; 4xx, 429 included, do not, since they say
// nothing about the health of the API.
type SimpleCircuitBreaker struct {
	mu               sync.Mutex
	clock            clock.Clock
	state            CircuitBreakerState
	failures         int
	successes        int
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	openedAt         time.Time
	onStateChange    func(from, to CircuitBreakerState)
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold int           // Consecutive failures before opening
	SuccessThreshold int           // Successful probes to close from half-open
	Timeout          time.Duration // Cool-down before going to half-open
	OnStateChange    func(from, to CircuitBreakerState)
}

// NewSimpleCircuitBreaker creates a new circuit breaker with default settings
func NewSimpleCircuitBreaker() *SimpleCircuitBreaker {
	return NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Timeout:          30 * time.Second,
	})
}

// NewCircuitBreakerWithConfig creates a new circuit breaker with custom configuration
func NewCircuitBreakerWithConfig(config CircuitBreakerConfig) *SimpleCircuitBreaker {
	return newCircuitBreaker(config, clock.Real{})
}

func newCircuitBreaker(config CircuitBreakerConfig, clk clock.Clock) *SimpleCircuitBreaker {
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	return &SimpleCircuitBreaker{
		clock:            clk,
		state:            CircuitBreakerClosed,
		failureThreshold: config.FailureThreshold,
		successThreshold: config.SuccessThreshold,
		timeout:          config.Timeout,
		onStateChange:    config.OnStateChange,
	}
}

// Execute runs the function through the circuit breaker
func (cb *SimpleCircuitBreaker) Execute(fn func() (*http.Response, error)) (*http.Response, error) {
	if !cb.allow() {
		return nil, ErrCircuitBreakerOpen
	}

	resp, err := fn()
	cb.record(err == nil && resp != nil && resp.StatusCode < 500)
	return resp, err
}

// State returns the current state of the circuit breaker
func (cb *SimpleCircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset manually resets the circuit breaker to closed state
func (cb *SimpleCircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.successes = 0
	cb.openedAt = time.Time{}
	cb.setState(CircuitBreakerClosed)
}

func (cb *SimpleCircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitBreakerClosed, CircuitBreakerHalfOpen:
		return true
	case CircuitBreakerOpen:
		if cb.clock.Now().Sub(cb.openedAt) >= cb.timeout {
			cb.successes = 0
			cb.setState(CircuitBreakerHalfOpen)
			return true
		}
	}
	return false
}

func (cb *SimpleCircuitBreaker) record(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitBreakerClosed:
		if ok {
			cb.failures = 0
			return
		}
		cb.failures++
		if cb.failureThreshold > 0 && cb.failures >= cb.failureThreshold {
			cb.trip()
		}
	case CircuitBreakerHalfOpen:
		if !ok {
			cb.trip()
			return
		}
		cb.successes++
		if cb.successes >= cb.successThreshold {
			cb.failures = 0
			cb.successes = 0
			cb.setState(CircuitBreakerClosed)
		}
	}
}

// trip must be called with cb.mu held.
func (cb *SimpleCircuitBreaker) trip() {
	cb.openedAt = cb.clock.Now()
	cb.successes = 0
	cb.setState(CircuitBreakerOpen)
}

func (cb *SimpleCircuitBreaker) setState(newState CircuitBreakerState) {
	oldState := cb.state
	cb.state = newState

	if cb.onStateChange != nil && oldState != newState {
		cb.onStateChange(oldState, newState)
	}
}
