package httpclient

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter defines the interface for client-side request pacing.
type RateLimiter interface {
	// Allow checks if a request can be executed immediately
	Allow() bool

	// Wait blocks execution until permission for a request is received
	Wait(ctx context.Context) error
}

// RateLimiterConfig configures client-side pacing. Discord allows 50 requests
// per second per token across all routes.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained request rate.
	RequestsPerSecond float64

	// BurstCapacity is the maximum number of requests sent back to back.
	BurstCapacity int
}

func (c RateLimiterConfig) withDefaults() RateLimiterConfig {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 50
	}
	if c.BurstCapacity <= 0 {
		c.BurstCapacity = int(c.RequestsPerSecond)
		if c.BurstCapacity < 1 {
			c.BurstCapacity = 1
		}
	}
	return c
}

// NewTokenBucketLimiter creates a token bucket limiter refilled at rps tokens
// per second holding at most burst tokens.
func NewTokenBucketLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		panic("rate must be positive")
	}
	if burst <= 0 {
		panic("capacity must be positive")
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}
