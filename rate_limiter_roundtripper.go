package httpclient

import (
	"net/http"
)

// RateLimiterRoundTripper is a wrapper for RoundTripper with rate limiting.
// It paces every attempt, retries included.
type RateLimiterRoundTripper struct {
	base    http.RoundTripper
	limiter RateLimiter
}

// NewRateLimiterRoundTripper creates a new RoundTripper with rate limiting.
func NewRateLimiterRoundTripper(base http.RoundTripper, config RateLimiterConfig) *RateLimiterRoundTripper {
	config = config.withDefaults()
	return newRateLimiterRoundTripper(base, NewTokenBucketLimiter(config.RequestsPerSecond, config.BurstCapacity))
}

func newRateLimiterRoundTripper(base http.RoundTripper, limiter RateLimiter) *RateLimiterRoundTripper {
	return &RateLimiterRoundTripper{
		base:    base,
		limiter: limiter,
	}
}

// RoundTrip executes an HTTP request with rate limiting.
func (rt *RateLimiterRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	// Wait for token availability.
	if err := rt.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	// Execute request through base RoundTripper.
	return rt.base.RoundTrip(req)
}
