package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Discord rate limit headers.
// https://discord.com/developers/docs/topics/rate-limits
const (
	HeaderRateLimitRemaining  = "X-Ratelimit-Remaining"
	HeaderRateLimitReset      = "X-Ratelimit-Reset"
	HeaderRateLimitResetAfter = "X-Ratelimit-Reset-After"
	HeaderRateLimitBucket     = "X-Ratelimit-Bucket"
	HeaderRateLimitGlobal     = "X-Ratelimit-Global"
	HeaderVia                 = "Via"
	HeaderAuditLogReason      = "X-Audit-Log-Reason"
	HeaderLocale              = "X-Discord-Locale"
)

// Scopes reported by rate-limit metrics.
const (
	RateLimitScopeBucket    = "bucket"
	RateLimitScopeGlobal    = "global"
	RateLimitScopeExhausted = "exhausted"
)

// bucketExhausted reports whether the response consumed the last request of
// the current window. A 429 is handled by the retry loop instead.
func bucketExhausted(resp *http.Response) bool {
	return resp.StatusCode != http.StatusTooManyRequests &&
		resp.Header.Get(HeaderRateLimitRemaining) == "0"
}

// parseResetDelay returns how long the bucket stays exhausted. With useClock,
// or when Reset-After is missing, the absolute X-Ratelimit-Reset timestamp is
// compared with now.
func parseResetDelay(h http.Header, useClock bool, now time.Time) (time.Duration, error) {
	resetAfter := h.Get(HeaderRateLimitResetAfter)
	if !useClock && resetAfter != "" {
		seconds, err := strconv.ParseFloat(resetAfter, 64)
		if err != nil {
			return 0, fmt.Errorf("parse %s %q: %w", HeaderRateLimitResetAfter, resetAfter, err)
		}
		return secondsToDuration(seconds), nil
	}

	reset := h.Get(HeaderRateLimitReset)
	if reset == "" {
		return 0, fmt.Errorf("missing %s header", HeaderRateLimitReset)
	}
	epoch, err := strconv.ParseFloat(reset, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", HeaderRateLimitReset, reset, err)
	}
	resetAt := time.UnixMicro(int64(epoch * 1e6))
	if d := resetAt.Sub(now); d > 0 {
		return d, nil
	}
	return 0, nil
}

// rateLimitInfo is the body of a 429 response.
type rateLimitInfo struct {
	RetryAfter time.Duration
	Global     bool
	Message    string
}

var errNoRetryAfter = errors.New("rate limit response without retry_after")

func parseRateLimitBody(data any) (rateLimitInfo, error) {
	body, ok := data.(map[string]any)
	if !ok {
		return rateLimitInfo{}, errNoRetryAfter
	}
	seconds, ok := body["retry_after"].(float64)
	if !ok {
		return rateLimitInfo{}, errNoRetryAfter
	}

	info := rateLimitInfo{RetryAfter: secondsToDuration(seconds)}
	info.Global, _ = body["global"].(bool)
	info.Message, _ = body["message"].(string)
	return info, nil
}

// isEdgeBlock reports a 429 that did not come from Discord's rate limiter,
// e.g. a Cloudflare ban: no Via header, or a body that is not JSON.
func isEdgeBlock(resp *http.Response, data any) bool {
	if resp.Header.Get(HeaderVia) == "" {
		return true
	}
	_, isText := data.(string)
	return isText
}
