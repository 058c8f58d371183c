package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Request performs route and returns the decoded response: the JSON document
// for application/json responses, the body as a string otherwise.
//
// Calls sharing a rate-limit bucket run one at a time in arrival order. Server
// errors, rate limits and connection resets are retried up to
// RetryConfig.MaxAttempts attempts in total.
func (c *Client) Request(ctx context.Context, route Route, opts ...RequestOption) (any, error) {
	o := applyOptions(opts)

	httpClient, token, err := c.sessionClient()
	if err != nil {
		return nil, err
	}

	var jsonBody []byte
	if o.hasJSON {
		jsonBody, err = json.Marshal(o.json)
		if err != nil {
			return nil, fmt.Errorf("encode json payload: %w", err)
		}
	}

	requestID := uuid.NewString()
	bucket := route.Bucket()
	logger := c.logger.With(
		zap.String("request_id", requestID),
		zap.String("method", route.Method),
		zap.String("bucket", bucket),
	)

	ctx, span := c.tracer.startRequestSpan(ctx, route, requestID)
	defer span.End()

	c.metrics.IncrementInflight(ctx, route.Method, route.Path)
	defer c.metrics.DecrementInflight(ctx, route.Method, route.Path)

	waitStart := c.clock.Now()
	lease, err := c.locks.Acquire(ctx, bucket)
	if err != nil {
		return nil, err
	}
	defer lease.Release()
	c.metrics.RecordBucketWait(ctx, c.clock.Now().Sub(waitStart).Seconds(), route.Method, route.Path)
	span.AddEvent("bucket acquired")

	data, err := c.execute(ctx, httpClient, route, lease, requestState{
		opts:      o,
		header:    c.requestHeaders(token, o, jsonBody != nil),
		jsonBody:  jsonBody,
		requestID: requestID,
	}, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return data, nil
}

type requestState struct {
	opts      *requestOptions
	header    http.Header
	jsonBody  []byte
	requestID string
}

func (c *Client) execute(
	ctx context.Context, httpClient *http.Client, route Route, lease *BucketLease, st requestState, logger *zap.Logger,
) (any, error) {
	url := route.urlFor(c.config.BaseURL)
	maxAttempts := c.config.RetryConfig.MaxAttempts
	span := trace.SpanFromContext(ctx)

	var (
		lastResp *http.Response
		lastData any

		// resetAt is when the bucket window of the latest response ends. The
		// lease is held through retries and handed to a timer only on exit.
		exhausted bool
		resetAt   time.Time
	)
	defer func() {
		if exhausted {
			lease.releaseAfter(c.clock, max(resetAt.Sub(c.clock.Now()), 0))
		}
	}()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		last := attempt == maxAttempts-1

		if g, ok := c.gate.(interface{ IsOpen() bool }); ok && !g.IsOpen() {
			span.AddEvent("global gate wait", trace.WithAttributes(attribute.Int("http.attempt", attempt)))
		}
		if err := c.gate.Wait(ctx); err != nil {
			return nil, err
		}

		if attempt > 0 {
			for _, f := range st.opts.files {
				if err := f.Reset(); err != nil {
					return nil, err
				}
			}
		}

		resp, data, err := c.attempt(ctx, httpClient, route, url, st, attempt)
		if err != nil {
			if !last && isConnectionReset(err) {
				delay := c.config.RetryConfig.delay(attempt)
				logger.Warn("connection reset by peer, retrying",
					zap.Int("attempt", attempt),
					zap.Duration("delay", delay),
					zap.Error(err),
				)
				c.metrics.RecordRetry(ctx, RetryReasonConnReset, route.Method, route.Path)
				if err := c.sleep(ctx, delay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, err
		}

		lastResp, lastData = resp, data
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		logger.Debug("response received",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.Int("attempt", attempt),
		)

		switch {
		case bucketExhausted(resp):
			delay, perr := parseResetDelay(resp.Header, c.config.UseClock, c.clock.Now())
			if perr != nil {
				logger.Warn("malformed rate limit reset, releasing bucket immediately", zap.Error(perr))
			}
			logger.Debug("bucket exhausted, deferring release",
				zap.String("discord_bucket", resp.Header.Get(HeaderRateLimitBucket)),
				zap.Duration("delay", delay),
			)
			c.metrics.RecordRateLimit(ctx, RateLimitScopeExhausted, route.Method, route.Path)
			exhausted, resetAt = true, c.clock.Now().Add(delay)
		case resp.StatusCode != http.StatusTooManyRequests:
			exhausted = false
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return data, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			if isEdgeBlock(resp, data) {
				logger.Error("request blocked before reaching the API, not retrying",
					zap.Int("status", resp.StatusCode),
				)
				return nil, NewHTTPError(resp, data)
			}

			info, err := parseRateLimitBody(data)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", NewHTTPError(resp, data), err)
			}

			scope := RateLimitScopeBucket
			if info.Global {
				scope = RateLimitScopeGlobal
			}
			logger.Warn("rate limited",
				zap.String("scope", scope),
				zap.Duration("retry_after", info.RetryAfter),
				zap.String("discord_bucket", resp.Header.Get(HeaderRateLimitBucket)),
			)
			c.metrics.RecordRateLimit(ctx, scope, route.Method, route.Path)
			span.AddEvent("rate limited", trace.WithAttributes(
				attribute.String("discord.ratelimit_scope", scope),
				attribute.Float64("discord.retry_after_seconds", info.RetryAfter.Seconds()),
			))

			if info.Global {
				if err := c.gate.Trip(ctx, info.RetryAfter); err != nil {
					logger.Warn("failed to close global gate", zap.Error(err))
				}
			}
			if last {
				continue
			}

			c.metrics.RecordRetry(ctx, RetryReasonRateLimit, route.Method, route.Path)
			if err := c.sleep(ctx, info.RetryAfter); err != nil {
				return nil, err
			}
			if info.Global {
				if err := c.gate.Reset(ctx); err != nil {
					logger.Warn("failed to reopen global gate", zap.Error(err))
				}
				logger.Debug("global rate limit has been released")
			}

		case isRetryableStatus(resp.StatusCode):
			if last {
				continue
			}
			delay := c.config.RetryConfig.delay(attempt)
			logger.Warn("server error, retrying",
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			c.metrics.RecordRetry(ctx, RetryReasonServerError, route.Method, route.Path)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}

		default:
			return nil, NewHTTPError(resp, data)
		}
	}

	logger.Error("request failed after all attempts",
		zap.Int("attempts", maxAttempts),
		zap.Int("status", lastResp.StatusCode),
	)
	return nil, NewHTTPError(lastResp, lastData)
}

// attempt sends one request and decodes its response. The body is rebuilt
// for every attempt.
func (c *Client) attempt(
	ctx context.Context, httpClient *http.Client, route Route, url string, st requestState, n int,
) (*http.Response, any, error) {
	header := st.header.Clone()

	var body io.Reader
	switch {
	case len(st.opts.form) > 0:
		mp := newMultipartBody(st.opts.form)
		defer mp.finish()
		body = mp
		header.Set("Content-Type", mp.contentType)
	case st.jsonBody != nil:
		body = bytes.NewReader(st.jsonBody)
	}

	ctx = withAttemptInfo(ctx, attemptInfo{route: route, attempt: n, requestID: st.requestID})
	req, err := http.NewRequestWithContext(ctx, route.Method, url, body)
	if err != nil {
		return nil, nil, err
	}
	req.Header = header

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	data, err := decodeResponse(resp)
	if err != nil {
		return nil, nil, err
	}
	return resp, data, nil
}

func (c *Client) requestHeaders(token string, o *requestOptions, hasJSON bool) http.Header {
	h := make(http.Header)
	h.Set("User-Agent", c.config.UserAgent)
	if token != "" {
		h.Set("Authorization", c.config.TokenType+" "+token)
	}
	if hasJSON {
		h.Set("Content-Type", "application/json")
	}
	if o.reason != "" {
		h.Set(HeaderAuditLogReason, quote(o.reason, "/ "))
	}
	if o.locale != "" {
		h.Set(HeaderLocale, o.locale)
	}
	for k, vs := range o.headers {
		h[k] = append([]string(nil), vs...)
	}
	return h
}

// decodeResponse reads and closes the body. Only an application/json media
// type is parsed as JSON; an empty body decodes to "".
func decodeResponse(resp *http.Response) (any, error) {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "application/json" || len(raw) == 0 {
		return string(raw), nil
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode json response: %w", err)
	}
	return v, nil
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-c.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
