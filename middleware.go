package httpclient

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// MiddlewareChain represents a chain of middleware
type MiddlewareChain struct {
	middlewares []Middleware
}

// NewMiddlewareChain creates a new middleware chain
func NewMiddlewareChain(middlewares ...Middleware) *MiddlewareChain {
	return &MiddlewareChain{
		middlewares: middlewares,
	}
}

// Add appends a middleware to the chain
func (mc *MiddlewareChain) Add(middleware Middleware) {
	mc.middlewares = append(mc.middlewares, middleware)
}

// Len returns the number of middlewares in the chain
func (mc *MiddlewareChain) Len() int {
	return len(mc.middlewares)
}

// Execute processes the request through the middleware chain
func (mc *MiddlewareChain) Execute(req *http.Request, finalHandler func(*http.Request) (*http.Response, error)) (*http.Response, error) {
	handler := finalHandler
	for i := len(mc.middlewares) - 1; i >= 0; i-- {
		middleware := mc.middlewares[i]
		next := handler
		handler = func(r *http.Request) (*http.Response, error) {
			return middleware.Process(r, next)
		}
	}
	return handler(req)
}

// LoggingMiddleware logs every attempt sent to the API. The Authorization
// header is never logged.
type LoggingMiddleware struct {
	logger *zap.Logger
}

// NewLoggingMiddleware creates a new logging middleware
func NewLoggingMiddleware(logger *zap.Logger) *LoggingMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingMiddleware{
		logger: logger,
	}
}

// Process implements the Middleware interface
func (lm *LoggingMiddleware) Process(req *http.Request, next func(*http.Request) (*http.Response, error)) (*http.Response, error) {
	start := time.Now()

	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
	}
	if info, ok := attemptInfoFromContext(req.Context()); ok {
		fields = append(fields,
			zap.String("request_id", info.requestID),
			zap.String("bucket", info.route.Bucket()),
			zap.Int("attempt", info.attempt),
		)
	}

	resp, err := next(req)
	fields = append(fields, zap.Duration("duration", time.Since(start)))

	if err != nil {
		lm.logger.Error("discord request failed", append(fields, zap.Error(err))...)
		return resp, err
	}

	fields = append(fields, zap.Int("status_code", resp.StatusCode))
	if remaining := resp.Header.Get(HeaderRateLimitRemaining); remaining != "" {
		fields = append(fields,
			zap.String("ratelimit_bucket", resp.Header.Get(HeaderRateLimitBucket)),
			zap.String("ratelimit_remaining", remaining),
		)
	}
	lm.logger.Info("discord request completed", fields...)

	return resp, err
}

// HeaderMiddleware adds headers to requests
type HeaderMiddleware struct {
	headers map[string]string
}

// NewHeaderMiddleware creates a new header middleware
func NewHeaderMiddleware(headers map[string]string) *HeaderMiddleware {
	return &HeaderMiddleware{
		headers: headers,
	}
}

// Process implements the Middleware interface
func (hm *HeaderMiddleware) Process(req *http.Request, next func(*http.Request) (*http.Response, error)) (*http.Response, error) {
	for key, value := range hm.headers {
		req.Header.Set(key, value)
	}

	return next(req)
}
