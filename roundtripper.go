package httpclient

import (
	"context"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"gitlab.citydrive.tech/back-end/go/pkg/discord-http-client/internal/clock"
)

// attemptInfo описывает одну попытку логического запроса
type attemptInfo struct {
	route     Route
	attempt   int
	requestID string
}

type attemptInfoKey struct{}

func withAttemptInfo(ctx context.Context, info attemptInfo) context.Context {
	return context.WithValue(ctx, attemptInfoKey{}, info)
}

func attemptInfoFromContext(ctx context.Context) (attemptInfo, bool) {
	info, ok := ctx.Value(attemptInfoKey{}).(attemptInfo)
	return info, ok
}

// RoundTripper реализует http.RoundTripper одной попытки: метрики, события
// трассировки, circuit breaker и цепочка middleware. Повторы выполняет
// Client.Request, поэтому здесь их нет.
type RoundTripper struct {
	base    http.RoundTripper
	metrics *Metrics
	breaker CircuitBreaker
	chain   *MiddlewareChain
	clock   clock.Clock
}

func newRoundTripper(base http.RoundTripper, config Config, metrics *Metrics) *RoundTripper {
	rt := &RoundTripper{
		base:    base,
		metrics: metrics,
		chain:   NewMiddlewareChain(config.Middlewares...),
		clock:   config.clock,
	}
	if config.CircuitBreakerEnable {
		rt.breaker = config.CircuitBreaker
	}
	if rt.clock == nil {
		rt.clock = clock.Real{}
	}
	return rt
}

// RoundTrip выполняет одну попытку запроса
func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	// Маршрут для метрик берём из шаблона пути, а не из URL, чтобы не плодить метки
	info, ok := attemptInfoFromContext(ctx)
	method, route := req.Method, "unrouted"
	if ok {
		route = info.route.Path
	}

	if rt.chain.Len() > 0 {
		// Middleware может менять заголовки, исходный запрос не трогаем
		req = req.Clone(ctx)
	}

	start := rt.clock.Now()
	resp, err := rt.chain.Execute(req, rt.doTransport)
	duration := rt.clock.Now().Sub(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	statusLabel := strconv.Itoa(status)
	rt.metrics.RecordRequest(ctx, method, route, statusLabel, info.attempt > 0, err != nil)
	rt.metrics.RecordDuration(ctx, duration.Seconds(), method, route, statusLabel, info.attempt)

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		attrs := []attribute.KeyValue{
			attribute.Int("http.attempt", info.attempt),
			attribute.Int("http.status_code", status),
			attribute.Float64("http.duration_seconds", duration.Seconds()),
		}
		if resp != nil {
			if bucket := resp.Header.Get(HeaderRateLimitBucket); bucket != "" {
				attrs = append(attrs, attribute.String("discord.ratelimit_bucket", bucket))
			}
		}
		if err != nil {
			attrs = append(attrs, attribute.String("error", err.Error()))
		}
		span.AddEvent("attempt", trace.WithAttributes(attrs...))
	}

	return resp, err
}

// doTransport выполняет реальный HTTP-запрос, опционально через CircuitBreaker
func (rt *RoundTripper) doTransport(req *http.Request) (*http.Response, error) {
	if rt.breaker != nil {
		return rt.breaker.Execute(func() (*http.Response, error) {
			return rt.base.RoundTrip(req)
		})
	}
	return rt.base.RoundTrip(req)
}
