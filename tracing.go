package httpclient

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer обёртка для OpenTelemetry трассировки
type Tracer struct {
	tracer trace.Tracer
}

const tracerName = "gitlab.citydrive.tech/back-end/go/pkg/discord-http-client"

// NewTracer создаёт трассировщик на глобальном TracerProvider
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(tracerName),
	}
}

// NewTracerWithProvider создаёт трассировщик на указанном провайдере (nil: глобальный)
func NewTracerWithProvider(tp trace.TracerProvider) *Tracer {
	if tp == nil {
		return NewTracer()
	}
	return &Tracer{tracer: tp.Tracer(tracerName)}
}

// newNoopTracer возвращает трассировщик, не создающий span'ов
func newNoopTracer() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer("")}
}

// StartSpan начинает новый span
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// startRequestSpan начинает span логического запроса к маршруту
func (t *Tracer) startRequestSpan(ctx context.Context, route Route, requestID string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "discord "+route.String(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", route.Method),
			attribute.String("http.route", route.Path),
			attribute.String("discord.bucket", route.Bucket()),
			attribute.String("discord.request_id", requestID),
		),
	)
}
