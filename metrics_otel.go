package httpclient

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// otelInstruments contains a set of OpenTelemetry instruments.
type otelInstruments struct {
	requests   metric.Int64Counter
	retries    metric.Int64Counter
	rateLimits metric.Int64Counter
	duration   metric.Float64Histogram
	bucketWait metric.Float64Histogram
	inflight   metric.Int64UpDownCounter
}

// globalOtelInstruments caches instruments by MeterProvider.
var globalOtelInstruments sync.Map // map[metric.MeterProvider]*otelInstruments

// OpenTelemetryMetricsProvider is a provider for collecting metrics via OpenTelemetry.
type OpenTelemetryMetricsProvider struct {
	clientName string
	inst       *otelInstruments
}

// NewOpenTelemetryMetricsProvider creates a new OpenTelemetry metrics provider.
func NewOpenTelemetryMetricsProvider(clientName string, mp metric.MeterProvider) *OpenTelemetryMetricsProvider {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	inst, exists := globalOtelInstruments.Load(mp)
	if !exists {
		meter := mp.Meter("gitlab.citydrive.tech/back-end/go/pkg/discord-http-client")

		requests, _ := meter.Int64Counter(
			MetricRequestsTotal,
			metric.WithDescription("Total number of Discord API request attempts"),
		)

		retries, _ := meter.Int64Counter(
			MetricRetriesTotal,
			metric.WithDescription("Total number of Discord API request retries"),
		)

		rateLimits, _ := meter.Int64Counter(
			MetricRateLimitsTotal,
			metric.WithDescription("Total number of rate limits hit or exhausted buckets"),
		)

		duration, _ := meter.Float64Histogram(
			MetricRequestDuration,
			metric.WithDescription("Discord API request attempt duration in seconds"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(DefaultDurationBuckets...),
		)

		bucketWait, _ := meter.Float64Histogram(
			MetricBucketWait,
			metric.WithDescription("Time spent waiting for the rate-limit bucket lock in seconds"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(DefaultWaitBuckets...),
		)

		inflight, _ := meter.Int64UpDownCounter(
			MetricInflightRequests,
			metric.WithDescription("Number of Discord API requests currently in-flight"),
		)

		newInst := &otelInstruments{
			requests:   requests,
			retries:    retries,
			rateLimits: rateLimits,
			duration:   duration,
			bucketWait: bucketWait,
			inflight:   inflight,
		}

		inst, _ = globalOtelInstruments.LoadOrStore(mp, newInst)
	}

	return &OpenTelemetryMetricsProvider{
		clientName: clientName,
		inst:       inst.(*otelInstruments),
	}
}

func (o *OpenTelemetryMetricsProvider) attrs(method, route string, extra ...attribute.KeyValue) metric.MeasurementOption {
	kv := append([]attribute.KeyValue{
		attribute.String("client_name", o.clientName),
		attribute.String("method", method),
		attribute.String("route", route),
	}, extra...)
	return metric.WithAttributes(kv...)
}

// RecordRequest records a request attempt.
func (o *OpenTelemetryMetricsProvider) RecordRequest(ctx context.Context, method, route, status string, retry, hasError bool) {
	o.inst.requests.Add(ctx, 1, o.attrs(method, route,
		attribute.String("status", status),
		attribute.Bool("retry", retry),
		attribute.Bool("error", hasError),
	))
}

// RecordDuration records attempt duration.
func (o *OpenTelemetryMetricsProvider) RecordDuration(ctx context.Context, seconds float64, method, route, status string, attempt int) {
	o.inst.duration.Record(ctx, seconds, o.attrs(method, route,
		attribute.String("status", status),
		attribute.String("attempt", strconv.Itoa(attempt)),
	))
}

// RecordRetry records a retry.
func (o *OpenTelemetryMetricsProvider) RecordRetry(ctx context.Context, reason, method, route string) {
	o.inst.retries.Add(ctx, 1, o.attrs(method, route, attribute.String("reason", reason)))
}

// RecordRateLimit records a rate limit hit.
func (o *OpenTelemetryMetricsProvider) RecordRateLimit(ctx context.Context, scope, method, route string) {
	o.inst.rateLimits.Add(ctx, 1, o.attrs(method, route, attribute.String("scope", scope)))
}

// RecordBucketWait records time spent waiting for a bucket lock.
func (o *OpenTelemetryMetricsProvider) RecordBucketWait(ctx context.Context, seconds float64, method, route string) {
	o.inst.bucketWait.Record(ctx, seconds, o.attrs(method, route))
}

// InflightInc increments the active requests counter.
func (o *OpenTelemetryMetricsProvider) InflightInc(ctx context.Context, method, route string) {
	o.inst.inflight.Add(ctx, 1, o.attrs(method, route))
}

// InflightDec decrements the active requests counter.
func (o *OpenTelemetryMetricsProvider) InflightDec(ctx context.Context, method, route string) {
	o.inst.inflight.Add(ctx, -1, o.attrs(method, route))
}

// Close releases resources.
func (o *OpenTelemetryMetricsProvider) Close() error {
	return nil
}
