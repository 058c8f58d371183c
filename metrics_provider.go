package httpclient

import "context"

// Константы для имен метрик, унифицированные для всех провайдеров.
const (
	MetricRequestsTotal    = "discord_http_client_requests_total"
	MetricRequestDuration  = "discord_http_client_request_duration_seconds"
	MetricRetriesTotal     = "discord_http_client_retries_total"
	MetricRateLimitsTotal  = "discord_http_client_rate_limits_total"
	MetricBucketWait       = "discord_http_client_bucket_wait_seconds"
	MetricInflightRequests = "discord_http_client_inflight_requests"
)

// DefaultDurationBuckets содержит бакеты по умолчанию для гистограмм длительности запросов (в секундах).
var DefaultDurationBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5,
	1, 2, 3, 5, 7, 10, 15, 20, 30, 60,
}

// DefaultWaitBuckets содержит бакеты для ожидания блокировки бакета (в секундах).
var DefaultWaitBuckets = []float64{
	0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120,
}

// MetricsProvider определяет интерфейс для различных бэкендов метрик.
// Метка route это шаблон пути (например, /channels/{channel_id}), а не URL.
type MetricsProvider interface {
	// RecordRequest записывает метрику попытки запроса
	RecordRequest(ctx context.Context, method, route, status string, retry, hasError bool)

	// RecordDuration записывает длительность попытки в секундах
	RecordDuration(ctx context.Context, seconds float64, method, route, status string, attempt int)

	// RecordRetry записывает метрику повторной попытки
	RecordRetry(ctx context.Context, reason, method, route string)

	// RecordRateLimit записывает срабатывание лимита (bucket, global, exhausted)
	RecordRateLimit(ctx context.Context, scope, method, route string)

	// RecordBucketWait записывает время ожидания блокировки бакета
	RecordBucketWait(ctx context.Context, seconds float64, method, route string)

	// InflightInc увеличивает счетчик активных запросов
	InflightInc(ctx context.Context, method, route string)

	// InflightDec уменьшает счетчик активных запросов
	InflightDec(ctx context.Context, method, route string)

	// Close освобождает ресурсы провайдера
	Close() error
}

// MetricsBackend определяет тип бэкенда метрик.
type MetricsBackend string

const (
	MetricsBackendPrometheus    MetricsBackend = "prometheus"
	MetricsBackendOpenTelemetry MetricsBackend = "otel"
)
