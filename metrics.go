package httpclient

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics содержит конфигурацию метрик для конкретного клиента.
type Metrics struct {
	clientName string
	enabled    bool
	provider   MetricsProvider
}

// NewMetrics создаёт экземпляр метрик с Prometheus провайдером на DefaultRegisterer.
func NewMetrics(clientName string) *Metrics {
	return NewMetricsWithProvider(clientName, NewPrometheusMetricsProvider(clientName, nil))
}

// NewDisabledMetrics создаёт экземпляр метрик с выключенным сбором.
func NewDisabledMetrics(clientName string) *Metrics {
	return &Metrics{
		clientName: clientName,
		enabled:    false,
		provider:   NewNoopMetricsProvider(),
	}
}

// NewMetricsWithProvider создаёт экземпляр метрик с указанным провайдером.
func NewMetricsWithProvider(clientName string, provider MetricsProvider) *Metrics {
	// Метрики считаются включенными, если провайдер не noop
	enabled := provider != nil
	if noop, ok := provider.(*NoopMetricsProvider); ok && noop != nil {
		enabled = false
	}
	return &Metrics{
		clientName: clientName,
		enabled:    enabled,
		provider:   provider,
	}
}

// newMetricsFromConfig выбирает провайдер по конфигурации клиента.
func newMetricsFromConfig(clientName string, config Config) *Metrics {
	if config.MetricsEnabled != nil && !*config.MetricsEnabled {
		return NewDisabledMetrics(clientName)
	}
	if config.MetricsBackend == MetricsBackendOpenTelemetry {
		return NewMetricsWithProvider(clientName, NewOpenTelemetryMetricsProvider(clientName, config.MeterProvider))
	}
	return NewMetricsWithProvider(clientName, NewPrometheusMetricsProvider(clientName, config.PrometheusRegisterer))
}

// RecordRequest записывает метрики для попытки.
func (m *Metrics) RecordRequest(ctx context.Context, method, route, status string, retry, hasError bool) {
	if !m.enabled || m.provider == nil {
		return
	}
	m.provider.RecordRequest(ctx, method, route, status, retry, hasError)
}

// RecordDuration записывает длительность попытки.
func (m *Metrics) RecordDuration(ctx context.Context, duration float64, method, route, status string, attempt int) {
	if !m.enabled || m.provider == nil {
		return
	}
	m.provider.RecordDuration(ctx, duration, method, route, status, attempt)
}

// RecordRetry записывает метрику retry.
func (m *Metrics) RecordRetry(ctx context.Context, reason, method, route string) {
	if !m.enabled || m.provider == nil {
		return
	}
	m.provider.RecordRetry(ctx, reason, method, route)
}

// RecordRateLimit записывает срабатывание лимита.
func (m *Metrics) RecordRateLimit(ctx context.Context, scope, method, route string) {
	if !m.enabled || m.provider == nil {
		return
	}
	m.provider.RecordRateLimit(ctx, scope, method, route)
}

// RecordBucketWait записывает время ожидания блокировки бакета.
func (m *Metrics) RecordBucketWait(ctx context.Context, seconds float64, method, route string) {
	if !m.enabled || m.provider == nil {
		return
	}
	m.provider.RecordBucketWait(ctx, seconds, method, route)
}

// IncrementInflight увеличивает счётчик активных запросов.
func (m *Metrics) IncrementInflight(ctx context.Context, method, route string) {
	if !m.enabled || m.provider == nil {
		return
	}
	m.provider.InflightInc(ctx, method, route)
}

// DecrementInflight уменьшает счётчик активных запросов.
func (m *Metrics) DecrementInflight(ctx context.Context, method, route string) {
	if !m.enabled || m.provider == nil {
		return
	}
	m.provider.InflightDec(ctx, method, route)
}

// Close освобождает ресурсы метрик.
func (m *Metrics) Close() error {
	if m.provider != nil {
		return m.provider.Close()
	}
	return nil
}

// GetDefaultMetricsRegistry возвращает глобальный Prometheus DefaultGatherer.
// Используется для создания HTTP обработчика метрик через promhttp.HandlerFor().
func GetDefaultMetricsRegistry() prometheus.Gatherer {
	return prometheus.DefaultGatherer
}
