package httpclient

import (
	"context"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// prometheusGlobalMetrics содержит глобальные векторы метрик Prometheus.
type prometheusGlobalMetrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RetriesTotal     *prometheus.CounterVec
	RateLimitsTotal  *prometheus.CounterVec
	BucketWait       *prometheus.HistogramVec
	InflightRequests *prometheus.GaugeVec
}

// globalPrometheusMetrics кеширует зарегистрированные метрики по регистратору.
var globalPrometheusMetrics sync.Map // map[prometheus.Registerer]*prometheusGlobalMetrics

// prometheusRegisterMu сериализует регистрацию, чтобы MustRegister не вызывался дважды.
var prometheusRegisterMu sync.Mutex

// PrometheusMetricsProvider - провайдер для сбора метрик через Prometheus.
type PrometheusMetricsProvider struct {
	clientName string
	metrics    *prometheusGlobalMetrics
}

// NewPrometheusMetricsProvider создает новый провайдер метрик Prometheus.
func NewPrometheusMetricsProvider(clientName string, reg prometheus.Registerer) *PrometheusMetricsProvider {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	prometheusRegisterMu.Lock()
	defer prometheusRegisterMu.Unlock()

	metrics, exists := globalPrometheusMetrics.Load(reg)
	if !exists {
		newMetrics := &prometheusGlobalMetrics{
			RequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: MetricRequestsTotal,
					Help: "Total number of Discord API request attempts",
				},
				[]string{"client_name", "method", "route", "status", "retry", "error"},
			),
			RequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    MetricRequestDuration,
					Help:    "Discord API request attempt duration in seconds",
					Buckets: DefaultDurationBuckets,
				},
				[]string{"client_name", "method", "route", "status", "attempt"},
			),
			RetriesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: MetricRetriesTotal,
					Help: "Total number of Discord API request retries",
				},
				[]string{"client_name", "reason", "method", "route"},
			),
			RateLimitsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: MetricRateLimitsTotal,
					Help: "Total number of rate limits hit or exhausted buckets",
				},
				[]string{"client_name", "scope", "method", "route"},
			),
			BucketWait: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    MetricBucketWait,
					Help:    "Time spent waiting for the rate-limit bucket lock in seconds",
					Buckets: DefaultWaitBuckets,
				},
				[]string{"client_name", "method", "route"},
			),
			InflightRequests: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: MetricInflightRequests,
					Help: "Number of Discord API requests currently in-flight",
				},
				[]string{"client_name", "method", "route"},
			),
		}

		reg.MustRegister(
			newMetrics.RequestsTotal,
			newMetrics.RequestDuration,
			newMetrics.RetriesTotal,
			newMetrics.RateLimitsTotal,
			newMetrics.BucketWait,
			newMetrics.InflightRequests,
		)

		// Сохраняем в кеше
		globalPrometheusMetrics.Store(reg, newMetrics)
		metrics = newMetrics
	}

	return &PrometheusMetricsProvider{
		clientName: clientName,
		metrics:    metrics.(*prometheusGlobalMetrics),
	}
}

// RecordRequest записывает метрику попытки.
func (p *PrometheusMetricsProvider) RecordRequest(_ context.Context, method, route, status string, retry, hasError bool) {
	p.metrics.RequestsTotal.WithLabelValues(
		p.clientName, method, route, status, strconv.FormatBool(retry), strconv.FormatBool(hasError),
	).Inc()
}

// RecordDuration записывает длительность попытки.
func (p *PrometheusMetricsProvider) RecordDuration(_ context.Context, seconds float64, method, route, status string, attempt int) {
	p.metrics.RequestDuration.WithLabelValues(p.clientName, method, route, status, strconv.Itoa(attempt)).Observe(seconds)
}

// RecordRetry записывает метрику повторной попытки.
func (p *PrometheusMetricsProvider) RecordRetry(_ context.Context, reason, method, route string) {
	p.metrics.RetriesTotal.WithLabelValues(p.clientName, reason, method, route).Inc()
}

// RecordRateLimit записывает срабатывание лимита.
func (p *PrometheusMetricsProvider) RecordRateLimit(_ context.Context, scope, method, route string) {
	p.metrics.RateLimitsTotal.WithLabelValues(p.clientName, scope, method, route).Inc()
}

// RecordBucketWait записывает ожидание блокировки бакета.
func (p *PrometheusMetricsProvider) RecordBucketWait(_ context.Context, seconds float64, method, route string) {
	p.metrics.BucketWait.WithLabelValues(p.clientName, method, route).Observe(seconds)
}

// InflightInc увеличивает счетчик активных запросов.
func (p *PrometheusMetricsProvider) InflightInc(_ context.Context, method, route string) {
	p.metrics.InflightRequests.WithLabelValues(p.clientName, method, route).Inc()
}

// InflightDec уменьшает счетчик активных запросов.
func (p *PrometheusMetricsProvider) InflightDec(_ context.Context, method, route string) {
	p.metrics.InflightRequests.WithLabelValues(p.clientName, method, route).Dec()
}

// Close освобождает ресурсы.
func (p *PrometheusMetricsProvider) Close() error {
	return nil
}
