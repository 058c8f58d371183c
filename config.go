package httpclient

import (
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"gitlab.citydrive.tech/back-end/go/pkg/discord-http-client/internal/clock"
)

// Config содержит конфигурацию клиента Discord API
type Config struct {
	// BaseURL корень API, по умолчанию DefaultBaseURL
	BaseURL string

	// UserAgent значение заголовка User-Agent (по умолчанию DefaultUserAgent())
	UserAgent string

	// TokenType префикс заголовка Authorization: "Bot" или "Bearer"
	TokenType string

	// Proxy адрес HTTP прокси (опционально)
	Proxy string

	// ProxyUsername и ProxyPassword учётные данные прокси (опционально)
	ProxyUsername string
	ProxyPassword string

	// UseClock вычислять задержку сброса бакета по X-Ratelimit-Reset и локальным часам
	// вместо X-Ratelimit-Reset-After
	UseClock bool

	// Timeout таймаут одной попытки на уровне http.Client (0: без ограничения)
	Timeout time.Duration

	// Transport базовый HTTP транспорт (опционально). Если задан, Proxy игнорируется.
	Transport http.RoundTripper

	// RetryConfig конфигурация повторов
	RetryConfig RetryConfig

	// Logger логгер клиента (по умолчанию zap.NewNop())
	Logger *zap.Logger

	// MetricsEnabled включает/выключает метрики (nil: включены)
	MetricsEnabled *bool

	// MetricsBackend бэкенд метрик: prometheus (по умолчанию) или otel
	MetricsBackend MetricsBackend

	// PrometheusRegisterer регистратор метрик Prometheus (по умолчанию DefaultRegisterer)
	PrometheusRegisterer prometheus.Registerer

	// MeterProvider провайдер метрик OpenTelemetry (по умолчанию глобальный)
	MeterProvider metric.MeterProvider

	// TracingEnabled включает/выключает OpenTelemetry трассировку
	TracingEnabled bool

	// TracerProvider провайдер трассировки (по умолчанию глобальный)
	TracerProvider trace.TracerProvider

	// RateLimiterEnabled включает клиентское ограничение частоты запросов
	RateLimiterEnabled bool

	// RateLimiterConfig конфигурация клиентского ограничителя
	RateLimiterConfig RateLimiterConfig

	// CircuitBreakerEnable включает/выключает использование CircuitBreaker
	CircuitBreakerEnable bool

	// CircuitBreaker настраиваемый автоматический выключатель
	CircuitBreaker CircuitBreaker

	// Middlewares выполняются вокруг каждой попытки
	Middlewares []Middleware

	// GlobalGate общий шлюз глобального лимита (по умолчанию свой для каждого клиента)
	GlobalGate GlobalGate

	clock clock.Clock
}

// RetryConfig содержит настройки retry механизма
type RetryConfig struct {
	// MaxAttempts максимальное количество попыток (включая первоначальную)
	MaxAttempts int

	// BaseDelay задержка перед первым повтором
	BaseDelay time.Duration

	// DelayStep прирост задержки с каждой следующей попыткой
	DelayStep time.Duration
}

// withDefaults применяет значения по умолчанию к конфигурации
func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}

	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent()
	}

	if c.TokenType == "" {
		c.TokenType = "Bot"
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	if c.MetricsBackend == "" {
		c.MetricsBackend = MetricsBackendPrometheus
	}

	c.RetryConfig = c.RetryConfig.withDefaults()

	if c.RateLimiterEnabled {
		c.RateLimiterConfig = c.RateLimiterConfig.withDefaults()
	}

	if c.clock == nil {
		c.clock = clock.Real{}
	}

	// Circuit breaker по умолчанию выключен. Если включён и не задан, используем простой.
	if c.CircuitBreakerEnable && c.CircuitBreaker == nil {
		c.CircuitBreaker = newCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 1,
			Timeout:          30 * time.Second,
		}, c.clock)
	}

	if c.GlobalGate == nil {
		c.GlobalGate = newMemoryGlobalGate(c.clock)
	}

	return c
}

// validate проверяет конфигурацию после применения значений по умолчанию
func (c Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return NewConfigurationError("BaseURL", c.BaseURL, "must be an absolute URL")
	}

	if c.Proxy != "" {
		p, err := url.Parse(c.Proxy)
		if err != nil || p.Host == "" {
			return NewConfigurationError("Proxy", c.Proxy, "must be an absolute URL")
		}
	}

	if c.RetryConfig.MaxAttempts < 1 {
		return NewConfigurationError("RetryConfig.MaxAttempts", c.RetryConfig.MaxAttempts, "must be at least 1")
	}

	switch c.MetricsBackend {
	case MetricsBackendPrometheus, MetricsBackendOpenTelemetry:
	default:
		return NewConfigurationError("MetricsBackend", c.MetricsBackend, "unknown metrics backend")
	}

	return nil
}

// proxyURL возвращает адрес прокси с учётными данными или nil
func (c Config) proxyURL() *url.URL {
	if c.Proxy == "" {
		return nil
	}
	u, err := url.Parse(c.Proxy)
	if err != nil {
		return nil
	}
	if c.ProxyUsername != "" {
		u.User = url.UserPassword(c.ProxyUsername, c.ProxyPassword)
	}
	return u
}

// withDefaults применяет значения по умолчанию к конфигурации retry
func (rc RetryConfig) withDefaults() RetryConfig {
	if rc.MaxAttempts == 0 {
		rc.MaxAttempts = 5
	}

	if rc.BaseDelay == 0 {
		rc.BaseDelay = time.Second
	}

	if rc.DelayStep == 0 {
		rc.DelayStep = 2 * time.Second
	}

	return rc
}

// delay возвращает паузу после неудачной попытки с номером attempt (с нуля)
func (rc RetryConfig) delay(attempt int) time.Duration {
	return CalculateLinearBackoff(attempt, rc.BaseDelay, rc.DelayStep)
}
