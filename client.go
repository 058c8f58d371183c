// Package httpclient предоставляет транспорт REST API Discord: сериализацию
// запросов по бакетам лимитов, глобальный шлюз 429, повторы с линейной
// задержкой и отправку файлов, с автоматическими метриками и трассировкой.
package httpclient

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"

	"gitlab.citydrive.tech/back-end/go/pkg/discord-http-client/internal/clock"
)

// Version версия библиотеки, передаётся в User-Agent
const Version = "1.0.0"

// ProjectURL адрес проекта, передаётся в User-Agent
const ProjectURL = "https://gitlab.citydrive.tech/back-end/go/pkg/discord-http-client"

// DefaultUserAgent возвращает User-Agent в формате, который требует Discord
func DefaultUserAgent() string {
	return fmt.Sprintf("DiscordBot (%s, %s) Go/%s", ProjectURL, Version, strings.TrimPrefix(runtime.Version(), "go"))
}

// Client клиент REST API Discord. Безопасен для конкурентного использования.
type Client struct {
	config  Config
	name    string
	logger  *zap.Logger
	metrics *Metrics
	tracer  *Tracer
	clock   clock.Clock
	locks   *LockRegistry
	gate    GlobalGate
	limiter RateLimiter

	mu      sync.RWMutex
	session *session
	token   string
}

var _ Requester = (*Client)(nil)

// New создаёт клиент с указанной конфигурацией. Сессия открывается вызовом
// Login или Recreate.
func New(config Config, name string) (*Client, error) {
	config = config.withDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	if name == "" {
		name = "discord-http-client"
	}

	tracer := newNoopTracer()
	if config.TracingEnabled {
		tracer = NewTracerWithProvider(config.TracerProvider)
	}

	// Лимитер общий для всех сессий клиента, чтобы пересоздание сессии не сбрасывало темп
	var limiter RateLimiter
	if config.RateLimiterEnabled {
		limiter = NewTokenBucketLimiter(config.RateLimiterConfig.RequestsPerSecond, config.RateLimiterConfig.BurstCapacity)
	}

	return &Client{
		config:  config,
		name:    name,
		logger:  config.Logger.With(zap.String("client", name)),
		metrics: newMetricsFromConfig(name, config),
		tracer:  tracer,
		clock:   config.clock,
		locks:   NewLockRegistry(),
		gate:    config.GlobalGate,
		limiter: limiter,
	}, nil
}

// Config возвращает конфигурацию клиента с применёнными значениями по умолчанию
func (c *Client) Config() Config {
	return c.config
}

// Token возвращает текущий токен
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Locks возвращает реестр блокировок бакетов клиента
func (c *Client) Locks() *LockRegistry {
	return c.locks
}

// GlobalGate возвращает шлюз глобального лимита клиента
func (c *Client) GlobalGate() GlobalGate {
	return c.gate
}
