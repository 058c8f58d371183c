package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// session общий пул соединений клиента
type session struct {
	client *http.Client
	// transport nil, если транспорт передан через Config.Transport и принадлежит вызывающему
	transport *http.Transport
	closed    bool
}

func (c *Client) newSession() *session {
	var (
		base  http.RoundTripper
		owned *http.Transport
	)
	if c.config.Transport != nil {
		base = c.config.Transport
	} else {
		owned = http.DefaultTransport.(*http.Transport).Clone()
		if proxy := c.config.proxyURL(); proxy != nil {
			owned.Proxy = http.ProxyURL(proxy)
		}
		base = owned
	}

	if c.limiter != nil {
		base = newRateLimiterRoundTripper(base, c.limiter)
	}

	return &session{
		client: &http.Client{
			Transport: newRoundTripper(base, c.config, c.metrics),
			Timeout:   c.config.Timeout,
		},
		transport: owned,
	}
}

func (s *session) close() {
	if s.transport != nil {
		s.transport.CloseIdleConnections()
	}
	s.closed = true
}

// sessionClient возвращает HTTP клиент открытой сессии и текущий токен
func (c *Client) sessionClient() (*http.Client, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil || c.session.closed {
		return nil, "", ErrSessionClosed
	}
	return c.session.client, c.token, nil
}

// Login открывает новую сессию с токеном и проверяет его запросом GET /users/@me.
// Возвращает данные текущего пользователя. При 401 восстанавливает прежний
// токен и возвращает ошибку, совместимую с ErrLoginFailure.
func (c *Client) Login(ctx context.Context, token string) (any, error) {
	c.mu.Lock()
	if c.session != nil && !c.session.closed {
		c.session.close()
	}
	c.session = c.newSession()
	old := c.token
	c.token = token
	c.mu.Unlock()

	data, err := c.Request(ctx, MustRoute(http.MethodGet, "/users/@me", nil))
	if err != nil {
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
			c.mu.Lock()
			c.token = old
			c.mu.Unlock()
			return nil, fmt.Errorf("%w: improper token has been passed: %w", ErrLoginFailure, err)
		}
		return nil, err
	}

	c.logger.Debug("logged in")
	return data, nil
}

// Logout завершает сессию токена на стороне Discord (POST /auth/logout)
func (c *Client) Logout(ctx context.Context) (any, error) {
	return c.Request(ctx, MustRoute(http.MethodPost, "/auth/logout", nil))
}

// Close закрывает пул соединений и освобождает ресурсы метрик.
// Запросы после Close возвращают ErrSessionClosed до вызова Recreate или Login.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.session != nil && !c.session.closed {
		c.session.close()
		c.logger.Debug("session closed")
	}
	c.mu.Unlock()

	return c.metrics.Close()
}

// Recreate создаёт пул соединений заново, только если сессии нет или она закрыта
func (c *Client) Recreate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.closed {
		c.session = c.newSession()
		c.logger.Debug("session recreated", zap.Bool("has_token", c.token != ""))
	}
}

// IsClosed сообщает, что открытой сессии нет
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session == nil || c.session.closed
}
