package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"gitlab.citydrive.tech/back-end/go/pkg/discord-http-client/mock"
)

type recordingMiddleware struct {
	name  string
	order *[]string
}

func (m recordingMiddleware) Process(req *http.Request, next func(*http.Request) (*http.Response, error)) (*http.Response, error) {
	*m.order = append(*m.order, m.name+":before")
	resp, err := next(req)
	*m.order = append(*m.order, m.name+":after")
	return resp, err
}

func TestMiddlewareChain_Order(t *testing.T) {
	t.Parallel()

	var order []string
	chain := NewMiddlewareChain(recordingMiddleware{"outer", &order})
	chain.Add(recordingMiddleware{"inner", &order})
	assert.Equal(t, 2, chain.Len())

	req := httptest.NewRequest(http.MethodGet, "https://discord.test/api/v10/gateway", nil)
	resp, err := chain.Execute(req, func(*http.Request) (*http.Response, error) {
		order = append(order, "handler")
		return &http.Response{StatusCode: http.StatusOK}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"outer:before", "inner:before", "handler", "inner:after", "outer:after"}, order)
}

func TestHeaderMiddleware(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	srv.Fallback(mock.JSON(http.StatusOK, map[string]any{}))
	c := newTestClient(t, srv.BaseURL(), newFakeClock(), func(cfg *Config) {
		cfg.Middlewares = []Middleware{NewHeaderMiddleware(map[string]string{"X-Shard": "3"})}
	})

	_, err := c.Request(context.Background(), channelRoute)
	require.NoError(t, err)
	assert.Equal(t, "3", srv.LastRequest().Header.Get("X-Shard"))
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)

	srv := newTestServer(t)
	srv.On(http.MethodGet, "/channels/42", mock.JSON(http.StatusOK, map[string]any{}).
		WithHeader(HeaderRateLimitBucket, "abcd").
		WithHeader(HeaderRateLimitRemaining, "4"))
	c := newTestClient(t, srv.BaseURL(), newFakeClock(), func(cfg *Config) {
		cfg.Middlewares = []Middleware{NewLoggingMiddleware(zap.New(core))}
	})

	_, err := c.Request(context.Background(), channelRoute)
	require.NoError(t, err)

	entries := logs.FilterMessage("discord request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, channelRoute.Bucket(), fields["bucket"])
	assert.Equal(t, int64(0), fields["attempt"])
	assert.Equal(t, int64(http.StatusOK), fields["status_code"])
	assert.Equal(t, "abcd", fields["ratelimit_bucket"])
	assert.Equal(t, "4", fields["ratelimit_remaining"])
	assert.NotEmpty(t, fields["request_id"])
	assert.NotContains(t, fields, "authorization")
}

func TestLoggingMiddleware_Error(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	lm := NewLoggingMiddleware(zap.New(core))

	req := httptest.NewRequest(http.MethodGet, "https://discord.test/api/v10/gateway", nil)
	_, err := lm.Process(req, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("dial tcp: refused")
	})
	require.Error(t, err)

	entries := logs.FilterMessage("discord request failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "dial tcp: refused", entries[0].ContextMap()["error"])
}
