package httpclient

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.citydrive.tech/back-end/go/pkg/discord-http-client/mock"
)

func TestGetGateway(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	srv.On(http.MethodGet, "/gateway", mock.JSON(http.StatusOK, map[string]any{"url": "wss://gateway.discord.gg"}))
	c := newTestClient(t, srv.BaseURL(), newFakeClock())

	u, err := c.GetGateway(context.Background(), EncodingJSON, false)
	require.NoError(t, err)
	assert.Equal(t, "wss://gateway.discord.gg?encoding=json&v=10", u)

	u, err = c.GetGateway(context.Background(), EncodingETF, true)
	require.NoError(t, err)
	assert.Equal(t, "wss://gateway.discord.gg?compress=zlib-stream&encoding=etf&v=10", u)
}

func TestGetBotGateway(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	srv.On(http.MethodGet, "/gateway/bot", mock.JSON(http.StatusOK, map[string]any{
		"url":    "wss://gateway.discord.gg",
		"shards": 4,
		"session_start_limit": map[string]any{
			"total":           1000,
			"remaining":       998,
			"reset_after":     14400000,
			"max_concurrency": 1,
		},
	}))
	c := newTestClient(t, srv.BaseURL(), newFakeClock())

	gw, err := c.GetBotGateway(context.Background(), "", false)
	require.NoError(t, err)
	assert.Equal(t, "wss://gateway.discord.gg?encoding=json&v=10", gw.URL)
	assert.Equal(t, 4, gw.Shards)
	assert.Equal(t, SessionStartLimit{Total: 1000, Remaining: 998, ResetAfter: 4 * time.Hour, MaxConcurrency: 1}, gw.SessionStartLimit)
}

func TestGetGateway_NotFound(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	srv.On(http.MethodGet, "/gateway", mock.APIError(http.StatusUnauthorized, 0, "401: Unauthorized"))
	srv.On(http.MethodGet, "/gateway/bot", mock.Text(http.StatusOK, "not json"))
	c := newTestClient(t, srv.BaseURL(), newFakeClock())

	_, err := c.GetGateway(context.Background(), EncodingJSON, false)
	require.ErrorIs(t, err, ErrGatewayNotFound)
	assert.True(t, IsHTTPError(err))

	_, err = c.GetBotGateway(context.Background(), EncodingJSON, false)
	require.ErrorIs(t, err, ErrGatewayNotFound)
}

func TestGetFromCDN(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	srv.On(http.MethodGet, "/avatars/1/a.png", mock.Response{StatusCode: http.StatusOK, Body: "PNG"})
	srv.On(http.MethodGet, "/avatars/1/missing.png", mock.Response{StatusCode: http.StatusNotFound})
	srv.On(http.MethodGet, "/avatars/1/private.png", mock.Response{StatusCode: http.StatusForbidden})
	srv.On(http.MethodGet, "/avatars/1/broken.png", mock.Response{StatusCode: http.StatusBadGateway})
	c := newTestClient(t, srv.BaseURL(), newFakeClock())

	data, err := c.GetFromCDN(context.Background(), srv.URL+"/avatars/1/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("PNG"), data)
	assert.Empty(t, srv.LastRequest().Header.Get("Authorization"), "token must not leak to the CDN")

	_, err = c.GetFromCDN(context.Background(), srv.URL+"/avatars/1/missing.png")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "asset not found")

	_, err = c.GetFromCDN(context.Background(), srv.URL+"/avatars/1/private.png")
	require.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, err.Error(), "cannot retrieve asset")

	_, err = c.GetFromCDN(context.Background(), srv.URL+"/avatars/1/broken.png")
	require.ErrorIs(t, err, ErrServerError)
	assert.Contains(t, err.Error(), "failed to get asset")
}

func TestGetGateway_PassesThroughNonHTTPErrors(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)
	srv.On(http.MethodGet, "/gateway", mock.JSON(http.StatusOK, map[string]any{"url": "wss://gateway.discord.gg"}))
	c := newTestClient(t, srv.BaseURL(), newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetGateway(ctx, EncodingJSON, false)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrGatewayNotFound)

	require.NoError(t, c.Close())
	_, err = c.GetBotGateway(context.Background(), EncodingJSON, false)
	require.ErrorIs(t, err, ErrSessionClosed)
	assert.NotErrorIs(t, err, ErrGatewayNotFound)
}
