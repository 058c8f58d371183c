package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Gateway encodings accepted by GetGateway and GetBotGateway.
const (
	EncodingJSON = "json"
	EncodingETF  = "etf"
)

// SessionStartLimit is the identify budget returned by GET /gateway/bot.
type SessionStartLimit struct {
	Total          int           `json:"total"`
	Remaining      int           `json:"remaining"`
	ResetAfter     time.Duration `json:"-"`
	MaxConcurrency int           `json:"max_concurrency"`
}

// BotGateway describes where and how a bot should connect to the gateway.
type BotGateway struct {
	URL               string
	Shards            int
	SessionStartLimit SessionStartLimit
}

type gatewayResponse struct {
	URL               string `json:"url"`
	Shards            int    `json:"shards"`
	SessionStartLimit struct {
		Total          int   `json:"total"`
		Remaining      int   `json:"remaining"`
		ResetAfter     int64 `json:"reset_after"`
		MaxConcurrency int   `json:"max_concurrency"`
	} `json:"session_start_limit"`
}

// GetGateway returns the websocket URL to connect to, with the encoding and
// API version query parameters applied. Any failure matches ErrGatewayNotFound.
func (c *Client) GetGateway(ctx context.Context, encoding string, zlib bool) (string, error) {
	gw, err := c.fetchGateway(ctx, "/gateway")
	if err != nil {
		return "", err
	}
	return gatewayURL(gw.URL, encoding, zlib), nil
}

// GetBotGateway is like GetGateway but also returns the recommended shard
// count and the session start limit. Requires a bot token.
func (c *Client) GetBotGateway(ctx context.Context, encoding string, zlib bool) (BotGateway, error) {
	gw, err := c.fetchGateway(ctx, "/gateway/bot")
	if err != nil {
		return BotGateway{}, err
	}
	return BotGateway{
		URL:    gatewayURL(gw.URL, encoding, zlib),
		Shards: gw.Shards,
		SessionStartLimit: SessionStartLimit{
			Total:          gw.SessionStartLimit.Total,
			Remaining:      gw.SessionStartLimit.Remaining,
			ResetAfter:     time.Duration(gw.SessionStartLimit.ResetAfter) * time.Millisecond,
			MaxConcurrency: gw.SessionStartLimit.MaxConcurrency,
		},
	}, nil
}

func (c *Client) fetchGateway(ctx context.Context, path string) (gatewayResponse, error) {
	var gw gatewayResponse

	data, err := c.Request(ctx, MustRoute(http.MethodGet, path, nil))
	if err != nil {
		if IsHTTPError(err) {
			return gw, fmt.Errorf("%w: %w", ErrGatewayNotFound, err)
		}
		return gw, err
	}
	if err := decodeInto(data, &gw); err != nil {
		return gw, fmt.Errorf("%w: %w", ErrGatewayNotFound, err)
	}
	if gw.URL == "" {
		return gw, fmt.Errorf("%w: response has no url", ErrGatewayNotFound)
	}
	return gw, nil
}

func gatewayURL(base, encoding string, zlib bool) string {
	if encoding == "" {
		encoding = EncodingJSON
	}
	q := url.Values{}
	q.Set("encoding", encoding)
	q.Set("v", fmt.Sprint(APIVersion))
	if zlib {
		q.Set("compress", "zlib-stream")
	}
	return base + "?" + q.Encode()
}

// decodeInto converts a decoded JSON document into v.
func decodeInto(data, v any) error {
	if _, ok := data.(map[string]any); !ok {
		return fmt.Errorf("unexpected response body %T", data)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// GetFromCDN downloads an asset from the Discord CDN through the client's
// session. It bypasses bucket locks: CDN requests are not rate limited by the
// API.
func (c *Client) GetFromCDN(ctx context.Context, assetURL string) ([]byte, error) {
	httpClient, _, err := c.sessionClient()
	if err != nil {
		return nil, err
	}

	ctx = withAttemptInfo(ctx, attemptInfo{
		route:     Route{Method: http.MethodGet, Path: "cdn"},
		requestID: uuid.NewString(),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return io.ReadAll(resp.Body)
	case http.StatusNotFound:
		return nil, NewHTTPError(resp, "asset not found")
	case http.StatusForbidden:
		return nil, NewHTTPError(resp, "cannot retrieve asset")
	default:
		return nil, NewHTTPError(resp, "failed to get asset")
	}
}
