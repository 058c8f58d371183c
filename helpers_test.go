package httpclient

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.citydrive.tech/back-end/go/pkg/discord-http-client/internal/clock"
	"gitlab.citydrive.tech/back-end/go/pkg/discord-http-client/mock"
)

// fakeClock fires After immediately and records the requested durations, so
// backoff tests run instantly. AfterFunc timers only fire on Advance.
type fakeClock struct {
	*clock.Manual

	mu     sync.Mutex
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{Manual: clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))}
}

func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	f.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- f.Now().Add(d)
	return ch
}

func (f *fakeClock) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

func boolPtr(b bool) *bool {
	return &b
}

// newTestClient creates a client with an open session against baseURL.
// Metrics are disabled unless a modifier enables them.
func newTestClient(t *testing.T, baseURL string, clk clock.Clock, mods ...func(*Config)) *Client {
	t.Helper()

	cfg := Config{
		BaseURL:        baseURL,
		MetricsEnabled: boolPtr(false),
		clock:          clk,
	}
	for _, mod := range mods {
		mod(&cfg)
	}

	c, err := New(cfg, "test")
	require.NoError(t, err)
	c.Recreate()
	c.token = "test-token"
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newTestServer(t *testing.T) *mock.Server {
	t.Helper()
	srv := mock.NewServer()
	t.Cleanup(srv.Close)
	return srv
}
