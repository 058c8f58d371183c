package httpclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.citydrive.tech/back-end/go/pkg/discord-http-client/internal/clock"
)

func waitAsync(ctx context.Context, gate GlobalGate) <-chan error {
	done := make(chan error, 1)
	go func() { done <- gate.Wait(ctx) }()
	return done
}

func TestMemoryGlobalGate_TripAndReopen(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(0, 0))
	gate := newMemoryGlobalGate(clk)
	ctx := context.Background()

	assert.True(t, gate.IsOpen())
	require.NoError(t, gate.Wait(ctx))

	require.NoError(t, gate.Trip(ctx, 3*time.Second))
	assert.False(t, gate.IsOpen())

	done := waitAsync(ctx, gate)
	select {
	case <-done:
		t.Fatal("wait must block while the gate is closed")
	case <-time.After(30 * time.Millisecond):
	}

	clk.Advance(3 * time.Second)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("gate did not reopen after retry_after")
	}
	assert.True(t, gate.IsOpen())
}

func TestMemoryGlobalGate_Reset(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(0, 0))
	gate := newMemoryGlobalGate(clk)
	ctx := context.Background()

	require.NoError(t, gate.Trip(ctx, time.Minute))
	done := waitAsync(ctx, gate)

	require.NoError(t, gate.Reset(ctx))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reset did not reopen the gate")
	}
	assert.Equal(t, 0, clk.Pending(), "reset must stop the reopen timer")
}

func TestMemoryGlobalGate_RetripExtends(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(0, 0))
	gate := newMemoryGlobalGate(clk)
	ctx := context.Background()

	require.NoError(t, gate.Trip(ctx, time.Second))
	require.NoError(t, gate.Trip(ctx, 5*time.Second))

	clk.Advance(time.Second)
	assert.False(t, gate.IsOpen())

	clk.Advance(4 * time.Second)
	assert.True(t, gate.IsOpen())
}

func TestMemoryGlobalGate_NonPositiveTripIsNoop(t *testing.T) {
	t.Parallel()

	gate := NewMemoryGlobalGate()
	require.NoError(t, gate.Trip(context.Background(), 0))
	assert.True(t, gate.IsOpen())
}

func TestMemoryGlobalGate_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	gate := newMemoryGlobalGate(clock.NewManual(time.Unix(0, 0)))
	require.NoError(t, gate.Trip(context.Background(), time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, gate.Wait(ctx), context.Canceled)
}

func newRedisGate(t *testing.T) (*RedisGlobalGate, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisGlobalGate(client,
		WithRedisGateKey("test:global"),
		WithRedisGatePollInterval(5*time.Millisecond),
	), mr
}

func TestRedisGlobalGate_TripAndExpire(t *testing.T) {
	t.Parallel()

	gate, mr := newRedisGate(t)
	ctx := context.Background()

	require.NoError(t, gate.Wait(ctx))

	require.NoError(t, gate.Trip(ctx, 2*time.Second))
	assert.True(t, mr.Exists("test:global"))

	done := waitAsync(ctx, gate)
	select {
	case <-done:
		t.Fatal("wait must block while the key is alive")
	case <-time.After(30 * time.Millisecond):
	}

	mr.FastForward(2 * time.Second)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("gate did not reopen after the key expired")
	}
}

func TestRedisGlobalGate_Reset(t *testing.T) {
	t.Parallel()

	gate, mr := newRedisGate(t)
	ctx := context.Background()

	require.NoError(t, gate.Trip(ctx, time.Minute))
	require.NoError(t, gate.Reset(ctx))
	assert.False(t, mr.Exists("test:global"))
	require.NoError(t, gate.Wait(ctx))
}

func TestRedisGlobalGate_WaitHonoursContext(t *testing.T) {
	t.Parallel()

	gate, _ := newRedisGate(t)
	require.NoError(t, gate.Trip(context.Background(), time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, gate.Wait(ctx), context.DeadlineExceeded)
}

func TestRedisGlobalGate_SharedBetweenClients(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	newGate := func() *RedisGlobalGate {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewRedisGlobalGate(client, WithRedisGatePollInterval(5*time.Millisecond))
	}
	a, b := newGate(), newGate()

	require.NoError(t, a.Trip(context.Background(), time.Minute))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, b.Wait(ctx), context.DeadlineExceeded)

	require.NoError(t, a.Reset(context.Background()))
	require.NoError(t, b.Wait(context.Background()))
}
