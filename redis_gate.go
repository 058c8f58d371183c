package httpclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisGateKey is the key used by RedisGlobalGate when none is given.
const DefaultRedisGateKey = "discord:ratelimit:global"

// RedisGlobalGate shares the global rate-limit state between processes that
// use the same bot token. The closed state is a key with a TTL equal to the
// retry_after announced by Discord, so a crashed process never leaves the gate
// closed.
type RedisGlobalGate struct {
	client       redis.UniversalClient
	key          string
	pollInterval time.Duration
}

// RedisGateOption configures a RedisGlobalGate.
type RedisGateOption func(*RedisGlobalGate)

// WithRedisGateKey overrides the key holding the gate state.
func WithRedisGateKey(key string) RedisGateOption {
	return func(g *RedisGlobalGate) {
		if key != "" {
			g.key = key
		}
	}
}

// WithRedisGatePollInterval sets the upper bound between two state checks
// while the gate is closed.
func WithRedisGatePollInterval(d time.Duration) RedisGateOption {
	return func(g *RedisGlobalGate) {
		if d > 0 {
			g.pollInterval = d
		}
	}
}

// NewRedisGlobalGate creates a gate stored in Redis.
func NewRedisGlobalGate(client redis.UniversalClient, opts ...RedisGateOption) *RedisGlobalGate {
	g := &RedisGlobalGate{
		client:       client,
		key:          DefaultRedisGateKey,
		pollInterval: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Wait polls the gate key until it expires or is deleted.
func (g *RedisGlobalGate) Wait(ctx context.Context) error {
	for {
		ttl, err := g.client.PTTL(ctx, g.key).Result()
		if err != nil {
			return fmt.Errorf("global gate: read %s: %w", g.key, err)
		}
		// -2: no key, -1: key without expiry. Neither is a closed gate.
		if ttl <= 0 {
			return nil
		}

		wait := min(ttl, g.pollInterval)
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Trip closes the gate for retryAfter.
func (g *RedisGlobalGate) Trip(ctx context.Context, retryAfter time.Duration) error {
	if retryAfter <= 0 {
		return nil
	}
	if err := g.client.Set(ctx, g.key, "1", retryAfter).Err(); err != nil {
		return fmt.Errorf("global gate: close %s: %w", g.key, err)
	}
	return nil
}

// Reset reopens the gate.
func (g *RedisGlobalGate) Reset(ctx context.Context) error {
	if err := g.client.Del(ctx, g.key).Err(); err != nil {
		return fmt.Errorf("global gate: open %s: %w", g.key, err)
	}
	return nil
}
