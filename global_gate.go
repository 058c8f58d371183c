package httpclient

import (
	"context"
	"sync"
	"time"

	"gitlab.citydrive.tech/back-end/go/pkg/discord-http-client/internal/clock"
)

// GlobalGate pauses every outgoing request while Discord's global rate limit
// is in effect. A gate belongs to a Client (or to a set of clients that
// deliberately share one token); it is never package-level state.
type GlobalGate interface {
	// Wait blocks while the gate is closed.
	Wait(ctx context.Context) error

	// Trip closes the gate. The gate reopens on its own after retryAfter
	// even if Reset is never called.
	Trip(ctx context.Context, retryAfter time.Duration) error

	// Reset reopens the gate.
	Reset(ctx context.Context) error
}

// MemoryGlobalGate is the in-process GlobalGate used by default.
type MemoryGlobalGate struct {
	clock clock.Clock

	mu    sync.Mutex
	ready chan struct{} // closed while the gate is open
	stop  func() bool
}

// NewMemoryGlobalGate returns an open gate.
func NewMemoryGlobalGate() *MemoryGlobalGate {
	return newMemoryGlobalGate(clock.Real{})
}

func newMemoryGlobalGate(clk clock.Clock) *MemoryGlobalGate {
	ready := make(chan struct{})
	close(ready)
	return &MemoryGlobalGate{clock: clk, ready: ready}
}

// Wait blocks until the gate is open or ctx is done.
func (g *MemoryGlobalGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ready := g.ready
	g.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trip closes the gate and arms a timer that reopens it after retryAfter.
func (g *MemoryGlobalGate) Trip(_ context.Context, retryAfter time.Duration) error {
	if retryAfter <= 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	select {
	case <-g.ready:
		g.ready = make(chan struct{})
	default:
	}

	if g.stop != nil {
		g.stop()
	}
	ready := g.ready
	g.stop = g.clock.AfterFunc(retryAfter, func() { g.open(ready) })
	return nil
}

// Reset reopens the gate.
func (g *MemoryGlobalGate) Reset(_ context.Context) error {
	g.mu.Lock()
	ready := g.ready
	if g.stop != nil {
		g.stop()
		g.stop = nil
	}
	g.mu.Unlock()

	g.open(ready)
	return nil
}

// IsOpen reports whether requests may currently proceed.
func (g *MemoryGlobalGate) IsOpen() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ready:
		return true
	default:
		return false
	}
}

// open closes ready if it is still the current, unclosed channel.
func (g *MemoryGlobalGate) open(ready chan struct{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ready != ready {
		return
	}
	select {
	case <-ready:
	default:
		close(ready)
	}
}
