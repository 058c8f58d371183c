package clock

import (
	"sync"
	"time"
)

// Manual provides a controllable clock for deterministic tests. Timers only
// fire when Advance moves the clock past their deadline.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers map[uint64]*manualTimer
}

type manualTimer struct {
	at time.Time
	ch chan time.Time
	fn func()
}

// NewManual constructs a Manual clock starting at the supplied time.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start.UTC(), timers: make(map[uint64]*manualTimer)}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// After returns a channel that fires when the manual clock advances by d.
func (m *Manual) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	m.mu.Lock()
	if d <= 0 {
		now := m.now
		m.mu.Unlock()
		ch <- now
		return ch
	}
	m.schedule(&manualTimer{at: m.now.Add(d), ch: ch})
	m.mu.Unlock()
	return ch
}

// AfterFunc schedules f to run when the manual clock advances by d. A
// non-positive d runs f synchronously.
func (m *Manual) AfterFunc(d time.Duration, f func()) func() bool {
	m.mu.Lock()
	if d <= 0 {
		m.mu.Unlock()
		f()
		return func() bool { return false }
	}
	id := m.schedule(&manualTimer{at: m.now.Add(d), fn: f})
	m.mu.Unlock()
	return func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.timers[id]; !ok {
			return false
		}
		delete(m.timers, id)
		return true
	}
}

// schedule must be called with m.mu held.
func (m *Manual) schedule(t *manualTimer) uint64 {
	m.seq++
	m.timers[m.seq] = t
	return m.seq
}

// Advance moves time forward by d and fires any due timers. Callbacks
// registered with AfterFunc run after the internal lock is released.
func (m *Manual) Advance(d time.Duration) time.Time {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	var due []func()
	for id, timer := range m.timers {
		if timer.at.After(now) {
			continue
		}
		delete(m.timers, id)
		if timer.fn != nil {
			due = append(due, timer.fn)
			continue
		}
		timer.ch <- now
	}
	m.mu.Unlock()
	for _, fn := range due {
		fn()
	}
	return now
}

// Pending returns the number of scheduled timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}
