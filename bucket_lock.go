package httpclient

import (
	"context"
	"sync"
	"time"

	"gitlab.citydrive.tech/back-end/go/pkg/discord-http-client/internal/clock"
)

// LockRegistry maps rate-limit bucket keys to mutexes. Entries are created on
// demand and removed as soon as no caller, holder or pending deferred release
// references them.
type LockRegistry struct {
	mu    sync.Mutex
	locks map[string]*bucketLock
}

type bucketLock struct {
	// sem has capacity 1; a successful send means the lock is held. Blocked
	// senders are woken in arrival order.
	sem  chan struct{}
	refs int
}

// NewLockRegistry creates an empty registry.
func NewLockRegistry() *LockRegistry {
	return &LockRegistry{locks: make(map[string]*bucketLock)}
}

// Acquire blocks until the lock for key is held or ctx is done.
func (r *LockRegistry) Acquire(ctx context.Context, key string) (*BucketLease, error) {
	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &bucketLock{sem: make(chan struct{}, 1)}
		r.locks[key] = l
	}
	l.refs++
	r.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return &BucketLease{registry: r, key: key, lock: l}, nil
	case <-ctx.Done():
		r.unref(key, l)
		return nil, ctx.Err()
	}
}

// Len returns the number of live bucket entries.
func (r *LockRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

func (r *LockRegistry) unref(key string, l *bucketLock) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.refs--
	if l.refs <= 0 && r.locks[key] == l {
		delete(r.locks, key)
	}
}

// BucketLease is a held bucket lock.
type BucketLease struct {
	registry *LockRegistry
	key      string
	lock     *bucketLock

	mu       sync.Mutex
	deferred bool
	once     sync.Once
}

// Key returns the bucket key the lease holds.
func (l *BucketLease) Key() string {
	return l.key
}

// Release unlocks the bucket unless the release was deferred with
// releaseAfter. Safe to call more than once.
func (l *BucketLease) Release() {
	l.mu.Lock()
	deferred := l.deferred
	l.mu.Unlock()
	if deferred {
		return
	}
	l.unlock()
}

// Deferred reports whether the release has been handed to a timer.
func (l *BucketLease) Deferred() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.deferred
}

// releaseAfter hands the release to a timer firing after d, so that the next
// queued caller waits out the exhausted rate-limit window.
func (l *BucketLease) releaseAfter(clk clock.Clock, d time.Duration) {
	l.mu.Lock()
	if l.deferred {
		l.mu.Unlock()
		return
	}
	l.deferred = true
	l.mu.Unlock()

	clk.AfterFunc(d, l.unlock)
}

func (l *BucketLease) unlock() {
	l.once.Do(func() {
		<-l.lock.sem
		l.registry.unref(l.key, l.lock)
	})
}
