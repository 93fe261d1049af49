package reconcile

import (
	"context"
	"sync"
)

// Locker provides mutual exclusion for reconciliations of the same
// workflow. Nothing else serializes a dev-mode sync racing a deploy, so the
// reconciler holds the lock for the whole diff-and-apply sequence and
// releases it on every exit path.
type Locker interface {
	// Acquire blocks until the lock for key is held or ctx is done. The
	// returned release function must always be called.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MemoryLocker implements Locker with in-process semaphores. Sufficient for
// a single-instance deployment; multi-instance setups use the redis locker.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]chan struct{})}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()

	sem, ok := l.locks[key]
	if !ok {
		sem = make(chan struct{}, 1)
		l.locks[key] = sem
	}

	l.mu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
