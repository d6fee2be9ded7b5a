package deployment

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// LockManager hands out one single-slot semaphore per key so that deploy
// cycles for the same repository and unit run one at a time. Callers that
// find the slot taken wait in line.
type LockManager struct {
	mu    sync.Mutex                     // Protects the locks map
	locks map[string]*semaphore.Weighted // Per-key slots
}

// NewLockManager creates a new lock manager
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]*semaphore.Weighted),
	}
}

func (lm *LockManager) slot(key string) *semaphore.Weighted {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	sem, ok := lm.locks[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		lm.locks[key] = sem
	}
	return sem
}

// Acquire blocks until key is free or ctx is done. The returned func
// releases the lock.
func (lm *LockManager) Acquire(ctx context.Context, key string) (func(), error) {
	sem := lm.slot(key)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}

// TryAcquire takes the lock only if it is free.
func (lm *LockManager) TryAcquire(key string) (func(), bool) {
	sem := lm.slot(key)
	if !sem.TryAcquire(1) {
		return nil, false
	}
	return func() { sem.Release(1) }, true
}
