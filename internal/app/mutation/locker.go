package mutation

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Locker serializes writes per key. The returned func releases the lock and is safe
// to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// LocalLocker is an in-process Locker backed by one weighted semaphore per key.
type LocalLocker struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{sems: make(map[string]*semaphore.Weighted)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	sem := l.semaphore(key)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { sem.Release(1) }) }, nil
}

func (l *LocalLocker) semaphore(key string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.sems[key]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.sems[key] = sem
	}
	return sem
}
