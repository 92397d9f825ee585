package locking

import (
	"context"
	"fmt"
	"sync"

	portssvc "github.com/SscSPs/funds_transfer_app/internal/core/ports/services"
)

// KeyedLocker serializes work per key inside one process.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sem     chan struct{}
	waiters int
}

// NewKeyedLocker creates an in-process IdempotencyLocker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyedLock)}
}

var _ portssvc.IdempotencyLocker = (*KeyedLocker)(nil)

// Lock blocks until key is free or ctx is done. Entries are dropped once nobody holds or waits for them.
func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &keyedLock{sem: make(chan struct{}, 1)}
		l.locks[key] = lk
	}
	lk.waiters++
	l.mu.Unlock()

	select {
	case lk.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, lk, false)
		return nil, fmt.Errorf("waiting for lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, lk, true) })
	}, nil
}

func (l *KeyedLocker) release(key string, lk *keyedLock, held bool) {
	if held {
		<-lk.sem
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.waiters--
	if lk.waiters == 0 {
		delete(l.locks, key)
	}
}

// size reports how many keys are tracked.
func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
