package lock

import (
	"context"
	"strings"
	"sync"
)

// LocalDocumentLocker serializes work per key inside one process.
// Entries are reference counted and dropped once the last holder leaves.
type LocalDocumentLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalDocumentLocker creates an in-process locker
func NewLocalDocumentLocker() *LocalDocumentLocker {
	return &LocalDocumentLocker{locks: make(map[string]*keyedLock)}
}

// WithLock runs fn while holding the lock named key.
// Waiting honours ctx cancellation.
func (l *LocalDocumentLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}

	entry := l.acquireEntry(key)
	defer l.releaseEntry(key, entry)

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-entry.ch }()

	return fn(ctx)
}

func (l *LocalDocumentLocker) acquireEntry(key string) *keyedLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.locks[key]
	if !ok {
		entry = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (l *LocalDocumentLocker) releaseEntry(key string, entry *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}

// size reports the number of tracked keys
func (l *LocalDocumentLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
