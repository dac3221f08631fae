// Package cache holds the delivery-key stores that let event handlers skip
// redelivered events.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
)

// pruneEvery is the number of claims between sweeps of expired keys
const pruneEvery = 256

// MemoryIdempotencyStore keeps delivery keys in a map. It suits a single
// instance; keys do not survive a restart.
type MemoryIdempotencyStore struct {
	mu     sync.Mutex
	keys   map[string]time.Time
	claims int
	now    func() time.Time
}

// NewMemoryIdempotencyStore creates an empty in-memory store
func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		keys: make(map[string]time.Time),
		now:  time.Now,
	}
}

// SetClock replaces time.Now, for tests
func (s *MemoryIdempotencyStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Claim records key until now+ttl. An expired key can be claimed again.
func (s *MemoryIdempotencyStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.claims++
	if s.claims%pruneEvery == 0 {
		s.prune(now)
	}

	if expiresAt, held := s.keys[key]; held && now.Before(expiresAt) {
		return false, nil
	}
	s.keys[key] = now.Add(ttl)
	return true, nil
}

// Release forgets key
func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

// Len returns the number of keys held, expired ones included until the next prune
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

func (s *MemoryIdempotencyStore) prune(now time.Time) {
	for key, expiresAt := range s.keys {
		if !now.Before(expiresAt) {
			delete(s.keys, key)
		}
	}
}

var _ shared.IdempotencyStore = (*MemoryIdempotencyStore)(nil)
