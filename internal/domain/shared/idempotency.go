package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers delivery keys so a redelivered event is handled once
type IdempotencyStore interface {
	// Claim records key for ttl. It returns false when the key is already held.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release forgets key, letting a failed delivery be retried
	Release(ctx context.Context, key string) error
}
