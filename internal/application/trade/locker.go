package trade

import (
	"context"

	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/google/uuid"
)

// DocumentLocker serializes work on one document across requests and processes
type DocumentLocker interface {
	// WithLock runs fn while holding the lock named key
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// DocumentLockKey returns the lock name of a document
func DocumentLockKey(docType trade.DocumentType, id uuid.UUID) string {
	return "document:" + string(docType) + ":" + id.String()
}

type unlockedLocker struct{}

func (unlockedLocker) WithLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
