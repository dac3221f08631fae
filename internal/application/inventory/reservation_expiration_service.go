package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSweepBatchSize is the number of expired reservations loaded per query
const DefaultSweepBatchSize = 100

// ReservationExpirationService returns the stock of reservations whose hold ran out
type ReservationExpirationService struct {
	scope     TransactionScope
	publisher shared.EventPublisher
	batchSize int
	now       func() time.Time
	logger    *zap.Logger
}

// NewReservationExpirationService creates a new ReservationExpirationService
func NewReservationExpirationService(
	scope TransactionScope,
	publisher shared.EventPublisher,
	batchSize int,
	logger *zap.Logger,
) *ReservationExpirationService {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationExpirationService{
		scope:     scope,
		publisher: publisher,
		batchSize: batchSize,
		now:       time.Now,
		logger:    logger,
	}
}

// SetClock replaces time.Now, for tests
func (s *ReservationExpirationService) SetClock(now func() time.Time) {
	s.now = now
}

// ExpiredReservationStats contains statistics about one sweep
type ExpiredReservationStats struct {
	TotalExpired   int       `json:"total_expired"`
	SuccessExpired int       `json:"success_expired"`
	Conflicts      int       `json:"conflicts"`
	Failed         int       `json:"failed"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// ExpireOverdue expires every reserved reservation whose hold ended.
// Each reservation is expired in its own transaction; one that was resolved
// concurrently counts as a conflict and is left alone.
func (s *ReservationExpirationService) ExpireOverdue(ctx context.Context) (*ExpiredReservationStats, error) {
	now := s.now()
	stats := &ExpiredReservationStats{ProcessedAt: now}
	seen := make(map[uuid.UUID]struct{})

	for {
		var batch []inventory.StockReservation
		err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			var findErr error
			batch, findErr = repos.ReservationRepo().FindExpired(ctx, now, s.batchSize)
			return findErr
		})
		if err != nil {
			s.logger.Error("Failed to find expired reservations", zap.Error(err))
			return nil, err
		}

		fresh := 0
		for i := range batch {
			r := batch[i]
			if _, done := seen[r.ID]; done {
				continue
			}
			seen[r.ID] = struct{}{}
			fresh++
			stats.TotalExpired++
			s.expireOne(ctx, &r, now, stats)
		}

		if fresh == 0 || len(batch) < s.batchSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
	}

	if stats.TotalExpired == 0 {
		s.logger.Debug("No expired stock reservations found")
		return stats, nil
	}

	s.logger.Info("Completed expired reservation sweep",
		zap.Int("total", stats.TotalExpired),
		zap.Int("expired", stats.SuccessExpired),
		zap.Int("conflicts", stats.Conflicts),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (s *ReservationExpirationService) expireOne(ctx context.Context, r *inventory.StockReservation, now time.Time, stats *ExpiredReservationStats) {
	var events []shared.DomainEvent
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		store := NewReservationStore(repos, s.logger, WithClock(func() time.Time { return now }))
		if err := store.Expire(ctx, r); err != nil {
			return err
		}
		events = store.PendingEvents()
		return nil
	})

	switch {
	case err == nil:
		stats.SuccessExpired++
	case errors.Is(err, shared.ErrReservationConflict):
		stats.Conflicts++
		s.logger.Debug("Reservation resolved concurrently, skipping",
			zap.String("reservation_id", r.ID.String()),
			zap.String("order_ref", r.OrderRef),
		)
		return
	default:
		stats.Failed++
		s.logger.Error("Failed to expire reservation",
			zap.String("reservation_id", r.ID.String()),
			zap.String("order_ref", r.OrderRef),
			zap.Error(err),
		)
		return
	}

	if s.publisher != nil && len(events) > 0 {
		if err := s.publisher.Publish(ctx, events...); err != nil {
			s.logger.Warn("Failed to publish reservation expiry events",
				zap.String("reservation_id", r.ID.String()),
				zap.Error(err),
			)
		}
	}
}
