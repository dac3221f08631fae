package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReservationOption configures a ReservationStore
type ReservationOption func(*ReservationStore)

// WithDefaultTTL sets the hold duration used when Reserve gets a non-positive TTL
func WithDefaultTTL(ttl time.Duration) ReservationOption {
	return func(s *ReservationStore) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) ReservationOption {
	return func(s *ReservationStore) {
		if now != nil {
			s.now = now
		}
	}
}

// ReservationStore holds stock for orders between payment and shipment.
// Reserving takes the quantity out of the product's stock counter right away;
// releasing or expiring puts it back. Each reservation resolves at most once.
type ReservationStore struct {
	repos      TransactionalRepositories
	ledger     *StockLedger
	defaultTTL time.Duration
	now        func() time.Time
	logger     *zap.Logger
	pending    []shared.DomainEvent
}

// NewReservationStore creates a store over the given repositories
func NewReservationStore(repos TransactionalRepositories, logger *zap.Logger, opts ...ReservationOption) *ReservationStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ReservationStore{
		repos:      repos,
		ledger:     NewStockLedger(repos, logger),
		defaultTTL: inventory.DefaultReservationTTL,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reserve atomically checks availability and takes quantity out of stock for orderRef.
// The availability check and the decrement are one conditional update, so two
// concurrent reservations can never oversell.
func (s *ReservationStore) Reserve(
	ctx context.Context,
	product *catalog.Product,
	quantity int64,
	orderRef string,
	ttl time.Duration,
) (*inventory.StockReservation, error) {
	if quantity <= 0 {
		return nil, shared.NewValidationError("quantity", "Reservation quantity must be positive")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	reservation, err := inventory.NewStockReservation(product.TenantID, product.ID, quantity, orderRef, s.now().Add(ttl))
	if err != nil {
		return nil, err
	}

	level, err := s.repos.ProductRepo().DecrementIfAvailable(ctx, product.ID, quantity)
	if errors.Is(err, shared.ErrInsufficientStock) {
		return nil, s.ledger.shortage(ctx, product, quantity)
	}
	if err != nil {
		return nil, fmt.Errorf("reserve stock of product %s: %w", product.ID, err)
	}
	product.Stock = level

	if err := s.repos.ReservationRepo().Create(ctx, reservation); err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	if _, err := s.ledger.Record(ctx, product, -quantity, inventory.ReasonReservation, orderRef); err != nil {
		return nil, err
	}

	s.pending = append(s.pending, inventory.NewStockReservationEvent(inventory.EventTypeStockReserved, reservation))
	s.logger.Debug("Stock reserved",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("product_id", product.ID.String()),
		zap.Int64("quantity", quantity),
		zap.String("order_ref", orderRef),
	)
	return reservation, nil
}

// Convert marks a reservation as fulfilled by a shipment.
// Counter and ledger are left to the stock strategy.
func (s *ReservationStore) Convert(ctx context.Context, reservation *inventory.StockReservation) error {
	if err := s.resolve(ctx, reservation, "convert", reservation.Convert); err != nil {
		return err
	}
	s.pending = append(s.pending, inventory.NewStockReservationEvent(inventory.EventTypeStockReservationConverted, reservation))
	return nil
}

// Release cancels a reservation and restores its quantity
func (s *ReservationStore) Release(ctx context.Context, reservation *inventory.StockReservation) error {
	if err := s.resolve(ctx, reservation, "release", reservation.Release); err != nil {
		return err
	}
	if err := s.restore(ctx, reservation); err != nil {
		return err
	}
	s.pending = append(s.pending, inventory.NewStockReservationEvent(inventory.EventTypeStockReservationReleased, reservation))
	return nil
}

// Expire releases a reservation whose hold ran out. Unexpired reservations are rejected.
func (s *ReservationStore) Expire(ctx context.Context, reservation *inventory.StockReservation) error {
	if err := s.resolve(ctx, reservation, "expire", reservation.Expire); err != nil {
		return err
	}
	if err := s.restore(ctx, reservation); err != nil {
		return err
	}
	s.pending = append(s.pending, inventory.NewStockReservationEvent(inventory.EventTypeStockReservationExpired, reservation))
	return nil
}

// ForOrder returns every reservation of an order
func (s *ReservationStore) ForOrder(ctx context.Context, tenantID uuid.UUID, orderRef string) ([]inventory.StockReservation, error) {
	return s.repos.ReservationRepo().FindByOrderRef(ctx, tenantID, orderRef)
}

// Outstanding returns the reservations of an order that are still holding stock
func (s *ReservationStore) Outstanding(ctx context.Context, tenantID uuid.UUID, orderRef string) ([]inventory.StockReservation, error) {
	return s.repos.ReservationRepo().FindOutstanding(ctx, tenantID, orderRef)
}

// Expired returns reserved reservations whose hold ended before now
func (s *ReservationStore) Expired(ctx context.Context, now time.Time, limit int) ([]inventory.StockReservation, error) {
	return s.repos.ReservationRepo().FindExpired(ctx, now, limit)
}

// PendingEvents returns the events raised since the last call and forgets them
func (s *ReservationStore) PendingEvents() []shared.DomainEvent {
	events := append(s.pending, s.ledger.PendingEvents()...)
	s.pending = nil
	return events
}

// resolve applies a status change in memory, then persists it only if the
// stored row is still reserved. On conflict the in-memory copy is refreshed.
func (s *ReservationStore) resolve(
	ctx context.Context,
	reservation *inventory.StockReservation,
	operation string,
	change func(now time.Time) error,
) error {
	before := *reservation
	if err := change(s.now()); err != nil {
		return err
	}

	err := s.repos.ReservationRepo().UpdateStatusIfReserved(ctx, reservation)
	if err == nil {
		return nil
	}

	*reservation = before
	if !errors.Is(err, shared.ErrReservationConflict) {
		return fmt.Errorf("%s reservation %s: %w", operation, reservation.ID, err)
	}
	status := "unknown"
	if stored, findErr := s.repos.ReservationRepo().FindByID(ctx, reservation.ID); findErr == nil {
		*reservation = *stored
		status = stored.Status.String()
	}
	return &shared.ReservationConflictError{
		ReservationID: reservation.ID,
		Status:        status,
		Operation:     operation,
	}
}

func (s *ReservationStore) restore(ctx context.Context, reservation *inventory.StockReservation) error {
	products := s.repos.ProductRepo()
	level, err := products.AdjustStock(ctx, reservation.ProductID, reservation.Quantity)
	if err != nil {
		return fmt.Errorf("restore stock of product %s: %w", reservation.ProductID, err)
	}

	movement, err := inventory.NewStockMovement(reservation.TenantID, reservation.ProductID,
		reservation.Quantity, inventory.ReasonReservationRelease, reservation.OrderRef)
	if err != nil {
		return err
	}
	if err := s.repos.MovementRepo().Append(ctx, movement); err != nil {
		return fmt.Errorf("append stock movement: %w", err)
	}

	s.logger.Debug("Reserved stock restored",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("product_id", reservation.ProductID.String()),
		zap.Int64("quantity", reservation.Quantity),
		zap.Int64("stock", level),
		zap.String("status", reservation.Status.String()),
	)
	return nil
}
