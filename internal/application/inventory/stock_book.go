package inventory

import (
	"context"
	"time"

	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/shared"
	"go.uber.org/zap"
)

// StockBook is the inventory.StockKeeper handed to stock strategies.
// It binds a ledger and a reservation store to one unit of work.
type StockBook struct {
	ledger       *StockLedger
	reservations *ReservationStore
	ttl          time.Duration
}

// NewStockBook creates a keeper over the repositories of the current unit of work.
// ttl is the hold applied to new reservations; non-positive means the store default.
func NewStockBook(repos TransactionalRepositories, ttl time.Duration, logger *zap.Logger, opts ...ReservationOption) *StockBook {
	store := NewReservationStore(repos, logger, opts...)
	return &StockBook{
		ledger:       store.ledger,
		reservations: store,
		ttl:          ttl,
	}
}

// Ledger exposes the underlying ledger
func (b *StockBook) Ledger() *StockLedger {
	return b.ledger
}

// Reservations exposes the underlying reservation store
func (b *StockBook) Reservations() *ReservationStore {
	return b.reservations
}

func (b *StockBook) Record(ctx context.Context, product *catalog.Product, delta int64, reason inventory.MovementReason, reference string) (*inventory.StockMovement, error) {
	return b.ledger.Record(ctx, product, delta, reason, reference)
}

func (b *StockBook) Adjust(ctx context.Context, product *catalog.Product, delta int64, reason inventory.MovementReason, reference string) (*inventory.StockMovement, error) {
	return b.ledger.Adjust(ctx, product, delta, reason, reference)
}

func (b *StockBook) Reserve(ctx context.Context, product *catalog.Product, quantity int64, orderRef string) (*inventory.StockReservation, error) {
	return b.reservations.Reserve(ctx, product, quantity, orderRef, b.ttl)
}

func (b *StockBook) Convert(ctx context.Context, reservation *inventory.StockReservation) error {
	return b.reservations.Convert(ctx, reservation)
}

func (b *StockBook) Release(ctx context.Context, reservation *inventory.StockReservation) error {
	return b.reservations.Release(ctx, reservation)
}

// PendingEvents drains the events raised through this book
func (b *StockBook) PendingEvents() []shared.DomainEvent {
	return b.reservations.PendingEvents()
}

var _ inventory.StockKeeper = (*StockBook)(nil)
