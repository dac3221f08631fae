package inventory

import (
	"context"

	"github.com/erp/backoffice/internal/domain/catalog"
)

// StockKeeper is the port stock strategies use to touch the ledger and the
// reservation store. Implementations are bound to the caller's unit of work,
// so every call made through one keeper commits or rolls back together.
type StockKeeper interface {
	// Record appends a ledger movement without touching the stock counter
	Record(ctx context.Context, product *catalog.Product, delta int64, reason MovementReason, reference string) (*StockMovement, error)

	// Adjust updates the stock counter by delta and appends the matching movement
	Adjust(ctx context.Context, product *catalog.Product, delta int64, reason MovementReason, reference string) (*StockMovement, error)

	// Reserve atomically takes quantity out of sellable stock and creates a reservation
	Reserve(ctx context.Context, product *catalog.Product, quantity int64, orderRef string) (*StockReservation, error)

	// Convert closes a reservation after shipment
	Convert(ctx context.Context, reservation *StockReservation) error

	// Release closes a reservation and restores its quantity
	Release(ctx context.Context, reservation *StockReservation) error
}
