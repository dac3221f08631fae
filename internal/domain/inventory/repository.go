package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StockMovementRepository is the append-only store for ledger movements.
// It deliberately has no update or delete operations.
type StockMovementRepository interface {
	// Append persists a new movement
	Append(ctx context.Context, movement *StockMovement) error

	// FindByProduct returns the movements of a product, oldest first
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]StockMovement, error)

	// FindByReference returns the movements of a tenant recorded with the given reference
	FindByReference(ctx context.Context, tenantID uuid.UUID, reference string) ([]StockMovement, error)

	// SumByProduct returns the net quantity of a product's movements
	SumByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
}

// StockReservationRepository persists stock reservations
type StockReservationRepository interface {
	// FindByID finds a reservation by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*StockReservation, error)

	// FindByOrderRef returns every reservation of an order, oldest first
	FindByOrderRef(ctx context.Context, tenantID uuid.UUID, orderRef string) ([]StockReservation, error)

	// FindOutstanding returns the reservations of an order still in the reserved status
	FindOutstanding(ctx context.Context, tenantID uuid.UUID, orderRef string) ([]StockReservation, error)

	// FindExpired returns reserved reservations whose expiry is before now, oldest expiry first.
	// A non-positive limit returns all of them.
	FindExpired(ctx context.Context, now time.Time, limit int) ([]StockReservation, error)

	// Create inserts a new reservation
	Create(ctx context.Context, reservation *StockReservation) error

	// UpdateStatusIfReserved persists a resolved reservation only if the stored row
	// is still reserved. It returns shared.ErrReservationConflict otherwise.
	UpdateStatusIfReserved(ctx context.Context, reservation *StockReservation) error
}
