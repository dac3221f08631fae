package strategy

import (
	"context"

	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/domain/inventory"
)

// Availability is the outcome of a stock availability check
type Availability struct {
	Available bool
	Message   string
	Level     int64
}

// StockStrategy defines how a business vertical accounts for stock.
// Operations that mutate stock go through the StockKeeper of the caller's
// unit of work.
type StockStrategy interface {
	Strategy

	// CheckAvailability reports whether quantity units of product can be sold
	CheckAvailability(ctx context.Context, product *catalog.Product, quantity int64) Availability

	// ReserveStock holds quantity units for the order identified by orderRef.
	// Strategies without stock semantics return a nil reservation.
	ReserveStock(ctx context.Context, keeper inventory.StockKeeper, product *catalog.Product, quantity int64, orderRef string) (*inventory.StockReservation, error)

	// DecrementStock records a sale. When reservation is non-nil the units were
	// already taken from the counter at reservation time.
	DecrementStock(ctx context.Context, keeper inventory.StockKeeper, product *catalog.Product, quantity int64, reservation *inventory.StockReservation, reference string) error

	// IncrementStock puts units back into stock (restock, return, adjustment)
	IncrementStock(ctx context.Context, keeper inventory.StockKeeper, product *catalog.Product, quantity int64, reason inventory.MovementReason, reference string) error

	// StockLevel returns the sellable level reported for product
	StockLevel(product *catalog.Product) int64
}
