package catalog

import (
	"context"

	"github.com/google/uuid"
)

// ProductRepository defines the product persistence contract used by the stock core
type ProductRepository interface {
	// FindByID finds a product by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)

	// FindByIDs finds multiple products by their IDs
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Product, error)

	// Save creates or updates a product (catalog seeding only)
	Save(ctx context.Context, product *Product) error

	// AdjustStock atomically applies delta to the stock counter and returns the new level
	AdjustStock(ctx context.Context, id uuid.UUID, delta int64) (int64, error)

	// DecrementIfAvailable atomically subtracts quantity only when enough stock remains.
	// It returns shared.ErrInsufficientStock when the condition does not hold.
	DecrementIfAvailable(ctx context.Context, id uuid.UUID, quantity int64) (int64, error)
}
