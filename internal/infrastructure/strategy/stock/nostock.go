package stock

import (
	"context"

	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/shared/strategy"
)

// Unlimited is the level reported for products that do not track stock
const Unlimited int64 = 999999

// NoStockStrategy is used for unique or intangible goods such as real estate
// and services. Every operation succeeds without touching stock.
type NoStockStrategy struct {
	strategy.Descriptor
}

// NewNoStockStrategy creates a new no-stock strategy
func NewNoStockStrategy() *NoStockStrategy {
	return &NoStockStrategy{
		Descriptor: strategy.Describe("no_stock", "No stock tracking, always available"),
	}
}

func (s *NoStockStrategy) CheckAvailability(ctx context.Context, product *catalog.Product, quantity int64) strategy.Availability {
	return strategy.Availability{Available: true, Message: "Available", Level: Unlimited}
}

func (s *NoStockStrategy) ReserveStock(ctx context.Context, keeper inventory.StockKeeper, product *catalog.Product, quantity int64, orderRef string) (*inventory.StockReservation, error) {
	return nil, nil
}

func (s *NoStockStrategy) DecrementStock(ctx context.Context, keeper inventory.StockKeeper, product *catalog.Product, quantity int64, reservation *inventory.StockReservation, reference string) error {
	return nil
}

func (s *NoStockStrategy) IncrementStock(ctx context.Context, keeper inventory.StockKeeper, product *catalog.Product, quantity int64, reason inventory.MovementReason, reference string) error {
	return nil
}

func (s *NoStockStrategy) StockLevel(product *catalog.Product) int64 {
	return Unlimited
}

var _ strategy.StockStrategy = (*NoStockStrategy)(nil)
