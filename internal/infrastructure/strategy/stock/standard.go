package stock

import (
	"context"
	"fmt"

	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/strategy"
)

// StandardStockStrategy counts sellable units per product and holds them
// with reservations between payment and shipment
type StandardStockStrategy struct {
	strategy.Descriptor
}

// NewStandardStockStrategy creates a new standard stock strategy
func NewStandardStockStrategy() *StandardStockStrategy {
	return &StandardStockStrategy{
		Descriptor: strategy.Describe("standard", "Quantity-tracked stock with reservations"),
	}
}

// CheckAvailability compares the requested quantity with the stock counter
func (s *StandardStockStrategy) CheckAvailability(ctx context.Context, product *catalog.Product, quantity int64) strategy.Availability {
	if product.HasStock(quantity) {
		return strategy.Availability{Available: true, Level: product.Stock}
	}
	return strategy.Availability{
		Available: false,
		Message:   fmt.Sprintf("Only %d available", product.Stock),
		Level:     product.Stock,
	}
}

// ReserveStock takes quantity out of sellable stock for the order
func (s *StandardStockStrategy) ReserveStock(
	ctx context.Context,
	keeper inventory.StockKeeper,
	product *catalog.Product,
	quantity int64,
	orderRef string,
) (*inventory.StockReservation, error) {
	if quantity <= 0 {
		return nil, shared.NewValidationError("quantity", "Quantity must be positive")
	}
	return keeper.Reserve(ctx, product, quantity, orderRef)
}

// DecrementStock records a sale. With a reservation the units already left the
// counter, so the hold is closed and the sale is posted without another decrement.
func (s *StandardStockStrategy) DecrementStock(
	ctx context.Context,
	keeper inventory.StockKeeper,
	product *catalog.Product,
	quantity int64,
	reservation *inventory.StockReservation,
	reference string,
) error {
	if quantity <= 0 {
		return shared.NewValidationError("quantity", "Quantity must be positive")
	}

	if reservation == nil {
		_, err := keeper.Adjust(ctx, product, -quantity, inventory.ReasonSale, reference)
		return err
	}

	if reservation.Quantity != quantity {
		return shared.NewValidationError("quantity",
			fmt.Sprintf("Quantity %d does not match reserved quantity %d", quantity, reservation.Quantity))
	}
	if err := keeper.Convert(ctx, reservation); err != nil {
		return err
	}
	if _, err := keeper.Record(ctx, product, quantity, inventory.ReasonReservationRelease, reference); err != nil {
		return err
	}
	_, err := keeper.Record(ctx, product, -quantity, inventory.ReasonSale, reference)
	return err
}

// IncrementStock puts units back into stock. Only inbound reasons are accepted.
func (s *StandardStockStrategy) IncrementStock(
	ctx context.Context,
	keeper inventory.StockKeeper,
	product *catalog.Product,
	quantity int64,
	reason inventory.MovementReason,
	reference string,
) error {
	if quantity <= 0 {
		return shared.NewValidationError("quantity", "Quantity must be positive")
	}
	switch reason {
	case inventory.ReasonReturn, inventory.ReasonRestock, inventory.ReasonAdjustment:
	default:
		return shared.NewValidationError("reason", fmt.Sprintf("Reason '%s' cannot increase stock", reason))
	}
	_, err := keeper.Adjust(ctx, product, quantity, reason, reference)
	return err
}

// StockLevel returns the stock counter
func (s *StandardStockStrategy) StockLevel(product *catalog.Product) int64 {
	return product.Stock
}

var _ strategy.StockStrategy = (*StandardStockStrategy)(nil)
