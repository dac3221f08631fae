package strategy

import (
	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/infrastructure/strategy/stock"
)

// NewStockRegistryWithDefaults creates a sealed registry with the built-in verticals:
// retail and automotive count stock, real estate does not.
func NewStockRegistryWithDefaults() (*StockStrategyRegistry, error) {
	r := NewStockStrategyRegistry()

	standard := stock.NewStandardStockStrategy()
	if err := r.Register(catalog.VerticalRetail, standard); err != nil {
		return nil, err
	}
	if err := r.Register(catalog.VerticalAutomotive, standard); err != nil {
		return nil, err
	}
	if err := r.Register(catalog.VerticalRealEstate, stock.NewNoStockStrategy()); err != nil {
		return nil, err
	}

	r.Seal()
	return r, nil
}
