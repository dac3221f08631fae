package trade

import (
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Amount precision used for every monetary value on a document
const amountPlaces = 2

// LineItemInput carries the caller-supplied fields of a line item
type LineItemInput struct {
	ProductID    uuid.UUID
	ProductName  string
	Quantity     int64
	UnitPrice    decimal.Decimal
	DiscountRate decimal.Decimal // 0..1
	TaxRate      decimal.Decimal // 0..1
}

// Validate collects field errors of the input
func (in LineItemInput) Validate() error {
	v := &shared.ValidationError{}
	if in.ProductID == uuid.Nil {
		v.Add("product_id", "Product is required")
	}
	if in.Quantity <= 0 {
		v.Add("quantity", "Quantity must be positive")
	}
	if in.UnitPrice.IsNegative() {
		v.Add("unit_price", "Unit price cannot be negative")
	}
	if in.DiscountRate.IsNegative() || in.DiscountRate.GreaterThan(decimal.NewFromInt(1)) {
		v.Add("discount_rate", "Discount rate must be between 0 and 1")
	}
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		v.Add("tax_rate", "Tax rate must be between 0 and 1")
	}
	return v.OrNil()
}

// LineItem is a product line on a quote, order or invoice
type LineItem struct {
	ID           uuid.UUID
	ProductID    uuid.UUID
	ProductName  string
	Quantity     int64
	UnitPrice    decimal.Decimal
	DiscountRate decimal.Decimal
	TaxRate      decimal.Decimal
	Position     int
}

// NewLineItem creates a line item from validated input
func NewLineItem(in LineItemInput, position int) (*LineItem, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &LineItem{
		ID:           uuid.New(),
		ProductID:    in.ProductID,
		ProductName:  in.ProductName,
		Quantity:     in.Quantity,
		UnitPrice:    in.UnitPrice,
		DiscountRate: in.DiscountRate,
		TaxRate:      in.TaxRate,
		Position:     position,
	}, nil
}

// apply overwrites the mutable fields with in
func (li *LineItem) apply(in LineItemInput) {
	li.ProductID = in.ProductID
	li.ProductName = in.ProductName
	li.Quantity = in.Quantity
	li.UnitPrice = in.UnitPrice
	li.DiscountRate = in.DiscountRate
	li.TaxRate = in.TaxRate
}

// Subtotal returns quantity * unit price, net of discount
func (li LineItem) Subtotal() decimal.Decimal {
	gross := li.UnitPrice.Mul(decimal.NewFromInt(li.Quantity))
	return gross.Mul(decimal.NewFromInt(1).Sub(li.DiscountRate)).Round(amountPlaces)
}

// TaxAmount returns the tax on the discounted subtotal
func (li LineItem) TaxAmount() decimal.Decimal {
	return li.Subtotal().Mul(li.TaxRate).Round(amountPlaces)
}

// Total returns subtotal plus tax
func (li LineItem) Total() decimal.Decimal {
	return li.Subtotal().Add(li.TaxAmount())
}

// copyLine returns a fresh line with a new identity and the same values
func (li LineItem) copyLine() LineItem {
	c := li
	c.ID = uuid.New()
	return c
}
