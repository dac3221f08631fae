package trade

import (
	"fmt"
	"sort"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentType identifies the kind of commercial document
type DocumentType string

const (
	DocumentTypeQuote   DocumentType = "quote"
	DocumentTypeOrder   DocumentType = "order"
	DocumentTypeInvoice DocumentType = "invoice"
)

// NumberPrefix returns the prefix used in document numbers
func (t DocumentType) NumberPrefix() string {
	switch t {
	case DocumentTypeQuote:
		return "QUO"
	case DocumentTypeOrder:
		return "ORD"
	case DocumentTypeInvoice:
		return "INV"
	}
	return "DOC"
}

// FormatDocumentNumber renders a document number such as ORD-20260315-000042.
// The per-tenant day sequence alone keeps numbers unique; no customer segment.
func FormatDocumentNumber(t DocumentType, day time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%06d", t.NumberPrefix(), day.Format("20060102"), seq)
}

// Document holds what quotes, orders and invoices have in common:
// numbering, ownership, ordered line items and cached totals.
type Document struct {
	shared.TenantAggregate
	Number         string
	CustomerID     uuid.UUID
	Items          []LineItem
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	TotalAmount    decimal.Decimal
	Notes          string
	TransitionedAt *time.Time
}

func newDocument(tenantID, customerID, createdBy uuid.UUID) (Document, error) {
	v := &shared.ValidationError{}
	if tenantID == uuid.Nil {
		v.Add("tenant_id", "Tenant is required")
	}
	if customerID == uuid.Nil {
		v.Add("customer_id", "Customer is required")
	}
	if err := v.OrNil(); err != nil {
		return Document{}, err
	}

	return Document{
		TenantAggregate: shared.NewTenantAggregate(tenantID, createdBy),
		CustomerID:      customerID,
		Items:           make([]LineItem, 0),
		Subtotal:        decimal.Zero,
		TaxAmount:       decimal.Zero,
		TotalAmount:     decimal.Zero,
	}, nil
}

// AssignNumber sets the document number. A number is assigned once.
func (d *Document) AssignNumber(number string) error {
	if d.Number != "" {
		return shared.NewDomainError("NUMBER_ASSIGNED", "Document number is already assigned")
	}
	if number == "" {
		return shared.NewValidationError("number", "Document number cannot be empty")
	}
	d.Number = number
	return nil
}

// HasItems reports whether the document has at least one line
func (d *Document) HasItems() bool {
	return len(d.Items) > 0
}

// ItemCount returns the number of lines
func (d *Document) ItemCount() int {
	return len(d.Items)
}

// Item returns the line with the given ID
func (d *Document) Item(itemID uuid.UUID) (*LineItem, bool) {
	for i := range d.Items {
		if d.Items[i].ID == itemID {
			return &d.Items[i], true
		}
	}
	return nil, false
}

// Quantities sums line quantities per product
func (d *Document) Quantities() map[uuid.UUID]int64 {
	out := make(map[uuid.UUID]int64, len(d.Items))
	for _, li := range d.Items {
		out[li.ProductID] += li.Quantity
	}
	return out
}

// Recalculate refreshes the cached totals from the lines
func (d *Document) Recalculate() {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for _, li := range d.Items {
		subtotal = subtotal.Add(li.Subtotal())
		tax = tax.Add(li.TaxAmount())
	}
	d.Subtotal = subtotal
	d.TaxAmount = tax
	d.TotalAmount = subtotal.Add(tax)
}

// SetNotes replaces the free-text notes
func (d *Document) SetNotes(notes string) {
	d.Notes = notes
	d.touch()
}

func (d *Document) addItem(in LineItemInput) (*LineItem, error) {
	item, err := NewLineItem(in, d.nextPosition())
	if err != nil {
		return nil, err
	}
	d.Items = append(d.Items, *item)
	d.Recalculate()
	d.touch()
	return &d.Items[len(d.Items)-1], nil
}

func (d *Document) updateItem(itemID uuid.UUID, in LineItemInput) (*LineItem, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	item, ok := d.Item(itemID)
	if !ok {
		return nil, shared.NewNotFoundError("line item", itemID)
	}
	item.apply(in)
	d.Recalculate()
	d.touch()
	return item, nil
}

func (d *Document) removeItem(itemID uuid.UUID) error {
	for i, li := range d.Items {
		if li.ID == itemID {
			d.Items = append(d.Items[:i], d.Items[i+1:]...)
			d.renumber()
			d.Recalculate()
			d.touch()
			return nil
		}
	}
	return shared.NewNotFoundError("line item", itemID)
}

// CopyItemsFrom replaces the lines with fresh copies of src, keeping their order
func (d *Document) CopyItemsFrom(src *Document) {
	lines := src.SortedItems()
	d.Items = make([]LineItem, 0, len(lines))
	for _, li := range lines {
		d.Items = append(d.Items, li.copyLine())
	}
	d.Recalculate()
}

// SortedItems returns the lines ordered by position
func (d *Document) SortedItems() []LineItem {
	lines := make([]LineItem, len(d.Items))
	copy(lines, d.Items)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Position < lines[j].Position })
	return lines
}

func (d *Document) nextPosition() int {
	max := 0
	for _, li := range d.Items {
		if li.Position > max {
			max = li.Position
		}
	}
	return max + 1
}

func (d *Document) renumber() {
	sort.SliceStable(d.Items, func(i, j int) bool { return d.Items[i].Position < d.Items[j].Position })
	for i := range d.Items {
		d.Items[i].Position = i + 1
	}
}

func (d *Document) markTransitioned() {
	now := time.Now()
	d.TransitionedAt = &now
	d.Touch(now)
}

func (d *Document) touch() {
	d.Touch(time.Now())
}
