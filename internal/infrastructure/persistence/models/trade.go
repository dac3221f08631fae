package models

import (
	"sort"
	"time"

	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DocumentModel holds the columns shared by the quote, order and invoice tables.
// Lines live in document_items and are loaded by the repositories.
type DocumentModel struct {
	TenantModel
	Number         string          `gorm:"type:varchar(50);index"`
	CustomerID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Notes          string          `gorm:"type:text"`
	TransitionedAt *time.Time
}

func (m *DocumentModel) fromDomain(d *trade.Document) {
	m.SetTenantAggregate(d.TenantAggregate)
	m.Number = d.Number
	m.CustomerID = d.CustomerID
	m.Subtotal = d.Subtotal
	m.TaxAmount = d.TaxAmount
	m.TotalAmount = d.TotalAmount
	m.Notes = d.Notes
	m.TransitionedAt = d.TransitionedAt
}

func (m *DocumentModel) toDomain(items []DocumentItemModel) trade.Document {
	d := trade.Document{
		TenantAggregate: m.TenantAggregate(),
		Number:          m.Number,
		CustomerID:      m.CustomerID,
		Items:           make([]trade.LineItem, 0, len(items)),
		Subtotal:        m.Subtotal,
		TaxAmount:       m.TaxAmount,
		TotalAmount:     m.TotalAmount,
		Notes:           m.Notes,
		TransitionedAt:  m.TransitionedAt,
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Position < items[j].Position })
	for _, it := range items {
		d.Items = append(d.Items, it.ToDomain())
	}
	return d
}

// QuoteModel is the persistence model for the Quote aggregate root.
type QuoteModel struct {
	DocumentModel
	Status           trade.QuoteStatus `gorm:"type:varchar(20);not null;index"`
	ExpiresAt        time.Time         `gorm:"not null;index"`
	ConvertedOrderID *uuid.UUID        `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (QuoteModel) TableName() string {
	return "quotes"
}

// ToDomain converts the persistence model and its lines to a domain Quote.
func (m *QuoteModel) ToDomain(items []DocumentItemModel) *trade.Quote {
	return &trade.Quote{
		Document:         m.DocumentModel.toDomain(items),
		Status:           m.Status,
		ExpiresAt:        m.ExpiresAt,
		ConvertedOrderID: m.ConvertedOrderID,
	}
}

// FromDomain populates the persistence model from a domain Quote.
func (m *QuoteModel) FromDomain(q *trade.Quote) {
	m.DocumentModel.fromDomain(&q.Document)
	m.Status = q.Status
	m.ExpiresAt = q.ExpiresAt
	m.ConvertedOrderID = q.ConvertedOrderID
}

// QuoteModelFromDomain creates a new persistence model from a domain Quote.
func QuoteModelFromDomain(q *trade.Quote) *QuoteModel {
	m := &QuoteModel{}
	m.FromDomain(q)
	return m
}

// OrderModel is the persistence model for the Order aggregate root.
type OrderModel struct {
	DocumentModel
	Status        trade.OrderStatus `gorm:"type:varchar(20);not null;index"`
	SourceQuoteID *uuid.UUID        `gorm:"type:uuid;index"`
	InvoiceID     *uuid.UUID        `gorm:"type:uuid"`
	CancelReason  string            `gorm:"type:varchar(500)"`
	PaidAt        *time.Time
	ShippedAt     *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model, its lines and its history to a domain Order.
func (m *OrderModel) ToDomain(items []DocumentItemModel, history []OrderStatusChangeModel) *trade.Order {
	o := &trade.Order{
		Document:      m.DocumentModel.toDomain(items),
		Status:        m.Status,
		SourceQuoteID: m.SourceQuoteID,
		InvoiceID:     m.InvoiceID,
		CancelReason:  m.CancelReason,
		History:       make([]trade.StatusChange, 0, len(history)),
		PaidAt:        m.PaidAt,
		ShippedAt:     m.ShippedAt,
		CompletedAt:   m.CompletedAt,
		CancelledAt:   m.CancelledAt,
	}
	for _, h := range history {
		o.History = append(o.History, h.ToDomain())
	}
	return o
}

// FromDomain populates the persistence model from a domain Order.
func (m *OrderModel) FromDomain(o *trade.Order) {
	m.DocumentModel.fromDomain(&o.Document)
	m.Status = o.Status
	m.SourceQuoteID = o.SourceQuoteID
	m.InvoiceID = o.InvoiceID
	m.CancelReason = o.CancelReason
	m.PaidAt = o.PaidAt
	m.ShippedAt = o.ShippedAt
	m.CompletedAt = o.CompletedAt
	m.CancelledAt = o.CancelledAt
}

// OrderModelFromDomain creates a new persistence model from a domain Order.
func OrderModelFromDomain(o *trade.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	DocumentModel
	Status        trade.InvoiceStatus `gorm:"type:varchar(20);not null;index"`
	DueDate       time.Time           `gorm:"not null;index"`
	SourceOrderID *uuid.UUID          `gorm:"type:uuid;index"`
	AmountPaid    decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	DisputedFrom  trade.InvoiceStatus `gorm:"type:varchar(20)"`
	PaidAt        *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model, its lines and its payments to a domain Invoice.
func (m *InvoiceModel) ToDomain(items []DocumentItemModel, payments []PaymentModel) *trade.Invoice {
	inv := &trade.Invoice{
		Document:      m.DocumentModel.toDomain(items),
		Status:        m.Status,
		DueDate:       m.DueDate,
		SourceOrderID: m.SourceOrderID,
		Payments:      make([]trade.Payment, 0, len(payments)),
		AmountPaid:    m.AmountPaid,
		DisputedFrom:  m.DisputedFrom,
		PaidAt:        m.PaidAt,
	}
	for _, p := range payments {
		inv.Payments = append(inv.Payments, p.ToDomain())
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice.
func (m *InvoiceModel) FromDomain(inv *trade.Invoice) {
	m.DocumentModel.fromDomain(&inv.Document)
	m.Status = inv.Status
	m.DueDate = inv.DueDate
	m.SourceOrderID = inv.SourceOrderID
	m.AmountPaid = inv.AmountPaid
	m.DisputedFrom = inv.DisputedFrom
	m.PaidAt = inv.PaidAt
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *trade.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// DocumentItemModel is one line of a quote, order or invoice.
type DocumentItemModel struct {
	ID           uuid.UUID          `gorm:"type:uuid;primary_key"`
	DocumentType trade.DocumentType `gorm:"type:varchar(20);not null;index:idx_document_items_owner,priority:1"`
	DocumentID   uuid.UUID          `gorm:"type:uuid;not null;index:idx_document_items_owner,priority:2"`
	ProductID    uuid.UUID          `gorm:"type:uuid;not null;index"`
	ProductName  string             `gorm:"type:varchar(200);not null"`
	Quantity     int64              `gorm:"not null"`
	UnitPrice    decimal.Decimal    `gorm:"type:decimal(18,4);not null"`
	DiscountRate decimal.Decimal    `gorm:"type:decimal(5,4);not null;default:0"`
	TaxRate      decimal.Decimal    `gorm:"type:decimal(5,4);not null;default:0"`
	Position     int                `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentItemModel) TableName() string {
	return "document_items"
}

// ToDomain converts the persistence model to a domain LineItem.
func (m DocumentItemModel) ToDomain() trade.LineItem {
	return trade.LineItem{
		ID:           m.ID,
		ProductID:    m.ProductID,
		ProductName:  m.ProductName,
		Quantity:     m.Quantity,
		UnitPrice:    m.UnitPrice,
		DiscountRate: m.DiscountRate,
		TaxRate:      m.TaxRate,
		Position:     m.Position,
	}
}

// DocumentItemModelsFromDomain maps the lines of a document owned by docType/documentID.
func DocumentItemModelsFromDomain(docType trade.DocumentType, documentID uuid.UUID, items []trade.LineItem) []DocumentItemModel {
	out := make([]DocumentItemModel, 0, len(items))
	for _, li := range items {
		out = append(out, DocumentItemModel{
			ID:           li.ID,
			DocumentType: docType,
			DocumentID:   documentID,
			ProductID:    li.ProductID,
			ProductName:  li.ProductName,
			Quantity:     li.Quantity,
			UnitPrice:    li.UnitPrice,
			DiscountRate: li.DiscountRate,
			TaxRate:      li.TaxRate,
			Position:     li.Position,
		})
	}
	return out
}

// PaymentModel is money received against an invoice.
type PaymentModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Method    string          `gorm:"type:varchar(50)"`
	Reference string          `gorm:"type:varchar(100)"`
	PaidAt    time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment.
func (m PaymentModel) ToDomain() trade.Payment {
	return trade.Payment{
		ID:        m.ID,
		Amount:    m.Amount,
		Method:    m.Method,
		Reference: m.Reference,
		PaidAt:    m.PaidAt,
	}
}

// PaymentModelsFromDomain maps the payments of an invoice.
func PaymentModelsFromDomain(invoiceID uuid.UUID, payments []trade.Payment) []PaymentModel {
	out := make([]PaymentModel, 0, len(payments))
	for _, p := range payments {
		out = append(out, PaymentModel{
			ID:        p.ID,
			InvoiceID: invoiceID,
			Amount:    p.Amount,
			Method:    p.Method,
			Reference: p.Reference,
			PaidAt:    p.PaidAt,
		})
	}
	return out
}

// OrderStatusChangeModel is one entry of an order's status history.
type OrderStatusChangeModel struct {
	ID         uuid.UUID         `gorm:"type:uuid;primary_key"`
	OrderID    uuid.UUID         `gorm:"type:uuid;not null;index"`
	FromStatus trade.OrderStatus `gorm:"type:varchar(20);not null"`
	ToStatus   trade.OrderStatus `gorm:"type:varchar(20);not null"`
	Trigger    string            `gorm:"column:trigger_name;type:varchar(50);not null"`
	ChangedBy  *uuid.UUID        `gorm:"type:uuid"`
	ChangedAt  time.Time         `gorm:"not null"`
	Position   int               `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderStatusChangeModel) TableName() string {
	return "order_status_changes"
}

// ToDomain converts the persistence model to a domain StatusChange.
func (m OrderStatusChangeModel) ToDomain() trade.StatusChange {
	return trade.StatusChange{
		ID:        m.ID,
		From:      m.FromStatus,
		To:        m.ToStatus,
		Trigger:   m.Trigger,
		ChangedBy: m.ChangedBy,
		ChangedAt: m.ChangedAt,
	}
}

// OrderStatusChangeModelsFromDomain maps an order's history.
func OrderStatusChangeModelsFromDomain(orderID uuid.UUID, history []trade.StatusChange) []OrderStatusChangeModel {
	out := make([]OrderStatusChangeModel, 0, len(history))
	for i, h := range history {
		out = append(out, OrderStatusChangeModel{
			ID:         h.ID,
			OrderID:    orderID,
			FromStatus: h.From,
			ToStatus:   h.To,
			Trigger:    h.Trigger,
			ChangedBy:  h.ChangedBy,
			ChangedAt:  h.ChangedAt,
			Position:   i + 1,
		})
	}
	return out
}

// DocumentSequenceModel holds the last counter handed out per tenant, document type and day.
type DocumentSequenceModel struct {
	TenantID     uuid.UUID          `gorm:"type:uuid;primaryKey"`
	DocumentType trade.DocumentType `gorm:"type:varchar(20);primaryKey"`
	Day          string             `gorm:"type:varchar(8);primaryKey"`
	LastValue    int64              `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DocumentSequenceModel) TableName() string {
	return "document_sequences"
}

// AllModels lists every model for AutoMigrate in tests.
func AllModels() []any {
	return []any{
		&ProductModel{},
		&StockMovementModel{},
		&StockReservationModel{},
		&QuoteModel{},
		&OrderModel{},
		&InvoiceModel{},
		&DocumentItemModel{},
		&PaymentModel{},
		&OrderStatusChangeModel{},
		&DocumentSequenceModel{},
	}
}
