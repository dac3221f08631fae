package trade

import (
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeQuote   = "Quote"
	AggregateTypeOrder   = "Order"
	AggregateTypeInvoice = "Invoice"
)

// Event type constants
const (
	EventTypeDocumentCreated        = "DocumentCreated"
	EventTypeDocumentTransitioned   = "DocumentTransitioned"
	EventTypeInvoicePaymentRecorded = "InvoicePaymentRecorded"
)

func aggregateTypeOf(t DocumentType) string {
	switch t {
	case DocumentTypeQuote:
		return AggregateTypeQuote
	case DocumentTypeOrder:
		return AggregateTypeOrder
	}
	return AggregateTypeInvoice
}

// DocumentCreatedEvent is raised when a quote, order or invoice is first persisted
type DocumentCreatedEvent struct {
	shared.EventHeader
	DocumentType DocumentType    `json:"document_type"`
	DocumentID   uuid.UUID       `json:"document_id"`
	Number       string          `json:"number"`
	CustomerID   uuid.UUID       `json:"customer_id"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// NewDocumentCreatedEvent creates a new DocumentCreatedEvent
func NewDocumentCreatedEvent(t DocumentType, d *Document) *DocumentCreatedEvent {
	return &DocumentCreatedEvent{
		EventHeader:  shared.NewEventHeader(EventTypeDocumentCreated, aggregateTypeOf(t), d.ID, d.TenantID),
		DocumentType: t,
		DocumentID:   d.ID,
		Number:       d.Number,
		CustomerID:   d.CustomerID,
		TotalAmount:  d.TotalAmount,
	}
}

// DocumentTransitionedEvent is raised after a lifecycle transition commits
type DocumentTransitionedEvent struct {
	shared.EventHeader
	DocumentType DocumentType    `json:"document_type"`
	DocumentID   uuid.UUID       `json:"document_id"`
	Number       string          `json:"number"`
	CustomerID   uuid.UUID       `json:"customer_id"`
	From         string          `json:"from"`
	To           string          `json:"to"`
	Trigger      string          `json:"trigger"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

// NewDocumentTransitionedEvent creates a new DocumentTransitionedEvent
func NewDocumentTransitionedEvent(t DocumentType, d *Document, from, to, trigger string) *DocumentTransitionedEvent {
	return &DocumentTransitionedEvent{
		EventHeader:  shared.NewEventHeader(EventTypeDocumentTransitioned, aggregateTypeOf(t), d.ID, d.TenantID),
		DocumentType: t,
		DocumentID:   d.ID,
		Number:       d.Number,
		CustomerID:   d.CustomerID,
		From:         from,
		To:           to,
		Trigger:      trigger,
		TotalAmount:  d.TotalAmount,
	}
}

// InvoicePaymentRecordedEvent is raised when a payment is booked on an invoice
type InvoicePaymentRecordedEvent struct {
	shared.EventHeader
	InvoiceID  uuid.UUID       `json:"invoice_id"`
	Number     string          `json:"number"`
	PaymentID  uuid.UUID       `json:"payment_id"`
	Amount     decimal.Decimal `json:"amount"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	BalanceDue decimal.Decimal `json:"balance_due"`
}

// NewInvoicePaymentRecordedEvent creates a new InvoicePaymentRecordedEvent
func NewInvoicePaymentRecordedEvent(i *Invoice, p *Payment) *InvoicePaymentRecordedEvent {
	return &InvoicePaymentRecordedEvent{
		EventHeader: shared.NewEventHeader(EventTypeInvoicePaymentRecorded, AggregateTypeInvoice, i.ID, i.TenantID),
		InvoiceID:   i.ID,
		Number:      i.Number,
		PaymentID:   p.ID,
		Amount:      p.Amount,
		AmountPaid:  i.AmountPaid,
		BalanceDue:  i.BalanceDue(),
	}
}
