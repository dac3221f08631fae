package trade

import (
	"strings"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultPaymentTerm is the default distance between issue and due date
const DefaultPaymentTerm = 30 * 24 * time.Hour

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusApproved      InvoiceStatus = "APPROVED"
	InvoiceStatusSent          InvoiceStatus = "SENT"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"
	InvoiceStatusDisputed      InvoiceStatus = "DISPUTED"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

// IsValid checks if the status is known
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusApproved, InvoiceStatusSent, InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusDisputed, InvoiceStatusCancelled:
		return true
	}
	return false
}

// AcceptsPayment reports whether payments may be recorded in this status
func (s InvoiceStatus) AcceptsPayment() bool {
	return s == InvoiceStatusSent || s == InvoiceStatusPartiallyPaid || s == InvoiceStatusOverdue
}

// Payment is money received against an invoice
type Payment struct {
	ID        uuid.UUID
	Amount    decimal.Decimal
	Method    string
	Reference string
	PaidAt    time.Time
}

// Invoice is a request for payment
type Invoice struct {
	Document
	Status        InvoiceStatus
	DueDate       time.Time
	SourceOrderID *uuid.UUID
	Payments      []Payment
	AmountPaid    decimal.Decimal
	DisputedFrom  InvoiceStatus // status the open dispute was raised from
	PaidAt        *time.Time
}

// NewInvoice creates a DRAFT invoice. A zero dueDate means DefaultPaymentTerm from now.
func NewInvoice(tenantID, customerID, createdBy uuid.UUID, dueDate time.Time) (*Invoice, error) {
	doc, err := newDocument(tenantID, customerID, createdBy)
	if err != nil {
		return nil, err
	}
	if dueDate.IsZero() {
		dueDate = doc.CreatedAt.Add(DefaultPaymentTerm)
	}
	return &Invoice{
		Document:   doc,
		Status:     InvoiceStatusDraft,
		DueDate:    dueDate,
		Payments:   make([]Payment, 0),
		AmountPaid: decimal.Zero,
	}, nil
}

// NewInvoiceFromOrder creates an invoice carrying deep copies of the order's lines
func NewInvoiceFromOrder(o *Order, createdBy uuid.UUID, dueDate time.Time) (*Invoice, error) {
	inv, err := NewInvoice(o.TenantID, o.CustomerID, createdBy, dueDate)
	if err != nil {
		return nil, err
	}
	inv.CopyItemsFrom(&o.Document)
	orderID := o.ID
	inv.SourceOrderID = &orderID
	return inv, nil
}

// CurrentState implements statemachine.Stateful
func (i *Invoice) CurrentState() InvoiceStatus { return i.Status }

// SetState implements statemachine.Stateful
func (i *Invoice) SetState(s InvoiceStatus) {
	if i.Status == InvoiceStatusDisputed && s != InvoiceStatusDisputed {
		i.DisputedFrom = ""
	}
	i.Status = s
	i.markTransitioned()
	if s == InvoiceStatusPaid && i.PaidAt == nil {
		at := *i.TransitionedAt
		i.PaidAt = &at
	}
}

// IsEditable reports whether lines may change
func (i *Invoice) IsEditable() bool {
	return i.Status == InvoiceStatusDraft
}

// AddItem appends a line to a DRAFT invoice
func (i *Invoice) AddItem(in LineItemInput) (*LineItem, error) {
	if !i.IsEditable() {
		return nil, shared.NewDomainError("INVALID_STATE", "Invoice can only be modified in DRAFT status")
	}
	return i.addItem(in)
}

// BalanceDue returns the unpaid remainder
func (i *Invoice) BalanceDue() decimal.Decimal {
	return i.TotalAmount.Sub(i.AmountPaid)
}

// IsFullyPaid reports whether payments cover the total
func (i *Invoice) IsFullyPaid() bool {
	return i.AmountPaid.GreaterThanOrEqual(i.TotalAmount)
}

// IsPartiallyPaid reports whether some, but not all, of the total was paid
func (i *Invoice) IsPartiallyPaid() bool {
	return i.AmountPaid.IsPositive() && i.AmountPaid.LessThan(i.TotalAmount)
}

// IsPastDueAt reports whether the due date lies before now
func (i *Invoice) IsPastDueAt(now time.Time) bool {
	return now.After(i.DueDate)
}

// AddPayment records a payment. Overpayment is rejected.
func (i *Invoice) AddPayment(amount decimal.Decimal, method, reference string, paidAt time.Time) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("amount", "Payment amount must be positive")
	}
	if amount.GreaterThan(i.BalanceDue()) {
		return nil, shared.NewValidationError("amount", "Payment exceeds the balance due of "+i.BalanceDue().StringFixed(amountPlaces))
	}
	if paidAt.IsZero() {
		paidAt = time.Now()
	}
	p := Payment{
		ID:        uuid.New(),
		Amount:    amount,
		Method:    strings.TrimSpace(method),
		Reference: reference,
		PaidAt:    paidAt,
	}
	i.Payments = append(i.Payments, p)
	i.AmountPaid = i.AmountPaid.Add(amount)
	i.touch()
	return &i.Payments[len(i.Payments)-1], nil
}

// RememberDisputeOrigin stores the status a dispute is raised from
func (i *Invoice) RememberDisputeOrigin() {
	i.DisputedFrom = i.Status
}
