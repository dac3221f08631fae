package trade

import (
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// OrderStatus represents the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "CREATED"
	OrderStatusAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	OrderStatusPaid            OrderStatus = "PAID"
	OrderStatusShipped         OrderStatus = "SHIPPED"
	OrderStatusCompleted       OrderStatus = "COMPLETED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

// IsValid checks if the status is known
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusAwaitingPayment, OrderStatusPaid,
		OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition leaves this status
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// StatusChange is one entry of an order's status history
type StatusChange struct {
	ID        uuid.UUID
	From      OrderStatus
	To        OrderStatus
	Trigger   string
	ChangedBy *uuid.UUID
	ChangedAt time.Time
}

// Order is a customer's commitment to buy
type Order struct {
	Document
	Status        OrderStatus
	SourceQuoteID *uuid.UUID
	InvoiceID     *uuid.UUID
	CancelReason  string
	History       []StatusChange
	PaidAt        *time.Time
	ShippedAt     *time.Time
	CompletedAt   *time.Time
	CancelledAt   *time.Time
}

// NewOrder creates an order in CREATED status
func NewOrder(tenantID, customerID, createdBy uuid.UUID) (*Order, error) {
	doc, err := newDocument(tenantID, customerID, createdBy)
	if err != nil {
		return nil, err
	}
	return &Order{
		Document: doc,
		Status:   OrderStatusCreated,
		History:  make([]StatusChange, 0),
	}, nil
}

// NewOrderFromQuote creates an order carrying deep copies of the quote's lines
func NewOrderFromQuote(q *Quote, createdBy uuid.UUID) (*Order, error) {
	o, err := NewOrder(q.TenantID, q.CustomerID, createdBy)
	if err != nil {
		return nil, err
	}
	o.CopyItemsFrom(&q.Document)
	o.Notes = q.Notes
	quoteID := q.ID
	o.SourceQuoteID = &quoteID
	return o, nil
}

// CurrentState implements statemachine.Stateful
func (o *Order) CurrentState() OrderStatus { return o.Status }

// SetState implements statemachine.Stateful and stamps the milestone of the new status
func (o *Order) SetState(s OrderStatus) {
	o.Status = s
	o.markTransitioned()
	at := *o.TransitionedAt
	switch s {
	case OrderStatusPaid:
		o.PaidAt = &at
	case OrderStatusShipped:
		o.ShippedAt = &at
	case OrderStatusCompleted:
		o.CompletedAt = &at
	case OrderStatusCancelled:
		o.CancelledAt = &at
	}
}

// RecordStatusChange appends an entry to the status history
func (o *Order) RecordStatusChange(from, to OrderStatus, trigger string, by *uuid.UUID) {
	o.History = append(o.History, StatusChange{
		ID:        uuid.New(),
		From:      from,
		To:        to,
		Trigger:   trigger,
		ChangedBy: by,
		ChangedAt: time.Now(),
	})
}

// IsEditable reports whether lines may change
func (o *Order) IsEditable() bool {
	return o.Status == OrderStatusCreated
}

// AddItem appends a line to a CREATED order
func (o *Order) AddItem(in LineItemInput) (*LineItem, error) {
	if err := o.ensureEditable(); err != nil {
		return nil, err
	}
	return o.addItem(in)
}

// UpdateItem replaces the values of a line on a CREATED order
func (o *Order) UpdateItem(itemID uuid.UUID, in LineItemInput) (*LineItem, error) {
	if err := o.ensureEditable(); err != nil {
		return nil, err
	}
	return o.updateItem(itemID, in)
}

// RemoveItem deletes a line from a CREATED order
func (o *Order) RemoveItem(itemID uuid.UUID) error {
	if err := o.ensureEditable(); err != nil {
		return err
	}
	return o.removeItem(itemID)
}

// SetCancelReason records why the order is being cancelled
func (o *Order) SetCancelReason(reason string) {
	o.CancelReason = reason
}

// CanInvoice reports whether an invoice may be created from this order
func (o *Order) CanInvoice() bool {
	if o.InvoiceID != nil {
		return false
	}
	switch o.Status {
	case OrderStatusPaid, OrderStatusShipped, OrderStatusCompleted:
		return true
	}
	return false
}

// LinkInvoice records the invoice created from this order
func (o *Order) LinkInvoice(invoiceID uuid.UUID) error {
	if !o.CanInvoice() {
		if o.InvoiceID != nil {
			return shared.NewDomainError("ALREADY_INVOICED", "Order already has an invoice")
		}
		return shared.NewDomainError("INVALID_STATE", "Order can only be invoiced when PAID, SHIPPED or COMPLETED")
	}
	o.InvoiceID = &invoiceID
	o.touch()
	return nil
}

func (o *Order) ensureEditable() error {
	if !o.IsEditable() {
		return shared.NewDomainError("INVALID_STATE", "Order can only be modified in CREATED status")
	}
	return nil
}
