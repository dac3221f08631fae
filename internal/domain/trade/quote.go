package trade

import (
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/google/uuid"
)

// DefaultQuoteValidity is how long a new quote stays acceptable
const DefaultQuoteValidity = 30 * 24 * time.Hour

// QuoteStatus represents the lifecycle state of a quote
type QuoteStatus string

const (
	QuoteStatusDraft     QuoteStatus = "DRAFT"
	QuoteStatusSent      QuoteStatus = "SENT"
	QuoteStatusPending   QuoteStatus = "PENDING"
	QuoteStatusAccepted  QuoteStatus = "ACCEPTED"
	QuoteStatusRejected  QuoteStatus = "REJECTED"
	QuoteStatusExpired   QuoteStatus = "EXPIRED"
	QuoteStatusConverted QuoteStatus = "CONVERTED"
	QuoteStatusCancelled QuoteStatus = "CANCELLED"
)

// IsValid checks if the status is known
func (s QuoteStatus) IsValid() bool {
	switch s {
	case QuoteStatusDraft, QuoteStatusSent, QuoteStatusPending, QuoteStatusAccepted,
		QuoteStatusRejected, QuoteStatusExpired, QuoteStatusConverted, QuoteStatusCancelled:
		return true
	}
	return false
}

// IsOpen reports whether the quote still awaits a customer decision
func (s QuoteStatus) IsOpen() bool {
	return s == QuoteStatusDraft || s == QuoteStatusSent || s == QuoteStatusPending
}

// Quote is a priced offer sent to a customer
type Quote struct {
	Document
	Status           QuoteStatus
	ExpiresAt        time.Time
	ConvertedOrderID *uuid.UUID
}

// NewQuote creates a DRAFT quote. A zero expiresAt means DefaultQuoteValidity from now.
func NewQuote(tenantID, customerID, createdBy uuid.UUID, expiresAt time.Time) (*Quote, error) {
	doc, err := newDocument(tenantID, customerID, createdBy)
	if err != nil {
		return nil, err
	}
	if expiresAt.IsZero() {
		expiresAt = doc.CreatedAt.Add(DefaultQuoteValidity)
	}
	return &Quote{
		Document:  doc,
		Status:    QuoteStatusDraft,
		ExpiresAt: expiresAt,
	}, nil
}

// CurrentState implements statemachine.Stateful
func (q *Quote) CurrentState() QuoteStatus { return q.Status }

// SetState implements statemachine.Stateful
func (q *Quote) SetState(s QuoteStatus) {
	q.Status = s
	q.markTransitioned()
}

// IsEditable reports whether lines and header fields may change
func (q *Quote) IsEditable() bool {
	return q.Status == QuoteStatusDraft
}

// IsExpiredAt reports whether the validity period ended before now
func (q *Quote) IsExpiredAt(now time.Time) bool {
	return now.After(q.ExpiresAt)
}

// AddItem appends a line to a DRAFT quote
func (q *Quote) AddItem(in LineItemInput) (*LineItem, error) {
	if err := q.ensureEditable(); err != nil {
		return nil, err
	}
	return q.addItem(in)
}

// UpdateItem replaces the values of a line on a DRAFT quote
func (q *Quote) UpdateItem(itemID uuid.UUID, in LineItemInput) (*LineItem, error) {
	if err := q.ensureEditable(); err != nil {
		return nil, err
	}
	return q.updateItem(itemID, in)
}

// RemoveItem deletes a line from a DRAFT quote
func (q *Quote) RemoveItem(itemID uuid.UUID) error {
	if err := q.ensureEditable(); err != nil {
		return err
	}
	return q.removeItem(itemID)
}

// SetExpiresAt changes the validity end of a DRAFT quote
func (q *Quote) SetExpiresAt(expiresAt time.Time) error {
	if err := q.ensureEditable(); err != nil {
		return err
	}
	if expiresAt.IsZero() {
		return shared.NewValidationError("expires_at", "Expiry date is required")
	}
	q.ExpiresAt = expiresAt
	q.touch()
	return nil
}

// LinkOrder records the order this quote was converted into
func (q *Quote) LinkOrder(orderID uuid.UUID) {
	q.ConvertedOrderID = &orderID
	q.touch()
}

// Duplicate returns a new DRAFT quote with copies of the lines and a fresh validity period
func (q *Quote) Duplicate(createdBy uuid.UUID, validity time.Duration) (*Quote, error) {
	if validity <= 0 {
		validity = DefaultQuoteValidity
	}
	dup, err := NewQuote(q.TenantID, q.CustomerID, createdBy, time.Now().Add(validity))
	if err != nil {
		return nil, err
	}
	dup.CopyItemsFrom(&q.Document)
	dup.Notes = q.Notes
	return dup, nil
}

func (q *Quote) ensureEditable() error {
	if !q.IsEditable() {
		return shared.NewDomainError("INVALID_STATE", "Quote can only be modified in DRAFT status")
	}
	return nil
}
