package trade

import (
	"time"

	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Requests ====================

// LineItemRequest is one product line of a create or update request
type LineItemRequest struct {
	ProductID    uuid.UUID       `json:"product_id" binding:"required"`
	ProductName  string          `json:"product_name" binding:"max=200"`
	Quantity     int64           `json:"quantity" binding:"required,gt=0"`
	UnitPrice    decimal.Decimal `json:"unit_price" binding:"gte=0"`
	DiscountRate decimal.Decimal `json:"discount_rate" binding:"gte=0,lte=1"`
	TaxRate      decimal.Decimal `json:"tax_rate" binding:"gte=0,lte=1"`
}

func (r LineItemRequest) input() trade.LineItemInput {
	return trade.LineItemInput{
		ProductID:    r.ProductID,
		ProductName:  r.ProductName,
		Quantity:     r.Quantity,
		UnitPrice:    r.UnitPrice,
		DiscountRate: r.DiscountRate,
		TaxRate:      r.TaxRate,
	}
}

// CreateQuoteRequest represents a request to create a quote
type CreateQuoteRequest struct {
	CustomerID uuid.UUID         `json:"customer_id" binding:"required"`
	ExpiresAt  *time.Time        `json:"expires_at"`
	Notes      string            `json:"notes" binding:"max=2000"`
	Items      []LineItemRequest `json:"items" binding:"dive"`
}

// UpdateQuoteRequest represents a request to update a DRAFT quote.
// A non-nil Items replaces every line.
type UpdateQuoteRequest struct {
	ExpiresAt *time.Time        `json:"expires_at"`
	Notes     *string           `json:"notes" binding:"omitempty,max=2000"`
	Items     []LineItemRequest `json:"items" binding:"omitempty,dive"`
}

// CreateOrderRequest represents a request to create an order directly
type CreateOrderRequest struct {
	CustomerID uuid.UUID         `json:"customer_id" binding:"required"`
	Notes      string            `json:"notes" binding:"max=2000"`
	Items      []LineItemRequest `json:"items" binding:"dive"`
}

// UpdateOrderRequest represents a request to update a CREATED order.
// A non-nil Items replaces every line.
type UpdateOrderRequest struct {
	Notes *string           `json:"notes" binding:"omitempty,max=2000"`
	Items []LineItemRequest `json:"items" binding:"omitempty,dive"`
}

// CancelOrderRequest represents a request to cancel an order
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// CreateInvoiceRequest represents a request to create a standalone invoice
type CreateInvoiceRequest struct {
	CustomerID uuid.UUID         `json:"customer_id" binding:"required"`
	DueDate    *time.Time        `json:"due_date"`
	Notes      string            `json:"notes" binding:"max=2000"`
	Items      []LineItemRequest `json:"items" binding:"dive"`
}

// RecordPaymentRequest represents a payment received against an invoice
type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"required,gt=0"`
	Method    string          `json:"method" binding:"max=50"`
	Reference string          `json:"reference" binding:"max=100"`
	PaidAt    *time.Time      `json:"paid_at"`
}

// ==================== Responses ====================

// LineItemResponse represents a document line in API responses
type LineItemResponse struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    uuid.UUID       `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Quantity     int64           `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	Total        decimal.Decimal `json:"total"`
	Position     int             `json:"position"`
}

// DocumentResponse holds the fields common to every document
type DocumentResponse struct {
	ID          uuid.UUID          `json:"id"`
	TenantID    uuid.UUID          `json:"tenant_id"`
	Number      string             `json:"number"`
	CustomerID  uuid.UUID          `json:"customer_id"`
	Items       []LineItemResponse `json:"items"`
	Subtotal    decimal.Decimal    `json:"subtotal"`
	TaxAmount   decimal.Decimal    `json:"tax_amount"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Notes       string             `json:"notes,omitempty"`
	CreatedBy   *uuid.UUID         `json:"created_by,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Version     int                `json:"version"`
}

// QuoteResponse represents a quote in API responses
type QuoteResponse struct {
	DocumentResponse
	Status           string     `json:"status"`
	ExpiresAt        time.Time  `json:"expires_at"`
	ConvertedOrderID *uuid.UUID `json:"converted_order_id,omitempty"`
}

// StatusChangeResponse represents one order history entry
type StatusChangeResponse struct {
	From      string     `json:"from"`
	To        string     `json:"to"`
	Trigger   string     `json:"trigger"`
	ChangedBy *uuid.UUID `json:"changed_by,omitempty"`
	ChangedAt time.Time  `json:"changed_at"`
}

// OrderResponse represents an order in API responses
type OrderResponse struct {
	DocumentResponse
	Status        string     `json:"status"`
	SourceQuoteID *uuid.UUID `json:"source_quote_id,omitempty"`
	InvoiceID     *uuid.UUID `json:"invoice_id,omitempty"`
	CancelReason  string     `json:"cancel_reason,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	ShippedAt     *time.Time `json:"shipped_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
}

// OrderSummaryResponse is the order overview: status, totals, next steps and history
type OrderSummaryResponse struct {
	ID                uuid.UUID              `json:"id"`
	Number            string                 `json:"number"`
	Status            string                 `json:"status"`
	ItemCount         int                    `json:"item_count"`
	Subtotal          decimal.Decimal        `json:"subtotal"`
	TaxAmount         decimal.Decimal        `json:"tax_amount"`
	TotalAmount       decimal.Decimal        `json:"total_amount"`
	AvailableTriggers []string               `json:"available_triggers"`
	History           []StatusChangeResponse `json:"history"`
	InvoiceID         *uuid.UUID             `json:"invoice_id,omitempty"`
}

// PaymentResponse represents a recorded payment
type PaymentResponse struct {
	ID        uuid.UUID       `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method,omitempty"`
	Reference string          `json:"reference,omitempty"`
	PaidAt    time.Time       `json:"paid_at"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	DocumentResponse
	Status        string            `json:"status"`
	DueDate       time.Time         `json:"due_date"`
	SourceOrderID *uuid.UUID        `json:"source_order_id,omitempty"`
	AmountPaid    decimal.Decimal   `json:"amount_paid"`
	BalanceDue    decimal.Decimal   `json:"balance_due"`
	Payments      []PaymentResponse `json:"payments"`
	DisputedFrom  string            `json:"disputed_from,omitempty"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"`
}

// InvoiceSummaryResponse is the invoice overview: balance, payments and next steps
type InvoiceSummaryResponse struct {
	ID                uuid.UUID         `json:"id"`
	Number            string            `json:"number"`
	Status            string            `json:"status"`
	TotalAmount       decimal.Decimal   `json:"total_amount"`
	AmountPaid        decimal.Decimal   `json:"amount_paid"`
	BalanceDue        decimal.Decimal   `json:"balance_due"`
	DueDate           time.Time         `json:"due_date"`
	PastDue           bool              `json:"past_due"`
	Payments          []PaymentResponse `json:"payments"`
	AvailableTriggers []string          `json:"available_triggers"`
}

// BulkResponse reports a batch operation
type BulkResponse struct {
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Numbers   []string `json:"numbers"`
}

// ==================== Converters ====================

func toLineItemResponses(items []trade.LineItem) []LineItemResponse {
	out := make([]LineItemResponse, 0, len(items))
	for _, li := range items {
		out = append(out, LineItemResponse{
			ID:           li.ID,
			ProductID:    li.ProductID,
			ProductName:  li.ProductName,
			Quantity:     li.Quantity,
			UnitPrice:    li.UnitPrice,
			DiscountRate: li.DiscountRate,
			TaxRate:      li.TaxRate,
			Subtotal:     li.Subtotal(),
			TaxAmount:    li.TaxAmount(),
			Total:        li.Total(),
			Position:     li.Position,
		})
	}
	return out
}

func toDocumentResponse(d *trade.Document) DocumentResponse {
	return DocumentResponse{
		ID:          d.ID,
		TenantID:    d.TenantID,
		Number:      d.Number,
		CustomerID:  d.CustomerID,
		Items:       toLineItemResponses(d.SortedItems()),
		Subtotal:    d.Subtotal,
		TaxAmount:   d.TaxAmount,
		TotalAmount: d.TotalAmount,
		Notes:       d.Notes,
		CreatedBy:   d.CreatedBy,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		Version:     d.Version,
	}
}

// ToQuoteResponse converts a quote for API output
func ToQuoteResponse(q *trade.Quote) QuoteResponse {
	return QuoteResponse{
		DocumentResponse: toDocumentResponse(&q.Document),
		Status:           string(q.Status),
		ExpiresAt:        q.ExpiresAt,
		ConvertedOrderID: q.ConvertedOrderID,
	}
}

// ToOrderResponse converts an order for API output
func ToOrderResponse(o *trade.Order) OrderResponse {
	return OrderResponse{
		DocumentResponse: toDocumentResponse(&o.Document),
		Status:           string(o.Status),
		SourceQuoteID:    o.SourceQuoteID,
		InvoiceID:        o.InvoiceID,
		CancelReason:     o.CancelReason,
		PaidAt:           o.PaidAt,
		ShippedAt:        o.ShippedAt,
		CompletedAt:      o.CompletedAt,
		CancelledAt:      o.CancelledAt,
	}
}

func toStatusChangeResponses(history []trade.StatusChange) []StatusChangeResponse {
	out := make([]StatusChangeResponse, 0, len(history))
	for _, h := range history {
		out = append(out, StatusChangeResponse{
			From:      string(h.From),
			To:        string(h.To),
			Trigger:   h.Trigger,
			ChangedBy: h.ChangedBy,
			ChangedAt: h.ChangedAt,
		})
	}
	return out
}

func toPaymentResponses(payments []trade.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, PaymentResponse{
			ID:        p.ID,
			Amount:    p.Amount,
			Method:    p.Method,
			Reference: p.Reference,
			PaidAt:    p.PaidAt,
		})
	}
	return out
}

// ToInvoiceResponse converts an invoice for API output
func ToInvoiceResponse(i *trade.Invoice) InvoiceResponse {
	return InvoiceResponse{
		DocumentResponse: toDocumentResponse(&i.Document),
		Status:           string(i.Status),
		DueDate:          i.DueDate,
		SourceOrderID:    i.SourceOrderID,
		AmountPaid:       i.AmountPaid,
		BalanceDue:       i.BalanceDue(),
		Payments:         toPaymentResponses(i.Payments),
		DisputedFrom:     string(i.DisputedFrom),
		PaidAt:           i.PaidAt,
	}
}
