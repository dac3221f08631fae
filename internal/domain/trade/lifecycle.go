package trade

import (
	"context"
	"time"

	"github.com/erp/backoffice/internal/domain/shared/statemachine"
)

// Triggers
const (
	TriggerSend                 = "send"
	TriggerMarkPending          = "mark_pending"
	TriggerAccept               = "accept"
	TriggerReject               = "reject"
	TriggerExpire               = "expire"
	TriggerConvertToOrder       = "convert_to_order"
	TriggerCancel               = "cancel"
	TriggerAwaitPayment         = "await_payment"
	TriggerMarkPaid             = "mark_paid"
	TriggerShip                 = "ship"
	TriggerComplete             = "complete"
	TriggerApprove              = "approve"
	TriggerRecordPayment        = "record_payment"
	TriggerRecordPartialPayment = "record_partial_payment"
	TriggerMarkOverdue          = "mark_overdue"
	TriggerDispute              = "dispute"
	TriggerResolveDispute       = "resolve_dispute"
)

// Guard names
const (
	GuardQuoteHasItems        = "quote_has_items"
	GuardQuoteNotExpired      = "quote_not_expired"
	GuardOrderHasItems        = "order_has_items"
	GuardInvoiceFullyPaid     = "invoice_fully_paid"
	GuardInvoicePartiallyPaid = "invoice_partially_paid"
	GuardInvoicePastDue       = "invoice_past_due"
	GuardDisputeFromSent      = "dispute_from_sent"
	GuardDisputeFromPaid      = "dispute_from_paid"
)

// Hook names
const (
	HookNotifyDocument           = "notify_document"
	HookReserveOrderStock        = "reserve_order_stock"
	HookConvertOrderReservations = "convert_order_reservations"
	HookReleaseOrderReservations = "release_order_reservations"
	HookRememberDisputeOrigin    = "remember_dispute_origin"
)

// ArgNow is the Args key carrying the evaluation time for date-based guards
const ArgNow = "now"

type (
	quoteEdge   = statemachine.Transition[QuoteStatus]
	orderEdge   = statemachine.Transition[OrderStatus]
	invoiceEdge = statemachine.Transition[InvoiceStatus]
)

// QuoteLifecycle is the transition table of quotes
var QuoteLifecycle = statemachine.MustTable("quote",
	quoteEdge{Source: QuoteStatusDraft, Trigger: TriggerSend, Target: QuoteStatusSent, Guard: GuardQuoteHasItems, After: HookNotifyDocument},
	quoteEdge{Source: QuoteStatusDraft, Trigger: TriggerCancel, Target: QuoteStatusCancelled},
	quoteEdge{Source: QuoteStatusSent, Trigger: TriggerMarkPending, Target: QuoteStatusPending},
	quoteEdge{Source: QuoteStatusSent, Trigger: TriggerAccept, Target: QuoteStatusAccepted, Guard: GuardQuoteNotExpired},
	quoteEdge{Source: QuoteStatusPending, Trigger: TriggerAccept, Target: QuoteStatusAccepted, Guard: GuardQuoteNotExpired},
	quoteEdge{Source: QuoteStatusSent, Trigger: TriggerReject, Target: QuoteStatusRejected},
	quoteEdge{Source: QuoteStatusPending, Trigger: TriggerReject, Target: QuoteStatusRejected},
	quoteEdge{Source: QuoteStatusDraft, Trigger: TriggerExpire, Target: QuoteStatusExpired},
	quoteEdge{Source: QuoteStatusSent, Trigger: TriggerExpire, Target: QuoteStatusExpired},
	quoteEdge{Source: QuoteStatusPending, Trigger: TriggerExpire, Target: QuoteStatusExpired},
	quoteEdge{Source: QuoteStatusAccepted, Trigger: TriggerConvertToOrder, Target: QuoteStatusConverted, Guard: GuardQuoteNotExpired},
)

// OrderLifecycle is the transition table of orders
var OrderLifecycle = statemachine.MustTable("order",
	orderEdge{Source: OrderStatusCreated, Trigger: TriggerAwaitPayment, Target: OrderStatusAwaitingPayment},
	orderEdge{Source: OrderStatusCreated, Trigger: TriggerMarkPaid, Target: OrderStatusPaid, Guard: GuardOrderHasItems, After: HookReserveOrderStock},
	orderEdge{Source: OrderStatusAwaitingPayment, Trigger: TriggerMarkPaid, Target: OrderStatusPaid, Guard: GuardOrderHasItems, After: HookReserveOrderStock},
	orderEdge{Source: OrderStatusPaid, Trigger: TriggerShip, Target: OrderStatusShipped, After: HookConvertOrderReservations},
	orderEdge{Source: OrderStatusShipped, Trigger: TriggerComplete, Target: OrderStatusCompleted},
	orderEdge{Source: OrderStatusCreated, Trigger: TriggerCancel, Target: OrderStatusCancelled, After: HookReleaseOrderReservations},
	orderEdge{Source: OrderStatusAwaitingPayment, Trigger: TriggerCancel, Target: OrderStatusCancelled, After: HookReleaseOrderReservations},
	orderEdge{Source: OrderStatusPaid, Trigger: TriggerCancel, Target: OrderStatusCancelled, After: HookReleaseOrderReservations},
	orderEdge{Source: OrderStatusShipped, Trigger: TriggerCancel, Target: OrderStatusCancelled, After: HookReleaseOrderReservations},
)

// InvoiceLifecycle is the transition table of invoices.
// resolve_dispute has two guarded branches that return to the status the dispute was raised from.
// A dispute can be settled by cancelling only when it was raised before payment.
var InvoiceLifecycle = statemachine.MustTable("invoice",
	invoiceEdge{Source: InvoiceStatusDraft, Trigger: TriggerApprove, Target: InvoiceStatusApproved},
	invoiceEdge{Source: InvoiceStatusDraft, Trigger: TriggerSend, Target: InvoiceStatusSent, After: HookNotifyDocument},
	invoiceEdge{Source: InvoiceStatusApproved, Trigger: TriggerSend, Target: InvoiceStatusSent, After: HookNotifyDocument},
	invoiceEdge{Source: InvoiceStatusSent, Trigger: TriggerRecordPayment, Target: InvoiceStatusPaid, Guard: GuardInvoiceFullyPaid},
	invoiceEdge{Source: InvoiceStatusPartiallyPaid, Trigger: TriggerRecordPayment, Target: InvoiceStatusPaid, Guard: GuardInvoiceFullyPaid},
	invoiceEdge{Source: InvoiceStatusSent, Trigger: TriggerRecordPartialPayment, Target: InvoiceStatusPartiallyPaid, Guard: GuardInvoicePartiallyPaid},
	invoiceEdge{Source: InvoiceStatusPartiallyPaid, Trigger: TriggerRecordPartialPayment, Target: InvoiceStatusPartiallyPaid, Guard: GuardInvoicePartiallyPaid},
	invoiceEdge{Source: InvoiceStatusSent, Trigger: TriggerMarkOverdue, Target: InvoiceStatusOverdue, Guard: GuardInvoicePastDue},
	invoiceEdge{Source: InvoiceStatusPartiallyPaid, Trigger: TriggerMarkOverdue, Target: InvoiceStatusOverdue, Guard: GuardInvoicePastDue},
	invoiceEdge{Source: InvoiceStatusOverdue, Trigger: TriggerRecordPayment, Target: InvoiceStatusPaid, Guard: GuardInvoiceFullyPaid},
	invoiceEdge{Source: InvoiceStatusOverdue, Trigger: TriggerRecordPartialPayment, Target: InvoiceStatusOverdue},
	invoiceEdge{Source: InvoiceStatusSent, Trigger: TriggerDispute, Target: InvoiceStatusDisputed, Before: HookRememberDisputeOrigin},
	invoiceEdge{Source: InvoiceStatusPaid, Trigger: TriggerDispute, Target: InvoiceStatusDisputed, Before: HookRememberDisputeOrigin},
	invoiceEdge{Source: InvoiceStatusDisputed, Trigger: TriggerResolveDispute, Target: InvoiceStatusSent, Guard: GuardDisputeFromSent},
	invoiceEdge{Source: InvoiceStatusDisputed, Trigger: TriggerResolveDispute, Target: InvoiceStatusPaid, Guard: GuardDisputeFromPaid},
	invoiceEdge{Source: InvoiceStatusDraft, Trigger: TriggerCancel, Target: InvoiceStatusCancelled},
	invoiceEdge{Source: InvoiceStatusApproved, Trigger: TriggerCancel, Target: InvoiceStatusCancelled},
	invoiceEdge{Source: InvoiceStatusSent, Trigger: TriggerCancel, Target: InvoiceStatusCancelled},
	invoiceEdge{Source: InvoiceStatusPartiallyPaid, Trigger: TriggerCancel, Target: InvoiceStatusCancelled},
	invoiceEdge{Source: InvoiceStatusOverdue, Trigger: TriggerCancel, Target: InvoiceStatusCancelled},
	invoiceEdge{Source: InvoiceStatusDisputed, Trigger: TriggerCancel, Target: InvoiceStatusCancelled, Guard: GuardDisputeFromSent},
)

// NewQuoteHandlers returns a registry holding the quote guards.
// Hooks needing application collaborators are registered by the caller.
func NewQuoteHandlers() *statemachine.Handlers[*Quote] {
	h := statemachine.NewHandlers[*Quote]()
	mustRegister(h.RegisterGuard(GuardQuoteHasItems, func(_ context.Context, q *Quote, _ statemachine.Args) bool {
		return q.HasItems()
	}))
	mustRegister(h.RegisterGuard(GuardQuoteNotExpired, func(_ context.Context, q *Quote, args statemachine.Args) bool {
		return !q.IsExpiredAt(nowFrom(args))
	}))
	return h
}

// NewOrderHandlers returns a registry holding the order guards
func NewOrderHandlers() *statemachine.Handlers[*Order] {
	h := statemachine.NewHandlers[*Order]()
	mustRegister(h.RegisterGuard(GuardOrderHasItems, func(_ context.Context, o *Order, _ statemachine.Args) bool {
		return o.HasItems()
	}))
	return h
}

// NewInvoiceHandlers returns a registry holding the invoice guards and the dispute hook
func NewInvoiceHandlers() *statemachine.Handlers[*Invoice] {
	h := statemachine.NewHandlers[*Invoice]()
	mustRegister(h.RegisterGuard(GuardInvoiceFullyPaid, func(_ context.Context, i *Invoice, _ statemachine.Args) bool {
		return i.IsFullyPaid()
	}))
	mustRegister(h.RegisterGuard(GuardInvoicePartiallyPaid, func(_ context.Context, i *Invoice, _ statemachine.Args) bool {
		return i.IsPartiallyPaid()
	}))
	mustRegister(h.RegisterGuard(GuardInvoicePastDue, func(_ context.Context, i *Invoice, args statemachine.Args) bool {
		return i.IsPastDueAt(nowFrom(args))
	}))
	mustRegister(h.RegisterGuard(GuardDisputeFromSent, func(_ context.Context, i *Invoice, _ statemachine.Args) bool {
		return i.DisputedFrom == InvoiceStatusSent
	}))
	mustRegister(h.RegisterGuard(GuardDisputeFromPaid, func(_ context.Context, i *Invoice, _ statemachine.Args) bool {
		return i.DisputedFrom == InvoiceStatusPaid
	}))
	mustRegister(h.RegisterHook(HookRememberDisputeOrigin, func(_ context.Context, i *Invoice, _ statemachine.Args) error {
		i.RememberDisputeOrigin()
		return nil
	}))
	return h
}

func nowFrom(args statemachine.Args) time.Time {
	if t := args.Time(ArgNow); !t.IsZero() {
		return t
	}
	return time.Now()
}

// Registration only fails on duplicate names, which is a programming error here
func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}
