package trade

import (
	"context"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/statemachine"
	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InvoiceService handles invoice business operations
type InvoiceService struct {
	runner
	handlers    *statemachine.Handlers[*trade.Invoice]
	notifier    Notifier
	paymentTerm time.Duration
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(uow UnitOfWork, locker DocumentLocker, logger *zap.Logger) *InvoiceService {
	s := &InvoiceService{
		runner:      newRunner(uow, locker, logger),
		paymentTerm: trade.DefaultPaymentTerm,
	}
	s.notifier = NewLogNotifier(s.logger)
	s.handlers = trade.NewInvoiceHandlers()
	mustRegister(s.handlers.RegisterHook(trade.HookNotifyDocument, s.notifyCustomer))
	mustRegister(statemachine.Validate(trade.InvoiceLifecycle, s.handlers))
	return s
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *InvoiceService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetNotifier sets where sent invoices are delivered
func (s *InvoiceService) SetNotifier(notifier Notifier) {
	s.notifier = notifier
}

// SetClock overrides the time source
func (s *InvoiceService) SetClock(now func() time.Time) {
	s.now = now
}

// SetPaymentTerm sets the due date offset of new invoices
func (s *InvoiceService) SetPaymentTerm(term time.Duration) {
	if term > 0 {
		s.paymentTerm = term
	}
}

// Create creates a standalone DRAFT invoice
func (s *InvoiceService) Create(ctx context.Context, tenantID, actor uuid.UUID, req CreateInvoiceRequest) Result {
	if err := validateItems(req.Items); err != nil {
		return Fail(err)
	}
	var invoice *trade.Invoice
	err := s.run(ctx, "", actorPtr(actor), func(ctx context.Context, w *work) error {
		due := w.now.Add(s.paymentTerm)
		if req.DueDate != nil {
			due = *req.DueDate
		}
		inv, err := trade.NewInvoice(tenantID, req.CustomerID, actor, due)
		if err != nil {
			return err
		}
		inv.SetNotes(req.Notes)
		inputs, err := resolveItems(ctx, w, tenantID, req.Items)
		if err != nil {
			return err
		}
		if err := addItems(inv, inputs); err != nil {
			return err
		}
		if err := s.save(ctx, w, inv); err != nil {
			return err
		}
		w.raise(trade.NewDocumentCreatedEvent(trade.DocumentTypeInvoice, &inv.Document))
		invoice = inv
		return nil
	})
	if err != nil {
		return s.fail("create", uuid.Nil, err)
	}
	return Ok(ToInvoiceResponse(invoice), "Invoice created")
}

// CreateFromOrder creates the invoice of a PAID, SHIPPED or COMPLETED order
func (s *InvoiceService) CreateFromOrder(ctx context.Context, tenantID, orderID, actor uuid.UUID) Result {
	var invoice *trade.Invoice
	err := s.run(ctx, DocumentLockKey(trade.DocumentTypeOrder, orderID), actorPtr(actor), func(ctx context.Context, w *work) error {
		o, err := w.repos.OrderRepo().FindByID(ctx, tenantID, orderID)
		if err != nil {
			return err
		}
		invoice, err = invoiceFromOrder(ctx, w, o, actor, s.paymentTerm)
		return err
	})
	if err != nil {
		return s.fail("create_from_order", orderID, err)
	}
	return Ok(ToInvoiceResponse(invoice), "Invoice created")
}

// Get returns an invoice
func (s *InvoiceService) Get(ctx context.Context, tenantID, id uuid.UUID) Result {
	var invoice *trade.Invoice
	err := s.run(ctx, "", nil, func(ctx context.Context, w *work) error {
		var err error
		invoice, err = w.repos.InvoiceRepo().FindByID(ctx, tenantID, id)
		return err
	})
	if err != nil {
		return Fail(err)
	}
	return Ok(ToInvoiceResponse(invoice), "")
}

// List returns the invoices of a tenant, optionally narrowed to statuses
func (s *InvoiceService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter, statuses ...trade.InvoiceStatus) Result {
	var out []InvoiceResponse
	err := s.run(ctx, "", nil, func(ctx context.Context, w *work) error {
		invoices, err := w.repos.InvoiceRepo().FindAll(ctx, tenantID, filter, statuses...)
		if err != nil {
			return err
		}
		out = toInvoiceResponses(invoices)
		return nil
	})
	if err != nil {
		return Fail(err)
	}
	return Ok(out, "")
}

// AddItem appends a line to a DRAFT invoice
func (s *InvoiceService) AddItem(ctx context.Context, tenantID, id, actor uuid.UUID, req LineItemRequest) Result {
	if err := validateItems([]LineItemRequest{req}); err != nil {
		return Fail(err)
	}
	var invoice *trade.Invoice
	err := s.run(ctx, DocumentLockKey(trade.DocumentTypeInvoice, id), actorPtr(actor), func(ctx context.Context, w *work) error {
		inv, err := w.repos.InvoiceRepo().FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		inputs, err := resolveItems(ctx, w, tenantID, []LineItemRequest{req})
		if err != nil {
			return err
		}
		if err := addItems(inv, inputs); err != nil {
			return err
		}
		invoice = inv
		return s.save(ctx, w, inv)
	})
	if err != nil {
		return s.fail("update", id, err)
	}
	return Ok(ToInvoiceResponse(invoice), "Item added")
}

// Approve approves a DRAFT invoice
func (s *InvoiceService) Approve(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	return s.fire(ctx, tenantID, id, actor, trade.TriggerApprove, "Invoice approved")
}

// Send sends the invoice to the customer
func (s *InvoiceService) Send(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	return s.fire(ctx, tenantID, id, actor, trade.TriggerSend, "Invoice sent")
}

// MarkOverdue flags an unpaid invoice whose due date passed
func (s *InvoiceService) MarkOverdue(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	return s.fire(ctx, tenantID, id, actor, trade.TriggerMarkOverdue, "Invoice marked as overdue")
}

// Dispute records a customer dispute on a SENT or PAID invoice
func (s *InvoiceService) Dispute(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	return s.fire(ctx, tenantID, id, actor, trade.TriggerDispute, "Invoice disputed")
}

// ResolveDispute returns a disputed invoice to the status it was disputed from
func (s *InvoiceService) ResolveDispute(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	return s.fire(ctx, tenantID, id, actor, trade.TriggerResolveDispute, "Dispute resolved")
}

// Cancel cancels an invoice that was not paid
func (s *InvoiceService) Cancel(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	return s.fire(ctx, tenantID, id, actor, trade.TriggerCancel, "Invoice cancelled")
}

// RecordPayment records a payment. A payment settling the balance fires
// record_payment, any other fires record_partial_payment.
func (s *InvoiceService) RecordPayment(ctx context.Context, tenantID, id, actor uuid.UUID, req RecordPaymentRequest) Result {
	if !req.Amount.IsPositive() {
		return Fail(shared.NewValidationError("amount", "Payment amount must be positive"))
	}
	ctx, done := s.observe(ctx, trade.DocumentTypeInvoice, trade.TriggerRecordPayment, id)
	var invoice *trade.Invoice
	err := s.run(ctx, DocumentLockKey(trade.DocumentTypeInvoice, id), actorPtr(actor), func(ctx context.Context, w *work) error {
		inv, err := w.repos.InvoiceRepo().FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if !inv.Status.AcceptsPayment() {
			return &shared.IllegalTransitionError{Machine: "invoice", State: string(inv.Status), Trigger: trade.TriggerRecordPayment}
		}
		paidAt := w.now
		if req.PaidAt != nil {
			paidAt = *req.PaidAt
		}
		payment, err := inv.AddPayment(req.Amount, req.Method, req.Reference, paidAt)
		if err != nil {
			return err
		}
		recorded := trade.NewInvoicePaymentRecordedEvent(inv, payment)

		trigger := trade.TriggerRecordPartialPayment
		if inv.IsFullyPaid() {
			trigger = trade.TriggerRecordPayment
		}
		if err := s.transition(ctx, w, inv, trigger); err != nil {
			return err
		}
		w.raise(recorded)
		invoice = inv
		return nil
	})
	done(err)
	if err != nil {
		return s.fail(trade.TriggerRecordPayment, id, err)
	}
	if invoice.Status == trade.InvoiceStatusPaid {
		return Ok(ToInvoiceResponse(invoice), "Payment recorded, invoice paid")
	}
	return Ok(ToInvoiceResponse(invoice), "Partial payment recorded")
}

// Summary returns the invoice overview with the triggers available from its status
func (s *InvoiceService) Summary(ctx context.Context, tenantID, id uuid.UUID) Result {
	var summary InvoiceSummaryResponse
	err := s.run(ctx, "", nil, func(ctx context.Context, w *work) error {
		inv, err := w.repos.InvoiceRepo().FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		summary = InvoiceSummaryResponse{
			ID:                inv.ID,
			Number:            inv.Number,
			Status:            string(inv.Status),
			TotalAmount:       inv.TotalAmount,
			AmountPaid:        inv.AmountPaid,
			BalanceDue:        inv.BalanceDue(),
			DueDate:           inv.DueDate,
			PastDue:           inv.IsPastDueAt(w.now) && inv.Status.AcceptsPayment(),
			Payments:          toPaymentResponses(inv.Payments),
			AvailableTriggers: statemachine.Bind(trade.InvoiceLifecycle, s.handlers, inv).AvailableTriggers(),
		}
		return nil
	})
	if err != nil {
		return Fail(err)
	}
	return Ok(summary, "")
}

// ListOverdue returns the SENT and PARTIALLY_PAID invoices whose due date passed
func (s *InvoiceService) ListOverdue(ctx context.Context, tenantID uuid.UUID) Result {
	var out []InvoiceResponse
	err := s.run(ctx, "", nil, func(ctx context.Context, w *work) error {
		invoices, err := w.repos.InvoiceRepo().FindPastDue(ctx, tenantID, w.now)
		if err != nil {
			return err
		}
		out = toInvoiceResponses(invoices)
		return nil
	})
	if err != nil {
		return Fail(err)
	}
	return Ok(out, "")
}

// BulkMarkOverdue flags every past-due invoice of the tenant.
// Each invoice is handled in its own transaction.
func (s *InvoiceService) BulkMarkOverdue(ctx context.Context, tenantID, actor uuid.UUID) Result {
	var ids []uuid.UUID
	err := s.run(ctx, "", nil, func(ctx context.Context, w *work) error {
		invoices, err := w.repos.InvoiceRepo().FindPastDue(ctx, tenantID, w.now)
		if err != nil {
			return err
		}
		for _, inv := range invoices {
			ids = append(ids, inv.ID)
		}
		return nil
	})
	if err != nil {
		return Fail(err)
	}

	resp := BulkResponse{Numbers: make([]string, 0, len(ids))}
	for _, id := range ids {
		r := s.MarkOverdue(ctx, tenantID, id, actor)
		if !r.Success {
			resp.Failed++
			continue
		}
		resp.Processed++
		resp.Numbers = append(resp.Numbers, r.Data.(InvoiceResponse).Number)
	}
	s.logger.Info("Marked invoices overdue",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("processed", resp.Processed),
		zap.Int("failed", resp.Failed),
	)
	return Ok(resp, "Overdue invoices processed")
}

func (s *InvoiceService) fire(ctx context.Context, tenantID, id, actor uuid.UUID, trigger, message string) Result {
	ctx, done := s.observe(ctx, trade.DocumentTypeInvoice, trigger, id)
	var invoice *trade.Invoice
	err := s.run(ctx, DocumentLockKey(trade.DocumentTypeInvoice, id), actorPtr(actor), func(ctx context.Context, w *work) error {
		inv, err := w.repos.InvoiceRepo().FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if err := s.transition(ctx, w, inv, trigger); err != nil {
			return err
		}
		invoice = inv
		return nil
	})
	done(err)
	if err != nil {
		return s.fail(trigger, id, err)
	}
	return Ok(ToInvoiceResponse(invoice), message)
}

func (s *InvoiceService) transition(ctx context.Context, w *work, inv *trade.Invoice, trigger string) error {
	from := inv.Status
	t, err := statemachine.Bind(trade.InvoiceLifecycle, s.handlers, inv).Fire(ctx, trigger, w.args())
	if err != nil {
		return err
	}
	if err := s.save(ctx, w, inv); err != nil {
		return err
	}
	w.raise(trade.NewDocumentTransitionedEvent(trade.DocumentTypeInvoice, &inv.Document, string(from), string(t.Target), trigger))
	return nil
}

func (s *InvoiceService) save(ctx context.Context, w *work, inv *trade.Invoice) error {
	if err := trade.AssignNumber(ctx, w.repos.SequenceRepo(), trade.DocumentTypeInvoice, &inv.Document, w.now); err != nil {
		return err
	}
	return w.repos.InvoiceRepo().Save(ctx, inv)
}

func (s *InvoiceService) notifyCustomer(_ context.Context, inv *trade.Invoice, args statemachine.Args) error {
	if w := workFrom(args); w != nil {
		s.notify(w, s.notifier, noticeOf(trade.DocumentTypeInvoice, &inv.Document, string(inv.Status)))
	}
	return nil
}

func (s *InvoiceService) fail(operation string, id uuid.UUID, err error) Result {
	logFailure(s.logger, "invoice", operation, id, err)
	return Fail(err)
}

func toInvoiceResponses(invoices []trade.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		out = append(out, ToInvoiceResponse(&invoices[i]))
	}
	return out
}
