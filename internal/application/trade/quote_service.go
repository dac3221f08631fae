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

// QuoteService handles quote business operations
type QuoteService struct {
	runner
	handlers *statemachine.Handlers[*trade.Quote]
	notifier Notifier
	validity time.Duration
}

// NewQuoteService creates a new QuoteService
func NewQuoteService(uow UnitOfWork, locker DocumentLocker, logger *zap.Logger) *QuoteService {
	s := &QuoteService{
		runner:   newRunner(uow, locker, logger),
		validity: trade.DefaultQuoteValidity,
	}
	s.notifier = NewLogNotifier(s.logger)
	s.handlers = trade.NewQuoteHandlers()
	mustRegister(s.handlers.RegisterHook(trade.HookNotifyDocument, s.notifyCustomer))
	mustRegister(statemachine.Validate(trade.QuoteLifecycle, s.handlers))
	return s
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *QuoteService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetNotifier sets where sent quotes are delivered
func (s *QuoteService) SetNotifier(notifier Notifier) {
	s.notifier = notifier
}

// SetClock overrides the time source
func (s *QuoteService) SetClock(now func() time.Time) {
	s.now = now
}

// SetQuoteValidity sets the validity applied to new and duplicated quotes
func (s *QuoteService) SetQuoteValidity(validity time.Duration) {
	if validity > 0 {
		s.validity = validity
	}
}

// Create creates a DRAFT quote
func (s *QuoteService) Create(ctx context.Context, tenantID, actor uuid.UUID, req CreateQuoteRequest) Result {
	if err := validateItems(req.Items); err != nil {
		return Fail(err)
	}
	var quote *trade.Quote
	err := s.run(ctx, "", actorPtr(actor), func(ctx context.Context, w *work) error {
		expiresAt := w.now.Add(s.validity)
		if req.ExpiresAt != nil {
			expiresAt = *req.ExpiresAt
		}
		q, err := trade.NewQuote(tenantID, req.CustomerID, actor, expiresAt)
		if err != nil {
			return err
		}
		q.SetNotes(req.Notes)
		inputs, err := resolveItems(ctx, w, tenantID, req.Items)
		if err != nil {
			return err
		}
		if err := addItems(q, inputs); err != nil {
			return err
		}
		if err := s.save(ctx, w, q); err != nil {
			return err
		}
		w.raise(trade.NewDocumentCreatedEvent(trade.DocumentTypeQuote, &q.Document))
		quote = q
		return nil
	})
	if err != nil {
		return s.fail("create", uuid.Nil, err)
	}
	return Ok(ToQuoteResponse(quote), "Quote created")
}

// Get returns a quote
func (s *QuoteService) Get(ctx context.Context, tenantID, id uuid.UUID) Result {
	var quote *trade.Quote
	err := s.run(ctx, "", nil, func(ctx context.Context, w *work) error {
		var err error
		quote, err = w.repos.QuoteRepo().FindByID(ctx, tenantID, id)
		return err
	})
	if err != nil {
		return Fail(err)
	}
	return Ok(ToQuoteResponse(quote), "")
}

// List returns the quotes of a tenant, optionally narrowed to statuses
func (s *QuoteService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter, statuses ...trade.QuoteStatus) Result {
	var out []QuoteResponse
	err := s.run(ctx, "", nil, func(ctx context.Context, w *work) error {
		quotes, err := w.repos.QuoteRepo().FindAll(ctx, tenantID, filter, statuses...)
		if err != nil {
			return err
		}
		out = make([]QuoteResponse, 0, len(quotes))
		for i := range quotes {
			out = append(out, ToQuoteResponse(&quotes[i]))
		}
		return nil
	})
	if err != nil {
		return Fail(err)
	}
	return Ok(out, "")
}

// Update changes a DRAFT quote. A non-nil Items replaces every line.
func (s *QuoteService) Update(ctx context.Context, tenantID, id, actor uuid.UUID, req UpdateQuoteRequest) Result {
	if err := validateItems(req.Items); err != nil {
		return Fail(err)
	}
	return s.edit(ctx, tenantID, id, actor, "Quote updated", func(ctx context.Context, w *work, q *trade.Quote) error {
		if !q.IsEditable() {
			return shared.NewDomainError("INVALID_STATE", "Quote can only be modified in DRAFT status")
		}
		if req.ExpiresAt != nil {
			if err := q.SetExpiresAt(*req.ExpiresAt); err != nil {
				return err
			}
		}
		if req.Notes != nil {
			q.SetNotes(*req.Notes)
		}
		if req.Items != nil {
			inputs, err := resolveItems(ctx, w, tenantID, req.Items)
			if err != nil {
				return err
			}
			return replaceItems(q, inputs)
		}
		return nil
	})
}

// AddItem appends a line to a DRAFT quote
func (s *QuoteService) AddItem(ctx context.Context, tenantID, id, actor uuid.UUID, req LineItemRequest) Result {
	if err := validateItems([]LineItemRequest{req}); err != nil {
		return Fail(err)
	}
	return s.edit(ctx, tenantID, id, actor, "Item added", func(ctx context.Context, w *work, q *trade.Quote) error {
		inputs, err := resolveItems(ctx, w, tenantID, []LineItemRequest{req})
		if err != nil {
			return err
		}
		return addItems(q, inputs)
	})
}

// RemoveItem deletes a line from a DRAFT quote
func (s *QuoteService) RemoveItem(ctx context.Context, tenantID, id, itemID, actor uuid.UUID) Result {
	return s.edit(ctx, tenantID, id, actor, "Item removed", func(_ context.Context, _ *work, q *trade.Quote) error {
		return q.RemoveItem(itemID)
	})
}

// Delete removes a DRAFT quote
func (s *QuoteService) Delete(ctx context.Context, tenantID, id uuid.UUID) Result {
	err := s.run(ctx, DocumentLockKey(trade.DocumentTypeQuote, id), nil, func(ctx context.Context, w *work) error {
		q, err := w.repos.QuoteRepo().FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if q.Status != trade.QuoteStatusDraft {
			return shared.NewDomainError("INVALID_STATE", "Only DRAFT quotes can be deleted")
		}
		return w.repos.QuoteRepo().Delete(ctx, tenantID, id)
	})
	if err != nil {
		return s.fail("delete", id, err)
	}
	return Ok(nil, "Quote deleted")
}

// Send sends a DRAFT quote to the customer
func (s *QuoteService) Send(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	return s.fire(ctx, tenantID, id, actor, trade.TriggerSend, "Quote sent")
}

// MarkPending records that the customer is considering a sent quote
func (s *QuoteService) MarkPending(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	return s.fire(ctx, tenantID, id, actor, trade.TriggerMarkPending, "Quote marked as pending")
}

// Accept records the customer's acceptance
func (s *QuoteService) Accept(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	return s.fire(ctx, tenantID, id, actor, trade.TriggerAccept, "Quote accepted")
}

// Reject records the customer's refusal
func (s *QuoteService) Reject(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	return s.fire(ctx, tenantID, id, actor, trade.TriggerReject, "Quote rejected")
}

// Expire closes an open quote whose validity ended
func (s *QuoteService) Expire(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	return s.fire(ctx, tenantID, id, actor, trade.TriggerExpire, "Quote expired")
}

// Cancel cancels a DRAFT quote
func (s *QuoteService) Cancel(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	return s.fire(ctx, tenantID, id, actor, trade.TriggerCancel, "Quote cancelled")
}

// ConvertToOrder turns an ACCEPTED quote into a CREATED order with copies of its lines.
// The quote transition and the new order commit together.
func (s *QuoteService) ConvertToOrder(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	ctx, done := s.observe(ctx, trade.DocumentTypeQuote, trade.TriggerConvertToOrder, id)
	var order *trade.Order
	err := s.run(ctx, DocumentLockKey(trade.DocumentTypeQuote, id), actorPtr(actor), func(ctx context.Context, w *work) error {
		q, err := w.repos.QuoteRepo().FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		from := q.Status
		t, err := statemachine.Bind(trade.QuoteLifecycle, s.handlers, q).Fire(ctx, trade.TriggerConvertToOrder, w.args())
		if err != nil {
			return err
		}

		o, err := trade.NewOrderFromQuote(q, actor)
		if err != nil {
			return err
		}
		if err := trade.AssignNumber(ctx, w.repos.SequenceRepo(), trade.DocumentTypeOrder, &o.Document, w.now); err != nil {
			return err
		}
		if err := w.repos.OrderRepo().Save(ctx, o); err != nil {
			return err
		}
		q.LinkOrder(o.ID)
		if err := s.save(ctx, w, q); err != nil {
			return err
		}

		w.raise(
			trade.NewDocumentTransitionedEvent(trade.DocumentTypeQuote, &q.Document, string(from), string(t.Target), trade.TriggerConvertToOrder),
			trade.NewDocumentCreatedEvent(trade.DocumentTypeOrder, &o.Document),
		)
		order = o
		return nil
	})
	done(err)
	if err != nil {
		return s.fail(trade.TriggerConvertToOrder, id, err)
	}
	return Ok(ToOrderResponse(order), "Quote converted to order "+order.Number)
}

// Duplicate copies a quote of any status into a new DRAFT quote
func (s *QuoteService) Duplicate(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	var dup *trade.Quote
	err := s.run(ctx, "", actorPtr(actor), func(ctx context.Context, w *work) error {
		q, err := w.repos.QuoteRepo().FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		d, err := q.Duplicate(actor, s.validity)
		if err != nil {
			return err
		}
		d.ExpiresAt = w.now.Add(s.validity)
		if err := s.save(ctx, w, d); err != nil {
			return err
		}
		w.raise(trade.NewDocumentCreatedEvent(trade.DocumentTypeQuote, &d.Document))
		dup = d
		return nil
	})
	if err != nil {
		return s.fail("duplicate", id, err)
	}
	return Ok(ToQuoteResponse(dup), "Quote duplicated")
}

// ListExpired returns the open quotes whose validity ended
func (s *QuoteService) ListExpired(ctx context.Context, tenantID uuid.UUID) Result {
	var out []QuoteResponse
	err := s.run(ctx, "", nil, func(ctx context.Context, w *work) error {
		quotes, err := w.repos.QuoteRepo().FindExpired(ctx, tenantID, w.now)
		if err != nil {
			return err
		}
		out = make([]QuoteResponse, 0, len(quotes))
		for i := range quotes {
			out = append(out, ToQuoteResponse(&quotes[i]))
		}
		return nil
	})
	if err != nil {
		return Fail(err)
	}
	return Ok(out, "")
}

// BulkExpire expires every open quote whose validity ended.
// Each quote is expired in its own transaction; one failure does not stop the rest.
func (s *QuoteService) BulkExpire(ctx context.Context, tenantID, actor uuid.UUID) Result {
	var ids []uuid.UUID
	err := s.run(ctx, "", nil, func(ctx context.Context, w *work) error {
		quotes, err := w.repos.QuoteRepo().FindExpired(ctx, tenantID, w.now)
		if err != nil {
			return err
		}
		for _, q := range quotes {
			ids = append(ids, q.ID)
		}
		return nil
	})
	if err != nil {
		return Fail(err)
	}

	resp := BulkResponse{Numbers: make([]string, 0, len(ids))}
	for _, id := range ids {
		r := s.fire(ctx, tenantID, id, actor, trade.TriggerExpire, "Quote expired")
		if !r.Success {
			resp.Failed++
			continue
		}
		resp.Processed++
		resp.Numbers = append(resp.Numbers, r.Data.(QuoteResponse).Number)
	}
	s.logger.Info("Expired quotes",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("processed", resp.Processed),
		zap.Int("failed", resp.Failed),
	)
	return Ok(resp, "Expired quotes processed")
}

// fire runs one lifecycle trigger on a quote under its document lock
func (s *QuoteService) fire(ctx context.Context, tenantID, id, actor uuid.UUID, trigger, message string) Result {
	ctx, done := s.observe(ctx, trade.DocumentTypeQuote, trigger, id)
	var quote *trade.Quote
	err := s.run(ctx, DocumentLockKey(trade.DocumentTypeQuote, id), actorPtr(actor), func(ctx context.Context, w *work) error {
		q, err := w.repos.QuoteRepo().FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		from := q.Status
		t, err := statemachine.Bind(trade.QuoteLifecycle, s.handlers, q).Fire(ctx, trigger, w.args())
		if err != nil {
			return err
		}
		if err := s.save(ctx, w, q); err != nil {
			return err
		}
		w.raise(trade.NewDocumentTransitionedEvent(trade.DocumentTypeQuote, &q.Document, string(from), string(t.Target), trigger))
		quote = q
		return nil
	})
	done(err)
	if err != nil {
		return s.fail(trigger, id, err)
	}
	return Ok(ToQuoteResponse(quote), message)
}

func (s *QuoteService) edit(ctx context.Context, tenantID, id, actor uuid.UUID, message string, fn func(ctx context.Context, w *work, q *trade.Quote) error) Result {
	var quote *trade.Quote
	err := s.run(ctx, DocumentLockKey(trade.DocumentTypeQuote, id), actorPtr(actor), func(ctx context.Context, w *work) error {
		q, err := w.repos.QuoteRepo().FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, w, q); err != nil {
			return err
		}
		quote = q
		return s.save(ctx, w, q)
	})
	if err != nil {
		return s.fail("update", id, err)
	}
	return Ok(ToQuoteResponse(quote), message)
}

func (s *QuoteService) save(ctx context.Context, w *work, q *trade.Quote) error {
	if err := trade.AssignNumber(ctx, w.repos.SequenceRepo(), trade.DocumentTypeQuote, &q.Document, w.now); err != nil {
		return err
	}
	return w.repos.QuoteRepo().Save(ctx, q)
}

func (s *QuoteService) notifyCustomer(_ context.Context, q *trade.Quote, args statemachine.Args) error {
	if w := workFrom(args); w != nil {
		s.notify(w, s.notifier, noticeOf(trade.DocumentTypeQuote, &q.Document, string(q.Status)))
	}
	return nil
}

func (s *QuoteService) fail(operation string, id uuid.UUID, err error) Result {
	logFailure(s.logger, "quote", operation, id, err)
	return Fail(err)
}
