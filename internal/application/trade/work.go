package trade

import (
	"context"
	"time"

	inventoryapp "github.com/erp/backoffice/internal/application/inventory"
	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/statemachine"
	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/erp/backoffice/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// argWork is the Args key under which hooks find the current unit of work
const argWork = "work"

// work is the state of one unit of work: the transaction-bound repositories,
// the stock keeper built on them, and what must happen once it commits
type work struct {
	repos       Repositories
	actor       *uuid.UUID
	now         time.Time
	reserveTTL  time.Duration
	logger      *zap.Logger
	book        *inventoryapp.StockBook
	events      []shared.DomainEvent
	afterCommit []func(ctx context.Context)
}

// stock returns the stock keeper of this unit of work, creating it on first use
func (w *work) stock() *inventoryapp.StockBook {
	if w.book == nil {
		now := w.now
		w.book = inventoryapp.NewStockBook(w.repos, w.reserveTTL, w.logger,
			inventoryapp.WithClock(func() time.Time { return now }))
	}
	return w.book
}

func (w *work) raise(events ...shared.DomainEvent) {
	w.events = append(w.events, events...)
}

// onCommit queues fn to run after a successful commit
func (w *work) onCommit(fn func(ctx context.Context)) {
	w.afterCommit = append(w.afterCommit, fn)
}

func (w *work) pendingEvents() []shared.DomainEvent {
	events := w.events
	if w.book != nil {
		events = append(events, w.book.PendingEvents()...)
	}
	return events
}

// args builds the machine arguments handed to guards and hooks
func (w *work) args() statemachine.Args {
	return statemachine.Args{trade.ArgNow: w.now, argWork: w}
}

func workFrom(args statemachine.Args) *work {
	w, _ := args[argWork].(*work)
	return w
}

// runner executes document operations: lock, transaction, then publication
type runner struct {
	uow        UnitOfWork
	locker     DocumentLocker
	publisher  shared.EventPublisher
	now        func() time.Time
	reserveTTL time.Duration
	metrics    *telemetry.LifecycleMetrics
	logger     *zap.Logger
}

func newRunner(uow UnitOfWork, locker DocumentLocker, logger *zap.Logger) runner {
	if locker == nil {
		locker = unlockedLocker{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return runner{
		uow:    uow,
		locker: locker,
		now:    time.Now,
		logger: logger,
	}
}

// run executes fn in one transaction, holding lockKey when it is not empty.
// Events and post-commit callbacks only fire when the transaction committed.
func (r *runner) run(ctx context.Context, lockKey string, actor *uuid.UUID, fn func(ctx context.Context, w *work) error) error {
	var w *work
	txn := func(ctx context.Context) error {
		return r.uow.Execute(ctx, func(repos Repositories) error {
			w = &work{
				repos:      repos,
				actor:      actor,
				now:        r.now(),
				reserveTTL: r.reserveTTL,
				logger:     r.logger,
			}
			return fn(ctx, w)
		})
	}

	var err error
	if lockKey == "" {
		err = txn(ctx)
	} else {
		err = r.locker.WithLock(ctx, lockKey, txn)
	}
	if err != nil {
		return err
	}

	for _, cb := range w.afterCommit {
		cb(ctx)
	}
	r.publish(ctx, w.pendingEvents())
	return nil
}

// SetMetrics enables lifecycle metrics
func (r *runner) SetMetrics(metrics *telemetry.LifecycleMetrics) {
	r.metrics = metrics
}

// observe opens the span of one lifecycle trigger. The returned function
// closes it and records the outcome.
func (r *runner) observe(ctx context.Context, docType trade.DocumentType, trigger string, id uuid.UUID) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, string(docType)+"."+trigger, trace.WithAttributes(
		telemetry.AttrDocumentType.String(string(docType)),
		telemetry.AttrDocumentID.String(id.String()),
	))
	return ctx, func(err error) {
		outcome := telemetry.OutcomeOK
		if err != nil {
			outcome = shared.ErrorCode(err)
			span.SetAttributes(telemetry.AttrErrorCode.String(outcome))
		}
		r.metrics.RecordTransition(ctx, string(docType), trigger, outcome, time.Since(start))
		telemetry.Finish(span, err)
	}
}

func (r *runner) publish(ctx context.Context, events []shared.DomainEvent) {
	r.countReservations(ctx, events)
	if r.publisher == nil || len(events) == 0 {
		return
	}
	if err := r.publisher.Publish(ctx, events...); err != nil {
		r.logger.Warn("Failed to publish document events", zap.Int("events", len(events)), zap.Error(err))
	}
}

var reservationStatusByEvent = map[string]inventory.ReservationStatus{
	inventory.EventTypeStockReserved:             inventory.ReservationReserved,
	inventory.EventTypeStockReservationConverted: inventory.ReservationConverted,
	inventory.EventTypeStockReservationReleased:  inventory.ReservationReleased,
}

func (r *runner) countReservations(ctx context.Context, events []shared.DomainEvent) {
	if r.metrics == nil {
		return
	}
	counts := make(map[inventory.ReservationStatus]int)
	for _, e := range events {
		if status, ok := reservationStatusByEvent[e.EventType()]; ok {
			counts[status]++
		}
	}
	for status, n := range counts {
		r.metrics.RecordReservation(ctx, string(status), n)
	}
}

// notify sends a document email after commit. Failures are logged only.
func (r *runner) notify(w *work, notifier Notifier, notice DocumentNotice) {
	if notifier == nil {
		return
	}
	logger := r.logger
	w.onCommit(func(ctx context.Context) {
		if err := notifier.SendDocumentEmail(ctx, notice); err != nil {
			logger.Warn("Failed to send document email",
				zap.String("document_type", string(notice.DocumentType)),
				zap.String("document_id", notice.DocumentID.String()),
				zap.Error(err),
			)
		}
	})
}

func actorPtr(actor uuid.UUID) *uuid.UUID {
	if actor == uuid.Nil {
		return nil
	}
	return &actor
}

// logFailure logs rejected operations. Expected business outcomes are logged at debug level.
func logFailure(logger *zap.Logger, docType, operation string, id uuid.UUID, err error) {
	fields := []zap.Field{
		zap.String("document_type", docType),
		zap.String("operation", operation),
		zap.String("code", shared.ErrorCode(err)),
		zap.Error(err),
	}
	if id != uuid.Nil {
		fields = append(fields, zap.String("document_id", id.String()))
	}
	if shared.ErrorCode(err) == "INTERNAL_ERROR" {
		logger.Error("Document operation failed", fields...)
		return
	}
	logger.Debug("Document operation rejected", fields...)
}

// Handler registration only fails on programming errors
func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}
