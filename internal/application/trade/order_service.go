package trade

import (
	"context"
	"errors"
	"time"

	inventoryapp "github.com/erp/backoffice/internal/application/inventory"
	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/shared/statemachine"
	"github.com/erp/backoffice/internal/domain/shared/strategy"
	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errNoUnitOfWork = errors.New("stock hook fired outside a unit of work")

// OrderService handles order business operations.
// Stock is reserved when an order is paid, converted when it ships and
// released when it is cancelled, inside the transaction of the transition.
type OrderService struct {
	runner
	handlers    *statemachine.Handlers[*trade.Order]
	strategies  inventoryapp.StrategyResolver
	paymentTerm time.Duration
}

// NewOrderService creates a new OrderService
func NewOrderService(uow UnitOfWork, locker DocumentLocker, strategies inventoryapp.StrategyResolver, logger *zap.Logger) *OrderService {
	s := &OrderService{
		runner:      newRunner(uow, locker, logger),
		strategies:  strategies,
		paymentTerm: trade.DefaultPaymentTerm,
	}
	s.reserveTTL = inventory.DefaultReservationTTL
	s.handlers = trade.NewOrderHandlers()
	mustRegister(s.handlers.RegisterHook(trade.HookReserveOrderStock, s.reserveOrderStock))
	mustRegister(s.handlers.RegisterHook(trade.HookConvertOrderReservations, s.convertOrderReservations))
	mustRegister(s.handlers.RegisterHook(trade.HookReleaseOrderReservations, s.releaseOrderReservations))
	mustRegister(statemachine.Validate(trade.OrderLifecycle, s.handlers))
	return s
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *OrderService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// SetClock overrides the time source
func (s *OrderService) SetClock(now func() time.Time) {
	s.now = now
}

// SetReservationTTL sets the hold applied to stock reserved for paid orders
func (s *OrderService) SetReservationTTL(ttl time.Duration) {
	if ttl > 0 {
		s.reserveTTL = ttl
	}
}

// SetPaymentTerm sets the due date offset of invoices created from orders
func (s *OrderService) SetPaymentTerm(term time.Duration) {
	if term > 0 {
		s.paymentTerm = term
	}
}

// Create creates an order directly, without a quote
func (s *OrderService) Create(ctx context.Context, tenantID, actor uuid.UUID, req CreateOrderRequest) Result {
	if err := validateItems(req.Items); err != nil {
		return Fail(err)
	}
	var order *trade.Order
	err := s.run(ctx, "", actorPtr(actor), func(ctx context.Context, w *work) error {
		o, err := trade.NewOrder(tenantID, req.CustomerID, actor)
		if err != nil {
			return err
		}
		o.SetNotes(req.Notes)
		inputs, err := resolveItems(ctx, w, tenantID, req.Items)
		if err != nil {
			return err
		}
		if err := addItems(o, inputs); err != nil {
			return err
		}
		if err := s.save(ctx, w, o); err != nil {
			return err
		}
		w.raise(trade.NewDocumentCreatedEvent(trade.DocumentTypeOrder, &o.Document))
		order = o
		return nil
	})
	if err != nil {
		return s.fail("create", uuid.Nil, err)
	}
	return Ok(ToOrderResponse(order), "Order created")
}

// Get returns an order
func (s *OrderService) Get(ctx context.Context, tenantID, id uuid.UUID) Result {
	var order *trade.Order
	err := s.run(ctx, "", nil, func(ctx context.Context, w *work) error {
		var err error
		order, err = w.repos.OrderRepo().FindByID(ctx, tenantID, id)
		return err
	})
	if err != nil {
		return Fail(err)
	}
	return Ok(ToOrderResponse(order), "")
}

// List returns the orders of a tenant, optionally narrowed to statuses
func (s *OrderService) List(ctx context.Context, tenantID uuid.UUID, filter shared.Filter, statuses ...trade.OrderStatus) Result {
	var out []OrderResponse
	err := s.run(ctx, "", nil, func(ctx context.Context, w *work) error {
		orders, err := w.repos.OrderRepo().FindAll(ctx, tenantID, filter, statuses...)
		if err != nil {
			return err
		}
		out = make([]OrderResponse, 0, len(orders))
		for i := range orders {
			out = append(out, ToOrderResponse(&orders[i]))
		}
		return nil
	})
	if err != nil {
		return Fail(err)
	}
	return Ok(out, "")
}

// ListByStatus returns the orders of a tenant in one status
func (s *OrderService) ListByStatus(ctx context.Context, tenantID uuid.UUID, status trade.OrderStatus, filter shared.Filter) Result {
	if !status.IsValid() {
		return Fail(shared.NewValidationError("status", "Unknown order status "+string(status)))
	}
	return s.List(ctx, tenantID, filter, status)
}

// Update changes a CREATED order. A non-nil Items replaces every line.
func (s *OrderService) Update(ctx context.Context, tenantID, id, actor uuid.UUID, req UpdateOrderRequest) Result {
	if err := validateItems(req.Items); err != nil {
		return Fail(err)
	}
	return s.edit(ctx, tenantID, id, actor, "Order updated", func(ctx context.Context, w *work, o *trade.Order) error {
		if !o.IsEditable() {
			return shared.NewDomainError("INVALID_STATE", "Order can only be modified in CREATED status")
		}
		if req.Notes != nil {
			o.SetNotes(*req.Notes)
		}
		if req.Items != nil {
			inputs, err := resolveItems(ctx, w, tenantID, req.Items)
			if err != nil {
				return err
			}
			return replaceItems(o, inputs)
		}
		return nil
	})
}

// AddItem appends a line to a CREATED order
func (s *OrderService) AddItem(ctx context.Context, tenantID, id, actor uuid.UUID, req LineItemRequest) Result {
	if err := validateItems([]LineItemRequest{req}); err != nil {
		return Fail(err)
	}
	return s.edit(ctx, tenantID, id, actor, "Item added", func(ctx context.Context, w *work, o *trade.Order) error {
		inputs, err := resolveItems(ctx, w, tenantID, []LineItemRequest{req})
		if err != nil {
			return err
		}
		return addItems(o, inputs)
	})
}

// RemoveItem deletes a line from a CREATED order
func (s *OrderService) RemoveItem(ctx context.Context, tenantID, id, itemID, actor uuid.UUID) Result {
	return s.edit(ctx, tenantID, id, actor, "Item removed", func(_ context.Context, _ *work, o *trade.Order) error {
		return o.RemoveItem(itemID)
	})
}

// Delete removes a CREATED order
func (s *OrderService) Delete(ctx context.Context, tenantID, id uuid.UUID) Result {
	err := s.run(ctx, DocumentLockKey(trade.DocumentTypeOrder, id), nil, func(ctx context.Context, w *work) error {
		o, err := w.repos.OrderRepo().FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if o.Status != trade.OrderStatusCreated {
			return shared.NewDomainError("INVALID_STATE", "Only CREATED orders can be deleted")
		}
		return w.repos.OrderRepo().Delete(ctx, tenantID, id)
	})
	if err != nil {
		return s.fail("delete", id, err)
	}
	return Ok(nil, "Order deleted")
}

// AwaitPayment marks a CREATED order as waiting for payment
func (s *OrderService) AwaitPayment(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	return s.fire(ctx, tenantID, id, actor, trade.TriggerAwaitPayment, "Order awaiting payment", nil)
}

// MarkPaid records payment and reserves stock for every tracked line.
// Either every line is reserved or the order stays unpaid.
func (s *OrderService) MarkPaid(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	return s.fire(ctx, tenantID, id, actor, trade.TriggerMarkPaid, "Order marked as paid", nil)
}

// Ship converts the order's reservations into sales
func (s *OrderService) Ship(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	return s.fire(ctx, tenantID, id, actor, trade.TriggerShip, "Order shipped", nil)
}

// Complete closes a shipped order
func (s *OrderService) Complete(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	return s.fire(ctx, tenantID, id, actor, trade.TriggerComplete, "Order completed", nil)
}

// Cancel cancels the order and releases its outstanding reservations
func (s *OrderService) Cancel(ctx context.Context, tenantID, id, actor uuid.UUID, req CancelOrderRequest) Result {
	return s.fire(ctx, tenantID, id, actor, trade.TriggerCancel, "Order cancelled", func(o *trade.Order) {
		o.SetCancelReason(req.Reason)
	})
}

// ToInvoice creates the invoice of a PAID, SHIPPED or COMPLETED order
func (s *OrderService) ToInvoice(ctx context.Context, tenantID, id, actor uuid.UUID) Result {
	var invoice *trade.Invoice
	err := s.run(ctx, DocumentLockKey(trade.DocumentTypeOrder, id), actorPtr(actor), func(ctx context.Context, w *work) error {
		o, err := w.repos.OrderRepo().FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		invoice, err = invoiceFromOrder(ctx, w, o, actor, s.paymentTerm)
		return err
	})
	if err != nil {
		return s.fail("to_invoice", id, err)
	}
	return Ok(ToInvoiceResponse(invoice), "Invoice "+invoice.Number+" created from order")
}

// Summary returns the order overview with the triggers available from its status
func (s *OrderService) Summary(ctx context.Context, tenantID, id uuid.UUID) Result {
	var summary OrderSummaryResponse
	err := s.run(ctx, "", nil, func(ctx context.Context, w *work) error {
		o, err := w.repos.OrderRepo().FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		summary = OrderSummaryResponse{
			ID:                o.ID,
			Number:            o.Number,
			Status:            string(o.Status),
			ItemCount:         o.ItemCount(),
			Subtotal:          o.Subtotal,
			TaxAmount:         o.TaxAmount,
			TotalAmount:       o.TotalAmount,
			AvailableTriggers: statemachine.Bind(trade.OrderLifecycle, s.handlers, o).AvailableTriggers(),
			History:           toStatusChangeResponses(o.History),
			InvoiceID:         o.InvoiceID,
		}
		return nil
	})
	if err != nil {
		return Fail(err)
	}
	return Ok(summary, "")
}

// invoiceFromOrder creates, numbers and saves the invoice of o and links it.
// Shared by OrderService.ToInvoice and InvoiceService.CreateFromOrder.
func invoiceFromOrder(ctx context.Context, w *work, o *trade.Order, actor uuid.UUID, term time.Duration) (*trade.Invoice, error) {
	inv, err := trade.NewInvoiceFromOrder(o, actor, w.now.Add(term))
	if err != nil {
		return nil, err
	}
	if err := o.LinkInvoice(inv.ID); err != nil {
		return nil, err
	}
	if err := trade.AssignNumber(ctx, w.repos.SequenceRepo(), trade.DocumentTypeInvoice, &inv.Document, w.now); err != nil {
		return nil, err
	}
	if err := w.repos.InvoiceRepo().Save(ctx, inv); err != nil {
		return nil, err
	}
	if err := w.repos.OrderRepo().Save(ctx, o); err != nil {
		return nil, err
	}
	w.raise(trade.NewDocumentCreatedEvent(trade.DocumentTypeInvoice, &inv.Document))
	return inv, nil
}

// fire runs one lifecycle trigger on an order under its document lock and
// records the change in the order history
func (s *OrderService) fire(ctx context.Context, tenantID, id, actor uuid.UUID, trigger, message string, prepare func(o *trade.Order)) Result {
	ctx, done := s.observe(ctx, trade.DocumentTypeOrder, trigger, id)
	var order *trade.Order
	err := s.run(ctx, DocumentLockKey(trade.DocumentTypeOrder, id), actorPtr(actor), func(ctx context.Context, w *work) error {
		o, err := w.repos.OrderRepo().FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if prepare != nil {
			prepare(o)
		}
		from := o.Status
		t, err := statemachine.Bind(trade.OrderLifecycle, s.handlers, o).Fire(ctx, trigger, w.args())
		if err != nil {
			return err
		}
		o.RecordStatusChange(from, t.Target, trigger, w.actor)
		if err := s.save(ctx, w, o); err != nil {
			return err
		}
		w.raise(trade.NewDocumentTransitionedEvent(trade.DocumentTypeOrder, &o.Document, string(from), string(t.Target), trigger))
		order = o
		return nil
	})
	done(err)
	if err != nil {
		return s.fail(trigger, id, err)
	}
	return Ok(ToOrderResponse(order), message)
}

func (s *OrderService) edit(ctx context.Context, tenantID, id, actor uuid.UUID, message string, fn func(ctx context.Context, w *work, o *trade.Order) error) Result {
	var order *trade.Order
	err := s.run(ctx, DocumentLockKey(trade.DocumentTypeOrder, id), actorPtr(actor), func(ctx context.Context, w *work) error {
		o, err := w.repos.OrderRepo().FindByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, w, o); err != nil {
			return err
		}
		order = o
		return s.save(ctx, w, o)
	})
	if err != nil {
		return s.fail("update", id, err)
	}
	return Ok(ToOrderResponse(order), message)
}

func (s *OrderService) save(ctx context.Context, w *work, o *trade.Order) error {
	if err := trade.AssignNumber(ctx, w.repos.SequenceRepo(), trade.DocumentTypeOrder, &o.Document, w.now); err != nil {
		return err
	}
	return w.repos.OrderRepo().Save(ctx, o)
}

func (s *OrderService) fail(operation string, id uuid.UUID, err error) Result {
	logFailure(s.logger, "order", operation, id, err)
	return Fail(err)
}

// ==================== Stock hooks ====================

type plannedReservation struct {
	product  *catalog.Product
	quantity int64
	strategy strategy.StockStrategy
}

// reserveOrderStock reserves every stock-tracked line of the order.
// Availability of all lines is checked first so that every shortage is reported together.
func (s *OrderService) reserveOrderStock(ctx context.Context, o *trade.Order, args statemachine.Args) error {
	w := workFrom(args)
	if w == nil {
		return errNoUnitOfWork
	}
	quantities := o.Quantities()
	ids := sortedProductIDs(quantities)
	products, err := w.repos.ProductRepo().FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := tenantProducts(products, o.TenantID)

	plan := make([]plannedReservation, 0, len(ids))
	var shortages []shared.StockShortage
	for _, id := range ids {
		product, ok := byID[id]
		if !ok {
			return shared.NewNotFoundError("product", id)
		}
		if !product.IsStockTracked() {
			continue
		}
		qty := quantities[id]
		st := s.strategies.Resolve(product.VerticalTag)
		if av := st.CheckAvailability(ctx, product, qty); !av.Available {
			shortages = append(shortages, shared.StockShortage{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   qty,
				Available:   av.Level,
			})
			continue
		}
		plan = append(plan, plannedReservation{product: product, quantity: qty, strategy: st})
	}
	if len(shortages) > 0 {
		return &shared.InsufficientStockError{Shortages: shortages}
	}

	book := w.stock()
	for _, p := range plan {
		if _, err := p.strategy.ReserveStock(ctx, book, p.product, p.quantity, o.Number); err != nil {
			return err
		}
	}
	return nil
}

// convertOrderReservations turns the order's outstanding reservations into
// sales. Units whose hold is gone (expired by the sweep) are sold straight
// from stock, so a product sold out in the meantime fails the shipment.
func (s *OrderService) convertOrderReservations(ctx context.Context, o *trade.Order, args statemachine.Args) error {
	w := workFrom(args)
	if w == nil {
		return errNoUnitOfWork
	}
	book := w.stock()
	outstanding, err := book.Reservations().Outstanding(ctx, o.TenantID, o.Number)
	if err != nil {
		return err
	}
	held := make(map[uuid.UUID][]*inventory.StockReservation, len(outstanding))
	for i := range outstanding {
		r := &outstanding[i]
		held[r.ProductID] = append(held[r.ProductID], r)
	}

	quantities := o.Quantities()
	ids := sortedProductIDs(quantities)
	products, err := w.repos.ProductRepo().FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := tenantProducts(products, o.TenantID)

	for _, id := range ids {
		product, ok := byID[id]
		if !ok {
			return shared.NewNotFoundError("product", id)
		}
		if !product.IsStockTracked() {
			continue
		}
		st := s.strategies.Resolve(product.VerticalTag)
		remaining := quantities[id]
		for _, r := range held[id] {
			if err := st.DecrementStock(ctx, book, product, r.Quantity, r, o.Number); err != nil {
				return err
			}
			remaining -= r.Quantity
		}
		if remaining > 0 {
			if err := st.DecrementStock(ctx, book, product, remaining, nil, o.Number); err != nil {
				return err
			}
		}
	}
	return nil
}

// releaseOrderReservations gives back the stock held by the order
func (s *OrderService) releaseOrderReservations(ctx context.Context, o *trade.Order, args statemachine.Args) error {
	w := workFrom(args)
	if w == nil {
		return errNoUnitOfWork
	}
	book := w.stock()
	outstanding, err := book.Reservations().Outstanding(ctx, o.TenantID, o.Number)
	if err != nil {
		return err
	}
	for i := range outstanding {
		if err := book.Release(ctx, &outstanding[i]); err != nil {
			return err
		}
	}
	return nil
}
