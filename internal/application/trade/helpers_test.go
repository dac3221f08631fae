package trade

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/trade"
	infrastrategy "github.com/erp/backoffice/internal/infrastructure/strategy"
	"github.com/erp/backoffice/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

// memUnitOfWork runs units of work against a MemoryStore, rolling back on error
type memUnitOfWork struct {
	store *testutil.MemoryStore
}

func (u memUnitOfWork) Execute(_ context.Context, fn func(repos Repositories) error) error {
	return u.store.Atomically(func() error { return fn(u) })
}

func (u memUnitOfWork) ProductRepo() catalog.ProductRepository {
	return u.store.Products()
}

func (u memUnitOfWork) MovementRepo() inventory.StockMovementRepository {
	return u.store.Movements()
}

func (u memUnitOfWork) ReservationRepo() inventory.StockReservationRepository {
	return u.store.Reservations()
}

func (u memUnitOfWork) QuoteRepo() trade.QuoteRepository {
	return u.store.Quotes()
}

func (u memUnitOfWork) OrderRepo() trade.OrderRepository {
	return u.store.Orders()
}

func (u memUnitOfWork) InvoiceRepo() trade.InvoiceRepository {
	return u.store.Invoices()
}

func (u memUnitOfWork) SequenceRepo() trade.DocumentSequence {
	return u.store.Sequences()
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []DocumentNotice
	err     error
}

func (n *recordingNotifier) SendDocumentEmail(_ context.Context, notice DocumentNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

func (n *recordingNotifier) sent() []DocumentNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]DocumentNotice, len(n.notices))
	copy(out, n.notices)
	return out
}

// fixture wires the three document services on one in-memory store
type fixture struct {
	store     *testutil.MemoryStore
	quotes    *QuoteService
	orders    *OrderService
	invoices  *InvoiceService
	publisher *testutil.EventRecorder
	notifier  *recordingNotifier
	tenantID  uuid.UUID
	actor     uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := testutil.NewMemoryStore()
	uow := memUnitOfWork{store: store}
	strategies, err := infrastrategy.NewStockRegistryWithDefaults()
	require.NoError(t, err)

	f := &fixture{
		store:     store,
		quotes:    NewQuoteService(uow, nil, nil),
		orders:    NewOrderService(uow, nil, strategies, nil),
		invoices:  NewInvoiceService(uow, nil, nil),
		publisher: testutil.NewEventRecorder(),
		notifier:  &recordingNotifier{},
		tenantID:  testutil.TestTenantID(),
		actor:     testutil.TestUserID(),
	}
	clock := func() time.Time { return testNow }
	f.quotes.SetClock(clock)
	f.orders.SetClock(clock)
	f.invoices.SetClock(clock)
	f.quotes.SetEventPublisher(f.publisher)
	f.orders.SetEventPublisher(f.publisher)
	f.invoices.SetEventPublisher(f.publisher)
	f.quotes.SetNotifier(f.notifier)
	f.invoices.SetNotifier(f.notifier)
	return f
}

func line(productID uuid.UUID, qty int64, price string) LineItemRequest {
	return LineItemRequest{
		ProductID: productID,
		Quantity:  qty,
		UnitPrice: decimal.RequireFromString(price),
	}
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireOk(t *testing.T, r Result) {
	t.Helper()
	require.Truef(t, r.Success, "expected success, got %s: %s (%v)", r.Code, r.Message, r.Errors)
}

// createOrder creates a CREATED order for the given lines
func (f *fixture) createOrder(t *testing.T, items ...LineItemRequest) OrderResponse {
	t.Helper()
	r := f.orders.Create(context.Background(), f.tenantID, f.actor, CreateOrderRequest{
		CustomerID: testutil.NewTestUUID("customer"),
		Items:      items,
	})
	requireOk(t, r)
	return r.Data.(OrderResponse)
}

// sentInvoice creates and sends an invoice of the given total, due at due
func (f *fixture) sentInvoice(t *testing.T, total string, due time.Time) InvoiceResponse {
	t.Helper()
	ctx := context.Background()
	product := f.store.SeedProduct(f.tenantID, "SVC-"+uuid.NewString()[:8], catalog.VerticalRealEstate, 0, false)
	r := f.invoices.Create(ctx, f.tenantID, f.actor, CreateInvoiceRequest{
		CustomerID: testutil.NewTestUUID("customer"),
		DueDate:    &due,
		Items:      []LineItemRequest{line(product.ID, 1, total)},
	})
	requireOk(t, r)
	inv := r.Data.(InvoiceResponse)
	r = f.invoices.Send(ctx, f.tenantID, inv.ID, f.actor)
	requireOk(t, r)
	return r.Data.(InvoiceResponse)
}

func movementSum(movements []inventory.StockMovement, productID uuid.UUID) int64 {
	var sum int64
	for _, m := range movements {
		if m.ProductID == productID {
			sum += m.Quantity
		}
	}
	return sum
}

var _ UnitOfWork = memUnitOfWork{}
var _ Repositories = memUnitOfWork{}
var _ Notifier = (*recordingNotifier)(nil)

var errMailDown = errors.New("mail server down")
