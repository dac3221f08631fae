package integration

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	appinventory "github.com/erp/backoffice/internal/application/inventory"
	apptrade "github.com/erp/backoffice/internal/application/trade"
	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/erp/backoffice/internal/infrastructure/auth"
	"github.com/erp/backoffice/internal/infrastructure/config"
	"github.com/erp/backoffice/internal/infrastructure/lock"
	"github.com/erp/backoffice/internal/infrastructure/persistence"
	"github.com/erp/backoffice/internal/infrastructure/scheduler"
	"github.com/erp/backoffice/internal/infrastructure/strategy"
	"github.com/erp/backoffice/internal/interfaces/http/handler"
	"github.com/erp/backoffice/internal/interfaces/http/router"
	"github.com/erp/backoffice/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backOffice wires the production stack over a migrated database
type backOffice struct {
	db         *TestDB
	orders     *apptrade.OrderService
	expiration *appinventory.ReservationExpirationService
	engine     *gin.Engine
	tenantID   uuid.UUID
}

func newBackOffice(t *testing.T) *backOffice {
	t.Helper()
	db := NewTestDB(t)

	uow := persistence.NewGormUnitOfWork(db.DB)
	strategies, err := strategy.NewStockRegistryWithDefaults()
	require.NoError(t, err)
	locker := lock.NewLocalDocumentLocker()

	quotes := apptrade.NewQuoteService(uow, locker, nil)
	orders := apptrade.NewOrderService(uow, locker, strategies, nil)
	invoices := apptrade.NewInvoiceService(uow, locker, nil)
	stockScope := apptrade.StockScope(uow)
	stock := appinventory.NewStockService(stockScope, strategies, nil)
	expiration := appinventory.NewReservationExpirationService(stockScope, nil, 0, nil)
	sweeper := scheduler.NewReservationSweepScheduler(expiration, nil, scheduler.DefaultReservationSweepConfig())

	engine := router.NewEngine(router.EngineConfig{
		Verifier:     auth.NewJWTService(config.JWTConfig{}),
		MaxBodyBytes: 1 << 20,
		HealthCheck:  db.Ping,
	})
	router.NewRouter(engine).
		Register(handler.NewQuoteHandler(quotes)).
		Register(handler.NewOrderHandler(orders)).
		Register(handler.NewInvoiceHandler(invoices)).
		Register(handler.NewStockHandler(stock)).
		Register(handler.NewMaintenanceHandler(quotes, invoices, sweeper)).
		Setup()

	return &backOffice{
		db:         db,
		orders:     orders,
		expiration: expiration,
		engine:     engine,
		tenantID:   testutil.TestTenantID(),
	}
}

func (b *backOffice) mustDo(t *testing.T, method, path string, body any, status int) *testutil.Recorded {
	t.Helper()
	tc := testutil.Serve(t, b.engine, method, "/api/v1"+path, body, testutil.IdentityHeaders())
	require.Equal(t, status, tc.Code, tc.Body.String())
	testutil.AssertSuccessResponse(t, tc)
	return tc
}

func (b *backOffice) createOrder(t *testing.T, productID uuid.UUID, qty int64) apptrade.OrderResponse {
	t.Helper()
	return testutil.DataAs[apptrade.OrderResponse](t, b.mustDo(t, http.MethodPost, "/orders", map[string]any{
		"customer_id": testutil.NewTestUUID("customer"),
		"items": []any{
			map[string]any{"product_id": productID, "quantity": qty, "unit_price": "25.00", "tax_rate": "0.1"},
		},
	}, http.StatusCreated))
}

func TestBackOffice_QuoteToPaidInvoice(t *testing.T) {
	b := newBackOffice(t)
	product := b.db.CreateTestProduct(b.tenantID, "SKU-FLOW", 10)

	health := testutil.Serve(t, b.engine, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, health.Code)

	quote := testutil.DataAs[apptrade.QuoteResponse](t, b.mustDo(t, http.MethodPost, "/quotes", map[string]any{
		"customer_id": testutil.NewTestUUID("customer"),
		"items": []any{
			map[string]any{"product_id": product.ID, "quantity": 4, "unit_price": "25.00", "tax_rate": "0.1"},
		},
	}, http.StatusCreated))
	quotePath := "/quotes/" + quote.ID.String()
	assert.True(t, quote.TotalAmount.Equal(decimal.RequireFromString("110")), "total %s", quote.TotalAmount)

	b.mustDo(t, http.MethodPost, quotePath+"/send", nil, http.StatusOK)
	b.mustDo(t, http.MethodPost, quotePath+"/accept", nil, http.StatusOK)
	order := testutil.DataAs[apptrade.OrderResponse](t, b.mustDo(t, http.MethodPost, quotePath+"/convert", nil, http.StatusCreated))
	require.NotNil(t, order.SourceQuoteID)
	assert.Equal(t, quote.ID, *order.SourceQuoteID)
	orderPath := "/orders/" + order.ID.String()

	b.mustDo(t, http.MethodPost, orderPath+"/mark_paid", nil, http.StatusOK)
	assert.Equal(t, int64(6), b.db.StockOf(product.ID))

	b.mustDo(t, http.MethodPost, orderPath+"/ship", nil, http.StatusOK)
	b.mustDo(t, http.MethodPost, orderPath+"/complete", nil, http.StatusOK)
	assert.Equal(t, int64(6), b.db.StockOf(product.ID))

	held := testutil.DataAs[[]appinventory.ReservationResponse](t,
		b.mustDo(t, http.MethodGet, "/orders/"+order.Number+"/reservations", nil, http.StatusOK))
	require.Len(t, held, 1)
	assert.Equal(t, string(inventory.ReservationConverted), held[0].Status)

	report := testutil.DataAs[appinventory.ReconcileReport](t,
		b.mustDo(t, http.MethodGet, "/products/"+product.ID.String()+"/reconcile?initial=10", nil, http.StatusOK))
	assert.True(t, report.InSync(), "drift %d", report.Drift)

	invoice := testutil.DataAs[apptrade.InvoiceResponse](t, b.mustDo(t, http.MethodPost, orderPath+"/invoice", nil, http.StatusCreated))
	invoicePath := "/invoices/" + invoice.ID.String()
	b.mustDo(t, http.MethodPost, invoicePath+"/approve", nil, http.StatusOK)
	b.mustDo(t, http.MethodPost, invoicePath+"/send", nil, http.StatusOK)

	partial := testutil.DataAs[apptrade.InvoiceResponse](t, b.mustDo(t, http.MethodPost, invoicePath+"/payments",
		map[string]any{"amount": "60", "method": "transfer", "reference": "TX-1"}, http.StatusCreated))
	assert.Equal(t, string(trade.InvoiceStatusPartiallyPaid), partial.Status)

	paid := testutil.DataAs[apptrade.InvoiceResponse](t, b.mustDo(t, http.MethodPost, invoicePath+"/payments",
		map[string]any{"amount": "50", "method": "transfer", "reference": "TX-2"}, http.StatusCreated))
	assert.Equal(t, string(trade.InvoiceStatusPaid), paid.Status)
	assert.True(t, paid.BalanceDue.IsZero())
	assert.Len(t, paid.Payments, 2)
}

// Concurrent payments race for the same stock row; the conditional
// decrement must let exactly as many through as the stock covers.
func TestBackOffice_ConcurrentReservationsNeverOversell(t *testing.T) {
	b := newBackOffice(t)
	product := b.db.CreateTestProduct(b.tenantID, "SKU-RACE", 5)

	const contenders = 6
	orderIDs := make([]uuid.UUID, contenders)
	for i := range orderIDs {
		orderIDs[i] = b.createOrder(t, product.ID, 2).ID
	}

	ctx := context.Background()
	results := make([]apptrade.Result, contenders)
	var wg sync.WaitGroup
	for i, id := range orderIDs {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			results[i] = b.orders.MarkPaid(ctx, b.tenantID, id, testutil.TestUserID())
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
			continue
		}
		assert.Equal(t, "INSUFFICIENT_STOCK", r.Code, r.Message)
	}
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, int64(1), b.db.StockOf(product.ID))

	var reserved int64
	require.NoError(t, b.db.DB.Raw(
		`SELECT COUNT(*) FROM stock_reservations WHERE product_id = ? AND status = ?`,
		product.ID, string(inventory.ReservationReserved),
	).Scan(&reserved).Error)
	assert.Equal(t, int64(2), reserved)
}

func TestBackOffice_SweepReturnsExpiredHolds(t *testing.T) {
	b := newBackOffice(t)
	product := b.db.CreateTestProduct(b.tenantID, "SKU-SWEEP", 3)

	order := b.createOrder(t, product.ID, 3)
	b.mustDo(t, http.MethodPost, "/orders/"+order.ID.String()+"/mark_paid", nil, http.StatusOK)
	require.Equal(t, int64(0), b.db.StockOf(product.ID))

	// nothing is due yet
	stats := testutil.DataAs[appinventory.ExpiredReservationStats](t,
		b.mustDo(t, http.MethodPost, "/maintenance/reservations/sweep", nil, http.StatusOK))
	assert.Zero(t, stats.TotalExpired)

	b.expiration.SetClock(func() time.Time {
		return time.Now().Add(inventory.DefaultReservationTTL + time.Hour)
	})
	stats = testutil.DataAs[appinventory.ExpiredReservationStats](t,
		b.mustDo(t, http.MethodPost, "/maintenance/reservations/sweep", nil, http.StatusOK))
	assert.Equal(t, 1, stats.SuccessExpired)
	assert.Equal(t, int64(3), b.db.StockOf(product.ID))

	held := testutil.DataAs[[]appinventory.ReservationResponse](t,
		b.mustDo(t, http.MethodGet, "/orders/"+order.Number+"/reservations", nil, http.StatusOK))
	require.Len(t, held, 1)
	assert.Equal(t, string(inventory.ReservationExpired), held[0].Status)

	// a second sweep finds nothing left to expire
	stats = testutil.DataAs[appinventory.ExpiredReservationStats](t,
		b.mustDo(t, http.MethodPost, "/maintenance/reservations/sweep", nil, http.StatusOK))
	assert.Zero(t, stats.TotalExpired)
}
