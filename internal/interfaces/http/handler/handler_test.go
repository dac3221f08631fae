package handler

import (
	"context"
	"net/http"
	"testing"

	appinventory "github.com/erp/backoffice/internal/application/inventory"
	apptrade "github.com/erp/backoffice/internal/application/trade"
	"github.com/erp/backoffice/internal/domain/catalog"
	"github.com/erp/backoffice/internal/domain/inventory"
	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/erp/backoffice/internal/infrastructure/auth"
	"github.com/erp/backoffice/internal/infrastructure/config"
	infrastrategy "github.com/erp/backoffice/internal/infrastructure/strategy"
	"github.com/erp/backoffice/internal/interfaces/http/middleware"
	"github.com/erp/backoffice/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memUnitOfWork runs units of work against a MemoryStore, rolling back on error
type memUnitOfWork struct {
	store *testutil.MemoryStore
}

func (u memUnitOfWork) Execute(_ context.Context, fn func(repos apptrade.Repositories) error) error {
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

type stubSweeper struct {
	calls int
}

func (s *stubSweeper) RunOnce(context.Context) (*appinventory.ExpiredReservationStats, error) {
	s.calls++
	return &appinventory.ExpiredReservationStats{}, nil
}

type apiFixture struct {
	store   *testutil.MemoryStore
	engine  *gin.Engine
	sweeper *stubSweeper
	headers map[string]string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	store := testutil.NewMemoryStore()
	uow := memUnitOfWork{store: store}
	strategies, err := infrastrategy.NewStockRegistryWithDefaults()
	require.NoError(t, err)

	quotes := apptrade.NewQuoteService(uow, nil, nil)
	orders := apptrade.NewOrderService(uow, nil, strategies, nil)
	invoices := apptrade.NewInvoiceService(uow, nil, nil)
	stock := appinventory.NewStockService(apptrade.StockScope(uow), strategies, nil)
	sweeper := &stubSweeper{}

	middleware.SetupValidator()
	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		middleware.JWTAuth(middleware.AuthConfig{Verifier: auth.NewJWTService(config.JWTConfig{})}),
	)
	api := engine.Group("/api/v1")
	for _, r := range []interface{ RegisterRoutes(*gin.RouterGroup) }{
		NewQuoteHandler(quotes),
		NewOrderHandler(orders),
		NewInvoiceHandler(invoices),
		NewStockHandler(stock),
		NewMaintenanceHandler(quotes, invoices, sweeper),
	} {
		r.RegisterRoutes(api)
	}

	return &apiFixture{store: store, engine: engine, sweeper: sweeper, headers: testutil.IdentityHeaders()}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *testutil.Recorded {
	t.Helper()
	return testutil.Serve(t, f.engine, method, "/api/v1"+path, body, f.headers)
}

func (f *apiFixture) mustDo(t *testing.T, method, path string, body any, status int) *testutil.Recorded {
	t.Helper()
	tc := f.do(t, method, path, body)
	require.Equal(t, status, tc.Code, tc.Body.String())
	testutil.AssertSuccessResponse(t, tc)
	return tc
}

func lineBody(productID uuid.UUID, qty int64, price string) map[string]any {
	return map[string]any{"product_id": productID, "quantity": qty, "unit_price": price}
}

func TestQuoteAPI_Lifecycle(t *testing.T) {
	f := newAPIFixture(t)
	product := f.store.SeedProduct(testutil.TestTenantID(), "SKU-Q", catalog.VerticalRetail, 10, true)

	created := f.mustDo(t, http.MethodPost, "/quotes", map[string]any{
		"customer_id": testutil.NewTestUUID("customer"),
	}, http.StatusCreated)
	quote := testutil.DataAs[apptrade.QuoteResponse](t, created)
	assert.Equal(t, string(trade.QuoteStatusDraft), quote.Status)
	assert.NotEmpty(t, quote.Number)
	path := "/quotes/" + quote.ID.String()

	// an empty quote cannot be sent
	tc := f.do(t, http.MethodPost, path+"/send", nil)
	assert.Equal(t, http.StatusConflict, tc.Code)
	testutil.AssertErrorResponse(t, tc, "GUARD_REJECTED")

	f.mustDo(t, http.MethodPost, path+"/items", lineBody(product.ID, 2, "15.00"), http.StatusOK)
	sent := testutil.DataAs[apptrade.QuoteResponse](t, f.mustDo(t, http.MethodPost, path+"/send", nil, http.StatusOK))
	assert.Equal(t, string(trade.QuoteStatusSent), sent.Status)
	f.mustDo(t, http.MethodPost, path+"/accept", nil, http.StatusOK)

	converted := f.mustDo(t, http.MethodPost, path+"/convert", nil, http.StatusCreated)
	order := testutil.DataAs[apptrade.OrderResponse](t, converted)
	assert.Equal(t, string(trade.OrderStatusCreated), order.Status)
	require.NotNil(t, order.SourceQuoteID)
	assert.Equal(t, quote.ID, *order.SourceQuoteID)

	got := testutil.DataAs[apptrade.QuoteResponse](t, f.mustDo(t, http.MethodGet, path, nil, http.StatusOK))
	assert.Equal(t, string(trade.QuoteStatusConverted), got.Status)

	testutil.RunHTTPTestCases(t, f.engine, []testutil.HTTPTestCase{
		{
			Name:           "trigger not allowed from CONVERTED",
			Method:         http.MethodPost,
			Path:           "/api/v1" + path + "/send",
			Headers:        f.headers,
			ExpectedStatus: http.StatusConflict,
			ExpectedCode:   "ILLEGAL_TRANSITION",
		},
		{
			Name:           "unknown action",
			Method:         http.MethodPost,
			Path:           "/api/v1" + path + "/teleport",
			Headers:        f.headers,
			ExpectedStatus: http.StatusNotFound,
			ExpectedCode:   "ROUTE_NOT_FOUND",
		},
		{
			Name:           "list filters by status",
			Path:           "/api/v1/quotes?status=converted",
			Headers:        f.headers,
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, tc *testutil.Recorded) {
				list := testutil.DataAs[[]apptrade.QuoteResponse](t, tc)
				require.Len(t, list, 1)
				assert.Equal(t, quote.ID, list[0].ID)
			},
		},
		{
			Name:           "unknown status filter",
			Path:           "/api/v1/quotes?status=LOST",
			Headers:        f.headers,
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   "VALIDATION_ERROR",
		},
	})
}

func TestQuoteAPI_RequestErrors(t *testing.T) {
	f := newAPIFixture(t)

	testutil.RunHTTPTestCases(t, f.engine, []testutil.HTTPTestCase{
		{
			Name:           "missing customer",
			Method:         http.MethodPost,
			Path:           "/api/v1/quotes",
			Body:           map[string]any{"notes": "no customer"},
			Headers:        f.headers,
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   "VALIDATION_ERROR",
			Validate: func(t *testing.T, tc *testutil.Recorded) {
				resp := testutil.JSONResponse(t, tc)
				errs, ok := resp["errors"].(map[string]any)
				require.True(t, ok, "expected field errors: %v", resp)
				assert.Contains(t, errs, "customer_id")
			},
		},
		{
			Name:           "malformed path id",
			Path:           "/api/v1/quotes/not-a-uuid",
			Headers:        f.headers,
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   "VALIDATION_ERROR",
		},
		{
			Name:           "unknown quote",
			Path:           "/api/v1/quotes/" + uuid.NewString(),
			Headers:        f.headers,
			ExpectedStatus: http.StatusNotFound,
			ExpectedCode:   "NOT_FOUND",
		},
		{
			Name:           "missing tenant",
			Path:           "/api/v1/quotes",
			ExpectedStatus: http.StatusUnauthorized,
			ExpectedCode:   "UNAUTHORIZED",
		},
		{
			Name:           "malformed tenant",
			Path:           "/api/v1/quotes",
			Headers:        map[string]string{testutil.TenantHeader: "acme"},
			ExpectedStatus: http.StatusUnauthorized,
			ExpectedCode:   "UNAUTHORIZED",
		},
	})
}

func TestQuoteAPI_TenantIsolation(t *testing.T) {
	f := newAPIFixture(t)
	created := f.mustDo(t, http.MethodPost, "/quotes", map[string]any{
		"customer_id": testutil.NewTestUUID("customer"),
	}, http.StatusCreated)
	quote := testutil.DataAs[apptrade.QuoteResponse](t, created)

	f.headers = map[string]string{testutil.TenantHeader: testutil.NewTestUUID("other-tenant").String()}
	tc := f.do(t, http.MethodGet, "/quotes/"+quote.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, tc.Code)

	list := testutil.DataAs[[]apptrade.QuoteResponse](t, f.mustDo(t, http.MethodGet, "/quotes", nil, http.StatusOK))
	assert.Empty(t, list)
}

func TestOrderAPI_Fulfilment(t *testing.T) {
	f := newAPIFixture(t)
	product := f.store.SeedProduct(testutil.TestTenantID(), "SKU-O", catalog.VerticalRetail, 5, true)
	productPath := "/products/" + product.ID.String()

	created := f.mustDo(t, http.MethodPost, "/orders", map[string]any{
		"customer_id": testutil.NewTestUUID("customer"),
		"items":       []any{lineBody(product.ID, 3, "20")},
	}, http.StatusCreated)
	order := testutil.DataAs[apptrade.OrderResponse](t, created)
	path := "/orders/" + order.ID.String()

	paid := testutil.DataAs[apptrade.OrderResponse](t, f.mustDo(t, http.MethodPost, path+"/mark_paid", nil, http.StatusOK))
	assert.Equal(t, string(trade.OrderStatusPaid), paid.Status)

	level := testutil.DataAs[appinventory.StockLevelResponse](t, f.mustDo(t, http.MethodGet, productPath+"/stock", nil, http.StatusOK))
	assert.Equal(t, int64(2), level.Stock)
	assert.True(t, level.Tracked)

	held := testutil.DataAs[[]appinventory.ReservationResponse](t,
		f.mustDo(t, http.MethodGet, "/orders/"+order.Number+"/reservations", nil, http.StatusOK))
	require.Len(t, held, 1)
	assert.Equal(t, int64(3), held[0].Quantity)
	assert.Equal(t, string(inventory.ReservationReserved), held[0].Status)

	// a second order for the same units cannot be paid
	second := testutil.DataAs[apptrade.OrderResponse](t, f.mustDo(t, http.MethodPost, "/orders", map[string]any{
		"customer_id": testutil.NewTestUUID("customer"),
		"items":       []any{lineBody(product.ID, 3, "20")},
	}, http.StatusCreated))
	tc := f.do(t, http.MethodPost, "/orders/"+second.ID.String()+"/mark_paid", nil)
	assert.Equal(t, http.StatusConflict, tc.Code)
	testutil.AssertErrorResponse(t, tc, "INSUFFICIENT_STOCK")
	assert.Equal(t, int64(2), f.store.StockOf(product.ID))

	f.mustDo(t, http.MethodPost, path+"/ship", nil, http.StatusOK)
	held = testutil.DataAs[[]appinventory.ReservationResponse](t,
		f.mustDo(t, http.MethodGet, "/orders/"+order.Number+"/reservations", nil, http.StatusOK))
	require.Len(t, held, 1)
	assert.Equal(t, string(inventory.ReservationConverted), held[0].Status)
	f.mustDo(t, http.MethodPost, path+"/complete", nil, http.StatusOK)

	summary := testutil.DataAs[apptrade.OrderSummaryResponse](t, f.mustDo(t, http.MethodGet, path+"/summary", nil, http.StatusOK))
	assert.Equal(t, string(trade.OrderStatusCompleted), summary.Status)
	assert.Len(t, summary.History, 3)

	invoice := testutil.DataAs[apptrade.InvoiceResponse](t, f.mustDo(t, http.MethodPost, path+"/invoice", nil, http.StatusCreated))
	require.NotNil(t, invoice.SourceOrderID)
	assert.Equal(t, order.ID, *invoice.SourceOrderID)
	assert.True(t, invoice.TotalAmount.Equal(order.TotalAmount))

	movements := testutil.DataAs[[]appinventory.MovementResponse](t, f.mustDo(t, http.MethodGet, productPath+"/movements", nil, http.StatusOK))
	assert.Len(t, movements, 3)
}

func TestOrderAPI_CancelReleasesStock(t *testing.T) {
	f := newAPIFixture(t)
	product := f.store.SeedProduct(testutil.TestTenantID(), "SKU-C", catalog.VerticalRetail, 4, true)

	order := testutil.DataAs[apptrade.OrderResponse](t, f.mustDo(t, http.MethodPost, "/orders", map[string]any{
		"customer_id": testutil.NewTestUUID("customer"),
		"items":       []any{lineBody(product.ID, 4, "5")},
	}, http.StatusCreated))
	path := "/orders/" + order.ID.String()

	f.mustDo(t, http.MethodPost, path+"/mark_paid", nil, http.StatusOK)
	assert.Equal(t, int64(0), f.store.StockOf(product.ID))

	cancelled := testutil.DataAs[apptrade.OrderResponse](t,
		f.mustDo(t, http.MethodPost, path+"/cancel", map[string]any{"reason": "customer changed mind"}, http.StatusOK))
	assert.Equal(t, string(trade.OrderStatusCancelled), cancelled.Status)
	assert.Equal(t, "customer changed mind", cancelled.CancelReason)
	assert.Equal(t, int64(4), f.store.StockOf(product.ID))

	tc := f.do(t, http.MethodPost, path+"/ship", nil)
	assert.Equal(t, http.StatusConflict, tc.Code)
	testutil.AssertErrorResponse(t, tc, "ILLEGAL_TRANSITION")
}

func TestInvoiceAPI_Payments(t *testing.T) {
	f := newAPIFixture(t)
	service := f.store.SeedProduct(testutil.TestTenantID(), "SVC-1", catalog.VerticalRealEstate, 0, false)

	invoice := testutil.DataAs[apptrade.InvoiceResponse](t, f.mustDo(t, http.MethodPost, "/invoices", map[string]any{
		"customer_id": testutil.NewTestUUID("customer"),
		"items":       []any{lineBody(service.ID, 1, "100")},
	}, http.StatusCreated))
	path := "/invoices/" + invoice.ID.String()

	f.mustDo(t, http.MethodPost, path+"/approve", nil, http.StatusOK)
	f.mustDo(t, http.MethodPost, path+"/send", nil, http.StatusOK)

	partial := testutil.DataAs[apptrade.InvoiceResponse](t,
		f.mustDo(t, http.MethodPost, path+"/payments", map[string]any{"amount": "40", "method": "transfer"}, http.StatusCreated))
	assert.Equal(t, string(trade.InvoiceStatusPartiallyPaid), partial.Status)
	assert.Equal(t, "60", partial.BalanceDue.String())

	tc := f.do(t, http.MethodPost, path+"/payments", map[string]any{"amount": "-5"})
	assert.Equal(t, http.StatusBadRequest, tc.Code)
	testutil.AssertErrorResponse(t, tc, "VALIDATION_ERROR")

	paid := testutil.DataAs[apptrade.InvoiceResponse](t,
		f.mustDo(t, http.MethodPost, path+"/payments", map[string]any{"amount": "60"}, http.StatusCreated))
	assert.Equal(t, string(trade.InvoiceStatusPaid), paid.Status)
	assert.True(t, paid.BalanceDue.IsZero())
	assert.Len(t, paid.Payments, 2)

	summary := testutil.DataAs[apptrade.InvoiceSummaryResponse](t, f.mustDo(t, http.MethodGet, path+"/summary", nil, http.StatusOK))
	assert.False(t, summary.PastDue)
	assert.Contains(t, summary.AvailableTriggers, trade.TriggerDispute)
}

func TestStockAPI_Corrections(t *testing.T) {
	f := newAPIFixture(t)
	product := f.store.SeedProduct(testutil.TestTenantID(), "SKU-S", catalog.VerticalRetail, 0, true)
	path := "/products/" + product.ID.String()

	movement := testutil.DataAs[appinventory.MovementResponse](t,
		f.mustDo(t, http.MethodPost, path+"/adjust", map[string]any{"delta": 8, "reason": "restock", "reference": "PO-7"}, http.StatusCreated))
	assert.Equal(t, int64(8), movement.Quantity)
	assert.Equal(t, "PO-7", movement.Reference)

	f.mustDo(t, http.MethodPost, path+"/return", map[string]any{"quantity": 2, "reference": "RMA-1"}, http.StatusOK)
	assert.Equal(t, int64(10), f.store.StockOf(product.ID))

	report := testutil.DataAs[appinventory.ReconcileReport](t, f.mustDo(t, http.MethodGet, path+"/reconcile?initial=0", nil, http.StatusOK))
	assert.True(t, report.InSync())

	testutil.RunHTTPTestCases(t, f.engine, []testutil.HTTPTestCase{
		{
			Name:           "zero delta",
			Method:         http.MethodPost,
			Path:           "/api/v1" + path + "/adjust",
			Body:           map[string]any{"delta": 0},
			Headers:        f.headers,
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   "VALIDATION_ERROR",
		},
		{
			Name:           "stock cannot go negative",
			Method:         http.MethodPost,
			Path:           "/api/v1" + path + "/adjust",
			Body:           map[string]any{"delta": -50, "reason": "loss"},
			Headers:        f.headers,
			ExpectedStatus: http.StatusConflict,
			ExpectedCode:   "INSUFFICIENT_STOCK",
		},
		{
			Name:           "negative initial",
			Path:           "/api/v1" + path + "/reconcile?initial=-1",
			Headers:        f.headers,
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   "VALIDATION_ERROR",
		},
		{
			Name:           "other tenant's product",
			Path:           "/api/v1" + path + "/stock",
			Headers:        map[string]string{testutil.TenantHeader: uuid.NewString()},
			ExpectedStatus: http.StatusNotFound,
			ExpectedCode:   "NOT_FOUND",
		},
	})
}

func TestMaintenanceAPI(t *testing.T) {
	f := newAPIFixture(t)

	expired := testutil.DataAs[[]apptrade.QuoteResponse](t, f.mustDo(t, http.MethodGet, "/maintenance/quotes/expired", nil, http.StatusOK))
	assert.Empty(t, expired)

	bulk := testutil.DataAs[apptrade.BulkResponse](t, f.mustDo(t, http.MethodPost, "/maintenance/quotes/expire", nil, http.StatusOK))
	assert.Zero(t, bulk.Processed)

	bulk = testutil.DataAs[apptrade.BulkResponse](t, f.mustDo(t, http.MethodPost, "/maintenance/invoices/mark-overdue", nil, http.StatusOK))
	assert.Zero(t, bulk.Failed)

	f.mustDo(t, http.MethodPost, "/maintenance/reservations/sweep", nil, http.StatusOK)
	assert.Equal(t, 1, f.sweeper.calls)
}

func TestMaintenanceAPI_SweepNotConfigured(t *testing.T) {
	h := NewMaintenanceHandler(nil, nil, nil)
	engine := gin.New()
	engine.Use(middleware.JWTAuth(middleware.AuthConfig{}))
	h.RegisterRoutes(engine.Group("/api/v1"))

	tc := testutil.Serve(t, engine, http.MethodPost, "/api/v1/maintenance/reservations/sweep", nil, testutil.IdentityHeaders())
	assert.Equal(t, http.StatusConflict, tc.Code)
	testutil.AssertErrorResponse(t, tc, "INVALID_STATE")
}
