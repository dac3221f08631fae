package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erp/backoffice/internal/infrastructure/auth"
	"github.com/erp/backoffice/internal/infrastructure/config"
	"github.com/erp/backoffice/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	t.Run("generates an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		id := w.Header().Get(RequestIDHeader)
		assert.Len(t, id, 32)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("keeps the caller's id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
	})

	t.Run("replaces an oversized id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", maxRequestIDLength+1))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Len(t, w.Header().Get(RequestIDHeader), 32)
	})
}

func TestSecure(t *testing.T) {
	r := gin.New()
	r.Use(Secure())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), BodyLimit(10))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("short")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("this body is too long")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, dto.CodeRequestTooLarge, resp.Code)
	assert.NotEmpty(t, resp.RequestID)
}

func authRouter(verifier *auth.JWTService) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), JWTAuth(AuthConfig{Verifier: verifier, SkipPaths: []string{"/health"}}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/whoami", func(c *gin.Context) {
		tenantID, _ := GetTenantID(c)
		c.JSON(http.StatusOK, gin.H{"tenant": tenantID, "actor": GetActorID(c)})
	})
	return r
}

func TestJWTAuth_HeaderFallback(t *testing.T) {
	r := authRouter(auth.NewJWTService(config.JWTConfig{}))
	tenantID, userID := uuid.New(), uuid.New()

	tests := []struct {
		name       string
		tenant     string
		user       string
		wantStatus int
		wantActor  uuid.UUID
	}{
		{"tenant and user", tenantID.String(), userID.String(), http.StatusOK, userID},
		{"tenant only", tenantID.String(), "", http.StatusOK, uuid.Nil},
		{"missing tenant", "", userID.String(), http.StatusUnauthorized, uuid.Nil},
		{"malformed tenant", "tenant-1", "", http.StatusUnauthorized, uuid.Nil},
		{"malformed user", tenantID.String(), "bob", http.StatusUnauthorized, uuid.Nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.tenant != "" {
				req.Header.Set(TenantHeader, tt.tenant)
			}
			if tt.user != "" {
				req.Header.Set(UserHeader, tt.user)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, dto.CodeUnauthorized, decode(t, w).Code)
				return
			}
			var body struct {
				Tenant uuid.UUID `json:"tenant"`
				Actor  uuid.UUID `json:"actor"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tenantID, body.Tenant)
			assert.Equal(t, tt.wantActor, body.Actor)
		})
	}
}

func TestJWTAuth_Bearer(t *testing.T) {
	verifier := auth.NewJWTService(config.JWTConfig{Secret: "test-secret-key-at-least-32-chars", Issuer: "backoffice"})
	r := authRouter(verifier)
	tenantID, userID := uuid.New(), uuid.New()
	token, err := verifier.Issue(tenantID, userID, time.Hour)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), tenantID.String())
		assert.Contains(t, w.Body.String(), userID.String())
	})

	t.Run("headers are ignored once a secret is set", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set(TenantHeader, tenantID.String())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("skip paths pass through", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

type bindTarget struct {
	Quantity int64           `json:"quantity" binding:"required,gt=0"`
	Name     string          `json:"name" binding:"max=3"`
	Rate     decimal.Decimal `json:"rate" binding:"gte=0,lte=1"`
}

func TestBindingError(t *testing.T) {
	SetupValidator()

	bind := func(body string) error {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
		var target bindTarget
		return c.ShouldBindJSON(&target)
	}

	verr := BindingError(bind(`{"name":"toolong"}`))
	assert.Equal(t, []string{"This field is required"}, verr.Fields["quantity"])
	assert.Equal(t, []string{"Must be at most 3 characters"}, verr.Fields["name"])

	verr = BindingError(bind(`{"quantity":2,"rate":"1.5"}`))
	assert.Equal(t, []string{"Must be less than or equal to 1"}, verr.Fields["rate"])
	assert.Len(t, verr.Fields, 1)

	verr = BindingError(bind(`{"quantity":2,"rate":"-0.1"}`))
	assert.Equal(t, []string{"Must be greater than or equal to 0"}, verr.Fields["rate"])

	require.NoError(t, bind(`{"quantity":2,"rate":"0.2"}`))

	verr = BindingError(bind(`{"quantity":"many"}`))
	assert.Contains(t, verr.Fields, "quantity")

	verr = BindingError(bind(`{`))
	assert.True(t, verr.HasErrors())
}

func TestHTTPMetrics_PassThrough(t *testing.T) {
	for _, mw := range []gin.HandlerFunc{
		HTTPMetrics(nil),
		HTTPMetrics(noop.NewMeterProvider().Meter("test")),
		Tracing(TracingConfig{Enabled: false}),
	} {
		r := gin.New()
		r.Use(mw, SpanErrorMarker(), TracingAttributeInjector())
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusTeapot) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTeapot, w.Code)
	}
}

func TestHTTPMetrics_RecordsRoute(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	r := gin.New()
	r.Use(HTTPMetrics(provider.Meter("test")))
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for range 2 {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/42", nil))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	found := false
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name != "http_server_request_total" {
			continue
		}
		found = true
		sum, ok := m.Data.(metricdata.Sum[int64])
		require.True(t, ok)
		require.Len(t, sum.DataPoints, 1)
		assert.Equal(t, int64(2), sum.DataPoints[0].Value)
		route, _ := sum.DataPoints[0].Attributes.Value(attribute.Key("http.route"))
		assert.Equal(t, "/orders/:id", route.AsString())
		status, _ := sum.DataPoints[0].Attributes.Value(attribute.Key("http.status_code"))
		assert.Equal(t, int64(http.StatusNotFound), status.AsInt64())
	}
	assert.True(t, found)
}
