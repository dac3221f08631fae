package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erp/backoffice/internal/infrastructure/auth"
	"github.com/erp/backoffice/internal/infrastructure/config"
	"github.com/erp/backoffice/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ping", func(c *gin.Context) {
		tenantID, _ := middleware.GetTenantID(c)
		c.String(http.StatusOK, tenantID.String())
	})
	rg.POST("/echo", func(c *gin.Context) {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)

	r.Register(pingRoutes{}).Register(pingRoutes{})
	assert.Len(t, r.registrars, 2)
}

func TestRouterSetup(t *testing.T) {
	engine := gin.New()
	NewRouter(engine, WithAPIVersion("v3")).Register(pingRoutes{}).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v3/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func newTestEngine(t *testing.T, cfg EngineConfig) *gin.Engine {
	t.Helper()
	if cfg.Verifier == nil {
		cfg.Verifier = auth.NewJWTService(config.JWTConfig{})
	}
	engine := NewEngine(cfg)
	NewRouter(engine).Register(pingRoutes{}).Setup()
	return engine
}

func TestNewEngine(t *testing.T) {
	engine := newTestEngine(t, EngineConfig{MaxBodyBytes: 64})
	tenantID := uuid.New()

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		tenant     string
		wantStatus int
		wantBody   string
	}{
		{"health needs no tenant", http.MethodGet, HealthPath, "", "", http.StatusOK, `"status":"ok"`},
		{"api needs a tenant", http.MethodGet, "/api/v1/ping", "", "", http.StatusUnauthorized, `"code":"UNAUTHORIZED"`},
		{"tenant reaches the handler", http.MethodGet, "/api/v1/ping", "", tenantID.String(), http.StatusOK, tenantID.String()},
		{"unknown route", http.MethodGet, "/api/v1/nowhere", "", tenantID.String(), http.StatusNotFound, `"code":"ROUTE_NOT_FOUND"`},
		{"oversized body", http.MethodPost, "/api/v1/echo", `{"x":"` + strings.Repeat("a", 100) + `"}`, tenantID.String(), http.StatusRequestEntityTooLarge, `"code":"REQUEST_TOO_LARGE"`},
		{"small body", http.MethodPost, "/api/v1/echo", `{"x":"a"}`, tenantID.String(), http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
				req.Header.Set("Content-Type", "application/json")
			} else {
				req = httptest.NewRequest(tt.method, tt.path, nil)
			}
			if tt.tenant != "" {
				req.Header.Set(middleware.TenantHeader, tt.tenant)
			}
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		})
	}
}

func TestNewEngine_BearerToken(t *testing.T) {
	verifier := auth.NewJWTService(config.JWTConfig{Secret: "router-test-secret", Issuer: "backoffice"})
	engine := newTestEngine(t, EngineConfig{Verifier: verifier})
	tenantID := uuid.New()

	token, err := verifier.Issue(tenantID, uuid.New(), time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, tenantID.String(), w.Body.String())

	// headers are ignored once a secret is configured
	req = httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set(middleware.TenantHeader, tenantID.String())
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewEngine_HealthCheck(t *testing.T) {
	healthy := true
	engine := newTestEngine(t, EngineConfig{HealthCheck: func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("database unreachable")
	}})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	healthy = false
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unhealthy")
}
