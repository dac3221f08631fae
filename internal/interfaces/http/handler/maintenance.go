package handler

import (
	"context"

	appinventory "github.com/erp/backoffice/internal/application/inventory"
	apptrade "github.com/erp/backoffice/internal/application/trade"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/gin-gonic/gin"
)

// ReservationSweeper runs one pass of the reservation expiry sweep
type ReservationSweeper interface {
	RunOnce(ctx context.Context) (*appinventory.ExpiredReservationStats, error)
}

// MaintenanceHandler exposes the batch jobs that normally run on a schedule
type MaintenanceHandler struct {
	BaseHandler
	quotes   *apptrade.QuoteService
	invoices *apptrade.InvoiceService
	sweeper  ReservationSweeper
}

// NewMaintenanceHandler creates a new MaintenanceHandler. sweeper may be nil.
func NewMaintenanceHandler(quotes *apptrade.QuoteService, invoices *apptrade.InvoiceService, sweeper ReservationSweeper) *MaintenanceHandler {
	return &MaintenanceHandler{quotes: quotes, invoices: invoices, sweeper: sweeper}
}

// RegisterRoutes registers the maintenance routes
func (h *MaintenanceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/maintenance")
	g.GET("/quotes/expired", h.ExpiredQuotes)
	g.POST("/quotes/expire", h.ExpireQuotes)
	g.GET("/invoices/overdue", h.OverdueInvoices)
	g.POST("/invoices/mark-overdue", h.MarkInvoicesOverdue)
	g.POST("/reservations/sweep", h.SweepReservations)
}

// ExpiredQuotes handles GET /maintenance/quotes/expired
func (h *MaintenanceHandler) ExpiredQuotes(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	h.OK(c, h.quotes.ListExpired(c.Request.Context(), who.tenantID))
}

// ExpireQuotes handles POST /maintenance/quotes/expire
func (h *MaintenanceHandler) ExpireQuotes(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	h.OK(c, h.quotes.BulkExpire(c.Request.Context(), who.tenantID, who.actorID))
}

// OverdueInvoices handles GET /maintenance/invoices/overdue
func (h *MaintenanceHandler) OverdueInvoices(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	h.OK(c, h.invoices.ListOverdue(c.Request.Context(), who.tenantID))
}

// MarkInvoicesOverdue handles POST /maintenance/invoices/mark-overdue
func (h *MaintenanceHandler) MarkInvoicesOverdue(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	h.OK(c, h.invoices.BulkMarkOverdue(c.Request.Context(), who.tenantID, who.actorID))
}

var errSweeperDisabled = shared.NewDomainError("INVALID_STATE", "Reservation sweep is not configured")

// SweepReservations handles POST /maintenance/reservations/sweep. The sweep
// covers every tenant.
func (h *MaintenanceHandler) SweepReservations(c *gin.Context) {
	if _, ok := h.Identify(c); !ok {
		return
	}
	if h.sweeper == nil {
		h.HandleError(c, errSweeperDisabled)
		return
	}
	stats, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, apptrade.Ok(stats, "Reservation sweep finished"))
}
