package handler

import (
	"context"

	apptrade "github.com/erp/backoffice/internal/application/trade"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/domain/trade"
	"github.com/erp/backoffice/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type invoiceTrigger func(s *apptrade.InvoiceService, ctx context.Context, tenantID, id, actor uuid.UUID) apptrade.Result

var invoiceTriggers = map[string]invoiceTrigger{
	trade.TriggerApprove:        (*apptrade.InvoiceService).Approve,
	trade.TriggerSend:           (*apptrade.InvoiceService).Send,
	trade.TriggerMarkOverdue:    (*apptrade.InvoiceService).MarkOverdue,
	trade.TriggerDispute:        (*apptrade.InvoiceService).Dispute,
	trade.TriggerResolveDispute: (*apptrade.InvoiceService).ResolveDispute,
	trade.TriggerCancel:         (*apptrade.InvoiceService).Cancel,
}

// InvoiceHandler handles invoice endpoints
type InvoiceHandler struct {
	BaseHandler
	invoices *apptrade.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices *apptrade.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// RegisterRoutes registers the invoice routes
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/invoices")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.GET("/:id/summary", h.Summary)
	g.POST("/:id/:action", h.Action)
}

// List handles GET /invoices?status=SENT,OVERDUE
func (h *InvoiceHandler) List(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	var statuses []trade.InvoiceStatus
	for _, s := range statusList(q.Status) {
		st := trade.InvoiceStatus(s)
		if !st.IsValid() {
			h.HandleError(c, shared.NewValidationError("status", "Unknown invoice status "+s))
			return
		}
		statuses = append(statuses, st)
	}
	h.OK(c, h.invoices.List(c.Request.Context(), who.tenantID, q.Filter(), statuses...))
}

// Create handles POST /invoices. With ?order_id= the invoice is raised
// from that order instead of the body.
func (h *InvoiceHandler) Create(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	if raw := c.Query("order_id"); raw != "" {
		orderID, err := uuid.Parse(raw)
		if err != nil {
			h.HandleError(c, shared.NewValidationError("order_id", "Invalid UUID format"))
			return
		}
		h.Created(c, h.invoices.CreateFromOrder(c.Request.Context(), who.tenantID, orderID, who.actorID))
		return
	}

	var req apptrade.CreateInvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.Created(c, h.invoices.Create(c.Request.Context(), who.tenantID, who.actorID, req))
}

// Get handles GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	h.OK(c, h.invoices.Get(c.Request.Context(), who.tenantID, id))
}

// Summary handles GET /invoices/:id/summary
func (h *InvoiceHandler) Summary(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	h.OK(c, h.invoices.Summary(c.Request.Context(), who.tenantID, id))
}

// Action dispatches POST /invoices/:id/{items,payments,<trigger>}
func (h *InvoiceHandler) Action(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	switch action := c.Param("action"); action {
	case "items":
		var req apptrade.LineItemRequest
		if !h.BindJSON(c, &req) {
			return
		}
		h.OK(c, h.invoices.AddItem(ctx, who.tenantID, id, who.actorID, req))
	case "payments":
		var req apptrade.RecordPaymentRequest
		if !h.BindJSON(c, &req) {
			return
		}
		h.Created(c, h.invoices.RecordPayment(ctx, who.tenantID, id, who.actorID, req))
	default:
		fire, known := invoiceTriggers[action]
		if !known {
			h.UnknownAction(c, "invoice", action)
			return
		}
		h.OK(c, fire(h.invoices, ctx, who.tenantID, id, who.actorID))
	}
}
