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

type quoteTrigger func(s *apptrade.QuoteService, ctx context.Context, tenantID, id, actor uuid.UUID) apptrade.Result

// quoteTriggers maps the action path segment to a lifecycle trigger
var quoteTriggers = map[string]quoteTrigger{
	trade.TriggerSend:        (*apptrade.QuoteService).Send,
	trade.TriggerMarkPending: (*apptrade.QuoteService).MarkPending,
	trade.TriggerAccept:      (*apptrade.QuoteService).Accept,
	trade.TriggerReject:      (*apptrade.QuoteService).Reject,
	trade.TriggerExpire:      (*apptrade.QuoteService).Expire,
	trade.TriggerCancel:      (*apptrade.QuoteService).Cancel,
}

// QuoteHandler handles quote endpoints
type QuoteHandler struct {
	BaseHandler
	quotes *apptrade.QuoteService
}

// NewQuoteHandler creates a new QuoteHandler
func NewQuoteHandler(quotes *apptrade.QuoteService) *QuoteHandler {
	return &QuoteHandler{quotes: quotes}
}

// RegisterRoutes registers the quote routes
func (h *QuoteHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/quotes")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/:action", h.Action)
	g.DELETE("/:id/items/:itemId", h.RemoveItem)
}

// List handles GET /quotes?status=SENT,PENDING
func (h *QuoteHandler) List(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	var statuses []trade.QuoteStatus
	for _, s := range statusList(q.Status) {
		st := trade.QuoteStatus(s)
		if !st.IsValid() {
			h.HandleError(c, shared.NewValidationError("status", "Unknown quote status "+s))
			return
		}
		statuses = append(statuses, st)
	}
	h.OK(c, h.quotes.List(c.Request.Context(), who.tenantID, q.Filter(), statuses...))
}

// Create handles POST /quotes
func (h *QuoteHandler) Create(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	var req apptrade.CreateQuoteRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.Created(c, h.quotes.Create(c.Request.Context(), who.tenantID, who.actorID, req))
}

// Get handles GET /quotes/:id
func (h *QuoteHandler) Get(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	h.OK(c, h.quotes.Get(c.Request.Context(), who.tenantID, id))
}

// Update handles PUT /quotes/:id
func (h *QuoteHandler) Update(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req apptrade.UpdateQuoteRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.OK(c, h.quotes.Update(c.Request.Context(), who.tenantID, id, who.actorID, req))
}

// Delete handles DELETE /quotes/:id
func (h *QuoteHandler) Delete(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	h.OK(c, h.quotes.Delete(c.Request.Context(), who.tenantID, id))
}

// Action dispatches POST /quotes/:id/{items,duplicate,convert,<trigger>}
func (h *QuoteHandler) Action(c *gin.Context) {
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
		h.OK(c, h.quotes.AddItem(ctx, who.tenantID, id, who.actorID, req))
	case "duplicate":
		h.Created(c, h.quotes.Duplicate(ctx, who.tenantID, id, who.actorID))
	case "convert", trade.TriggerConvertToOrder:
		h.Created(c, h.quotes.ConvertToOrder(ctx, who.tenantID, id, who.actorID))
	default:
		fire, known := quoteTriggers[action]
		if !known {
			h.UnknownAction(c, "quote", action)
			return
		}
		h.OK(c, fire(h.quotes, ctx, who.tenantID, id, who.actorID))
	}
}

// RemoveItem handles DELETE /quotes/:id/items/:itemId
func (h *QuoteHandler) RemoveItem(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.ParamUUID(c, "itemId")
	if !ok {
		return
	}
	h.OK(c, h.quotes.RemoveItem(c.Request.Context(), who.tenantID, id, itemID, who.actorID))
}
