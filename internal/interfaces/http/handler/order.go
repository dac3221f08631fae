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

type orderTrigger func(s *apptrade.OrderService, ctx context.Context, tenantID, id, actor uuid.UUID) apptrade.Result

var orderTriggers = map[string]orderTrigger{
	trade.TriggerAwaitPayment: (*apptrade.OrderService).AwaitPayment,
	trade.TriggerMarkPaid:     (*apptrade.OrderService).MarkPaid,
	trade.TriggerShip:         (*apptrade.OrderService).Ship,
	trade.TriggerComplete:     (*apptrade.OrderService).Complete,
}

// OrderHandler handles order endpoints
type OrderHandler struct {
	BaseHandler
	orders *apptrade.OrderService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders *apptrade.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// RegisterRoutes registers the order routes
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/orders")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/summary", h.Summary)
	g.POST("/:id/:action", h.Action)
	g.DELETE("/:id/items/:itemId", h.RemoveItem)
}

// List handles GET /orders?status=PAID,SHIPPED
func (h *OrderHandler) List(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	var q dto.ListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	var statuses []trade.OrderStatus
	for _, s := range statusList(q.Status) {
		st := trade.OrderStatus(s)
		if !st.IsValid() {
			h.HandleError(c, shared.NewValidationError("status", "Unknown order status "+s))
			return
		}
		statuses = append(statuses, st)
	}
	if len(statuses) == 1 {
		h.OK(c, h.orders.ListByStatus(c.Request.Context(), who.tenantID, statuses[0], q.Filter()))
		return
	}
	h.OK(c, h.orders.List(c.Request.Context(), who.tenantID, q.Filter(), statuses...))
}

// Create handles POST /orders
func (h *OrderHandler) Create(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	var req apptrade.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.Created(c, h.orders.Create(c.Request.Context(), who.tenantID, who.actorID, req))
}

// Get handles GET /orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	h.OK(c, h.orders.Get(c.Request.Context(), who.tenantID, id))
}

// Update handles PUT /orders/:id
func (h *OrderHandler) Update(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req apptrade.UpdateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	h.OK(c, h.orders.Update(c.Request.Context(), who.tenantID, id, who.actorID, req))
}

// Delete handles DELETE /orders/:id
func (h *OrderHandler) Delete(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	h.OK(c, h.orders.Delete(c.Request.Context(), who.tenantID, id))
}

// Summary handles GET /orders/:id/summary
func (h *OrderHandler) Summary(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	id, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	h.OK(c, h.orders.Summary(c.Request.Context(), who.tenantID, id))
}

// Action dispatches POST /orders/:id/{items,invoice,cancel,<trigger>}
func (h *OrderHandler) Action(c *gin.Context) {
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
		h.OK(c, h.orders.AddItem(ctx, who.tenantID, id, who.actorID, req))
	case "invoice":
		h.Created(c, h.orders.ToInvoice(ctx, who.tenantID, id, who.actorID))
	case trade.TriggerCancel:
		var req apptrade.CancelOrderRequest
		if !h.BindOptionalJSON(c, &req) {
			return
		}
		h.OK(c, h.orders.Cancel(ctx, who.tenantID, id, who.actorID, req))
	default:
		fire, known := orderTriggers[action]
		if !known {
			h.UnknownAction(c, "order", action)
			return
		}
		h.OK(c, fire(h.orders, ctx, who.tenantID, id, who.actorID))
	}
}

// RemoveItem handles DELETE /orders/:id/items/:itemId
func (h *OrderHandler) RemoveItem(c *gin.Context) {
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
	h.OK(c, h.orders.RemoveItem(c.Request.Context(), who.tenantID, id, itemID, who.actorID))
}
