package handler

import (
	"strconv"

	appinventory "github.com/erp/backoffice/internal/application/inventory"
	apptrade "github.com/erp/backoffice/internal/application/trade"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/gin-gonic/gin"
)

// AdjustStockBody is the body of POST /products/:id/adjust
type AdjustStockBody struct {
	Delta     int64  `json:"delta" binding:"required,ne=0"`
	Reason    string `json:"reason" binding:"omitempty,oneof=restock adjustment damage loss"`
	Reference string `json:"reference" binding:"max=100"`
}

// ReturnStockBody is the body of POST /products/:id/return
type ReturnStockBody struct {
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
	Reason    string `json:"reason" binding:"max=100"`
	Reference string `json:"reference" binding:"max=100"`
}

// StockHandler handles stock endpoints
type StockHandler struct {
	BaseHandler
	stock *appinventory.StockService
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(stock *appinventory.StockService) *StockHandler {
	return &StockHandler{stock: stock}
}

// RegisterRoutes registers the stock routes
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	products := rg.Group("/products")
	products.GET("/:id/stock", h.StockLevel)
	products.GET("/:id/movements", h.Movements)
	products.GET("/:id/reconcile", h.Reconcile)
	products.POST("/:id/adjust", h.Adjust)
	products.POST("/:id/return", h.Return)

	// The order segment is the order number the reservations were taken for
	rg.GET("/orders/:id/reservations", h.Reservations)
}

// StockLevel handles GET /products/:id/stock
func (h *StockHandler) StockLevel(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	productID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	level, err := h.stock.StockLevel(c.Request.Context(), who.tenantID, productID)
	h.respond(c, level, err)
}

// Movements handles GET /products/:id/movements
func (h *StockHandler) Movements(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	productID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	movements, err := h.stock.Movements(c.Request.Context(), who.tenantID, productID)
	h.respond(c, movements, err)
}

// Reconcile handles GET /products/:id/reconcile?initial=N
func (h *StockHandler) Reconcile(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	productID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var initial int64
	if raw := c.Query("initial"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			h.HandleError(c, shared.NewValidationError("initial", "Must be a non-negative integer"))
			return
		}
		initial = n
	}
	report, err := h.stock.Reconcile(c.Request.Context(), who.tenantID, productID, initial)
	h.respond(c, report, err)
}

// Adjust handles POST /products/:id/adjust
func (h *StockHandler) Adjust(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	productID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var body AdjustStockBody
	if !h.BindJSON(c, &body) {
		return
	}
	movement, err := h.stock.Adjust(c.Request.Context(), who.tenantID, appinventory.AdjustStockRequest{
		ProductID: productID,
		Delta:     body.Delta,
		Reason:    body.Reason,
		Reference: body.Reference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, apptrade.Ok(movement, "Stock adjusted"))
}

// Return handles POST /products/:id/return
func (h *StockHandler) Return(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	productID, ok := h.ParamUUID(c, "id")
	if !ok {
		return
	}
	var body ReturnStockBody
	if !h.BindJSON(c, &body) {
		return
	}
	err := h.stock.ReturnStock(c.Request.Context(), who.tenantID, appinventory.ReturnStockRequest{
		ProductID: productID,
		Quantity:  body.Quantity,
		Reason:    body.Reason,
		Reference: body.Reference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, apptrade.Ok(nil, "Stock returned"))
}

// Reservations handles GET /orders/:id/reservations
func (h *StockHandler) Reservations(c *gin.Context) {
	who, ok := h.Identify(c)
	if !ok {
		return
	}
	ref := c.Param("id")
	if ref == "" {
		h.HandleError(c, shared.NewValidationError("order_ref", "This field is required"))
		return
	}
	reservations, err := h.stock.ReservationsForOrder(c.Request.Context(), who.tenantID, ref)
	h.respond(c, reservations, err)
}

func (h *StockHandler) respond(c *gin.Context, data any, err error) {
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.OK(c, apptrade.Ok(data, ""))
}
