package handler

import (
	"net/http"
	"strings"

	apptrade "github.com/erp/backoffice/internal/application/trade"
	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/erp/backoffice/internal/infrastructure/logger"
	"github.com/erp/backoffice/internal/interfaces/http/dto"
	"github.com/erp/backoffice/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// identity is the tenant and acting user of a request
type identity struct {
	tenantID uuid.UUID
	actorID  uuid.UUID
}

// Respond writes a service result. Success uses status; failures take the
// status of their error code.
func (h *BaseHandler) Respond(c *gin.Context, status int, r apptrade.Result) {
	if !r.Success {
		status = dto.GetHTTPStatus(r.Code)
		if status >= http.StatusInternalServerError {
			logger.GetGinLogger(c).Error("Request failed",
				zap.String("code", r.Code),
				zap.Error(r.Err()),
			)
		}
	}
	c.JSON(status, dto.FromResult(r, middleware.GetRequestID(c)))
}

// OK writes a service result with 200 on success
func (h *BaseHandler) OK(c *gin.Context, r apptrade.Result) {
	h.Respond(c, http.StatusOK, r)
}

// Created writes a service result with 201 on success
func (h *BaseHandler) Created(c *gin.Context, r apptrade.Result) {
	h.Respond(c, http.StatusCreated, r)
}

// HandleError converts an error into a failed result
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.Respond(c, 0, apptrade.Fail(err))
}

// Identify returns the tenant and actor set by the auth middleware.
// It answers 401 itself when the tenant is missing.
func (h *BaseHandler) Identify(c *gin.Context) (identity, bool) {
	tenantID, ok := middleware.GetTenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(
			dto.CodeUnauthorized, "Tenant not resolved", middleware.GetRequestID(c)))
		return identity{}, false
	}
	return identity{tenantID: tenantID, actorID: middleware.GetActorID(c)}, true
}

// ParamUUID parses a path parameter, answering 400 when it is not a UUID
func (h *BaseHandler) ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.HandleError(c, shared.NewValidationError(name, "Invalid UUID format"))
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON binds and validates the body, answering 400 on failure
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.HandleError(c, middleware.BindingError(err))
		return false
	}
	return true
}

// BindOptionalJSON binds the body only when one was sent
func (h *BaseHandler) BindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return h.BindJSON(c, req)
}

// BindQuery binds and validates the query string, answering 400 on failure
func (h *BaseHandler) BindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		h.HandleError(c, middleware.BindingError(err))
		return false
	}
	return true
}

// UnknownAction answers 404 for an action segment no route handles
func (h *BaseHandler) UnknownAction(c *gin.Context, resource, action string) {
	c.JSON(http.StatusNotFound, dto.NewErrorResponse(
		dto.CodeRouteNotFound,
		"Unknown "+resource+" action '"+action+"'",
		middleware.GetRequestID(c),
	))
}

// statusList splits a comma separated status filter
func statusList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
