// Package handler implements the stock ledger HTTP endpoints.
package handler

import (
	"net/http"
	"strconv"

	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/interfaces/http/dto"
	"github.com/erp/stockledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultRetryAfterSeconds is sent with RESOURCE_BUSY answers
const DefaultRetryAfterSeconds = 1

// BaseHandler provides common handler utilities
type BaseHandler struct {
	// RetryAfter is the Retry-After value in seconds for retryable errors
	RetryAfter int
}

func getRequestID(c *gin.Context) string {
	return c.GetString(logger.GinRequestIDKey)
}

// anonymousActor is recorded when neither the body nor X-Actor names one
const anonymousActor = "api"

// actorFor picks the acting user: the body value, then the X-Actor header.
func actorFor(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	if actor := logger.Actor(c.Request.Context()); actor != "" {
		return actor
	}
	return anonymousActor
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// List sends a bounded list
func (h *BaseHandler) List(c *gin.Context, data any, count, limit int) {
	c.JSON(http.StatusOK, dto.NewListResponse(data, count, limit))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status
func (h *BaseHandler) Error(c *gin.Context, status int, code, message string) {
	middleware.SetErrorCode(c, code)
	c.AbortWithStatusJSON(status, dto.NewErrorResponse(code, message, getRequestID(c)))
}

// BadRequest sends a 400 response
func (h *BaseHandler) BadRequest(c *gin.Context, code, message string) {
	h.Error(c, http.StatusBadRequest, code, message)
}

// HandleError maps a service error to its HTTP answer. Retryable errors carry
// Retry-After. Server side failures are logged with the request logger.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	m := dto.MapError(err)
	if m.Retryable {
		retry := h.RetryAfter
		if retry <= 0 {
			retry = DefaultRetryAfterSeconds
		}
		c.Header("Retry-After", strconv.Itoa(retry))
	}

	log := logger.FromGin(c)
	switch {
	case m.Status >= http.StatusInternalServerError:
		log.Error("Request failed", zap.String("code", m.Code), zap.Error(err))
	case m.Retryable:
		log.Warn("Request rejected, retryable", zap.String("code", m.Code), zap.Error(err))
	}

	middleware.SetErrorCode(c, m.Code)
	resp := dto.NewErrorResponse(m.Code, m.Message, getRequestID(c))
	resp.Error.Retryable = m.Retryable
	c.AbortWithStatusJSON(m.Status, resp)
}

// BindJSON binds and validates the body, answering 400 on failure
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// BindQuery binds and validates query parameters, answering 400 on failure
func (h *BaseHandler) BindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// parseUUIDParam reads a path parameter as a UUID, answering 400 on failure
func (h *BaseHandler) parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil || id == uuid.Nil {
		h.BadRequest(c, dto.ErrCodeInvalidID, "Invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
