package handler

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// defaultAlertLimit bounds alert listings without an explicit limit
const defaultAlertLimit = 100

// AlertOperations reads and maintains the reorder alert ledger
type AlertOperations interface {
	ListOpen(ctx context.Context, productID *uuid.UUID, limit int) ([]inventory.ReorderAlert, error)
	RetractResolved(ctx context.Context) (int64, error)
}

// AlertHandler serves the reorder alert ledger
type AlertHandler struct {
	BaseHandler
	alerts AlertOperations
}

// NewAlertHandler creates an AlertHandler
func NewAlertHandler(alerts AlertOperations) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *AlertHandler) RegisterRoutes(rg *gin.RouterGroup) {
	alerts := rg.Group("/alerts")
	alerts.GET("", h.ListOpen)
	alerts.POST("/retract", h.RetractResolved)
}

// ListOpen lists open alerts newest first, optionally for one product
func (h *AlertHandler) ListOpen(c *gin.Context) {
	var q dto.AlertQuery
	if !h.BindQuery(c, &q) {
		return
	}

	var productID *uuid.UUID
	if q.ProductID != "" {
		id := uuid.MustParse(q.ProductID)
		productID = &id
	}
	limit := q.Limit
	if limit == 0 {
		limit = defaultAlertLimit
	}

	alerts, err := h.alerts.ListOpen(c.Request.Context(), productID, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.List(c, dto.ToAlertResponses(alerts), len(alerts), limit)
}

// RetractResolved deletes alerts whose product has recovered. The scheduler
// runs the same sweep periodically.
func (h *AlertHandler) RetractResolved(c *gin.Context) {
	n, err := h.alerts.RetractResolved(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.RetractResponse{Retracted: n})
}
