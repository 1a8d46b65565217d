package handler

import (
	"context"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StockOperations is the part of the stock service the API exposes
type StockOperations interface {
	Deduct(ctx context.Context, req appinv.DeductRequest) (*appinv.DeductResult, error)
	Transfer(ctx context.Context, req appinv.TransferRequest) ([]inventory.StockMovement, error)
	ReceiveBatch(ctx context.Context, req appinv.ReceiveBatchRequest) (*inventory.Batch, error)
	WriteOffExpired(ctx context.Context, productID uuid.UUID, actor string) (*appinv.WriteOffResult, error)
	GetQuantity(ctx context.Context, productID, locationID uuid.UUID) (int64, error)
	GetStockSummary(ctx context.Context, productID uuid.UUID) (*appinv.StockSummary, error)
	ListMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.StockMovement, error)
}

// ReorderOperations exposes reorder evaluation
type ReorderOperations interface {
	GetReorderStatus(ctx context.Context, productID uuid.UUID) (*appinv.ReorderStatus, error)
	SetConfiguredCapacity(ctx context.Context, productID uuid.UUID, capacity *int64) (*inventory.StockProfile, error)
}

// StockHandler serves stock mutations and stock queries
type StockHandler struct {
	BaseHandler
	stock   StockOperations
	reorder ReorderOperations
	now     func() time.Time
}

// NewStockHandler creates a StockHandler
func NewStockHandler(stock StockOperations, reorder ReorderOperations) *StockHandler {
	return &StockHandler{
		stock:   stock,
		reorder: reorder,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	stock := rg.Group("/stock")
	stock.POST("/deductions", h.Deduct)
	stock.POST("/transfers", h.Transfer)
	stock.POST("/batches", h.ReceiveBatch)

	products := rg.Group("/products/:product_id")
	products.GET("/stock", h.GetStockSummary)
	products.GET("/stock/:location_id", h.GetQuantity)
	products.GET("/movements", h.ListMovements)
	products.POST("/write-offs", h.WriteOffExpired)
	products.GET("/reorder-status", h.GetReorderStatus)
	products.PUT("/capacity", h.SetCapacity)
}

// Deduct removes sold units. A repeated sale reference answers 200 with the
// recorded result; a fresh deduction answers 201.
func (h *StockHandler) Deduct(c *gin.Context) {
	var req dto.DeductStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.stock.Deduct(c.Request.Context(), appinv.DeductRequest{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Actor:     actorFor(c, req.Actor),
		Reference: req.Reference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := dto.DeductResponse{
		OperationID:    result.OperationID,
		Movements:      dto.ToMovementResponses(result.Movements),
		Replenishments: dto.ToMovementResponses(result.Replenishments),
		Replayed:       result.Replayed,
	}
	if result.Replayed {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// Transfer moves units between two locations
func (h *StockHandler) Transfer(c *gin.Context) {
	var req dto.TransferStockRequest
	if !h.BindJSON(c, &req) {
		return
	}

	movements, err := h.stock.Transfer(c.Request.Context(), appinv.TransferRequest{
		ProductID:      req.ProductID,
		FromLocationID: req.FromLocationID,
		ToLocationID:   req.ToLocationID,
		Quantity:       req.Quantity,
		Actor:          actorFor(c, req.Actor),
		Note:           req.Note,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToMovementResponses(movements))
}

// ReceiveBatch records received goods at their initial location
func (h *StockHandler) ReceiveBatch(c *gin.Context) {
	var req dto.ReceiveBatchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	acquired := h.now()
	if req.AcquisitionDate != nil {
		acquired = req.AcquisitionDate.UTC()
	}

	batch, err := h.stock.ReceiveBatch(c.Request.Context(), appinv.ReceiveBatchRequest{
		ProductID:       req.ProductID,
		BatchNumber:     req.BatchNumber,
		ExpiryDate:      req.ExpiryDate,
		AcquisitionDate: acquired,
		UnitSellPrice:   req.UnitSellPrice,
		LocationID:      req.LocationID,
		Quantity:        req.Quantity,
		Actor:           actorFor(c, req.Actor),
		Reference:       req.Reference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToBatchResponse(batch))
}

// WriteOffExpired zeroes the product's expired cells
func (h *StockHandler) WriteOffExpired(c *gin.Context) {
	productID, ok := h.parseUUIDParam(c, "product_id")
	if !ok {
		return
	}

	// The body is optional
	var req dto.WriteOffRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}

	result, err := h.stock.WriteOffExpired(c.Request.Context(), productID, actorFor(c, req.Actor))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.WriteOffResponse{
		OperationID: result.OperationID,
		Quantity:    result.Quantity,
		Movements:   dto.ToMovementResponses(result.Movements),
	})
}

// GetStockSummary returns the per-location stock of a product
func (h *StockHandler) GetStockSummary(c *gin.Context) {
	productID, ok := h.parseUUIDParam(c, "product_id")
	if !ok {
		return
	}

	summary, err := h.stock.GetStockSummary(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// GetQuantity returns the on-hand quantity at one location
func (h *StockHandler) GetQuantity(c *gin.Context) {
	productID, ok := h.parseUUIDParam(c, "product_id")
	if !ok {
		return
	}
	locationID, ok := h.parseUUIDParam(c, "location_id")
	if !ok {
		return
	}

	qty, err := h.stock.GetQuantity(c.Request.Context(), productID, locationID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.QuantityResponse{ProductID: productID, LocationID: locationID, Quantity: qty})
}

// ListMovements returns the product's newest movements first
func (h *StockHandler) ListMovements(c *gin.Context) {
	productID, ok := h.parseUUIDParam(c, "product_id")
	if !ok {
		return
	}
	var q dto.MovementQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := inventory.MovementFilter{
		ProductID:    productID,
		MovementType: inventory.MovementType(q.MovementType),
		Limit:        q.Limit,
	}
	if q.LocationID != "" {
		locationID := uuid.MustParse(q.LocationID)
		filter.LocationID = &locationID
	}
	if filter.Limit == 0 {
		filter.Limit = inventory.DefaultMovementLimit
	}

	movements, err := h.stock.ListMovements(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.List(c, dto.ToMovementResponses(movements), len(movements), filter.Limit)
}

// GetReorderStatus returns the product's current reorder evaluation
func (h *StockHandler) GetReorderStatus(c *gin.Context) {
	productID, ok := h.parseUUIDParam(c, "product_id")
	if !ok {
		return
	}

	status, err := h.reorder.GetReorderStatus(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}

// SetCapacity sets the product's configured total capacity. A null capacity
// falls back to the observed peak.
func (h *StockHandler) SetCapacity(c *gin.Context) {
	productID, ok := h.parseUUIDParam(c, "product_id")
	if !ok {
		return
	}
	var req dto.SetCapacityRequest
	if !h.BindJSON(c, &req) {
		return
	}

	profile, err := h.reorder.SetConfiguredCapacity(c.Request.Context(), productID, req.Capacity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToStockProfileResponse(profile))
}
