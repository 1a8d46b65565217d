package handler

import (
	"context"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LocationOperations manages the location registry and placements
type LocationOperations interface {
	CreateLocation(ctx context.Context, req appinv.CreateLocationRequest) (*inventory.Location, error)
	GetLocation(ctx context.Context, id uuid.UUID) (*inventory.Location, error)
	ListLocations(ctx context.Context, kind string) ([]inventory.Location, error)
	SetPlacement(ctx context.Context, productID, locationID uuid.UUID, capacity, minThreshold int64) (*inventory.Placement, error)
	GetPlacements(ctx context.Context, productID uuid.UUID) ([]inventory.Placement, error)
}

// LocationHandler serves locations and per-product placements
type LocationHandler struct {
	BaseHandler
	locations LocationOperations
}

// NewLocationHandler creates a LocationHandler
func NewLocationHandler(locations LocationOperations) *LocationHandler {
	return &LocationHandler{locations: locations}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *LocationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	locations := rg.Group("/locations")
	locations.POST("", h.CreateLocation)
	locations.GET("", h.ListLocations)
	locations.GET("/:id", h.GetLocation)

	products := rg.Group("/products/:product_id")
	products.GET("/placements", h.GetPlacements)
	products.PUT("/placements/:location_id", h.SetPlacement)
}

// CreateLocation registers a location. Codes are unique ignoring case.
func (h *LocationHandler) CreateLocation(c *gin.Context) {
	var req dto.CreateLocationRequest
	if !h.BindJSON(c, &req) {
		return
	}

	loc, err := h.locations.CreateLocation(c.Request.Context(), appinv.CreateLocationRequest{
		Code:                req.Code,
		Name:                req.Name,
		Kind:                inventory.LocationKind(req.Kind),
		DefaultCapacity:     req.DefaultCapacity,
		DefaultMinThreshold: req.DefaultMinThreshold,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToLocationResponse(loc))
}

func (h *LocationHandler) GetLocation(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	loc, err := h.locations.GetLocation(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToLocationResponse(loc))
}

// ListLocations lists locations, optionally of one kind (?kind=DISPLAY)
func (h *LocationHandler) ListLocations(c *gin.Context) {
	locs, err := h.locations.ListLocations(c.Request.Context(), c.Query("kind"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.List(c, dto.ToLocationResponses(locs), len(locs), 0)
}

func (h *LocationHandler) GetPlacements(c *gin.Context) {
	productID, ok := h.parseUUIDParam(c, "product_id")
	if !ok {
		return
	}

	placements, err := h.locations.GetPlacements(c.Request.Context(), productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.List(c, dto.ToPlacementResponses(placements), len(placements), 0)
}

// SetPlacement creates or replaces the product's limits at a location
func (h *LocationHandler) SetPlacement(c *gin.Context) {
	productID, ok := h.parseUUIDParam(c, "product_id")
	if !ok {
		return
	}
	locationID, ok := h.parseUUIDParam(c, "location_id")
	if !ok {
		return
	}
	var req dto.SetPlacementRequest
	if !h.BindJSON(c, &req) {
		return
	}

	placement, err := h.locations.SetPlacement(c.Request.Context(), productID, locationID, req.Capacity, req.MinThreshold)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToPlacementResponse(placement))
}
