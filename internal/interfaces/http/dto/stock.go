package dto

import (
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeductStockRequest removes sold units of a product
type DeductStockRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int64     `json:"quantity" binding:"gte=0"` // zero is a no-op
	Actor     string    `json:"actor" binding:"max=100"`
	Reference string    `json:"reference" binding:"max=100"`
}

// TransferStockRequest moves units between two locations
type TransferStockRequest struct {
	ProductID      uuid.UUID `json:"product_id" binding:"required"`
	FromLocationID uuid.UUID `json:"from_location_id" binding:"required"`
	ToLocationID   uuid.UUID `json:"to_location_id" binding:"required"`
	Quantity       int64     `json:"quantity" binding:"required,gt=0"`
	Actor          string    `json:"actor" binding:"max=100"`
	Note           string    `json:"note" binding:"max=500"`
}

// ReceiveBatchRequest records newly received goods
type ReceiveBatchRequest struct {
	ProductID       uuid.UUID       `json:"product_id" binding:"required"`
	BatchNumber     string          `json:"batch_number" binding:"required,max=50"`
	ExpiryDate      *time.Time      `json:"expiry_date"`
	AcquisitionDate *time.Time      `json:"acquisition_date"`
	UnitSellPrice   decimal.Decimal `json:"unit_sell_price"`
	LocationID      uuid.UUID       `json:"location_id" binding:"required"`
	Quantity        int64           `json:"quantity" binding:"required,gt=0"`
	Actor           string          `json:"actor" binding:"max=100"`
	Reference       string          `json:"reference" binding:"max=100"`
}

// WriteOffRequest zeroes a product's expired stock
type WriteOffRequest struct {
	Actor string `json:"actor" binding:"max=100"`
}

// SetCapacityRequest sets or clears a product's configured total capacity
type SetCapacityRequest struct {
	Capacity *int64 `json:"capacity" binding:"omitempty,gte=0"`
}

// CreateLocationRequest registers a storage location
type CreateLocationRequest struct {
	Code                string `json:"code" binding:"required,max=50"`
	Name                string `json:"name" binding:"required,max=200"`
	Kind                string `json:"kind" binding:"required,location_kind"`
	DefaultCapacity     int64  `json:"default_capacity" binding:"gte=0"`
	DefaultMinThreshold int64  `json:"default_min_threshold" binding:"gte=0"`
}

// SetPlacementRequest overrides location limits for one product
type SetPlacementRequest struct {
	Capacity     int64 `json:"capacity" binding:"gte=0"`
	MinThreshold int64 `json:"min_threshold" binding:"gte=0"`
}

// MovementQuery filters the movement history
type MovementQuery struct {
	LocationID   string `form:"location_id" binding:"omitempty,uuid"`
	MovementType string `form:"movement_type" binding:"omitempty,movement_type"`
	Limit        int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// AlertQuery filters open alerts
type AlertQuery struct {
	ProductID string `form:"product_id" binding:"omitempty,uuid"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// MovementResponse is one audited stock movement
type MovementResponse struct {
	ID             uuid.UUID  `json:"id"`
	OperationID    uuid.UUID  `json:"operation_id"`
	BatchID        uuid.UUID  `json:"batch_id"`
	ProductID      uuid.UUID  `json:"product_id"`
	FromLocationID *uuid.UUID `json:"from_location_id,omitempty"`
	ToLocationID   *uuid.UUID `json:"to_location_id,omitempty"`
	Quantity       int64      `json:"quantity"`
	MovementType   string     `json:"movement_type"`
	Actor          string     `json:"actor"`
	Reference      string     `json:"reference,omitempty"`
	Note           string     `json:"note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// DeductResponse reports the result of a deduction
type DeductResponse struct {
	OperationID    uuid.UUID          `json:"operation_id"`
	Movements      []MovementResponse `json:"movements"`
	Replenishments []MovementResponse `json:"replenishments"`
	Replayed       bool               `json:"replayed"`
}

// WriteOffResponse reports expired stock written off
type WriteOffResponse struct {
	OperationID uuid.UUID          `json:"operation_id"`
	Quantity    int64              `json:"quantity"`
	Movements   []MovementResponse `json:"movements"`
}

// BatchResponse is a received batch
type BatchResponse struct {
	ID               uuid.UUID       `json:"id"`
	ProductID        uuid.UUID       `json:"product_id"`
	BatchNumber      string          `json:"batch_number"`
	ExpiryDate       *time.Time      `json:"expiry_date,omitempty"`
	AcquisitionDate  time.Time       `json:"acquisition_date"`
	QuantityReceived int64           `json:"quantity_received"`
	UnitSellPrice    decimal.Decimal `json:"unit_sell_price"`
	CreatedAt        time.Time       `json:"created_at"`
}

// LocationResponse is a storage location
type LocationResponse struct {
	ID                  uuid.UUID `json:"id"`
	Code                string    `json:"code"`
	Name                string    `json:"name"`
	Kind                string    `json:"kind"`
	DefaultCapacity     int64     `json:"default_capacity"`
	DefaultMinThreshold int64     `json:"default_min_threshold"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// PlacementResponse is a per-product limit override
type PlacementResponse struct {
	ProductID    uuid.UUID `json:"product_id"`
	LocationID   uuid.UUID `json:"location_id"`
	Capacity     int64     `json:"capacity"`
	MinThreshold int64     `json:"min_threshold"`
}

// AlertResponse is an open reorder alert
type AlertResponse struct {
	ID               uuid.UUID       `json:"id"`
	ProductID        uuid.UUID       `json:"product_id"`
	LocationID       uuid.UUID       `json:"location_id"`
	ObservedQuantity int64           `json:"observed_quantity"`
	Threshold        decimal.Decimal `json:"threshold"`
	Kind             string          `json:"kind"`
	AlertDate        time.Time       `json:"alert_date"`
	CreatedAt        time.Time       `json:"created_at"`
}

// StockProfileResponse is a product's capacity profile
type StockProfileResponse struct {
	ProductID          uuid.UUID `json:"product_id"`
	PeakQuantity       int64     `json:"peak_quantity"`
	ConfiguredCapacity *int64    `json:"configured_capacity"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// QuantityResponse is the on-hand quantity at one location
type QuantityResponse struct {
	ProductID  uuid.UUID `json:"product_id"`
	LocationID uuid.UUID `json:"location_id"`
	Quantity   int64     `json:"quantity"`
}

// RetractResponse reports how many alerts were retracted
type RetractResponse struct {
	Retracted int64 `json:"retracted"`
}

func ToMovementResponse(m inventory.StockMovement) MovementResponse {
	return MovementResponse{
		ID:             m.ID,
		OperationID:    m.OperationID,
		BatchID:        m.BatchID,
		ProductID:      m.ProductID,
		FromLocationID: m.FromLocationID,
		ToLocationID:   m.ToLocationID,
		Quantity:       m.Quantity,
		MovementType:   string(m.MovementType),
		Actor:          m.Actor,
		Reference:      m.Reference,
		Note:           m.Note,
		CreatedAt:      m.CreatedAt,
	}
}

// ToMovementResponses never returns nil so empty lists encode as []
func ToMovementResponses(movements []inventory.StockMovement) []MovementResponse {
	out := make([]MovementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, ToMovementResponse(m))
	}
	return out
}

func ToBatchResponse(b *inventory.Batch) BatchResponse {
	return BatchResponse{
		ID:               b.ID,
		ProductID:        b.ProductID,
		BatchNumber:      b.BatchNumber,
		ExpiryDate:       b.ExpiryDate,
		AcquisitionDate:  b.AcquisitionDate,
		QuantityReceived: b.QuantityReceived,
		UnitSellPrice:    b.UnitSellPrice,
		CreatedAt:        b.CreatedAt,
	}
}

func ToLocationResponse(l *inventory.Location) LocationResponse {
	return LocationResponse{
		ID:                  l.ID,
		Code:                l.Code,
		Name:                l.Name,
		Kind:                string(l.Kind),
		DefaultCapacity:     l.DefaultCapacity,
		DefaultMinThreshold: l.DefaultMinThreshold,
		CreatedAt:           l.CreatedAt,
		UpdatedAt:           l.UpdatedAt,
	}
}

func ToLocationResponses(locations []inventory.Location) []LocationResponse {
	out := make([]LocationResponse, 0, len(locations))
	for i := range locations {
		out = append(out, ToLocationResponse(&locations[i]))
	}
	return out
}

func ToPlacementResponse(p *inventory.Placement) PlacementResponse {
	return PlacementResponse{
		ProductID:    p.ProductID,
		LocationID:   p.LocationID,
		Capacity:     p.Capacity,
		MinThreshold: p.MinThreshold,
	}
}

func ToPlacementResponses(placements []inventory.Placement) []PlacementResponse {
	out := make([]PlacementResponse, 0, len(placements))
	for i := range placements {
		out = append(out, ToPlacementResponse(&placements[i]))
	}
	return out
}

func ToAlertResponses(alerts []inventory.ReorderAlert) []AlertResponse {
	out := make([]AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, AlertResponse{
			ID:               a.ID,
			ProductID:        a.ProductID,
			LocationID:       a.LocationID,
			ObservedQuantity: a.ObservedQuantity,
			Threshold:        a.Threshold,
			Kind:             string(a.Kind),
			AlertDate:        a.AlertDate,
			CreatedAt:        a.CreatedAt,
		})
	}
	return out
}

func ToStockProfileResponse(p *inventory.StockProfile) StockProfileResponse {
	return StockProfileResponse{
		ProductID:          p.ProductID,
		PeakQuantity:       p.PeakQuantity,
		ConfiguredCapacity: p.ConfiguredCapacity,
		UpdatedAt:          p.UpdatedAt,
	}
}
