package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeductRequest asks to remove sold units of a product.
type DeductRequest struct {
	ProductID uuid.UUID
	Quantity  int64
	Actor     string
	// Reference identifies the sale. A reference already applied for the
	// product replays the recorded result instead of deducting again.
	Reference string
}

// DeductResult reports what a deduction did.
type DeductResult struct {
	OperationID    uuid.UUID                 `json:"operation_id"`
	Movements      []inventory.StockMovement `json:"movements"`
	Replenishments []inventory.StockMovement `json:"replenishments"`
	Replayed       bool                      `json:"replayed"`
}

// TransferRequest moves units between two locations.
type TransferRequest struct {
	ProductID      uuid.UUID
	FromLocationID uuid.UUID
	ToLocationID   uuid.UUID
	Quantity       int64
	Actor          string
	Note           string
}

// ReceiveBatchRequest records newly received goods at an initial location.
type ReceiveBatchRequest struct {
	ProductID       uuid.UUID
	BatchNumber     string
	ExpiryDate      *time.Time
	AcquisitionDate time.Time
	UnitSellPrice   decimal.Decimal
	LocationID      uuid.UUID
	Quantity        int64
	Actor           string
	Reference       string
}

// WriteOffResult reports expired stock zeroed by a write-off.
type WriteOffResult struct {
	OperationID uuid.UUID                 `json:"operation_id"`
	Movements   []inventory.StockMovement `json:"movements"`
	Quantity    int64                     `json:"quantity"`
}

// CreateLocationRequest registers a storage location.
type CreateLocationRequest struct {
	Code                string
	Name                string
	Kind                inventory.LocationKind
	DefaultCapacity     int64
	DefaultMinThreshold int64
}

// LocationStock is one row of a stock summary.
type LocationStock struct {
	LocationID   uuid.UUID              `json:"location_id"`
	Code         string                 `json:"code"`
	Kind         inventory.LocationKind `json:"kind"`
	OnHand       int64                  `json:"on_hand"`
	Sellable     int64                  `json:"sellable"`
	Expired      int64                  `json:"expired"`
	Capacity     int64                  `json:"capacity"`
	MinThreshold int64                  `json:"min_threshold"`
}

// StockSummary is the per-location view of a product's stock.
type StockSummary struct {
	ProductID        uuid.UUID       `json:"product_id"`
	Locations        []LocationStock `json:"locations"`
	TotalQuantity    int64           `json:"total_quantity"`
	SellableQuantity int64           `json:"sellable_quantity"`
	ExpiredQuantity  int64           `json:"expired_quantity"`
}

// ReorderStatus is the current reorder evaluation of a product.
type ReorderStatus struct {
	ProductID         uuid.UUID               `json:"product_id"`
	Sample            inventory.SalesSample   `json:"sample"`
	VelocityClass     inventory.VelocityClass `json:"velocity_class"`
	Threshold         decimal.Decimal         `json:"threshold"`
	AlertWarranted    bool                    `json:"alert_warranted"`
	AlertKind         inventory.AlertKind     `json:"alert_kind,omitempty"`
	TotalQuantity     int64                   `json:"total_quantity"`
	EstimatedCapacity int64                   `json:"estimated_capacity"`
	EvaluatedAt       time.Time               `json:"evaluated_at"`
}
