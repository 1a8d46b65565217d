package models

import (
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LocationModel is the persistence model for Location.
type LocationModel struct {
	BaseModel
	Code                string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name                string `gorm:"type:varchar(200);not null"`
	Kind                string `gorm:"type:varchar(20);not null;index"`
	DefaultCapacity     int64  `gorm:"not null;default:0"`
	DefaultMinThreshold int64  `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (LocationModel) TableName() string {
	return "locations"
}

// ToDomain converts the persistence model to a domain Location.
func (m *LocationModel) ToDomain() *inventory.Location {
	return &inventory.Location{
		BaseEntity:          m.BaseModel.entity(),
		Code:                m.Code,
		Name:                m.Name,
		Kind:                inventory.LocationKind(m.Kind),
		DefaultCapacity:     m.DefaultCapacity,
		DefaultMinThreshold: m.DefaultMinThreshold,
	}
}

// LocationModelFromDomain creates a persistence model from a domain Location.
func LocationModelFromDomain(l *inventory.Location) *LocationModel {
	return &LocationModel{
		BaseModel:           baseFromEntity(l.BaseEntity),
		Code:                l.Code,
		Name:                l.Name,
		Kind:                string(l.Kind),
		DefaultCapacity:     l.DefaultCapacity,
		DefaultMinThreshold: l.DefaultMinThreshold,
	}
}

// PlacementModel stores per-product limits at a location.
type PlacementModel struct {
	ProductID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	LocationID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Capacity     int64     `gorm:"not null"`
	MinThreshold int64     `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PlacementModel) TableName() string {
	return "placements"
}

// ToDomain converts the persistence model to a domain Placement.
func (m *PlacementModel) ToDomain() *inventory.Placement {
	return &inventory.Placement{
		ProductID:    m.ProductID,
		LocationID:   m.LocationID,
		Capacity:     m.Capacity,
		MinThreshold: m.MinThreshold,
	}
}

// PlacementModelFromDomain creates a persistence model from a domain Placement.
func PlacementModelFromDomain(p *inventory.Placement) *PlacementModel {
	return &PlacementModel{
		ProductID:    p.ProductID,
		LocationID:   p.LocationID,
		Capacity:     p.Capacity,
		MinThreshold: p.MinThreshold,
		UpdatedAt:    time.Now().UTC(),
	}
}

// BatchModel is the persistence model for Batch. Rows are never updated.
type BatchModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	BatchNumber      string          `gorm:"type:varchar(50);not null"`
	ExpiryDate       *time.Time      `gorm:"index"`
	AcquisitionDate  time.Time       `gorm:"not null"`
	QuantityReceived int64           `gorm:"not null"`
	UnitSellPrice    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CreatedAt        time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BatchModel) TableName() string {
	return "batches"
}

// ToDomain converts the persistence model to a domain Batch.
func (m *BatchModel) ToDomain() *inventory.Batch {
	return &inventory.Batch{
		ID:               m.ID,
		ProductID:        m.ProductID,
		BatchNumber:      m.BatchNumber,
		ExpiryDate:       utcPtr(m.ExpiryDate),
		AcquisitionDate:  m.AcquisitionDate.UTC(),
		QuantityReceived: m.QuantityReceived,
		UnitSellPrice:    m.UnitSellPrice,
		CreatedAt:        m.CreatedAt.UTC(),
	}
}

// BatchModelFromDomain creates a persistence model from a domain Batch.
func BatchModelFromDomain(b *inventory.Batch) *BatchModel {
	return &BatchModel{
		ID:               b.ID,
		ProductID:        b.ProductID,
		BatchNumber:      b.BatchNumber,
		ExpiryDate:       utcPtr(b.ExpiryDate),
		AcquisitionDate:  b.AcquisitionDate.UTC(),
		QuantityReceived: b.QuantityReceived,
		UnitSellPrice:    b.UnitSellPrice,
		CreatedAt:        b.CreatedAt.UTC(),
	}
}

// LocationCellModel holds the quantity of one batch at one location.
type LocationCellModel struct {
	BaseModel
	BatchID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_location_cell_batch_location,priority:1"`
	LocationID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_location_cell_batch_location,priority:2;index"`
	ProductID       uuid.UUID `gorm:"type:uuid;not null;index"`
	CurrentQuantity int64     `gorm:"not null;default:0;check:chk_location_cell_quantity,current_quantity >= 0"`
	MinThreshold    int64     `gorm:"not null;default:0"`
	Capacity        int64     `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (LocationCellModel) TableName() string {
	return "location_cells"
}

// ToDomain converts the persistence model to a domain LocationCell.
func (m *LocationCellModel) ToDomain() *inventory.LocationCell {
	return &inventory.LocationCell{
		ID:              m.ID,
		BatchID:         m.BatchID,
		ProductID:       m.ProductID,
		LocationID:      m.LocationID,
		CurrentQuantity: m.CurrentQuantity,
		MinThreshold:    m.MinThreshold,
		Capacity:        m.Capacity,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
}

// LocationCellModelFromDomain creates a persistence model from a domain LocationCell.
func LocationCellModelFromDomain(c *inventory.LocationCell) *LocationCellModel {
	return &LocationCellModel{
		BaseModel:       BaseModel{ID: c.ID, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt},
		BatchID:         c.BatchID,
		LocationID:      c.LocationID,
		ProductID:       c.ProductID,
		CurrentQuantity: c.CurrentQuantity,
		MinThreshold:    c.MinThreshold,
		Capacity:        c.Capacity,
	}
}

// StockMovementModel is one row of the append-only movement journal.
type StockMovementModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primary_key"`
	OperationID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	BatchID        uuid.UUID  `gorm:"type:uuid;not null;index"`
	ProductID      uuid.UUID  `gorm:"type:uuid;not null;index:idx_stock_movement_product_created,priority:1;index:idx_stock_movement_reference,priority:1"`
	FromLocationID *uuid.UUID `gorm:"type:uuid;index"`
	ToLocationID   *uuid.UUID `gorm:"type:uuid;index"`
	Quantity       int64      `gorm:"not null;check:chk_stock_movement_quantity,quantity > 0"`
	MovementType   string     `gorm:"type:varchar(30);not null;index:idx_stock_movement_reference,priority:2"`
	Actor          string     `gorm:"type:varchar(100)"`
	Reference      string     `gorm:"type:varchar(100);index:idx_stock_movement_reference,priority:3"`
	Note           string     `gorm:"type:varchar(500)"`
	CreatedAt      time.Time  `gorm:"not null;index:idx_stock_movement_product_created,priority:2"`
}

// TableName returns the table name for GORM
func (StockMovementModel) TableName() string {
	return "stock_movements"
}

// ToDomain converts the persistence model to a domain StockMovement.
func (m *StockMovementModel) ToDomain() inventory.StockMovement {
	return inventory.StockMovement{
		ID:             m.ID,
		OperationID:    m.OperationID,
		BatchID:        m.BatchID,
		ProductID:      m.ProductID,
		FromLocationID: m.FromLocationID,
		ToLocationID:   m.ToLocationID,
		Quantity:       m.Quantity,
		MovementType:   inventory.MovementType(m.MovementType),
		Actor:          m.Actor,
		Reference:      m.Reference,
		Note:           m.Note,
		CreatedAt:      m.CreatedAt.UTC(),
	}
}

// StockMovementModelFromDomain creates a persistence model from a domain StockMovement.
func StockMovementModelFromDomain(s *inventory.StockMovement) StockMovementModel {
	return StockMovementModel{
		ID:             s.ID,
		OperationID:    s.OperationID,
		BatchID:        s.BatchID,
		ProductID:      s.ProductID,
		FromLocationID: s.FromLocationID,
		ToLocationID:   s.ToLocationID,
		Quantity:       s.Quantity,
		MovementType:   string(s.MovementType),
		Actor:          s.Actor,
		Reference:      s.Reference,
		Note:           s.Note,
		CreatedAt:      s.CreatedAt.UTC(),
	}
}

// StockProfileModel is the per-product lock row.
type StockProfileModel struct {
	ProductID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	PeakQuantity       int64     `gorm:"not null;default:0"`
	ConfiguredCapacity *int64
	UpdatedAt          time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockProfileModel) TableName() string {
	return "stock_profiles"
}

// ToDomain converts the persistence model to a domain StockProfile.
func (m *StockProfileModel) ToDomain() *inventory.StockProfile {
	return &inventory.StockProfile{
		ProductID:          m.ProductID,
		PeakQuantity:       m.PeakQuantity,
		ConfiguredCapacity: m.ConfiguredCapacity,
		UpdatedAt:          m.UpdatedAt.UTC(),
	}
}

// StockProfileModelFromDomain creates a persistence model from a domain StockProfile.
func StockProfileModelFromDomain(p *inventory.StockProfile) *StockProfileModel {
	return &StockProfileModel{
		ProductID:          p.ProductID,
		PeakQuantity:       p.PeakQuantity,
		ConfiguredCapacity: p.ConfiguredCapacity,
		UpdatedAt:          p.UpdatedAt.UTC(),
	}
}

// ReorderAlertModel is the persistence model for ReorderAlert.
type ReorderAlertModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	ProductID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_reorder_alert_daily,priority:1"`
	LocationID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_reorder_alert_daily,priority:2"`
	AlertDate        time.Time       `gorm:"not null;uniqueIndex:idx_reorder_alert_daily,priority:3"`
	ObservedQuantity int64           `gorm:"not null"`
	Threshold        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Kind             string          `gorm:"type:varchar(30);not null"`
	CreatedAt        time.Time       `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (ReorderAlertModel) TableName() string {
	return "reorder_alerts"
}

// ToDomain converts the persistence model to a domain ReorderAlert.
func (m *ReorderAlertModel) ToDomain() *inventory.ReorderAlert {
	return &inventory.ReorderAlert{
		ID:               m.ID,
		ProductID:        m.ProductID,
		LocationID:       m.LocationID,
		ObservedQuantity: m.ObservedQuantity,
		Threshold:        m.Threshold,
		Kind:             inventory.AlertKind(m.Kind),
		AlertDate:        m.AlertDate.UTC(),
		CreatedAt:        m.CreatedAt.UTC(),
	}
}

// ReorderAlertModelFromDomain creates a persistence model from a domain ReorderAlert.
func ReorderAlertModelFromDomain(a *inventory.ReorderAlert) *ReorderAlertModel {
	return &ReorderAlertModel{
		ID:               a.ID,
		ProductID:        a.ProductID,
		LocationID:       a.LocationID,
		AlertDate:        a.AlertDate.UTC(),
		ObservedQuantity: a.ObservedQuantity,
		Threshold:        a.Threshold,
		Kind:             string(a.Kind),
		CreatedAt:        a.CreatedAt.UTC(),
	}
}
