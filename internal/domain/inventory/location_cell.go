package inventory

import (
	"time"

	"github.com/google/uuid"
)

// LocationCell holds the quantity of one batch at one location. Cells are
// created lazily the first time a batch is stocked somewhere and are kept
// at zero quantity afterwards.
type LocationCell struct {
	ID              uuid.UUID
	BatchID         uuid.UUID
	ProductID       uuid.UUID
	LocationID      uuid.UUID
	CurrentQuantity int64
	MinThreshold    int64
	Capacity        int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewLocationCell opens an empty cell for a batch at a location, stamping the
// effective limits current at creation.
func NewLocationCell(batch *Batch, locationID uuid.UUID, limits Limits) *LocationCell {
	now := time.Now().UTC()
	return &LocationCell{
		ID:           uuid.New(),
		BatchID:      batch.ID,
		ProductID:    batch.ProductID,
		LocationID:   locationID,
		MinThreshold: limits.MinThreshold,
		Capacity:     limits.Capacity,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Apply adds a signed delta to the cell. The cell is left untouched when the
// result would go negative.
func (c *LocationCell) Apply(delta int64) error {
	next := c.CurrentQuantity + delta
	if next < 0 {
		locationID := c.LocationID
		return &InsufficientStockError{
			ProductID:  c.ProductID,
			LocationID: &locationID,
			Available:  c.CurrentQuantity,
			Requested:  -delta,
		}
	}
	c.CurrentQuantity = next
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// IsEmpty reports whether the cell holds nothing.
func (c *LocationCell) IsEmpty() bool {
	return c.CurrentQuantity == 0
}

// SumQuantity totals the quantity across cells.
func SumQuantity(cells []LocationCell) int64 {
	var total int64
	for i := range cells {
		total += cells[i].CurrentQuantity
	}
	return total
}

// CheckCapacity verifies that adding delta units to a bounded location holding
// current units stays within capacity.
func CheckCapacity(productID, locationID uuid.UUID, kind LocationKind, capacity, current, delta int64) error {
	if !kind.IsCapacityBounded() || delta <= 0 {
		return nil
	}
	if current+delta > capacity {
		return &CapacityExceededError{
			ProductID:  productID,
			LocationID: locationID,
			Capacity:   capacity,
			Current:    current,
			Requested:  delta,
		}
	}
	return nil
}
