package inventory

import (
	"time"

	"github.com/google/uuid"
)

// StockProfile is the per-product row every mutating transaction locks first.
// It also remembers the highest total ever held, which feeds capacity
// estimation when no capacity is configured.
type StockProfile struct {
	ProductID          uuid.UUID
	PeakQuantity       int64
	ConfiguredCapacity *int64
	UpdatedAt          time.Time
}

// NewStockProfile creates an empty profile.
func NewStockProfile(productID uuid.UUID) *StockProfile {
	return &StockProfile{
		ProductID: productID,
		UpdatedAt: time.Now().UTC(),
	}
}

// ObserveTotal raises the peak when total exceeds it. Returns true if changed.
func (p *StockProfile) ObserveTotal(total int64) bool {
	if total <= p.PeakQuantity {
		return false
	}
	p.PeakQuantity = total
	p.UpdatedAt = time.Now().UTC()
	return true
}
