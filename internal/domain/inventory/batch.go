package inventory

import (
	"strings"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Batch is an immutable record of one receipt of goods. It is created once and
// never updated or deleted; its quantity lives on location cells.
type Batch struct {
	ID               uuid.UUID
	ProductID        uuid.UUID
	BatchNumber      string
	ExpiryDate       *time.Time // nil means non-perishable
	AcquisitionDate  time.Time
	QuantityReceived int64
	UnitSellPrice    decimal.Decimal
	CreatedAt        time.Time
}

// NewBatch validates and creates a batch record.
func NewBatch(productID uuid.UUID, batchNumber string, expiry *time.Time, acquired time.Time, quantity int64, unitSellPrice decimal.Decimal) (*Batch, error) {
	if productID == uuid.Nil {
		return nil, shared.InvalidInput("Product is required")
	}
	batchNumber = strings.TrimSpace(batchNumber)
	if batchNumber == "" {
		return nil, shared.InvalidInput("Batch number cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.InvalidQuantity("Received quantity must be positive")
	}
	if unitSellPrice.IsNegative() {
		return nil, shared.InvalidInput("Unit sell price cannot be negative")
	}
	now := time.Now().UTC()
	if acquired.IsZero() {
		acquired = now
	}
	var exp *time.Time
	if expiry != nil {
		e := expiry.UTC()
		if e.Before(acquired.UTC()) {
			return nil, shared.InvalidInput("Expiry date cannot precede acquisition date")
		}
		exp = &e
	}
	return &Batch{
		ID:               uuid.New(),
		ProductID:        productID,
		BatchNumber:      batchNumber,
		ExpiryDate:       exp,
		AcquisitionDate:  acquired.UTC(),
		QuantityReceived: quantity,
		UnitSellPrice:    unitSellPrice,
		CreatedAt:        now,
	}, nil
}

// IsPerishable reports whether the batch carries an expiry date.
func (b *Batch) IsPerishable() bool {
	return b.ExpiryDate != nil
}

// IsExpired reports whether the batch expired at or before now.
func (b *Batch) IsExpired(now time.Time) bool {
	return b.ExpiryDate != nil && !b.ExpiryDate.After(now)
}

// ExpiresWithin reports whether an unexpired batch expires inside horizon from now.
func (b *Batch) ExpiresWithin(now time.Time, horizon time.Duration) bool {
	if b.ExpiryDate == nil || b.IsExpired(now) {
		return false
	}
	return !b.ExpiryDate.After(now.Add(horizon))
}
