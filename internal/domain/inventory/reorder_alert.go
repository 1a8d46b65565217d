package inventory

import (
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertKind names the rule that raised a reorder alert.
type AlertKind string

const (
	AlertKindBelowSafetyFloor AlertKind = "BELOW_SAFETY_FLOOR"
	AlertKindFastMoverReorder AlertKind = "FAST_MOVER_REORDER"
)

// ReorderAlert is a durable low-stock notification. At most one exists per
// product, location and calendar day.
type ReorderAlert struct {
	ID               uuid.UUID
	ProductID        uuid.UUID
	LocationID       uuid.UUID
	ObservedQuantity int64
	Threshold        decimal.Decimal
	Kind             AlertKind
	AlertDate        time.Time
	CreatedAt        time.Time
}

// NewReorderAlert creates an alert dated to the UTC day of now.
func NewReorderAlert(productID, locationID uuid.UUID, observed int64, threshold decimal.Decimal, kind AlertKind, now time.Time) *ReorderAlert {
	return &ReorderAlert{
		ID:               uuid.New(),
		ProductID:        productID,
		LocationID:       locationID,
		ObservedQuantity: observed,
		Threshold:        threshold,
		Kind:             kind,
		AlertDate:        shared.StartOfDay(now),
		CreatedAt:        now.UTC(),
	}
}

// CooledDown reports whether the alert is older than cooldown at now.
func (a *ReorderAlert) CooledDown(now time.Time, cooldown time.Duration) bool {
	return !a.CreatedAt.After(now.Add(-cooldown))
}
