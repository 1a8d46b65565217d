package inventory

import (
	"strings"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// LocationKind classifies a storage location.
type LocationKind string

const (
	LocationKindWarehouse LocationKind = "WAREHOUSE"
	LocationKindDisplay   LocationKind = "DISPLAY"
	LocationKindOnline    LocationKind = "ONLINE"
)

// IsValid checks if the kind is one of the known location kinds
func (k LocationKind) IsValid() bool {
	switch k {
	case LocationKindWarehouse, LocationKindDisplay, LocationKindOnline:
		return true
	}
	return false
}

// IsCapacityBounded reports whether stock at this kind of location is capped.
// Only display shelves are bounded and replenished.
func (k LocationKind) IsCapacityBounded() bool {
	return k == LocationKindDisplay
}

// String returns the string representation
func (k LocationKind) String() string {
	return string(k)
}

// Location is an independent storage area holding stock of many products.
type Location struct {
	shared.BaseEntity
	Code                string
	Name                string
	Kind                LocationKind
	DefaultCapacity     int64
	DefaultMinThreshold int64
}

// NewLocation validates and creates a location.
func NewLocation(code, name string, kind LocationKind, defaultCapacity, defaultMinThreshold int64) (*Location, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.InvalidInput("Location code cannot be empty")
	}
	if len(code) > 50 {
		return nil, shared.InvalidInput("Location code cannot exceed 50 characters")
	}
	if !kind.IsValid() {
		return nil, shared.InvalidInput("Unknown location kind: "+string(kind))
	}
	if defaultCapacity < 0 || defaultMinThreshold < 0 {
		return nil, shared.InvalidInput("Capacity and minimum threshold cannot be negative")
	}
	if kind.IsCapacityBounded() && defaultCapacity > 0 && defaultMinThreshold > defaultCapacity {
		return nil, shared.InvalidInput("Minimum threshold cannot exceed capacity")
	}
	if name == "" {
		name = code
	}
	return &Location{
		BaseEntity:          shared.NewBaseEntity(),
		Code:                strings.ToUpper(code),
		Name:                name,
		Kind:                kind,
		DefaultCapacity:     defaultCapacity,
		DefaultMinThreshold: defaultMinThreshold,
	}, nil
}

// Placement overrides a location's capacity and replenishment trigger for one product.
type Placement struct {
	ProductID    uuid.UUID
	LocationID   uuid.UUID
	Capacity     int64
	MinThreshold int64
}

// NewPlacement validates a per-product placement.
func NewPlacement(productID, locationID uuid.UUID, capacity, minThreshold int64) (*Placement, error) {
	if productID == uuid.Nil || locationID == uuid.Nil {
		return nil, shared.InvalidInput("Product and location are required")
	}
	if capacity < 0 || minThreshold < 0 {
		return nil, shared.InvalidInput("Capacity and minimum threshold cannot be negative")
	}
	if minThreshold > capacity {
		return nil, shared.InvalidInput("Minimum threshold cannot exceed capacity")
	}
	return &Placement{
		ProductID:    productID,
		LocationID:   locationID,
		Capacity:     capacity,
		MinThreshold: minThreshold,
	}, nil
}

// Limits is the effective capacity and minimum threshold of a product at a location.
type Limits struct {
	Capacity     int64
	MinThreshold int64
}

// EffectiveLimits resolves the limits for a product at loc. A placement wins
// over the location defaults.
func EffectiveLimits(loc *Location, placement *Placement) Limits {
	if placement != nil {
		return Limits{Capacity: placement.Capacity, MinThreshold: placement.MinThreshold}
	}
	return Limits{Capacity: loc.DefaultCapacity, MinThreshold: loc.DefaultMinThreshold}
}
