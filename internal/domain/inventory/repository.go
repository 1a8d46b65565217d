package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// LocationRepository persists the location registry.
type LocationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Location, error)
	FindByCode(ctx context.Context, code string) (*Location, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Location, error)
	FindAll(ctx context.Context) ([]Location, error)
	FindByKind(ctx context.Context, kind LocationKind) ([]Location, error)
	Save(ctx context.Context, location *Location) error
}

// PlacementRepository persists per-product location limits.
type PlacementRepository interface {
	// Find returns shared.ErrNotFound when the product has no placement at the location
	Find(ctx context.Context, productID, locationID uuid.UUID) (*Placement, error)
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]Placement, error)
	Upsert(ctx context.Context, placement *Placement) error
}

// BatchRepository stores received batches. Batches are write-once.
type BatchRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Batch, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Batch, error)
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]Batch, error)
	Create(ctx context.Context, batch *Batch) error
}

// LocationCellRepository stores per batch and location quantities.
type LocationCellRepository interface {
	// FindByProductForUpdate loads and row-locks every cell of the product,
	// ordered by cell id so concurrent writers lock in the same order.
	FindByProductForUpdate(ctx context.Context, productID uuid.UUID) ([]LocationCell, error)
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]LocationCell, error)
	FindByProductAndLocation(ctx context.Context, productID, locationID uuid.UUID) ([]LocationCell, error)
	// SumQuantity totals on-hand quantity of a product at a location, expired included
	SumQuantity(ctx context.Context, productID, locationID uuid.UUID) (int64, error)
	// ProductsWithExpiredStock lists products holding expired units at now
	ProductsWithExpiredStock(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	Create(ctx context.Context, cell *LocationCell) error
	UpdateQuantity(ctx context.Context, cell *LocationCell) error
}

// StockMovementRepository is the append-only movement journal.
type StockMovementRepository interface {
	CreateBatch(ctx context.Context, movements []StockMovement) error
	FindByReference(ctx context.Context, productID uuid.UUID, movementType MovementType, reference string) ([]StockMovement, error)
	FindByOperation(ctx context.Context, operationID uuid.UUID) ([]StockMovement, error)
	Find(ctx context.Context, filter MovementFilter) ([]StockMovement, error)
}

// StockProfileRepository stores per-product profiles.
type StockProfileRepository interface {
	// LockOrCreate creates the profile row if missing and locks it for the
	// rest of the transaction. It is the first statement of every mutation.
	LockOrCreate(ctx context.Context, productID uuid.UUID) (*StockProfile, error)
	Find(ctx context.Context, productID uuid.UUID) (*StockProfile, error)
	Save(ctx context.Context, profile *StockProfile) error
}

// ReorderAlertRepository persists reorder alerts.
type ReorderAlertRepository interface {
	// CreateIfAbsent inserts the alert unless one exists for the same product,
	// location and day. Returns true if a row was inserted.
	CreateIfAbsent(ctx context.Context, alert *ReorderAlert) (bool, error)
	FindCreatedBefore(ctx context.Context, cutoff time.Time) ([]ReorderAlert, error)
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]ReorderAlert, error)
	FindAll(ctx context.Context, limit int) ([]ReorderAlert, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}
