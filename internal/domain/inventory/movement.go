package inventory

import (
	"time"

	"github.com/google/uuid"
)

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementTypeReceipt            MovementType = "RECEIPT"
	MovementTypeSaleDeduction      MovementType = "SALE_DEDUCTION"
	MovementTypeWarehouseToDisplay MovementType = "WAREHOUSE_TO_DISPLAY"
	MovementTypeTransfer           MovementType = "TRANSFER"
	MovementTypeExpiryWriteOff     MovementType = "EXPIRY_WRITE_OFF"
)

// IsValid checks if the movement type is known
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeReceipt, MovementTypeSaleDeduction, MovementTypeWarehouseToDisplay,
		MovementTypeTransfer, MovementTypeExpiryWriteOff:
		return true
	}
	return false
}

// StockMovement is an append-only audit record: one per batch touched by a
// mutation. Receipts have no source; sales and write-offs have no destination.
// Every movement written by one mutation shares an OperationID.
type StockMovement struct {
	ID             uuid.UUID
	OperationID    uuid.UUID
	BatchID        uuid.UUID
	ProductID      uuid.UUID
	FromLocationID *uuid.UUID
	ToLocationID   *uuid.UUID
	Quantity       int64
	MovementType   MovementType
	Actor          string
	Reference      string
	Note           string
	CreatedAt      time.Time
}

// MovementBuilder stamps movements produced by one mutation with common fields.
type MovementBuilder struct {
	operationID uuid.UUID
	productID   uuid.UUID
	actor       string
	reference   string
	note        string
	now         time.Time
}

// NewMovementBuilder starts a new mutation operation.
func NewMovementBuilder(productID uuid.UUID, actor, reference, note string, now time.Time) *MovementBuilder {
	return &MovementBuilder{
		operationID: uuid.New(),
		productID:   productID,
		actor:       actor,
		reference:   reference,
		note:        note,
		now:         now.UTC(),
	}
}

// OperationID returns the id shared by all movements of this mutation.
func (b *MovementBuilder) OperationID() uuid.UUID {
	return b.operationID
}

// Build creates one movement. Movement ids are UUIDv7 so they sort in the
// order movements were built.
func (b *MovementBuilder) Build(t MovementType, batchID uuid.UUID, from, to *uuid.UUID, quantity int64) StockMovement {
	return StockMovement{
		ID:             uuid.Must(uuid.NewV7()),
		OperationID:    b.operationID,
		BatchID:        batchID,
		ProductID:      b.productID,
		FromLocationID: from,
		ToLocationID:   to,
		Quantity:       quantity,
		MovementType:   t,
		Actor:          b.actor,
		Reference:      b.reference,
		Note:           b.note,
		CreatedAt:      b.now,
	}
}

// MovementFilter narrows a movement history query.
type MovementFilter struct {
	ProductID    uuid.UUID
	LocationID   *uuid.UUID
	MovementType MovementType
	Limit        int
}

// DefaultMovementLimit caps movement history pages.
const DefaultMovementLimit = 100
