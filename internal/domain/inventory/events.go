package inventory

import (
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Event type constants
const (
	EventTypeBatchReceived      = "BatchReceived"
	EventTypeStockDeducted      = "StockDeducted"
	EventTypeStockTransferred   = "StockTransferred"
	EventTypeDisplayReplenished = "DisplayReplenished"
	EventTypeExpiredWrittenOff  = "ExpiredStockWrittenOff"
	EventTypeReorderAlertRaised = "ReorderAlertRaised"
)

// AggregateTypeProductStock is the aggregate type of every stock event; the
// aggregate id is the product id.
const AggregateTypeProductStock = "ProductStock"

// MovementLine summarizes one movement in an event payload.
type MovementLine struct {
	BatchID        uuid.UUID  `json:"batch_id"`
	FromLocationID *uuid.UUID `json:"from_location_id,omitempty"`
	ToLocationID   *uuid.UUID `json:"to_location_id,omitempty"`
	Quantity       int64      `json:"quantity"`
}

func linesOf(movements []StockMovement) []MovementLine {
	lines := make([]MovementLine, len(movements))
	for i, m := range movements {
		lines[i] = MovementLine{
			BatchID:        m.BatchID,
			FromLocationID: m.FromLocationID,
			ToLocationID:   m.ToLocationID,
			Quantity:       m.Quantity,
		}
	}
	return lines
}

// StockMovedEvent is published after a committed mutation.
type StockMovedEvent struct {
	shared.BaseDomainEvent
	ProductID   uuid.UUID      `json:"product_id"`
	OperationID uuid.UUID      `json:"operation_id"`
	Reference   string         `json:"reference,omitempty"`
	Actor       string         `json:"actor,omitempty"`
	Total       int64          `json:"total"`
	Lines       []MovementLine `json:"lines"`
}

// NewStockMovedEvent builds the event of eventType for movements of one operation.
func NewStockMovedEvent(eventType string, productID uuid.UUID, movements []StockMovement) *StockMovedEvent {
	e := &StockMovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypeProductStock, productID),
		ProductID:       productID,
		Lines:           linesOf(movements),
	}
	if len(movements) > 0 {
		e.OperationID = movements[0].OperationID
		e.Reference = movements[0].Reference
		e.Actor = movements[0].Actor
	}
	for _, m := range movements {
		e.Total += m.Quantity
	}
	return e
}

// ReorderAlertRaisedEvent is published when a new alert is recorded.
type ReorderAlertRaisedEvent struct {
	shared.BaseDomainEvent
	AlertID          uuid.UUID `json:"alert_id"`
	ProductID        uuid.UUID `json:"product_id"`
	LocationID       uuid.UUID `json:"location_id"`
	ObservedQuantity int64     `json:"observed_quantity"`
	Threshold        string    `json:"threshold"`
	Kind             AlertKind `json:"kind"`
}

// NewReorderAlertRaisedEvent builds the event for alert.
func NewReorderAlertRaisedEvent(alert *ReorderAlert) *ReorderAlertRaisedEvent {
	return &ReorderAlertRaisedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeReorderAlertRaised, AggregateTypeProductStock, alert.ProductID),
		AlertID:          alert.ID,
		ProductID:        alert.ProductID,
		LocationID:       alert.LocationID,
		ObservedQuantity: alert.ObservedQuantity,
		Threshold:        alert.Threshold.String(),
		Kind:             alert.Kind,
	}
}
