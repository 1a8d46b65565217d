package inventory

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
)

// StockMetrics receives ledger measurements. Implementations must not block.
type StockMetrics interface {
	RecordMovements(ctx context.Context, movementType inventory.MovementType, units int64, count int)
	RecordRejection(ctx context.Context, operation, code string)
	RecordAlert(ctx context.Context, kind inventory.AlertKind)
	RecordAlertsRetracted(ctx context.Context, count int64)
}

type noopStockMetrics struct{}

func (noopStockMetrics) RecordMovements(context.Context, inventory.MovementType, int64, int) {}
func (noopStockMetrics) RecordRejection(context.Context, string, string)                   {}
func (noopStockMetrics) RecordAlert(context.Context, inventory.AlertKind)                  {}
func (noopStockMetrics) RecordAlertsRetracted(context.Context, int64)                      {}

func recordMovements(ctx context.Context, m StockMetrics, movements []inventory.StockMovement) {
	byType := make(map[inventory.MovementType][2]int64)
	for _, mv := range movements {
		agg := byType[mv.MovementType]
		agg[0] += mv.Quantity
		agg[1]++
		byType[mv.MovementType] = agg
	}
	for t, agg := range byType {
		m.RecordMovements(ctx, t, agg[0], int(agg[1]))
	}
}
