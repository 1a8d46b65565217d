package inventory

import (
	"context"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultAlertCooldown is the minimum age of an alert before it can be retracted.
const DefaultAlertCooldown = time.Hour

// AlertLedger records and retracts reorder alerts. Alerts are derived state:
// callers treat failures here as non-fatal.
type AlertLedger struct {
	reads       TransactionalRepositories
	safetyFloor int64
	cooldown    time.Duration
	logger      *zap.Logger
	clock       shared.Clock

	publisher shared.EventPublisher
	metrics   StockMetrics
}

// NewAlertLedger creates an AlertLedger retracting alerts once the product's
// sellable total reaches safetyFloor and the alert is older than cooldown.
func NewAlertLedger(reads TransactionalRepositories, safetyFloor int64, cooldown time.Duration, logger *zap.Logger) *AlertLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cooldown <= 0 {
		cooldown = DefaultAlertCooldown
	}
	return &AlertLedger{
		reads:       reads,
		safetyFloor: safetyFloor,
		cooldown:    cooldown,
		logger:      logger.Named("alerts"),
		clock:       shared.SystemClock,
		metrics:     noopStockMetrics{},
	}
}

// SetEventPublisher sets the publisher for ReorderAlertRaised events.
func (a *AlertLedger) SetEventPublisher(p shared.EventPublisher) {
	a.publisher = p
}

// SetMetrics sets the metrics sink.
func (a *AlertLedger) SetMetrics(m StockMetrics) {
	if m != nil {
		a.metrics = m
	}
}

// SetClock overrides the time source.
func (a *AlertLedger) SetClock(c shared.Clock) {
	if c != nil {
		a.clock = c
	}
}

// RecordAlert inserts an alert unless the product already has one at the
// location for the current UTC day. The bool reports whether one was inserted.
func (a *AlertLedger) RecordAlert(ctx context.Context, productID, locationID uuid.UUID, observed int64, threshold decimal.Decimal, kind inventory.AlertKind) (*inventory.ReorderAlert, bool, error) {
	alert := inventory.NewReorderAlert(productID, locationID, observed, threshold, kind, a.clock())
	created, err := a.reads.Alerts().CreateIfAbsent(ctx, alert)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return alert, false, nil
	}

	a.logger.Info("Reorder alert raised",
		zap.String("product_id", productID.String()),
		zap.String("location_id", locationID.String()),
		zap.Int64("observed", observed),
		zap.String("threshold", threshold.String()),
		zap.String("kind", string(kind)),
	)
	a.metrics.RecordAlert(ctx, kind)
	if a.publisher != nil {
		if err := a.publisher.Publish(ctx, inventory.NewReorderAlertRaisedEvent(alert)); err != nil {
			a.logger.Warn("Failed to publish alert event", zap.String("alert_id", alert.ID.String()), zap.Error(err))
		}
	}
	return alert, true, nil
}

// RetractResolved deletes alerts past the cool-down whose product has
// recovered to the safety floor. Returns the number of alerts deleted.
func (a *AlertLedger) RetractResolved(ctx context.Context) (int64, error) {
	now := a.clock().UTC()
	candidates, err := a.reads.Alerts().FindCreatedBefore(ctx, now.Add(-a.cooldown))
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	recovered := make(map[uuid.UUID]bool)
	ids := make([]uuid.UUID, 0, len(candidates))
	for _, alert := range candidates {
		ok, seen := recovered[alert.ProductID]
		if !seen {
			snap, err := loadSnapshot(ctx, a.reads, alert.ProductID)
			if err != nil {
				return 0, err
			}
			ok = snap.sellableTotal(now) >= a.safetyFloor
			recovered[alert.ProductID] = ok
		}
		if ok {
			ids = append(ids, alert.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	deleted, err := a.reads.Alerts().DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, err
	}
	a.logger.Info("Resolved reorder alerts retracted", zap.Int64("count", deleted))
	a.metrics.RecordAlertsRetracted(ctx, deleted)
	return deleted, nil
}

// ListOpen lists open alerts, for one product when productID is set.
func (a *AlertLedger) ListOpen(ctx context.Context, productID *uuid.UUID, limit int) ([]inventory.ReorderAlert, error) {
	if productID != nil {
		return a.reads.Alerts().FindByProduct(ctx, *productID)
	}
	if limit <= 0 {
		limit = inventory.DefaultMovementLimit
	}
	return a.reads.Alerts().FindAll(ctx, limit)
}
