package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = errors.New("ledger metrics: meter cannot be nil")

// LedgerStatsProvider supplies aggregate ledger state for gauge collection.
type LedgerStatsProvider interface {
	OnHandByLocationKind(ctx context.Context) (map[inventory.LocationKind]int64, error)
	OpenAlertsByKind(ctx context.Context) (map[inventory.AlertKind]int64, error)
}

// LedgerMetrics records stock movements, rejections and alert activity.
type LedgerMetrics struct {
	logger *zap.Logger

	movements     metric.Int64Counter
	unitsMoved    metric.Int64Counter
	rejections    metric.Int64Counter
	alertsRaised  metric.Int64Counter
	alertsRetired metric.Int64Counter

	onHand     metric.Int64Gauge
	openAlerts metric.Int64Gauge

	stats       LedgerStatsProvider
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
}

// NewLedgerMetrics registers the ledger instruments on meter. stats may be nil,
// in which case gauges are never collected.
func NewLedgerMetrics(meter metric.Meter, stats LedgerStatsProvider, logger *zap.Logger) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &LedgerMetrics{logger: logger, stats: stats, stopChan: make(chan struct{})}

	in := &instruments{meter: meter}
	m.movements = in.counter("stock_movements_total", "Stock movements journaled", "{movements}")
	m.unitsMoved = in.counter("stock_units_moved_total", "Units moved by stock movements", "{units}")
	m.rejections = in.counter("stock_operation_rejections_total", "Stock operations rejected or failed", "{operations}")
	m.alertsRaised = in.counter("reorder_alerts_raised_total", "Reorder alerts recorded", "{alerts}")
	m.alertsRetired = in.counter("reorder_alerts_retracted_total", "Reorder alerts retracted after recovery", "{alerts}")
	m.onHand = in.gauge("stock_on_hand_units", "On-hand units per location kind", "{units}")
	m.openAlerts = in.gauge("reorder_alerts_open", "Open reorder alerts per kind", "{alerts}")
	if in.err != nil {
		return nil, in.err
	}
	return m, nil
}

// RecordMovements counts count movements of one type moving units in total.
func (m *LedgerMetrics) RecordMovements(ctx context.Context, movementType inventory.MovementType, units int64, count int) {
	attrs := metric.WithAttributes(AttrMovementType.String(string(movementType)))
	m.movements.Add(ctx, int64(count), attrs)
	m.unitsMoved.Add(ctx, units, attrs)
}

// RecordRejection counts a failed operation by error code.
func (m *LedgerMetrics) RecordRejection(ctx context.Context, operation, code string) {
	m.rejections.Add(ctx, 1, metric.WithAttributes(AttrOperation.String(operation), AttrErrorCode.String(code)))
}

// RecordAlert counts a newly recorded alert.
func (m *LedgerMetrics) RecordAlert(ctx context.Context, kind inventory.AlertKind) {
	m.alertsRaised.Add(ctx, 1, metric.WithAttributes(AttrAlertKind.String(string(kind))))
}

// RecordAlertsRetracted counts retracted alerts.
func (m *LedgerMetrics) RecordAlertsRetracted(ctx context.Context, count int64) {
	m.alertsRetired.Add(ctx, count)
}

// StartPeriodicCollection collects gauges every interval (default 1m) until
// Stop or ctx is done. Only the first call starts a collector.
func (m *LedgerMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if m.stats == nil {
		return
	}
	m.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}
		go m.run(ctx, interval)
	})
}

func (m *LedgerMetrics) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Collect(ctx)
	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Collect(ctx)
		}
	}
}

// Collect records the gauges once.
func (m *LedgerMetrics) Collect(ctx context.Context) {
	if m.stats == nil {
		return
	}
	onHand, err := m.stats.OnHandByLocationKind(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect on-hand stock", zap.Error(err))
	} else {
		for kind, units := range onHand {
			m.onHand.Record(ctx, units, metric.WithAttributes(AttrLocationKind.String(string(kind))))
		}
	}

	alerts, err := m.stats.OpenAlertsByKind(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect open alerts", zap.Error(err))
		return
	}
	for kind, count := range alerts {
		m.openAlerts.Record(ctx, count, metric.WithAttributes(AttrAlertKind.String(string(kind))))
	}
}

// Stop ends periodic collection.
func (m *LedgerMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
}
