package telemetry

import (
	"context"

	"github.com/erp/stockledger/internal/domain/inventory"
	"gorm.io/gorm"
)

// GormLedgerStatsProvider aggregates ledger tables directly for gauges.
type GormLedgerStatsProvider struct {
	db *gorm.DB
}

// NewGormLedgerStatsProvider creates a new GormLedgerStatsProvider.
func NewGormLedgerStatsProvider(db *gorm.DB) *GormLedgerStatsProvider {
	return &GormLedgerStatsProvider{db: db}
}

// OnHandByLocationKind sums cell quantities grouped by location kind.
func (p *GormLedgerStatsProvider) OnHandByLocationKind(ctx context.Context) (map[inventory.LocationKind]int64, error) {
	type row struct {
		Kind  string `gorm:"column:kind"`
		Units int64  `gorm:"column:units"`
	}
	var rows []row
	err := p.db.WithContext(ctx).
		Table("location_cells").
		Select("locations.kind AS kind, COALESCE(SUM(location_cells.current_quantity), 0) AS units").
		Joins("JOIN locations ON locations.id = location_cells.location_id").
		Group("locations.kind").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[inventory.LocationKind]int64, len(rows))
	for _, r := range rows {
		out[inventory.LocationKind(r.Kind)] = r.Units
	}
	return out, nil
}

// OpenAlertsByKind counts alerts grouped by kind.
func (p *GormLedgerStatsProvider) OpenAlertsByKind(ctx context.Context) (map[inventory.AlertKind]int64, error) {
	type row struct {
		Kind  string `gorm:"column:kind"`
		Count int64  `gorm:"column:count"`
	}
	var rows []row
	err := p.db.WithContext(ctx).
		Table("reorder_alerts").
		Select("kind, COUNT(*) AS count").
		Group("kind").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[inventory.AlertKind]int64, len(rows))
	for _, r := range rows {
		out[inventory.AlertKind(r.Kind)] = r.Count
	}
	return out, nil
}
