package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Statement span attributes added on top of otelgorm's
const (
	AttrDBRowLock    = "db.row_lock"
	AttrDBSlowQuery  = "db.slow_query"
	AttrDBDurationMS = "db.query_duration_ms"
)

// DBTracingConfig controls database span instrumentation.
type DBTracingConfig struct {
	Enabled            bool
	LogFullSQL         bool // include bound query variables; development only
	SlowQueryThreshold time.Duration
	DBSystem           string
}

// DefaultDBTracingConfig returns disabled tracing with a 200ms slow-query mark.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThreshold: 200 * time.Millisecond,
		DBSystem:           "postgresql",
	}
}

// DBTracingPlugin installs otelgorm and enriches its statement spans. Cell
// reads taken with FOR UPDATE are tagged as row locks, so a slow one is a
// lock wait rather than a slow plan.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new DBTracingPlugin
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// RegisterOtelGorm registers the plugin on db. It does nothing when disabled.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := p.registerEnrichment(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Duration("slow_query_threshold", p.config.SlowQueryThreshold),
		zap.String("db_system", p.config.DBSystem),
	)
	return nil
}

type queryStartKey struct{}

// registerEnrichment hooks in after the gorm operation but before otelgorm
// ends the statement span and restores the parent context.
func (p *DBTracingPlugin) registerEnrichment(db *gorm.DB) error {
	cb := db.Callback()
	var errs []error
	register := func(before, after gormCallback, name string) {
		errs = append(errs,
			before.Register("ledger:before_"+name, p.start),
			after.Register("ledger:after_"+name, p.enrich),
		)
	}
	register(cb.Create().Before("gorm:create"), cb.Create().After("gorm:create").Before("otel:after:create"), "create")
	register(cb.Query().Before("gorm:query"), cb.Query().After("gorm:query").Before("otel:after:select"), "query")
	register(cb.Update().Before("gorm:update"), cb.Update().After("gorm:update").Before("otel:after:update"), "update")
	register(cb.Delete().Before("gorm:delete"), cb.Delete().After("gorm:delete").Before("otel:after:delete"), "delete")
	register(cb.Row().Before("gorm:row"), cb.Row().After("gorm:row").Before("otel:after:row"), "row")
	register(cb.Raw().Before("gorm:raw"), cb.Raw().After("gorm:raw").Before("otel:after:raw"), "raw")
	return errors.Join(errs...)
}

// gormCallback is the registration half of gorm's callback processor chain
type gormCallback interface {
	Register(name string, fn func(*gorm.DB)) error
}

func (p *DBTracingPlugin) start(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
	}
}

func (p *DBTracingPlugin) enrich(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	_, locking := db.Statement.Clauses["FOR"]
	if locking {
		span.SetAttributes(attribute.Bool(AttrDBRowLock, true))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		RecordError(span, db.Error)
	}

	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(start)
	if elapsed <= p.config.SlowQueryThreshold {
		return
	}
	span.SetAttributes(
		attribute.Bool(AttrDBSlowQuery, true),
		attribute.Int64(AttrDBDurationMS, elapsed.Milliseconds()),
	)
	if locking {
		p.logger.Warn("Slow row lock on ledger table",
			zap.String("table", db.Statement.Table),
			zap.Duration("waited", elapsed),
			zap.String("trace_id", GetTraceID(ctx)),
		)
	}
}
