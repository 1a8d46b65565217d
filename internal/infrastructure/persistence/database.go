package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/logger"
	"github.com/erp/stockledger/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// sqliteBusyTimeout bounds how long a sqlite writer waits for the file lock
// before the statement fails with SQLITE_BUSY.
const sqliteBusyTimeout = 5 * time.Second

// Database owns the gorm handle of the ledger store
type Database struct {
	DB *gorm.DB
}

// NewDatabase opens the ledger store. Only slow queries and errors reach the
// zap logger; lock waits are logged as warnings by the gorm adapter.
func NewDatabase(cfg *config.DatabaseConfig, zapLogger *zap.Logger) (*Database, error) {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}

	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewGormLogger(zapLogger, gormlogger.Warn, logger.WithSlowThreshold(cfg.SlowQuery)),
		SkipDefaultTransaction: true,
		// movement timestamps are compared across locations
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s ledger store: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("ledger store handle: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// one writer at a time keeps sqlite from failing concurrent deductions
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping ledger store: %w", err)
	}
	return &Database{DB: db}, nil
}

func openDialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(sqliteDSN(cfg.SQLitePath)), nil
	case "", "postgres":
		return postgres.Open(cfg.DSN()), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// sqliteDSN adds the busy timeout and immediate write transactions, so a
// deduction takes the write lock at BEGIN instead of upgrading mid-way.
func sqliteDSN(path string) string {
	params := fmt.Sprintf("_busy_timeout=%d&_txlock=immediate", sqliteBusyTimeout.Milliseconds())
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

// AutoMigrate creates or updates the ledger tables from the models. Used for
// sqlite and tests; postgres deployments run the SQL migrations instead.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// PingContext reports whether the store answers within ctx. The readiness
// probe uses it.
func (d *Database) PingContext(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
