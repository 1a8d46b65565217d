//go:build integration

package persistence_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/migration"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/erp/stockledger/migrations"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresLedger starts a postgres container and applies the embedded
// migrations to it.
func newPostgresLedger(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("stock_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(20)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.New(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(3), version)
	return db
}

func TestPostgresLedger_ConcurrentDeductions(t *testing.T) {
	db := newPostgresLedger(t)
	ctx := context.Background()

	repos := persistence.NewGormRepositories(db)
	scope := persistence.NewGormTransactionScope(db, persistence.WithLockTimeout(5*time.Second))
	stock := appinv.NewStockService(scope, repos, inventory.NewExpiryFirstStrategy(inventory.DefaultNearExpiryHorizon), nil)
	locations := appinv.NewLocationService(repos, nil)

	warehouse, err := locations.CreateLocation(ctx, appinv.CreateLocationRequest{Code: "WH-1", Kind: inventory.LocationKindWarehouse})
	require.NoError(t, err)

	productID := uuid.New()
	_, err = stock.ReceiveBatch(ctx, appinv.ReceiveBatchRequest{
		ProductID:       productID,
		BatchNumber:     "B-1",
		AcquisitionDate: time.Now().AddDate(0, 0, -1),
		UnitSellPrice:   decimal.RequireFromString("1.50"),
		LocationID:      warehouse.ID,
		Quantity:        100,
		Actor:           "receiver",
	})
	require.NoError(t, err)

	const workers = 25
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := stock.Deduct(ctx, appinv.DeductRequest{ProductID: productID, Quantity: 5, Actor: "till"})
			mu.Lock()
			defer mu.Unlock()
			var ise *inventory.InsufficientStockError
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &ise):
				insufficient++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, succeeded)
	assert.Equal(t, 5, insufficient)

	remaining, err := stock.GetQuantity(ctx, productID, warehouse.ID)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	movements, err := stock.ListMovements(ctx, inventory.MovementFilter{ProductID: productID, Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, movements, 21)
}

func TestPostgresLedger_MigrateDown(t *testing.T) {
	db := newPostgresLedger(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)

	m, err := migration.New(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Steps(-1))

	version, _, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, db.Migrator().HasTable("reorder_alerts"))
}
