package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens an in-memory sqlite database with the ledger schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func createLocation(t *testing.T, db *gorm.DB, code string, kind inventory.LocationKind, capacity, min int64) *inventory.Location {
	t.Helper()
	loc, err := inventory.NewLocation(code, "", kind, capacity, min)
	require.NoError(t, err)
	require.NoError(t, NewGormLocationRepository(db).Save(context.Background(), loc))
	return loc
}

func createBatch(t *testing.T, db *gorm.DB, productID uuid.UUID, number string, expiry *time.Time) *inventory.Batch {
	t.Helper()
	acquired := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b, err := inventory.NewBatch(productID, number, expiry, acquired, 100, decimal.NewFromFloat(2.5))
	require.NoError(t, err)
	require.NoError(t, NewGormBatchRepository(db).Create(context.Background(), b))
	return b
}

func createCell(t *testing.T, db *gorm.DB, b *inventory.Batch, loc *inventory.Location, qty int64) *inventory.LocationCell {
	t.Helper()
	cell := inventory.NewLocationCell(b, loc.ID, inventory.EffectiveLimits(loc, nil))
	cell.CurrentQuantity = qty
	require.NoError(t, NewGormLocationCellRepository(db).Create(context.Background(), cell))
	return cell
}

func TestGormLocationRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewGormLocationRepository(db)

	wh := createLocation(t, db, "wh-1", inventory.LocationKindWarehouse, 0, 0)
	createLocation(t, db, "shelf-1", inventory.LocationKindDisplay, 40, 10)

	t.Run("finds by code case-insensitively", func(t *testing.T) {
		got, err := repo.FindByCode(ctx, " Wh-1 ")
		require.NoError(t, err)
		assert.Equal(t, wh.ID, got.ID)
		assert.Equal(t, inventory.LocationKindWarehouse, got.Kind)
	})

	t.Run("returns not found for unknown id", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("filters by kind", func(t *testing.T) {
		displays, err := repo.FindByKind(ctx, inventory.LocationKindDisplay)
		require.NoError(t, err)
		require.Len(t, displays, 1)
		assert.Equal(t, "SHELF-1", displays[0].Code)
		assert.Equal(t, int64(40), displays[0].DefaultCapacity)
	})
}

func TestGormPlacementRepository_Upsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewGormPlacementRepository(db)

	shelf := createLocation(t, db, "shelf", inventory.LocationKindDisplay, 40, 10)
	productID := uuid.New()

	p, err := inventory.NewPlacement(productID, shelf.ID, 30, 5)
	require.NoError(t, err)
	require.NoError(t, repo.Upsert(ctx, p))

	p.Capacity = 60
	p.MinThreshold = 12
	require.NoError(t, repo.Upsert(ctx, p))

	got, err := repo.Find(ctx, productID, shelf.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), got.Capacity)
	assert.Equal(t, int64(12), got.MinThreshold)

	all, err := repo.FindByProduct(ctx, productID)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = repo.Find(ctx, uuid.New(), shelf.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormLocationCellRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewGormLocationCellRepository(db)

	wh := createLocation(t, db, "wh", inventory.LocationKindWarehouse, 0, 0)
	shelf := createLocation(t, db, "shelf", inventory.LocationKindDisplay, 40, 10)
	productID := uuid.New()

	past := time.Now().UTC().Add(-48 * time.Hour)
	future := time.Now().UTC().Add(30 * 24 * time.Hour)
	expired := createBatch(t, db, productID, "B-OLD", nil)
	// NewBatch rejects expiry before acquisition, so backdate after creation
	require.NoError(t, db.Exec("UPDATE batches SET expiry_date = ? WHERE id = ?", past, expired.ID).Error)
	fresh := createBatch(t, db, productID, "B-NEW", &future)

	c1 := createCell(t, db, expired, wh, 5)
	c2 := createCell(t, db, fresh, wh, 20)
	createCell(t, db, fresh, shelf, 8)

	t.Run("locks all cells of a product in id order", func(t *testing.T) {
		cells, err := repo.FindByProductForUpdate(ctx, productID)
		require.NoError(t, err)
		require.Len(t, cells, 3)
		for i := 1; i < len(cells); i++ {
			assert.True(t, cells[i-1].ID.String() < cells[i].ID.String())
		}
	})

	t.Run("sums quantity at a location including expired units", func(t *testing.T) {
		total, err := repo.SumQuantity(ctx, productID, wh.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(25), total)

		none, err := repo.SumQuantity(ctx, uuid.New(), wh.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), none)
	})

	t.Run("lists products with expired stock", func(t *testing.T) {
		ids, err := repo.ProductsWithExpiredStock(ctx, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{productID}, ids)

		c1.CurrentQuantity = 0
		require.NoError(t, repo.UpdateQuantity(ctx, c1))

		ids, err = repo.ProductsWithExpiredStock(ctx, time.Now().UTC())
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("updates quantity", func(t *testing.T) {
		c2.CurrentQuantity = 3
		require.NoError(t, repo.UpdateQuantity(ctx, c2))

		cells, err := repo.FindByProductAndLocation(ctx, productID, wh.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), inventory.SumQuantity(cells))
	})

	t.Run("update of unknown cell is not found", func(t *testing.T) {
		err := repo.UpdateQuantity(ctx, &inventory.LocationCell{ID: uuid.New(), CurrentQuantity: 1})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("negative quantity violates the check constraint", func(t *testing.T) {
		err := db.Exec("UPDATE location_cells SET current_quantity = -1 WHERE id = ?", c2.ID).Error
		assert.Error(t, err)
	})
}

func TestGormStockMovementRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewGormStockMovementRepository(db)

	wh := createLocation(t, db, "wh", inventory.LocationKindWarehouse, 0, 0)
	productID := uuid.New()
	batchA, batchB := uuid.New(), uuid.New()
	now := time.Now().UTC()

	sale := inventory.NewMovementBuilder(productID, "pos-1", "SALE-1", "", now)
	moves := []inventory.StockMovement{
		sale.Build(inventory.MovementTypeSaleDeduction, batchB, &wh.ID, nil, 4),
		sale.Build(inventory.MovementTypeSaleDeduction, batchA, &wh.ID, nil, 2),
	}
	require.NoError(t, repo.CreateBatch(ctx, moves))

	receipt := inventory.NewMovementBuilder(productID, "clerk", "", "", now.Add(-time.Hour))
	require.NoError(t, repo.CreateBatch(ctx, []inventory.StockMovement{
		receipt.Build(inventory.MovementTypeReceipt, batchA, nil, &wh.ID, 10),
	}))

	t.Run("finds by reference in build order", func(t *testing.T) {
		got, err := repo.FindByReference(ctx, productID, inventory.MovementTypeSaleDeduction, "SALE-1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, batchB, got[0].BatchID)
		assert.Equal(t, batchA, got[1].BatchID)
		assert.Nil(t, got[0].ToLocationID)
		require.NotNil(t, got[0].FromLocationID)
		assert.Equal(t, wh.ID, *got[0].FromLocationID)
	})

	t.Run("finds by operation", func(t *testing.T) {
		got, err := repo.FindByOperation(ctx, sale.OperationID())
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("lists newest first with filters", func(t *testing.T) {
		got, err := repo.Find(ctx, inventory.MovementFilter{ProductID: productID, LocationID: &wh.ID})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, inventory.MovementTypeReceipt, got[2].MovementType)

		receipts, err := repo.Find(ctx, inventory.MovementFilter{ProductID: productID, MovementType: inventory.MovementTypeReceipt, Limit: 1})
		require.NoError(t, err)
		assert.Len(t, receipts, 1)
	})

	t.Run("rejects non-positive quantities", func(t *testing.T) {
		bad := sale.Build(inventory.MovementTypeSaleDeduction, batchA, &wh.ID, nil, 0)
		assert.Error(t, repo.CreateBatch(ctx, []inventory.StockMovement{bad}))
	})
}

func TestGormStockProfileRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewGormStockProfileRepository(db)
	productID := uuid.New()

	_, err := repo.Find(ctx, productID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	profile, err := repo.LockOrCreate(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), profile.PeakQuantity)

	profile.PeakQuantity = 90
	capacity := int64(300)
	profile.ConfiguredCapacity = &capacity
	profile.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.Save(ctx, profile))

	again, err := repo.LockOrCreate(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, int64(90), again.PeakQuantity)
	require.NotNil(t, again.ConfiguredCapacity)
	assert.Equal(t, int64(300), *again.ConfiguredCapacity)
}

func TestGormReorderAlertRepository(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewGormReorderAlertRepository(db)

	productID, locationID := uuid.New(), uuid.New()
	now := time.Now().UTC()

	first := inventory.NewReorderAlert(productID, locationID, 20, decimal.NewFromInt(50), inventory.AlertKindBelowSafetyFloor, now.Add(-2*time.Hour))
	created, err := repo.CreateIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	t.Run("second alert on the same day is ignored", func(t *testing.T) {
		dup := inventory.NewReorderAlert(productID, locationID, 10, decimal.NewFromInt(50), inventory.AlertKindBelowSafetyFloor, now.Add(-2*time.Hour))
		created, err := repo.CreateIfAbsent(ctx, dup)
		require.NoError(t, err)
		assert.False(t, created)

		all, err := repo.FindByProduct(ctx, productID)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, int64(20), all[0].ObservedQuantity)
		assert.True(t, decimal.NewFromInt(50).Equal(all[0].Threshold))
	})

	t.Run("other locations alert independently", func(t *testing.T) {
		other := inventory.NewReorderAlert(productID, uuid.New(), 10, decimal.NewFromInt(50), inventory.AlertKindBelowSafetyFloor, now)
		created, err := repo.CreateIfAbsent(ctx, other)
		require.NoError(t, err)
		assert.True(t, created)
	})

	t.Run("finds alerts older than a cutoff and deletes them", func(t *testing.T) {
		old, err := repo.FindCreatedBefore(ctx, now.Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, old, 1)
		assert.Equal(t, first.ID, old[0].ID)

		n, err := repo.DeleteByIDs(ctx, []uuid.UUID{old[0].ID})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		rest, err := repo.FindAll(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, rest, 1)
	})

	t.Run("deleting nothing is a no-op", func(t *testing.T) {
		n, err := repo.DeleteByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestGormSalesSampleReader(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	movements := NewGormStockMovementRepository(db)
	reader := NewGormSalesSampleReader(db)

	productID := uuid.New()
	shelf, wh := uuid.New(), uuid.New()
	now := time.Now().UTC()

	// One sale drawing two batches counts as one transaction
	s1 := inventory.NewMovementBuilder(productID, "pos", "S1", "", now.Add(-time.Hour))
	s2 := inventory.NewMovementBuilder(productID, "pos", "S2", "", now.Add(-2*time.Hour))
	old := inventory.NewMovementBuilder(productID, "pos", "S0", "", now.Add(-30*24*time.Hour))
	repl := inventory.NewMovementBuilder(productID, "pos", "S1", "", now.Add(-time.Hour))
	require.NoError(t, movements.CreateBatch(ctx, []inventory.StockMovement{
		s1.Build(inventory.MovementTypeSaleDeduction, uuid.New(), &shelf, nil, 3),
		s1.Build(inventory.MovementTypeSaleDeduction, uuid.New(), &wh, nil, 2),
		s2.Build(inventory.MovementTypeSaleDeduction, uuid.New(), &shelf, nil, 4),
		old.Build(inventory.MovementTypeSaleDeduction, uuid.New(), &shelf, nil, 40),
		repl.Build(inventory.MovementTypeWarehouseToDisplay, uuid.New(), &wh, &shelf, 9),
	}))

	sample, err := reader.SampleSales(ctx, productID, now.Add(-7*24*time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sample.TransactionCount)
	assert.Equal(t, int64(9), sample.UnitsSold)

	empty, err := reader.SampleSales(ctx, uuid.New(), now.Add(-time.Hour), now)
	require.NoError(t, err)
	assert.Zero(t, empty.TransactionCount)
	assert.Zero(t, empty.UnitsSold)
}
