package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/erp/stockledger/internal/infrastructure/cache"
	"github.com/erp/stockledger/internal/infrastructure/config"
	"github.com/erp/stockledger/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fixedClock is a settable clock shared by every service of a fixture
type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubSales returns a fixed sales sample for every product
type stubSales struct {
	mu     sync.Mutex
	sample inventory.SalesSample
}

func (s *stubSales) SampleSales(_ context.Context, productID uuid.UUID, since, until time.Time) (inventory.SalesSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sample
	out.ProductID, out.WindowStart, out.WindowEnd = productID, since, until
	return out, nil
}

func (s *stubSales) set(transactions, units int64) {
	s.mu.Lock()
	s.sample = inventory.SalesSample{TransactionCount: transactions, UnitsSold: units}
	s.mu.Unlock()
}

type ledgerFixture struct {
	ctx       context.Context
	clock     *fixedClock
	sales     *stubSales
	stock     *appinv.StockService
	reorder   *appinv.ReorderService
	alerts    *appinv.AlertLedger
	locations *appinv.LocationService

	warehouse *inventory.Location
	display   *inventory.Location
	productID uuid.UUID
}

// newLedgerFixture wires the services over an in-memory sqlite ledger with
// one warehouse and one display (capacity 20, trigger 10).
func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	db, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, persistence.AutoMigrate(db.DB))

	f := &ledgerFixture{
		ctx:       context.Background(),
		clock:     &fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		sales:     &stubSales{},
		productID: uuid.New(),
	}

	repos := persistence.NewGormRepositories(db.DB)
	scope := persistence.NewGormTransactionScope(db.DB)

	f.alerts = appinv.NewAlertLedger(repos, inventory.DefaultReorderPolicy().SafetyFloor, time.Hour, nil)
	f.alerts.SetClock(f.clock.Now)

	f.reorder = appinv.NewReorderService(scope, repos, f.sales,
		inventory.NewReorderCalculator(inventory.DefaultReorderPolicy()), inventory.DefaultSalesWindow, nil)
	f.reorder.SetClock(f.clock.Now)
	f.reorder.SetAlertLedger(f.alerts)
	statusCache := cache.NewInMemoryReorderCache(time.Minute)
	t.Cleanup(func() { _ = statusCache.Close() })
	f.reorder.SetCache(statusCache)

	f.stock = appinv.NewStockService(scope, repos, inventory.NewExpiryFirstStrategy(inventory.DefaultNearExpiryHorizon), nil)
	f.stock.SetClock(f.clock.Now)
	f.stock.SetReorderService(f.reorder)

	f.locations = appinv.NewLocationService(repos, nil)

	f.warehouse, err = f.locations.CreateLocation(f.ctx, appinv.CreateLocationRequest{
		Code: "WH-1", Kind: inventory.LocationKindWarehouse,
	})
	require.NoError(t, err)
	f.display, err = f.locations.CreateLocation(f.ctx, appinv.CreateLocationRequest{
		Code: "SHELF-1", Kind: inventory.LocationKindDisplay, DefaultCapacity: 20, DefaultMinThreshold: 10,
	})
	require.NoError(t, err)
	return f
}

// receive stocks qty units of a new batch at loc
func (f *ledgerFixture) receive(t *testing.T, loc *inventory.Location, number string, qty int64, expiry *time.Time) *inventory.Batch {
	t.Helper()
	b, err := f.stock.ReceiveBatch(f.ctx, appinv.ReceiveBatchRequest{
		ProductID:       f.productID,
		BatchNumber:     number,
		ExpiryDate:      expiry,
		AcquisitionDate: f.clock.Now().AddDate(0, 0, -7),
		UnitSellPrice:   decimal.RequireFromString("3.20"),
		LocationID:      loc.ID,
		Quantity:        qty,
		Actor:           "receiver",
	})
	require.NoError(t, err)
	return b
}

// place puts the product on the display with the location defaults
func (f *ledgerFixture) place(t *testing.T) {
	t.Helper()
	_, err := f.locations.SetPlacement(f.ctx, f.productID, f.display.ID, 20, 10)
	require.NoError(t, err)
}

func (f *ledgerFixture) quantity(t *testing.T, loc *inventory.Location) int64 {
	t.Helper()
	q, err := f.stock.GetQuantity(f.ctx, f.productID, loc.ID)
	require.NoError(t, err)
	return q
}

func (f *ledgerFixture) summary(t *testing.T) *appinv.StockSummary {
	t.Helper()
	s, err := f.stock.GetStockSummary(f.ctx, f.productID)
	require.NoError(t, err)
	return s
}
