package inventory

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/stockledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time {
	return &t
}

func newTestBatch(t *testing.T, productID uuid.UUID, number string, acquired time.Time, expiry *time.Time) *Batch {
	t.Helper()
	b, err := NewBatch(productID, number, expiry, acquired, 100, decimal.NewFromInt(5))
	require.NoError(t, err)
	return b
}

func candidate(b *Batch, kind LocationKind, qty int64) StockCandidate {
	return StockCandidate{
		Cell: LocationCell{
			ID:              uuid.New(),
			BatchID:         b.ID,
			ProductID:       b.ProductID,
			LocationID:      uuid.New(),
			CurrentQuantity: qty,
		},
		Batch: b,
		Kind:  kind,
	}
}

func batchNumbers(cs []StockCandidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Batch.BatchNumber
	}
	return out
}

func TestExpiryFirstStrategy_Order(t *testing.T) {
	productID := uuid.New()
	s := NewExpiryFirstStrategy(30 * 24 * time.Hour)

	t.Run("near expiry first, then by expiry, non-perishable last", func(t *testing.T) {
		far := newTestBatch(t, productID, "FAR", testNow.AddDate(0, -2, 0), timePtr(testNow.AddDate(0, 6, 0)))
		near := newTestBatch(t, productID, "NEAR", testNow.AddDate(0, -1, 0), timePtr(testNow.AddDate(0, 0, 10)))
		none := newTestBatch(t, productID, "NONE", testNow.AddDate(-1, 0, 0), nil)
		mid := newTestBatch(t, productID, "MID", testNow.AddDate(0, 0, -3), timePtr(testNow.AddDate(0, 2, 0)))

		ordered := s.Order([]StockCandidate{
			candidate(none, LocationKindDisplay, 5),
			candidate(far, LocationKindDisplay, 5),
			candidate(mid, LocationKindDisplay, 5),
			candidate(near, LocationKindDisplay, 5),
		}, testNow)

		assert.Equal(t, []string{"NEAR", "MID", "FAR", "NONE"}, batchNumbers(ordered))
	})

	t.Run("equal expiry falls back to acquisition date", func(t *testing.T) {
		exp := timePtr(testNow.AddDate(0, 3, 0))
		older := newTestBatch(t, productID, "OLDER", testNow.AddDate(0, -2, 0), exp)
		newer := newTestBatch(t, productID, "NEWER", testNow.AddDate(0, -1, 0), exp)

		ordered := s.Order([]StockCandidate{
			candidate(newer, LocationKindDisplay, 1),
			candidate(older, LocationKindDisplay, 1),
		}, testNow)

		assert.Equal(t, []string{"OLDER", "NEWER"}, batchNumbers(ordered))
	})

	t.Run("expired and empty cells are excluded", func(t *testing.T) {
		expired := newTestBatch(t, productID, "EXPIRED", testNow.AddDate(0, -3, 0), timePtr(testNow.AddDate(0, -3, 1)))
		empty := newTestBatch(t, productID, "EMPTY", testNow.AddDate(0, -1, 0), nil)
		ok := newTestBatch(t, productID, "OK", testNow.AddDate(0, -1, 0), nil)

		ordered := s.Order([]StockCandidate{
			candidate(expired, LocationKindDisplay, 10),
			candidate(empty, LocationKindDisplay, 0),
			candidate(ok, LocationKindDisplay, 3),
		}, testNow)

		assert.Equal(t, []string{"OK"}, batchNumbers(ordered))
	})

	t.Run("input slice is not reordered", func(t *testing.T) {
		a := newTestBatch(t, productID, "A", testNow.AddDate(0, -1, 0), nil)
		b := newTestBatch(t, productID, "B", testNow.AddDate(0, -2, 0), nil)
		in := []StockCandidate{candidate(a, LocationKindDisplay, 1), candidate(b, LocationKindDisplay, 1)}

		_ = s.Order(in, testNow)

		assert.Equal(t, []string{"A", "B"}, batchNumbers(in))
	})
}

func TestAcquisitionFIFOStrategy_IgnoresExpiryOrdering(t *testing.T) {
	productID := uuid.New()
	old := newTestBatch(t, productID, "OLD", testNow.AddDate(0, -6, 0), timePtr(testNow.AddDate(1, 0, 0)))
	young := newTestBatch(t, productID, "YOUNG", testNow.AddDate(0, 0, -1), timePtr(testNow.AddDate(0, 0, 5)))

	ordered := AcquisitionFIFOStrategy{}.Order([]StockCandidate{
		candidate(young, LocationKindWarehouse, 1),
		candidate(old, LocationKindWarehouse, 1),
	}, testNow)

	assert.Equal(t, []string{"OLD", "YOUNG"}, batchNumbers(ordered))
}

func TestNewAllocationStrategy(t *testing.T) {
	s, err := NewAllocationStrategy("", 0)
	require.NoError(t, err)
	assert.Equal(t, AllocationStrategyExpiryFirst, s.Type())

	s, err = NewAllocationStrategy(AllocationStrategyAcquisitionFIFO, 0)
	require.NoError(t, err)
	assert.Equal(t, AllocationStrategyAcquisitionFIFO, s.Type())

	_, err = NewAllocationStrategy("LIFO", 0)
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestPlanSale(t *testing.T) {
	productID := uuid.New()
	s := NewExpiryFirstStrategy(0)

	display := newTestBatch(t, productID, "D1", testNow.AddDate(0, -1, 0), nil)
	warehouseOld := newTestBatch(t, productID, "W1", testNow.AddDate(0, -3, 0), nil)
	warehouseNew := newTestBatch(t, productID, "W2", testNow.AddDate(0, -2, 0), nil)
	online := newTestBatch(t, productID, "O1", testNow.AddDate(0, -9, 0), nil)

	candidates := []StockCandidate{
		candidate(warehouseNew, LocationKindWarehouse, 10),
		candidate(online, LocationKindOnline, 100),
		candidate(display, LocationKindDisplay, 4),
		candidate(warehouseOld, LocationKindWarehouse, 3),
	}

	t.Run("display drains before warehouse", func(t *testing.T) {
		plan, err := PlanSale(s, productID, candidates, 9, testNow)
		require.NoError(t, err)

		require.Len(t, plan.Draws, 3)
		assert.Equal(t, "D1", plan.Draws[0].Candidate.Batch.BatchNumber)
		assert.Equal(t, int64(4), plan.Draws[0].Quantity)
		assert.Equal(t, "W1", plan.Draws[1].Candidate.Batch.BatchNumber)
		assert.Equal(t, int64(3), plan.Draws[1].Quantity)
		assert.Equal(t, "W2", plan.Draws[2].Candidate.Batch.BatchNumber)
		assert.Equal(t, int64(2), plan.Draws[2].Quantity)
		assert.Equal(t, int64(9), plan.Allocated)
		assert.True(t, plan.Fulfilled())
	})

	t.Run("online stock is never drawn", func(t *testing.T) {
		_, err := PlanSale(s, productID, candidates, 18, testNow)

		var insufficient *InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, int64(17), insufficient.Available)
		assert.Equal(t, int64(18), insufficient.Requested)
		assert.Nil(t, insufficient.LocationID)
	})

	t.Run("zero quantity is a no-op", func(t *testing.T) {
		plan, err := PlanSale(s, productID, candidates, 0, testNow)
		require.NoError(t, err)
		assert.Empty(t, plan.Draws)
	})

	t.Run("negative quantity is rejected", func(t *testing.T) {
		_, err := PlanSale(s, productID, candidates, -1, testNow)
		assert.ErrorIs(t, err, shared.ErrInvalidQuantity)
	})
}

func TestSellableQuantity(t *testing.T) {
	productID := uuid.New()
	fresh := newTestBatch(t, productID, "F", testNow.AddDate(0, -1, 0), nil)
	stale := newTestBatch(t, productID, "S", testNow.AddDate(0, -2, 0), timePtr(testNow.Add(-time.Hour)))

	total := SellableQuantity([]StockCandidate{
		candidate(fresh, LocationKindWarehouse, 7),
		candidate(stale, LocationKindWarehouse, 5),
	}, testNow)

	assert.Equal(t, int64(7), total)
}
