package inventory_test

import (
	"testing"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReorderService_GetReorderStatus(t *testing.T) {
	capacity := int64(200)

	tests := []struct {
		name         string
		transactions int64
		units        int64
		stock        int64
		wantClass    inventory.VelocityClass
		wantAlert    bool
		wantKind     inventory.AlertKind
		wantThresh   int64
	}{
		{"below floor alerts for a slow mover", 1, 2, 40, inventory.VelocitySlow, true, inventory.AlertKindBelowSafetyFloor, 50},
		{"below floor alerts for a fast mover", 12, 80, 40, inventory.VelocityFast, true, inventory.AlertKindBelowSafetyFloor, 50},
		{"fast mover under dynamic threshold", 12, 80, 70, inventory.VelocityFast, true, inventory.AlertKindFastMoverReorder, 80},
		{"slow mover above floor", 1, 2, 70, inventory.VelocitySlow, false, "", 50},
		{"fast mover above dynamic threshold", 12, 80, 90, inventory.VelocityFast, false, "", 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLedgerFixture(t)
			f.sales.set(tt.transactions, tt.units)
			f.receive(t, f.warehouse, "B-1", tt.stock, nil)
			_, err := f.reorder.SetConfiguredCapacity(f.ctx, f.productID, &capacity)
			require.NoError(t, err)

			status, err := f.reorder.GetReorderStatus(f.ctx, f.productID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantClass, status.VelocityClass)
			assert.Equal(t, tt.wantAlert, status.AlertWarranted)
			assert.Equal(t, tt.wantKind, status.AlertKind)
			assert.True(t, status.Threshold.Equal(decimal.NewFromInt(tt.wantThresh)), "threshold %s", status.Threshold)
			assert.Equal(t, tt.stock, status.TotalQuantity)
			assert.Equal(t, capacity, status.EstimatedCapacity)
		})
	}
}

func TestReorderService_EstimatesCapacityWithoutConfiguration(t *testing.T) {
	f := newLedgerFixture(t)
	f.place(t)
	f.receive(t, f.warehouse, "B-1", 60, nil)

	status, err := f.reorder.GetReorderStatus(f.ctx, f.productID)
	require.NoError(t, err)
	// peak 60 * 1.2 = 72 and display 20 * 2 = 40 both sit under the floor of 100
	assert.Equal(t, int64(100), status.EstimatedCapacity)

	profile, err := f.reorder.SetConfiguredCapacity(f.ctx, f.productID, nil)
	require.NoError(t, err)
	assert.Nil(t, profile.ConfiguredCapacity)
	assert.Equal(t, int64(60), profile.PeakQuantity)
}

func TestReorderService_CacheIsInvalidatedByStockChanges(t *testing.T) {
	f := newLedgerFixture(t)
	f.receive(t, f.warehouse, "B-1", 70, nil)

	first, err := f.reorder.GetReorderStatus(f.ctx, f.productID)
	require.NoError(t, err)
	require.False(t, first.AlertWarranted)

	_, err = f.stock.Deduct(f.ctx, appinv.DeductRequest{ProductID: f.productID, Quantity: 30, Actor: "till"})
	require.NoError(t, err)

	second, err := f.reorder.GetReorderStatus(f.ctx, f.productID)
	require.NoError(t, err)
	assert.Equal(t, int64(40), second.TotalQuantity)
	assert.True(t, second.AlertWarranted)
}
