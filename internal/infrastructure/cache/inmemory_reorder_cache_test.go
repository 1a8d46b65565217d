package cache

import (
	"context"
	"testing"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/erp/stockledger/internal/domain/inventory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStatus(productID uuid.UUID) *appinv.ReorderStatus {
	return &appinv.ReorderStatus{
		ProductID:         productID,
		VelocityClass:     inventory.VelocityFast,
		Threshold:         decimal.NewFromInt(60),
		AlertWarranted:    true,
		AlertKind:         inventory.AlertKindFastMoverReorder,
		TotalQuantity:     42,
		EstimatedCapacity: 150,
		EvaluatedAt:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestInMemoryReorderCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	c := NewInMemoryReorderCache(time.Minute)
	defer c.Close()
	c.now = func() time.Time { return now }

	productID := uuid.New()

	t.Run("miss on empty cache", func(t *testing.T) {
		got, ok, err := c.Get(ctx, productID)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("hit returns a copy", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, sampleStatus(productID)))

		got, ok, err := c.Get(ctx, productID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(42), got.TotalQuantity)

		got.TotalQuantity = 0
		again, _, _ := c.Get(ctx, productID)
		assert.Equal(t, int64(42), again.TotalQuantity)
	})

	t.Run("expires after ttl", func(t *testing.T) {
		now = now.Add(time.Minute)
		_, ok, err := c.Get(ctx, productID)
		require.NoError(t, err)
		assert.False(t, ok)

		c.cleanup()
		assert.Zero(t, c.Size())
	})

	t.Run("invalidate drops the entry", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, sampleStatus(productID)))
		require.NoError(t, c.Invalidate(ctx, productID))
		_, ok, _ := c.Get(ctx, productID)
		assert.False(t, ok)
	})
}

func TestInMemoryReorderCache_ZeroTTLDisables(t *testing.T) {
	c := NewInMemoryReorderCache(0)
	defer c.Close()

	productID := uuid.New()
	require.NoError(t, c.Set(context.Background(), sampleStatus(productID)))
	assert.Zero(t, c.Size())
}

func TestInMemoryReorderCache_CloseIsIdempotent(t *testing.T) {
	c := NewInMemoryReorderCache(time.Minute)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestNewReorderCache(t *testing.T) {
	t.Run("in-memory when redis disabled", func(t *testing.T) {
		c, err := NewReorderCache(false, RedisConfig{}, time.Minute)
		require.NoError(t, err)
		defer c.Close()
		assert.IsType(t, &InMemoryReorderCache{}, c)
	})

	t.Run("falls back when redis is unreachable", func(t *testing.T) {
		c, err := NewReorderCache(true, RedisConfig{Addr: "127.0.0.1:1"}, time.Minute)
		require.NoError(t, err)
		defer c.Close()
		assert.IsType(t, &InMemoryReorderCache{}, c)
	})

	t.Run("fails without fallback", func(t *testing.T) {
		c, err := NewReorderCache(true, RedisConfig{Addr: "127.0.0.1:1"}, time.Minute, WithInMemoryFallback(false))
		require.Error(t, err)
		assert.Nil(t, c)
	})
}
