//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

func TestRedisReorderCache_Integration(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	c, err := NewRedisReorderCache(RedisConfig{Addr: addr}, time.Minute)
	require.NoError(t, err)
	defer c.Close()

	productID := uuid.New()
	_, ok, err := c.Get(ctx, productID)
	require.NoError(t, err)
	assert.False(t, ok)

	want := sampleStatus(productID)
	require.NoError(t, c.Set(ctx, want))

	got, ok, err := c.Get(ctx, productID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.ProductID, got.ProductID)
	assert.True(t, want.Threshold.Equal(got.Threshold))
	assert.Equal(t, want.VelocityClass, got.VelocityClass)
	assert.Equal(t, want.AlertKind, got.AlertKind)
	assert.True(t, want.EvaluatedAt.Equal(got.EvaluatedAt))

	ttl, err := c.client.TTL(ctx, c.key(productID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.Invalidate(ctx, productID))
	_, ok, err = c.Get(ctx, productID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisReorderCache_CorruptEntry(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{Addr: addr})
	c := NewRedisReorderCacheWithClient(client, "test:", time.Minute)
	defer c.Close()

	productID := uuid.New()
	require.NoError(t, client.Set(ctx, "test:"+productID.String(), "not json", time.Minute).Err())

	_, ok, err := c.Get(ctx, productID)
	require.Error(t, err)
	assert.False(t, ok)
}
