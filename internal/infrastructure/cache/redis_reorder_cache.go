package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "stock:reorder:"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisReorderCache implements ReorderStatusCache on Redis so that every
// instance serving reads shares one view of recently computed statuses.
type RedisReorderCache struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisReorderCache connects to Redis and verifies the connection
func NewRedisReorderCache(cfg RedisConfig, ttl time.Duration) (*RedisReorderCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisReorderCacheWithClient(client, "", ttl), nil
}

// NewRedisReorderCacheWithClient wraps an existing client
func NewRedisReorderCacheWithClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisReorderCache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisReorderCache{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (c *RedisReorderCache) key(productID uuid.UUID) string {
	return c.keyPrefix + productID.String()
}

// Get loads and decodes the status for productID
func (c *RedisReorderCache) Get(ctx context.Context, productID uuid.UUID) (*appinv.ReorderStatus, bool, error) {
	raw, err := c.client.Get(ctx, c.key(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read reorder status: %w", err)
	}

	var status appinv.ReorderStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, false, fmt.Errorf("failed to decode reorder status: %w", err)
	}
	return &status, true, nil
}

// Set encodes status and stores it with the cache TTL
func (c *RedisReorderCache) Set(ctx context.Context, status *appinv.ReorderStatus) error {
	if c.ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode reorder status: %w", err)
	}
	if err := c.client.Set(ctx, c.key(status.ProductID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write reorder status: %w", err)
	}
	return nil
}

// Invalidate deletes the status for productID
func (c *RedisReorderCache) Invalidate(ctx context.Context, productID uuid.UUID) error {
	if err := c.client.Del(ctx, c.key(productID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate reorder status: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (c *RedisReorderCache) Close() error {
	return c.client.Close()
}

var _ appinv.ReorderStatusCache = (*RedisReorderCache)(nil)
