package cache

import (
	"fmt"
	"io"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"go.uber.org/zap"
)

// ReorderCache is a ReorderStatusCache that owns resources
type ReorderCache interface {
	appinv.ReorderStatusCache
	io.Closer
}

// FactoryOption configures NewReorderCache
type FactoryOption func(*factory)

type factory struct {
	logger        *zap.Logger
	allowFallback bool
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-memory cache. Default true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *factory) {
		f.allowFallback = allow
	}
}

// NewReorderCache returns a Redis-backed cache when useRedis is set and Redis
// answers, otherwise an in-memory one.
func NewReorderCache(useRedis bool, cfg RedisConfig, ttl time.Duration, opts ...FactoryOption) (ReorderCache, error) {
	f := &factory{logger: zap.NewNop(), allowFallback: true}
	for _, opt := range opts {
		opt(f)
	}

	if !useRedis {
		return NewInMemoryReorderCache(ttl), nil
	}

	c, err := NewRedisReorderCache(cfg, ttl)
	if err == nil {
		f.logger.Info("using Redis reorder cache", zap.String("addr", cfg.Addr))
		return c, nil
	}
	if !f.allowFallback {
		return nil, fmt.Errorf("redis required for reorder cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory reorder cache", zap.Error(err))
	return NewInMemoryReorderCache(ttl), nil
}
