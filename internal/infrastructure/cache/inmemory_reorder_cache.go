// Package cache holds short-lived copies of computed reorder statuses.
package cache

import (
	"context"
	"sync"
	"time"

	appinv "github.com/erp/stockledger/internal/application/inventory"
	"github.com/google/uuid"
)

type statusEntry struct {
	status    appinv.ReorderStatus
	expiresAt time.Time
}

// InMemoryReorderCache implements ReorderStatusCache with a map.
// Suitable for single-instance deployments and tests.
type InMemoryReorderCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]statusEntry
	ttl     time.Duration
	now     func() time.Time

	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryReorderCache creates a cache holding entries for ttl and starts
// a background sweeper for expired entries.
func NewInMemoryReorderCache(ttl time.Duration) *InMemoryReorderCache {
	c := &InMemoryReorderCache{
		entries:  make(map[uuid.UUID]statusEntry),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop()

	return c
}

// Get returns a copy of the cached status for productID
func (c *InMemoryReorderCache) Get(_ context.Context, productID uuid.UUID) (*appinv.ReorderStatus, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[productID]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	status := e.status
	return &status, true, nil
}

// Set stores a copy of status
func (c *InMemoryReorderCache) Set(_ context.Context, status *appinv.ReorderStatus) error {
	if c.ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[status.ProductID] = statusEntry{status: *status, expiresAt: c.now().Add(c.ttl)}
	return nil
}

// Invalidate drops productID
func (c *InMemoryReorderCache) Invalidate(_ context.Context, productID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, productID)
	return nil
}

// Size returns the number of stored entries, expired ones included
func (c *InMemoryReorderCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the sweeper. Safe to call multiple times.
func (c *InMemoryReorderCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

func (c *InMemoryReorderCache) cleanupLoop() {
	defer c.wg.Done()

	interval := c.ttl
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *InMemoryReorderCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for id, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, id)
		}
	}
}

var _ appinv.ReorderStatusCache = (*InMemoryReorderCache)(nil)
