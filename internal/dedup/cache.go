// Package dedup suppresses reprocessing of webhook deliveries retried by the
// messaging provider. Entries accumulate until the next interval clear; there
// is no per-entry expiry.
package dedup

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type Cache struct {
	mu       sync.Mutex
	seen     map[string]struct{}
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// NewCache creates a cache that clears itself every interval once started.
func NewCache(interval time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		seen:     make(map[string]struct{}),
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   logger,
	}
}

// Has reports whether id was recorded since the last clear.
func (c *Cache) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.seen[id]
	return ok
}

// Record adds id to the cache. Recording an already-present id is a no-op.
func (c *Cache) Record(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[id] = struct{}{}
}

// Clear removes all entries unconditionally.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = make(map[string]struct{})
}

// Len returns the number of recorded ids.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// Start launches the interval clear. Call Stop to tear it down.
func (c *Cache) Start() {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n := c.Len()
				c.Clear()
				c.logger.Debug("dedup cache cleared", zap.Int("entries", n))
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop ends the interval clear goroutine. Safe to call more than once.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
}
