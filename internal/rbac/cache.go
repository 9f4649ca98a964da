package rbac

import (
	"context"
	"sync"
	"time"
)

// Lookup is the result of a cache read. Generation must be passed back to
// Set so a decision computed before an invalidation is never stored after it.
type Lookup struct {
	Allowed    bool
	Found      bool
	Generation uint64
}

// DecisionCache stores decisions keyed by Key.
type DecisionCache interface {
	Get(ctx context.Context, key string) (Lookup, error)
	Set(ctx context.Context, key string, generation uint64, allowed bool) error
	Invalidate(ctx context.Context) error
}

// MemoryCache is a process local DecisionCache with TTL expiry.
type MemoryCache struct {
	ttl        time.Duration
	mu         sync.RWMutex
	generation uint64
	items      map[string]cacheItem
	stopChan   chan struct{}
	stopOnce   sync.Once
}

type cacheItem struct {
	allowed   bool
	expiresAt time.Time
}

// NewMemoryCache starts a cache whose entries live for ttl (5m when ttl <= 0).
// Call Stop to end the cleanup goroutine.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &MemoryCache{
		ttl:      ttl,
		items:    make(map[string]cacheItem),
		stopChan: make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) (Lookup, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok || time.Now().After(item.expiresAt) {
		return Lookup{Generation: c.generation}, nil
	}
	return Lookup{Allowed: item.allowed, Found: true, Generation: c.generation}, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, generation uint64, allowed bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return nil
	}
	c.items[key] = cacheItem{allowed: allowed, expiresAt: time.Now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.items = make(map[string]cacheItem)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}
