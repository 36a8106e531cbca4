package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/mommyshops/backend/internal/domain"
	"github.com/mommyshops/backend/internal/pkg/logger"
)

const defaultCleanupInterval = 10 * time.Minute

// entry is a single cached value with its expiry
type entry struct {
	value     interface{}
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// Stats reports cache usage counters
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// MemoryCache is a thread-safe in-process TTL cache
type MemoryCache struct {
	mu     sync.RWMutex
	data   map[string]entry
	logger *zap.Logger

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryCache creates an in-memory cache and starts its janitor.
// Call Close to stop the janitor.
func NewMemoryCache(cleanupInterval time.Duration, log *zap.Logger) *MemoryCache {
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	}

	c := &MemoryCache{
		data:   make(map[string]entry),
		logger: logger.OrNop(log),
		stop:   make(chan struct{}),
	}
	go c.janitor(cleanupInterval)

	return c
}

// Get returns the value stored under key, or domain.ErrCacheMiss
func (c *MemoryCache) Get(ctx context.Context, key string) (interface{}, error) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()

	if !ok || e.expired(time.Now()) {
		c.misses.Add(1)
		return nil, domain.ErrCacheMiss
	}

	c.hits.Add(1)
	return e.value, nil
}

// Set stores value under key for ttl. Values go through a JSON round trip so
// readers get the same shapes the Redis cache returns.
func (c *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}

	var stored interface{}
	if err := json.Unmarshal(encoded, &stored); err != nil {
		return err
	}

	c.mu.Lock()
	c.data[key] = entry{value: stored, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()

	return nil
}

// Delete removes key
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

// Exists reports whether key holds an unexpired value
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()

	return ok && !e.expired(time.Now()), nil
}

// Stats returns usage counters
func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	entries := len(c.data)
	c.mu.RUnlock()

	return Stats{
		Entries:   entries,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

// Close stops the janitor goroutine
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

// janitor evicts expired entries until Close is called
func (c *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.evictExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache) evictExpired() {
	now := time.Now()
	evicted := 0

	c.mu.Lock()
	for key, e := range c.data {
		if e.expired(now) {
			delete(c.data, key)
			evicted++
		}
	}
	c.mu.Unlock()

	if evicted > 0 {
		c.evictions.Add(int64(evicted))
		c.logger.Debug("Evicted expired cache entries", zap.Int("count", evicted))
	}
}
