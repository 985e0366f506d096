package contentcache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/signbridge/internal/store"
)

// DefaultTTL is how long an entry stays valid regardless of usage.
const DefaultTTL = 24 * time.Hour

// Config parametrizes one cache instance.
type Config struct {
	// Namespace is the key under which this instance persists its state.
	Namespace string
	// Capacity bounds the number of live entries (default: 100).
	Capacity int
	// TTL is the fixed entry lifetime (default: 24h).
	TTL time.Duration
}

// Metrics summarizes one instance's traffic and footprint.
type Metrics struct {
	HitRate              float64 `json:"hitRate"`
	TotalRequests        int64   `json:"totalRequests"`
	TotalHits            int64   `json:"totalHits"`
	CacheSize            int     `json:"cacheSize"`
	EstimatedMemoryBytes int     `json:"estimatedMemoryBytes"`
}

// Cache is a capacity-bounded, TTL-expiring, strict-LRU cache. Eviction picks
// exactly one victim per overflow: the entry with the oldest LastAccessedAt,
// ties broken by earliest CreatedAt. Every successful Set persists the whole
// namespace through the injected store; persistence failures degrade the cache
// to in-memory-only behavior and are never fatal.
type Cache[T any] struct {
	mu       sync.Mutex
	cfg      Config
	entries  map[string]*Entry[T]
	kv       store.KVStore
	logger   zerolog.Logger
	now      func() time.Time
	requests int64
	hits     int64
}

// New constructs a cache and loads any previously persisted state. A missing
// or corrupt blob silently starts the cache empty.
func New[T any](cfg Config, kv store.KVStore, logger zerolog.Logger) *Cache[T] {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 100
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	c := &Cache[T]{
		cfg:     cfg,
		entries: make(map[string]*Entry[T]),
		kv:      kv,
		logger:  logger.With().Str("component", "content-cache").Str("namespace", cfg.Namespace).Logger(),
		now:     time.Now,
	}

	c.load()
	return c
}

// SetClock overrides the cache's time source. Test hook.
func (c *Cache[T]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the entry for key if present and not expired. A hit increments
// UsageCount and refreshes LastAccessedAt. An expired entry counts as a miss
// and is removed.
func (c *Cache[T]) Get(key string) (*Entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests++

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.expiredLocked(entry) {
		delete(c.entries, key)
		return nil, false
	}

	entry.UsageCount++
	entry.LastAccessedAt = c.now()
	c.hits++

	out := *entry
	return &out, true
}

// Set inserts a fresh entry with UsageCount 1, evicting the LRU entry first
// if the cache would exceed capacity, then persists the namespace.
func (c *Cache[T]) Set(key string, payload T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepExpiredLocked()

	_, replacing := c.entries[key]
	if !replacing && len(c.entries) >= c.cfg.Capacity {
		c.evictOneLocked()
	}

	c.entries[key] = &Entry[T]{
		Key:            key,
		Payload:        payload,
		CreatedAt:      now,
		LastAccessedAt: now,
		UsageCount:     1,
	}

	c.persistLocked()
}

// Len returns the number of live (possibly expired but unswept) entries.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Metrics returns traffic counters and an estimated memory footprint.
func (c *Cache[T]) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := Metrics{
		TotalRequests: c.requests,
		TotalHits:     c.hits,
		CacheSize:     len(c.entries),
	}
	if m.TotalRequests > 0 {
		m.HitRate = float64(m.TotalHits) / float64(m.TotalRequests)
	}
	if blob, err := json.Marshal(c.entries); err == nil {
		m.EstimatedMemoryBytes = len(blob)
	}
	return m
}

// Clear empties the cache and its persisted namespace.
func (c *Cache[T]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry[T])
	if err := c.kv.Remove(c.cfg.Namespace); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to clear persisted cache state")
		return err
	}
	return nil
}

// AggregateMetrics combines per-instance metrics into one view.
func AggregateMetrics(ms ...Metrics) Metrics {
	var total Metrics
	for _, m := range ms {
		total.TotalRequests += m.TotalRequests
		total.TotalHits += m.TotalHits
		total.CacheSize += m.CacheSize
		total.EstimatedMemoryBytes += m.EstimatedMemoryBytes
	}
	if total.TotalRequests > 0 {
		total.HitRate = float64(total.TotalHits) / float64(total.TotalRequests)
	}
	return total
}

func (c *Cache[T]) expiredLocked(entry *Entry[T]) bool {
	return c.now().Sub(entry.CreatedAt) >= c.cfg.TTL
}

func (c *Cache[T]) sweepExpiredLocked() {
	for key, entry := range c.entries {
		if c.expiredLocked(entry) {
			delete(c.entries, key)
		}
	}
}

// evictOneLocked removes exactly one entry: oldest LastAccessedAt, ties
// broken by earliest CreatedAt.
func (c *Cache[T]) evictOneLocked() {
	var victim *Entry[T]
	for _, entry := range c.entries {
		if victim == nil {
			victim = entry
			continue
		}
		if entry.LastAccessedAt.Before(victim.LastAccessedAt) {
			victim = entry
			continue
		}
		if entry.LastAccessedAt.Equal(victim.LastAccessedAt) && entry.CreatedAt.Before(victim.CreatedAt) {
			victim = entry
		}
	}
	if victim != nil {
		delete(c.entries, victim.Key)
		c.logger.Debug().
			Str("key", victim.Key).
			Time("lastAccessedAt", victim.LastAccessedAt).
			Msg("Evicted LRU entry")
	}
}

func (c *Cache[T]) persistLocked() {
	blob, err := json.Marshal(c.entries)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to serialize cache state")
		return
	}
	if err := c.kv.Set(c.cfg.Namespace, blob); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to persist cache state, continuing in-memory")
	}
}

func (c *Cache[T]) load() {
	blob, err := c.kv.Get(c.cfg.Namespace)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to load persisted cache state, starting empty")
		return
	}
	if blob == nil {
		return
	}

	entries := make(map[string]*Entry[T])
	if err := json.Unmarshal(blob, &entries); err != nil {
		c.logger.Warn().Err(err).Msg("Corrupt persisted cache state, starting empty")
		return
	}

	c.entries = entries
	c.logger.Info().Int("entries", len(entries)).Msg("Cache state restored")
}
