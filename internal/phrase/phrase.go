// Package phrase provides the normalized phrase cache backing the emergency
// fast path. Two tables share one lookup surface: a static emergency table
// loaded at construction and a medical table that grows at runtime.
package phrase

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Entry maps a normalized phrase to its pre-mediated output text.
type Entry struct {
	Phrase       string `json:"phrase"`
	MediatedText string `json:"mediatedText"`
}

// LookupResult reports the outcome of a single lookup along with the time it
// took, for latency auditing against the emergency budget.
type LookupResult struct {
	Hit        bool
	Entry      *Entry
	LookupTime time.Duration
}

// LookupMicros returns the lookup time in microseconds.
func (r LookupResult) LookupMicros() float64 {
	return float64(r.LookupTime.Nanoseconds()) / 1e3
}

// Metrics summarizes lookup traffic.
type Metrics struct {
	Lookups        int64   `json:"lookups"`
	Hits           int64   `json:"hits"`
	HitRate        float64 `json:"hitRate"`
	EmergencyTerms int     `json:"emergencyTerms"`
	MedicalTerms   int     `json:"medicalTerms"`
}

// Cache is the normalized phrase cache. Lookups are hash-keyed and complete
// in constant time relative to table size. Concurrent reads are safe; AddTerm
// assumes a single writer.
type Cache struct {
	mu        sync.RWMutex
	emergency map[string]*Entry
	medical   map[string]*Entry
	lookups   atomic.Int64
	hits      atomic.Int64
	logger    zerolog.Logger
}

// NewCache creates a phrase cache seeded with the built-in emergency table.
func NewCache(logger zerolog.Logger) *Cache {
	c := &Cache{
		emergency: make(map[string]*Entry),
		medical:   make(map[string]*Entry),
		logger:    logger.With().Str("component", "phrase-cache").Logger(),
	}

	for raw, mediated := range defaultEmergencyTable {
		key := Normalize(raw)
		c.emergency[key] = &Entry{Phrase: key, MediatedText: mediated}
	}

	c.logger.Info().
		Int("emergencyTerms", len(c.emergency)).
		Msg("Phrase cache initialized")

	return c
}

// Normalize canonicalizes a phrase: trim, lowercase, collapse internal
// whitespace to single spaces. Two inputs differing only in case or spacing
// share one key.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// Lookup normalizes raw and checks the emergency table first, then the
// medical table.
func (c *Cache) Lookup(raw string) LookupResult {
	start := time.Now()
	key := Normalize(raw)

	c.mu.RLock()
	entry, ok := c.emergency[key]
	if !ok {
		entry, ok = c.medical[key]
	}
	c.mu.RUnlock()

	elapsed := time.Since(start)

	c.lookups.Add(1)
	if ok {
		c.hits.Add(1)
	}

	if !ok {
		return LookupResult{LookupTime: elapsed}
	}

	c.logger.Debug().
		Str("phrase", key).
		Float64("lookupMicros", float64(elapsed.Nanoseconds())/1e3).
		Msg("Phrase cache hit")

	return LookupResult{Hit: true, Entry: entry, LookupTime: elapsed}
}

// AddTerm inserts or overwrites a medical-table entry under the normalized
// key. The entry is visible to lookups immediately and never expires.
func (c *Cache) AddTerm(raw, mediatedText string) {
	key := Normalize(raw)
	if key == "" {
		return
	}

	c.mu.Lock()
	c.medical[key] = &Entry{Phrase: key, MediatedText: mediatedText}
	c.mu.Unlock()

	c.logger.Debug().Str("phrase", key).Msg("Medical term added")
}

// Metrics returns lookup traffic counters.
func (c *Cache) Metrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m := Metrics{
		Lookups:        c.lookups.Load(),
		Hits:           c.hits.Load(),
		EmergencyTerms: len(c.emergency),
		MedicalTerms:   len(c.medical),
	}
	if m.Lookups > 0 {
		m.HitRate = float64(m.Hits) / float64(m.Lookups)
	}
	return m
}
