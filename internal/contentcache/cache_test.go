package contentcache

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/signbridge/internal/store"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCache(t *testing.T, capacity int, kv store.KVStore) (*Cache[SignRecognition], *fakeClock) {
	t.Helper()
	if kv == nil {
		kv = store.NewMemoryStore()
	}
	c := New[SignRecognition](Config{
		Namespace: "test.recognition",
		Capacity:  capacity,
	}, kv, zerolog.Nop())
	clock := newFakeClock()
	c.SetClock(clock.Now)
	return c, clock
}

func TestCache_GetUpdatesUsage(t *testing.T) {
	c, clock := newTestCache(t, 10, nil)

	c.Set("k1", SignRecognition{RecognizedSigns: []string{"HELLO"}, Confidence: 0.9})

	entry, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, 2, entry.UsageCount, "set starts at 1, first read increments")
	assert.Equal(t, []string{"HELLO"}, entry.Payload.RecognizedSigns)

	clock.Advance(time.Minute)
	entry, ok = c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, 3, entry.UsageCount)
	assert.Equal(t, clock.Now(), entry.LastAccessedAt, "read refreshes last access")
}

func TestCache_MissDoesNotMutate(t *testing.T) {
	c, _ := newTestCache(t, 10, nil)

	_, ok := c.Get("absent")
	assert.False(t, ok)

	m := c.Metrics()
	assert.Equal(t, int64(1), m.TotalRequests)
	assert.Equal(t, int64(0), m.TotalHits)
	assert.Equal(t, 0, m.CacheSize)
}

func TestCache_EvictsStrictLRU(t *testing.T) {
	c, clock := newTestCache(t, 3, nil)

	c.Set("a", SignRecognition{})
	clock.Advance(time.Second)
	c.Set("b", SignRecognition{})
	clock.Advance(time.Second)
	c.Set("c", SignRecognition{})
	clock.Advance(time.Second)

	// Touch "a" so "b" now holds the oldest last access, even though "a"
	// is the oldest by insertion.
	_, ok := c.Get("a")
	require.True(t, ok)
	clock.Advance(time.Second)

	c.Set("d", SignRecognition{})

	assert.Equal(t, 3, c.Len(), "size never exceeds capacity")
	_, ok = c.Get("b")
	assert.False(t, ok, "victim must be the oldest by last access")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "key %s should survive", key)
	}
}

func TestCache_EvictionTieBreaksByCreatedAt(t *testing.T) {
	c, clock := newTestCache(t, 2, nil)

	// Same LastAccessedAt for both, distinct CreatedAt.
	c.Set("older", SignRecognition{})
	clock.Advance(time.Second)
	c.Set("newer", SignRecognition{})

	accessTime := clock.Now().Add(time.Second)
	clock.Advance(time.Second)
	_, _ = c.Get("older")
	_, _ = c.Get("newer")
	require.Equal(t, accessTime, clock.Now())

	clock.Advance(time.Second)
	c.Set("third", SignRecognition{})

	_, ok := c.Get("older")
	assert.False(t, ok, "tie should evict the earliest created entry")
	_, ok = c.Get("newer")
	assert.True(t, ok)
}

func TestCache_ExpiredEntryIsMiss(t *testing.T) {
	c, clock := newTestCache(t, 10, nil)

	c.Set("stale", SignRecognition{Confidence: 0.5})

	clock.Advance(DefaultTTL + time.Minute)

	_, ok := c.Get("stale")
	assert.False(t, ok, "expired entry must behave as absent")
	assert.Equal(t, 0, c.Len(), "expired entry is lazily removed on miss-check")
}

func TestCache_PersistRoundTrip(t *testing.T) {
	kv := store.NewMemoryStore()
	c1, _ := newTestCache(t, 10, kv)

	c1.Set("k1", SignRecognition{RecognizedSigns: []string{"THANK", "YOU"}, Confidence: 0.87})
	c1.Set("k2", SignRecognition{RecognizedSigns: []string{"HELP"}, Confidence: 0.93})

	// Fresh instance over the same store sees identical payloads.
	c2, _ := newTestCache(t, 10, kv)
	entry, ok := c2.Get("k1")
	require.True(t, ok)
	assert.Equal(t, []string{"THANK", "YOU"}, entry.Payload.RecognizedSigns)
	assert.Equal(t, 0.87, entry.Payload.Confidence)
	assert.Equal(t, 2, c2.Len())
}

func TestCache_CorruptBlobStartsEmpty(t *testing.T) {
	kv := store.NewMemoryStore()
	require.NoError(t, kv.Set("test.recognition", []byte("{not json")))

	c, _ := newTestCache(t, 10, kv)
	assert.Equal(t, 0, c.Len())

	// The cache must stay usable after a corrupt load.
	c.Set("k", SignRecognition{})
	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestCache_Clear(t *testing.T) {
	kv := store.NewMemoryStore()
	c, _ := newTestCache(t, 10, kv)

	c.Set("k", SignRecognition{})
	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Len())

	blob, err := kv.Get("test.recognition")
	require.NoError(t, err)
	assert.Nil(t, blob, "persisted namespace must be removed")
}

func TestGenerateKey_Deterministic(t *testing.T) {
	pose := []float64{0.1, 0.22, 0.333}
	assert.Equal(t, KeyForPose(pose), KeyForPose([]float64{0.1, 0.22, 0.333}))
	assert.NotEqual(t, KeyForPose(pose), KeyForPose([]float64{0.1, 0.22, 0.334}))

	assert.Equal(t, KeyForText("Chest  Pain", "hospital"), KeyForText("chest pain", "hospital"))
	assert.NotEqual(t, KeyForText("chest pain", "hospital"), KeyForText("chest pain", "emergency"))
	assert.Len(t, KeyForText("chest pain", "hospital"), 16)
}

func TestAggregateMetrics(t *testing.T) {
	combined := AggregateMetrics(
		Metrics{TotalRequests: 10, TotalHits: 5, CacheSize: 3, EstimatedMemoryBytes: 100},
		Metrics{TotalRequests: 10, TotalHits: 10, CacheSize: 2, EstimatedMemoryBytes: 50},
	)

	assert.Equal(t, int64(20), combined.TotalRequests)
	assert.Equal(t, int64(15), combined.TotalHits)
	assert.Equal(t, 0.75, combined.HitRate)
	assert.Equal(t, 5, combined.CacheSize)
	assert.Equal(t, 150, combined.EstimatedMemoryBytes)
}
