package simcache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/themescan/pkg/config"
)

func newTestCache(t *testing.T, capacity int, threshold float64) *Cache {
	t.Helper()
	c, err := New(config.CacheConfig{
		Dir:               "", // in-memory badger
		SemanticThreshold: threshold,
		SemanticCapacity:  capacity,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestExactTierRoundTrip(t *testing.T) {
	cache := newTestCache(t, 100, 0.87)
	vec := []float32{0.1, 0.2, 0.3}

	_, ok := cache.Lookup("my app keeps crashing", nil)
	require.False(t, ok)

	cache.Register("my app keeps crashing", vec)

	for i := 0; i < 3; i++ {
		res, ok := cache.Lookup("my app keeps crashing", nil)
		require.True(t, ok)
		assert.Equal(t, TierExact, res.Tier)
		assert.Equal(t, vec, res.Vector)
	}
}

func TestNormalizedTierHitAndBackfill(t *testing.T) {
	cache := newTestCache(t, 100, 0.87)
	vec := []float32{1, 2, 3}
	cache.Register("I can't log in", vec)

	// Different raw text, same canonical form.
	res, ok := cache.Lookup("i  CANNOT log in", nil)
	require.True(t, ok)
	assert.Equal(t, TierNormalized, res.Tier)
	assert.Equal(t, vec, res.Vector)

	// Back-fill makes the second identical query an exact hit.
	res, ok = cache.Lookup("i  CANNOT log in", nil)
	require.True(t, ok)
	assert.Equal(t, TierExact, res.Tier)
}

func TestSemanticTierThreshold(t *testing.T) {
	cache := newTestCache(t, 100, 0.87)
	stored := []float32{1, 0, 0, 0}
	cache.Register("the battery drains way too fast", stored)

	t.Run("similar probe hits", func(t *testing.T) {
		probe := []float32{0.99, 0.1, 0, 0} // cosine ~0.995
		res, ok := cache.Lookup("battery life is terrible lately", probe)
		require.True(t, ok)
		assert.Equal(t, TierSemantic, res.Tier)
	})

	t.Run("dissimilar probe misses", func(t *testing.T) {
		probe := []float32{0, 0, 1, 0}
		_, ok := cache.Lookup("shipping took three weeks", probe)
		assert.False(t, ok)
	})

	t.Run("no probe means no semantic tier", func(t *testing.T) {
		_, ok := cache.Lookup("battery drains too fast on standby", nil)
		assert.False(t, ok)
	})
}

func TestSemanticHitBackfillsHashTiers(t *testing.T) {
	cache := newTestCache(t, 100, 0.87)
	stored := []float32{0, 3, 0} // deliberately not unit-length
	cache.Register("checkout page times out", stored)

	probe := []float32{0, 5, 0} // cosine 1 after normalization
	res, ok := cache.Lookup("the checkout keeps timing out", probe)
	require.True(t, ok)
	require.Equal(t, TierSemantic, res.Tier)
	// The hit returns the vector exactly as registered, not the normalized
	// scan copy.
	assert.Equal(t, stored, res.Vector)

	// Same text again, no probe: the back-filled exact tier serves it,
	// carrying the same original vector.
	res, ok = cache.Lookup("the checkout keeps timing out", nil)
	require.True(t, ok)
	assert.Equal(t, TierExact, res.Tier)
	assert.Equal(t, stored, res.Vector)
}

func TestEvictionBound(t *testing.T) {
	const capacity = 10
	cache := newTestCache(t, capacity, 0.87)

	for i := 0; i < 55; i++ {
		vec := make([]float32, 4)
		vec[i%4] = float32(i + 1)
		cache.Register(fmt.Sprintf("document number %d", i), vec)
	}

	stats := cache.Stats()
	assert.LessOrEqual(t, stats.SemanticSize, capacity)
	assert.Equal(t, int64(55), stats.Registered)
	assert.Greater(t, stats.Evictions, int64(0))
}

func TestEvictionDropsOldestFirst(t *testing.T) {
	cache := newTestCache(t, 10, 0.99)

	for i := 0; i < 10; i++ {
		vec := make([]float32, 12)
		vec[i] = 1
		cache.Register(fmt.Sprintf("text %d", i), vec)
	}
	// Force one eviction batch (cap/10 = 1): entry 0 goes.
	vec := make([]float32, 12)
	vec[11] = 1
	cache.Register("text overflow", vec)

	probe := make([]float32, 12)
	probe[0] = 1
	_, ok := cache.Lookup("completely unrelated query", probe)
	assert.False(t, ok, "evicted entry must not be served")

	probe = make([]float32, 12)
	probe[5] = 1
	res, ok := cache.Lookup("another unrelated query", probe)
	require.True(t, ok)
	assert.Equal(t, TierSemantic, res.Tier)
}

func TestZeroVectorNotRegistered(t *testing.T) {
	cache := newTestCache(t, 10, 0.87)
	cache.Register("empty signal", []float32{0, 0, 0})
	cache.Register("no signal", nil)

	_, ok := cache.Lookup("empty signal", nil)
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Stats().SemanticSize)
}

func TestStatsCounters(t *testing.T) {
	cache := newTestCache(t, 10, 0.87)
	cache.Register("alpha", []float32{1, 0})

	_, _ = cache.Lookup("alpha", nil)   // exact
	_, _ = cache.Lookup("ALPHA", nil)   // normalized
	_, _ = cache.Lookup("unknown", nil) // miss

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.ExactHits)
	assert.Equal(t, int64(1), stats.NormalizedHits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Registered)
}

func TestConcurrentLookupsAndRegistrations(t *testing.T) {
	cache := newTestCache(t, 50, 0.87)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			vec := []float32{float32(i), 1, 0}
			cache.Register(fmt.Sprintf("writer text %d", i), vec)
		}
	}()
	for i := 0; i < 200; i++ {
		probe := []float32{float32(i), 1, 0}
		cache.Lookup(fmt.Sprintf("reader text %d", i), probe)
	}
	<-done

	assert.LessOrEqual(t, cache.Stats().SemanticSize, 50)
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := t.TempDir() + "/semantic.snapshot"

	cache := newTestCache(t, 20, 0.87)
	cache.Register("payment failed twice", []float32{0, 0, 1})
	require.NoError(t, cache.SaveSnapshot(path))

	restored := newTestCache(t, 20, 0.87)
	require.NoError(t, restored.LoadSnapshot(path))
	assert.Equal(t, 1, restored.Stats().SemanticSize)

	probe := []float32{0, 0, 2}
	res, ok := restored.Lookup("payments keep failing", probe)
	require.True(t, ok)
	assert.Equal(t, TierSemantic, res.Tier)
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	cache := newTestCache(t, 20, 0.87)
	assert.NoError(t, cache.LoadSnapshot(t.TempDir()+"/absent.snapshot"))
}
