// Package simcache implements the tiered embedding similarity cache.
//
// A lookup cascades through three tiers, each tried only when the previous
// misses:
//
//  1. exact: sha256 of the raw text against the on-disk store
//  2. normalized: sha256 of the canonicalized text, with exact-tier back-fill
//  3. semantic: cosine scan of the in-memory arena when a probe vector is
//     supplied, with exact+normalized back-fill on a hit
//
// The hash tiers live in badger and are content-addressed, so they are never
// evicted. The semantic arena has bounded capacity with batch FIFO eviction.
// Storage failures degrade to misses; callers must treat cache failure as a
// performance concern, never a correctness one.
package simcache

import (
	"sync/atomic"

	"github.com/orneryd/themescan/pkg/config"
	"github.com/orneryd/themescan/pkg/math/vector"
)

// Tier identifies which cache tier satisfied a lookup.
type Tier string

const (
	TierExact      Tier = "exact"
	TierNormalized Tier = "normalized"
	TierSemantic   Tier = "semantic"
)

// Result is a successful lookup: the cached vector and the tier that served it.
type Result struct {
	Vector []float32
	Tier   Tier
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	ExactHits      int64
	NormalizedHits int64
	SemanticHits   int64
	Misses         int64
	Registered     int64
	Evictions      int64
	SemanticSize   int
}

// Cache is the tiered similarity cache. Constructed once at process start and
// shared by reference across concurrent pipeline runs; all methods are safe
// for concurrent use.
type Cache struct {
	store     *Store
	arena     *arena
	threshold float64

	exactHits      atomic.Int64
	normalizedHits atomic.Int64
	semanticHits   atomic.Int64
	misses         atomic.Int64
	registered     atomic.Int64
}

// New opens a Cache per cfg. The caller owns Close.
func New(cfg config.CacheConfig) (*Cache, error) {
	store, err := OpenStore(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return &Cache{
		store:     store,
		arena:     newArena(cfg.SemanticCapacity),
		threshold: cfg.SemanticThreshold,
	}, nil
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Lookup returns a cached vector for text if any tier holds a sufficiently
// similar entry. probe, when non-nil, enables the semantic tier; it should be
// an embedding of text (or of a near-duplicate) computed elsewhere. A false
// return is an ordinary miss, not an error.
func (c *Cache) Lookup(text string, probe []float32) (Result, bool) {
	exactHash := ContentHash(text)
	if entry, ok := c.store.get(exactPrefix, exactHash); ok {
		c.exactHits.Add(1)
		return Result{Vector: entry.Vector, Tier: TierExact}, true
	}

	normHash := ContentHash(NormalizeText(text))
	if entry, ok := c.store.get(normalizedPrefix, normHash); ok {
		c.normalizedHits.Add(1)
		// Back-fill the exact tier so the next identical query hits tier 1.
		c.store.put(entry, exactPrefix+exactHash)
		return Result{Vector: entry.Vector, Tier: TierNormalized}, true
	}

	if len(probe) > 0 {
		if entry, sim, ok := c.arena.search(probe); ok && sim >= c.threshold {
			c.semanticHits.Add(1)
			stored := storedEntry{Vector: entry.Vector, Excerpt: entry.Excerpt, CreatedAt: now()}
			c.store.put(stored, exactPrefix+exactHash, normalizedPrefix+normHash)
			return Result{Vector: entry.Vector, Tier: TierSemantic}, true
		}
	}

	c.misses.Add(1)
	return Result{}, false
}

// Register stores a freshly computed vector for text under the exact and
// normalized hashes and appends it to the semantic index. Vectors are copied;
// the caller keeps ownership of vec.
func (c *Cache) Register(text string, vec []float32) {
	if len(vec) == 0 || vector.IsZero(vec) {
		return
	}
	vecCopy := append([]float32(nil), vec...)
	exactHash := ContentHash(text)
	normHash := ContentHash(NormalizeText(text))

	entry := storedEntry{Vector: vecCopy, Excerpt: excerpt(text), CreatedAt: now()}
	c.store.put(entry, exactPrefix+exactHash, normalizedPrefix+normHash)

	c.arena.append(semanticEntry{
		Vector:    vecCopy,
		Unit:      vector.Normalize(vecCopy),
		Excerpt:   excerpt(text),
		ExactHash: exactHash,
		NormHash:  normHash,
	})
	c.registered.Add(1)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{
		ExactHits:      c.exactHits.Load(),
		NormalizedHits: c.normalizedHits.Load(),
		SemanticHits:   c.semanticHits.Load(),
		Misses:         c.misses.Load(),
		Registered:     c.registered.Load(),
		Evictions:      c.arena.evicted.Load(),
		SemanticSize:   c.arena.len(),
	}
}

// SemanticThreshold returns the configured semantic-hit threshold.
func (c *Cache) SemanticThreshold() float64 { return c.threshold }
