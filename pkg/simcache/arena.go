package simcache

import (
	"sync"
	"sync/atomic"

	"github.com/orneryd/themescan/pkg/math/vector"
)

// semanticEntry is one slot of the semantic index. Vector is the vector
// exactly as registered (what a hit returns); Unit is its unit-normalized
// copy used for the similarity scan. The hashes back-fill the hash tiers on a
// semantic hit.
type semanticEntry struct {
	Vector    []float32 `msgpack:"v"`
	Unit      []float32 `msgpack:"u"`
	Excerpt   string    `msgpack:"x"`
	ExactHash string    `msgpack:"e"`
	NormHash  string    `msgpack:"n"`
}

// arena is a fixed-capacity ring of semantic entries with batch FIFO eviction.
//
// Writers mutate the ring under mu and bump the generation counter. Readers
// scan an immutable snapshot slice rebuilt lazily when the generation moves,
// so a reader never observes a partially-evicted or partially-appended index.
type arena struct {
	mu      sync.Mutex
	slots   []semanticEntry
	start   int // index of oldest entry
	count   int
	gen     atomic.Uint64
	snap    atomic.Value // arenaSnapshot
	evicted atomic.Int64
	snapMu  sync.Mutex // serializes snapshot rebuilds
}

type arenaSnapshot struct {
	gen     uint64
	entries []semanticEntry
}

func newArena(capacity int) *arena {
	if capacity < 1 {
		capacity = 1
	}
	a := &arena{slots: make([]semanticEntry, capacity)}
	a.snap.Store(arenaSnapshot{})
	return a
}

// append inserts an entry, evicting the oldest ~10% in one batch when full.
// Batch eviction amortizes snapshot rebuilds across many insertions.
func (a *arena) append(e semanticEntry) {
	a.mu.Lock()
	capacity := len(a.slots)
	if a.count == capacity {
		batch := capacity / 10
		if batch < 1 {
			batch = 1
		}
		a.start = (a.start + batch) % capacity
		a.count -= batch
		a.evicted.Add(int64(batch))
	}
	a.slots[(a.start+a.count)%capacity] = e
	a.count++
	a.gen.Add(1)
	a.mu.Unlock()
}

// view returns an insertion-ordered snapshot of the current entries. The
// returned slice is immutable; concurrent appends go to a later generation.
func (a *arena) view() []semanticEntry {
	gen := a.gen.Load()
	if snap := a.snap.Load().(arenaSnapshot); snap.gen == gen {
		return snap.entries
	}

	a.snapMu.Lock()
	defer a.snapMu.Unlock()
	gen = a.gen.Load()
	if snap := a.snap.Load().(arenaSnapshot); snap.gen == gen {
		return snap.entries
	}

	a.mu.Lock()
	gen = a.gen.Load()
	entries := make([]semanticEntry, a.count)
	for i := 0; i < a.count; i++ {
		entries[i] = a.slots[(a.start+i)%len(a.slots)]
	}
	a.mu.Unlock()

	a.snap.Store(arenaSnapshot{gen: gen, entries: entries})
	return entries
}

// search scans the snapshot for the entry most similar to probe. Stored
// vectors are unit-normalized, so similarity is a dot product against the
// normalized probe.
func (a *arena) search(probe []float32) (semanticEntry, float64, bool) {
	entries := a.view()
	if len(entries) == 0 || len(probe) == 0 {
		return semanticEntry{}, 0, false
	}
	probeNorm := vector.Normalize(probe)
	bestSim := -1.0
	bestIdx := -1
	for i := range entries {
		sim := vector.Dot(probeNorm, entries[i].Unit)
		if sim > bestSim {
			bestSim = sim
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return semanticEntry{}, 0, false
	}
	return entries[bestIdx], bestSim, true
}

func (a *arena) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// restore replaces the arena contents with entries (oldest first), keeping at
// most capacity of the newest. Entries from snapshots that predate the split
// raw/unit layout get their unit copy rebuilt.
func (a *arena) restore(entries []semanticEntry) {
	a.mu.Lock()
	capacity := len(a.slots)
	if len(entries) > capacity {
		entries = entries[len(entries)-capacity:]
	}
	for i := range entries {
		if len(entries[i].Unit) == 0 {
			entries[i].Unit = vector.Normalize(entries[i].Vector)
		}
		a.slots[i] = entries[i]
	}
	a.start = 0
	a.count = len(entries)
	a.gen.Add(1)
	a.mu.Unlock()
}
