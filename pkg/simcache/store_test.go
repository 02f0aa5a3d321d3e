package simcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreDegradesToMissOnFailure(t *testing.T) {
	store, err := OpenStore("")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Every read against the closed database is a miss, never an error.
	for i := 0; i < 12; i++ {
		_, ok := store.get(exactPrefix, ContentHash("anything"))
		assert.False(t, ok)
	}
	assert.True(t, store.degraded.Load(), "persistent failures must flip the degraded flag")

	// Degraded writes are dropped without touching the database.
	store.put(storedEntry{Vector: []float32{1}}, exactPrefix+ContentHash("anything"))
	_, ok := store.get(exactPrefix, ContentHash("anything"))
	assert.False(t, ok)
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := OpenStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	hash := ContentHash("the payment page hangs")
	_, ok := store.get(exactPrefix, hash)
	require.False(t, ok)

	store.put(storedEntry{Vector: []float32{0.1, 0.2}, Excerpt: "the payment page hangs", CreatedAt: now()},
		exactPrefix+hash, normalizedPrefix+hash)

	entry, ok := store.get(exactPrefix, hash)
	require.True(t, ok)
	assert.Equal(t, []float32{0.1, 0.2}, entry.Vector)
	assert.Equal(t, "the payment page hangs", entry.Excerpt)

	entry, ok = store.get(normalizedPrefix, hash)
	require.True(t, ok)
	assert.Equal(t, []float32{0.1, 0.2}, entry.Vector)
}
