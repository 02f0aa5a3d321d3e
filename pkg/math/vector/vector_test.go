package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDotAndCosine(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	assert.Equal(t, 0.0, Dot(a, b))
	assert.Equal(t, 1.0, Dot(a, a))
	assert.InDelta(t, 0, Cosine(a, b), 1e-9)
	assert.InDelta(t, 1, Cosine(a, a), 1e-9)
	assert.InDelta(t, -1, Cosine(a, []float32{-1, 0, 0}), 1e-9)
}

func TestMismatchedAndZeroInputs(t *testing.T) {
	assert.Equal(t, 0.0, Dot([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, Cosine([]float32{1}, nil))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, Euclidean([]float32{1}, []float32{1, 2}))
}

func TestEuclidean(t *testing.T) {
	assert.InDelta(t, 5, Euclidean([]float32{0, 0}, []float32{3, 4}), 1e-9)
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	n := Normalize(v)

	assert.InDelta(t, 1, Norm(n), 1e-6)
	// Original untouched.
	assert.Equal(t, []float32{3, 4}, v)

	zero := []float32{0, 0}
	assert.Equal(t, []float32{0, 0}, Normalize(zero))
}

func TestCentroid(t *testing.T) {
	t.Run("mean of members", func(t *testing.T) {
		c := Centroid([][]float32{{0, 0}, {2, 4}})
		require.Len(t, c, 2)
		assert.InDelta(t, 1, float64(c[0]), 1e-6)
		assert.InDelta(t, 2, float64(c[1]), 1e-6)
	})

	t.Run("skips mismatched rows", func(t *testing.T) {
		c := Centroid([][]float32{{2, 2}, {1, 2, 3}})
		require.Len(t, c, 2)
		assert.InDelta(t, 2, float64(c[0]), 1e-6)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Nil(t, Centroid(nil))
		assert.Nil(t, Centroid([][]float32{}))
	})
}

func TestIsZero(t *testing.T) {
	assert.True(t, IsZero(nil))
	assert.True(t, IsZero([]float32{0, 0}))
	assert.False(t, IsZero([]float32{0, math.SmallestNonzeroFloat32}))
}
