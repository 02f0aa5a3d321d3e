package rank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/themescan/pkg/cluster"
)

func TestDemandMonotonicInSize(t *testing.T) {
	prev := -1.0
	for size := 1; size <= 10; size++ {
		d := demand(size, 10)
		assert.GreaterOrEqual(t, d, prev, "size %d", size)
		prev = d
	}
	assert.InDelta(t, 10, demand(10, 10), 1e-9)
	assert.Zero(t, demand(5, 0))
}

func TestCoherenceMonotonicInTightness(t *testing.T) {
	c := &cluster.Cluster{Size: 2, Centroid: []float32{1, 0}}

	loose := coherence(c, [][]float32{{1, 0.5}, {1, -0.5}})
	tight := coherence(c, [][]float32{{1, 0.1}, {1, -0.1}})
	assert.Greater(t, tight, loose)
}

func TestCoherenceSingletonIsMaximal(t *testing.T) {
	c := &cluster.Cluster{Size: 1, Centroid: []float32{0.2, 0.9}}
	assert.InDelta(t, 10, coherence(c, [][]float32{{0.5, 0.5}}), 1e-9)
}

func TestCoherenceDegenerateCentroid(t *testing.T) {
	c := &cluster.Cluster{Size: 3, Centroid: []float32{0, 0}}
	assert.Zero(t, coherence(c, [][]float32{{1, 0}, {0, 1}, {1, 1}}))
}

func TestDistinctivenessMinMaxScaling(t *testing.T) {
	clusters := []cluster.Cluster{
		{ID: 0, Centroid: []float32{0}},
		{ID: 1, Centroid: []float32{1}},
		{ID: 2, Centroid: []float32{10}},
	}

	scores := distinctiveness(clusters)
	require.Len(t, scores, 3)
	// Mean distances: 5.5, 5, 9.5. The middle cluster is least distinct.
	assert.InDelta(t, 0, scores[1], 1e-9)
	assert.InDelta(t, 10, scores[2], 1e-9)
	assert.Greater(t, scores[0], scores[1])
	assert.Less(t, scores[0], scores[2])
}

func TestDistinctivenessSingleCluster(t *testing.T) {
	scores := distinctiveness([]cluster.Cluster{{ID: 0, Centroid: []float32{1, 0}}})
	require.Len(t, scores, 1)
	assert.Zero(t, scores[0])
}

func TestPainIntensityFraction(t *testing.T) {
	texts := []string{
		"this is so FRUSTRATING to use",
		"works fine for me",
		"an absolute nightmare to configure",
		"no complaints",
	}
	assert.InDelta(t, 5, painIntensity(texts, nil), 1e-9)
}

func TestPainIntensityCustomLexicon(t *testing.T) {
	texts := []string{"the widget is wobbly", "all good"}
	assert.InDelta(t, 5, painIntensity(texts, []string{"wobbly"}), 1e-9)
	assert.Zero(t, painIntensity(nil, nil))
}

func TestKDistanceRadiusClamp(t *testing.T) {
	t.Run("large distances clamp below one", func(t *testing.T) {
		points := [][]float32{{1, 0}, {-1, 0}}
		radius := kDistanceRadius(points, 1, 0.10)
		assert.InDelta(t, 0.999, radius, 1e-9)
	})

	t.Run("zero distances are infeasible", func(t *testing.T) {
		points := [][]float32{{1, 0}, {1, 0}, {1, 0}, {1, 0}, {1, 0}, {-1, 0}}
		radius := kDistanceRadius(points, 2, 0.10)
		assert.Zero(t, radius)
	})

	t.Run("k out of range", func(t *testing.T) {
		points := [][]float32{{1, 0}, {0, 1}}
		assert.Zero(t, kDistanceRadius(points, 5, 0.10))
		assert.Zero(t, kDistanceRadius(points, 0, 0.10))
	})
}

func TestNoiseScoreFlagsLooseMember(t *testing.T) {
	// Four duplicates plus one orthogonal member: one outlier out of five.
	members := [][]float32{
		{1, 0, 0},
		{1, 0, 0},
		{1, 0, 0},
		{1, 0, 0},
		{0, 1, 0},
	}
	score := noiseScore(members, 5, 0.10, 0, 0.35)
	assert.InDelta(t, 8, score, 1e-6)
}

func TestNoiseScoreCleanCluster(t *testing.T) {
	members := [][]float32{{1, 0}, {1, 0}, {1, 0}, {1, 0}, {1, 0}}
	assert.InDelta(t, 10, noiseScore(members, 5, 0.10, 0, 0.35), 1e-9)
}

func TestNoiseScoreTinyCluster(t *testing.T) {
	// Below the density-pass minimum the LOF fallback runs; identical points
	// are never outliers.
	members := [][]float32{{0, 1}, {0, 1}, {0, 1}}
	assert.InDelta(t, 10, noiseScore(members, 5, 0.10, 0, 0.35), 1e-9)

	assert.InDelta(t, 10, noiseScore([][]float32{{1, 0}}, 5, 0.10, 0, 0.35), 1e-9)
	assert.Zero(t, noiseScore(nil, 5, 0.10, 0, 0.35))
}
