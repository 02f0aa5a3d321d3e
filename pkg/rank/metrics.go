package rank

import (
	"github.com/orneryd/themescan/pkg/cluster"
	"github.com/orneryd/themescan/pkg/math/vector"
)

// similarityToScale rescales a cosine similarity from [-1, 1] onto [0, 10].
func similarityToScale(sim float64) float64 {
	return clamp((sim + 1) / 2 * 10)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

// coherence is the mean rescaled member-to-centroid cosine similarity.
// A singleton cluster is maximally coherent by definition; a degenerate
// centroid yields 0.
func coherence(c *cluster.Cluster, memberVecs [][]float32) float64 {
	if c.Size == 1 {
		return 10
	}
	if len(c.Centroid) == 0 || vector.IsZero(c.Centroid) {
		return 0
	}
	var sum float64
	for _, v := range memberVecs {
		sum += similarityToScale(vector.Cosine(v, c.Centroid))
	}
	return clamp(sum / float64(len(memberVecs)))
}

// distinctiveness computes, for every cluster, the mean Euclidean distance
// from its centroid to every other centroid, min-max scaled to [0, 10] across
// the run. A lone cluster scores 0.
func distinctiveness(clusters []cluster.Cluster) []float64 {
	out := make([]float64, len(clusters))
	if len(clusters) < 2 {
		return out
	}

	means := make([]float64, len(clusters))
	for i := range clusters {
		var sum float64
		for j := range clusters {
			if i == j {
				continue
			}
			sum += vector.Euclidean(clusters[i].Centroid, clusters[j].Centroid)
		}
		means[i] = sum / float64(len(clusters)-1)
	}

	lo, hi := means[0], means[0]
	for _, m := range means[1:] {
		if m < lo {
			lo = m
		}
		if m > hi {
			hi = m
		}
	}
	if hi == lo {
		// All centroids equidistant: no cluster stands out.
		return out
	}
	for i, m := range means {
		out[i] = clamp((m - lo) / (hi - lo) * 10)
	}
	return out
}

// demand measures how much of the clustered corpus a theme represents.
func demand(size, totalClustered int) float64 {
	if totalClustered == 0 {
		return 0
	}
	return clamp(float64(size) / float64(totalClustered) * 10)
}

// labelConfidence rescales the cosine similarity between the embedded cluster
// label and the centroid. A missing label vector or degenerate centroid
// yields 0.
func labelConfidence(labelVec, centroid []float32) float64 {
	if len(labelVec) == 0 || len(centroid) == 0 || vector.IsZero(centroid) {
		return 0
	}
	return similarityToScale(vector.Cosine(labelVec, centroid))
}
