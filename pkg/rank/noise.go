package rank

import (
	"math"
	"sort"

	"github.com/orneryd/themescan/pkg/math/vector"
)

// lofOutlierThreshold flags a point as an outlier when its local outlier
// factor exceeds this value.
const lofOutlierThreshold = 1.5

// lofMinMembers is the smallest cluster size the density re-pass handles;
// below it the per-point LOF fallback is used instead.
const lofMinMembers = 4

// noiseScore measures cluster cleanliness: 1 minus the outlier fraction of
// the cluster's own members, rescaled so 10 means fully clean. Member vectors
// are unit-normalized first so Euclidean distances approximate cosine.
//
// corpusRadius is the corpus-wide k-distance estimate used when the cluster
// is too small to support its own; fallbackRadius is the fixed last resort.
func noiseScore(memberVecs [][]float32, kDefault int, percentile, corpusRadius, fallbackRadius float64) float64 {
	n := len(memberVecs)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return 10
	}

	normed := make([][]float32, n)
	for i, v := range memberVecs {
		normed[i] = vector.Normalize(v)
	}

	var outliers int
	if n < lofMinMembers {
		outliers = lofOutliers(normed, n-1)
	} else {
		k := kDefault
		if k > n-1 {
			k = n - 1
		}
		radius := kDistanceRadius(normed, k, percentile)
		if radius <= 0 {
			radius = corpusRadius
		}
		if radius <= 0 {
			radius = fallbackRadius
		}
		outliers = densityOutliers(normed, radius)
	}

	frac := float64(outliers) / float64(n)
	return clamp((1 - frac) * 10)
}

// kDistanceRadius estimates a neighborhood radius from the distribution of
// each point's distance to its k-th nearest neighbor, taking a low percentile
// so the radius reflects the densest regions. Result is clamped to (0, 1);
// 0 means the heuristic was infeasible.
func kDistanceRadius(points [][]float32, k int, percentile float64) float64 {
	n := len(points)
	if k < 1 || k > n-1 {
		return 0
	}
	kdists := make([]float64, 0, n)
	dists := make([]float64, 0, n-1)
	for i := 0; i < n; i++ {
		dists = dists[:0]
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			dists = append(dists, vector.Euclidean(points[i], points[j]))
		}
		sort.Float64s(dists)
		kdists = append(kdists, dists[k-1])
	}
	sort.Float64s(kdists)

	if percentile <= 0 {
		percentile = 0.10
	}
	idx := int(math.Floor(percentile * float64(len(kdists))))
	if idx >= len(kdists) {
		idx = len(kdists) - 1
	}
	radius := kdists[idx]
	if radius <= 0 {
		return 0
	}
	if radius >= 1 {
		radius = 0.999
	}
	return radius
}

// densityOutliers runs a tight density pass (DBSCAN with minPts 2) over the
// points and counts those reachable from no core point.
func densityOutliers(points [][]float32, eps float64) int {
	const minPts = 2
	n := len(points)
	neighbors := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if vector.Euclidean(points[i], points[j]) <= eps {
				neighbors[i] = append(neighbors[i], j)
				neighbors[j] = append(neighbors[j], i)
			}
		}
	}

	// Core points have at least minPts points (self included) within eps.
	reached := make([]bool, n)
	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if len(neighbors[i])+1 >= minPts {
			reached[i] = true
			queue = append(queue, i)
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range neighbors[cur] {
			if !reached[nb] {
				reached[nb] = true
				queue = append(queue, nb)
			}
		}
	}

	outliers := 0
	for i := range reached {
		if !reached[i] {
			outliers++
		}
	}
	return outliers
}

// lofOutliers computes a local-outlier-factor score per point and counts
// those above the threshold. Used for clusters too small for a density pass.
func lofOutliers(points [][]float32, k int) int {
	n := len(points)
	if k < 1 {
		return 0
	}
	if k > n-1 {
		k = n - 1
	}

	type nb struct {
		idx  int
		dist float64
	}
	knn := make([][]nb, n)
	kdist := make([]float64, n)
	for i := 0; i < n; i++ {
		all := make([]nb, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			all = append(all, nb{idx: j, dist: vector.Euclidean(points[i], points[j])})
		}
		sort.Slice(all, func(a, b int) bool {
			if all[a].dist != all[b].dist {
				return all[a].dist < all[b].dist
			}
			return all[a].idx < all[b].idx
		})
		knn[i] = all[:k]
		kdist[i] = all[k-1].dist
	}

	lrd := make([]float64, n)
	for i := 0; i < n; i++ {
		var reachSum float64
		for _, nbr := range knn[i] {
			reach := nbr.dist
			if kdist[nbr.idx] > reach {
				reach = kdist[nbr.idx]
			}
			reachSum += reach
		}
		if reachSum == 0 {
			lrd[i] = math.Inf(1)
			continue
		}
		lrd[i] = float64(k) / reachSum
	}

	outliers := 0
	for i := 0; i < n; i++ {
		var ratioSum float64
		finite := 0
		for _, nbr := range knn[i] {
			if math.IsInf(lrd[i], 1) {
				// Densest possible point; never an outlier.
				ratioSum = 0
				finite = 1
				break
			}
			if math.IsInf(lrd[nbr.idx], 1) {
				ratioSum += lofOutlierThreshold * 2
			} else {
				ratioSum += lrd[nbr.idx] / lrd[i]
			}
			finite++
		}
		if finite == 0 {
			continue
		}
		if ratioSum/float64(finite) > lofOutlierThreshold {
			outliers++
		}
	}
	return outliers
}
