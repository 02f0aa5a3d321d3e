package cluster

import (
	"math"
	"math/rand"

	"github.com/orneryd/themescan/pkg/math/vector"
)

// smallCorpusThreshold selects the reduction strategy: below it a linear
// variance-maximizing projection is used, because neighbor-graph layouts are
// unstable on tiny samples.
const smallCorpusThreshold = 15

const (
	pcaMaxComponents  = 5
	pcaPowerIters     = 60
	layoutEpochs      = 200
	layoutNeighborCap = 5
	layoutDimCap      = 10
)

// reduce projects vecs to a low-dimensional space and re-normalizes every row
// to unit L2 norm, so downstream Euclidean distance approximates cosine
// distance. Deterministic for a fixed seed.
func reduce(vecs [][]float32, neighbors, components int, seed int64) [][]float32 {
	n := len(vecs)
	if n == 0 {
		return nil
	}
	if maxSpread(vecs) < 1e-9 {
		// Zero-variance corpus (all documents identical): collapse to a
		// single point instead of feeding degenerate data to the layout.
		out := make([][]float32, n)
		for i := range out {
			out[i] = []float32{0}
		}
		return out
	}
	rng := rand.New(rand.NewSource(seed))

	var reduced [][]float32
	if n < smallCorpusThreshold {
		dims := minInt(pcaMaxComponents, n-1, len(vecs[0]))
		reduced = pcaProject(vecs, dims, rng)
	} else {
		k := minInt(neighbors, n-1, layoutNeighborCap)
		dims := minInt(components, n-1, layoutDimCap)
		reduced = neighborLayout(vecs, k, dims, rng)
	}

	for i := range reduced {
		vector.NormalizeInPlace(reduced[i])
	}
	return reduced
}

// pcaProject computes a linear projection onto the top principal components
// via power iteration with deflation.
func pcaProject(vecs [][]float32, components int, rng *rand.Rand) [][]float32 {
	n := len(vecs)
	dim := len(vecs[0])
	if components < 1 {
		components = 1
	}

	// Center a float64 working copy.
	mean := make([]float64, dim)
	for _, v := range vecs {
		for d := range v {
			mean[d] += float64(v[d])
		}
	}
	for d := range mean {
		mean[d] /= float64(n)
	}
	centered := make([][]float64, n)
	for i, v := range vecs {
		row := make([]float64, dim)
		for d := range v {
			row[d] = float64(v[d]) - mean[d]
		}
		centered[i] = row
	}

	axes := make([][]float64, 0, components)
	for c := 0; c < components; c++ {
		axis := powerIterate(centered, rng)
		if axis == nil {
			break
		}
		axes = append(axes, axis)
		// Deflate: remove the captured direction from every row.
		for i := range centered {
			proj := dot64(centered[i], axis)
			for d := range centered[i] {
				centered[i][d] -= proj * axis[d]
			}
		}
	}
	if len(axes) == 0 {
		// Zero-variance corpus (all documents identical): collapse to a single
		// zero component; clustering will see one degenerate group.
		axes = append(axes, make([]float64, dim))
	}

	out := make([][]float32, n)
	for i, v := range vecs {
		row := make([]float32, len(axes))
		for a, axis := range axes {
			var proj float64
			for d := range v {
				proj += (float64(v[d]) - mean[d]) * axis[d]
			}
			row[a] = float32(proj)
		}
		out[i] = row
	}
	return out
}

// powerIterate returns the dominant direction of the centered rows, or nil
// when the remaining variance is negligible.
func powerIterate(rows [][]float64, rng *rand.Rand) []float64 {
	if len(rows) == 0 {
		return nil
	}
	dim := len(rows[0])
	axis := make([]float64, dim)
	for d := range axis {
		axis[d] = rng.Float64() - 0.5
	}
	normalize64(axis)

	next := make([]float64, dim)
	for iter := 0; iter < pcaPowerIters; iter++ {
		for d := range next {
			next[d] = 0
		}
		for _, row := range rows {
			proj := dot64(row, axis)
			for d := range row {
				next[d] += proj * row[d]
			}
		}
		norm := norm64(next)
		if norm < 1e-12 {
			return nil
		}
		for d := range next {
			axis[d] = next[d] / norm
		}
	}
	return append([]float64(nil), axis...)
}

// neighborLayout is a neighborhood-preserving nonlinear reduction: an exact
// cosine kNN graph, a PCA initialization, then seeded stochastic descent with
// attraction along graph edges and negative-sample repulsion.
func neighborLayout(vecs [][]float32, k, outDim int, rng *rand.Rand) [][]float32 {
	n := len(vecs)
	normed := make([][]float32, n)
	for i := range vecs {
		normed[i] = vector.Normalize(vecs[i])
	}

	edges := knnEdges(normed, k)
	coords := pcaInit(vecs, outDim, rng)

	for epoch := 0; epoch < layoutEpochs; epoch++ {
		alpha := 0.1 * (1 - float64(epoch)/float64(layoutEpochs))
		for _, e := range edges {
			moveToward(coords[e.i], coords[e.j], alpha*e.weight)
			// One negative sample per edge keeps the layout from collapsing.
			far := rng.Intn(n)
			if far != e.i {
				moveApart(coords[e.i], coords[far], alpha)
			}
		}
	}
	return coords
}

type knnEdge struct {
	i, j   int
	weight float64
}

// knnEdges builds the undirected k-nearest-neighbor edge list under cosine
// distance, with edge weight 1-distance/maxDist in (0, 1].
func knnEdges(normed [][]float32, k int) []knnEdge {
	n := len(normed)
	if k < 1 {
		k = 1
	}
	type nb struct {
		idx  int
		dist float64
	}
	seen := make(map[[2]int]struct{}, n*k)
	edges := make([]knnEdge, 0, n*k)

	for i := 0; i < n; i++ {
		nbrs := make([]nb, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			nbrs = append(nbrs, nb{idx: j, dist: 1 - vector.Dot(normed[i], normed[j])})
		}
		// Partial selection: k smallest by (dist, idx) for determinism.
		for s := 0; s < k && s < len(nbrs); s++ {
			best := s
			for t := s + 1; t < len(nbrs); t++ {
				if nbrs[t].dist < nbrs[best].dist ||
					(nbrs[t].dist == nbrs[best].dist && nbrs[t].idx < nbrs[best].idx) {
					best = t
				}
			}
			nbrs[s], nbrs[best] = nbrs[best], nbrs[s]

			a, b := i, nbrs[s].idx
			if a > b {
				a, b = b, a
			}
			key := [2]int{a, b}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			edges = append(edges, knnEdge{i: a, j: b, weight: 1 - nbrs[s].dist/2})
		}
	}
	return edges
}

func pcaInit(vecs [][]float32, outDim int, rng *rand.Rand) [][]float32 {
	coords := pcaProject(vecs, outDim, rng)
	for i := range coords {
		// Pad when PCA found fewer directions than requested.
		for len(coords[i]) < outDim {
			coords[i] = append(coords[i], float32(rng.Float64()-0.5)*1e-4)
		}
	}
	return coords
}

func moveToward(a, b []float32, step float64) {
	for d := range a {
		delta := float32(step) * (b[d] - a[d])
		a[d] += delta
		b[d] -= delta
	}
}

func moveApart(a, b []float32, step float64) {
	var distSq float64
	for d := range a {
		diff := float64(a[d] - b[d])
		distSq += diff * diff
	}
	scale := float32(step / (1 + distSq))
	for d := range a {
		a[d] += scale * (a[d] - b[d])
	}
}

func dot64(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm64(v []float64) float64 {
	return math.Sqrt(dot64(v, v))
}

func normalize64(v []float64) {
	n := norm64(v)
	if n == 0 {
		return
	}
	for i := range v {
		v[i] /= n
	}
}

// maxSpread reports the largest absolute coordinate difference between any
// row and the first row.
func maxSpread(vecs [][]float32) float64 {
	first := vecs[0]
	var spread float64
	for _, v := range vecs[1:] {
		if len(v) != len(first) {
			return math.Inf(1)
		}
		for d := range v {
			diff := math.Abs(float64(v[d] - first[d]))
			if diff > spread {
				spread = diff
			}
		}
	}
	return spread
}

func minInt(vals ...int) int {
	out := vals[0]
	for _, v := range vals[1:] {
		if v < out {
			out = v
		}
	}
	return out
}
