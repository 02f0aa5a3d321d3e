package cluster

import (
	"math"
	"sort"

	"github.com/orneryd/themescan/pkg/math/vector"
)

// densityCluster partitions points into variable-density clusters with an
// explicit noise label, without a preset cluster count. It follows the
// HDBSCAN construction: core distances, a minimum spanning tree over mutual
// reachability distances, a condensed cluster tree pruned by minClusterSize,
// and stability-based cluster selection. Unclusterable points get NoiseID.
//
// Deterministic: ties in edge weights are broken by vertex index.
func densityCluster(points [][]float32, minClusterSize, minSamples int) []int {
	n := len(points)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = NoiseID
	}
	if n < minClusterSize {
		return labels
	}
	if minSamples < 1 {
		minSamples = 1
	}
	if minSamples > n-1 {
		minSamples = n - 1
	}

	core := coreDistances(points, minSamples)
	edges := mutualReachabilityMST(points, core)
	root, nodes := buildDendrogram(edges, n)
	if root < 0 {
		return labels
	}

	condensedRoot := condense(nodes, root, 0, minClusterSize)
	selected := selectClusters(condensedRoot, condensedRoot)

	label := 0
	for _, c := range selected {
		for _, p := range c.members {
			labels[p] = label
		}
		label++
	}
	return labels
}

// coreDistances returns, for each point, the distance to its k-th nearest
// neighbor (self excluded).
func coreDistances(points [][]float32, k int) []float64 {
	n := len(points)
	core := make([]float64, n)
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
		core[i] = dists[k-1]
	}
	return core
}

type mstEdge struct {
	u, v   int
	weight float64
}

// mutualReachabilityMST builds the MST of the complete graph under
// d_mr(i,j) = max(core[i], core[j], d(i,j)) using Prim's algorithm, computing
// distances on demand to avoid materializing the full matrix.
func mutualReachabilityMST(points [][]float32, core []float64) []mstEdge {
	n := len(points)
	inTree := make([]bool, n)
	bestDist := make([]float64, n)
	bestFrom := make([]int, n)
	for i := range bestDist {
		bestDist[i] = math.Inf(1)
		bestFrom[i] = -1
	}

	edges := make([]mstEdge, 0, n-1)
	current := 0
	inTree[0] = true
	for len(edges) < n-1 {
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			d := vector.Euclidean(points[current], points[j])
			if core[current] > d {
				d = core[current]
			}
			if core[j] > d {
				d = core[j]
			}
			if d < bestDist[j] {
				bestDist[j] = d
				bestFrom[j] = current
			}
		}
		next := -1
		for j := 0; j < n; j++ {
			if inTree[j] {
				continue
			}
			if next == -1 || bestDist[j] < bestDist[next] {
				next = j
			}
		}
		if next == -1 {
			break
		}
		edges = append(edges, mstEdge{u: bestFrom[next], v: next, weight: bestDist[next]})
		inTree[next] = true
		current = next
	}

	sort.Slice(edges, func(a, b int) bool {
		if edges[a].weight != edges[b].weight {
			return edges[a].weight < edges[b].weight
		}
		if edges[a].u != edges[b].u {
			return edges[a].u < edges[b].u
		}
		return edges[a].v < edges[b].v
	})
	return edges
}

// dendroNode is one node of the single-linkage merge tree. Nodes 0..n-1 are
// leaves; internal nodes are appended as edges merge components.
type dendroNode struct {
	left, right int
	height      float64
	size        int
}

// buildDendrogram merges the sorted MST edges with union-find, producing the
// single-linkage tree. Returns the root node index and the node table.
func buildDendrogram(edges []mstEdge, n int) (int, []dendroNode) {
	nodes := make([]dendroNode, n, 2*n-1)
	for i := 0; i < n; i++ {
		nodes[i] = dendroNode{left: -1, right: -1, size: 1}
	}
	parent := make([]int, n, 2*n-1)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	root := -1
	for _, e := range edges {
		a, b := find(e.u), find(e.v)
		if a == b {
			continue
		}
		nodes = append(nodes, dendroNode{
			left:   a,
			right:  b,
			height: e.weight,
			size:   nodes[a].size + nodes[b].size,
		})
		id := len(nodes) - 1
		parent = append(parent, id)
		parent[a] = id
		parent[b] = id
		root = id
	}
	return root, nodes
}

// condensedCluster is a cluster of the condensed tree: born when its parent
// split, dead when it splits into two viable children or shrinks away.
type condensedCluster struct {
	birth     float64
	stability float64
	members   []int
	children  []*condensedCluster
}

type fallout struct {
	point  int
	lambda float64
}

// condense walks the dendrogram from node downward, pruning splits whose
// smaller side falls below minClusterSize. Points on a pruned side fall out
// of the cluster at the split's lambda; a split with two viable sides ends
// the cluster and births two children.
//
// Points that fall out at exactly the cluster's death lambda are still
// members: duplicate or tied points depart together with the cluster, not as
// noise. Earlier fallouts (strictly lower lambda) are noise.
func condense(nodes []dendroNode, node int, birth float64, minClusterSize int) *condensedCluster {
	c := &condensedCluster{birth: birth}
	var fallouts []fallout
	cur := node
	for {
		if nodes[cur].left < 0 {
			c.members = finishMembers([]int{cur}, fallouts, math.Inf(1))
			return c
		}
		lambda := splitLambda(nodes[cur].height)
		left, right := nodes[cur].left, nodes[cur].right
		leftOK := nodes[left].size >= minClusterSize
		rightOK := nodes[right].size >= minClusterSize

		switch {
		case leftOK && rightOK:
			// True split: every remaining point leaves here, two clusters born.
			c.stability += float64(nodes[cur].size) * (lambda - birth)
			c.children = []*condensedCluster{
				condense(nodes, left, lambda, minClusterSize),
				condense(nodes, right, lambda, minClusterSize),
			}
			c.members = finishMembers(collectLeaves(nodes, cur), fallouts, lambda)
			return c
		case leftOK:
			c.stability += float64(nodes[right].size) * (lambda - birth)
			for _, p := range collectLeaves(nodes, right) {
				fallouts = append(fallouts, fallout{point: p, lambda: lambda})
			}
			cur = left
		case rightOK:
			c.stability += float64(nodes[left].size) * (lambda - birth)
			for _, p := range collectLeaves(nodes, left) {
				fallouts = append(fallouts, fallout{point: p, lambda: lambda})
			}
			cur = right
		default:
			// Both sides too small: the cluster dies in place.
			c.stability += float64(nodes[cur].size) * (lambda - birth)
			c.members = finishMembers(collectLeaves(nodes, cur), fallouts, lambda)
			return c
		}
	}
}

// finishMembers merges the points present at death with fallouts that left at
// the death lambda itself.
func finishMembers(present []int, fallouts []fallout, deathLambda float64) []int {
	members := present
	for _, f := range fallouts {
		if f.lambda >= deathLambda {
			members = append(members, f.point)
		}
	}
	sort.Ints(members)
	return members
}

func splitLambda(height float64) float64 {
	const minHeight = 1e-10
	if height < minHeight {
		height = minHeight
	}
	return 1 / height
}

func collectLeaves(nodes []dendroNode, node int) []int {
	var out []int
	stack := []int{node}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nodes[cur].left < 0 {
			out = append(out, cur)
			continue
		}
		stack = append(stack, nodes[cur].left, nodes[cur].right)
	}
	sort.Ints(out)
	return out
}

// selectClusters picks the most stable non-overlapping set of condensed
// clusters. A parent is preferred over its children when its own stability is
// at least the sum of the children's selections; the root is never selected
// while it has children (a corpus that never truly splits keeps the root as
// its only, leaf cluster).
func selectClusters(c, root *condensedCluster) []*condensedCluster {
	if len(c.children) == 0 {
		return []*condensedCluster{c}
	}
	var childSelection []*condensedCluster
	var childStability float64
	for _, child := range c.children {
		sel := selectClusters(child, root)
		childSelection = append(childSelection, sel...)
		for _, s := range sel {
			childStability += s.stability
		}
	}
	if c == root {
		return childSelection
	}
	if c.stability >= childStability {
		return []*condensedCluster{c}
	}
	return childSelection
}
