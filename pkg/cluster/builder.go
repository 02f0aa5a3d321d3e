package cluster

import (
	"fmt"
	"sort"

	"github.com/orneryd/themescan/pkg/config"
	"github.com/orneryd/themescan/pkg/math/vector"
)

// Builder runs the reduction + density clustering + summarization steps for
// one batch of documents. Construct once per process and share; Build itself
// is stateless and safe for concurrent runs.
type Builder struct {
	cfg config.ClusterConfig
}

// NewBuilder returns a Builder with the given configuration.
func NewBuilder(cfg config.ClusterConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Build partitions docs into clusters plus noise. docs and vecs are parallel;
// documents with empty text or empty/zero vectors are excluded before
// clustering. Fewer than MinDocuments valid documents yields
// ErrInsufficientData. Numerical failures inside the reduction or clustering
// steps are recovered and surfaced as an error rather than a panic.
func (b *Builder) Build(docs []Document, vecs [][]float32) (out *Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("clustering failed: %v", r)
		}
	}()

	if len(docs) != len(vecs) {
		return nil, fmt.Errorf("document/vector count mismatch: %d vs %d", len(docs), len(vecs))
	}

	valid := make([]int, 0, len(docs))
	for i := range docs {
		if docs[i].Text == "" || len(vecs[i]) == 0 || vector.IsZero(vecs[i]) {
			continue
		}
		valid = append(valid, i)
	}
	if len(valid) < MinDocuments {
		return nil, ErrInsufficientData
	}

	matrix := make([][]float32, len(valid))
	for i, idx := range valid {
		matrix[i] = vecs[idx]
	}
	dim := len(matrix[0])
	for i, row := range matrix {
		if len(row) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, run uses %d", valid[i], len(row), dim)
		}
	}

	reduced := reduce(matrix, b.cfg.Neighbors, b.cfg.Components, b.cfg.Seed)
	minClusterSize := minInt(b.cfg.MinClusterSize, maxInt(3, len(valid)/10))
	labels := densityCluster(reduced, minClusterSize, b.cfg.MinSamples)

	return b.assemble(docs, vecs, valid, labels), nil
}

// assemble groups labeled points into Clusters with centroids over the
// original (unreduced) vectors, relabels clusters by first-member order for
// determinism, and builds the emission summary.
func (b *Builder) assemble(docs []Document, vecs [][]float32, valid []int, labels []int) *Output {
	groups := make(map[int][]int)
	var noise []int
	for i, label := range labels {
		docIdx := valid[i]
		if label == NoiseID {
			noise = append(noise, docIdx)
			continue
		}
		groups[label] = append(groups[label], docIdx)
	}

	order := make([]int, 0, len(groups))
	for label := range groups {
		order = append(order, label)
	}
	sort.Slice(order, func(a, b int) bool {
		return groups[order[a]][0] < groups[order[b]][0]
	})

	out := &Output{Noise: noise}
	for newID, label := range order {
		indexes := groups[label]
		members := make([]*Document, len(indexes))
		memberVecs := make([][]float32, len(indexes))
		for i, idx := range indexes {
			members[i] = &docs[idx]
			memberVecs[i] = vecs[idx]
		}
		out.Clusters = append(out.Clusters, Cluster{
			ID:       newID,
			Members:  members,
			Indexes:  indexes,
			Centroid: vector.Centroid(memberVecs),
			Size:     len(indexes),
		})
	}

	total := len(valid)
	clustered := 0
	for _, c := range out.Clusters {
		clustered += c.Size
		samples := c.Members
		if len(samples) > SampleCap {
			samples = samples[:SampleCap]
		}
		out.Summary.Clusters = append(out.Summary.Clusters, ClusterSummary{
			ID:         c.ID,
			Size:       c.Size,
			Percentage: float64(c.Size) / float64(total) * 100,
			Samples:    samples,
		})
	}
	out.Summary.TotalDocuments = total
	out.Summary.TotalClustered = clustered
	out.Summary.TotalNoise = total - clustered
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
