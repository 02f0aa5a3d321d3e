// Package rank assigns composite quality scores to clusters and produces a
// deterministic total order. Every metric lives on a [0, 10] scale; a metric
// that cannot be computed for a cluster defaults to 0 instead of failing the
// run. Ranking only fails when no clusters exist at all.
package rank

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/orneryd/themescan/pkg/cluster"
	"github.com/orneryd/themescan/pkg/config"
	"github.com/orneryd/themescan/pkg/math/vector"
	"github.com/orneryd/themescan/pkg/simcache"
)

// ErrNoClusters is returned when ranking is invoked with nothing to rank.
var ErrNoClusters = errors.New("no clusters to rank")

// MetricSet holds the per-cluster quality dimensions plus the composite.
type MetricSet struct {
	Coherence       float64 `json:"coherence"`
	Distinctiveness float64 `json:"distinctiveness"`
	Demand          float64 `json:"demand"`
	LabelConfidence float64 `json:"label_confidence"`
	NoiseScore      float64 `json:"noise_score"`
	PainIntensity   float64 `json:"pain_intensity"`
	FinalScore      float64 `json:"final_score"`
}

// RankedCluster is a cluster with its label and metrics, immutable once
// produced.
type RankedCluster struct {
	Cluster  *cluster.Cluster    `json:"-"`
	ID       int                 `json:"cluster_id"`
	Label    string              `json:"label,omitempty"`
	Size     int                 `json:"size"`
	Centroid []float32           `json:"centroid"`
	Samples  []*cluster.Document `json:"sample_members"`
	Metrics  MetricSet           `json:"metrics"`
}

// Engine computes cluster rankings. The embedder is used only for label
// confidence and may be nil, in which case that metric is 0 for every cluster.
type Engine struct {
	cfg      config.RankConfig
	embedder simcache.Embedder
}

// NewEngine returns an Engine with the given configuration and optional
// label embedder.
func NewEngine(cfg config.RankConfig, embedder simcache.Embedder) *Engine {
	return &Engine{cfg: cfg, embedder: embedder}
}

// Rank scores every cluster and returns them ordered by final score
// descending, ties broken by size descending then cluster id ascending, so
// identical inputs always produce identical orderings. vecs is the run's
// document-aligned vector matrix; labels maps cluster id to its
// human-readable title and may be nil or partial.
func (e *Engine) Rank(ctx context.Context, clusters []cluster.Cluster, vecs [][]float32, labels map[int]string) ([]RankedCluster, error) {
	if len(clusters) == 0 {
		return nil, ErrNoClusters
	}

	totalClustered := 0
	for i := range clusters {
		totalClustered += clusters[i].Size
	}
	distinct := distinctiveness(clusters)
	corpusRadius := e.corpusRadius(clusters, vecs)

	ranked := make([]RankedCluster, 0, len(clusters))
	for i := range clusters {
		c := &clusters[i]
		memberVecs := make([][]float32, len(c.Indexes))
		texts := make([]string, len(c.Indexes))
		for m, idx := range c.Indexes {
			memberVecs[m] = vecs[idx]
			texts[m] = c.Members[m].Text
		}

		metrics := MetricSet{
			Coherence:       coherence(c, memberVecs),
			Distinctiveness: distinct[i],
			Demand:          demand(c.Size, totalClustered),
			LabelConfidence: e.labelConfidence(ctx, labels[c.ID], c.Centroid),
			NoiseScore: noiseScore(memberVecs, e.cfg.KDistanceK,
				e.cfg.KDistancePercentile, corpusRadius, e.cfg.FallbackRadius),
		}
		if e.cfg.PainEnabled {
			metrics.PainIntensity = painIntensity(texts, e.cfg.PainLexicon)
		}
		metrics.FinalScore = e.cfg.CoherenceWeight*metrics.Coherence +
			e.cfg.DistinctivenessWeight*metrics.Distinctiveness +
			e.cfg.DemandWeight*metrics.Demand +
			e.cfg.LabelWeight*metrics.LabelConfidence +
			e.cfg.PainWeight*metrics.PainIntensity

		samples := c.Members
		if len(samples) > cluster.SampleCap {
			samples = samples[:cluster.SampleCap]
		}
		ranked = append(ranked, RankedCluster{
			Cluster:  c,
			ID:       c.ID,
			Label:    labels[c.ID],
			Size:     c.Size,
			Centroid: c.Centroid,
			Samples:  samples,
			Metrics:  metrics,
		})
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].Metrics.FinalScore != ranked[b].Metrics.FinalScore {
			return ranked[a].Metrics.FinalScore > ranked[b].Metrics.FinalScore
		}
		if ranked[a].Size != ranked[b].Size {
			return ranked[a].Size > ranked[b].Size
		}
		return ranked[a].ID < ranked[b].ID
	})
	return ranked, nil
}

// labelConfidence embeds the label text and compares it to the centroid.
// Any failure is worth a log line, not a failed run.
func (e *Engine) labelConfidence(ctx context.Context, label string, centroid []float32) float64 {
	if label == "" || e.embedder == nil {
		return 0
	}
	vec, err := e.embedder.Embed(ctx, label)
	if err != nil {
		log.Printf("Rank: label embedding failed for %q: %v", label, err)
		return 0
	}
	return labelConfidence(vec, centroid)
}

// corpusRadius estimates a run-wide k-distance radius over all clustered
// points, the fallback when a single cluster is too small for its own.
func (e *Engine) corpusRadius(clusters []cluster.Cluster, vecs [][]float32) float64 {
	var all [][]float32
	for i := range clusters {
		for _, idx := range clusters[i].Indexes {
			all = append(all, vecs[idx])
		}
	}
	k := e.cfg.KDistanceK
	if k > len(all)-1 {
		k = len(all) - 1
	}
	if k < 1 {
		return 0
	}
	normed := make([][]float32, len(all))
	for i, v := range all {
		normed[i] = vector.Normalize(v)
	}
	return kDistanceRadius(normed, k, e.cfg.KDistancePercentile)
}
