// Package cluster turns a matrix of embedding vectors into density-based
// clusters with an explicit noise designation. The pipeline feeds it one batch
// of documents per run; output clusters are immutable once built.
package cluster

import (
	"errors"
	"time"
)

// NoiseID is the sentinel cluster id for unclusterable points. Noise is
// excluded from ranking.
const NoiseID = -1

// ErrInsufficientData is returned when fewer than MinDocuments valid
// documents are available. It is an expected, structured failure: the
// orchestrator marks the stage failed with this reason instead of producing a
// degenerate single-cluster result.
var ErrInsufficientData = errors.New("insufficient data: need at least 3 documents with embeddings")

// MinDocuments is the smallest corpus the builder accepts.
const MinDocuments = 3

// SampleCap bounds the member documents carried in each cluster summary.
const SampleCap = 15

// Document is one ingested post. Created by the external fetch step and
// read-only thereafter; clusters reference documents rather than copying them.
type Document struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Community  string    `json:"community,omitempty"`
	URL        string    `json:"url,omitempty"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
	Engagement float64   `json:"engagement,omitempty"`
}

// Cluster is one non-noise group produced by a run.
type Cluster struct {
	ID       int
	Members  []*Document
	Indexes  []int // positions in the run's document slice, ascending
	Centroid []float32
	Size     int
}

// ClusterSummary is the serialization-friendly emission for one cluster.
type ClusterSummary struct {
	ID         int         `json:"cluster_id"`
	Size       int         `json:"size"`
	Percentage float64     `json:"percentage"`
	Samples    []*Document `json:"sample_members"`
}

// Summary aggregates a whole clustering run.
type Summary struct {
	Clusters       []ClusterSummary `json:"clusters"`
	TotalDocuments int              `json:"total_documents"`
	TotalClustered int              `json:"total_clustered"`
	TotalNoise     int              `json:"total_noise"`
}

// Output is the full result of a clustering run: labeled clusters, noise
// member positions, and the emission summary.
type Output struct {
	Clusters []Cluster
	Noise    []int
	Summary  Summary
}
