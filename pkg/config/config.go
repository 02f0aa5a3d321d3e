// Package config holds process-wide configuration for themescan.
//
// Resolution order mirrors the layered approach used elsewhere in the stack:
// built-in defaults, then an optional YAML file, then THEMESCAN_* environment
// overrides. The resulting Config is constructed once at startup and shared by
// reference; nothing mutates it after Load returns.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/themescan/pkg/envutil"
)

// CacheConfig configures the similarity cache.
type CacheConfig struct {
	// Dir is the directory for the badger-backed exact/normalized tiers.
	// Empty means in-memory only (tests, ephemeral runs).
	Dir string `yaml:"dir"`
	// SemanticThreshold is the minimum cosine similarity for a semantic-tier
	// hit. Empirically tuned in the source system; domain-dependent.
	SemanticThreshold float64 `yaml:"semantic_threshold"`
	// SemanticCapacity bounds the in-memory semantic index entry count.
	SemanticCapacity int `yaml:"semantic_capacity"`
	// SnapshotPath, when set, is where the semantic index snapshot is persisted.
	SnapshotPath string `yaml:"snapshot_path"`
}

// ClusterConfig configures dimensionality reduction and density clustering.
type ClusterConfig struct {
	Neighbors      int   `yaml:"neighbors"`        // kNN graph neighbor default (capped per run)
	Components     int   `yaml:"components"`       // reduced dimension default (capped per run)
	MinClusterSize int   `yaml:"min_cluster_size"` // density cluster size default (capped per run)
	MinSamples     int   `yaml:"min_samples"`      // density estimation samples
	Seed           int64 `yaml:"seed"`
}

// RankConfig configures the ranking engine weights and noise detection.
type RankConfig struct {
	CoherenceWeight       float64  `yaml:"coherence_weight"`
	DistinctivenessWeight float64  `yaml:"distinctiveness_weight"`
	DemandWeight          float64  `yaml:"demand_weight"`
	LabelWeight           float64  `yaml:"label_weight"`
	PainWeight            float64  `yaml:"pain_weight"`
	PainEnabled           bool     `yaml:"pain_enabled"`
	PainLexicon           []string `yaml:"pain_lexicon"`
	KDistanceK            int      `yaml:"k_distance_k"`
	KDistancePercentile   float64  `yaml:"k_distance_percentile"`
	FallbackRadius        float64  `yaml:"fallback_radius"`
}

// PipelineConfig configures orchestration.
type PipelineConfig struct {
	StaleAfter         time.Duration `yaml:"stale_after"`
	RelevanceThreshold float64       `yaml:"relevance_threshold"`
	EmbedRate          float64       `yaml:"embed_rate"`  // provider calls per second, 0 = unlimited
	EmbedBurst         int           `yaml:"embed_burst"` // limiter burst
	RetryAttempts      int           `yaml:"retry_attempts"`
	RetryBaseDelay     time.Duration `yaml:"retry_base_delay"`
}

// Config is the root configuration.
type Config struct {
	Cache    CacheConfig    `yaml:"cache"`
	Cluster  ClusterConfig  `yaml:"cluster"`
	Rank     RankConfig     `yaml:"rank"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// Default returns the built-in defaults. Threshold and weight values preserve
// the tuned constants from the source system.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			SemanticThreshold: 0.87,
			SemanticCapacity:  10000,
		},
		Cluster: ClusterConfig{
			Neighbors:      15,
			Components:     10,
			MinClusterSize: 10,
			MinSamples:     2,
			Seed:           42,
		},
		Rank: RankConfig{
			CoherenceWeight:       0.35,
			DistinctivenessWeight: 0.25,
			DemandWeight:          0.25,
			LabelWeight:           0.15,
			PainWeight:            0.05,
			PainEnabled:           true,
			KDistanceK:            5,
			KDistancePercentile:   0.10,
			FallbackRadius:        0.35,
		},
		Pipeline: PipelineConfig{
			StaleAfter:         10 * time.Minute,
			RelevanceThreshold: 0.55,
			EmbedRate:          0,
			EmbedBurst:         1,
			RetryAttempts:      3,
			RetryBaseDelay:     500 * time.Millisecond,
		},
	}
}

// Load builds a Config from defaults, an optional YAML file (path may be
// empty), and environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Cache.Dir = envutil.Get("THEMESCAN_CACHE_DIR", c.Cache.Dir)
	c.Cache.SemanticThreshold = envutil.GetFloat("THEMESCAN_SEMANTIC_THRESHOLD", c.Cache.SemanticThreshold)
	c.Cache.SemanticCapacity = envutil.GetInt("THEMESCAN_SEMANTIC_CAPACITY", c.Cache.SemanticCapacity)
	c.Cache.SnapshotPath = envutil.Get("THEMESCAN_CACHE_SNAPSHOT", c.Cache.SnapshotPath)

	c.Cluster.Neighbors = envutil.GetInt("THEMESCAN_CLUSTER_NEIGHBORS", c.Cluster.Neighbors)
	c.Cluster.Components = envutil.GetInt("THEMESCAN_CLUSTER_COMPONENTS", c.Cluster.Components)
	c.Cluster.MinClusterSize = envutil.GetInt("THEMESCAN_MIN_CLUSTER_SIZE", c.Cluster.MinClusterSize)
	c.Cluster.Seed = int64(envutil.GetInt("THEMESCAN_CLUSTER_SEED", int(c.Cluster.Seed)))

	c.Rank.PainEnabled = envutil.GetBool("THEMESCAN_PAIN_ENABLED", c.Rank.PainEnabled)

	c.Pipeline.StaleAfter = envutil.GetDuration("THEMESCAN_STALE_AFTER", c.Pipeline.StaleAfter)
	c.Pipeline.RelevanceThreshold = envutil.GetFloat("THEMESCAN_RELEVANCE_THRESHOLD", c.Pipeline.RelevanceThreshold)
	c.Pipeline.RetryAttempts = envutil.GetInt("THEMESCAN_RETRY_ATTEMPTS", c.Pipeline.RetryAttempts)
}

func (c *Config) validate() error {
	if c.Cache.SemanticThreshold < -1 || c.Cache.SemanticThreshold > 1 {
		return fmt.Errorf("semantic threshold must be in [-1, 1], got %g", c.Cache.SemanticThreshold)
	}
	if c.Cache.SemanticCapacity <= 0 {
		return fmt.Errorf("semantic capacity must be > 0, got %d", c.Cache.SemanticCapacity)
	}
	if c.Cluster.MinSamples < 1 {
		return fmt.Errorf("min samples must be >= 1, got %d", c.Cluster.MinSamples)
	}
	if c.Pipeline.StaleAfter <= 0 {
		return fmt.Errorf("stale_after must be positive, got %s", c.Pipeline.StaleAfter)
	}
	return nil
}
