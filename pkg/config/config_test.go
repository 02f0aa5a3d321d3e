package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.InDelta(t, 0.87, cfg.Cache.SemanticThreshold, 1e-9)
	assert.Equal(t, 10000, cfg.Cache.SemanticCapacity)
	assert.Equal(t, int64(42), cfg.Cluster.Seed)
	assert.Equal(t, 10*time.Minute, cfg.Pipeline.StaleAfter)

	// Weights are a tuned set; the composite must not drift past 1.
	sum := cfg.Rank.CoherenceWeight + cfg.Rank.DistinctivenessWeight +
		cfg.Rank.DemandWeight + cfg.Rank.LabelWeight
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "themescan.yaml")
	data := []byte(`
cache:
  semantic_threshold: 0.9
  semantic_capacity: 500
cluster:
  min_cluster_size: 5
pipeline:
  stale_after: 2m
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 0.9, cfg.Cache.SemanticThreshold, 1e-9)
	assert.Equal(t, 500, cfg.Cache.SemanticCapacity)
	assert.Equal(t, 5, cfg.Cluster.MinClusterSize)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.StaleAfter)
	// Untouched keys keep their defaults.
	assert.Equal(t, 15, cfg.Cluster.Neighbors)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "themescan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  semantic_capacity: 500\n"), 0o644))

	t.Setenv("THEMESCAN_SEMANTIC_CAPACITY", "750")
	t.Setenv("THEMESCAN_STALE_AFTER", "30s")
	t.Setenv("THEMESCAN_PAIN_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 750, cfg.Cache.SemanticCapacity)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.StaleAfter)
	assert.False(t, cfg.Rank.PainEnabled)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"threshold out of range": "cache:\n  semantic_threshold: 1.5\n",
		"capacity not positive":  "cache:\n  semantic_capacity: -1\n",
		"stale_after zero":       "pipeline:\n  stale_after: 0s\n",
	}
	for name, yaml := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.yaml")
			require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
