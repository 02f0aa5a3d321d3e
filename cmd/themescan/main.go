// Command themescan runs the theme discovery pipeline over a batch of
// documents: embedding with the tiered similarity cache, density clustering,
// and multi-metric ranking. The embedding provider endpoint and credentials
// come from the environment; documents come from a JSON file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/orneryd/themescan/pkg/cluster"
	"github.com/orneryd/themescan/pkg/config"
	"github.com/orneryd/themescan/pkg/envutil"
	"github.com/orneryd/themescan/pkg/pipeline"
	"github.com/orneryd/themescan/pkg/provider"
	"github.com/orneryd/themescan/pkg/rank"
	"github.com/orneryd/themescan/pkg/retry"
	"github.com/orneryd/themescan/pkg/simcache"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, pipeline.ErrAlreadyRunning) {
			fmt.Fprintln(os.Stderr, "processing already in progress")
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "themescan",
		Short:         "Discover and rank recurring problem themes in a post corpus",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the themescan version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func newRunCmd() *cobra.Command {
	var (
		docsPath   string
		configPath string
		outDir     string
		owner      string
		job        string
		topic      string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline over a JSON document batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; real deployments set the environment directly.
			_ = godotenv.Load()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			docs, err := loadDocuments(docsPath)
			if err != nil {
				return err
			}
			return runPipeline(cmd.Context(), cfg, docs, owner, job, topic, outDir)
		},
	}
	cmd.Flags().StringVar(&docsPath, "docs", "", "path to the documents JSON file (required)")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&outDir, "out", ".", "directory for run artifacts")
	cmd.Flags().StringVar(&owner, "owner", "local", "owner key for the run lock")
	cmd.Flags().StringVar(&job, "job", "default", "job key for the run lock")
	cmd.Flags().StringVar(&topic, "topic", "", "topic text for corpus relevance filtering")
	_ = cmd.MarkFlagRequired("docs")
	return cmd
}

func runPipeline(ctx context.Context, cfg *config.Config, docs []cluster.Document, owner, job, topic, outDir string) error {
	cache, err := simcache.New(cfg.Cache)
	if err != nil {
		return err
	}
	defer cache.Close()
	if cfg.Cache.SnapshotPath != "" {
		if err := cache.LoadSnapshot(cfg.Cache.SnapshotPath); err != nil {
			log.Printf("themescan: semantic snapshot not loaded: %v", err)
		}
	}

	embedClient := provider.NewOpenAIClient(provider.OpenAIConfig{
		BaseURL: envutil.Get("THEMESCAN_EMBED_URL", ""),
		APIKey:  envutil.Get("THEMESCAN_EMBED_API_KEY", ""),
		Model:   envutil.Get("THEMESCAN_EMBED_MODEL", ""),
	})
	policy := retry.Policy{
		MaxAttempts: cfg.Pipeline.RetryAttempts,
		BaseDelay:   cfg.Pipeline.RetryBaseDelay,
	}
	embedder := simcache.NewCachingEmbedder(cache, embedClient, policy,
		cfg.Pipeline.EmbedRate, cfg.Pipeline.EmbedBurst)

	hooks := pipeline.Hooks{}
	if topic != "" {
		topicVec, err := embedder.Embed(ctx, topic)
		if err != nil {
			return fmt.Errorf("embed topic: %w", err)
		}
		hooks.SemanticFilter = pipeline.CosineFilter(topicVec, cfg.Pipeline.RelevanceThreshold)
	}

	runner := pipeline.NewRunner(
		pipeline.NewLockTable(cfg.Pipeline.StaleAfter),
		cache,
		embedder,
		cluster.NewBuilder(cfg.Cluster),
		rank.NewEngine(cfg.Rank, embedder),
		hooks,
	)

	report, err := runner.Run(ctx, owner, job, docs)
	if err != nil {
		return err
	}

	if err := writeJSON(filepath.Join(outDir, "cluster_summary.json"), report.Summary); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(outDir, "ranked_clusters.json"), report); err != nil {
		return err
	}
	if cfg.Cache.SnapshotPath != "" {
		if err := cache.SaveSnapshot(cfg.Cache.SnapshotPath); err != nil {
			log.Printf("themescan: semantic snapshot not saved: %v", err)
		}
	}

	stats := report.CacheStats
	log.Printf("themescan: run %s finished: %d clusters, %d noise; cache exact=%d normalized=%d semantic=%d miss=%d",
		report.RunID, len(report.Ranked), report.Summary.TotalNoise,
		stats.ExactHits, stats.NormalizedHits, stats.SemanticHits, stats.Misses)
	return nil
}

func loadDocuments(path string) ([]cluster.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	var docs []cluster.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse documents %s: %w", path, err)
	}
	return docs, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
