package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/orneryd/themescan/pkg/cluster"
	"github.com/orneryd/themescan/pkg/config"
	"github.com/orneryd/themescan/pkg/math/vector"
	"github.com/orneryd/themescan/pkg/rank"
	"github.com/orneryd/themescan/pkg/simcache"
)

// Hooks are the externally-owned stages. Nil hooks are skipped; the stage is
// still recorded on the lock so the stage sequence stays complete.
type Hooks struct {
	// KeywordGen produces search keywords for the job (LLM-owned).
	KeywordGen func(ctx context.Context, owner, job string) ([]string, error)
	// FetchPosts retrieves documents for the keywords (scraper-owned). Used
	// when Run is called without a document batch.
	FetchPosts func(ctx context.Context, keywords []string) ([]cluster.Document, error)
	// SemanticFilter returns the indexes of documents to keep.
	SemanticFilter func(ctx context.Context, docs []cluster.Document, vecs [][]float32) ([]int, error)
	// ExtractPain assigns a human-readable label per cluster id (LLM-owned).
	ExtractPain func(ctx context.Context, clusters []cluster.Cluster) (map[int]string, error)
}

// Runner executes the stage sequence for (owner, job) keys. One Runner is
// shared across all concurrent jobs; the cache and lock table are its only
// shared mutable state.
type Runner struct {
	locks    *LockTable
	embedder *simcache.CachingEmbedder
	cache    *simcache.Cache
	builder  *cluster.Builder
	engine   *rank.Engine
	hooks    Hooks
}

// NewRunner wires the shared components into a Runner.
func NewRunner(locks *LockTable, cache *simcache.Cache, embedder *simcache.CachingEmbedder, builder *cluster.Builder, engine *rank.Engine, hooks Hooks) *Runner {
	return &Runner{
		locks:    locks,
		embedder: embedder,
		cache:    cache,
		builder:  builder,
		engine:   engine,
		hooks:    hooks,
	}
}

// Run executes the full pipeline for (owner, job). docs may be nil when a
// FetchPosts hook supplies the batch. Returns ErrAlreadyRunning when a live
// lock exists for the key; any stage failure is returned as a *StageError
// after the lock has been released with completed=false.
func (r *Runner) Run(ctx context.Context, owner, job string, docs []cluster.Document) (*RunReport, error) {
	runID := uuid.NewString()
	if _, ok := r.locks.Acquire(owner, job, runID); !ok {
		return nil, ErrAlreadyRunning
	}

	report, err := r.runStages(ctx, owner, job, runID, docs)
	if err != nil {
		r.locks.UpdateStage(owner, job, runID, StageFailed)
		r.locks.Release(owner, job, runID, false)
		return nil, err
	}
	r.locks.UpdateStage(owner, job, runID, StageCompleted)
	r.locks.Release(owner, job, runID, true)
	return report, nil
}

func (r *Runner) runStages(ctx context.Context, owner, job, runID string, docs []cluster.Document) (*RunReport, error) {
	heartbeat := func() { r.locks.Heartbeat(owner, job, runID) }

	// keyword_generation
	r.locks.UpdateStage(owner, job, runID, StageKeywordGeneration)
	var keywords []string
	if r.hooks.KeywordGen != nil {
		var err error
		keywords, err = r.hooks.KeywordGen(ctx, owner, job)
		if err != nil {
			return nil, stageFailure(StageKeywordGeneration, "keyword generation failed", err)
		}
	}

	// posts_fetching
	r.locks.UpdateStage(owner, job, runID, StagePostsFetching)
	if len(docs) == 0 && r.hooks.FetchPosts != nil {
		fetched, err := r.hooks.FetchPosts(ctx, keywords)
		if err != nil {
			return nil, stageFailure(StagePostsFetching, "post fetching failed", err)
		}
		docs = fetched
	}
	if len(docs) < cluster.MinDocuments {
		return nil, stageFailure(StagePostsFetching, "too few posts", cluster.ErrInsufficientData)
	}

	// embedding_generation
	r.locks.UpdateStage(owner, job, runID, StageEmbeddingGeneration)
	vecs, err := r.embedDocuments(ctx, owner, job, runID, docs)
	if err != nil {
		return nil, stageFailure(StageEmbeddingGeneration, "embedding generation failed", err)
	}

	// semantic_filtering
	r.locks.UpdateStage(owner, job, runID, StageSemanticFiltering)
	if r.hooks.SemanticFilter != nil {
		keep, err := r.hooks.SemanticFilter(ctx, docs, vecs)
		if err != nil {
			return nil, stageFailure(StageSemanticFiltering, "semantic filtering failed", err)
		}
		docs, vecs = selectDocs(docs, vecs, keep)
	}

	// clustering: CPU-bound, runs off the calling goroutine so other jobs'
	// scheduling is not stalled. Heartbeats continue while it runs; a long
	// reduction must not let the lock go stale.
	r.locks.UpdateStage(owner, job, runID, StageClustering)
	built, err := runOffThread(ctx, heartbeat, func() (*cluster.Output, error) {
		return r.builder.Build(docs, vecs)
	})
	if err != nil {
		if errors.Is(err, cluster.ErrInsufficientData) {
			return nil, stageFailure(StageClustering, "too few posts", err)
		}
		return nil, stageFailure(StageClustering, "clustering failed", err)
	}
	if len(built.Clusters) == 0 {
		return nil, stageFailure(StageClustering, "no clusters found", nil)
	}

	// pain_points_extraction
	r.locks.UpdateStage(owner, job, runID, StagePainPointsExtraction)
	var labels map[int]string
	if r.hooks.ExtractPain != nil {
		labels, err = r.hooks.ExtractPain(ctx, built.Clusters)
		if err != nil {
			return nil, stageFailure(StagePainPointsExtraction, "pain point extraction failed", err)
		}
	}

	// ranking
	r.locks.UpdateStage(owner, job, runID, StageRanking)
	ranked, err := runOffThread(ctx, heartbeat, func() ([]rank.RankedCluster, error) {
		return r.engine.Rank(ctx, built.Clusters, vecs, labels)
	})
	if err != nil {
		if errors.Is(err, rank.ErrNoClusters) {
			return nil, stageFailure(StageRanking, "no clusters found", err)
		}
		return nil, stageFailure(StageRanking, "ranking failed", err)
	}

	return &RunReport{
		RunID:      runID,
		Owner:      owner,
		Job:        job,
		Summary:    built.Summary,
		Ranked:     ranked,
		CacheStats: r.cache.Stats(),
	}, nil
}

// embedDocuments resolves one vector per document through the caching
// embedder. Cache misses call the provider; documents whose text is empty get
// an empty vector and are dropped later by the builder.
func (r *Runner) embedDocuments(ctx context.Context, owner, job, runID string, docs []cluster.Document) ([][]float32, error) {
	vecs := make([][]float32, len(docs))
	for i := range docs {
		if docs[i].Text == "" {
			continue
		}
		vec, err := r.embedder.Embed(ctx, docs[i].Text)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", docs[i].ID, err)
		}
		vecs[i] = vec
		if i%64 == 0 {
			r.locks.Heartbeat(owner, job, runID)
		}
	}
	return vecs, nil
}

// CurrentStage exposes the lock table's stage query for status endpoints.
func (r *Runner) CurrentStage(owner, job string) (Stage, bool) {
	return r.locks.CurrentStage(owner, job)
}

// IsRunning exposes the lock table's liveness query for status endpoints.
func (r *Runner) IsRunning(owner, job string) bool {
	return r.locks.IsRunning(owner, job)
}

// CosineFilter returns a SemanticFilter hook keeping documents whose vector
// is within threshold cosine similarity of topicVec. This is the in-process
// stand-in for the externally-owned corpus relevance filter.
func CosineFilter(topicVec []float32, threshold float64) func(ctx context.Context, docs []cluster.Document, vecs [][]float32) ([]int, error) {
	return func(ctx context.Context, docs []cluster.Document, vecs [][]float32) ([]int, error) {
		keep := make([]int, 0, len(docs))
		for i := range docs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if vector.Cosine(vecs[i], topicVec) >= threshold {
				keep = append(keep, i)
			}
		}
		return keep, nil
	}
}

func selectDocs(docs []cluster.Document, vecs [][]float32, keep []int) ([]cluster.Document, [][]float32) {
	outDocs := make([]cluster.Document, 0, len(keep))
	outVecs := make([][]float32, 0, len(keep))
	for _, idx := range keep {
		if idx < 0 || idx >= len(docs) {
			continue
		}
		outDocs = append(outDocs, docs[idx])
		outVecs = append(outVecs, vecs[idx])
	}
	return outDocs, outVecs
}

// heartbeatInterval paces liveness signals while a CPU-bound stage runs, well
// inside any sane StaleAfter window.
const heartbeatInterval = 15 * time.Second

// runOffThread executes fn on its own goroutine and waits for either the
// result or context cancellation, emitting heartbeats while it waits. The
// goroutine is not interrupted on cancellation (stages run to completion or
// failure); its result is dropped.
func runOffThread[T any](ctx context.Context, heartbeat func(), fn func() (T, error)) (T, error) {
	type outcome struct {
		val T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		val, err := fn()
		ch <- outcome{val: val, err: err}
	}()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			var zero T
			log.Printf("Pipeline: abandoning in-flight stage: %v", ctx.Err())
			return zero, ctx.Err()
		case <-ticker.C:
			heartbeat()
		case out := <-ch:
			return out.val, out.err
		}
	}
}

// DefaultHooks builds the hook set implied by cfg: a cosine relevance filter
// when a topic vector is available, everything else left external.
func DefaultHooks(cfg config.PipelineConfig, topicVec []float32) Hooks {
	h := Hooks{}
	if len(topicVec) > 0 {
		h.SemanticFilter = CosineFilter(topicVec, cfg.RelevanceThreshold)
	}
	return h
}
