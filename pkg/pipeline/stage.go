// Package pipeline sequences the themescan stages for one (owner, job) key
// and owns the run-lock state machine. It holds no domain data of its own:
// every stage transition in the cache, cluster and rank components is
// recorded here, and the lock table is the single source of truth for
// "is this job running".
package pipeline

// Stage is the pipeline state machine position for one (owner, job) run.
type Stage string

const (
	StageKeywordGeneration    Stage = "keyword_generation"
	StagePostsFetching        Stage = "posts_fetching"
	StageEmbeddingGeneration  Stage = "embedding_generation"
	StageSemanticFiltering    Stage = "semantic_filtering"
	StageClustering           Stage = "clustering"
	StagePainPointsExtraction Stage = "pain_points_extraction"
	StageRanking              Stage = "ranking"
	StageCompleted            Stage = "completed"
	StageFailed               Stage = "failed"
)

// stageOrder is the strict execution sequence; no stage may start before the
// previous one succeeds. failed is reachable from any of them.
var stageOrder = []Stage{
	StageKeywordGeneration,
	StagePostsFetching,
	StageEmbeddingGeneration,
	StageSemanticFiltering,
	StageClustering,
	StagePainPointsExtraction,
	StageRanking,
	StageCompleted,
}

// Terminal reports whether s is a terminal state.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	if s == StageFailed {
		return true
	}
	for _, st := range stageOrder {
		if st == s {
			return true
		}
	}
	return false
}
