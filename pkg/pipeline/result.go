package pipeline

import (
	"errors"
	"fmt"

	"github.com/orneryd/themescan/pkg/cluster"
	"github.com/orneryd/themescan/pkg/rank"
	"github.com/orneryd/themescan/pkg/simcache"
)

// ErrAlreadyRunning is returned by Run when a live lock already exists for
// the (owner, job) key. It is an expected condition ("already in progress"),
// not something to log loudly.
var ErrAlreadyRunning = errors.New("processing already in progress")

// StageError is the structured failure for one stage. Failures inside the
// cache, cluster and rank components never propagate past the runner as
// panics or untyped errors: the runner converts them into a StageError,
// marks the stage failed and releases the lock.
type StageError struct {
	Stage  Stage
	Reason string
	Err    error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stage %s failed: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("stage %s failed: %s", e.Stage, e.Reason)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageFailure(stage Stage, reason string, err error) *StageError {
	return &StageError{Stage: stage, Reason: reason, Err: err}
}

// RunReport is the successful outcome of a full pipeline run: the emission
// structures for persistence plus run bookkeeping.
type RunReport struct {
	RunID      string               `json:"run_id"`
	Owner      string               `json:"owner"`
	Job        string               `json:"job"`
	Summary    cluster.Summary      `json:"cluster_summary"`
	Ranked     []rank.RankedCluster `json:"ranked_clusters"`
	CacheStats simcache.Stats       `json:"cache_stats"`
}
