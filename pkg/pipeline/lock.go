package pipeline

import (
	"sync"
	"time"
)

// RunLock records the live state of one (owner, job) run. Exactly one lock
// exists per key at a time; it is created on acquire, mutated on stage
// transitions, and deleted on release.
type RunLock struct {
	Owner      string
	Job        string
	RunID      string
	Stage      Stage
	AcquiredAt time.Time
	UpdatedAt  time.Time
}

// JobStatus is the answer to a consistency check against external job state.
type JobStatus string

const (
	JobRunning JobStatus = "running"
	JobIdle    JobStatus = "idle"
	// JobFailed means external state claims the job is in progress but the
	// lock is absent or stale; callers must flip their persisted status to
	// failed rather than waiting forever.
	JobFailed JobStatus = "failed"
)

// LockTable is the in-process mutual-exclusion table for pipeline runs.
// Acquire is an atomic check-and-acquire: two callers can never both hold the
// lock for the same key. Stage updates, heartbeats and release are fenced by
// the acquiring run's id, so a run whose stale lock was replaced cannot
// mutate its successor's lock. Safe for concurrent use.
type LockTable struct {
	mu         sync.Mutex
	locks      map[string]*RunLock
	staleAfter time.Duration
	clock      func() time.Time
}

// NewLockTable creates a table whose locks go stale after staleAfter without
// a stage update.
func NewLockTable(staleAfter time.Duration) *LockTable {
	return &LockTable{
		locks:      make(map[string]*RunLock),
		staleAfter: staleAfter,
		clock:      time.Now,
	}
}

func lockKey(owner, job string) string { return owner + "|" + job }

// Acquire creates the lock for (owner, job) and returns it with true, or
// returns false when a live lock already exists. "Already locked" is an
// ordinary condition for callers, not an error. A stale leftover lock from a
// crashed run is replaced.
func (t *LockTable) Acquire(owner, job, runID string) (RunLock, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := lockKey(owner, job)
	if existing, ok := t.locks[key]; ok && !t.staleLocked(existing) {
		return RunLock{}, false
	}
	now := t.clock()
	lock := &RunLock{
		Owner:      owner,
		Job:        job,
		RunID:      runID,
		Stage:      StageKeywordGeneration,
		AcquiredAt: now,
		UpdatedAt:  now,
	}
	t.locks[key] = lock
	return *lock, true
}

// UpdateStage overwrites the recorded stage and refreshes the liveness
// timestamp. Idempotent; updating a released lock, or one whose runID no
// longer matches (the caller's stale lock was replaced by a newer run), is a
// no-op returning false.
func (t *LockTable) UpdateStage(owner, job, runID string, stage Stage) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[lockKey(owner, job)]
	if !ok || lock.RunID != runID {
		return false
	}
	lock.Stage = stage
	lock.UpdatedAt = t.clock()
	return true
}

// Heartbeat refreshes the liveness timestamp without changing the stage.
// Fenced by runID like UpdateStage.
func (t *LockTable) Heartbeat(owner, job, runID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[lockKey(owner, job)]
	if !ok || lock.RunID != runID {
		return false
	}
	lock.UpdatedAt = t.clock()
	return true
}

// Release deletes the lock. completed=true marks the run's terminal stage as
// success, false as abandoned/failed; the final stage is returned for
// callers persisting job status. A run whose lock was already replaced by a
// newer run (stale takeover) must not delete the new owner's lock, so release
// is fenced by runID as well.
func (t *LockTable) Release(owner, job, runID string, completed bool) (Stage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := lockKey(owner, job)
	lock, ok := t.locks[key]
	if !ok || lock.RunID != runID {
		return "", false
	}
	delete(t.locks, key)
	if completed {
		return StageCompleted, true
	}
	return StageFailed, true
}

// CurrentStage returns the stage recorded for (owner, job), if a live lock
// exists.
func (t *LockTable) CurrentStage(owner, job string) (Stage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[lockKey(owner, job)]
	if !ok || t.staleLocked(lock) {
		return "", false
	}
	return lock.Stage, true
}

// IsRunning reports whether a live, non-stale lock exists for (owner, job).
func (t *LockTable) IsRunning(owner, job string) bool {
	_, ok := t.CurrentStage(owner, job)
	return ok
}

// CheckStatus reconciles the lock table with externally persisted job state.
// When the external record says the job is in progress but no live lock
// backs it, the job is reported failed so the caller can self-heal instead of
// polling forever.
func (t *LockTable) CheckStatus(owner, job string, externalSaysRunning bool) JobStatus {
	running := t.IsRunning(owner, job)
	switch {
	case running:
		return JobRunning
	case externalSaysRunning:
		return JobFailed
	default:
		return JobIdle
	}
}

// ReapStale removes and returns all stale locks. Intended for periodic
// housekeeping; Acquire also replaces stale locks lazily.
func (t *LockTable) ReapStale() []RunLock {
	t.mu.Lock()
	defer t.mu.Unlock()

	var reaped []RunLock
	for key, lock := range t.locks {
		if t.staleLocked(lock) {
			reaped = append(reaped, *lock)
			delete(t.locks, key)
		}
	}
	return reaped
}

// staleLocked reports whether lock has gone stale: a non-terminal stage with
// no liveness signal inside the timeout window. Caller holds t.mu.
func (t *LockTable) staleLocked(lock *RunLock) bool {
	if lock.Stage.Terminal() {
		return false
	}
	return t.clock().Sub(lock.UpdatedAt) > t.staleAfter
}
