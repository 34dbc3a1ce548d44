package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// ErrJobConfigNotFound is returned when a job's persisted config row is
	// missing. This signals a deployment/seeding defect, not a runtime
	// condition to recover from.
	ErrJobConfigNotFound = errors.New("job config not found")

	// ErrJobRunNotFound is returned when a job run is not found.
	ErrJobRunNotFound = errors.New("job run not found")

	// ErrSeedBatchNotFound is returned when a seed batch is not found.
	ErrSeedBatchNotFound = errors.New("seed batch not found")

	// ErrSeedItemExists is returned when an item key is tracked twice within
	// the same batch. Re-tracking a key is a caller bug, never merged.
	ErrSeedItemExists = errors.New("seed item already tracked for this batch")

	// ErrFixtureNotFound is returned when a fixture is not found.
	ErrFixtureNotFound = errors.New("fixture not found")

	// ErrLockNotAcquired is returned when an advisory lock is held elsewhere.
	// Callers typically map this to an "already running" response.
	ErrLockNotAcquired = errors.New("advisory lock not acquired")

	// ErrLockTimeout is returned when locked work outlives the caller's wait.
	// The lock itself is released only once the work settles.
	ErrLockTimeout = errors.New("advisory lock work timed out")
)
