// Package core provides the business ports and job catalog for the sportsync system.
package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matchday/sportsync/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// Service implementations should depend on these interfaces, not concrete implementations.

// StartRunParams groups parameters for JobRunRepository.StartRun.
type StartRunParams struct {
	JobKey      model.JobKey
	Trigger     model.TriggerKind
	TriggeredBy *string
	Meta        json.RawMessage
}

// FinishRunParams groups parameters for JobRunRepository.FinishRun.
type FinishRunParams struct {
	ID           string
	StartedAt    time.Time
	Status       model.JobRunStatus
	RowsAffected int64
	Meta         json.RawMessage
	ErrMessage   string
	ErrDetail    string
}

// DeleteOldRunsParams groups parameters for JobRunRepository.DeleteOldRuns.
type DeleteOldRunsParams struct {
	MaxAge    time.Duration
	BatchSize int
}

// JobRunRepository defines the interface for job run lifecycle tracking.
type JobRunRepository interface {
	StartRun(ctx context.Context, params StartRunParams) (*model.JobRun, error)
	FinishRun(ctx context.Context, params FinishRunParams) error
	MarkOrphanedRuns(ctx context.Context, maxAge time.Duration) (int64, error)
	DeleteOldRuns(ctx context.Context, params DeleteOldRunsParams) (int64, error)
	GetByID(ctx context.Context, id string) (*model.JobRun, error)
	ListRecent(ctx context.Context, jobKey *model.JobKey, limit int) ([]*model.JobRun, error)
}

// JobConfigUpdate groups the operator-editable fields of a job definition.
type JobConfigUpdate struct {
	Enabled      *bool
	ScheduleCron *string
	ClearCron    bool
	Meta         []byte
}

// JobConfigRepository defines the interface for durable job definitions.
type JobConfigRepository interface {
	SeedDefaults(ctx context.Context, defs []model.JobDefinition) error
	GetByKey(ctx context.Context, key model.JobKey) (*model.JobConfig, error)
	List(ctx context.Context) ([]*model.JobConfig, error)
	ListEnabled(ctx context.Context) ([]*model.JobConfig, error)
	Update(ctx context.Context, key model.JobKey, update JobConfigUpdate) error
}

// StartBatchParams groups parameters for SeedBatchRepository.StartBatch.
type StartBatchParams struct {
	Name    string
	Version string
	Params  json.RawMessage
}

// TrackItemParams groups parameters for SeedBatchRepository.TrackItem.
type TrackItemParams struct {
	BatchID string
	ItemKey string
	Status  model.SeedItemStatus
	ErrMsg  string
	Meta    json.RawMessage
}

// FinishBatchParams groups parameters for SeedBatchRepository.FinishBatch.
type FinishBatchParams struct {
	ID     string
	Status model.SeedBatchStatus
	Meta   json.RawMessage
	ErrMsg string
}

// DeleteOldBatchesParams groups parameters for SeedBatchRepository.DeleteOldBatches.
type DeleteOldBatchesParams struct {
	MaxAge    time.Duration
	BatchSize int
}

// SeedBatchRepository defines the interface for batch and item accounting.
type SeedBatchRepository interface {
	StartBatch(ctx context.Context, params StartBatchParams) (*model.SeedBatch, error)
	TrackItem(ctx context.Context, params TrackItemParams) error
	FinishBatch(ctx context.Context, params FinishBatchParams) error
	GetByID(ctx context.Context, id string) (*model.SeedBatch, error)
	ListItems(ctx context.Context, batchID string) ([]*model.SeedItem, error)
	DeleteOldBatches(ctx context.Context, params DeleteOldBatchesParams) (int64, error)
}

// UpsertAction reports whether an upsert created a new row or rewrote an
// existing one.
type UpsertAction string

const (
	UpsertInserted UpsertAction = "inserted"
	UpsertUpdated  UpsertAction = "updated"
)

// OverdueQuery selects fixtures stuck in the pre-match state past kickoff.
type OverdueQuery struct {
	// Grace is how long past kickoff a fixture may sit before it counts as overdue.
	Grace time.Duration
	// MaxOverdue bounds the window; older fixtures are left for manual intervention.
	MaxOverdue time.Duration
}

// CoverageCounts is the per-league fixture rollup used by coverage snapshots.
type CoverageCounts struct {
	Fixtures int
	Live     int
	WithOdds int
}

// FixtureRepository defines the interface for fixture data operations.
type FixtureRepository interface {
	CoverageByLeague(ctx context.Context) (map[int64]CoverageCounts, error)
	GetByExternalIDs(ctx context.Context, externalIDs []int64) (map[int64]*model.Fixture, error)
	GetByExternalID(ctx context.Context, externalID int64) (*model.Fixture, error)
	Upsert(ctx context.Context, fixture *model.Fixture) (UpsertAction, error)
	ListOverdueNotStarted(ctx context.Context, q OverdueQuery) ([]*model.Fixture, error)
	StatusesByExternalIDs(ctx context.Context, externalIDs []int64) (map[int64]model.FixtureStatus, error)
	MarkHasOdds(ctx context.Context, externalIDs []int64) (int64, error)
}

// OddRepository defines the interface for odd data operations.
type OddRepository interface {
	ListByFixtureExternalIDs(ctx context.Context, externalIDs []int64) (map[int64][]*model.Odd, error)
	Upsert(ctx context.Context, odd *model.Odd) (UpsertAction, error)
	DeleteByFixtureExternalID(ctx context.Context, externalID int64) (int64, error)
}

// LeagueRepository defines the interface for league reference data.
type LeagueRepository interface {
	ExistingExternalIDs(ctx context.Context, externalIDs []int64) (map[int64]bool, error)
	Upsert(ctx context.Context, league *model.League) (UpsertAction, error)
	List(ctx context.Context) ([]*model.League, error)
	ExternalIDs(ctx context.Context) ([]int64, error)
}

// LockOptions tunes a single Locker.WithLock call.
type LockOptions struct {
	// Timeout bounds how long the caller waits for fn. When it elapses the
	// caller receives a timeout error and fn's context is cancelled, but the
	// lock is held until fn actually settles. Zero means wait indefinitely.
	Timeout time.Duration
}

// Locker provides cross-process mutual exclusion keyed by name.
type Locker interface {
	WithLock(ctx context.Context, key string, opts LockOptions, fn func(context.Context) error) error
}

// CacheRepository defines the interface for caching operations.
type CacheRepository interface {
	// Set stores a value with the given key and TTL. TTL 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get retrieves a value by key. Returns nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// SetIfNotExists atomically sets a key only if it doesn't already exist.
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Health checks the health of the cache connection.
	Health(ctx context.Context) error
}

// FixtureWindow bounds a provider fixture query by kickoff time.
type FixtureWindow struct {
	From time.Time
	To   time.Time
	// LeagueIDs restricts the query to these external league ids; empty = all.
	LeagueIDs []int64
}

// ProviderClient defines the interface to the upstream sports data feed.
// External ids in returned DTOs are the provider's identifiers; all storage
// keys on our side derive from them.
type ProviderClient interface {
	FetchLeagues(ctx context.Context) ([]model.LeagueDTO, error)
	FetchFixturesBetween(ctx context.Context, window FixtureWindow) ([]model.FixtureDTO, error)
	FetchLiveFixtures(ctx context.Context, leagueIDs []int64) ([]model.FixtureDTO, error)
	FetchFixturesByIDs(ctx context.Context, externalIDs []int64) ([]model.FixtureDTO, error)
	FetchOddsBetween(ctx context.Context, window FixtureWindow) ([]model.OddDTO, error)
}
