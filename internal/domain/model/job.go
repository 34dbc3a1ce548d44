// Package model defines the core data types used throughout the sportsync job system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobKey identifies a job definition.
type JobKey string

// JobRunStatus represents the lifecycle status of a job run.
type JobRunStatus string

// TriggerKind distinguishes scheduler-driven runs from operator-driven runs.
type TriggerKind string

const (
	// JobLeaguesSeed seeds league reference data from the provider.
	JobLeaguesSeed JobKey = "leagues_seed"
	// JobFixturesSync syncs upcoming fixtures within a lookahead window.
	JobFixturesSync JobKey = "fixtures_sync"
	// JobFixturesLiveSync syncs fixtures currently in play.
	JobFixturesLiveSync JobKey = "fixtures_live_sync"
	// JobOddsSync syncs odds for fixtures within a lookahead window.
	JobOddsSync JobKey = "odds_sync"
	// JobFixtureRecovery reconciles fixtures stuck in a pre-match state past kickoff.
	JobFixtureRecovery JobKey = "fixture_recovery"

	// RunStatusRunning indicates a job run is currently executing.
	RunStatusRunning JobRunStatus = "running"
	// RunStatusSuccess indicates a job run finished successfully.
	RunStatusSuccess JobRunStatus = "success"
	// RunStatusFailed indicates a job run finished with an error.
	RunStatusFailed JobRunStatus = "failed"
	// RunStatusSkipped indicates a job run was skipped without executing.
	RunStatusSkipped JobRunStatus = "skipped"

	// TriggerAuto marks runs initiated by the cron scheduler.
	TriggerAuto TriggerKind = "auto"
	// TriggerManual marks runs initiated by an operator or API call.
	TriggerManual TriggerKind = "manual"
)

// Valid returns true if the JobRunStatus is valid.
func (s JobRunStatus) Valid() bool {
	return s == RunStatusRunning || s == RunStatusSuccess || s == RunStatusFailed ||
		s == RunStatusSkipped
}

// Terminal returns true if the status is a terminal state.
func (s JobRunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed || s == RunStatusSkipped
}

// Valid returns true if the TriggerKind is valid.
func (t TriggerKind) Valid() bool {
	return t == TriggerAuto || t == TriggerManual
}

// UnmarshalText implements encoding.TextUnmarshaler for TriggerKind.
func (t *TriggerKind) UnmarshalText(text []byte) error {
	v := TriggerKind(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid TriggerKind: %q", v)
	}
	*t = v
	return nil
}

// JobDefinition is the static catalog entry for a job: its identity plus the
// defaults seeded into the durable config store. Seeding is create-only;
// operator edits to the persisted row are never overwritten.
type JobDefinition struct {
	Key          JobKey          `json:"key"`
	Description  string          `json:"description"`
	Enabled      bool            `json:"enabled"`
	ScheduleCron *string         `json:"schedule_cron,omitempty"` // nil = unscheduled
	Meta         json.RawMessage `json:"meta,omitempty"`
}

// JobConfig is the persisted, operator-mutable form of a JobDefinition.
type JobConfig struct {
	Key          JobKey          `json:"key"           db:"job_key"`
	Description  string          `json:"description"   db:"description"`
	Enabled      bool            `json:"enabled"       db:"enabled"`
	ScheduleCron *string         `json:"schedule_cron" db:"schedule_cron"`
	Meta         json.RawMessage `json:"meta"          db:"meta"`
	CreatedAt    time.Time       `json:"created_at"    db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"    db:"updated_at"`
}

// JobRun represents one execution of a job.
type JobRun struct {
	ID           string          `json:"id"                     db:"id"`
	JobKey       JobKey          `json:"job_key"                db:"job_key"`
	Status       JobRunStatus    `json:"status"                 db:"status"`
	Trigger      TriggerKind     `json:"trigger"                db:"trigger"`
	TriggeredBy  *string         `json:"triggered_by,omitempty" db:"triggered_by"`
	StartedAt    time.Time       `json:"started_at"             db:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"  db:"finished_at"`
	DurationMs   *int64          `json:"duration_ms,omitempty"  db:"duration_ms"`
	RowsAffected int64           `json:"rows_affected"          db:"rows_affected"`
	Meta         json.RawMessage `json:"meta,omitempty"         db:"meta"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	ErrorDetail  *string         `json:"error_detail,omitempty"  db:"error_detail"`
}

// FixturesSyncMeta is the typed meta shape for the fixtures sync jobs.
type FixturesSyncMeta struct {
	// LookaheadDays is how far ahead of now the upcoming-fixtures window reaches.
	LookaheadDays int `json:"lookahead_days"`
	// LeagueIDs restricts the sync to these external league ids; empty = all seeded leagues.
	LeagueIDs []int64 `json:"league_ids,omitempty"`
}

// OddsSyncMeta is the typed meta shape for the odds sync job.
type OddsSyncMeta struct {
	// LookaheadHours is how far ahead of now the odds window reaches.
	LookaheadHours int `json:"lookahead_hours"`
	// LeagueIDs restricts the sync to these external league ids; empty = all seeded leagues.
	LeagueIDs []int64 `json:"league_ids,omitempty"`
}

// RecoveryMeta is the typed meta shape for the fixture recovery job.
type RecoveryMeta struct {
	GraceMinutes    int `json:"grace_minutes"`
	MaxOverdueHours int `json:"max_overdue_hours"`
}

// DecodeMeta decodes a job config's opaque meta blob into the typed shape the
// consuming run function expects. Each run function knows its own shape; the
// storage-facing type stays a generic JSON document.
func DecodeMeta(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode job meta: %w", err)
	}
	return nil
}

// EncodeMeta serializes a typed meta shape for storage.
func EncodeMeta(in any) (json.RawMessage, error) {
	if in == nil {
		return nil, nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode job meta: %w", err)
	}
	return b, nil
}

// ErrNoMeta is returned by typed meta accessors when a required meta blob is absent.
var ErrNoMeta = errors.New("job config has no meta")
