package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/data/pgxutil"
	"github.com/matchday/sportsync/internal/domain/model"
)

const (
	// maxErrorMessageLen bounds the error message persisted on a failed run.
	maxErrorMessageLen = 500
	// maxErrorDetailLen bounds the error detail (wrapped chain) persisted on a failed run.
	maxErrorDetailLen = 4000

	orphanedRunMessage = "orphaned: run exceeded max age while still running; force-failed by reaper"
)

// JobRunRepoConfig holds configuration options for the job run repository.
type JobRunRepoConfig struct {
	// Environment is the deployment-environment tag merged into run metadata.
	// Observability only; never used to gate execution.
	Environment  string
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRunRepo tracks job run lifecycle records.
type JobRunRepo struct {
	DB           *sql.DB
	env          string
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRunRepo creates a new JobRunRepo instance with the given database connection and configuration.
func NewJobRunRepo(db *sql.DB, cfg JobRunRepoConfig) *JobRunRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobRunRepo{
		DB:           db,
		env:          cfg.Environment,
		timeProvider: tp,
		logger:       logger,
	}
}

const jobRunColumns = `
  id,
  job_key,
  status,
  trigger,
  triggered_by,
  started_at,
  finished_at,
  duration_ms,
  rows_affected,
  meta,
  error_message,
  error_detail
`

// StartRun inserts a new run in the running state and returns it. The
// returned StartedAt is the wall-clock anchor for duration computation at
// finish time.
func (r *JobRunRepo) StartRun(ctx context.Context, params core.StartRunParams) (*model.JobRun, error) {
	if !params.Trigger.Valid() {
		return nil, fmt.Errorf("invalid trigger kind %q", params.Trigger)
	}

	run := &model.JobRun{
		ID:        uuid.NewString(),
		JobKey:    params.JobKey,
		Status:    model.RunStatusRunning,
		Trigger:   params.Trigger,
		StartedAt: r.timeProvider.Now().UTC(),
		Meta:      params.Meta,
	}
	run.TriggeredBy = params.TriggeredBy

	query := `
		INSERT INTO job_runs (id, job_key, status, trigger, triggered_by, started_at, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.DB.ExecContext(ctx, query,
		run.ID, run.JobKey, run.Status, run.Trigger, run.TriggeredBy, run.StartedAt, nullableJSON(run.Meta))
	if err != nil {
		return nil, fmt.Errorf("insert job run: %w", err)
	}

	return run, nil
}

// FinishRun writes exactly one terminal status for a run. The guard on the
// current status guarantees a run is finished at most once; finishing an
// already-terminal run returns ErrJobRunNotFound.
func (r *JobRunRepo) FinishRun(ctx context.Context, params core.FinishRunParams) error {
	if !params.Status.Terminal() {
		return fmt.Errorf("status %q is not terminal", params.Status)
	}

	now := r.timeProvider.Now().UTC()
	durationMs := now.Sub(params.StartedAt).Milliseconds()
	if durationMs < 0 {
		durationMs = 0
	}

	meta, err := r.mergeEnvTag(params.Meta)
	if err != nil {
		return err
	}

	var errMsg, errDetail *string
	if params.Status == model.RunStatusFailed {
		msg := truncate(params.ErrMessage, maxErrorMessageLen)
		errMsg = &msg
		if params.ErrDetail != "" {
			detail := truncate(params.ErrDetail, maxErrorDetailLen)
			errDetail = &detail
		}
	}

	query := `
		UPDATE job_runs
		SET status = $2,
		    finished_at = $3,
		    duration_ms = $4,
		    rows_affected = $5,
		    meta = $6,
		    error_message = $7,
		    error_detail = $8
		WHERE id = $1 AND status = 'running'
	`
	res, err := r.DB.ExecContext(ctx, query,
		params.ID, params.Status, now, durationMs, params.RowsAffected, nullableJSON(meta), errMsg, errDetail)
	if err != nil {
		return fmt.Errorf("finish job run: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finish job run %s: %w", params.ID, ErrJobRunNotFound)
	}

	return nil
}

// MarkOrphanedRuns force-fails runs stuck in running for longer than maxAge.
// Idempotent: once all orphans are cleared, re-running affects zero rows.
func (r *JobRunRepo) MarkOrphanedRuns(ctx context.Context, maxAge time.Duration) (int64, error) {
	now := r.timeProvider.Now().UTC()
	cutoff := now.Add(-maxAge)

	query := `
		UPDATE job_runs
		SET status = 'failed',
		    finished_at = $1,
		    duration_ms = (EXTRACT(EPOCH FROM ($1::timestamptz - started_at)) * 1000)::bigint,
		    error_message = $2
		WHERE status = 'running' AND started_at < $3
	`
	res, err := r.DB.ExecContext(ctx, query, now, orphanedRunMessage, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark orphaned runs: %w", err)
	}

	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	if count > 0 {
		r.logger.InfoContext(ctx, "force-failed orphaned job runs", "count", count, "max_age", maxAge)
	}
	return count, nil
}

// DeleteOldRuns deletes terminal runs older than MaxAge, up to BatchSize rows
// per call to prevent long locks. Returns the number of rows deleted.
func (r *JobRunRepo) DeleteOldRuns(ctx context.Context, params core.DeleteOldRunsParams) (int64, error) {
	cutoff := r.timeProvider.Now().UTC().Add(-params.MaxAge)

	query := `
		DELETE FROM job_runs
		WHERE id IN (
			SELECT id FROM job_runs
			WHERE status <> 'running' AND started_at < $1
			LIMIT $2
		)
	`
	res, err := r.DB.ExecContext(ctx, query, cutoff, params.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("delete old runs: %w", err)
	}
	return res.RowsAffected()
}

// GetByID retrieves a job run by id.
func (r *JobRunRepo) GetByID(ctx context.Context, id string) (*model.JobRun, error) {
	var run *model.JobRun
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, `SELECT `+jobRunColumns+` FROM job_runs WHERE id = $1`, id)
		if queryErr != nil {
			return queryErr
		}
		collected, collectErr := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.JobRun])
		if collectErr != nil {
			if collectErr == pgx.ErrNoRows {
				return ErrJobRunNotFound
			}
			return collectErr
		}
		run = collected
		return nil
	})
	if err != nil {
		if err == ErrJobRunNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("get job run: %w", err)
	}
	return run, nil
}

// ListRecent returns the most recent runs, optionally filtered by job key.
func (r *JobRunRepo) ListRecent(ctx context.Context, jobKey *model.JobKey, limit int) ([]*model.JobRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + jobRunColumns + ` FROM job_runs`
	args := []any{limit}
	if jobKey != nil {
		query += ` WHERE job_key = $2`
		args = append(args, *jobKey)
	}
	query += ` ORDER BY started_at DESC LIMIT $1`

	var runs []*model.JobRun
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, query, args...)
		if queryErr != nil {
			return queryErr
		}
		collected, collectErr := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.JobRun])
		if collectErr != nil {
			return collectErr
		}
		runs = collected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list job runs: %w", err)
	}
	return runs, nil
}

// mergeEnvTag merges the deployment-environment tag into a run's meta blob.
func (r *JobRunRepo) mergeEnvTag(meta json.RawMessage) (json.RawMessage, error) {
	merged := map[string]any{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &merged); err != nil {
			// Preserve an undecodable blob rather than dropping it.
			merged = map[string]any{"meta_raw": string(meta)}
		}
	}
	if r.env != "" {
		merged["environment"] = r.env
	}
	if len(merged) == 0 {
		return nil, nil
	}

	b, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("merge run meta: %w", err)
	}
	return b, nil
}

// nullableJSON maps an empty JSON blob to NULL for storage.
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// truncate bounds a string to max bytes, marking the cut.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	const marker = "...[truncated]"
	if maxLen <= len(marker) {
		return s[:maxLen]
	}
	return s[:maxLen-len(marker)] + marker
}
