package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/data/pgxutil"
	"github.com/matchday/sportsync/internal/domain/model"
)

// JobConfigRepoConfig holds configuration options for the job config repository.
type JobConfigRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobConfigRepo persists job definitions. Definitions are seeded from the
// built-in catalog and then owned by operators.
type JobConfigRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobConfigRepo creates a new JobConfigRepo instance with the given database connection and configuration.
func NewJobConfigRepo(db *sql.DB, cfg JobConfigRepoConfig) *JobConfigRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &JobConfigRepo{DB: db, timeProvider: tp, logger: logger}
}

const jobConfigColumns = `
  job_key,
  description,
  enabled,
  schedule_cron,
  meta,
  created_at,
  updated_at
`

// SeedDefaults inserts catalog definitions that do not yet exist. Existing
// rows are never touched, so operator edits survive restarts and deploys.
func (r *JobConfigRepo) SeedDefaults(ctx context.Context, defs []model.JobDefinition) error {
	now := r.timeProvider.Now().UTC()

	query := `
		INSERT INTO job_configs (job_key, description, enabled, schedule_cron, meta, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (job_key) DO NOTHING
	`

	seeded := 0
	for _, def := range defs {
		res, err := r.DB.ExecContext(ctx, query,
			def.Key, def.Description, def.Enabled, def.ScheduleCron, nullableJSON(def.Meta), now)
		if err != nil {
			return fmt.Errorf("seed job config %s: %w", def.Key, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		seeded += int(affected)
	}

	if seeded > 0 {
		r.logger.InfoContext(ctx, "seeded default job configs", "count", seeded)
	}
	return nil
}

// GetByKey retrieves a job definition by key.
func (r *JobConfigRepo) GetByKey(ctx context.Context, key model.JobKey) (*model.JobConfig, error) {
	var cfg *model.JobConfig
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, `SELECT `+jobConfigColumns+` FROM job_configs WHERE job_key = $1`, key)
		if queryErr != nil {
			return queryErr
		}
		collected, collectErr := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.JobConfig])
		if collectErr != nil {
			if errors.Is(collectErr, pgx.ErrNoRows) {
				return ErrJobConfigNotFound
			}
			return collectErr
		}
		cfg = collected
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrJobConfigNotFound) {
			return nil, fmt.Errorf("job config %s: %w", key, ErrJobConfigNotFound)
		}
		return nil, fmt.Errorf("get job config: %w", err)
	}
	return cfg, nil
}

// List returns all job definitions ordered by key.
func (r *JobConfigRepo) List(ctx context.Context) ([]*model.JobConfig, error) {
	var configs []*model.JobConfig
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, `SELECT `+jobConfigColumns+` FROM job_configs ORDER BY job_key`)
		if queryErr != nil {
			return queryErr
		}
		collected, collectErr := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.JobConfig])
		if collectErr != nil {
			return collectErr
		}
		configs = collected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list job configs: %w", err)
	}
	return configs, nil
}

// ListEnabled returns enabled job definitions that carry a cron schedule.
func (r *JobConfigRepo) ListEnabled(ctx context.Context) ([]*model.JobConfig, error) {
	var configs []*model.JobConfig
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx,
			`SELECT `+jobConfigColumns+` FROM job_configs WHERE enabled AND schedule_cron IS NOT NULL ORDER BY job_key`)
		if queryErr != nil {
			return queryErr
		}
		collected, collectErr := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.JobConfig])
		if collectErr != nil {
			return collectErr
		}
		configs = collected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list enabled job configs: %w", err)
	}
	return configs, nil
}

// Update applies operator edits to a job definition.
func (r *JobConfigRepo) Update(ctx context.Context, key model.JobKey, update core.JobConfigUpdate) error {
	now := r.timeProvider.Now().UTC()

	query := `
		UPDATE job_configs
		SET enabled = COALESCE($2, enabled),
		    schedule_cron = CASE WHEN $4 THEN NULL ELSE COALESCE($3, schedule_cron) END,
		    meta = COALESCE($5, meta),
		    updated_at = $6
		WHERE job_key = $1
	`
	res, err := r.DB.ExecContext(ctx, query,
		key, update.Enabled, update.ScheduleCron, update.ClearCron, nullableJSON(update.Meta), now)
	if err != nil {
		return fmt.Errorf("update job config: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job config %s: %w", key, ErrJobConfigNotFound)
	}
	return nil
}
