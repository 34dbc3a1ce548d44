package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/data/pgxutil"
	"github.com/matchday/sportsync/internal/domain/model"
)

// SeedBatchRepoConfig holds configuration options for the seed batch repository.
type SeedBatchRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// SeedBatchRepo records per-batch and per-item outcomes for sync runs.
type SeedBatchRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewSeedBatchRepo creates a new SeedBatchRepo instance with the given database connection and configuration.
func NewSeedBatchRepo(db *sql.DB, cfg SeedBatchRepoConfig) *SeedBatchRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SeedBatchRepo{DB: db, timeProvider: tp, logger: logger}
}

const seedBatchColumns = `
  id,
  name,
  version,
  params,
  status,
  items_total,
  items_success,
  items_failed,
  meta,
  error_message,
  started_at,
  finished_at
`

// StartBatch inserts a new batch in the running state and returns it.
func (r *SeedBatchRepo) StartBatch(ctx context.Context, params core.StartBatchParams) (*model.SeedBatch, error) {
	batch := &model.SeedBatch{
		ID:        uuid.NewString(),
		Name:      params.Name,
		Version:   params.Version,
		Params:    params.Params,
		Status:    model.BatchStatusRunning,
		StartedAt: r.timeProvider.Now().UTC(),
	}

	query := `
		INSERT INTO seed_batches (id, name, version, params, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.DB.ExecContext(ctx, query,
		batch.ID, batch.Name, batch.Version, nullableJSON(batch.Params), batch.Status, batch.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("insert seed batch: %w", err)
	}

	return batch, nil
}

// TrackItem records the outcome of a single item within a batch. Each item
// key is accounted at most once per batch; a second attempt returns
// ErrSeedItemExists and leaves the first record intact.
func (r *SeedBatchRepo) TrackItem(ctx context.Context, params core.TrackItemParams) error {
	var errMsg *string
	if params.ErrMsg != "" {
		msg := truncate(params.ErrMsg, maxErrorMessageLen)
		errMsg = &msg
	}

	query := `
		INSERT INTO seed_items (id, batch_id, item_key, status, error_message, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.DB.ExecContext(ctx, query,
		uuid.NewString(), params.BatchID, params.ItemKey, params.Status, errMsg,
		nullableJSON(params.Meta), r.timeProvider.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("item %s in batch %s: %w", params.ItemKey, params.BatchID, ErrSeedItemExists)
		}
		return fmt.Errorf("insert seed item: %w", err)
	}
	return nil
}

// FinishBatch finalizes a batch exactly once, deriving the item counters from
// the recorded items so the rollup can never drift from the per-item rows.
// Finishing an already-finished batch returns ErrSeedBatchNotFound.
func (r *SeedBatchRepo) FinishBatch(ctx context.Context, params core.FinishBatchParams) error {
	if params.Status == model.BatchStatusRunning {
		return fmt.Errorf("status %q is not terminal", params.Status)
	}

	var errMsg *string
	if params.ErrMsg != "" {
		msg := truncate(params.ErrMsg, maxErrorMessageLen)
		errMsg = &msg
	}

	query := `
		UPDATE seed_batches b
		SET status = $2,
		    finished_at = $3,
		    meta = $4,
		    error_message = $5,
		    items_total = c.total,
		    items_success = c.success,
		    items_failed = c.failed
		FROM (
			SELECT count(*) AS total,
			       count(*) FILTER (WHERE status = 'success') AS success,
			       count(*) FILTER (WHERE status = 'failed') AS failed
			FROM seed_items
			WHERE batch_id = $1
		) c
		WHERE b.id = $1 AND b.status = 'running'
	`
	res, err := r.DB.ExecContext(ctx, query,
		params.ID, params.Status, r.timeProvider.Now().UTC(), nullableJSON(params.Meta), errMsg)
	if err != nil {
		return fmt.Errorf("finish seed batch: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finish seed batch %s: %w", params.ID, ErrSeedBatchNotFound)
	}
	return nil
}

// GetByID retrieves a batch by id.
func (r *SeedBatchRepo) GetByID(ctx context.Context, id string) (*model.SeedBatch, error) {
	var batch *model.SeedBatch
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, `SELECT `+seedBatchColumns+` FROM seed_batches WHERE id = $1`, id)
		if queryErr != nil {
			return queryErr
		}
		collected, collectErr := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.SeedBatch])
		if collectErr != nil {
			if errors.Is(collectErr, pgx.ErrNoRows) {
				return ErrSeedBatchNotFound
			}
			return collectErr
		}
		batch = collected
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSeedBatchNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get seed batch: %w", err)
	}
	return batch, nil
}

// ListItems returns the items recorded for a batch, ordered by item key.
func (r *SeedBatchRepo) ListItems(ctx context.Context, batchID string) ([]*model.SeedItem, error) {
	var items []*model.SeedItem
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx,
			`SELECT id, batch_id, item_key, status, error_message, meta, created_at
			 FROM seed_items WHERE batch_id = $1 ORDER BY item_key`, batchID)
		if queryErr != nil {
			return queryErr
		}
		collected, collectErr := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.SeedItem])
		if collectErr != nil {
			return collectErr
		}
		items = collected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list seed items: %w", err)
	}
	return items, nil
}

// DeleteOldBatches deletes finished batches older than MaxAge, up to
// BatchSize rows per call. Items are removed by the FK cascade.
func (r *SeedBatchRepo) DeleteOldBatches(ctx context.Context, params core.DeleteOldBatchesParams) (int64, error) {
	cutoff := r.timeProvider.Now().UTC().Add(-params.MaxAge)

	query := `
		DELETE FROM seed_batches
		WHERE id IN (
			SELECT id FROM seed_batches
			WHERE status <> 'running' AND started_at < $1
			LIMIT $2
		)
	`
	res, err := r.DB.ExecContext(ctx, query, cutoff, params.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("delete old batches: %w", err)
	}
	return res.RowsAffected()
}
