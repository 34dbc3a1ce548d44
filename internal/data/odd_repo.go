package data

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/data/pgxutil"
	"github.com/matchday/sportsync/internal/domain/model"
)

// OddRepoConfig holds configuration options for the odd repository.
type OddRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// OddRepo persists odds keyed by (fixture external id, market, label).
type OddRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewOddRepo creates a new OddRepo instance with the given database connection and configuration.
func NewOddRepo(db *sql.DB, cfg OddRepoConfig) *OddRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OddRepo{DB: db, timeProvider: tp, logger: logger}
}

const oddColumns = `
  id,
  fixture_external_id,
  market,
  label,
  price,
  bookmaker,
  created_at,
  updated_at
`

// ListByFixtureExternalIDs loads stored odds for the given fixtures, grouped
// by fixture external id.
func (r *OddRepo) ListByFixtureExternalIDs(ctx context.Context, externalIDs []int64) (map[int64][]*model.Odd, error) {
	out := make(map[int64][]*model.Odd, len(externalIDs))
	if len(externalIDs) == 0 {
		return out, nil
	}

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx,
			`SELECT `+oddColumns+` FROM odds WHERE fixture_external_id = ANY($1)
			 ORDER BY fixture_external_id, market, label`, externalIDs)
		if queryErr != nil {
			return queryErr
		}
		odds, collectErr := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Odd])
		if collectErr != nil {
			return collectErr
		}
		for _, o := range odds {
			out[o.FixtureExternalID] = append(out[o.FixtureExternalID], o)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list odds by fixtures: %w", err)
	}
	return out, nil
}

// Upsert writes one odd keyed on (fixture_external_id, market, label) and
// reports whether the row was inserted or updated.
func (r *OddRepo) Upsert(ctx context.Context, odd *model.Odd) (core.UpsertAction, error) {
	now := r.timeProvider.Now().UTC()
	if odd.ID == "" {
		odd.ID = uuid.NewString()
	}

	query := `
		INSERT INTO odds (id, fixture_external_id, market, label, price, bookmaker, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (fixture_external_id, market, label) DO UPDATE SET
			price = EXCLUDED.price,
			bookmaker = EXCLUDED.bookmaker,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.DB.QueryRowContext(ctx, query,
		odd.ID, odd.FixtureExternalID, odd.Market, odd.Label, odd.Price, odd.Bookmaker, now,
	).Scan(&inserted)
	if err != nil {
		return "", fmt.Errorf("upsert odd %d/%s/%s: %w", odd.FixtureExternalID, odd.Market, odd.Label, err)
	}

	if inserted {
		return core.UpsertInserted, nil
	}
	return core.UpsertUpdated, nil
}

// DeleteByFixtureExternalID removes all odds for one fixture. Used when a
// fixture is cancelled and its markets are void.
func (r *OddRepo) DeleteByFixtureExternalID(ctx context.Context, externalID int64) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM odds WHERE fixture_external_id = $1`, externalID)
	if err != nil {
		return 0, fmt.Errorf("delete odds for fixture %d: %w", externalID, err)
	}
	return res.RowsAffected()
}
