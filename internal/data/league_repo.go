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

// LeagueRepoConfig holds configuration options for the league repository.
type LeagueRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// LeagueRepo persists league reference data.
type LeagueRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewLeagueRepo creates a new LeagueRepo instance with the given database connection and configuration.
func NewLeagueRepo(db *sql.DB, cfg LeagueRepoConfig) *LeagueRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &LeagueRepo{DB: db, timeProvider: tp, logger: logger}
}

// ExistingExternalIDs returns which of the given external ids already have a
// league row, as a membership set.
func (r *LeagueRepo) ExistingExternalIDs(ctx context.Context, externalIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(externalIDs))
	if len(externalIDs) == 0 {
		return out, nil
	}

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx,
			`SELECT external_id FROM leagues WHERE external_id = ANY($1)`, externalIDs)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()
		for rows.Next() {
			var externalID int64
			if scanErr := rows.Scan(&externalID); scanErr != nil {
				return scanErr
			}
			out[externalID] = true
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("check existing leagues: %w", err)
	}
	return out, nil
}

// Upsert writes a league keyed on external_id and reports whether the row
// was inserted or updated.
func (r *LeagueRepo) Upsert(ctx context.Context, league *model.League) (core.UpsertAction, error) {
	now := r.timeProvider.Now().UTC()
	if league.ID == "" {
		league.ID = uuid.NewString()
	}

	query := `
		INSERT INTO leagues (id, external_id, name, country, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (external_id) DO UPDATE SET
			name = EXCLUDED.name,
			country = EXCLUDED.country,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.DB.QueryRowContext(ctx, query,
		league.ID, league.ExternalID, league.Name, league.Country, now,
	).Scan(&inserted)
	if err != nil {
		return "", fmt.Errorf("upsert league %d: %w", league.ExternalID, err)
	}

	if inserted {
		return core.UpsertInserted, nil
	}
	return core.UpsertUpdated, nil
}

// List returns all leagues ordered by external id.
func (r *LeagueRepo) List(ctx context.Context) ([]*model.League, error) {
	var leagues []*model.League
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx,
			`SELECT id, external_id, name, country, created_at, updated_at
			 FROM leagues ORDER BY external_id`)
		if queryErr != nil {
			return queryErr
		}
		collected, collectErr := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.League])
		if collectErr != nil {
			return collectErr
		}
		leagues = collected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list leagues: %w", err)
	}
	return leagues, nil
}

// ExternalIDs returns the external ids of all seeded leagues.
func (r *LeagueRepo) ExternalIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, `SELECT external_id FROM leagues ORDER BY external_id`)
		if queryErr != nil {
			return queryErr
		}
		collected, collectErr := pgx.CollectRows(rows, pgx.RowTo[int64])
		if collectErr != nil {
			return collectErr
		}
		ids = collected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list league external ids: %w", err)
	}
	return ids, nil
}
