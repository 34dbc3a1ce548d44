package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/data/pgxutil"
	"github.com/matchday/sportsync/internal/domain/fixture"
	"github.com/matchday/sportsync/internal/domain/model"
)

// FixtureRepoConfig holds configuration options for the fixture repository.
type FixtureRepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// FixtureRepo persists fixtures keyed by provider external id.
type FixtureRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewFixtureRepo creates a new FixtureRepo instance with the given database connection and configuration.
func NewFixtureRepo(db *sql.DB, cfg FixtureRepoConfig) *FixtureRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &FixtureRepo{DB: db, timeProvider: tp, logger: logger}
}

const fixtureColumns = `
  id,
  external_id,
  league_external_id,
  season,
  home_team,
  away_team,
  status,
  kickoff_at,
  home_score,
  away_score,
  result,
  has_odds,
  created_at,
  updated_at
`

// GetByExternalIDs loads the stored fixtures for the given external ids in
// one round trip, keyed by external id. Missing ids are simply absent from
// the map.
func (r *FixtureRepo) GetByExternalIDs(ctx context.Context, externalIDs []int64) (map[int64]*model.Fixture, error) {
	out := make(map[int64]*model.Fixture, len(externalIDs))
	if len(externalIDs) == 0 {
		return out, nil
	}

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx,
			`SELECT `+fixtureColumns+` FROM fixtures WHERE external_id = ANY($1)`, externalIDs)
		if queryErr != nil {
			return queryErr
		}
		fixtures, collectErr := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Fixture])
		if collectErr != nil {
			return collectErr
		}
		for _, f := range fixtures {
			out[f.ExternalID] = f
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get fixtures by external ids: %w", err)
	}
	return out, nil
}

// Upsert writes a fixture keyed on external_id and reports whether the row
// was inserted or updated. xmax = 0 only on a freshly inserted row version.
func (r *FixtureRepo) Upsert(ctx context.Context, fixture *model.Fixture) (core.UpsertAction, error) {
	now := r.timeProvider.Now().UTC()
	if fixture.ID == "" {
		fixture.ID = uuid.NewString()
	}

	query := `
		INSERT INTO fixtures (
			id, external_id, league_external_id, season, home_team, away_team,
			status, kickoff_at, home_score, away_score, result, has_odds, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (external_id) DO UPDATE SET
			league_external_id = EXCLUDED.league_external_id,
			season = EXCLUDED.season,
			home_team = EXCLUDED.home_team,
			away_team = EXCLUDED.away_team,
			status = EXCLUDED.status,
			kickoff_at = EXCLUDED.kickoff_at,
			home_score = EXCLUDED.home_score,
			away_score = EXCLUDED.away_score,
			result = EXCLUDED.result,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.DB.QueryRowContext(ctx, query,
		fixture.ID, fixture.ExternalID, fixture.LeagueExternalID, fixture.Season,
		fixture.HomeTeam, fixture.AwayTeam, fixture.Status, fixture.KickoffAt.UTC(),
		fixture.HomeScore, fixture.AwayScore, fixture.Result, fixture.HasOdds, now,
	).Scan(&inserted)
	if err != nil {
		return "", fmt.Errorf("upsert fixture %d: %w", fixture.ExternalID, err)
	}

	if inserted {
		return core.UpsertInserted, nil
	}
	return core.UpsertUpdated, nil
}

// ListOverdueNotStarted returns fixtures whose kickoff fell inside the
// overdue window but whose stored status never left the pre-match state.
func (r *FixtureRepo) ListOverdueNotStarted(ctx context.Context, q core.OverdueQuery) ([]*model.Fixture, error) {
	now := r.timeProvider.Now().UTC()
	newest := now.Add(-q.Grace)
	oldest := now.Add(-q.MaxOverdue)

	var fixtures []*model.Fixture
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx,
			`SELECT `+fixtureColumns+`
			 FROM fixtures
			 WHERE status = $1 AND kickoff_at <= $2 AND kickoff_at >= $3
			 ORDER BY kickoff_at`,
			model.StatusNotStarted, newest, oldest)
		if queryErr != nil {
			return queryErr
		}
		collected, collectErr := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.Fixture])
		if collectErr != nil {
			return collectErr
		}
		fixtures = collected
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list overdue fixtures: %w", err)
	}
	return fixtures, nil
}

// StatusesByExternalIDs returns the stored status per external id.
func (r *FixtureRepo) StatusesByExternalIDs(ctx context.Context, externalIDs []int64) (map[int64]model.FixtureStatus, error) {
	out := make(map[int64]model.FixtureStatus, len(externalIDs))
	if len(externalIDs) == 0 {
		return out, nil
	}

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx,
			`SELECT external_id, status FROM fixtures WHERE external_id = ANY($1)`, externalIDs)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()
		for rows.Next() {
			var externalID int64
			var status model.FixtureStatus
			if scanErr := rows.Scan(&externalID, &status); scanErr != nil {
				return scanErr
			}
			out[externalID] = status
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("get fixture statuses: %w", err)
	}
	return out, nil
}

// MarkHasOdds flags the given fixtures as having at least one stored odd.
// Returns the number of fixtures newly flagged.
func (r *FixtureRepo) MarkHasOdds(ctx context.Context, externalIDs []int64) (int64, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}

	res, err := r.DB.ExecContext(ctx,
		`UPDATE fixtures SET has_odds = TRUE, updated_at = $2
		 WHERE external_id = ANY($1) AND NOT has_odds`,
		externalIDs, r.timeProvider.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("mark fixtures has_odds: %w", err)
	}
	return res.RowsAffected()
}

// CoverageByLeague rolls up fixture counts per league in one aggregate query.
func (r *FixtureRepo) CoverageByLeague(ctx context.Context) (map[int64]core.CoverageCounts, error) {
	liveStatuses := fixture.StatusesInPhase(fixture.PhaseLive)
	live := make([]string, len(liveStatuses))
	for i, s := range liveStatuses {
		live[i] = string(s)
	}

	out := map[int64]core.CoverageCounts{}
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx,
			`SELECT league_external_id,
			        count(*) AS fixtures,
			        count(*) FILTER (WHERE status = ANY($1)) AS live,
			        count(*) FILTER (WHERE has_odds) AS with_odds
			 FROM fixtures
			 GROUP BY league_external_id`, live)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()
		for rows.Next() {
			var leagueID int64
			var counts core.CoverageCounts
			if scanErr := rows.Scan(&leagueID, &counts.Fixtures, &counts.Live, &counts.WithOdds); scanErr != nil {
				return scanErr
			}
			out[leagueID] = counts
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("coverage by league: %w", err)
	}
	return out, nil
}

// GetByExternalID retrieves one fixture by provider external id.
func (r *FixtureRepo) GetByExternalID(ctx context.Context, externalID int64) (*model.Fixture, error) {
	var fixture *model.Fixture
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx,
			`SELECT `+fixtureColumns+` FROM fixtures WHERE external_id = $1`, externalID)
		if queryErr != nil {
			return queryErr
		}
		collected, collectErr := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Fixture])
		if collectErr != nil {
			if errors.Is(collectErr, pgx.ErrNoRows) {
				return ErrFixtureNotFound
			}
			return collectErr
		}
		fixture = collected
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrFixtureNotFound) {
			return nil, fmt.Errorf("fixture %d: %w", externalID, ErrFixtureNotFound)
		}
		return nil, fmt.Errorf("get fixture: %w", err)
	}
	return fixture, nil
}
