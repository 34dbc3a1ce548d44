// Package devseed populates a development database with a small set of
// leagues, fixtures, and odds so the sync and recovery paths have data to
// work against without a live provider.
package devseed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/data"
	"github.com/matchday/sportsync/internal/domain/model"
)

// Services bundles the repositories needed for development seeding.
type Services struct {
	DB       *sql.DB
	leagues  *data.LeagueRepo
	fixtures *data.FixtureRepo
	odds     *data.OddRepo
	configs  *data.JobConfigRepo
}

// NewServices constructs the repositories for seeding using the provided DB.
func NewServices(db *sql.DB, logger *slog.Logger) Services {
	return Services{
		DB:       db,
		leagues:  data.NewLeagueRepo(db, data.LeagueRepoConfig{Logger: logger}),
		fixtures: data.NewFixtureRepo(db, data.FixtureRepoConfig{Logger: logger}),
		odds:     data.NewOddRepo(db, data.OddRepoConfig{Logger: logger}),
		configs:  data.NewJobConfigRepo(db, data.JobConfigRepoConfig{Logger: logger}),
	}
}

// Run executes the full development seeding workflow against the provided DB.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	if err := svcs.configs.SeedDefaults(ctx, core.JobCatalog()); err != nil {
		return fmt.Errorf("seed job configs: %w", err)
	}

	failures := 0
	failures += seedLeagues(ctx, svcs.leagues, logger)
	failures += seedFixtures(ctx, svcs.fixtures, logger)
	failures += seedOdds(ctx, svcs, logger)
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func seedLeagues(ctx context.Context, repo *data.LeagueRepo, logger *slog.Logger) int {
	failures := 0
	leagues := []model.League{
		{ExternalID: 39, Name: "Premier League", Country: "England"},
		{ExternalID: 140, Name: "La Liga", Country: "Spain"},
		{ExternalID: 78, Name: "Bundesliga", Country: "Germany"},
	}

	for i := range leagues {
		action, err := repo.Upsert(ctx, &leagues[i])
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed league", "external_id", leagues[i].ExternalID, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			logger.InfoContext(ctx, "seeded league", "name", leagues[i].Name, "action", action)
		}
	}

	return failures
}

func seedFixtures(ctx context.Context, repo *data.FixtureRepo, logger *slog.Logger) int {
	now := time.Now().UTC()
	failures := 0
	fixtures := []model.Fixture{
		{
			ExternalID:       100001,
			LeagueExternalID: 39,
			Season:           now.Year(),
			HomeTeam:         "Arsenal",
			AwayTeam:         "Chelsea",
			Status:           model.StatusNotStarted,
			KickoffAt:        now.Add(48 * time.Hour),
		},
		{
			ExternalID:       100002,
			LeagueExternalID: 39,
			Season:           now.Year(),
			HomeTeam:         "Liverpool",
			AwayTeam:         "Everton",
			Status:           model.StatusFirstHalf,
			KickoffAt:        now.Add(-30 * time.Minute),
			HomeScore:        intPtr(1),
			AwayScore:        intPtr(0),
		},
		{
			ExternalID:       100003,
			LeagueExternalID: 140,
			Season:           now.Year(),
			HomeTeam:         "Barcelona",
			AwayTeam:         "Sevilla",
			Status:           model.StatusFullTime,
			KickoffAt:        now.Add(-26 * time.Hour),
			HomeScore:        intPtr(3),
			AwayScore:        intPtr(1),
			Result:           strPtr("home"),
		},
		{
			// Stuck fixture: kickoff well in the past but never advanced,
			// so the recovery job has something to pick up.
			ExternalID:       100004,
			LeagueExternalID: 78,
			Season:           now.Year(),
			HomeTeam:         "Bayern Munich",
			AwayTeam:         "Dortmund",
			Status:           model.StatusNotStarted,
			KickoffAt:        now.Add(-3 * time.Hour),
		},
	}

	for i := range fixtures {
		action, err := repo.Upsert(ctx, &fixtures[i])
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed fixture", "external_id", fixtures[i].ExternalID, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			logger.InfoContext(ctx, "seeded fixture",
				"external_id", fixtures[i].ExternalID,
				"teams", fixtures[i].HomeTeam+" v "+fixtures[i].AwayTeam,
				"action", action)
		}
	}

	return failures
}

func seedOdds(ctx context.Context, svcs Services, logger *slog.Logger) int {
	failures := 0
	odds := []model.Odd{
		{FixtureExternalID: 100001, Market: "match_winner", Label: "home", Price: 2.10, Bookmaker: "bet365"},
		{FixtureExternalID: 100001, Market: "match_winner", Label: "draw", Price: 3.40, Bookmaker: "bet365"},
		{FixtureExternalID: 100001, Market: "match_winner", Label: "away", Price: 3.25, Bookmaker: "bet365"},
		{FixtureExternalID: 100002, Market: "match_winner", Label: "home", Price: 1.45, Bookmaker: "pinnacle"},
		{FixtureExternalID: 100002, Market: "match_winner", Label: "draw", Price: 4.50, Bookmaker: "pinnacle"},
		{FixtureExternalID: 100002, Market: "match_winner", Label: "away", Price: 7.00, Bookmaker: "pinnacle"},
	}

	withOdds := map[int64]bool{}
	for i := range odds {
		if _, err := svcs.odds.Upsert(ctx, &odds[i]); err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed odd",
					"fixture", odds[i].FixtureExternalID,
					"label", odds[i].Label,
					"error", err)
			}
			failures++
			continue
		}
		withOdds[odds[i].FixtureExternalID] = true
	}

	ids := make([]int64, 0, len(withOdds))
	for id := range withOdds {
		ids = append(ids, id)
	}
	if len(ids) > 0 {
		if _, err := svcs.fixtures.MarkHasOdds(ctx, ids); err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to flag fixtures with odds", "error", err)
			}
			failures++
		}
	}
	if logger != nil {
		logger.InfoContext(ctx, "seeded odds", "count", len(odds)-failures, "fixtures", len(ids))
	}

	return failures
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
