package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/domain/model"
)

// LeagueSeedServiceOptions bundles dependencies for NewLeagueSeedService.
type LeagueSeedServiceOptions struct {
	Provider core.ProviderClient
	Leagues  core.LeagueRepository
	Engine   *SyncEngine[model.LeagueDTO]
	Logger   *slog.Logger
}

// LeagueSeedService seeds league reference data from the provider. Leagues
// are the FK anchor for fixtures, so this job runs before any fixture sync
// can make progress on a fresh deployment.
type LeagueSeedService struct {
	provider core.ProviderClient
	leagues  core.LeagueRepository
	engine   *SyncEngine[model.LeagueDTO]
	logger   *slog.Logger
}

// NewLeagueSeedService creates a new LeagueSeedService with the given dependencies.
func NewLeagueSeedService(opts LeagueSeedServiceOptions) *LeagueSeedService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &LeagueSeedService{
		provider: opts.Provider,
		leagues:  opts.Leagues,
		engine:   opts.Engine,
		logger:   opts.Logger.With("component", "league_seed"),
	}
}

// Fetch pulls the provider's league catalog. Called before the job lock is
// taken so the lock only covers storage writes.
func (s *LeagueSeedService) Fetch(ctx context.Context) ([]model.LeagueDTO, error) {
	dtos, err := s.provider.FetchLeagues(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch leagues: %w", err)
	}
	return dtos, nil
}

// LeagueSeedParams groups parameters for Sync.
type LeagueSeedParams struct {
	Items  []model.LeagueDTO
	Params json.RawMessage
	DryRun bool
}

// Sync upserts the fetched league catalog, skipping unchanged rows.
func (s *LeagueSeedService) Sync(ctx context.Context, p LeagueSeedParams) (model.SyncResult, error) {
	existing, err := s.leagues.List(ctx)
	if err != nil {
		return model.SyncResult{}, err
	}
	current := make(map[int64]*model.League, len(existing))
	for _, l := range existing {
		current[l.ExternalID] = l
	}

	return s.engine.Run(ctx, SyncSpec[model.LeagueDTO]{
		Name:   "leagues_seed",
		Params: p.Params,
		Items:  p.Items,
		DryRun: p.DryRun,
		Key: func(d model.LeagueDTO) string {
			return strconv.FormatInt(d.ExternalID, 10)
		},
		Process: func(ctx context.Context, d model.LeagueDTO) (SyncAction, error) {
			if d.ExternalID <= 0 || d.Name == "" {
				return "", fmt.Errorf("invalid league %d %q", d.ExternalID, d.Name)
			}

			prev := current[d.ExternalID]
			if prev != nil && prev.Name == d.Name && prev.Country == d.Country {
				return ActionSkipped, nil
			}

			if p.DryRun {
				if prev == nil {
					return ActionInserted, nil
				}
				return ActionUpdated, nil
			}

			league := &model.League{ExternalID: d.ExternalID, Name: d.Name, Country: d.Country}
			if prev != nil {
				league.ID = prev.ID
			}
			action, err := s.leagues.Upsert(ctx, league)
			if err != nil {
				return "", err
			}
			if action == core.UpsertInserted {
				return ActionInserted, nil
			}
			return ActionUpdated, nil
		},
	})
}
