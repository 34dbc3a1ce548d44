package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/data"
	"github.com/matchday/sportsync/internal/domain/model"
)

// oddsGroup is the unit of odds accounting: all fetched prices for one
// fixture. The whole group fails or succeeds together.
type oddsGroup struct {
	FixtureExternalID int64
	Odds              []model.OddDTO
}

// OddsSyncServiceOptions bundles dependencies for NewOddsSyncService.
type OddsSyncServiceOptions struct {
	Provider     core.ProviderClient
	Fixtures     core.FixtureRepository
	Odds         core.OddRepository
	Leagues      core.LeagueRepository
	Engine       *SyncEngine[oddsGroup]
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// OddsSyncService syncs provider odds into storage, grouped per fixture.
type OddsSyncService struct {
	provider     core.ProviderClient
	fixtures     core.FixtureRepository
	odds         core.OddRepository
	leagues      core.LeagueRepository
	engine       *SyncEngine[oddsGroup]
	timeProvider data.TimeProvider
	logger       *slog.Logger
}

// NewOddsSyncEngine builds a sync engine for per-fixture odds groups. The
// group type is internal to this package, so callers wire the engine through
// this constructor.
func NewOddsSyncEngine(opts SyncEngineOptions) *SyncEngine[oddsGroup] {
	return NewSyncEngine[oddsGroup](opts)
}

// NewOddsSyncService creates a new OddsSyncService with the given dependencies.
func NewOddsSyncService(opts OddsSyncServiceOptions) *OddsSyncService {
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &OddsSyncService{
		provider:     opts.Provider,
		fixtures:     opts.Fixtures,
		odds:         opts.Odds,
		leagues:      opts.Leagues,
		engine:       opts.Engine,
		timeProvider: opts.TimeProvider,
		logger:       opts.Logger.With("component", "odds_sync"),
	}
}

// FetchWindow pulls the odds inside the configured lookahead window. Called
// before the job lock is taken so the lock only covers storage writes.
func (s *OddsSyncService) FetchWindow(ctx context.Context, cfg *model.JobConfig) ([]model.OddDTO, error) {
	meta := model.OddsSyncMeta{LookaheadHours: 72}
	if err := model.DecodeMeta(cfg.Meta, &meta); err != nil {
		return nil, err
	}
	if meta.LookaheadHours <= 0 {
		meta.LookaheadHours = 72
	}

	leagueIDs := meta.LeagueIDs
	if len(leagueIDs) == 0 {
		ids, err := s.leagues.ExternalIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve league filter: %w", err)
		}
		leagueIDs = ids
	}

	now := s.timeProvider.Now().UTC()
	dtos, err := s.provider.FetchOddsBetween(ctx, core.FixtureWindow{
		From:      now,
		To:        now.Add(time.Duration(meta.LookaheadHours) * time.Hour),
		LeagueIDs: leagueIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch odds: %w", err)
	}
	return dtos, nil
}

// OddsSyncParams groups parameters for Sync.
type OddsSyncParams struct {
	Items  []model.OddDTO
	Params json.RawMessage
	DryRun bool
}

// Sync runs the per-fixture odds pass over prefetched provider odds. Odds
// referencing a fixture we do not store fail as a group; stored fixtures get
// their has_odds flag raised in one bulk write at the end.
func (s *OddsSyncService) Sync(ctx context.Context, p OddsSyncParams) (model.SyncResult, error) {
	groups := groupOdds(p.Items)

	fixtureIDs := make([]int64, len(groups))
	for i, g := range groups {
		fixtureIDs[i] = g.FixtureExternalID
	}

	statuses, err := s.fixtures.StatusesByExternalIDs(ctx, fixtureIDs)
	if err != nil {
		return model.SyncResult{}, err
	}
	storedOdds, err := s.odds.ListByFixtureExternalIDs(ctx, fixtureIDs)
	if err != nil {
		return model.SyncResult{}, err
	}

	var mu sync.Mutex
	var withOdds []int64

	result, runErr := s.engine.Run(ctx, SyncSpec[oddsGroup]{
		Name:   "odds_sync",
		Params: p.Params,
		Items:  groups,
		DryRun: p.DryRun,
		Key: func(g oddsGroup) string {
			return strconv.FormatInt(g.FixtureExternalID, 10)
		},
		Process: func(ctx context.Context, g oddsGroup) (SyncAction, error) {
			if _, ok := statuses[g.FixtureExternalID]; !ok {
				return "", fmt.Errorf("fixture %d not stored", g.FixtureExternalID)
			}

			action, perr := s.processGroup(ctx, g, storedOdds[g.FixtureExternalID], p.DryRun)
			if perr != nil {
				return "", perr
			}

			mu.Lock()
			withOdds = append(withOdds, g.FixtureExternalID)
			mu.Unlock()
			return action, nil
		},
	})

	if !p.DryRun && len(withOdds) > 0 {
		flagged, flagErr := s.fixtures.MarkHasOdds(ctx, withOdds)
		if flagErr != nil && runErr == nil {
			runErr = flagErr
		} else if flagged > 0 {
			s.logger.InfoContext(ctx, "flagged fixtures with odds", "count", flagged)
		}
	}

	return result, runErr
}

// processGroup diffs one fixture's odds against storage. The group's action
// follows precedence inserted > updated > skipped; any write error fails the
// whole group.
func (s *OddsSyncService) processGroup(
	ctx context.Context,
	g oddsGroup,
	stored []*model.Odd,
	dryRun bool,
) (SyncAction, error) {
	current := make(map[string]*model.Odd, len(stored))
	for _, o := range stored {
		current[o.Market+"|"+o.Label] = o
	}

	action := ActionSkipped
	seen := make(map[string]bool, len(g.Odds))
	for _, dto := range g.Odds {
		if err := validateOddDTO(dto); err != nil {
			return "", err
		}
		outcomeKey := dto.Market + "|" + dto.Label
		if seen[outcomeKey] {
			continue
		}
		seen[outcomeKey] = true

		prev := current[outcomeKey]
		if prev != nil && prev.Price == dto.Price && prev.Bookmaker == dto.Bookmaker {
			continue
		}

		if dryRun {
			action = raiseAction(action, prev == nil)
			continue
		}

		odd := &model.Odd{
			FixtureExternalID: g.FixtureExternalID,
			Market:            dto.Market,
			Label:             dto.Label,
			Price:             dto.Price,
			Bookmaker:         dto.Bookmaker,
		}
		if prev != nil {
			odd.ID = prev.ID
		}
		upsert, err := s.odds.Upsert(ctx, odd)
		if err != nil {
			return "", fmt.Errorf("odd %s/%s: %w", dto.Market, dto.Label, err)
		}
		action = raiseAction(action, upsert == core.UpsertInserted)
	}

	return action, nil
}

// raiseAction promotes the group action, keeping inserted over updated over skipped.
func raiseAction(current SyncAction, inserted bool) SyncAction {
	if inserted {
		return ActionInserted
	}
	if current == ActionInserted {
		return current
	}
	return ActionUpdated
}

func validateOddDTO(d model.OddDTO) error {
	switch {
	case d.FixtureExternalID <= 0:
		return fmt.Errorf("invalid fixture id %d", d.FixtureExternalID)
	case d.Market == "" || d.Label == "":
		return fmt.Errorf("fixture %d: missing market or label", d.FixtureExternalID)
	case d.Price <= 1.0:
		return fmt.Errorf("fixture %d %s/%s: price %v out of range", d.FixtureExternalID, d.Market, d.Label, d.Price)
	}
	return nil
}

// groupOdds buckets odds by fixture in a stable order.
func groupOdds(items []model.OddDTO) []oddsGroup {
	byFixture := map[int64][]model.OddDTO{}
	for _, dto := range items {
		byFixture[dto.FixtureExternalID] = append(byFixture[dto.FixtureExternalID], dto)
	}

	ids := make([]int64, 0, len(byFixture))
	for id := range byFixture {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	groups := make([]oddsGroup, len(ids))
	for i, id := range ids {
		groups[i] = oddsGroup{FixtureExternalID: id, Odds: byFixture[id]}
	}
	return groups
}
