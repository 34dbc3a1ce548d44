package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/data"
	"github.com/matchday/sportsync/internal/domain/fixture"
	"github.com/matchday/sportsync/internal/domain/model"
)

// FixtureSyncServiceOptions bundles dependencies for NewFixtureSyncService.
type FixtureSyncServiceOptions struct {
	Provider     core.ProviderClient
	Fixtures     core.FixtureRepository
	Leagues      core.LeagueRepository
	Engine       *SyncEngine[model.FixtureDTO]
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// FixtureSyncService syncs provider fixtures into storage: upcoming windows,
// live passes, and targeted refetches for recovery.
type FixtureSyncService struct {
	provider     core.ProviderClient
	fixtures     core.FixtureRepository
	leagues      core.LeagueRepository
	engine       *SyncEngine[model.FixtureDTO]
	timeProvider data.TimeProvider
	logger       *slog.Logger
}

// NewFixtureSyncService creates a new FixtureSyncService with the given dependencies.
func NewFixtureSyncService(opts FixtureSyncServiceOptions) *FixtureSyncService {
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &FixtureSyncService{
		provider:     opts.Provider,
		fixtures:     opts.Fixtures,
		leagues:      opts.Leagues,
		engine:       opts.Engine,
		timeProvider: opts.TimeProvider,
		logger:       opts.Logger.With("component", "fixture_sync"),
	}
}

// FetchUpcoming pulls the fixtures inside the configured lookahead window.
// Called before the job lock is taken so the lock only covers storage writes.
func (s *FixtureSyncService) FetchUpcoming(ctx context.Context, cfg *model.JobConfig) ([]model.FixtureDTO, error) {
	meta := model.FixturesSyncMeta{LookaheadDays: 7}
	if err := model.DecodeMeta(cfg.Meta, &meta); err != nil {
		return nil, err
	}
	if meta.LookaheadDays <= 0 {
		meta.LookaheadDays = 7
	}

	leagueIDs, err := s.resolveLeagueIDs(ctx, meta.LeagueIDs)
	if err != nil {
		return nil, err
	}

	now := s.timeProvider.Now().UTC()
	dtos, err := s.provider.FetchFixturesBetween(ctx, core.FixtureWindow{
		From:      now,
		To:        now.Add(time.Duration(meta.LookaheadDays) * 24 * time.Hour),
		LeagueIDs: leagueIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch upcoming fixtures: %w", err)
	}
	return dtos, nil
}

// FetchLive pulls the fixtures currently in play for the seeded leagues.
func (s *FixtureSyncService) FetchLive(ctx context.Context, cfg *model.JobConfig) ([]model.FixtureDTO, error) {
	meta := model.FixturesSyncMeta{}
	if err := model.DecodeMeta(cfg.Meta, &meta); err != nil {
		return nil, err
	}

	leagueIDs, err := s.resolveLeagueIDs(ctx, meta.LeagueIDs)
	if err != nil {
		return nil, err
	}

	dtos, err := s.provider.FetchLiveFixtures(ctx, leagueIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch live fixtures: %w", err)
	}
	return dtos, nil
}

// FetchByExternalIDs refetches specific fixtures, used by recovery.
func (s *FixtureSyncService) FetchByExternalIDs(ctx context.Context, externalIDs []int64) ([]model.FixtureDTO, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	dtos, err := s.provider.FetchFixturesByIDs(ctx, externalIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch fixtures by ids: %w", err)
	}
	return dtos, nil
}

// FixtureSyncParams groups parameters for Sync.
type FixtureSyncParams struct {
	// BatchName labels the accounting batch ("fixtures_sync", "fixtures_live_sync", ...).
	BatchName string
	Items     []model.FixtureDTO
	Params    json.RawMessage
	DryRun    bool
}

// Sync runs the transform-validate-diff-upsert pass over prefetched provider
// fixtures. An unchanged fixture is skipped without a write; a write that
// would move a fixture backward through its lifecycle fails that item only.
func (s *FixtureSyncService) Sync(ctx context.Context, p FixtureSyncParams) (model.SyncResult, error) {
	externalIDs := make([]int64, 0, len(p.Items))
	leagueIDs := make([]int64, 0, len(p.Items))
	for _, dto := range p.Items {
		externalIDs = append(externalIDs, dto.ExternalID)
		leagueIDs = append(leagueIDs, dto.LeagueExternalID)
	}

	stored, err := s.fixtures.GetByExternalIDs(ctx, externalIDs)
	if err != nil {
		return model.SyncResult{}, err
	}
	knownLeagues, err := s.leagues.ExistingExternalIDs(ctx, leagueIDs)
	if err != nil {
		return model.SyncResult{}, err
	}

	return s.engine.Run(ctx, SyncSpec[model.FixtureDTO]{
		Name:   p.BatchName,
		Params: p.Params,
		Items:  p.Items,
		DryRun: p.DryRun,
		Key: func(d model.FixtureDTO) string {
			return strconv.FormatInt(d.ExternalID, 10)
		},
		Process: func(ctx context.Context, d model.FixtureDTO) (SyncAction, error) {
			return s.processOne(ctx, processFixtureParams{
				dto:         d,
				stored:      stored[d.ExternalID],
				leagueKnown: knownLeagues[d.LeagueExternalID],
				dryRun:      p.DryRun,
			})
		},
	})
}

type processFixtureParams struct {
	dto         model.FixtureDTO
	stored      *model.Fixture
	leagueKnown bool
	dryRun      bool
}

func (s *FixtureSyncService) processOne(ctx context.Context, p processFixtureParams) (SyncAction, error) {
	if err := validateFixtureDTO(p.dto); err != nil {
		return "", err
	}
	if !p.leagueKnown {
		return "", fmt.Errorf("league %d not seeded", p.dto.LeagueExternalID)
	}

	if p.stored != nil {
		if fixtureUnchanged(p.stored, p.dto) {
			return ActionSkipped, nil
		}
		if err := fixture.ValidateTransition(p.stored.Status, p.dto.Status, false); err != nil {
			return "", err
		}
	} else if _, known := fixture.PhaseOf(p.dto.Status); !known {
		return "", fmt.Errorf("unknown fixture status %q", p.dto.Status)
	}

	if p.dryRun {
		if p.stored == nil {
			return ActionInserted, nil
		}
		return ActionUpdated, nil
	}

	next := &model.Fixture{
		ExternalID:       p.dto.ExternalID,
		LeagueExternalID: p.dto.LeagueExternalID,
		Season:           p.dto.Season,
		HomeTeam:         p.dto.HomeTeam,
		AwayTeam:         p.dto.AwayTeam,
		Status:           p.dto.Status,
		KickoffAt:        p.dto.KickoffAt,
		HomeScore:        p.dto.HomeScore,
		AwayScore:        p.dto.AwayScore,
		Result:           p.dto.Result,
	}
	if p.stored != nil {
		next.ID = p.stored.ID
		next.HasOdds = p.stored.HasOdds
	}

	action, err := s.fixtures.Upsert(ctx, next)
	if err != nil {
		return "", err
	}
	if action == core.UpsertInserted {
		return ActionInserted, nil
	}
	return ActionUpdated, nil
}

// resolveLeagueIDs expands an empty league filter to all seeded leagues.
func (s *FixtureSyncService) resolveLeagueIDs(ctx context.Context, filter []int64) ([]int64, error) {
	if len(filter) > 0 {
		return filter, nil
	}
	ids, err := s.leagues.ExternalIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve league filter: %w", err)
	}
	return ids, nil
}

func validateFixtureDTO(d model.FixtureDTO) error {
	switch {
	case d.ExternalID <= 0:
		return fmt.Errorf("invalid external id %d", d.ExternalID)
	case d.LeagueExternalID <= 0:
		return fmt.Errorf("fixture %d: invalid league id %d", d.ExternalID, d.LeagueExternalID)
	case d.HomeTeam == "" || d.AwayTeam == "":
		return fmt.Errorf("fixture %d: missing team names", d.ExternalID)
	case d.KickoffAt.IsZero():
		return fmt.Errorf("fixture %d: missing kickoff time", d.ExternalID)
	}
	return nil
}

func fixtureUnchanged(stored *model.Fixture, d model.FixtureDTO) bool {
	return stored.Status == d.Status &&
		stored.KickoffAt.UTC().Equal(d.KickoffAt.UTC()) &&
		stored.LeagueExternalID == d.LeagueExternalID &&
		stored.Season == d.Season &&
		stored.HomeTeam == d.HomeTeam &&
		stored.AwayTeam == d.AwayTeam &&
		intPtrEqual(stored.HomeScore, d.HomeScore) &&
		intPtrEqual(stored.AwayScore, d.AwayScore) &&
		strPtrEqual(stored.Result, d.Result)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
