package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/domain/model"
)

type mockJobRunRepository struct {
	mu          sync.Mutex
	startRuns   []core.StartRunParams
	finishRuns  []core.FinishRunParams
	startFunc   func(ctx context.Context, params core.StartRunParams) (*model.JobRun, error)
	finishFunc  func(ctx context.Context, params core.FinishRunParams) error
	orphanFunc  func(ctx context.Context, maxAge time.Duration) (int64, error)
	deleteFunc  func(ctx context.Context, params core.DeleteOldRunsParams) (int64, error)
	getByIDFunc func(ctx context.Context, id string) (*model.JobRun, error)
}

func (m *mockJobRunRepository) StartRun(ctx context.Context, params core.StartRunParams) (*model.JobRun, error) {
	m.mu.Lock()
	m.startRuns = append(m.startRuns, params)
	m.mu.Unlock()
	if m.startFunc != nil {
		return m.startFunc(ctx, params)
	}
	return &model.JobRun{
		ID:        "run-1",
		JobKey:    params.JobKey,
		Status:    model.RunStatusRunning,
		Trigger:   params.Trigger,
		StartedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (m *mockJobRunRepository) FinishRun(ctx context.Context, params core.FinishRunParams) error {
	m.mu.Lock()
	m.finishRuns = append(m.finishRuns, params)
	m.mu.Unlock()
	if m.finishFunc != nil {
		return m.finishFunc(ctx, params)
	}
	return nil
}

func (m *mockJobRunRepository) MarkOrphanedRuns(ctx context.Context, maxAge time.Duration) (int64, error) {
	if m.orphanFunc != nil {
		return m.orphanFunc(ctx, maxAge)
	}
	return 0, nil
}

func (m *mockJobRunRepository) DeleteOldRuns(ctx context.Context, params core.DeleteOldRunsParams) (int64, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, params)
	}
	return 0, nil
}

func (m *mockJobRunRepository) GetByID(ctx context.Context, id string) (*model.JobRun, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *mockJobRunRepository) ListRecent(ctx context.Context, jobKey *model.JobKey, limit int) ([]*model.JobRun, error) {
	return nil, errors.New("not implemented")
}

func (m *mockJobRunRepository) finished() []core.FinishRunParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.FinishRunParams(nil), m.finishRuns...)
}

type mockJobConfigRepository struct {
	getByKeyFunc    func(ctx context.Context, key model.JobKey) (*model.JobConfig, error)
	listEnabledFunc func(ctx context.Context) ([]*model.JobConfig, error)
}

func (m *mockJobConfigRepository) SeedDefaults(ctx context.Context, defs []model.JobDefinition) error {
	return errors.New("not implemented")
}

func (m *mockJobConfigRepository) GetByKey(ctx context.Context, key model.JobKey) (*model.JobConfig, error) {
	if m.getByKeyFunc != nil {
		return m.getByKeyFunc(ctx, key)
	}
	return &model.JobConfig{Key: key, Enabled: true}, nil
}

func (m *mockJobConfigRepository) List(ctx context.Context) ([]*model.JobConfig, error) {
	return nil, errors.New("not implemented")
}

func (m *mockJobConfigRepository) ListEnabled(ctx context.Context) ([]*model.JobConfig, error) {
	if m.listEnabledFunc != nil {
		return m.listEnabledFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockJobConfigRepository) Update(ctx context.Context, key model.JobKey, update core.JobConfigUpdate) error {
	return errors.New("not implemented")
}

type mockSeedBatchRepository struct {
	mu            sync.Mutex
	started       []core.StartBatchParams
	tracked       []core.TrackItemParams
	finishedCalls []core.FinishBatchParams
	startFunc     func(ctx context.Context, params core.StartBatchParams) (*model.SeedBatch, error)
	trackFunc     func(ctx context.Context, params core.TrackItemParams) error
	finishFunc    func(ctx context.Context, params core.FinishBatchParams) error
	deleteFunc    func(ctx context.Context, params core.DeleteOldBatchesParams) (int64, error)
}

func (m *mockSeedBatchRepository) StartBatch(ctx context.Context, params core.StartBatchParams) (*model.SeedBatch, error) {
	m.mu.Lock()
	m.started = append(m.started, params)
	m.mu.Unlock()
	if m.startFunc != nil {
		return m.startFunc(ctx, params)
	}
	return &model.SeedBatch{
		ID:     "batch-1",
		Name:   params.Name,
		Status: model.BatchStatusRunning,
	}, nil
}

func (m *mockSeedBatchRepository) TrackItem(ctx context.Context, params core.TrackItemParams) error {
	m.mu.Lock()
	m.tracked = append(m.tracked, params)
	m.mu.Unlock()
	if m.trackFunc != nil {
		return m.trackFunc(ctx, params)
	}
	return nil
}

func (m *mockSeedBatchRepository) FinishBatch(ctx context.Context, params core.FinishBatchParams) error {
	m.mu.Lock()
	m.finishedCalls = append(m.finishedCalls, params)
	m.mu.Unlock()
	if m.finishFunc != nil {
		return m.finishFunc(ctx, params)
	}
	return nil
}

func (m *mockSeedBatchRepository) GetByID(ctx context.Context, id string) (*model.SeedBatch, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSeedBatchRepository) ListItems(ctx context.Context, batchID string) ([]*model.SeedItem, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSeedBatchRepository) DeleteOldBatches(ctx context.Context, params core.DeleteOldBatchesParams) (int64, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, params)
	}
	return 0, nil
}

func (m *mockSeedBatchRepository) trackedItems() []core.TrackItemParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.TrackItemParams(nil), m.tracked...)
}

func (m *mockSeedBatchRepository) finishedBatches() []core.FinishBatchParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.FinishBatchParams(nil), m.finishedCalls...)
}

type mockFixtureRepository struct {
	mu               sync.Mutex
	upserted         []*model.Fixture
	markedHasOdds    [][]int64
	coverageFunc     func(ctx context.Context) (map[int64]core.CoverageCounts, error)
	getByIDsFunc     func(ctx context.Context, externalIDs []int64) (map[int64]*model.Fixture, error)
	getByIDFunc      func(ctx context.Context, externalID int64) (*model.Fixture, error)
	upsertFunc       func(ctx context.Context, fixture *model.Fixture) (core.UpsertAction, error)
	listOverdueFunc  func(ctx context.Context, q core.OverdueQuery) ([]*model.Fixture, error)
	statusesFunc     func(ctx context.Context, externalIDs []int64) (map[int64]model.FixtureStatus, error)
	markHasOddsFunc  func(ctx context.Context, externalIDs []int64) (int64, error)
}

func (m *mockFixtureRepository) CoverageByLeague(ctx context.Context) (map[int64]core.CoverageCounts, error) {
	if m.coverageFunc != nil {
		return m.coverageFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockFixtureRepository) GetByExternalIDs(ctx context.Context, externalIDs []int64) (map[int64]*model.Fixture, error) {
	if m.getByIDsFunc != nil {
		return m.getByIDsFunc(ctx, externalIDs)
	}
	return map[int64]*model.Fixture{}, nil
}

func (m *mockFixtureRepository) GetByExternalID(ctx context.Context, externalID int64) (*model.Fixture, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, externalID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockFixtureRepository) Upsert(ctx context.Context, fixture *model.Fixture) (core.UpsertAction, error) {
	m.mu.Lock()
	m.upserted = append(m.upserted, fixture)
	m.mu.Unlock()
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, fixture)
	}
	return core.UpsertInserted, nil
}

func (m *mockFixtureRepository) ListOverdueNotStarted(ctx context.Context, q core.OverdueQuery) ([]*model.Fixture, error) {
	if m.listOverdueFunc != nil {
		return m.listOverdueFunc(ctx, q)
	}
	return nil, nil
}

func (m *mockFixtureRepository) StatusesByExternalIDs(ctx context.Context, externalIDs []int64) (map[int64]model.FixtureStatus, error) {
	if m.statusesFunc != nil {
		return m.statusesFunc(ctx, externalIDs)
	}
	return map[int64]model.FixtureStatus{}, nil
}

func (m *mockFixtureRepository) MarkHasOdds(ctx context.Context, externalIDs []int64) (int64, error) {
	m.mu.Lock()
	m.markedHasOdds = append(m.markedHasOdds, externalIDs)
	m.mu.Unlock()
	if m.markHasOddsFunc != nil {
		return m.markHasOddsFunc(ctx, externalIDs)
	}
	return int64(len(externalIDs)), nil
}

func (m *mockFixtureRepository) upsertedFixtures() []*model.Fixture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Fixture(nil), m.upserted...)
}

type mockOddRepository struct {
	mu         sync.Mutex
	upserted   []*model.Odd
	listFunc   func(ctx context.Context, externalIDs []int64) (map[int64][]*model.Odd, error)
	upsertFunc func(ctx context.Context, odd *model.Odd) (core.UpsertAction, error)
	deleteFunc func(ctx context.Context, externalID int64) (int64, error)
}

func (m *mockOddRepository) ListByFixtureExternalIDs(ctx context.Context, externalIDs []int64) (map[int64][]*model.Odd, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, externalIDs)
	}
	return map[int64][]*model.Odd{}, nil
}

func (m *mockOddRepository) Upsert(ctx context.Context, odd *model.Odd) (core.UpsertAction, error) {
	m.mu.Lock()
	m.upserted = append(m.upserted, odd)
	m.mu.Unlock()
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, odd)
	}
	return core.UpsertInserted, nil
}

func (m *mockOddRepository) DeleteByFixtureExternalID(ctx context.Context, externalID int64) (int64, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, externalID)
	}
	return 0, nil
}

type mockLeagueRepository struct {
	mu           sync.Mutex
	upserted     []*model.League
	existingFunc func(ctx context.Context, externalIDs []int64) (map[int64]bool, error)
	upsertFunc   func(ctx context.Context, league *model.League) (core.UpsertAction, error)
	listFunc     func(ctx context.Context) ([]*model.League, error)
	idsFunc      func(ctx context.Context) ([]int64, error)
}

func (m *mockLeagueRepository) ExistingExternalIDs(ctx context.Context, externalIDs []int64) (map[int64]bool, error) {
	if m.existingFunc != nil {
		return m.existingFunc(ctx, externalIDs)
	}
	existing := make(map[int64]bool, len(externalIDs))
	for _, id := range externalIDs {
		existing[id] = true
	}
	return existing, nil
}

func (m *mockLeagueRepository) Upsert(ctx context.Context, league *model.League) (core.UpsertAction, error) {
	m.mu.Lock()
	m.upserted = append(m.upserted, league)
	m.mu.Unlock()
	if m.upsertFunc != nil {
		return m.upsertFunc(ctx, league)
	}
	return core.UpsertInserted, nil
}

func (m *mockLeagueRepository) List(ctx context.Context) ([]*model.League, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

func (m *mockLeagueRepository) ExternalIDs(ctx context.Context) ([]int64, error) {
	if m.idsFunc != nil {
		return m.idsFunc(ctx)
	}
	return nil, nil
}

// mockLocker runs fn inline unless err is set, and records the keys it saw.
type mockLocker struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (m *mockLocker) WithLock(ctx context.Context, key string, opts core.LockOptions, fn func(context.Context) error) error {
	m.mu.Lock()
	m.keys = append(m.keys, key)
	m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	return fn(ctx)
}

type mockProviderClient struct {
	leaguesFunc  func(ctx context.Context) ([]model.LeagueDTO, error)
	betweenFunc  func(ctx context.Context, window core.FixtureWindow) ([]model.FixtureDTO, error)
	liveFunc     func(ctx context.Context, leagueIDs []int64) ([]model.FixtureDTO, error)
	byIDsFunc    func(ctx context.Context, externalIDs []int64) ([]model.FixtureDTO, error)
	oddsFunc     func(ctx context.Context, window core.FixtureWindow) ([]model.OddDTO, error)
}

func (m *mockProviderClient) FetchLeagues(ctx context.Context) ([]model.LeagueDTO, error) {
	if m.leaguesFunc != nil {
		return m.leaguesFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockProviderClient) FetchFixturesBetween(ctx context.Context, window core.FixtureWindow) ([]model.FixtureDTO, error) {
	if m.betweenFunc != nil {
		return m.betweenFunc(ctx, window)
	}
	return nil, errors.New("not implemented")
}

func (m *mockProviderClient) FetchLiveFixtures(ctx context.Context, leagueIDs []int64) ([]model.FixtureDTO, error) {
	if m.liveFunc != nil {
		return m.liveFunc(ctx, leagueIDs)
	}
	return nil, errors.New("not implemented")
}

func (m *mockProviderClient) FetchFixturesByIDs(ctx context.Context, externalIDs []int64) ([]model.FixtureDTO, error) {
	if m.byIDsFunc != nil {
		return m.byIDsFunc(ctx, externalIDs)
	}
	return nil, errors.New("not implemented")
}

func (m *mockProviderClient) FetchOddsBetween(ctx context.Context, window core.FixtureWindow) ([]model.OddDTO, error) {
	if m.oddsFunc != nil {
		return m.oddsFunc(ctx, window)
	}
	return nil, errors.New("not implemented")
}
