package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchday/sportsync/config"
	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/domain/model"
	"github.com/matchday/sportsync/internal/testutil"
)

type recordingListener struct {
	live     [][]int64
	finished [][]int64
	err      error
}

func (l *recordingListener) FixturesWentLive(ctx context.Context, externalIDs []int64) error {
	l.live = append(l.live, externalIDs)
	return l.err
}

func (l *recordingListener) FixturesFinished(ctx context.Context, externalIDs []int64) error {
	l.finished = append(l.finished, externalIDs)
	return l.err
}

func overdueFixtures(ids ...int64) []*model.Fixture {
	out := make([]*model.Fixture, len(ids))
	for i, id := range ids {
		out[i] = &model.Fixture{
			ID:               "fx-" + string(rune('a'+i)),
			ExternalID:       id,
			LeagueExternalID: 39,
			HomeTeam:         "Home FC",
			AwayTeam:         "Away FC",
			Status:           model.StatusNotStarted,
			KickoffAt:        testutil.TestTime(),
		}
	}
	return out
}

func newRecoveryService(
	fixtures *mockFixtureRepository,
	provider *mockProviderClient,
	listener TransitionListener,
) *RecoveryService {
	fixtureSync := newFixtureSyncService(provider, fixtures, &mockLeagueRepository{}, &mockSeedBatchRepository{})
	return NewRecoveryService(RecoveryServiceOptions{
		Fixtures:    fixtures,
		FixtureSync: fixtureSync,
		Listener:    listener,
	})
}

func TestRecoveryService_Run_NoOverdueFixtures(t *testing.T) {
	fixtures := &mockFixtureRepository{}
	svc := newRecoveryService(fixtures, &mockProviderClient{}, nil)

	outcome, did, err := svc.Run(context.Background(), &model.JobConfig{Key: model.JobFixtureRecovery}, false)
	require.NoError(t, err)

	assert.False(t, did)
	assert.Zero(t, outcome.Overdue)
}

func TestRecoveryService_Run_RecoversAndNotifies(t *testing.T) {
	statusCalls := 0
	fixtures := &mockFixtureRepository{
		listOverdueFunc: func(ctx context.Context, q core.OverdueQuery) ([]*model.Fixture, error) {
			return overdueFixtures(1001, 1002), nil
		},
		getByIDsFunc: func(ctx context.Context, ids []int64) (map[int64]*model.Fixture, error) {
			byID := map[int64]*model.Fixture{}
			for _, f := range overdueFixtures(1001, 1002) {
				byID[f.ExternalID] = f
			}
			return byID, nil
		},
		statusesFunc: func(ctx context.Context, ids []int64) (map[int64]model.FixtureStatus, error) {
			statusCalls++
			// Post-sync state: 1001 advanced, 1002 is still stuck.
			return map[int64]model.FixtureStatus{
				1001: model.StatusFullTime,
				1002: model.StatusNotStarted,
			}, nil
		},
		upsertFunc: func(ctx context.Context, f *model.Fixture) (core.UpsertAction, error) {
			return core.UpsertUpdated, nil
		},
	}
	provider := &mockProviderClient{
		byIDsFunc: func(ctx context.Context, ids []int64) ([]model.FixtureDTO, error) {
			return []model.FixtureDTO{
				testutil.NewFixtureDTO(1001).
					WithStatus(model.StatusFullTime).
					KickingOffAt(testutil.TestTime()).
					WithScore(2, 1).
					Build(),
				testutil.NewFixtureDTO(1002).
					KickingOffAt(testutil.TestTime()).
					Build(),
			}, nil
		},
	}
	listener := &recordingListener{}
	svc := newRecoveryService(fixtures, provider, listener)

	outcome, did, err := svc.Run(context.Background(), &model.JobConfig{Key: model.JobFixtureRecovery}, false)
	require.NoError(t, err)
	require.True(t, did)

	assert.Equal(t, 2, outcome.Overdue)
	assert.Equal(t, []int64{1001}, outcome.Recovered)
	assert.Equal(t, []int64{1002}, outcome.StillStuck)
	assert.Empty(t, outcome.Missing)
	assert.Positive(t, statusCalls)

	require.Len(t, listener.finished, 1)
	assert.Equal(t, []int64{1001}, listener.finished[0])
	assert.Empty(t, listener.live)
}

func TestRecoveryService_Run_LiveTransitionsNotifySeparately(t *testing.T) {
	fixtures := &mockFixtureRepository{
		listOverdueFunc: func(ctx context.Context, q core.OverdueQuery) ([]*model.Fixture, error) {
			return overdueFixtures(1001, 1002), nil
		},
		statusesFunc: func(ctx context.Context, ids []int64) (map[int64]model.FixtureStatus, error) {
			return map[int64]model.FixtureStatus{
				1001: model.StatusFirstHalf,
				1002: model.StatusFullTime,
			}, nil
		},
		upsertFunc: func(ctx context.Context, f *model.Fixture) (core.UpsertAction, error) {
			return core.UpsertUpdated, nil
		},
	}
	provider := &mockProviderClient{
		byIDsFunc: func(ctx context.Context, ids []int64) ([]model.FixtureDTO, error) {
			return []model.FixtureDTO{
				testutil.NewFixtureDTO(1001).
					WithStatus(model.StatusFirstHalf).
					KickingOffAt(testutil.TestTime()).
					Build(),
				testutil.NewFixtureDTO(1002).
					WithStatus(model.StatusFullTime).
					KickingOffAt(testutil.TestTime()).
					Build(),
			}, nil
		},
	}
	listener := &recordingListener{}
	svc := newRecoveryService(fixtures, provider, listener)

	outcome, did, err := svc.Run(context.Background(), &model.JobConfig{Key: model.JobFixtureRecovery}, false)
	require.NoError(t, err)
	require.True(t, did)

	assert.ElementsMatch(t, []int64{1001, 1002}, outcome.Recovered)
	require.Len(t, listener.live, 1)
	assert.Equal(t, []int64{1001}, listener.live[0])
	require.Len(t, listener.finished, 1)
	assert.Equal(t, []int64{1002}, listener.finished[0])
}

func TestRecoveryService_Run_AdministrativeTransitionsDoNotNotify(t *testing.T) {
	fixtures := &mockFixtureRepository{
		listOverdueFunc: func(ctx context.Context, q core.OverdueQuery) ([]*model.Fixture, error) {
			return overdueFixtures(1001), nil
		},
		statusesFunc: func(ctx context.Context, ids []int64) (map[int64]model.FixtureStatus, error) {
			// The refetch revealed the match was postponed, not played.
			return map[int64]model.FixtureStatus{1001: model.StatusPostponed}, nil
		},
		upsertFunc: func(ctx context.Context, f *model.Fixture) (core.UpsertAction, error) {
			return core.UpsertUpdated, nil
		},
	}
	provider := &mockProviderClient{
		byIDsFunc: func(ctx context.Context, ids []int64) ([]model.FixtureDTO, error) {
			return []model.FixtureDTO{
				testutil.NewFixtureDTO(1001).
					WithStatus(model.StatusPostponed).
					KickingOffAt(testutil.TestTime()).
					Build(),
			}, nil
		},
	}
	listener := &recordingListener{}
	svc := newRecoveryService(fixtures, provider, listener)

	outcome, did, err := svc.Run(context.Background(), &model.JobConfig{Key: model.JobFixtureRecovery}, false)
	require.NoError(t, err)
	require.True(t, did)

	assert.Equal(t, []int64{1001}, outcome.Administrative)
	assert.Empty(t, outcome.Recovered)
	assert.Empty(t, outcome.StillStuck)
	assert.Empty(t, listener.live, "a postponed match never went live")
	assert.Empty(t, listener.finished, "a postponed match was never played")
}

func TestRecoveryService_Run_ProviderMissingFixtures(t *testing.T) {
	fixtures := &mockFixtureRepository{
		listOverdueFunc: func(ctx context.Context, q core.OverdueQuery) ([]*model.Fixture, error) {
			return overdueFixtures(1001, 1002), nil
		},
		statusesFunc: func(ctx context.Context, ids []int64) (map[int64]model.FixtureStatus, error) {
			return map[int64]model.FixtureStatus{
				1001: model.StatusFullTime,
				1002: model.StatusNotStarted,
			}, nil
		},
		getByIDsFunc: func(ctx context.Context, ids []int64) (map[int64]*model.Fixture, error) {
			byID := map[int64]*model.Fixture{}
			for _, f := range overdueFixtures(1001) {
				byID[f.ExternalID] = f
			}
			return byID, nil
		},
		upsertFunc: func(ctx context.Context, f *model.Fixture) (core.UpsertAction, error) {
			return core.UpsertUpdated, nil
		},
	}
	provider := &mockProviderClient{
		byIDsFunc: func(ctx context.Context, ids []int64) ([]model.FixtureDTO, error) {
			// Provider has dropped fixture 1002 entirely.
			return []model.FixtureDTO{
				testutil.NewFixtureDTO(1001).
					WithStatus(model.StatusFullTime).
					KickingOffAt(testutil.TestTime()).
					Build(),
			}, nil
		},
	}
	svc := newRecoveryService(fixtures, provider, nil)

	outcome, did, err := svc.Run(context.Background(), &model.JobConfig{Key: model.JobFixtureRecovery}, false)
	require.NoError(t, err)
	require.True(t, did)

	assert.Equal(t, []int64{1002}, outcome.Missing, "unreturned fixtures are reported, not touched")
	assert.Equal(t, []int64{1001}, outcome.Recovered)
	assert.Equal(t, []int64{1002}, outcome.StillStuck)
}

func TestRecoveryService_Run_MetaBoundsPassedToQuery(t *testing.T) {
	var gotQuery core.OverdueQuery
	fixtures := &mockFixtureRepository{
		listOverdueFunc: func(ctx context.Context, q core.OverdueQuery) ([]*model.Fixture, error) {
			gotQuery = q
			return nil, nil
		},
	}
	svc := newRecoveryService(fixtures, &mockProviderClient{}, nil)

	cfg := &model.JobConfig{
		Key:  model.JobFixtureRecovery,
		Meta: []byte(`{"grace_minutes":30,"max_overdue_hours":12}`),
	}
	_, _, err := svc.Run(context.Background(), cfg, false)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, gotQuery.Grace)
	assert.Equal(t, 12*time.Hour, gotQuery.MaxOverdue)
}

func TestRecoveryService_Run_MetaOverridesClamped(t *testing.T) {
	var gotQuery core.OverdueQuery
	fixtures := &mockFixtureRepository{
		listOverdueFunc: func(ctx context.Context, q core.OverdueQuery) ([]*model.Fixture, error) {
			gotQuery = q
			return nil, nil
		},
	}
	svc := newRecoveryService(fixtures, &mockProviderClient{}, nil)

	cfg := &model.JobConfig{
		Key:  model.JobFixtureRecovery,
		Meta: []byte(`{"grace_minutes":600,"max_overdue_hours":100000}`),
	}
	_, _, err := svc.Run(context.Background(), cfg, false)
	require.NoError(t, err)

	assert.Equal(t, 120*time.Minute, gotQuery.Grace)
	assert.Equal(t, 168*time.Hour, gotQuery.MaxOverdue)
}

func TestRecoveryService_Run_ConfigDefaultsUsedWithoutMeta(t *testing.T) {
	var gotQuery core.OverdueQuery
	fixtures := &mockFixtureRepository{
		listOverdueFunc: func(ctx context.Context, q core.OverdueQuery) ([]*model.Fixture, error) {
			gotQuery = q
			return nil, nil
		},
	}
	fixtureSync := newFixtureSyncService(&mockProviderClient{}, fixtures, &mockLeagueRepository{}, &mockSeedBatchRepository{})
	svc := NewRecoveryService(RecoveryServiceOptions{
		Fixtures:    fixtures,
		FixtureSync: fixtureSync,
		Defaults:    config.RecoveryConfig{GraceMinutes: 20, MaxOverdueHours: 24},
	})

	_, _, err := svc.Run(context.Background(), &model.JobConfig{Key: model.JobFixtureRecovery}, false)
	require.NoError(t, err)

	assert.Equal(t, 20*time.Minute, gotQuery.Grace)
	assert.Equal(t, 24*time.Hour, gotQuery.MaxOverdue)
}

func TestRecoveryService_Run_FetchFailureReportsDid(t *testing.T) {
	fetchErr := errors.New("provider down")
	fixtures := &mockFixtureRepository{
		listOverdueFunc: func(ctx context.Context, q core.OverdueQuery) ([]*model.Fixture, error) {
			return overdueFixtures(1001), nil
		},
	}
	provider := &mockProviderClient{
		byIDsFunc: func(ctx context.Context, ids []int64) ([]model.FixtureDTO, error) {
			return nil, fetchErr
		},
	}
	svc := newRecoveryService(fixtures, provider, nil)

	_, did, err := svc.Run(context.Background(), &model.JobConfig{Key: model.JobFixtureRecovery}, false)
	require.ErrorIs(t, err, fetchErr)
	assert.True(t, did, "a failed pass with overdue fixtures is still a pass")
}

func TestRecoveryService_Run_DryRunSkipsListener(t *testing.T) {
	fixtures := &mockFixtureRepository{
		listOverdueFunc: func(ctx context.Context, q core.OverdueQuery) ([]*model.Fixture, error) {
			return overdueFixtures(1001), nil
		},
		statusesFunc: func(ctx context.Context, ids []int64) (map[int64]model.FixtureStatus, error) {
			return map[int64]model.FixtureStatus{1001: model.StatusFullTime}, nil
		},
	}
	provider := &mockProviderClient{
		byIDsFunc: func(ctx context.Context, ids []int64) ([]model.FixtureDTO, error) {
			return []model.FixtureDTO{
				testutil.NewFixtureDTO(1001).
					WithStatus(model.StatusFullTime).
					KickingOffAt(testutil.TestTime()).
					Build(),
			}, nil
		},
	}
	listener := &recordingListener{}
	svc := newRecoveryService(fixtures, provider, listener)

	_, did, err := svc.Run(context.Background(), &model.JobConfig{Key: model.JobFixtureRecovery}, true)
	require.NoError(t, err)
	require.True(t, did)
	assert.Empty(t, listener.live, "dry run must not notify")
	assert.Empty(t, listener.finished, "dry run must not notify")
	assert.Empty(t, fixtures.upsertedFixtures(), "dry run must not write")
}
