package data

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/domain/model"
	"github.com/matchday/sportsync/internal/testutil"
)

func newTestSeedBatchRepo(t *testing.T) (*SeedBatchRepo, *FixedTimeProvider) {
	t.Helper()
	db := testutil.SetupEphemeralSchemaDB(t)
	clock := NewFixedTimeProvider(testutil.TestTime())
	return NewSeedBatchRepo(db, SeedBatchRepoConfig{TimeProvider: clock}), clock
}

func TestSeedBatchRepo_BatchLifecycle(t *testing.T) {
	repo, _ := newTestSeedBatchRepo(t)
	ctx := context.Background()

	batch, err := repo.StartBatch(ctx, core.StartBatchParams{
		Name:    "fixtures_sync",
		Version: "1",
		Params:  json.RawMessage(`{"lookahead_days":7}`),
	})
	require.NoError(t, err)
	require.NotEmpty(t, batch.ID)
	assert.Equal(t, model.BatchStatusRunning, batch.Status)

	items := []core.TrackItemParams{
		{BatchID: batch.ID, ItemKey: "fixture:1001", Status: model.ItemStatusSuccess},
		{BatchID: batch.ID, ItemKey: "fixture:1002", Status: model.ItemStatusSkipped},
		{BatchID: batch.ID, ItemKey: "fixture:1003", Status: model.ItemStatusFailed, ErrMsg: "bad kickoff"},
	}
	for _, item := range items {
		require.NoError(t, repo.TrackItem(ctx, item))
	}

	err = repo.FinishBatch(ctx, core.FinishBatchParams{
		ID:     batch.ID,
		Status: model.BatchStatusSuccess,
		Meta:   json.RawMessage(`{"counts":{"inserted":1}}`),
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusSuccess, got.Status)
	assert.Equal(t, 3, got.ItemsTotal, "counters derive from the recorded items")
	assert.Equal(t, 1, got.ItemsSuccess)
	assert.Equal(t, 1, got.ItemsFailed)
	require.NotNil(t, got.FinishedAt)

	listed, err := repo.ListItems(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "fixture:1001", listed[0].ItemKey)
	require.NotNil(t, listed[2].ErrorMessage)
	assert.Equal(t, "bad kickoff", *listed[2].ErrorMessage)
}

func TestSeedBatchRepo_TrackItem_DuplicateKeyRejected(t *testing.T) {
	repo, _ := newTestSeedBatchRepo(t)
	ctx := context.Background()

	batch, err := repo.StartBatch(ctx, core.StartBatchParams{Name: "odds_sync", Version: "1"})
	require.NoError(t, err)

	item := core.TrackItemParams{BatchID: batch.ID, ItemKey: "odd:1", Status: model.ItemStatusSuccess}
	require.NoError(t, repo.TrackItem(ctx, item))

	item.Status = model.ItemStatusFailed
	err = repo.TrackItem(ctx, item)
	require.ErrorIs(t, err, ErrSeedItemExists)

	listed, err := repo.ListItems(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, model.ItemStatusSuccess, listed[0].Status, "first record wins")
}

func TestSeedBatchRepo_TrackItem_SameKeyAcrossBatches(t *testing.T) {
	repo, _ := newTestSeedBatchRepo(t)
	ctx := context.Background()

	first, err := repo.StartBatch(ctx, core.StartBatchParams{Name: "fixtures_sync", Version: "1"})
	require.NoError(t, err)
	second, err := repo.StartBatch(ctx, core.StartBatchParams{Name: "fixtures_sync", Version: "1"})
	require.NoError(t, err)

	require.NoError(t, repo.TrackItem(ctx, core.TrackItemParams{
		BatchID: first.ID, ItemKey: "fixture:1001", Status: model.ItemStatusSuccess,
	}))
	require.NoError(t, repo.TrackItem(ctx, core.TrackItemParams{
		BatchID: second.ID, ItemKey: "fixture:1001", Status: model.ItemStatusSkipped,
	}))
}

func TestSeedBatchRepo_FinishBatch_OnlyOnce(t *testing.T) {
	repo, _ := newTestSeedBatchRepo(t)
	ctx := context.Background()

	batch, err := repo.StartBatch(ctx, core.StartBatchParams{Name: "leagues_seed", Version: "1"})
	require.NoError(t, err)

	finish := core.FinishBatchParams{ID: batch.ID, Status: model.BatchStatusFailed, ErrMsg: "boom"}
	require.NoError(t, repo.FinishBatch(ctx, finish))

	err = repo.FinishBatch(ctx, finish)
	require.ErrorIs(t, err, ErrSeedBatchNotFound)
}

func TestSeedBatchRepo_FinishBatch_RejectsRunningStatus(t *testing.T) {
	repo, _ := newTestSeedBatchRepo(t)

	err := repo.FinishBatch(context.Background(), core.FinishBatchParams{
		ID:     "whatever",
		Status: model.BatchStatusRunning,
	})
	require.Error(t, err)
}

func TestSeedBatchRepo_DeleteOldBatches_CascadesItems(t *testing.T) {
	repo, clock := newTestSeedBatchRepo(t)
	ctx := context.Background()

	old, err := repo.StartBatch(ctx, core.StartBatchParams{Name: "fixtures_sync", Version: "1"})
	require.NoError(t, err)
	require.NoError(t, repo.TrackItem(ctx, core.TrackItemParams{
		BatchID: old.ID, ItemKey: "fixture:1001", Status: model.ItemStatusSuccess,
	}))
	require.NoError(t, repo.FinishBatch(ctx, core.FinishBatchParams{ID: old.ID, Status: model.BatchStatusSuccess}))

	// A batch still running never gets reaped.
	stuck, err := repo.StartBatch(ctx, core.StartBatchParams{Name: "odds_sync", Version: "1"})
	require.NoError(t, err)

	clock.AddTime(40 * 24 * time.Hour)

	count, err := repo.DeleteOldBatches(ctx, core.DeleteOldBatchesParams{MaxAge: 30 * 24 * time.Hour, BatchSize: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	_, err = repo.GetByID(ctx, old.ID)
	require.ErrorIs(t, err, ErrSeedBatchNotFound)

	items, err := repo.ListItems(ctx, old.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = repo.GetByID(ctx, stuck.ID)
	require.NoError(t, err)
}
