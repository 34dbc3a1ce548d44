package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/domain/model"
)

func TestHarness_Execute_Success(t *testing.T) {
	runs := &mockJobRunRepository{}
	configs := &mockJobConfigRepository{}
	h := NewHarness(HarnessOptions{Runs: runs, Configs: configs})

	run, err := h.Execute(context.Background(), RunRequest{
		JobKey:  model.JobFixturesSync,
		Trigger: model.TriggerManual,
	}, func(ctx context.Context, cfg *model.JobConfig) (RunReport, error) {
		return RunReport{RowsAffected: 7, Meta: json.RawMessage(`{"counts":{"inserted":7}}`)}, nil
	})
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, model.RunStatusSuccess, run.Status)
	assert.Equal(t, int64(7), run.RowsAffected)

	finished := runs.finished()
	require.Len(t, finished, 1)
	assert.Equal(t, "run-1", finished[0].ID)
	assert.Equal(t, model.RunStatusSuccess, finished[0].Status)
	assert.Equal(t, int64(7), finished[0].RowsAffected)
	assert.Empty(t, finished[0].ErrMessage)
}

func TestHarness_Execute_FailureClosesRunAndReturnsError(t *testing.T) {
	runs := &mockJobRunRepository{}
	configs := &mockJobConfigRepository{}
	h := NewHarness(HarnessOptions{Runs: runs, Configs: configs})

	inner := errors.New("provider unreachable")
	wrapped := fmt.Errorf("fetch fixtures: %w", inner)

	_, err := h.Execute(context.Background(), RunRequest{
		JobKey:  model.JobFixturesSync,
		Trigger: model.TriggerAuto,
	}, func(ctx context.Context, cfg *model.JobConfig) (RunReport, error) {
		return RunReport{}, wrapped
	})
	require.ErrorIs(t, err, inner, "run function errors pass through unwrapped")

	finished := runs.finished()
	require.Len(t, finished, 1)
	assert.Equal(t, model.RunStatusFailed, finished[0].Status)
	assert.Equal(t, "fetch fixtures: provider unreachable", finished[0].ErrMessage)
	assert.Contains(t, finished[0].ErrDetail, "caused by: provider unreachable")
}

func TestHarness_Execute_DisabledAutoRecordsSkip(t *testing.T) {
	runs := &mockJobRunRepository{}
	configs := &mockJobConfigRepository{
		getByKeyFunc: func(ctx context.Context, key model.JobKey) (*model.JobConfig, error) {
			return &model.JobConfig{Key: key, Enabled: false}, nil
		},
	}
	h := NewHarness(HarnessOptions{Runs: runs, Configs: configs})

	called := false
	run, err := h.Execute(context.Background(), RunRequest{
		JobKey:  model.JobOddsSync,
		Trigger: model.TriggerAuto,
	}, func(ctx context.Context, cfg *model.JobConfig) (RunReport, error) {
		called = true
		return RunReport{}, nil
	})
	require.NoError(t, err)

	assert.False(t, called, "run function must not execute for a disabled auto run")
	assert.Equal(t, model.RunStatusSkipped, run.Status)

	finished := runs.finished()
	require.Len(t, finished, 1)
	assert.JSONEq(t, `{"reason":"disabled"}`, string(finished[0].Meta))
}

func TestHarness_Execute_DisabledManualStillRuns(t *testing.T) {
	runs := &mockJobRunRepository{}
	configs := &mockJobConfigRepository{
		getByKeyFunc: func(ctx context.Context, key model.JobKey) (*model.JobConfig, error) {
			return &model.JobConfig{Key: key, Enabled: false}, nil
		},
	}
	h := NewHarness(HarnessOptions{Runs: runs, Configs: configs})

	run, err := h.Execute(context.Background(), RunRequest{
		JobKey:  model.JobOddsSync,
		Trigger: model.TriggerManual,
	}, func(ctx context.Context, cfg *model.JobConfig) (RunReport, error) {
		return RunReport{RowsAffected: 1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSuccess, run.Status)
}

func TestHarness_Execute_SkipReasonMergedIntoMeta(t *testing.T) {
	runs := &mockJobRunRepository{}
	configs := &mockJobConfigRepository{}
	h := NewHarness(HarnessOptions{Runs: runs, Configs: configs})

	run, err := h.Execute(context.Background(), RunRequest{
		JobKey:  model.JobFixturesSync,
		Trigger: model.TriggerAuto,
	}, func(ctx context.Context, cfg *model.JobConfig) (RunReport, error) {
		return RunReport{
			Skipped:    true,
			SkipReason: "nothing_to_sync",
			Meta:       json.RawMessage(`{"window_days":3}`),
		}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusSkipped, run.Status)

	finished := runs.finished()
	require.Len(t, finished, 1)
	assert.Equal(t, model.RunStatusSkipped, finished[0].Status)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(finished[0].Meta, &meta))
	assert.Equal(t, "nothing_to_sync", meta["reason"])
	assert.Equal(t, float64(3), meta["window_days"])
}

func TestHarness_Execute_ConfigLoadFailure(t *testing.T) {
	loadErr := errors.New("db gone")
	runs := &mockJobRunRepository{}
	configs := &mockJobConfigRepository{
		getByKeyFunc: func(ctx context.Context, key model.JobKey) (*model.JobConfig, error) {
			return nil, loadErr
		},
	}
	h := NewHarness(HarnessOptions{Runs: runs, Configs: configs})

	_, err := h.Execute(context.Background(), RunRequest{
		JobKey:  model.JobLeaguesSeed,
		Trigger: model.TriggerManual,
	}, func(ctx context.Context, cfg *model.JobConfig) (RunReport, error) {
		t.Fatal("run function must not execute")
		return RunReport{}, nil
	})
	require.ErrorIs(t, err, loadErr)
	assert.Empty(t, runs.startRuns, "no run row without a config")
}

func TestHarness_Execute_FinishFailureSurfacesWhenRunSucceeded(t *testing.T) {
	finishErr := errors.New("write failed")
	runs := &mockJobRunRepository{
		finishFunc: func(ctx context.Context, params core.FinishRunParams) error {
			return finishErr
		},
	}
	configs := &mockJobConfigRepository{}
	h := NewHarness(HarnessOptions{Runs: runs, Configs: configs})

	_, err := h.Execute(context.Background(), RunRequest{
		JobKey:  model.JobFixturesSync,
		Trigger: model.TriggerManual,
	}, func(ctx context.Context, cfg *model.JobConfig) (RunReport, error) {
		return RunReport{}, nil
	})
	require.ErrorIs(t, err, finishErr)
}

func TestErrorChain(t *testing.T) {
	inner := errors.New("inner")
	mid := fmt.Errorf("mid: %w", inner)
	outer := fmt.Errorf("outer: %w", mid)

	chain := errorChain(outer)
	assert.Equal(t, "outer: mid: inner\ncaused by: mid: inner\ncaused by: inner", chain)
}
