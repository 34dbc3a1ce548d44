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
)

func reaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:     10 * time.Minute,
		OrphanMaxAge: 3 * time.Hour,
		RunMaxAge:    720 * time.Hour,
		BatchMaxAge:  720 * time.Hour,
		BatchSize:    500,
	}
}

func TestNewReaperService_RequiresRepos(t *testing.T) {
	_, err := NewReaperService(ReaperServiceOptions{Batches: &mockSeedBatchRepository{}})
	require.Error(t, err)

	_, err = NewReaperService(ReaperServiceOptions{Runs: &mockJobRunRepository{}})
	require.Error(t, err)
}

func TestReaperService_Sweep_RunsAllSteps(t *testing.T) {
	var orphanAge time.Duration
	runs := &mockJobRunRepository{
		orphanFunc: func(ctx context.Context, maxAge time.Duration) (int64, error) {
			orphanAge = maxAge
			return 2, nil
		},
	}
	batches := &mockSeedBatchRepository{}
	svc, err := NewReaperService(ReaperServiceOptions{
		Runs:    runs,
		Batches: batches,
		Config:  reaperConfig(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Sweep(context.Background()))
	assert.Equal(t, 3*time.Hour, orphanAge)
}

func TestReaperService_Sweep_DeletesInBatchesUntilDrained(t *testing.T) {
	var calls []core.DeleteOldRunsParams
	deleted := []int64{500, 500, 120, 0}
	runs := &mockJobRunRepository{
		deleteFunc: func(ctx context.Context, params core.DeleteOldRunsParams) (int64, error) {
			calls = append(calls, params)
			return deleted[len(calls)-1], nil
		},
	}
	svc, err := NewReaperService(ReaperServiceOptions{
		Runs:    runs,
		Batches: &mockSeedBatchRepository{},
		Config:  reaperConfig(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Sweep(context.Background()))

	require.Len(t, calls, 4, "loops until a batch comes back empty")
	assert.Equal(t, 500, calls[0].BatchSize)
	assert.Equal(t, 720*time.Hour, calls[0].MaxAge)
}

func TestReaperService_Sweep_StepFailureDoesNotStarveOthers(t *testing.T) {
	orphanErr := errors.New("lock wait")
	runs := &mockJobRunRepository{
		orphanFunc: func(ctx context.Context, maxAge time.Duration) (int64, error) {
			return 0, orphanErr
		},
	}
	batchDeletes := 0
	batches := &mockSeedBatchRepository{
		deleteFunc: func(ctx context.Context, params core.DeleteOldBatchesParams) (int64, error) {
			batchDeletes++
			return 0, nil
		},
	}
	svc, err := NewReaperService(ReaperServiceOptions{
		Runs:    runs,
		Batches: batches,
		Config:  reaperConfig(),
	})
	require.NoError(t, err)

	err = svc.Sweep(context.Background())
	require.ErrorIs(t, err, orphanErr)
	assert.Equal(t, 1, batchDeletes, "later steps still ran")
}

func TestReaperService_Sweep_CancellationStopsRemainingSteps(t *testing.T) {
	runs := &mockJobRunRepository{
		orphanFunc: func(ctx context.Context, maxAge time.Duration) (int64, error) {
			return 0, context.Canceled
		},
	}
	batchDeletes := 0
	batches := &mockSeedBatchRepository{
		deleteFunc: func(ctx context.Context, params core.DeleteOldBatchesParams) (int64, error) {
			batchDeletes++
			return 0, nil
		},
	}
	svc, err := NewReaperService(ReaperServiceOptions{
		Runs:    runs,
		Batches: batches,
		Config:  reaperConfig(),
	})
	require.NoError(t, err)

	err = svc.Sweep(context.Background())
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, batchDeletes, "cancellation aborts the pass")
}

func TestReaperService_Run_ReturnsNilOnCancel(t *testing.T) {
	svc, err := NewReaperService(ReaperServiceOptions{
		Runs:    &mockJobRunRepository{},
		Batches: &mockSeedBatchRepository{},
		Config: config.ReaperConfig{
			Interval:  50 * time.Millisecond,
			BatchSize: 10,
		},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case runErr := <-done:
		require.NoError(t, runErr)
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}
