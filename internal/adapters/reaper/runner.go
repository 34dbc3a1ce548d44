// Package reaper provides an adapter for running the cleanup loop.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/matchday/sportsync/config"
	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/data"
	"github.com/matchday/sportsync/internal/observability/statsd"
	"github.com/matchday/sportsync/internal/service"
)

// Runner wires the reaper service to its repositories and runs its loop.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB     *sql.DB
	Config config.ReaperConfig
	Logger *slog.Logger

	// Optional dependency injection for testing/decoupling
	Runs    core.JobRunRepository
	Batches core.SeedBatchRepository
	Metrics statsd.Sink
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && (opts.Runs == nil || opts.Batches == nil) {
		return nil, errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	runs := opts.Runs
	if runs == nil {
		runs = data.NewJobRunRepo(opts.DB, data.JobRunRepoConfig{Logger: opts.Logger})
	}
	batches := opts.Batches
	if batches == nil {
		batches = data.NewSeedBatchRepo(opts.DB, data.SeedBatchRepoConfig{Logger: opts.Logger})
	}

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Runs:    runs,
		Batches: batches,
		Config:  opts.Config,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{reaper: reaper, logger: opts.Logger}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	return r.reaper.Run(ctx)
}
