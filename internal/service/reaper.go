package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/matchday/sportsync/config"
	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/observability/metrics"
	"github.com/matchday/sportsync/internal/observability/statsd"
)

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Runs    core.JobRunRepository
	Batches core.SeedBatchRepository
	Config  config.ReaperConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// ReaperService keeps the run and batch tables bounded. Each sweep
// force-fails orphaned runs (still marked running long past any plausible
// execution time, usually a crashed process), then deletes terminal runs and
// closed batches past their retention age.
type ReaperService struct {
	runs    core.JobRunRepository
	batches core.SeedBatchRepository
	config  config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Runs == nil {
		return nil, errors.New("JobRunRepository is required")
	}
	if opts.Batches == nil {
		return nil, errors.New("SeedBatchRepository is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &ReaperService{
		runs:    opts.Runs,
		batches: opts.Batches,
		config:  opts.Config,
		logger:  opts.Logger.With("component", "reaper"),
		metrics: opts.Metrics,
	}, nil
}

// Run starts the cleanup loop and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting reaper", "interval", s.config.Interval)

	// Jitter prevents a thundering herd when multiple instances start together.
	s.waitWithJitter(ctx)
	if ctx.Err() != nil {
		return s.shutdownErr(ctx)
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.Sweep(ctx); err != nil {
		s.logSweepError(ctx, err)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "reaper stopping", "reason", ctx.Err())
			return s.shutdownErr(ctx)
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logSweepError(ctx, err)
			}
		}
	}
}

// waitWithJitter delays startup by up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}

	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)))
	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

type sweepStep struct {
	name string
	fn   func(context.Context) (int64, error)
}

// Sweep performs one full cleanup pass. Step errors are joined rather than
// aborting the pass, so one failing table cannot starve the others.
func (s *ReaperService) Sweep(ctx context.Context) error {
	var errs []error

	steps := []sweepStep{
		{name: "mark_orphaned_runs", fn: s.markOrphanedRuns},
		{name: "delete_old_runs", fn: s.deleteOldRuns},
		{name: "delete_old_batches", fn: s.deleteOldBatches},
	}

	for _, step := range steps {
		start := time.Now()
		count, err := step.fn(ctx)
		metrics.EmitCleanup(s.metrics, metrics.CleanupMetric{
			Step:    step.name,
			Count:   count,
			Elapsed: time.Since(start),
			Err:     suppressCancellation(err),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			if isCancellation(err) {
				break
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("reaper sweep: %w", errors.Join(errs...))
	}
	return nil
}

func (s *ReaperService) markOrphanedRuns(ctx context.Context) (int64, error) {
	count, err := s.runs.MarkOrphanedRuns(ctx, s.config.OrphanMaxAge)
	if err != nil {
		return count, err
	}
	if count > 0 {
		s.logger.WarnContext(ctx, "marked orphaned runs as failed",
			"count", count, "max_age", s.config.OrphanMaxAge)
	}
	return count, nil
}

// deleteOldRuns loops in batches until no rows remain, so a large backlog
// never produces one unbounded statement.
func (s *ReaperService) deleteOldRuns(ctx context.Context) (int64, error) {
	var total int64
	for {
		count, err := s.runs.DeleteOldRuns(ctx, core.DeleteOldRunsParams{
			MaxAge:    s.config.RunMaxAge,
			BatchSize: s.config.BatchSize,
		})
		if err != nil {
			return total, err
		}
		total += count
		if count == 0 {
			break
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}

	if total > 0 {
		s.logger.InfoContext(ctx, "deleted old job runs",
			"count", total, "max_age", s.config.RunMaxAge)
	}
	return total, nil
}

func (s *ReaperService) deleteOldBatches(ctx context.Context) (int64, error) {
	var total int64
	for {
		count, err := s.batches.DeleteOldBatches(ctx, core.DeleteOldBatchesParams{
			MaxAge:    s.config.BatchMaxAge,
			BatchSize: s.config.BatchSize,
		})
		if err != nil {
			return total, err
		}
		total += count
		if count == 0 {
			break
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}

	if total > 0 {
		s.logger.InfoContext(ctx, "deleted old seed batches",
			"count", total, "max_age", s.config.BatchMaxAge)
	}
	return total, nil
}

func (s *ReaperService) logSweepError(ctx context.Context, err error) {
	if isCancellation(err) {
		s.logger.DebugContext(ctx, "sweep cancelled", "error", err)
		return
	}
	s.logger.ErrorContext(ctx, "sweep failed", "error", err)
}

func (s *ReaperService) shutdownErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressCancellation(err error) error {
	if isCancellation(err) {
		return nil
	}
	return err
}
