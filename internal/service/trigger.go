package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/data"
	"github.com/matchday/sportsync/internal/domain/model"
	apperrors "github.com/matchday/sportsync/internal/errors"
)

// TriggerRequest describes one job invocation, from the scheduler or an
// operator.
type TriggerRequest struct {
	JobKey      model.JobKey
	Trigger     model.TriggerKind
	TriggeredBy *string
	// DryRun runs the full fetch and diff but suppresses storage writes and
	// batch accounting. The run record itself is still written.
	DryRun bool
}

// SyncTriggerOptions bundles dependencies for NewSyncTriggerService.
type SyncTriggerOptions struct {
	Harness     *Harness
	Locker      core.Locker
	Fixtures    *FixtureSyncService
	Odds        *OddsSyncService
	Leagues     *LeagueSeedService
	Recovery    *RecoveryService
	Coverage    *core.CoverageService
	LockTimeout time.Duration
	Logger      *slog.Logger
}

// SyncTriggerService is the single entry point for running jobs. It resolves
// a job key to its workflow, fetches provider data outside the advisory lock,
// then takes the per-job lock around the storage pass and records the run
// through the harness.
type SyncTriggerService struct {
	harness     *Harness
	locker      core.Locker
	fixtures    *FixtureSyncService
	odds        *OddsSyncService
	leagues     *LeagueSeedService
	recovery    *RecoveryService
	coverage    *core.CoverageService
	lockTimeout time.Duration
	logger      *slog.Logger
}

// NewSyncTriggerService creates a new SyncTriggerService with the given dependencies.
func NewSyncTriggerService(opts SyncTriggerOptions) *SyncTriggerService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &SyncTriggerService{
		harness:     opts.Harness,
		locker:      opts.Locker,
		fixtures:    opts.Fixtures,
		odds:        opts.Odds,
		leagues:     opts.Leagues,
		recovery:    opts.Recovery,
		coverage:    opts.Coverage,
		lockTimeout: opts.LockTimeout,
		logger:      opts.Logger.With("component", "sync_trigger"),
	}
}

// TriggerJob runs the named job once and returns its run record. Concurrent
// invocations of the same job contend on a per-job advisory lock: the loser
// gets a busy error, and the losing attempt is still recorded as a failed
// run. A lock timeout releases the caller while the in-flight work settles.
func (s *SyncTriggerService) TriggerJob(ctx context.Context, req TriggerRequest) (*model.JobRun, error) {
	if !req.Trigger.Valid() {
		return nil, apperrors.Validationf("invalid trigger kind %q", req.Trigger)
	}

	fn, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	run, runErr := s.harness.Execute(ctx, RunRequest{
		JobKey:      req.JobKey,
		Trigger:     req.Trigger,
		TriggeredBy: req.TriggeredBy,
	}, fn)
	if runErr != nil {
		return run, s.classifyRunError(req.JobKey, runErr)
	}

	s.invalidateCoverage(ctx, req, run)
	return run, nil
}

// resolve maps a job key to its run function.
func (s *SyncTriggerService) resolve(req TriggerRequest) (RunFunc, error) {
	switch req.JobKey {
	case model.JobLeaguesSeed:
		return s.runLeaguesSeed(req), nil
	case model.JobFixturesSync:
		return s.runFixtureSync(req, s.fixtures.FetchUpcoming), nil
	case model.JobFixturesLiveSync:
		return s.runFixtureSync(req, s.fixtures.FetchLive), nil
	case model.JobOddsSync:
		return s.runOddsSync(req), nil
	case model.JobFixtureRecovery:
		return s.runRecovery(req), nil
	default:
		return nil, apperrors.NotFoundf("unknown job %q", req.JobKey)
	}
}

type fixtureFetchFunc func(ctx context.Context, cfg *model.JobConfig) ([]model.FixtureDTO, error)

func (s *SyncTriggerService) runFixtureSync(req TriggerRequest, fetch fixtureFetchFunc) RunFunc {
	return func(ctx context.Context, cfg *model.JobConfig) (RunReport, error) {
		items, err := fetch(ctx, cfg)
		if err != nil {
			return RunReport{}, fmt.Errorf("fetch fixtures: %w", err)
		}
		if len(items) == 0 {
			return RunReport{Skipped: true, SkipReason: "nothing_to_sync"}, nil
		}

		var result model.SyncResult
		err = s.withJobLock(ctx, req.JobKey, func(ctx context.Context) error {
			var syncErr error
			result, syncErr = s.fixtures.Sync(ctx, FixtureSyncParams{
				BatchName: string(req.JobKey),
				Items:     items,
				Params:    cfg.Meta,
				DryRun:    req.DryRun,
			})
			return syncErr
		})
		if err != nil {
			return RunReport{}, err
		}
		return syncReport(result, req.DryRun)
	}
}

func (s *SyncTriggerService) runOddsSync(req TriggerRequest) RunFunc {
	return func(ctx context.Context, cfg *model.JobConfig) (RunReport, error) {
		items, err := s.odds.FetchWindow(ctx, cfg)
		if err != nil {
			return RunReport{}, fmt.Errorf("fetch odds: %w", err)
		}
		if len(items) == 0 {
			return RunReport{Skipped: true, SkipReason: "nothing_to_sync"}, nil
		}

		var result model.SyncResult
		err = s.withJobLock(ctx, req.JobKey, func(ctx context.Context) error {
			var syncErr error
			result, syncErr = s.odds.Sync(ctx, OddsSyncParams{
				Items:  items,
				Params: cfg.Meta,
				DryRun: req.DryRun,
			})
			return syncErr
		})
		if err != nil {
			return RunReport{}, err
		}
		return syncReport(result, req.DryRun)
	}
}

func (s *SyncTriggerService) runLeaguesSeed(req TriggerRequest) RunFunc {
	return func(ctx context.Context, cfg *model.JobConfig) (RunReport, error) {
		items, err := s.leagues.Fetch(ctx)
		if err != nil {
			return RunReport{}, fmt.Errorf("fetch leagues: %w", err)
		}
		if len(items) == 0 {
			return RunReport{Skipped: true, SkipReason: "nothing_to_sync"}, nil
		}

		var result model.SyncResult
		err = s.withJobLock(ctx, req.JobKey, func(ctx context.Context) error {
			var syncErr error
			result, syncErr = s.leagues.Sync(ctx, LeagueSeedParams{
				Items:  items,
				Params: cfg.Meta,
				DryRun: req.DryRun,
			})
			return syncErr
		})
		if err != nil {
			return RunReport{}, err
		}
		return syncReport(result, req.DryRun)
	}
}

func (s *SyncTriggerService) runRecovery(req TriggerRequest) RunFunc {
	return func(ctx context.Context, cfg *model.JobConfig) (RunReport, error) {
		var (
			outcome RecoveryOutcome
			did     bool
		)
		err := s.withJobLock(ctx, req.JobKey, func(ctx context.Context) error {
			var runErr error
			outcome, did, runErr = s.recovery.Run(ctx, cfg, req.DryRun)
			return runErr
		})
		if err != nil {
			return RunReport{}, err
		}
		if !did {
			return RunReport{Skipped: true, SkipReason: "no_overdue_fixtures"}, nil
		}

		meta, err := json.Marshal(outcome)
		if err != nil {
			return RunReport{}, fmt.Errorf("encode recovery outcome: %w", err)
		}
		return RunReport{
			RowsAffected: int64(outcome.Result.Inserted + outcome.Result.Updated),
			Meta:         meta,
		}, nil
	}
}

func (s *SyncTriggerService) withJobLock(ctx context.Context, key model.JobKey, fn func(context.Context) error) error {
	return s.locker.WithLock(ctx, string(key), core.LockOptions{Timeout: s.lockTimeout}, fn)
}

// classifyRunError maps lock contention onto the application error taxonomy
// so callers can distinguish "already running" from a genuine failure.
func (s *SyncTriggerService) classifyRunError(key model.JobKey, err error) error {
	switch {
	case errors.Is(err, data.ErrLockNotAcquired):
		return apperrors.Wrapf(err, apperrors.ErrCodeBusy, "job %s is already running", key)
	case errors.Is(err, data.ErrLockTimeout):
		return apperrors.Wrapf(err, apperrors.ErrCodeTimeout, "job %s lock wait timed out", key)
	default:
		return err
	}
}

// invalidateCoverage drops the cached coverage snapshot after a run that
// changed stored data. Failures only affect snapshot freshness, so they are
// logged and swallowed.
func (s *SyncTriggerService) invalidateCoverage(ctx context.Context, req TriggerRequest, run *model.JobRun) {
	if s.coverage == nil || req.DryRun {
		return
	}
	if run == nil || run.Status != model.RunStatusSuccess || run.RowsAffected == 0 {
		return
	}
	if err := s.coverage.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "coverage invalidation failed", "job_key", req.JobKey, "error", err)
	}
}

// syncReport converts engine counts into a run report.
func syncReport(result model.SyncResult, dryRun bool) (RunReport, error) {
	payload := struct {
		Counts model.SyncResult `json:"counts"`
		DryRun bool             `json:"dry_run,omitempty"`
	}{Counts: result, DryRun: dryRun}

	meta, err := json.Marshal(payload)
	if err != nil {
		return RunReport{}, fmt.Errorf("encode sync counts: %w", err)
	}
	return RunReport{
		RowsAffected: int64(result.Inserted + result.Updated),
		Meta:         meta,
	}, nil
}
