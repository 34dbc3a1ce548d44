// Package scheduler runs enabled jobs on their cron schedules.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/domain/model"
	apperrors "github.com/matchday/sportsync/internal/errors"
	obserrors "github.com/matchday/sportsync/internal/observability/errors"
	"github.com/matchday/sportsync/internal/observability/metrics"
	"github.com/matchday/sportsync/internal/observability/statsd"
	"github.com/matchday/sportsync/internal/service"
)

// cronParser accepts standard five-field specs, the format stored in
// job_configs.schedule_cron.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ValidateSpec reports whether a cron expression is accepted by the runner.
// The admin surface uses it to reject bad schedules before they are stored.
func ValidateSpec(spec string) error {
	_, err := cronParser.Parse(spec)
	return err
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Configs core.JobConfigRepository
	Trigger *service.SyncTriggerService

	// ReloadInterval is how often the runner re-reads job_configs so operator
	// edits take effect without a restart. Defaults to one minute.
	ReloadInterval time.Duration
	Logger         *slog.Logger
	Metrics        statsd.Sink
}

// Runner drives the cron scheduler. It loads enabled job configs, registers
// a cron entry per job, and rebuilds the schedule whenever the stored configs
// change. Fired entries go through the sync trigger with the auto trigger
// kind, so disabled-while-scheduled jobs degrade to recorded skips and
// overlapping fires degrade to busy errors rather than double work.
type Runner struct {
	configs        core.JobConfigRepository
	trigger        *service.SyncTriggerService
	reloadInterval time.Duration
	logger         *slog.Logger
	metrics        statsd.Sink

	cron     *cron.Cron
	schedule map[model.JobKey]string
}

// NewRunner creates a new scheduler runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Configs == nil {
		return nil, errors.New("JobConfigRepository is required")
	}
	if opts.Trigger == nil {
		return nil, errors.New("SyncTriggerService is required")
	}
	if opts.ReloadInterval <= 0 {
		opts.ReloadInterval = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Runner{
		configs:        opts.Configs,
		trigger:        opts.Trigger,
		reloadInterval: opts.ReloadInterval,
		logger:         opts.Logger.With("component", "scheduler"),
		metrics:        opts.Metrics,
	}, nil
}

// Run starts the scheduler and runs until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.reload(ctx); err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "scheduler started",
		"jobs", len(r.schedule), "reload_interval", r.reloadInterval)

	ticker := time.NewTicker(r.reloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "scheduler stopping", "reason", ctx.Err())
			r.stopCron()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := r.reload(ctx); err != nil {
				// Keep the last good schedule if the config read fails.
				r.logger.ErrorContext(ctx, "schedule reload failed", "error", err)
			}
		}
	}
}

// reload re-reads enabled job configs and swaps in a fresh cron instance when
// the desired schedule differs from the running one.
func (r *Runner) reload(ctx context.Context) error {
	cfgs, err := r.configs.ListEnabled(ctx)
	if err != nil {
		return err
	}

	desired := make(map[model.JobKey]string, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.ScheduleCron == nil {
			continue
		}
		if err := ValidateSpec(*cfg.ScheduleCron); err != nil {
			r.logger.WarnContext(ctx, "skipping job with invalid cron spec",
				"job_key", cfg.Key, "spec", *cfg.ScheduleCron, "error", err)
			continue
		}
		desired[cfg.Key] = *cfg.ScheduleCron
	}

	if scheduleEqual(r.schedule, desired) {
		return nil
	}

	next := cron.New(cron.WithParser(cronParser))
	for key, spec := range desired {
		jobKey := key
		if _, err := next.AddFunc(spec, func() { r.fire(ctx, jobKey) }); err != nil {
			r.logger.WarnContext(ctx, "failed to register cron entry",
				"job_key", jobKey, "spec", spec, "error", err)
		}
	}

	r.stopCron()
	r.cron = next
	r.schedule = desired
	r.cron.Start()

	r.logger.InfoContext(ctx, "schedule applied", "jobs", len(desired))
	return nil
}

// fire runs one scheduled job through the trigger facade.
func (r *Runner) fire(ctx context.Context, key model.JobKey) {
	start := time.Now()
	run, err := r.trigger.TriggerJob(ctx, service.TriggerRequest{
		JobKey:  key,
		Trigger: model.TriggerAuto,
	})
	r.emitFire(key, time.Since(start), err)

	switch {
	case apperrors.IsBusy(err):
		r.logger.InfoContext(ctx, "scheduled fire skipped, job already running", "job_key", key)
	case err != nil:
		r.logger.ErrorContext(ctx, "scheduled run failed", "job_key", key, "error", err)
	case run != nil:
		r.logger.InfoContext(ctx, "scheduled run finished",
			"job_key", key, "run_id", run.ID, "status", run.Status)
	}
}

func (r *Runner) emitFire(key model.JobKey, elapsed time.Duration, err error) {
	if r.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultFailed
	}
	tags := map[string]string{
		"job_key": string(key),
		"result":  result,
	}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	r.metrics.Count("scheduler.fire", 1, tags)
	if elapsed > 0 {
		r.metrics.Timing("scheduler.fire_duration", elapsed, metrics.CloneTags(tags))
	}
}

// stopCron stops the running cron instance and waits for in-flight entries.
func (r *Runner) stopCron() {
	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
	r.cron = nil
}

func scheduleEqual(a, b map[model.JobKey]string) bool {
	if len(a) != len(b) {
		return false
	}
	for key, spec := range a {
		if b[key] != spec {
			return false
		}
	}
	return true
}
