// Package service provides the business logic services for the sportsync job system.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/data"
	"github.com/matchday/sportsync/internal/domain/model"
	obserrors "github.com/matchday/sportsync/internal/observability/errors"
	"github.com/matchday/sportsync/internal/observability/metrics"
	"github.com/matchday/sportsync/internal/observability/notify"
	"github.com/matchday/sportsync/internal/observability/statsd"
	"github.com/matchday/sportsync/internal/service/failurenotifier"
)

// RunReport is what a job's run function hands back to the harness.
type RunReport struct {
	RowsAffected int64
	Meta         json.RawMessage
	// Skipped marks a run that decided not to do its work (for example an
	// empty provider window). The run row is closed as skipped, not success.
	Skipped    bool
	SkipReason string
}

// RunFunc executes one job under an open run row. The config passed in is the
// operator-owned persisted definition, meta included.
type RunFunc func(ctx context.Context, cfg *model.JobConfig) (RunReport, error)

// RunRequest identifies which job to run and on whose behalf.
type RunRequest struct {
	JobKey      model.JobKey
	Trigger     model.TriggerKind
	TriggeredBy *string
}

// HarnessOptions bundles dependencies for NewHarness.
type HarnessOptions struct {
	Runs         core.JobRunRepository
	Configs      core.JobConfigRepository
	Metrics      statsd.Sink
	Notifier     *failurenotifier.Service
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// Harness wraps every job execution in the run lifecycle: config lookup,
// enablement gate, run row open, exactly-one terminal close, metrics, and
// failure notification. Run functions only do domain work.
type Harness struct {
	runs         core.JobRunRepository
	configs      core.JobConfigRepository
	metrics      statsd.Sink
	notifier     *failurenotifier.Service
	timeProvider data.TimeProvider
	logger       *slog.Logger
}

// NewHarness creates a new Harness with the given dependencies.
func NewHarness(opts HarnessOptions) *Harness {
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Harness{
		runs:         opts.Runs,
		configs:      opts.Configs,
		metrics:      opts.Metrics,
		notifier:     opts.Notifier,
		timeProvider: opts.TimeProvider,
		logger:       opts.Logger.With("component", "job_harness"),
	}
}

// Execute runs one job under full lifecycle tracking and returns the closed
// run row. The run function's error is returned as-is so callers can match
// sentinels; the run row always reaches a terminal status first, even when
// the caller's context has been cancelled.
func (h *Harness) Execute(ctx context.Context, req RunRequest, fn RunFunc) (*model.JobRun, error) {
	cfg, err := h.configs.GetByKey(ctx, req.JobKey)
	if err != nil {
		return nil, fmt.Errorf("load config for %s: %w", req.JobKey, err)
	}

	if !cfg.Enabled && req.Trigger == model.TriggerAuto {
		return h.recordDisabledSkip(ctx, req)
	}

	run, err := h.runs.StartRun(ctx, core.StartRunParams{
		JobKey:      req.JobKey,
		Trigger:     req.Trigger,
		TriggeredBy: req.TriggeredBy,
	})
	if err != nil {
		return nil, fmt.Errorf("start run for %s: %w", req.JobKey, err)
	}

	h.logger.InfoContext(ctx, "job run started",
		"job_key", req.JobKey, "run_id", run.ID, "trigger", req.Trigger)

	report, runErr := fn(ctx, cfg)

	status := model.RunStatusSuccess
	switch {
	case runErr != nil:
		status = model.RunStatusFailed
	case report.Skipped:
		status = model.RunStatusSkipped
	}

	finish := core.FinishRunParams{
		ID:           run.ID,
		StartedAt:    run.StartedAt,
		Status:       status,
		RowsAffected: report.RowsAffected,
		Meta:         h.finalMeta(report),
	}
	if runErr != nil {
		finish.ErrMessage = runErr.Error()
		finish.ErrDetail = errorChain(runErr)
	}

	// The run row must close even when the caller's context is already done
	// (lock timeout, shutdown). Detach, but keep the write bounded.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if finishErr := h.runs.FinishRun(finishCtx, finish); finishErr != nil {
		h.logger.ErrorContext(ctx, "failed to finish job run",
			"job_key", req.JobKey, "run_id", run.ID, "error", finishErr)
		if runErr == nil {
			runErr = finishErr
		}
	}

	duration := h.timeProvider.Now().UTC().Sub(run.StartedAt)
	run.Status = status
	run.RowsAffected = report.RowsAffected

	h.emit(req, status, duration, runErr)
	h.logFinished(ctx, run, duration, runErr)

	if runErr != nil && status == model.RunStatusFailed {
		h.notifyFailure(finishCtx, run, runErr)
	}

	return run, runErr
}

func (h *Harness) recordDisabledSkip(ctx context.Context, req RunRequest) (*model.JobRun, error) {
	run, err := h.runs.StartRun(ctx, core.StartRunParams{
		JobKey:      req.JobKey,
		Trigger:     req.Trigger,
		TriggeredBy: req.TriggeredBy,
	})
	if err != nil {
		return nil, fmt.Errorf("start run for %s: %w", req.JobKey, err)
	}

	err = h.runs.FinishRun(ctx, core.FinishRunParams{
		ID:        run.ID,
		StartedAt: run.StartedAt,
		Status:    model.RunStatusSkipped,
		Meta:      json.RawMessage(`{"reason":"disabled"}`),
	})
	if err != nil {
		return nil, fmt.Errorf("finish skipped run for %s: %w", req.JobKey, err)
	}

	run.Status = model.RunStatusSkipped
	h.logger.InfoContext(ctx, "job disabled, run skipped", "job_key", req.JobKey, "run_id", run.ID)
	h.emit(req, model.RunStatusSkipped, 0, nil)
	return run, nil
}

func (h *Harness) finalMeta(report RunReport) json.RawMessage {
	if !report.Skipped || report.SkipReason == "" {
		return report.Meta
	}

	merged := map[string]any{}
	if len(report.Meta) > 0 {
		if err := json.Unmarshal(report.Meta, &merged); err != nil {
			merged = map[string]any{}
		}
	}
	merged["reason"] = report.SkipReason
	b, err := json.Marshal(merged)
	if err != nil {
		return report.Meta
	}
	return b
}

func (h *Harness) emit(req RunRequest, status model.JobRunStatus, duration time.Duration, err error) {
	metrics.EmitRunLifecycle(h.metrics, metrics.RunMetric{
		JobKey:   string(req.JobKey),
		Trigger:  string(req.Trigger),
		Result:   string(status),
		Duration: duration,
		Err:      err,
	})
}

func (h *Harness) logFinished(ctx context.Context, run *model.JobRun, duration time.Duration, err error) {
	if err != nil {
		h.logger.ErrorContext(ctx, "job run failed",
			"job_key", run.JobKey, "run_id", run.ID, "duration", duration, "error", err)
		return
	}
	h.logger.InfoContext(ctx, "job run finished",
		"job_key", run.JobKey, "run_id", run.ID, "status", run.Status,
		"duration", duration, "rows_affected", run.RowsAffected)
}

func (h *Harness) notifyFailure(ctx context.Context, run *model.JobRun, err error) {
	if h.notifier == nil || !h.notifier.Enabled() {
		return
	}
	h.notifier.NotifyRunFailure(ctx, notify.RunFailurePayload{
		RunID:      run.ID,
		JobKey:     string(run.JobKey),
		Trigger:    string(run.Trigger),
		Error:      err.Error(),
		ErrorClass: obserrors.Classify(err),
		OccurredAt: h.timeProvider.Now().UTC(),
	})
}

// errorChain renders each level of a wrapped error on its own line, innermost
// last. Bounded so a pathological Unwrap cycle cannot spin.
func errorChain(err error) string {
	var b strings.Builder
	for depth := 0; err != nil && depth < 16; depth++ {
		if depth > 0 {
			b.WriteString("\ncaused by: ")
		}
		b.WriteString(err.Error())
		err = errors.Unwrap(err)
	}
	return b.String()
}
