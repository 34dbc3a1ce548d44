package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/matchday/sportsync/config"
	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/domain/fixture"
	"github.com/matchday/sportsync/internal/domain/model"
)

// TransitionListener is notified after recovery moves fixtures out of the
// pre-match state, so downstream consumers (settlement, push feeds) can react.
// Delivery is best-effort. Fixtures that moved into an administrative state
// (postponed, cancelled, ...) are reported in the outcome only; they never
// reach the listener.
type TransitionListener interface {
	FixturesWentLive(ctx context.Context, externalIDs []int64) error
	FixturesFinished(ctx context.Context, externalIDs []int64) error
}

// LoggingTransitionListener records recovered transitions in the log stream.
// It is the default collaborator until a real downstream consumer is wired.
type LoggingTransitionListener struct {
	Logger *slog.Logger
}

func (l *LoggingTransitionListener) FixturesWentLive(ctx context.Context, externalIDs []int64) error {
	l.log(ctx, "fixtures went live after recovery", externalIDs)
	return nil
}

func (l *LoggingTransitionListener) FixturesFinished(ctx context.Context, externalIDs []int64) error {
	l.log(ctx, "fixtures finished after recovery", externalIDs)
	return nil
}

func (l *LoggingTransitionListener) log(ctx context.Context, msg string, externalIDs []int64) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, msg, "count", len(externalIDs), "external_ids", externalIDs)
}

// RecoveryServiceOptions bundles dependencies for NewRecoveryService.
type RecoveryServiceOptions struct {
	Fixtures    core.FixtureRepository
	FixtureSync *FixtureSyncService
	Listener    TransitionListener
	// Defaults supplies the window bounds used when a job config carries no
	// meta override. Zero fields fall back to the built-in defaults.
	Defaults config.RecoveryConfig
	Logger   *slog.Logger
}

// RecoveryService reconciles fixtures whose kickoff passed but whose stored
// status never left the pre-match state, usually because a live sync window
// missed them. It refetches the stuck fixtures from the provider and runs
// them through the normal sync pass.
type RecoveryService struct {
	fixtures    core.FixtureRepository
	fixtureSync *FixtureSyncService
	listener    TransitionListener
	defaults    config.RecoveryConfig
	logger      *slog.Logger
}

// NewRecoveryService creates a new RecoveryService with the given dependencies.
func NewRecoveryService(opts RecoveryServiceOptions) *RecoveryService {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	defaults := opts.Defaults
	if defaults.GraceMinutes == 0 {
		defaults.GraceMinutes = 10
	}
	if defaults.MaxOverdueHours == 0 {
		defaults.MaxOverdueHours = 48
	}
	defaults.Sanitize()

	return &RecoveryService{
		fixtures:    opts.Fixtures,
		fixtureSync: opts.FixtureSync,
		listener:    opts.Listener,
		defaults:    defaults,
		logger:      opts.Logger.With("component", "fixture_recovery"),
	}
}

// RecoveryOutcome summarizes one recovery pass.
type RecoveryOutcome struct {
	Result model.SyncResult `json:"counts"`
	// Overdue is how many stuck fixtures the window selected.
	Overdue int `json:"overdue"`
	// Recovered fixtures moved into a live or finished state after the
	// refetch. Only these are delivered to the transition listener.
	Recovered []int64 `json:"recovered,omitempty"`
	// Administrative fixtures moved to postponed, cancelled or a similar
	// operator state. They left the window but nothing downstream should
	// treat them as played.
	Administrative []int64 `json:"administrative,omitempty"`
	// StillStuck fixtures remain pre-match even after a successful refetch.
	StillStuck []int64 `json:"still_stuck,omitempty"`
	// Missing fixtures were not returned by the provider at all. They are
	// left untouched for the next pass or manual intervention.
	Missing []int64 `json:"missing,omitempty"`
}

// Run executes one recovery pass. A pass with no overdue fixtures returns
// (outcome, false, nil) with did=false so the caller can record a skip.
func (s *RecoveryService) Run(
	ctx context.Context,
	cfg *model.JobConfig,
	dryRun bool,
) (RecoveryOutcome, bool, error) {
	var outcome RecoveryOutcome

	meta := model.RecoveryMeta{
		GraceMinutes:    s.defaults.GraceMinutes,
		MaxOverdueHours: s.defaults.MaxOverdueHours,
	}
	if err := model.DecodeMeta(cfg.Meta, &meta); err != nil {
		return outcome, false, err
	}
	// Operator meta overrides are clamped to the same bounds as the env
	// configuration.
	bounds := config.RecoveryConfig{
		GraceMinutes:    meta.GraceMinutes,
		MaxOverdueHours: meta.MaxOverdueHours,
	}
	bounds.Sanitize()
	meta.GraceMinutes = bounds.GraceMinutes
	meta.MaxOverdueHours = bounds.MaxOverdueHours

	overdue, err := s.fixtures.ListOverdueNotStarted(ctx, core.OverdueQuery{
		Grace:      time.Duration(meta.GraceMinutes) * time.Minute,
		MaxOverdue: time.Duration(meta.MaxOverdueHours) * time.Hour,
	})
	if err != nil {
		return outcome, false, err
	}
	outcome.Overdue = len(overdue)
	if len(overdue) == 0 {
		return outcome, false, nil
	}

	ids := make([]int64, len(overdue))
	for i, f := range overdue {
		ids[i] = f.ExternalID
	}
	s.logger.InfoContext(ctx, "recovering overdue fixtures", "count", len(ids))

	dtos, err := s.fixtureSync.FetchByExternalIDs(ctx, ids)
	if err != nil {
		return outcome, true, err
	}
	outcome.Missing = missingIDs(ids, dtos)
	if len(outcome.Missing) > 0 {
		s.logger.WarnContext(ctx, "provider did not return some overdue fixtures",
			"count", len(outcome.Missing), "external_ids", outcome.Missing)
	}

	params, err := json.Marshal(meta)
	if err != nil {
		return outcome, true, fmt.Errorf("encode recovery params: %w", err)
	}
	outcome.Result, err = s.fixtureSync.Sync(ctx, FixtureSyncParams{
		BatchName: "fixture_recovery",
		Items:     dtos,
		Params:    params,
		DryRun:    dryRun,
	})
	if err != nil {
		return outcome, true, err
	}

	live, finished, err := s.classifyPostState(ctx, ids, &outcome)
	if err != nil {
		return outcome, true, err
	}

	s.notifyTransitions(ctx, live, finished, dryRun)
	return outcome, true, nil
}

// classifyPostState re-queries stored statuses after the sync pass and splits
// the window by where each fixture landed. Pre-match means still stuck; live
// and finished count as recovered; anything administrative is tracked apart
// so downstream consumers are not told a postponed match was played.
func (s *RecoveryService) classifyPostState(
	ctx context.Context,
	ids []int64,
	outcome *RecoveryOutcome,
) (live, finished []int64, err error) {
	post, err := s.fixtures.StatusesByExternalIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	for _, id := range ids {
		status, ok := post[id]
		if !ok {
			continue
		}
		switch {
		case status == model.StatusNotStarted:
			outcome.StillStuck = append(outcome.StillStuck, id)
		case fixture.IsLive(status):
			live = append(live, id)
			outcome.Recovered = append(outcome.Recovered, id)
		case fixture.IsFinished(status):
			finished = append(finished, id)
			outcome.Recovered = append(outcome.Recovered, id)
		default:
			outcome.Administrative = append(outcome.Administrative, id)
		}
	}
	return live, finished, nil
}

func (s *RecoveryService) notifyTransitions(ctx context.Context, live, finished []int64, dryRun bool) {
	if s.listener == nil || dryRun {
		return
	}
	if len(live) > 0 {
		if err := s.listener.FixturesWentLive(ctx, live); err != nil {
			s.logger.WarnContext(ctx, "transition listener failed",
				"transition", "live", "error", err)
		}
	}
	if len(finished) > 0 {
		if err := s.listener.FixturesFinished(ctx, finished); err != nil {
			s.logger.WarnContext(ctx, "transition listener failed",
				"transition", "finished", "error", err)
		}
	}
}

func missingIDs(requested []int64, returned []model.FixtureDTO) []int64 {
	got := make(map[int64]bool, len(returned))
	for _, dto := range returned {
		got[dto.ExternalID] = true
	}
	var missing []int64
	for _, id := range requested {
		if !got[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
