// Package failurenotifier fans out run failure events to notification sinks.
package failurenotifier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/matchday/sportsync/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with a human-readable name for logging.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
}

// Service dispatches failure events to all registered sinks. Delivery is
// best-effort; a sink error is logged and never propagated to the caller.
type Service struct {
	logger *slog.Logger
	sinks  []SinkRegistration
}

// NewService constructs a failure notifier.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "failure_notifier")
	}

	var sinks []SinkRegistration
	for _, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "sink"
		}
		sinks = append(sinks, SinkRegistration{Name: name, Sink: entry.Sink})
	}

	return &Service{logger: logger, sinks: sinks}
}

// NotifyRunFailure fans the run failure payload out to all sinks.
func (s *Service) NotifyRunFailure(ctx context.Context, payload notify.RunFailurePayload) {
	if len(s.sinks) == 0 {
		return
	}

	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		entry := entry
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := entry.Sink.SendRunFailure(ctx, payload); err != nil {
				s.logger.Error("failure notifier delivery error",
					"sink", entry.Name,
					"run_id", payload.RunID,
					"job_key", payload.JobKey,
					"error", err,
				)
			}
		}()
	}
	wg.Wait()
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}
