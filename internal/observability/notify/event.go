// Package notify defines the failure notification payloads and sink contract.
package notify

import (
	"context"
	"time"
)

// Severity constants recognized by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// RunFailurePayload captures the canonical data we emit when a job run fails.
type RunFailurePayload struct {
	RunID      string
	JobKey     string
	Trigger    string
	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink describes a destination capable of consuming run failure notifications.
type Sink interface {
	SendRunFailure(ctx context.Context, payload RunFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload RunFailurePayload) error

// SendRunFailure implements the Sink interface.
func (f SinkFunc) SendRunFailure(ctx context.Context, payload RunFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
