// Package metrics defines the standardized metric shapes emitted by the job system.
package metrics

import (
	"time"

	obserrors "github.com/matchday/sportsync/internal/observability/errors"
	"github.com/matchday/sportsync/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// RunMetric captures details about one job run for metric emission.
type RunMetric struct {
	JobKey   string
	Trigger  string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitRunLifecycle emits standardized job run lifecycle metrics.
func EmitRunLifecycle(sink statsd.Sink, in RunMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"job_key": in.JobKey,
		"trigger": in.Trigger,
		"result":  in.Result,
	}

	if in.Err != nil && in.Result == ResultFailed {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("run.finished", 1, tags)

	if in.Duration > 0 {
		sink.Timing("run.duration", in.Duration, CloneTags(tags))
	}
}

// SyncMetric captures per-entity sync counts for metric emission.
type SyncMetric struct {
	JobKey   string
	Inserted int
	Updated  int
	Skipped  int
	Failed   int
}

// EmitSyncCounts emits one counter per sync outcome bucket.
func EmitSyncCounts(sink statsd.Sink, in SyncMetric) {
	if sink == nil {
		return
	}

	buckets := []struct {
		action string
		count  int
	}{
		{"inserted", in.Inserted},
		{"updated", in.Updated},
		{"skipped", in.Skipped},
		{"failed", in.Failed},
	}
	for _, b := range buckets {
		if b.count == 0 {
			continue
		}
		sink.Count("sync.items", int64(b.count), map[string]string{
			"job_key": in.JobKey,
			"action":  b.action,
		})
	}
}

// CleanupMetric captures one reaper sweep for metric emission.
type CleanupMetric struct {
	Step    string
	Count   int64
	Elapsed time.Duration
	Err     error
}

// EmitCleanup emits reaper sweep metrics.
func EmitCleanup(sink statsd.Sink, in CleanupMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{"step": in.Step}
	if in.Err != nil {
		tags["result"] = ResultFailed
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	} else {
		tags["result"] = ResultSuccess
	}

	sink.Count("reaper.rows", in.Count, tags)
	if in.Elapsed > 0 {
		sink.Timing("reaper.elapsed", in.Elapsed, CloneTags(tags))
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
