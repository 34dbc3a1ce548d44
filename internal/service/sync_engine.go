package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matchday/sportsync/internal/core"
	"github.com/matchday/sportsync/internal/data"
	"github.com/matchday/sportsync/internal/domain/model"
	"github.com/matchday/sportsync/internal/observability/metrics"
	"github.com/matchday/sportsync/internal/observability/statsd"
)

// SyncAction is the per-item outcome of a sync pass.
type SyncAction string

const (
	ActionInserted SyncAction = "inserted"
	ActionUpdated  SyncAction = "updated"
	ActionSkipped  SyncAction = "skipped"
)

// Batch close reasons recorded in meta.
const (
	reasonPartialFailure = "partial_failure"
	reasonNoChange       = "no_change"
	reasonCanceled       = "canceled"
)

// ProcessFunc handles one deduplicated item: diff against stored state and
// write if needed. It reports what happened; an error marks the item failed
// without aborting the rest of the batch.
type ProcessFunc[D any] func(ctx context.Context, item D) (SyncAction, error)

// SyncSpec describes one sync pass over a fetched item set.
type SyncSpec[D any] struct {
	// Name identifies the batch in accounting ("fixtures_sync", "odds_sync", ...).
	Name    string
	Version string
	Params  json.RawMessage

	Items []D
	// Key returns the accounting key for an item. Items sharing a key are
	// deduplicated; only the first occurrence is processed.
	Key     func(D) string
	Process ProcessFunc[D]

	// DryRun computes every diff but suppresses all accounting writes. The
	// Process hook must already be a non-writing variant.
	DryRun bool
}

// SyncEngineOptions bundles dependencies for NewSyncEngine.
type SyncEngineOptions struct {
	Batches     core.SeedBatchRepository
	ChunkSize   int
	Concurrency int
	Metrics     statsd.Sink
	Logger      *slog.Logger
}

// SyncEngine drives the shared fetch-side sync loop: dedup, chunking,
// bounded-concurrency processing, and per-item batch accounting. The entity
// specifics live entirely in the SyncSpec hooks.
type SyncEngine[D any] struct {
	batches     core.SeedBatchRepository
	chunkSize   int
	concurrency int
	metrics     statsd.Sink
	logger      *slog.Logger
}

// NewSyncEngine creates a new SyncEngine with the given dependencies.
func NewSyncEngine[D any](opts SyncEngineOptions) *SyncEngine[D] {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 50
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SyncEngine[D]{
		batches:     opts.Batches,
		chunkSize:   chunkSize,
		concurrency: concurrency,
		metrics:     opts.Metrics,
		logger:      logger.With("component", "sync_engine"),
	}
}

// Run executes one sync pass and returns the outcome counts. Item failures
// are accounted, not propagated. Cancellation ends the pass early: the batch
// is still closed (failed, reason "canceled") and the counts gathered so far
// are returned with a nil error. The returned error is non-nil only when
// accounting itself could not proceed.
func (e *SyncEngine[D]) Run(ctx context.Context, spec SyncSpec[D]) (model.SyncResult, error) {
	var result model.SyncResult

	items, dupes := dedupeByKey(spec.Items, spec.Key)
	result.Skipped += dupes
	result.Total += dupes
	if dupes > 0 {
		e.logger.InfoContext(ctx, "dropped duplicate items", "batch", spec.Name, "count", dupes)
	}

	var batch *model.SeedBatch
	if !spec.DryRun {
		var err error
		batch, err = e.batches.StartBatch(ctx, core.StartBatchParams{
			Name:    spec.Name,
			Version: spec.Version,
			Params:  spec.Params,
		})
		if err != nil {
			return result, fmt.Errorf("start batch %s: %w", spec.Name, err)
		}
	}

	canceled := e.processChunks(ctx, spec, items, batch, &result)
	if canceled {
		e.logger.WarnContext(ctx, "sync pass canceled",
			"batch", spec.Name, "processed", result.Total, "items", len(items)+dupes)
	}

	var runErr error
	if !spec.DryRun {
		runErr = e.closeBatch(ctx, batch, result, canceled)
	}

	metrics.EmitSyncCounts(e.metrics, metrics.SyncMetric{
		JobKey:   spec.Name,
		Inserted: result.Inserted,
		Updated:  result.Updated,
		Skipped:  result.Skipped,
		Failed:   result.Failed,
	})

	return result, runErr
}

// processChunks works through the deduplicated items and reports whether the
// pass was cut short by cancellation. Items the cancellation skipped are left
// out of the counts.
func (e *SyncEngine[D]) processChunks(
	ctx context.Context,
	spec SyncSpec[D],
	items []D,
	batch *model.SeedBatch,
	result *model.SyncResult,
) bool {
	var mu sync.Mutex

	for start := 0; start < len(items); start += e.chunkSize {
		// Cancellation is honored between chunks so counts stay meaningful.
		if ctx.Err() != nil {
			return true
		}

		end := min(start+e.chunkSize, len(items))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.concurrency)
		for _, item := range items[start:end] {
			item := item
			g.Go(func() error {
				if gctx.Err() != nil {
					return nil
				}

				action, perr := spec.Process(gctx, item)

				mu.Lock()
				defer mu.Unlock()
				e.account(gctx, accountParams[D]{
					spec:   spec,
					batch:  batch,
					item:   item,
					action: action,
					err:    perr,
					result: result,
				})
				return nil
			})
		}
		// The goroutines never return errors; Wait only joins them.
		_ = g.Wait()
	}

	return ctx.Err() != nil
}

type accountParams[D any] struct {
	spec   SyncSpec[D]
	batch  *model.SeedBatch
	item   D
	action SyncAction
	err    error
	result *model.SyncResult
}

// account records one processed item in the result counts and, outside
// dry-run, in the batch's item rows. Called with the result mutex held.
func (e *SyncEngine[D]) account(ctx context.Context, p accountParams[D]) {
	p.result.Total++

	itemStatus := model.ItemStatusSuccess
	errMsg := ""
	switch {
	case p.err != nil:
		p.result.Failed++
		itemStatus = model.ItemStatusFailed
		errMsg = p.err.Error()
	case p.action == ActionInserted:
		p.result.Inserted++
	case p.action == ActionUpdated:
		p.result.Updated++
	default:
		p.result.Skipped++
		itemStatus = model.ItemStatusSkipped
	}

	if p.err != nil {
		e.logger.WarnContext(ctx, "sync item failed",
			"batch", p.spec.Name, "item_key", p.spec.Key(p.item), "error", p.err)
	}

	if p.spec.DryRun || p.batch == nil {
		return
	}

	trackErr := e.batches.TrackItem(ctx, core.TrackItemParams{
		BatchID: p.batch.ID,
		ItemKey: p.spec.Key(p.item),
		Status:  itemStatus,
		ErrMsg:  errMsg,
		Meta:    itemMeta(p.action, p.err),
	})
	if trackErr != nil && !errors.Is(trackErr, data.ErrSeedItemExists) {
		e.logger.ErrorContext(ctx, "failed to track sync item",
			"batch", p.spec.Name, "item_key", p.spec.Key(p.item), "error", trackErr)
	}
}

// itemMeta records what the pass did with an item, so inserted-vs-updated
// stays recoverable from the stored item rows.
func itemMeta(action SyncAction, err error) json.RawMessage {
	recorded := string(action)
	switch {
	case err != nil:
		recorded = "failed"
	case recorded == "":
		recorded = string(ActionSkipped)
	}
	payload := map[string]string{"action": recorded}
	if recorded == string(ActionSkipped) {
		payload["reason"] = reasonNoChange
	}
	b, _ := json.Marshal(payload)
	return b
}

func (e *SyncEngine[D]) closeBatch(
	ctx context.Context,
	batch *model.SeedBatch,
	result model.SyncResult,
	canceled bool,
) error {
	status := model.BatchStatusSuccess
	errMsg := ""
	reason := ""

	switch {
	case canceled:
		status = model.BatchStatusFailed
		errMsg = fmt.Sprintf("canceled after %d items", result.Total)
		reason = reasonCanceled
	case result.Failed > 0:
		status = model.BatchStatusFailed
		errMsg = fmt.Sprintf("%d of %d items failed", result.Failed, result.Total)
		reason = reasonPartialFailure
	case result.Inserted+result.Updated == 0:
		reason = reasonNoChange
	}

	meta, err := batchMeta(result, reason)
	if err != nil {
		return err
	}

	// The batch must close even when the pass was cancelled.
	closeCtx := context.WithoutCancel(ctx)
	if err := e.batches.FinishBatch(closeCtx, core.FinishBatchParams{
		ID:     batch.ID,
		Status: status,
		Meta:   meta,
		ErrMsg: errMsg,
	}); err != nil {
		return fmt.Errorf("finish batch %s: %w", batch.Name, err)
	}
	return nil
}

func batchMeta(result model.SyncResult, reason string) (json.RawMessage, error) {
	payload := map[string]any{"counts": result}
	if reason != "" {
		payload["reason"] = reason
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode batch meta: %w", err)
	}
	return b, nil
}

// dedupeByKey keeps the first occurrence per key and reports how many items
// were dropped.
func dedupeByKey[D any](items []D, key func(D) string) ([]D, int) {
	seen := make(map[string]bool, len(items))
	out := make([]D, 0, len(items))
	dropped := 0
	for _, item := range items {
		k := key(item)
		if seen[k] {
			dropped++
			continue
		}
		seen[k] = true
		out = append(out, item)
	}
	return out, dropped
}
