package model

import (
	"encoding/json"
	"time"
)

// SeedBatchStatus represents the lifecycle status of a seed batch.
type SeedBatchStatus string

// SeedItemStatus represents the outcome recorded for a single batch item.
type SeedItemStatus string

const (
	// BatchStatusRunning indicates a batch is open.
	BatchStatusRunning SeedBatchStatus = "running"
	// BatchStatusSuccess indicates a batch closed successfully.
	BatchStatusSuccess SeedBatchStatus = "success"
	// BatchStatusFailed indicates a batch closed with an error.
	BatchStatusFailed SeedBatchStatus = "failed"

	// ItemStatusSuccess indicates an item was processed without error.
	ItemStatusSuccess SeedItemStatus = "success"
	// ItemStatusFailed indicates an item failed to process.
	ItemStatusFailed SeedItemStatus = "failed"
	// ItemStatusSkipped indicates an item required no change.
	ItemStatusSkipped SeedItemStatus = "skipped"
)

// SeedBatch is the aggregate accounting record for one sync execution.
// A batch is opened before work begins and closed exactly once, on every
// exit path, so no batch is ever left dangling.
type SeedBatch struct {
	ID           string          `json:"id"                      db:"id"`
	Name         string          `json:"name"                    db:"name"`
	Version      string          `json:"version"                 db:"version"`
	Params       json.RawMessage `json:"params,omitempty"        db:"params"`
	Status       SeedBatchStatus `json:"status"                  db:"status"`
	ItemsTotal   int             `json:"items_total"             db:"items_total"`
	ItemsSuccess int             `json:"items_success"           db:"items_success"`
	ItemsFailed  int             `json:"items_failed"            db:"items_failed"`
	Meta         json.RawMessage `json:"meta,omitempty"          db:"meta"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	StartedAt    time.Time       `json:"started_at"              db:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"   db:"finished_at"`
}

// SeedItem is the per-entity accounting record within a batch. One row exists
// per (batch, item key) and is never mutated after creation.
type SeedItem struct {
	ID           string          `json:"id"                      db:"id"`
	BatchID      string          `json:"batch_id"                db:"batch_id"`
	ItemKey      string          `json:"item_key"                db:"item_key"`
	Status       SeedItemStatus  `json:"status"                  db:"status"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	Meta         json.RawMessage `json:"meta,omitempty"          db:"meta"`
	CreatedAt    time.Time       `json:"created_at"              db:"created_at"`
}

// SyncResult holds the per-run counts returned by the entity sync engine.
// Total always equals Inserted+Updated+Skipped+Failed.
type SyncResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
	Total    int `json:"total"`
}

// Add merges another result into this one.
func (r *SyncResult) Add(other SyncResult) {
	r.Inserted += other.Inserted
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.Total += other.Total
}
