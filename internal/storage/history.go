// Package storage persists the audit trail of the import pipeline: import
// runs, the duplicate report of each run, and a cache of the trained
// classification model.
package storage

import (
	"context"
	"time"
)

// RunRecord summarizes one completed import batch.
type RunRecord struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Source     string
	File       string
	ID         int64
	Imported   int
	Duplicates int
	Malformed  int
	HookFailed int
}

// DuplicateRecord is one suppressed raw record: what it looked like, which
// committed entry it duplicated, and why it was dropped.
type DuplicateRecord struct {
	Date           time.Time
	Description    string
	Amount         string
	MatchedEntryID string
	Reason         string
	RunID          int64
	ID             int64
}

// ModelRecord is a serialized trained model plus the fingerprint of the
// corpus it was trained on.
type ModelRecord struct {
	TrainedAt   time.Time
	Fingerprint string
	Data        []byte
}

// History defines the contract for the audit/persistence layer.
type History interface {
	// Import run tracking.
	RecordRun(ctx context.Context, run *RunRecord) error
	GetRuns(ctx context.Context, limit int) ([]RunRecord, error)
	LogDuplicates(ctx context.Context, runID int64, duplicates []DuplicateRecord) error
	GetDuplicates(ctx context.Context, runID int64) ([]DuplicateRecord, error)

	// Model cache.
	SaveModel(ctx context.Context, record *ModelRecord) error
	LoadModel(ctx context.Context) (*ModelRecord, error)

	Close() error
}
