package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/beanflow/beanflow/internal/common"
)

// MemoryHistory is an in-memory History implementation for tests and dry
// runs.
type MemoryHistory struct {
	model      *ModelRecord
	duplicates map[int64][]DuplicateRecord
	runs       []RunRecord
	nextID     int64
	mu         sync.Mutex
}

// NewMemoryHistory creates an empty in-memory history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		nextID:     1,
		duplicates: make(map[int64][]DuplicateRecord),
	}
}

// RecordRun stores a run and assigns its id.
func (m *MemoryHistory) RecordRun(_ context.Context, run *RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run.ID = m.nextID
	m.nextID++
	m.runs = append(m.runs, *run)
	return nil
}

// GetRuns returns recorded runs, newest first.
func (m *MemoryHistory) GetRuns(_ context.Context, limit int) ([]RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RunRecord, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0; i-- {
		out = append(out, m.runs[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// LogDuplicates stores a run's duplicate report.
func (m *MemoryHistory) LogDuplicates(_ context.Context, runID int64, duplicates []DuplicateRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range duplicates {
		duplicates[i].RunID = runID
	}
	m.duplicates[runID] = append(m.duplicates[runID], duplicates...)
	return nil
}

// GetDuplicates returns a run's duplicate report.
func (m *MemoryHistory) GetDuplicates(_ context.Context, runID int64) ([]DuplicateRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DuplicateRecord(nil), m.duplicates[runID]...), nil
}

// SaveModel caches the trained model.
func (m *MemoryHistory) SaveModel(_ context.Context, record *ModelRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := *record
	saved.Data = append([]byte(nil), record.Data...)
	m.model = &saved
	return nil
}

// LoadModel returns the cached model, or common.ErrNotFound.
func (m *MemoryHistory) LoadModel(_ context.Context) (*ModelRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.model == nil {
		return nil, fmt.Errorf("model cache: %w", common.ErrNotFound)
	}
	out := *m.model
	out.Data = append([]byte(nil), m.model.Data...)
	return &out, nil
}

// Close is a no-op.
func (m *MemoryHistory) Close() error {
	return nil
}
