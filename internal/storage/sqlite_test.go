package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanflow/beanflow/internal/common"
)

func newTestHistory(t *testing.T) *SQLiteHistory {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	h, err := NewSQLiteHistory(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestMigrateIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	h, err := NewSQLiteHistory(dbPath)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	// Reopening runs Migrate again against an up-to-date schema.
	h, err = NewSQLiteHistory(dbPath)
	require.NoError(t, err)
	defer func() { _ = h.Close() }()

	version, err := h.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestRecordRunAssignsID(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	run := &RunRecord{
		Source:     "chase",
		File:       "chase-2024.csv",
		Imported:   12,
		Duplicates: 3,
		StartedAt:  time.Now().Add(-time.Second),
		FinishedAt: time.Now(),
	}
	require.NoError(t, h.RecordRun(ctx, run))
	assert.NotZero(t, run.ID)

	second := &RunRecord{Source: "dkb", StartedAt: time.Now(), FinishedAt: time.Now()}
	require.NoError(t, h.RecordRun(ctx, second))
	assert.Greater(t, second.ID, run.ID)
}

func TestGetRunsNewestFirst(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	for _, source := range []string{"chase", "dkb", "ofx"} {
		run := &RunRecord{Source: source, StartedAt: time.Now(), FinishedAt: time.Now()}
		require.NoError(t, h.RecordRun(ctx, run))
	}

	runs, err := h.GetRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "ofx", runs[0].Source)
	assert.Equal(t, "dkb", runs[1].Source)
}

func TestLogDuplicatesRoundTrip(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	run := &RunRecord{Source: "chase", StartedAt: time.Now(), FinishedAt: time.Now()}
	require.NoError(t, h.RecordRun(ctx, run))

	dups := []DuplicateRecord{
		{
			Date:           time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			Description:    "COFFEE SHOP",
			Amount:         "-4.50 USD",
			MatchedEntryID: "abc-123",
			Reason:         "exact-narration",
		},
		{
			Date:           time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC),
			Description:    "GAS STATION",
			Amount:         "-40.00 USD",
			MatchedEntryID: "def-456",
			Reason:         "amount-date",
		},
	}
	require.NoError(t, h.LogDuplicates(ctx, run.ID, dups))

	got, err := h.GetDuplicates(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "COFFEE SHOP", got[0].Description)
	assert.Equal(t, "abc-123", got[0].MatchedEntryID)
	assert.Equal(t, "amount-date", got[1].Reason)
	assert.Equal(t, run.ID, got[1].RunID)

	// Empty batches are a no-op.
	require.NoError(t, h.LogDuplicates(ctx, run.ID, nil))
}

func TestModelCache(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	_, err := h.LoadModel(ctx)
	assert.ErrorIs(t, err, common.ErrNotFound)

	first := &ModelRecord{
		TrainedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Fingerprint: "fp-1",
		Data:        []byte("model-v1"),
	}
	require.NoError(t, h.SaveModel(ctx, first))

	got, err := h.LoadModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fp-1", got.Fingerprint)
	assert.Equal(t, []byte("model-v1"), got.Data)

	// Saving again replaces the single cached row.
	second := &ModelRecord{
		TrainedAt:   time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC),
		Fingerprint: "fp-2",
		Data:        []byte("model-v2"),
	}
	require.NoError(t, h.SaveModel(ctx, second))

	got, err = h.LoadModel(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fp-2", got.Fingerprint)
	assert.Equal(t, []byte("model-v2"), got.Data)
}
