package ledger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beanflow/beanflow/internal/common"
	"github.com/beanflow/beanflow/internal/model"
)

func testEntry(day int, payee string, amount string) model.Entry {
	return model.Entry{
		Date:      time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
		Flag:      model.FlagCleared,
		Payee:     payee,
		Narration: payee,
		Postings: []model.Posting{
			{Account: "Assets:Checking:DKB", Amount: model.MustAmount(amount, "EUR")},
			{Account: "Expenses:Misc", Amount: model.MustAmount(amount, "EUR").Neg()},
		},
	}
}

func TestStoreAppendAssignsIDs(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "main.ledger"))
	require.NoError(t, err)

	require.NoError(t, store.Append(testEntry(5, "REWE", "-12.34")))
	require.Equal(t, 1, store.Len())

	entries := store.Entries()
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, entries[0].ID, entries[0].Metadata[model.MetaKeyID])
}

func TestStoreAppendRejectsUnbalanced(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "main.ledger"))
	require.NoError(t, err)

	bad := testEntry(5, "REWE", "-12.34")
	bad.Postings[1].Amount = model.MustAmount("12.00", "EUR")

	err = store.Append(bad)
	require.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestStoreFlushAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.ledger")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(testEntry(5, "REWE", "-12.34"), testEntry(3, "Shell", "-40.00")))
	require.NoError(t, store.Flush())

	reopened, err := Open(path)
	require.NoError(t, err)
	entries := reopened.Entries()
	require.Len(t, entries, 2)
	// Snapshot is sorted by date.
	assert.Equal(t, "Shell", entries[0].Payee)
	assert.Equal(t, "REWE", entries[1].Payee)
}

func TestStoreReplaceKeepsID(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "main.ledger"))
	require.NoError(t, err)
	require.NoError(t, store.Append(testEntry(5, "REWE", "-12.34")))

	id := store.Entries()[0].ID
	edited := testEntry(5, "REWE Markt", "-12.34")
	require.NoError(t, store.Replace(id, edited))

	got, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "REWE Markt", got.Payee)
	assert.Equal(t, id, got.ID)

	err = store.Replace("no-such-id", edited)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestStoreSnapshotIsolation(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "main.ledger"))
	require.NoError(t, err)
	require.NoError(t, store.Append(testEntry(5, "REWE", "-12.34")))

	snapshot := store.Entries()
	require.NoError(t, store.Append(testEntry(6, "Edeka", "-8.00")))

	// The earlier snapshot must not see the mid-batch commit.
	assert.Len(t, snapshot, 1)
	assert.Equal(t, 2, store.Len())

	// Mutating the snapshot must not reach the store.
	snapshot[0].Payee = "tampered"
	got, err := store.Get(snapshot[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "REWE", got.Payee)
}

func TestAppendFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.ledger")

	require.NoError(t, AppendFile(path, []model.Entry{testEntry(9, "Unknown GmbH", "-5.00")}))
	require.NoError(t, AppendFile(path, []model.Entry{testEntry(10, "Unknown AG", "-6.00")}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	entries, err := Parse(strings.NewReader(string(data)))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Unknown GmbH", entries[0].Payee)
}
