package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/beanflow/beanflow/internal/common"
	"github.com/beanflow/beanflow/internal/model"
)

// Store owns the committed ledger entries. It loads the ledger file once,
// serves consistent snapshots to the pipeline, and rewrites the file
// atomically on flush. Entries are never mutated in place; Replace swaps a
// whole entry by id.
type Store struct {
	byID    map[string]int
	path    string
	entries []model.Entry
	mu      sync.RWMutex
	dirty   bool
}

// Open loads the ledger file at path, creating an empty store when the file
// does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path, byID: make(map[string]int)}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ledger %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	entries, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing ledger %s: %w", path, err)
	}

	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
			s.dirty = true
		}
		if _, exists := s.byID[e.ID]; exists {
			return nil, fmt.Errorf("parsing ledger %s: duplicate entry id %s", path, e.ID)
		}
		s.byID[e.ID] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	return s, nil
}

// Entries returns a deep-copied snapshot of all committed entries, sorted by
// date. The snapshot stays consistent for a whole import batch regardless of
// concurrent commits.
func (s *Store) Entries() []model.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Get returns the entry with the given id.
func (s *Store) Get(id string) (model.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return model.Entry{}, fmt.Errorf("entry %s: %w", id, common.ErrNotFound)
	}
	return s.entries[i].Clone(), nil
}

// Append commits new entries. Every entry must satisfy the balance
// invariant; ids are assigned when absent. Nothing is committed when any
// entry fails validation.
func (s *Store) Append(entries ...model.Entry) error {
	prepared := make([]model.Entry, 0, len(entries))
	for _, e := range entries {
		if err := e.Balance(); err != nil {
			return err
		}
		e = e.Clone()
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]string)
		}
		e.Metadata[model.MetaKeyID] = e.ID
		prepared = append(prepared, e)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range prepared {
		if _, exists := s.byID[e.ID]; exists {
			return fmt.Errorf("append entry %s: id already committed", e.ID)
		}
	}
	for _, e := range prepared {
		s.byID[e.ID] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	s.dirty = true
	return nil
}

// Replace swaps out the entry with the given id for a new one, keeping the
// id stable. The replacement must balance.
func (s *Store) Replace(id string, entry model.Entry) error {
	if err := entry.Balance(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("replace entry %s: %w", id, common.ErrNotFound)
	}

	entry = entry.Clone()
	entry.ID = id
	if entry.Metadata == nil {
		entry.Metadata = make(map[string]string)
	}
	entry.Metadata[model.MetaKeyID] = id
	s.entries[i] = entry
	s.dirty = true
	return nil
}

// Len returns the number of committed entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Flush rewrites the ledger file when the store has uncommitted changes.
// The write is atomic: a temp file in the same directory, then rename.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	sorted := make([]model.Entry, len(s.entries))
	copy(sorted, s.entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*")
	if err != nil {
		return fmt.Errorf("creating temp ledger: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := Format(tmp, sorted); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp ledger: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing ledger file: %w", err)
	}

	s.dirty = false
	return nil
}

// AppendFile appends entries to a standalone ledger file without going
// through a store. Used for the fallback file holding transactions the
// pipeline could not fully resolve.
func AppendFile(path string, entries []model.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating fallback directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("opening fallback file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	for _, e := range entries {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Metadata == nil {
			e.Metadata = make(map[string]string)
		}
		e.Metadata[model.MetaKeyID] = e.ID
		if _, err := fmt.Fprintln(f); err != nil {
			return err
		}
		if err := formatEntry(f, e); err != nil {
			return err
		}
	}
	return nil
}
