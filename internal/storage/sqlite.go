package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/beanflow/beanflow/internal/common"
)

// SQLiteHistory implements the History interface using SQLite.
type SQLiteHistory struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteHistory opens (and migrates) the history database at dbPath.
func NewSQLiteHistory(dbPath string) (*SQLiteHistory, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath must not be empty")
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteHistory{db: db, dbPath: dbPath}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteHistory) Close() error {
	return s.db.Close()
}

// RecordRun inserts one completed import run and fills in its id.
func (s *SQLiteHistory) RecordRun(ctx context.Context, run *RunRecord) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO import_runs (
			source, file, imported, duplicates, malformed, hook_failed,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.Source, run.File, run.Imported, run.Duplicates, run.Malformed,
		run.HookFailed, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to record import run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get run id: %w", err)
	}
	run.ID = id
	return nil
}

// GetRuns returns the most recent import runs, newest first.
func (s *SQLiteHistory) GetRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, file, imported, duplicates, malformed, hook_failed,
		       started_at, finished_at
		FROM import_runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query import runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunRecord
	for rows.Next() {
		var run RunRecord
		if err := rows.Scan(&run.ID, &run.Source, &run.File, &run.Imported,
			&run.Duplicates, &run.Malformed, &run.HookFailed,
			&run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LogDuplicates records the duplicate report of a run.
func (s *SQLiteHistory) LogDuplicates(ctx context.Context, runID int64, duplicates []DuplicateRecord) error {
	if len(duplicates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO duplicate_log (
			run_id, date, description, amount, matched_entry_id, reason
		) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, dup := range duplicates {
		if _, err := stmt.ExecContext(ctx, runID, dup.Date, dup.Description,
			dup.Amount, dup.MatchedEntryID, dup.Reason); err != nil {
			return fmt.Errorf("failed to log duplicate: %w", err)
		}
	}
	return tx.Commit()
}

// GetDuplicates returns the duplicate report of one run.
func (s *SQLiteHistory) GetDuplicates(ctx context.Context, runID int64) ([]DuplicateRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, date, description, amount, matched_entry_id, reason
		FROM duplicate_log
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var duplicates []DuplicateRecord
	for rows.Next() {
		var dup DuplicateRecord
		if err := rows.Scan(&dup.ID, &dup.RunID, &dup.Date, &dup.Description,
			&dup.Amount, &dup.MatchedEntryID, &dup.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate: %w", err)
		}
		duplicates = append(duplicates, dup)
	}
	return duplicates, rows.Err()
}

// SaveModel replaces the cached trained model. A single row is kept; a new
// train run overwrites the previous cache.
func (s *SQLiteHistory) SaveModel(ctx context.Context, record *ModelRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO model_cache (id, fingerprint, trained_at, data)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			trained_at = excluded.trained_at,
			data = excluded.data
	`, record.Fingerprint, record.TrainedAt, record.Data)
	if err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}
	return nil
}

// LoadModel returns the cached trained model, or common.ErrNotFound.
func (s *SQLiteHistory) LoadModel(ctx context.Context) (*ModelRecord, error) {
	var record ModelRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT fingerprint, trained_at, data FROM model_cache WHERE id = 1
	`).Scan(&record.Fingerprint, &record.TrainedAt, &record.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model cache: %w", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	return &record, nil
}
