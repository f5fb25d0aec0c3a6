package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// staleRunAge is how long a run may stay in the running state before a new
// run is allowed to supersede it. Covers crashed ingestion processes that
// never completed their ledger entry.
const staleRunAge = time.Hour

// StartIngestionRun records the start of an ingestion run in the ledger and
// returns it. Returns ErrRunInProgress when another run is still running and
// younger than an hour.
func (s *Store) StartIngestionRun(fullSync bool) (IngestionRun, error) {
	now := time.Now().UTC()

	var runningStarted string
	err := s.db.QueryRow(
		"SELECT started_at FROM ingestion_runs WHERE status = ? ORDER BY started_at DESC LIMIT 1",
		RunRunning,
	).Scan(&runningStarted)
	if err != nil && err != sql.ErrNoRows {
		return IngestionRun{}, fmt.Errorf("checking for running ingestion: %w", err)
	}
	if err == nil {
		started, parseErr := parseTimestamp(runningStarted)
		if parseErr == nil && now.Sub(started) < staleRunAge {
			return IngestionRun{}, ErrRunInProgress
		}
		// Stale run: mark it failed so the ledger stays truthful.
		if _, err := s.db.Exec(
			"UPDATE ingestion_runs SET status = ?, completed_at = ?, message = 'superseded by a newer run' WHERE status = ?",
			RunFailed, now.Format(time.RFC3339), RunRunning,
		); err != nil {
			return IngestionRun{}, fmt.Errorf("failing stale run: %w", err)
		}
	}

	run := IngestionRun{
		ID:        uuid.New().String(),
		StartedAt: now,
		Status:    RunRunning,
		FullSync:  fullSync,
	}
	full := 0
	if fullSync {
		full = 1
	}
	if _, err := s.db.Exec(`
		INSERT INTO ingestion_runs (id, started_at, status, full_sync)
		VALUES (?, ?, ?, ?)`,
		run.ID, now.Format(time.RFC3339), RunRunning, full,
	); err != nil {
		return IngestionRun{}, fmt.Errorf("recording run start: %w", err)
	}
	return run, nil
}

// FinishIngestionRun completes a ledger entry. A zero cursor leaves the
// stored cursor NULL so the next incremental run falls back to the previous
// completed cursor.
func (s *Store) FinishIngestionRun(id, status string, cursor time.Time, itemsProcessed int, message string) error {
	var cursorVal interface{}
	if !cursor.IsZero() {
		cursorVal = cursor.UTC().Format(time.RFC3339)
	}
	res, err := s.db.Exec(`
		UPDATE ingestion_runs
		SET status = ?, completed_at = ?, cursor = ?, items_processed = ?, message = ?
		WHERE id = ?`,
		status, time.Now().UTC().Format(time.RFC3339), cursorVal, itemsProcessed, message, id,
	)
	if err != nil {
		return fmt.Errorf("completing run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// LastIngestionCursor returns the most recent non-null cursor among completed
// runs. ok is false when no completed run has recorded a cursor yet, in which
// case the pipeline treats the corpus as never synced.
func (s *Store) LastIngestionCursor() (cursor time.Time, ok bool, err error) {
	var raw string
	err = s.db.QueryRow(`
		SELECT cursor FROM ingestion_runs
		WHERE status = ? AND cursor IS NOT NULL
		ORDER BY completed_at DESC LIMIT 1`, RunCompleted,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("querying last cursor: %w", err)
	}
	cursor, err = parseTimestamp(raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parsing cursor: %w", err)
	}
	return cursor, true, nil
}

// GetIngestionRun returns a ledger entry by ID.
func (s *Store) GetIngestionRun(id string) (IngestionRun, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, completed_at, status, full_sync, cursor, items_processed, message
		FROM ingestion_runs WHERE id = ?`, id)
	return scanIngestionRun(row)
}

// LatestIngestionRun returns the most recently started ledger entry,
// regardless of its status.
func (s *Store) LatestIngestionRun() (IngestionRun, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, completed_at, status, full_sync, cursor, items_processed, message
		FROM ingestion_runs ORDER BY started_at DESC LIMIT 1`)
	return scanIngestionRun(row)
}

func scanIngestionRun(row rowScanner) (IngestionRun, error) {
	var run IngestionRun
	var startedAt string
	var completedAt, cursor sql.NullString
	var full int
	err := row.Scan(&run.ID, &startedAt, &completedAt, &run.Status, &full, &cursor, &run.ItemsProcessed, &run.Message)
	if err == sql.ErrNoRows {
		return IngestionRun{}, ErrNotFound
	}
	if err != nil {
		return IngestionRun{}, fmt.Errorf("scanning run: %w", err)
	}
	run.FullSync = full != 0
	if run.StartedAt, err = parseTimestamp(startedAt); err != nil {
		return IngestionRun{}, fmt.Errorf("parsing started_at: %w", err)
	}
	if completedAt.Valid {
		if run.CompletedAt, err = parseTimestamp(completedAt.String); err != nil {
			return IngestionRun{}, fmt.Errorf("parsing completed_at: %w", err)
		}
	}
	if cursor.Valid {
		if run.Cursor, err = parseTimestamp(cursor.String); err != nil {
			return IngestionRun{}, fmt.Errorf("parsing cursor: %w", err)
		}
	}
	return run, nil
}
