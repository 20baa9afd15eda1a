package database

import (
	"fmt"
	"time"
)

// RunRepositoryImpl handles database operations for fetch run audit records
type RunRepositoryImpl struct {
	db *DB
}

func NewRunRepository(db *DB) *RunRepositoryImpl {
	return &RunRepositoryImpl{db: db}
}

// CreateFetchRun writes the audit row for an ingestion attempt before any
// network work starts, so a crash mid-ingest still leaves a record.
func (r *RunRepositoryImpl) CreateFetchRun(feedID int64, startedAt time.Time) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO fetch_runs (feed_id, started_at) VALUES (?, ?)
	`, feedID, startedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to create fetch run: %w", err)
	}
	id, _ := result.LastInsertId()
	return id, nil
}

// FinalizeFetchRun records the outcome. Runs are never mutated afterward.
func (r *RunRepositoryImpl) FinalizeFetchRun(run FetchRun) error {
	_, err := r.db.Exec(`
		UPDATE fetch_runs
		SET finished_at = ?, ok = ?, error = ?, http_status = ?,
			items_new = ?, items_updated = ?, duration_ms = ?
		WHERE id = ?
	`, run.FinishedAt, boolToInt(run.OK), run.Error, run.HTTPStatus,
		run.ItemsNew, run.ItemsUpdated, run.DurationMs, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finalize fetch run: %w", err)
	}
	return nil
}

func (r *RunRepositoryImpl) GetRecentFetchRuns(limit int) ([]FetchRun, error) {
	rows, err := r.db.Query(`
		SELECT id, feed_id, started_at, finished_at, ok, error, http_status,
			items_new, items_updated, duration_ms
		FROM fetch_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent fetch runs: %w", err)
	}
	defer rows.Close()

	var runs []FetchRun
	for rows.Next() {
		var run FetchRun
		var ok int
		err := rows.Scan(&run.ID, &run.FeedID, &run.StartedAt, &run.FinishedAt,
			&ok, &run.Error, &run.HTTPStatus, &run.ItemsNew, &run.ItemsUpdated,
			&run.DurationMs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fetch run row: %w", err)
		}
		run.OK = ok != 0
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fetch run rows: %w", err)
	}
	return runs, nil
}
