package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// DarkRepositoryImpl handles database operations for the passive-watch
// pipeline: dark sources, their fetch runs and keyword hits.
type DarkRepositoryImpl struct {
	db *DB
}

func NewDarkRepository(db *DB) *DarkRepositoryImpl {
	return &DarkRepositoryImpl{db: db}
}

const darkSourceColumns = `id, name, slug, homepage, url, enabled, tags, watch_keywords, created_at, updated_at`

func scanDarkSource(row interface{ Scan(...any) error }) (*DarkSource, error) {
	var source DarkSource
	var tags string
	var enabled int
	err := row.Scan(&source.ID, &source.Name, &source.Slug, &source.Homepage,
		&source.URL, &enabled, &tags, &source.WatchKeywords,
		&source.CreatedAt, &source.UpdatedAt)
	if err != nil {
		return nil, err
	}
	source.Tags = unmarshalStrings(tags)
	source.Enabled = enabled != 0
	return &source, nil
}

func (r *DarkRepositoryImpl) GetEnabledDarkSources(selector string) ([]DarkSource, error) {
	query := `SELECT ` + darkSourceColumns + ` FROM dark_sources WHERE enabled = 1`
	var args []any

	if selector != "" {
		if id, err := strconv.ParseInt(selector, 10, 64); err == nil {
			query += ` AND id = ?`
			args = append(args, id)
		} else {
			query += ` AND (slug = ? OR lower(name) = lower(?))`
			args = append(args, selector, selector)
		}
	}

	query += ` ORDER BY name`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dark sources: %w", err)
	}
	defer rows.Close()

	var sources []DarkSource
	for rows.Next() {
		source, err := scanDarkSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dark source row: %w", err)
		}
		sources = append(sources, *source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dark source rows: %w", err)
	}
	return sources, nil
}

func (r *DarkRepositoryImpl) getDarkSourceBySlug(slug string) (*DarkSource, error) {
	row := r.db.QueryRow(`SELECT `+darkSourceColumns+` FROM dark_sources WHERE slug = ?`, slug)
	source, err := scanDarkSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dark source by slug: %w", err)
	}
	return source, nil
}

// UpsertDarkSource mirrors the source seeding contract for dark sources.
// Returns (source, created, updated).
func (r *DarkRepositoryImpl) UpsertDarkSource(source DarkSource) (DarkSource, bool, bool, error) {
	existing, err := r.getDarkSourceBySlug(source.Slug)
	if err != nil {
		return DarkSource{}, false, false, err
	}

	now := time.Now().UTC()

	if existing == nil {
		result, err := r.db.Exec(`
			INSERT INTO dark_sources (name, slug, homepage, url, enabled, tags, watch_keywords, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, source.Name, source.Slug, source.Homepage, source.URL,
			boolToInt(source.Enabled), marshalStrings(source.Tags), source.WatchKeywords, now, now)
		if err != nil {
			return DarkSource{}, false, false, fmt.Errorf("failed to insert dark source: %w", err)
		}
		source.ID, _ = result.LastInsertId()
		source.CreatedAt = now
		source.UpdatedAt = now
		return source, true, false, nil
	}

	if darkSourceEqual(*existing, source) {
		return *existing, false, false, nil
	}

	_, err = r.db.Exec(`
		UPDATE dark_sources
		SET name = ?, homepage = ?, url = ?, enabled = ?, tags = ?, watch_keywords = ?, updated_at = ?
		WHERE id = ?
	`, source.Name, source.Homepage, source.URL, boolToInt(source.Enabled),
		marshalStrings(source.Tags), source.WatchKeywords, now, existing.ID)
	if err != nil {
		return DarkSource{}, false, false, fmt.Errorf("failed to update dark source: %w", err)
	}

	source.ID = existing.ID
	source.CreatedAt = existing.CreatedAt
	source.UpdatedAt = now
	return source, false, true, nil
}

func (r *DarkRepositoryImpl) CreateDarkFetchRun(darkSourceID int64, startedAt time.Time) (int64, error) {
	result, err := r.db.Exec(`
		INSERT INTO dark_fetch_runs (dark_source_id, started_at) VALUES (?, ?)
	`, darkSourceID, startedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to create dark fetch run: %w", err)
	}
	id, _ := result.LastInsertId()
	return id, nil
}

func (r *DarkRepositoryImpl) FinalizeDarkFetchRun(run DarkFetchRun) error {
	_, err := r.db.Exec(`
		UPDATE dark_fetch_runs
		SET finished_at = ?, ok = ?, error = ?, bytes_received = ?
		WHERE id = ?
	`, run.FinishedAt, boolToInt(run.OK), run.Error, run.BytesReceived, run.ID)
	if err != nil {
		return fmt.Errorf("failed to finalize dark fetch run: %w", err)
	}
	return nil
}

// CreateDarkHitIfNew inserts the hit unless the (dark source, content hash)
// pair already exists. The lookup and insert share one write transaction so
// overlapping watch runs cannot both insert.
func (r *DarkRepositoryImpl) CreateDarkHitIfNew(ctx context.Context, hit DarkHit) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM dark_hits WHERE dark_source_id = ? AND content_hash = ? LIMIT 1
	`, hit.DarkSourceID, hit.ContentHash).Scan(&existingID)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to look up dark hit: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO dark_hits (dark_source_id, detected_at, matched_keywords, title, excerpt, url, content_hash, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, hit.DarkSourceID, time.Now().UTC(), marshalStrings(hit.MatchedKeywords),
		hit.Title, hit.Excerpt, hit.URL, hit.ContentHash, hit.Raw)
	if err != nil {
		return false, fmt.Errorf("failed to insert dark hit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit dark hit insert: %w", err)
	}
	return true, nil
}

func (r *DarkRepositoryImpl) GetRecentDarkHits(limit int) ([]DarkHit, error) {
	rows, err := r.db.Query(`
		SELECT id, dark_source_id, detected_at, matched_keywords, title, excerpt, url, content_hash, raw
		FROM dark_hits
		ORDER BY detected_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent dark hits: %w", err)
	}
	defer rows.Close()

	var hits []DarkHit
	for rows.Next() {
		var hit DarkHit
		var matched string
		err := rows.Scan(&hit.ID, &hit.DarkSourceID, &hit.DetectedAt, &matched,
			&hit.Title, &hit.Excerpt, &hit.URL, &hit.ContentHash, &hit.Raw)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dark hit row: %w", err)
		}
		hit.MatchedKeywords = unmarshalStrings(matched)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dark hit rows: %w", err)
	}
	return hits, nil
}

func darkSourceEqual(a, b DarkSource) bool {
	return a.Name == b.Name &&
		a.Homepage == b.Homepage &&
		a.URL == b.URL &&
		a.Enabled == b.Enabled &&
		a.WatchKeywords == b.WatchKeywords &&
		marshalStrings(a.Tags) == marshalStrings(b.Tags)
}
