package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FeedRepositoryImpl handles database operations for feeds
type FeedRepositoryImpl struct {
	db *DB
}

func NewFeedRepository(db *DB) *FeedRepositoryImpl {
	return &FeedRepositoryImpl{db: db}
}

const feedColumns = `
	f.id, f.source_id, s.name, s.slug, s.enabled,
	f.name, f.url, f.feed_type, f.section, f.enabled,
	f.timeout_seconds, f.max_bytes, f.max_items_per_run, f.max_age_days,
	f.last_success_at, f.last_error, f.created_at, f.updated_at`

func scanFeed(row interface{ Scan(...any) error }) (*Feed, error) {
	var feed Feed
	var sourceEnabled, enabled int
	err := row.Scan(
		&feed.ID, &feed.SourceID, &feed.SourceName, &feed.SourceSlug, &sourceEnabled,
		&feed.Name, &feed.URL, &feed.FeedType, &feed.Section, &enabled,
		&feed.TimeoutSeconds, &feed.MaxBytes, &feed.MaxItemsPerRun, &feed.MaxAgeDays,
		&feed.LastSuccessAt, &feed.LastError, &feed.CreatedAt, &feed.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	feed.SourceEnabled = sourceEnabled != 0
	feed.Enabled = enabled != 0
	return &feed, nil
}

func (r *FeedRepositoryImpl) queryFeeds(query string, args ...any) ([]Feed, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}
	return feeds, nil
}

// GetEnabledFeeds returns feeds where both the feed and its source are
// enabled. A non-empty selector narrows the set to a numeric feed id, a
// source slug, or an exact (case-insensitive) feed name.
func (r *FeedRepositoryImpl) GetEnabledFeeds(selector string) ([]Feed, error) {
	query := `
		SELECT ` + feedColumns + `
		FROM feeds f
		JOIN sources s ON s.id = f.source_id
		WHERE f.enabled = 1 AND s.enabled = 1`
	var args []any

	if selector != "" {
		if id, err := strconv.ParseInt(selector, 10, 64); err == nil {
			query += ` AND f.id = ?`
			args = append(args, id)
		} else {
			query += ` AND (s.slug = ? OR lower(f.name) = lower(?))`
			args = append(args, selector, selector)
		}
	}

	query += ` ORDER BY s.name, f.name`
	return r.queryFeeds(query, args...)
}

func (r *FeedRepositoryImpl) GetAllFeeds() ([]Feed, error) {
	return r.queryFeeds(`
		SELECT ` + feedColumns + `
		FROM feeds f
		JOIN sources s ON s.id = f.source_id
		ORDER BY f.id`)
}

func (r *FeedRepositoryImpl) GetFeedByURL(url string) (*Feed, error) {
	row := r.db.QueryRow(`
		SELECT `+feedColumns+`
		FROM feeds f
		JOIN sources s ON s.id = f.source_id
		WHERE f.url = ?`, url)
	feed, err := scanFeed(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by URL: %w", err)
	}
	return feed, nil
}

// UpsertFeed creates the feed or updates it in place. The globally unique
// URL is the dedup boundary: seeding a duplicate URL updates the existing
// row instead of creating a second one. Returns (feed, created, updated).
func (r *FeedRepositoryImpl) UpsertFeed(feed Feed) (Feed, bool, bool, error) {
	existing, err := r.GetFeedByURL(feed.URL)
	if err != nil {
		return Feed{}, false, false, err
	}

	now := time.Now().UTC()

	if existing == nil {
		result, err := r.db.Exec(`
			INSERT INTO feeds (source_id, name, url, feed_type, section, enabled,
				timeout_seconds, max_bytes, max_items_per_run, max_age_days,
				last_error, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?)
		`, feed.SourceID, feed.Name, feed.URL, feed.FeedType, feed.Section,
			boolToInt(feed.Enabled), feed.TimeoutSeconds, feed.MaxBytes,
			feed.MaxItemsPerRun, feed.MaxAgeDays, now, now)
		if err != nil {
			return Feed{}, false, false, fmt.Errorf("failed to insert feed: %w", err)
		}
		feed.ID, _ = result.LastInsertId()
		feed.CreatedAt = now
		feed.UpdatedAt = now
		return feed, true, false, nil
	}

	if feedEqual(*existing, feed) {
		return *existing, false, false, nil
	}

	_, err = r.db.Exec(`
		UPDATE feeds
		SET source_id = ?, name = ?, feed_type = ?, section = ?, enabled = ?,
			timeout_seconds = ?, max_bytes = ?, max_items_per_run = ?, max_age_days = ?,
			updated_at = ?
		WHERE id = ?
	`, feed.SourceID, feed.Name, feed.FeedType, feed.Section, boolToInt(feed.Enabled),
		feed.TimeoutSeconds, feed.MaxBytes, feed.MaxItemsPerRun, feed.MaxAgeDays,
		now, existing.ID)
	if err != nil {
		return Feed{}, false, false, fmt.Errorf("failed to update feed: %w", err)
	}

	feed.ID = existing.ID
	feed.CreatedAt = existing.CreatedAt
	feed.UpdatedAt = now
	return feed, false, true, nil
}

// DisableFeedsByURL disables known-broken feeds and returns how many rows
// actually flipped from enabled to disabled.
func (r *FeedRepositoryImpl) DisableFeedsByURL(urls []string) (int, error) {
	if len(urls) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(urls)), ",")
	args := make([]any, 0, len(urls)+1)
	args = append(args, time.Now().UTC())
	for _, url := range urls {
		args = append(args, url)
	}

	result, err := r.db.Exec(`
		UPDATE feeds SET enabled = 0, updated_at = ?
		WHERE enabled = 1 AND url IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to disable feeds: %w", err)
	}

	affected, _ := result.RowsAffected()
	return int(affected), nil
}

func (r *FeedRepositoryImpl) MarkFeedSuccess(feedID int64, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE feeds SET last_success_at = ?, last_error = '', updated_at = ?
		WHERE id = ?
	`, at.UTC(), time.Now().UTC(), feedID)
	if err != nil {
		return fmt.Errorf("failed to mark feed success: %w", err)
	}
	return nil
}

func (r *FeedRepositoryImpl) MarkFeedError(feedID int64, message string) error {
	_, err := r.db.Exec(`
		UPDATE feeds SET last_error = ?, updated_at = ?
		WHERE id = ?
	`, message, time.Now().UTC(), feedID)
	if err != nil {
		return fmt.Errorf("failed to mark feed error: %w", err)
	}
	return nil
}

func (r *FeedRepositoryImpl) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM feeds`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

func feedEqual(a, b Feed) bool {
	return a.SourceID == b.SourceID &&
		a.Name == b.Name &&
		a.FeedType == b.FeedType &&
		a.Section == b.Section &&
		a.Enabled == b.Enabled &&
		a.TimeoutSeconds == b.TimeoutSeconds &&
		a.MaxBytes == b.MaxBytes &&
		a.MaxItemsPerRun == b.MaxItemsPerRun &&
		a.MaxAgeDays == b.MaxAgeDays
}
