package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ItemRepositoryImpl handles database operations for intelligence items
type ItemRepositoryImpl struct {
	db *DB
}

func NewItemRepository(db *DB) *ItemRepositoryImpl {
	return &ItemRepositoryImpl{db: db}
}

const itemColumns = `id, source_id, feed_id, title, normalized_title, title_hash,
	url, canonical_url, stable_id, published_at, summary, raw_payload,
	created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (*Item, error) {
	var item Item
	var rawPayload string
	err := row.Scan(
		&item.ID, &item.SourceID, &item.FeedID, &item.Title, &item.NormalizedTitle,
		&item.TitleHash, &item.URL, &item.CanonicalURL, &item.StableID,
		&item.PublishedAt, &item.Summary, &rawPayload,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.RawPayload = unmarshalPayload(rawPayload)
	return &item, nil
}

// UpsertItem resolves the candidate row inside a single write transaction:
// by canonical URL when the incoming record has one, by stable identity
// otherwise. The transaction starts with the writer lock held (immediate
// txlock), so two overlapping ingestions of the same logical item cannot
// both insert. Updates are last-write-wins via MergeItem.
func (r *ItemRepositoryImpl) UpsertItem(ctx context.Context, item Item) (Item, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Item{}, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing *Item
	if item.CanonicalURL != "" {
		existing, err = findItemTx(tx, `canonical_url = ?`, item.CanonicalURL)
		if err != nil {
			return Item{}, false, err
		}
	}
	if existing == nil {
		existing, err = findItemTx(tx, `stable_id = ?`, item.StableID)
		if err != nil {
			return Item{}, false, err
		}
	}

	now := time.Now().UTC()

	if existing != nil {
		merged := MergeItem(*existing, item)
		merged.UpdatedAt = now
		_, err = tx.ExecContext(ctx, `
			UPDATE items
			SET source_id = ?, feed_id = ?, title = ?, normalized_title = ?, title_hash = ?,
				url = ?, canonical_url = ?, published_at = ?, summary = ?, raw_payload = ?,
				updated_at = ?
			WHERE id = ?
		`, merged.SourceID, merged.FeedID, merged.Title, merged.NormalizedTitle,
			merged.TitleHash, merged.URL, merged.CanonicalURL, merged.PublishedAt.UTC(),
			merged.Summary, marshalPayload(merged.RawPayload), now, merged.ID)
		if err != nil {
			return Item{}, false, fmt.Errorf("failed to update item: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return Item{}, false, fmt.Errorf("failed to commit item update: %w", err)
		}
		return merged, false, nil
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO items (source_id, feed_id, title, normalized_title, title_hash,
			url, canonical_url, stable_id, published_at, summary, raw_payload,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.SourceID, item.FeedID, item.Title, item.NormalizedTitle, item.TitleHash,
		item.URL, item.CanonicalURL, item.StableID, item.PublishedAt.UTC(),
		item.Summary, marshalPayload(item.RawPayload), now, now)
	if err != nil {
		return Item{}, false, fmt.Errorf("failed to insert item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Item{}, false, fmt.Errorf("failed to commit item insert: %w", err)
	}

	item.ID, _ = result.LastInsertId()
	item.CreatedAt = now
	item.UpdatedAt = now
	return item, true, nil
}

func findItemTx(tx *sql.Tx, where string, arg any) (*Item, error) {
	row := tx.QueryRow(`SELECT `+itemColumns+` FROM items WHERE `+where+` LIMIT 1`, arg)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up item: %w", err)
	}
	return item, nil
}

// GetRecentItems returns the newest items, optionally filtered by feed
// section and source slug.
func (r *ItemRepositoryImpl) GetRecentItems(limit int, section, sourceSlug string) ([]Item, error) {
	query := `
		SELECT ` + prefixItemColumns("i") + `
		FROM items i
		JOIN feeds f ON f.id = i.feed_id
		JOIN sources s ON s.id = i.source_id
		WHERE 1 = 1`
	var args []any

	if section != "" {
		query += ` AND f.section = ?`
		args = append(args, section)
	}
	if sourceSlug != "" {
		query += ` AND s.slug = ?`
		args = append(args, sourceSlug)
	}

	query += ` ORDER BY i.published_at DESC, i.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}
	return items, nil
}

func (r *ItemRepositoryImpl) GetItemCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

// PruneItemsBefore bulk-deletes a feed's items published before cutoff.
func (r *ItemRepositoryImpl) PruneItemsBefore(feedID int64, cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM items WHERE feed_id = ? AND published_at < ?
	`, feedID, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune items: %w", err)
	}
	deleted, _ := result.RowsAffected()
	return deleted, nil
}

// CountItemsBefore reports how many items a prune would delete. Dry-run
// support.
func (r *ItemRepositoryImpl) CountItemsBefore(feedID int64, cutoff time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM items WHERE feed_id = ? AND published_at < ?
	`, feedID, cutoff.UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count prunable items: %w", err)
	}
	return count, nil
}

func prefixItemColumns(alias string) string {
	return alias + `.id, ` + alias + `.source_id, ` + alias + `.feed_id, ` +
		alias + `.title, ` + alias + `.normalized_title, ` + alias + `.title_hash, ` +
		alias + `.url, ` + alias + `.canonical_url, ` + alias + `.stable_id, ` +
		alias + `.published_at, ` + alias + `.summary, ` + alias + `.raw_payload, ` +
		alias + `.created_at, ` + alias + `.updated_at`
}
