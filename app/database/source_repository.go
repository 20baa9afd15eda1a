package database

import (
	"database/sql"
	"fmt"
	"time"
)

// SourceRepositoryImpl handles database operations for sources
type SourceRepositoryImpl struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepositoryImpl {
	return &SourceRepositoryImpl{db: db}
}

const sourceColumns = `id, name, slug, homepage, tags, enabled, created_at, updated_at`

func scanSource(row interface{ Scan(...any) error }) (*Source, error) {
	var source Source
	var tags string
	var enabled int
	err := row.Scan(&source.ID, &source.Name, &source.Slug, &source.Homepage,
		&tags, &enabled, &source.CreatedAt, &source.UpdatedAt)
	if err != nil {
		return nil, err
	}
	source.Tags = unmarshalStrings(tags)
	source.Enabled = enabled != 0
	return &source, nil
}

func (r *SourceRepositoryImpl) GetSourceBySlug(slug string) (*Source, error) {
	row := r.db.QueryRow(`SELECT `+sourceColumns+` FROM sources WHERE slug = ?`, slug)
	source, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source by slug: %w", err)
	}
	return source, nil
}

func (r *SourceRepositoryImpl) GetSourceByName(name string) (*Source, error) {
	row := r.db.QueryRow(`SELECT `+sourceColumns+` FROM sources WHERE name = ?`, name)
	source, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source by name: %w", err)
	}
	return source, nil
}

// UpsertSource creates the source or updates it in place when any field
// drifted from the given definition. Lookup is by slug first, then by name,
// mirroring the seeding contract. Returns (source, created, updated).
func (r *SourceRepositoryImpl) UpsertSource(source Source) (Source, bool, bool, error) {
	existing, err := r.GetSourceBySlug(source.Slug)
	if err != nil {
		return Source{}, false, false, err
	}
	if existing == nil {
		existing, err = r.GetSourceByName(source.Name)
		if err != nil {
			return Source{}, false, false, err
		}
	}

	now := time.Now().UTC()

	if existing == nil {
		result, err := r.db.Exec(`
			INSERT INTO sources (name, slug, homepage, tags, enabled, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, source.Name, source.Slug, source.Homepage, marshalStrings(source.Tags),
			boolToInt(source.Enabled), now, now)
		if err != nil {
			return Source{}, false, false, fmt.Errorf("failed to insert source: %w", err)
		}
		source.ID, _ = result.LastInsertId()
		source.CreatedAt = now
		source.UpdatedAt = now
		return source, true, false, nil
	}

	if sourceEqual(*existing, source) {
		return *existing, false, false, nil
	}

	_, err = r.db.Exec(`
		UPDATE sources
		SET name = ?, slug = ?, homepage = ?, tags = ?, enabled = ?, updated_at = ?
		WHERE id = ?
	`, source.Name, source.Slug, source.Homepage, marshalStrings(source.Tags),
		boolToInt(source.Enabled), now, existing.ID)
	if err != nil {
		return Source{}, false, false, fmt.Errorf("failed to update source: %w", err)
	}

	source.ID = existing.ID
	source.CreatedAt = existing.CreatedAt
	source.UpdatedAt = now
	return source, false, true, nil
}

func (r *SourceRepositoryImpl) GetSourceCount() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sources`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

func sourceEqual(a, b Source) bool {
	return a.Name == b.Name &&
		a.Slug == b.Slug &&
		a.Homepage == b.Homepage &&
		a.Enabled == b.Enabled &&
		marshalStrings(a.Tags) == marshalStrings(b.Tags)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
