package database

import (
	"testing"
	"time"
)

func TestUpsertFeed_CreateUpdateNoop(t *testing.T) {
	db := newTestDB(t)
	source, feed := seedTestFeed(t, db)
	repo := NewFeedRepository(db)

	// Identical definition is a no-op.
	_, created, updated, err := repo.UpsertFeed(Feed{
		SourceID:       source.ID,
		Name:           feed.Name,
		URL:            feed.URL,
		FeedType:       feed.FeedType,
		Section:        feed.Section,
		Enabled:        feed.Enabled,
		TimeoutSeconds: feed.TimeoutSeconds,
		MaxBytes:       feed.MaxBytes,
		MaxItemsPerRun: feed.MaxItemsPerRun,
		MaxAgeDays:     feed.MaxAgeDays,
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if created || updated {
		t.Errorf("Expected no-op for identical feed, created=%v updated=%v", created, updated)
	}

	// Drifted definition updates in place, keyed by URL.
	changed := feed
	changed.MaxAgeDays = 90
	stored, created, updated, err := repo.UpsertFeed(changed)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if created || !updated {
		t.Errorf("Expected in-place update, created=%v updated=%v", created, updated)
	}
	if stored.ID != feed.ID {
		t.Errorf("Expected same row, got ID %d != %d", stored.ID, feed.ID)
	}

	count, _ := repo.GetFeedCount()
	if count != 1 {
		t.Errorf("Expected single feed row, got %d", count)
	}
}

func TestGetEnabledFeeds_Selector(t *testing.T) {
	db := newTestDB(t)
	_, feed := seedTestFeed(t, db)
	repo := NewFeedRepository(db)

	all, err := repo.GetEnabledFeeds("")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("Expected 1 enabled feed, got %d", len(all))
	}
	if all[0].SourceSlug != "test-cert" {
		t.Errorf("Expected joined source slug, got %q", all[0].SourceSlug)
	}

	bySlug, _ := repo.GetEnabledFeeds("test-cert")
	if len(bySlug) != 1 {
		t.Errorf("Expected slug selector to match, got %d feeds", len(bySlug))
	}

	byName, _ := repo.GetEnabledFeeds("ADVISORIES")
	if len(byName) != 1 {
		t.Errorf("Expected case-insensitive name selector to match, got %d feeds", len(byName))
	}

	byID, _ := repo.GetEnabledFeeds("1")
	if len(byID) != 1 || byID[0].ID != feed.ID {
		t.Errorf("Expected numeric selector to match by feed ID, got %v", byID)
	}

	none, _ := repo.GetEnabledFeeds("no-such-source")
	if len(none) != 0 {
		t.Errorf("Expected no match for unknown selector, got %d feeds", len(none))
	}
}

func TestGetEnabledFeeds_DisabledSourceHidesFeeds(t *testing.T) {
	db := newTestDB(t)
	source, _ := seedTestFeed(t, db)
	sourceRepo := NewSourceRepository(db)
	repo := NewFeedRepository(db)

	disabled := source
	disabled.Enabled = false
	if _, _, _, err := sourceRepo.UpsertSource(disabled); err != nil {
		t.Fatalf("Failed to disable source: %v", err)
	}

	feeds, err := repo.GetEnabledFeeds("")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(feeds) != 0 {
		t.Errorf("Expected feeds of disabled source to be hidden, got %d", len(feeds))
	}
}

func TestDisableFeedsByURL(t *testing.T) {
	db := newTestDB(t)
	_, feed := seedTestFeed(t, db)
	repo := NewFeedRepository(db)

	disabled, err := repo.DisableFeedsByURL([]string{feed.URL, "https://unknown.example.com/feed"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if disabled != 1 {
		t.Errorf("Expected 1 feed disabled, got %d", disabled)
	}

	// Already-disabled feeds do not count again.
	disabled, err = repo.DisableFeedsByURL([]string{feed.URL})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if disabled != 0 {
		t.Errorf("Expected 0 newly disabled feeds, got %d", disabled)
	}

	if feeds, _ := repo.GetEnabledFeeds(""); len(feeds) != 0 {
		t.Errorf("Expected no enabled feeds, got %d", len(feeds))
	}
}

func TestDisableFeedsByURL_EmptyList(t *testing.T) {
	db := newTestDB(t)
	repo := NewFeedRepository(db)

	disabled, err := repo.DisableFeedsByURL(nil)
	if err != nil {
		t.Fatalf("Expected no error for empty list, got: %v", err)
	}
	if disabled != 0 {
		t.Errorf("Expected 0 disabled, got %d", disabled)
	}
}

func TestMarkFeedSuccessAndError(t *testing.T) {
	db := newTestDB(t)
	_, feed := seedTestFeed(t, db)
	repo := NewFeedRepository(db)

	if err := repo.MarkFeedError(feed.ID, "connection refused"); err != nil {
		t.Fatalf("MarkFeedError failed: %v", err)
	}

	stored, err := repo.GetFeedByURL(feed.URL)
	if err != nil {
		t.Fatalf("GetFeedByURL failed: %v", err)
	}
	if stored.LastError != "connection refused" {
		t.Errorf("Expected error recorded, got %q", stored.LastError)
	}

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.MarkFeedSuccess(feed.ID, at); err != nil {
		t.Fatalf("MarkFeedSuccess failed: %v", err)
	}

	stored, _ = repo.GetFeedByURL(feed.URL)
	if stored.LastError != "" {
		t.Errorf("Expected success to clear last error, got %q", stored.LastError)
	}
	if stored.LastSuccessAt == nil || !stored.LastSuccessAt.Equal(at) {
		t.Errorf("Expected last success timestamp %v, got %v", at, stored.LastSuccessAt)
	}
}
