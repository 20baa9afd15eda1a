package database

import (
	"testing"
	"time"
)

func TestMergeItem_PreservesIdentity(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	existing := Item{
		ID:        42,
		StableID:  "stable-original",
		Title:     "Old title",
		Summary:   "Old summary",
		CreatedAt: created,
	}
	incoming := Item{
		StableID:    "stable-recomputed",
		Title:       "New title",
		Summary:     "New summary",
		PublishedAt: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}

	merged := MergeItem(existing, incoming)

	if merged.ID != 42 {
		t.Errorf("Expected storage ID preserved, got %d", merged.ID)
	}
	if merged.StableID != "stable-original" {
		t.Errorf("Expected stable ID preserved, got %q", merged.StableID)
	}
	if !merged.CreatedAt.Equal(created) {
		t.Errorf("Expected creation timestamp preserved, got %v", merged.CreatedAt)
	}
}

func TestMergeItem_IncomingWinsEverywhereElse(t *testing.T) {
	existing := Item{ID: 1, Title: "Old", Summary: "Old", URL: "https://old"}
	incoming := Item{
		Title:        "New",
		Summary:      "New",
		URL:          "https://new",
		CanonicalURL: "https://new/",
		TitleHash:    "hash-new",
	}

	merged := MergeItem(existing, incoming)

	if merged.Title != "New" || merged.Summary != "New" {
		t.Errorf("Expected incoming values to win, got title=%q summary=%q", merged.Title, merged.Summary)
	}
	if merged.URL != "https://new" || merged.CanonicalURL != "https://new/" {
		t.Errorf("Expected incoming URLs to win, got %q / %q", merged.URL, merged.CanonicalURL)
	}
	if merged.TitleHash != "hash-new" {
		t.Errorf("Expected incoming title hash, got %q", merged.TitleHash)
	}
}

func TestMergeItem_Pure(t *testing.T) {
	existing := Item{ID: 1, Title: "Old"}
	incoming := Item{Title: "New"}

	_ = MergeItem(existing, incoming)

	if existing.Title != "Old" || incoming.Title != "New" {
		t.Error("MergeItem must not mutate its inputs")
	}
}
