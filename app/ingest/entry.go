package ingest

import (
	"cmp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"

	"github.com/borealsec/intelfeed/app/database"
	"github.com/borealsec/intelfeed/app/normalize"
)

// ResolvePublishedAt determines an entry's timestamp: structured
// published/updated values first, then textual fields, then the fallback
// (the run's start time). Naive timestamps are treated as UTC.
func ResolvePublishedAt(entry *gofeed.Item, fallback time.Time) time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC()
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC()
	}

	for _, raw := range []string{entry.Published, entry.Updated} {
		if raw == "" {
			continue
		}
		if parsed, err := dateparse.ParseIn(raw, time.UTC); err == nil {
			return parsed.UTC()
		}
	}

	return fallback.UTC()
}

// BuildItem converts a parsed entry into the record shape the store
// expects. Malformed entries degrade to defaults (missing title becomes
// the literal placeholder) instead of failing.
func BuildItem(feed database.Feed, entry *gofeed.Item, publishedAt time.Time) database.Item {
	title := normalize.NormalizeTitle(cmp.Or(entry.Title, "Untitled"))
	if title == "" {
		title = "Untitled"
	}

	url := strings.TrimSpace(entry.Link)
	canonicalURL := normalize.CanonicalizeURL(url)
	summary := normalize.SanitizeSummary(cmp.Or(entry.Description, entry.Content))

	return database.Item{
		SourceID:        feed.SourceID,
		FeedID:          feed.ID,
		Title:           title,
		NormalizedTitle: title,
		TitleHash:       normalize.HashTitle(title),
		URL:             url,
		CanonicalURL:    canonicalURL,
		StableID:        normalize.BuildStableID(feed.ID, canonicalURL, title, publishedAt),
		PublishedAt:     publishedAt,
		Summary:         summary,
		RawPayload: map[string]any{
			"id":        entry.GUID,
			"title":     entry.Title,
			"link":      url,
			"published": cmp.Or(entry.Published, entry.Updated),
			"summary":   cmp.Or(entry.Description, entry.Content),
		},
	}
}
