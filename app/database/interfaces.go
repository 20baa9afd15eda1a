package database

import (
	"context"
	"time"
)

type SourceRepository interface {
	GetSourceBySlug(slug string) (*Source, error)
	GetSourceByName(name string) (*Source, error)
	UpsertSource(source Source) (Source, bool, bool, error)
	GetSourceCount() (int, error)
}

type FeedRepository interface {
	// GetEnabledFeeds returns feeds whose own and whose source's enabled
	// flags are both set, optionally narrowed by a selector (numeric feed
	// id, source slug, or exact feed name).
	GetEnabledFeeds(selector string) ([]Feed, error)
	GetAllFeeds() ([]Feed, error)
	GetFeedByURL(url string) (*Feed, error)
	UpsertFeed(feed Feed) (Feed, bool, bool, error)
	DisableFeedsByURL(urls []string) (int, error)
	MarkFeedSuccess(feedID int64, at time.Time) error
	MarkFeedError(feedID int64, message string) error
	GetFeedCount() (int, error)
}

type ItemRepository interface {
	// UpsertItem creates or updates the item inside one write transaction,
	// resolving the candidate row by non-empty canonical URL first and
	// stable identity second. Returns the stored row and whether it was
	// created.
	UpsertItem(ctx context.Context, item Item) (Item, bool, error)
	GetRecentItems(limit int, section, sourceSlug string) ([]Item, error)
	GetItemCount() (int, error)
	PruneItemsBefore(feedID int64, cutoff time.Time) (int64, error)
	CountItemsBefore(feedID int64, cutoff time.Time) (int64, error)
}

type RunRepository interface {
	CreateFetchRun(feedID int64, startedAt time.Time) (int64, error)
	FinalizeFetchRun(run FetchRun) error
	GetRecentFetchRuns(limit int) ([]FetchRun, error)
}

type DarkRepository interface {
	GetEnabledDarkSources(selector string) ([]DarkSource, error)
	UpsertDarkSource(source DarkSource) (DarkSource, bool, bool, error)
	CreateDarkFetchRun(darkSourceID int64, startedAt time.Time) (int64, error)
	FinalizeDarkFetchRun(run DarkFetchRun) error
	// CreateDarkHitIfNew inserts the hit unless one already exists for the
	// same (dark source, content hash) pair. Returns whether a row was
	// created.
	CreateDarkHitIfNew(ctx context.Context, hit DarkHit) (bool, error)
	GetRecentDarkHits(limit int) ([]DarkHit, error)
}
