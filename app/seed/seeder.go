package seed

import (
	"fmt"
	"log/slog"

	"github.com/borealsec/intelfeed/app/database"
)

const (
	defaultTimeoutSeconds = 10
	defaultMaxBytes       = 1_500_000
	defaultMaxAgeDays     = 180
	defaultMaxItemsPerRun = 200
)

// Result counts what one seeding pass changed. Re-running against an
// unchanged definition set reports zero creates and updates.
type Result struct {
	SourcesCreated      int
	SourcesUpdated      int
	FeedsCreated        int
	FeedsUpdated        int
	DarkSourcesCreated  int
	DarkSourcesUpdated  int
	SourceErrors        int
	FeedErrors          int
	DisabledBrokenFeeds int
}

// Seeder applies source/feed definitions idempotently: missing rows are
// created, drifted rows updated in place, identical rows left untouched.
type Seeder struct {
	sourceRepo database.SourceRepository
	feedRepo   database.FeedRepository
	darkRepo   database.DarkRepository
}

func NewSeeder(sourceRepo database.SourceRepository, feedRepo database.FeedRepository,
	darkRepo database.DarkRepository) *Seeder {
	return &Seeder{
		sourceRepo: sourceRepo,
		feedRepo:   feedRepo,
		darkRepo:   darkRepo,
	}
}

// Run seeds the given definitions. A failing source skips its feeds but
// never aborts the rest of the set.
func (s *Seeder) Run(sources []SourceDef, darkSources []DarkSourceDef) (*Result, error) {
	result := &Result{}

	disabled, err := s.feedRepo.DisableFeedsByURL(DisabledFeedURLs)
	if err != nil {
		return nil, fmt.Errorf("failed to disable broken feeds: %w", err)
	}
	result.DisabledBrokenFeeds = disabled

	for _, sourceDef := range sources {
		source, created, updated, err := s.sourceRepo.UpsertSource(database.Source{
			Name:     sourceDef.Name,
			Slug:     sourceDef.Slug,
			Homepage: sourceDef.Homepage,
			Tags:     sourceDef.Tags,
			Enabled:  enabledOrDefault(sourceDef.Enabled),
		})
		if err != nil {
			result.SourceErrors++
			slog.Error("Source upsert failed", "slug", sourceDef.Slug, "error", err)
			continue
		}
		if created {
			result.SourcesCreated++
		} else if updated {
			result.SourcesUpdated++
		}

		for _, feedDef := range sourceDef.Feeds {
			_, created, updated, err := s.feedRepo.UpsertFeed(buildFeed(source.ID, feedDef))
			if err != nil {
				result.FeedErrors++
				slog.Error("Feed upsert failed", "url", feedDef.URL, "error", err)
				continue
			}
			if created {
				result.FeedsCreated++
			} else if updated {
				result.FeedsUpdated++
			}
		}
	}

	for _, darkDef := range darkSources {
		_, created, updated, err := s.darkRepo.UpsertDarkSource(database.DarkSource{
			Name:          darkDef.Name,
			Slug:          darkDef.Slug,
			Homepage:      darkDef.Homepage,
			URL:           darkDef.URL,
			Tags:          darkDef.Tags,
			Enabled:       enabledOrDefault(darkDef.Enabled),
			WatchKeywords: darkDef.WatchKeywords,
		})
		if err != nil {
			result.SourceErrors++
			slog.Error("Dark source upsert failed", "slug", darkDef.Slug, "error", err)
			continue
		}
		if created {
			result.DarkSourcesCreated++
		} else if updated {
			result.DarkSourcesUpdated++
		}
	}

	slog.Info("Seed complete",
		"sources_created", result.SourcesCreated,
		"sources_updated", result.SourcesUpdated,
		"feeds_created", result.FeedsCreated,
		"feeds_updated", result.FeedsUpdated,
		"dark_sources_created", result.DarkSourcesCreated,
		"dark_sources_updated", result.DarkSourcesUpdated,
		"source_errors", result.SourceErrors,
		"feed_errors", result.FeedErrors,
		"disabled_broken_feeds", result.DisabledBrokenFeeds)

	return result, nil
}

func buildFeed(sourceID int64, def FeedDef) database.Feed {
	feed := database.Feed{
		SourceID:       sourceID,
		Name:           def.Name,
		URL:            def.URL,
		FeedType:       database.FeedType(def.FeedType),
		Section:        database.Section(def.Section),
		Enabled:        enabledOrDefault(def.Enabled),
		TimeoutSeconds: def.TimeoutSeconds,
		MaxBytes:       def.MaxBytes,
		MaxAgeDays:     def.MaxAgeDays,
		MaxItemsPerRun: def.MaxItemsPerRun,
	}

	if feed.FeedType == "" {
		feed.FeedType = database.FeedTypeRSS
	}
	if feed.Section == "" {
		feed.Section = database.SectionAdvisories
	}
	if feed.TimeoutSeconds == 0 {
		feed.TimeoutSeconds = defaultTimeoutSeconds
	}
	if feed.MaxBytes == 0 {
		feed.MaxBytes = defaultMaxBytes
	}
	if feed.MaxAgeDays == 0 {
		feed.MaxAgeDays = defaultMaxAgeDays
	}
	if feed.MaxItemsPerRun == 0 {
		feed.MaxItemsPerRun = defaultMaxItemsPerRun
	}

	return feed
}

func enabledOrDefault(enabled *bool) bool {
	if enabled == nil {
		return true
	}
	return *enabled
}
