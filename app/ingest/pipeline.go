package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/borealsec/intelfeed/app/cfg"
	"github.com/borealsec/intelfeed/app/database"
	"github.com/borealsec/intelfeed/app/fetch"
)

const (
	runErrorLimit  = 4000
	feedErrorLimit = 2000
)

// FeedOutcome is the structured result of processing one feed. A non-nil
// Err means the run failed and was recorded as such; it never aborts
// sibling feeds.
type FeedOutcome struct {
	FeedID     int64
	FeedName   string
	New        int
	Updated    int
	SkippedOld int
	Processed  int
	Err        error
}

// Summary aggregates the outcomes of one invocation.
type Summary struct {
	TotalNew     int
	TotalUpdated int
	Errors       int
	Outcomes     []FeedOutcome
}

// Pipeline orchestrates fetch, parse, filter and upsert for enabled feeds.
type Pipeline struct {
	fetcher  *fetch.Client
	parser   *gofeed.Parser
	feedRepo database.FeedRepository
	itemRepo database.ItemRepository
	runRepo  database.RunRepository

	globalTimeout  int
	globalMaxBytes int
}

func NewPipeline(fetcher *fetch.Client, feedRepo database.FeedRepository,
	itemRepo database.ItemRepository, runRepo database.RunRepository) *Pipeline {
	c := cfg.Get()

	return &Pipeline{
		fetcher:        fetcher,
		parser:         gofeed.NewParser(),
		feedRepo:       feedRepo,
		itemRepo:       itemRepo,
		runRepo:        runRepo,
		globalTimeout:  c.FetchTimeout,
		globalMaxBytes: c.FetchMaxBytes,
	}
}

// Run processes the enabled feeds matching the selector sequentially. A
// feed failing is recorded on its own run and never stops the others.
func (p *Pipeline) Run(ctx context.Context, selector string, dryRun bool) (*Summary, error) {
	feeds, err := p.feedRepo.GetEnabledFeeds(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled feeds: %w", err)
	}
	if len(feeds) == 0 {
		slog.Warn("No enabled feeds matched", "selector", selector)
		return &Summary{}, nil
	}

	summary := &Summary{}
	for _, feed := range feeds {
		outcome := p.runFeed(ctx, feed, dryRun)
		summary.Outcomes = append(summary.Outcomes, outcome)
		summary.TotalNew += outcome.New
		summary.TotalUpdated += outcome.Updated
		if outcome.Err != nil {
			summary.Errors++
		}
	}

	slog.Info("Ingestion complete",
		"total_new", summary.TotalNew,
		"total_updated", summary.TotalUpdated,
		"errors", summary.Errors)

	return summary, nil
}

// runFeed executes the run state machine for one feed: the audit row is
// created first and finalized on every path.
func (p *Pipeline) runFeed(ctx context.Context, feed database.Feed, dryRun bool) FeedOutcome {
	outcome := FeedOutcome{FeedID: feed.ID, FeedName: feed.Name}

	startedAt := time.Now().UTC()
	started := time.Now()

	runID, err := p.runRepo.CreateFetchRun(feed.ID, startedAt)
	if err != nil {
		outcome.Err = fmt.Errorf("failed to create fetch run: %w", err)
		return outcome
	}

	run := database.FetchRun{ID: runID, FeedID: feed.ID, StartedAt: startedAt}

	httpStatus, err := p.ingestFeed(ctx, feed, startedAt, dryRun, &outcome)
	if httpStatus != 0 {
		run.HTTPStatus = &httpStatus
	}

	finishedAt := time.Now().UTC()
	durationMs := time.Since(started).Milliseconds()
	run.FinishedAt = &finishedAt
	run.DurationMs = &durationMs

	if err != nil {
		outcome.Err = err
		run.OK = false
		run.Error = truncate(err.Error(), runErrorLimit)
		if finalizeErr := p.runRepo.FinalizeFetchRun(run); finalizeErr != nil {
			slog.Error("Failed to finalize fetch run", "feed", feed.Name, "error", finalizeErr)
		}
		if markErr := p.feedRepo.MarkFeedError(feed.ID, truncate(err.Error(), feedErrorLimit)); markErr != nil {
			slog.Error("Failed to record feed error", "feed", feed.Name, "error", markErr)
		}
		slog.Error("Feed ingestion failed", "feed_id", feed.ID, "feed", feed.Name, "error", err)
		return outcome
	}

	run.OK = true
	run.ItemsNew = outcome.New
	run.ItemsUpdated = outcome.Updated
	if err := p.runRepo.FinalizeFetchRun(run); err != nil {
		slog.Error("Failed to finalize fetch run", "feed", feed.Name, "error", err)
	}
	if err := p.feedRepo.MarkFeedSuccess(feed.ID, finishedAt); err != nil {
		slog.Error("Failed to record feed success", "feed", feed.Name, "error", err)
	}

	slog.Info("Feed ingested",
		"feed_id", feed.ID,
		"feed", feed.Name,
		"new", outcome.New,
		"updated", outcome.Updated,
		"skipped_old", outcome.SkippedOld,
		"processed", outcome.Processed,
		"duration_ms", durationMs)

	return outcome
}

// ingestFeed performs fetch, parse, filter and upsert, mutating the
// outcome counters. Returns the HTTP status when one was observed.
func (p *Pipeline) ingestFeed(ctx context.Context, feed database.Feed, startedAt time.Time, dryRun bool, outcome *FeedOutcome) (int, error) {
	// A JSON feed type is a static configuration error, not a transient
	// one. Short-circuit before any network work.
	if feed.FeedType == database.FeedTypeJSON {
		return 0, fmt.Errorf("JSON ingestion is not implemented yet, use rss/atom feeds for now")
	}

	timeout := time.Duration(clampLimit(feed.TimeoutSeconds, p.globalTimeout)) * time.Second
	maxBytes := clampLimit(feed.MaxBytes, p.globalMaxBytes)

	result, err := p.fetcher.Fetch(ctx, feed.URL, timeout, maxBytes)
	if err != nil {
		return 0, err
	}

	parsed, err := p.parser.Parse(bytes.NewReader(result.Body))
	if err != nil {
		return result.StatusCode, fmt.Errorf("invalid feed payload: %w", err)
	}

	cutoff := startedAt.AddDate(0, 0, -feed.MaxAgeDays)

	for _, entry := range parsed.Items {
		if outcome.Processed >= feed.MaxItemsPerRun {
			break
		}
		outcome.Processed++

		publishedAt := ResolvePublishedAt(entry, startedAt)
		if publishedAt.Before(cutoff) {
			outcome.SkippedOld++
			continue
		}

		if dryRun {
			continue
		}

		_, created, err := p.itemRepo.UpsertItem(ctx, BuildItem(feed, entry, publishedAt))
		if err != nil {
			return result.StatusCode, fmt.Errorf("failed to upsert item: %w", err)
		}
		if created {
			outcome.New++
		} else {
			outcome.Updated++
		}
	}

	return result.StatusCode, nil
}

// clampLimit clamps a per-feed limit against the global ceiling.
func clampLimit(feedValue, globalValue int) int {
	effective := min(feedValue, globalValue)
	return max(1, effective)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
