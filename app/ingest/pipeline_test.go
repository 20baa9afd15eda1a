package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/borealsec/intelfeed/app/cfg"
	"github.com/borealsec/intelfeed/app/database"
	"github.com/borealsec/intelfeed/app/fetch"
)

func setupTestCfg(t *testing.T) {
	t.Helper()
	cfg.SetForTesting(&cfg.Cfg{
		FetchTimeout:  5,
		FetchMaxBytes: 1_000_000,
		FetchRetries:  1,
	})
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

type testEnv struct {
	db         *database.DB
	sourceRepo database.SourceRepository
	feedRepo   database.FeedRepository
	itemRepo   database.ItemRepository
	runRepo    database.RunRepository
	pipeline   *Pipeline
	source     database.Source
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	setupTestCfg(t)

	db := newTestDB(t)
	sourceRepo := database.NewSourceRepository(db)
	feedRepo := database.NewFeedRepository(db)
	itemRepo := database.NewItemRepository(db)
	runRepo := database.NewRunRepository(db)

	source, _, _, err := sourceRepo.UpsertSource(database.Source{
		Name: "Test CERT", Slug: "test-cert", Enabled: true,
	})
	if err != nil {
		t.Fatalf("Failed to seed source: %v", err)
	}

	fetcher := fetch.NewClient("test-agent/1.0", 1)
	return &testEnv{
		db:         db,
		sourceRepo: sourceRepo,
		feedRepo:   feedRepo,
		itemRepo:   itemRepo,
		runRepo:    runRepo,
		pipeline:   NewPipeline(fetcher, feedRepo, itemRepo, runRepo),
		source:     source,
	}
}

func (e *testEnv) addFeed(t *testing.T, url string, mutate func(*database.Feed)) database.Feed {
	t.Helper()

	feed := database.Feed{
		SourceID:       e.source.ID,
		Name:           "Advisories " + url,
		URL:            url,
		FeedType:       database.FeedTypeRSS,
		Section:        database.SectionAdvisories,
		Enabled:        true,
		TimeoutSeconds: 5,
		MaxBytes:       1_000_000,
		MaxItemsPerRun: 200,
		MaxAgeDays:     180,
	}
	if mutate != nil {
		mutate(&feed)
	}

	stored, _, _, err := e.feedRepo.UpsertFeed(feed)
	if err != nil {
		t.Fatalf("Failed to seed feed: %v", err)
	}
	return stored
}

type rssEntry struct {
	title     string
	link      string
	desc      string
	published time.Time
}

func rssDocument(entries []rssEntry) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>Test Feed</title><link>https://example.com</link>`)
	for _, entry := range entries {
		fmt.Fprintf(&b, `<item><title>%s</title><link>%s</link><description>%s</description><pubDate>%s</pubDate></item>`,
			entry.title, entry.link, entry.desc, entry.published.Format(time.RFC1123Z))
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func serveRSS(t *testing.T, entries []rssEntry) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(rssDocument(entries)))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestPipeline_Run_IngestsNewItems(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	server := serveRSS(t, []rssEntry{
		{title: "Advisory One", link: "https://example.com/a/1?utm_source=rss", desc: "First", published: now.Add(-time.Hour)},
		{title: "Advisory Two", link: "https://example.com/a/2", desc: "Second", published: now.Add(-2 * time.Hour)},
	})
	feed := env.addFeed(t, server.URL, nil)

	summary, err := env.pipeline.Run(context.Background(), "", false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if summary.TotalNew != 2 {
		t.Errorf("Expected 2 new items, got %d", summary.TotalNew)
	}
	if summary.Errors != 0 {
		t.Errorf("Expected no errors, got %d", summary.Errors)
	}

	items, err := env.itemRepo.GetRecentItems(10, "", "")
	if err != nil {
		t.Fatalf("Failed to list items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 stored items, got %d", len(items))
	}
	if items[0].CanonicalURL != "https://example.com/a/1" {
		t.Errorf("Expected canonicalized URL without tracking params, got %q", items[0].CanonicalURL)
	}

	runs, err := env.runRepo.GetRecentFetchRuns(10)
	if err != nil {
		t.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 fetch run, got %d", len(runs))
	}
	if !runs[0].OK || runs[0].ItemsNew != 2 {
		t.Errorf("Expected successful run with 2 new items, got ok=%v new=%d", runs[0].OK, runs[0].ItemsNew)
	}

	stored, _ := env.feedRepo.GetFeedByURL(feed.URL)
	if stored.LastSuccessAt == nil {
		t.Error("Expected last success timestamp recorded")
	}
}

func TestPipeline_Run_RerunUpdatesInsteadOfDuplicating(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	server := serveRSS(t, []rssEntry{
		{title: "Advisory One", link: "https://example.com/a/1", desc: "First", published: now.Add(-time.Hour)},
	})
	env.addFeed(t, server.URL, nil)

	if _, err := env.pipeline.Run(context.Background(), "", false); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	summary, err := env.pipeline.Run(context.Background(), "", false)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if summary.TotalNew != 0 {
		t.Errorf("Expected no new items on re-run, got %d", summary.TotalNew)
	}
	if summary.TotalUpdated != 1 {
		t.Errorf("Expected 1 updated item on re-run, got %d", summary.TotalUpdated)
	}

	count, _ := env.itemRepo.GetItemCount()
	if count != 1 {
		t.Errorf("Expected single stored item, got %d", count)
	}
}

func TestPipeline_Run_SkipsItemsPastMaxAge(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	server := serveRSS(t, []rssEntry{
		{title: "Fresh", link: "https://example.com/a/1", desc: "x", published: now.Add(-time.Hour)},
		{title: "Stale", link: "https://example.com/a/2", desc: "x", published: now.AddDate(0, 0, -40)},
	})
	env.addFeed(t, server.URL, func(f *database.Feed) { f.MaxAgeDays = 30 })

	summary, err := env.pipeline.Run(context.Background(), "", false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if summary.TotalNew != 1 {
		t.Errorf("Expected 1 new item, got %d", summary.TotalNew)
	}
	if summary.Outcomes[0].SkippedOld != 1 {
		t.Errorf("Expected 1 skipped item, got %d", summary.Outcomes[0].SkippedOld)
	}
}

func TestPipeline_Run_HonorsVolumeCap(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	var entries []rssEntry
	for i := 0; i < 5; i++ {
		entries = append(entries, rssEntry{
			title:     fmt.Sprintf("Advisory %d", i),
			link:      fmt.Sprintf("https://example.com/a/%d", i),
			desc:      "x",
			published: now.Add(-time.Duration(i) * time.Hour),
		})
	}
	server := serveRSS(t, entries)
	env.addFeed(t, server.URL, func(f *database.Feed) { f.MaxItemsPerRun = 2 })

	summary, err := env.pipeline.Run(context.Background(), "", false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if summary.Outcomes[0].Processed != 2 {
		t.Errorf("Expected 2 processed entries, got %d", summary.Outcomes[0].Processed)
	}

	count, _ := env.itemRepo.GetItemCount()
	if count != 2 {
		t.Errorf("Expected 2 stored items, got %d", count)
	}
}

func TestPipeline_Run_DryRunWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	server := serveRSS(t, []rssEntry{
		{title: "Advisory", link: "https://example.com/a/1", desc: "x", published: now.Add(-time.Hour)},
	})
	env.addFeed(t, server.URL, nil)

	summary, err := env.pipeline.Run(context.Background(), "", true)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if summary.TotalNew != 0 || summary.TotalUpdated != 0 {
		t.Errorf("Expected no writes in dry run, got new=%d updated=%d", summary.TotalNew, summary.TotalUpdated)
	}

	count, _ := env.itemRepo.GetItemCount()
	if count != 0 {
		t.Errorf("Expected no items stored in dry run, got %d", count)
	}

	// The audit run is still recorded.
	runs, _ := env.runRepo.GetRecentFetchRuns(10)
	if len(runs) != 1 || !runs[0].OK {
		t.Errorf("Expected one successful run record, got %v", runs)
	}
}

func TestPipeline_Run_JSONFeedFailsWithoutFetching(t *testing.T) {
	env := newTestEnv(t)

	requested := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = true
	}))
	defer server.Close()

	feed := env.addFeed(t, server.URL, func(f *database.Feed) { f.FeedType = database.FeedTypeJSON })

	summary, err := env.pipeline.Run(context.Background(), "", false)
	if err != nil {
		t.Fatalf("Run itself should not fail, got: %v", err)
	}
	if summary.Errors != 1 {
		t.Fatalf("Expected 1 feed error, got %d", summary.Errors)
	}
	if requested {
		t.Error("Expected no network request for a JSON feed")
	}

	runs, _ := env.runRepo.GetRecentFetchRuns(10)
	if len(runs) != 1 || runs[0].OK {
		t.Fatalf("Expected one failed run, got %v", runs)
	}
	if !strings.Contains(runs[0].Error, "JSON ingestion is not implemented yet") {
		t.Errorf("Expected JSON error recorded, got %q", runs[0].Error)
	}

	stored, _ := env.feedRepo.GetFeedByURL(feed.URL)
	if !strings.Contains(stored.LastError, "JSON ingestion is not implemented yet") {
		t.Errorf("Expected feed last error recorded, got %q", stored.LastError)
	}
}

func TestPipeline_Run_InvalidPayloadRecordsError(t *testing.T) {
	env := newTestEnv(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not a feed"))
	}))
	defer server.Close()

	env.addFeed(t, server.URL, nil)

	summary, err := env.pipeline.Run(context.Background(), "", false)
	if err != nil {
		t.Fatalf("Run itself should not fail, got: %v", err)
	}
	if summary.Errors != 1 {
		t.Errorf("Expected 1 feed error, got %d", summary.Errors)
	}

	runs, _ := env.runRepo.GetRecentFetchRuns(10)
	if len(runs) != 1 || runs[0].OK {
		t.Fatalf("Expected one failed run, got %v", runs)
	}
	if !strings.Contains(runs[0].Error, "invalid feed payload") {
		t.Errorf("Expected parse error recorded, got %q", runs[0].Error)
	}
}

func TestPipeline_Run_FailingFeedDoesNotBlockOthers(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	healthy := serveRSS(t, []rssEntry{
		{title: "Advisory", link: "https://example.com/a/1", desc: "x", published: now.Add(-time.Hour)},
	})

	env.addFeed(t, broken.URL, func(f *database.Feed) { f.Name = "Broken" })
	env.addFeed(t, healthy.URL, func(f *database.Feed) { f.Name = "Healthy" })

	summary, err := env.pipeline.Run(context.Background(), "", false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if summary.Errors != 1 {
		t.Errorf("Expected 1 feed error, got %d", summary.Errors)
	}
	if summary.TotalNew != 1 {
		t.Errorf("Expected healthy feed to ingest 1 item, got %d", summary.TotalNew)
	}
}

func TestPipeline_Run_SelectorNarrowsFeeds(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	serverA := serveRSS(t, []rssEntry{
		{title: "A", link: "https://example.com/a", desc: "x", published: now.Add(-time.Hour)},
	})
	serverB := serveRSS(t, []rssEntry{
		{title: "B", link: "https://example.com/b", desc: "x", published: now.Add(-time.Hour)},
	})

	feedA := env.addFeed(t, serverA.URL, func(f *database.Feed) { f.Name = "Feed A" })
	env.addFeed(t, serverB.URL, func(f *database.Feed) { f.Name = "Feed B" })

	summary, err := env.pipeline.Run(context.Background(), fmt.Sprintf("%d", feedA.ID), false)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(summary.Outcomes) != 1 {
		t.Fatalf("Expected single feed outcome, got %d", len(summary.Outcomes))
	}
	if summary.Outcomes[0].FeedID != feedA.ID {
		t.Errorf("Expected selected feed, got %d", summary.Outcomes[0].FeedID)
	}
}

func TestPipeline_Prune(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	server := serveRSS(t, nil)
	feed := env.addFeed(t, server.URL, func(f *database.Feed) { f.MaxAgeDays = 30 })

	old := database.Item{
		SourceID: env.source.ID, FeedID: feed.ID,
		Title: "Ancient", NormalizedTitle: "Ancient", TitleHash: "h1",
		StableID: "stable-old", PublishedAt: now.AddDate(0, 0, -120),
	}
	fresh := database.Item{
		SourceID: env.source.ID, FeedID: feed.ID,
		Title: "Fresh", NormalizedTitle: "Fresh", TitleHash: "h2",
		StableID: "stable-fresh", PublishedAt: now.Add(-time.Hour),
	}
	for _, item := range []database.Item{old, fresh} {
		if _, _, err := env.itemRepo.UpsertItem(context.Background(), item); err != nil {
			t.Fatalf("Failed to insert item: %v", err)
		}
	}

	// Dry run counts without deleting.
	summary, err := env.pipeline.Prune(context.Background(), true)
	if err != nil {
		t.Fatalf("Dry-run prune failed: %v", err)
	}
	if summary.Deleted != 1 {
		t.Errorf("Expected 1 prunable item, got %d", summary.Deleted)
	}
	if count, _ := env.itemRepo.GetItemCount(); count != 2 {
		t.Errorf("Expected dry run to delete nothing, have %d items", count)
	}

	summary, err = env.pipeline.Prune(context.Background(), false)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if summary.Deleted != 1 {
		t.Errorf("Expected 1 deleted item, got %d", summary.Deleted)
	}
	if count, _ := env.itemRepo.GetItemCount(); count != 1 {
		t.Errorf("Expected 1 remaining item, got %d", count)
	}
}

func TestTruncate_KeepsRuneBoundaries(t *testing.T) {
	if got := truncate("short error", 4000); got != "short error" {
		t.Errorf("Expected short string untouched, got %q", got)
	}

	// The limit counts runes, so a multi-byte string under the rune
	// limit survives even when it is over the limit in bytes.
	long := strings.Repeat("å", 3000)
	if got := truncate(long, 4000); got != long {
		t.Errorf("Expected full string kept under the rune limit, got %d runes", utf8.RuneCountInString(got))
	}

	over := strings.Repeat("å", 5000)
	got := truncate(over, 4000)
	if !utf8.ValidString(got) {
		t.Error("Expected truncated error text to stay valid UTF-8")
	}
	if utf8.RuneCountInString(got) != 4000 {
		t.Errorf("Expected 4000 runes after truncation, got %d", utf8.RuneCountInString(got))
	}
}
