package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/borealsec/intelfeed/app/cfg"
	"github.com/borealsec/intelfeed/app/database"
	"github.com/borealsec/intelfeed/app/fetch"
	"github.com/borealsec/intelfeed/app/normalize"
)

const (
	runErrorLimit    = 4000
	rawSnapshotLimit = 4000
	excerptLimit     = 280
)

// SourceOutcome is the structured result of watching one dark source.
type SourceOutcome struct {
	DarkSourceID  int64
	SourceName    string
	Matches       int
	HitCreated    bool
	BytesReceived int
	Err           error
}

// Summary aggregates the outcomes of one watch invocation.
type Summary struct {
	TotalHitsNew int
	Errors       int
	Outcomes     []SourceOutcome
}

// Pipeline orchestrates the passive watch: fetch, extract, keyword match,
// content-hash dedupe, hit record.
type Pipeline struct {
	fetcher  *fetch.DarkClient
	darkRepo database.DarkRepository

	timeout  time.Duration
	maxBytes int
}

func NewPipeline(fetcher *fetch.DarkClient, darkRepo database.DarkRepository) *Pipeline {
	c := cfg.Get()

	return &Pipeline{
		fetcher:  fetcher,
		darkRepo: darkRepo,
		timeout:  time.Duration(c.DarkFetchTimeout) * time.Second,
		maxBytes: c.DarkFetchMaxBytes,
	}
}

// Run watches the enabled dark sources matching the selector sequentially,
// isolating failures per source.
func (p *Pipeline) Run(ctx context.Context, selector string) (*Summary, error) {
	sources, err := p.darkRepo.GetEnabledDarkSources(selector)
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled dark sources: %w", err)
	}
	if len(sources) == 0 {
		slog.Warn("No enabled dark sources matched", "selector", selector)
		return &Summary{}, nil
	}

	summary := &Summary{}
	for _, source := range sources {
		outcome := p.watchSource(ctx, source)
		summary.Outcomes = append(summary.Outcomes, outcome)
		if outcome.HitCreated {
			summary.TotalHitsNew++
		}
		if outcome.Err != nil {
			summary.Errors++
		}
	}

	slog.Info("Dark watch complete",
		"total_hits_new", summary.TotalHitsNew,
		"errors", summary.Errors)

	return summary, nil
}

func (p *Pipeline) watchSource(ctx context.Context, source database.DarkSource) SourceOutcome {
	outcome := SourceOutcome{DarkSourceID: source.ID, SourceName: source.Name}

	startedAt := time.Now().UTC()

	runID, err := p.darkRepo.CreateDarkFetchRun(source.ID, startedAt)
	if err != nil {
		outcome.Err = fmt.Errorf("failed to create dark fetch run: %w", err)
		return outcome
	}

	run := database.DarkFetchRun{ID: runID, DarkSourceID: source.ID, StartedAt: startedAt}

	err = p.watchOnce(ctx, source, &run, &outcome)

	finishedAt := time.Now().UTC()
	run.FinishedAt = &finishedAt

	if err != nil {
		outcome.Err = err
		run.OK = false
		run.Error = truncate(err.Error(), runErrorLimit)
		if finalizeErr := p.darkRepo.FinalizeDarkFetchRun(run); finalizeErr != nil {
			slog.Error("Failed to finalize dark fetch run", "source", source.Name, "error", finalizeErr)
		}
		slog.Error("Dark source watch failed", "source_id", source.ID, "source", source.Name, "error", err)
		return outcome
	}

	run.OK = true
	if err := p.darkRepo.FinalizeDarkFetchRun(run); err != nil {
		slog.Error("Failed to finalize dark fetch run", "source", source.Name, "error", err)
	}

	slog.Info("Dark source watched",
		"source_id", source.ID,
		"source", source.Name,
		"bytes", outcome.BytesReceived,
		"matches", outcome.Matches,
		"hit_created", outcome.HitCreated)

	return outcome
}

func (p *Pipeline) watchOnce(ctx context.Context, source database.DarkSource, run *database.DarkFetchRun, outcome *SourceOutcome) error {
	result, err := p.fetcher.Fetch(ctx, source.URL, p.timeout, p.maxBytes)
	if err != nil {
		return err
	}

	run.BytesReceived = result.BytesReceived
	outcome.BytesReceived = result.BytesReceived

	title := normalize.ExtractTitle(result.Markup)
	text := normalize.StripTags(normalize.ExtractMainContent(result.Markup))
	excerpt := normalize.BuildExcerpt(text, excerptLimit)

	matches := MatchKeywords(title+"\n"+text, source.WatchKeywords)
	outcome.Matches = len(matches)
	if len(matches) == 0 {
		return nil
	}

	contentHash := BuildContentHash(source.URL, title, text, matches)

	created, err := p.darkRepo.CreateDarkHitIfNew(ctx, database.DarkHit{
		DarkSourceID:    source.ID,
		MatchedKeywords: matches,
		Title:           title,
		Excerpt:         excerpt,
		URL:             source.URL,
		ContentHash:     contentHash,
		Raw:             truncate(result.Markup, rawSnapshotLimit),
	})
	if err != nil {
		return fmt.Errorf("failed to record dark hit: %w", err)
	}

	outcome.HitCreated = created
	return nil
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
