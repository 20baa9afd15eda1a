package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// pruneBufferDays is the safety buffer added to each feed's max age before
// anything is deleted.
const pruneBufferDays = 30

// PruneSummary aggregates one pruning pass.
type PruneSummary struct {
	Deleted int64
	Feeds   int
}

// Prune deletes items older than each feed's max_age_days plus the safety
// buffer, one bulk delete per feed outside any cross-feed transaction. A
// later feed erroring leaves earlier deletions in place.
func (p *Pipeline) Prune(ctx context.Context, dryRun bool) (*PruneSummary, error) {
	feeds, err := p.feedRepo.GetAllFeeds()
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}

	now := time.Now().UTC()
	summary := &PruneSummary{}

	for _, feed := range feeds {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		cutoff := now.AddDate(0, 0, -(feed.MaxAgeDays + pruneBufferDays))

		var count int64
		if dryRun {
			count, err = p.itemRepo.CountItemsBefore(feed.ID, cutoff)
		} else {
			count, err = p.itemRepo.PruneItemsBefore(feed.ID, cutoff)
		}
		if err != nil {
			return summary, fmt.Errorf("failed to prune feed %d: %w", feed.ID, err)
		}
		if count == 0 {
			continue
		}

		summary.Deleted += count
		summary.Feeds++
		slog.Info("Feed pruned", "feed_id", feed.ID, "feed", feed.Name, "deleted", count, "dry_run", dryRun)
	}

	slog.Info("Prune complete", "deleted", summary.Deleted, "feeds", summary.Feeds, "dry_run", dryRun)
	return summary, nil
}
