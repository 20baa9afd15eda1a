package tasks

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/borealsec/intelfeed/app/ingest"
)

// IngestFeedTask runs the ingestion pipeline for a single feed. Failures
// of the run itself are recorded on the run's audit row by the pipeline;
// the task only errors on infrastructure failures worth retrying.
type IngestFeedTask struct {
	Task
	feedID   int64
	pipeline *ingest.Pipeline
}

func NewIngestFeedTask(feedID int64, feedName string, pipeline *ingest.Pipeline) *IngestFeedTask {
	return &IngestFeedTask{
		Task:     NewTask(TaskTypeIngestFeed, feedName),
		feedID:   feedID,
		pipeline: pipeline,
	}
}

func (t *IngestFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	summary, err := t.pipeline.Run(ctx, strconv.FormatInt(t.feedID, 10), false)
	if err != nil {
		return err
	}

	slog.Debug("Task completed",
		"type", string(TaskTypeIngestFeed),
		"feed", t.Name,
		"duration", t.GetDuration(),
		"new", summary.TotalNew,
		"updated", summary.TotalUpdated,
		"errors", summary.Errors)

	return nil
}
