package tasks

import (
	"context"
	"log/slog"

	"github.com/borealsec/intelfeed/app/ingest"
)

// PruneItemsTask deletes items past each feed's retention window.
type PruneItemsTask struct {
	Task
	pipeline *ingest.Pipeline
}

func NewPruneItemsTask(pipeline *ingest.Pipeline) *PruneItemsTask {
	return &PruneItemsTask{
		Task:     NewTask(TaskTypePruneItems, "prune"),
		pipeline: pipeline,
	}
}

func (t *PruneItemsTask) Execute(ctx context.Context) error {
	summary, err := t.pipeline.Prune(ctx, false)
	if err != nil {
		return err
	}

	slog.Debug("Task completed",
		"type", string(TaskTypePruneItems),
		"duration", t.GetDuration(),
		"deleted", summary.Deleted)

	return nil
}
