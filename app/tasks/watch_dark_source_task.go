package tasks

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/borealsec/intelfeed/app/watch"
)

// WatchDarkSourceTask runs the passive-watch pipeline for a single dark
// source.
type WatchDarkSourceTask struct {
	Task
	darkSourceID int64
	pipeline     *watch.Pipeline
}

func NewWatchDarkSourceTask(darkSourceID int64, sourceName string, pipeline *watch.Pipeline) *WatchDarkSourceTask {
	return &WatchDarkSourceTask{
		Task:         NewTask(TaskTypeWatchDarkSource, sourceName),
		darkSourceID: darkSourceID,
		pipeline:     pipeline,
	}
}

func (t *WatchDarkSourceTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	summary, err := t.pipeline.Run(ctx, strconv.FormatInt(t.darkSourceID, 10))
	if err != nil {
		return err
	}

	slog.Debug("Task completed",
		"type", string(TaskTypeWatchDarkSource),
		"source", t.Name,
		"duration", t.GetDuration(),
		"hits_new", summary.TotalHitsNew,
		"errors", summary.Errors)

	return nil
}
