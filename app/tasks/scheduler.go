package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/borealsec/intelfeed/app/cfg"
	"github.com/borealsec/intelfeed/app/database"
	"github.com/borealsec/intelfeed/app/ingest"
	"github.com/borealsec/intelfeed/app/watch"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// pruneInterval is how often a prune task is enqueued alongside the
// regular ingestion ticks.
const pruneInterval = 24 * time.Hour

type Scheduler struct {
	feedRepo       database.FeedRepository
	darkRepo       database.DarkRepository
	ingestPipeline *ingest.Pipeline
	watchPipeline  *watch.Pipeline
	interval       time.Duration
	workerCount    int
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	taskQueue      chan TaskInterface
	lastPruneAt    time.Time
}

func NewScheduler(feedRepo database.FeedRepository, darkRepo database.DarkRepository,
	ingestPipeline *ingest.Pipeline, watchPipeline *watch.Pipeline) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	c := cfg.Get()

	return &Scheduler{
		feedRepo:       feedRepo,
		darkRepo:       darkRepo,
		ingestPipeline: ingestPipeline,
		watchPipeline:  watchPipeline,
		interval:       time.Duration(c.SchedulerInterval) * time.Second,
		workerCount:    c.WorkerCount,
		ctx:            ctx,
		cancel:         cancel,
		taskQueue:      make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

// Stop cancels the workers and waits for in-flight tasks. The queue is
// left open so a trigger racing shutdown gets an error instead of a
// send on a closed channel.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueTasks() {
	feeds, err := s.feedRepo.GetEnabledFeeds("")
	if err != nil {
		slog.Error("Failed to list enabled feeds for scheduling", "error", err)
	} else if len(feeds) == 0 {
		slog.Debug("No enabled feeds to schedule")
	} else {
		slog.Debug("Scheduling feed ingestion tasks", "count", len(feeds))
		for _, feed := range feeds {
			task := NewIngestFeedTask(feed.ID, feed.Name, s.ingestPipeline)
			if err := s.EnqueueTask(task); err != nil {
				slog.Warn("Failed to enqueue IngestFeedTask", "feed", feed.Name, "error", err)
			}
		}
	}

	darkSources, err := s.darkRepo.GetEnabledDarkSources("")
	if err != nil {
		slog.Error("Failed to list enabled dark sources for scheduling", "error", err)
	} else if len(darkSources) > 0 {
		slog.Debug("Scheduling dark source watch tasks", "count", len(darkSources))
		for _, source := range darkSources {
			task := NewWatchDarkSourceTask(source.ID, source.Name, s.watchPipeline)
			if err := s.EnqueueTask(task); err != nil {
				slog.Warn("Failed to enqueue WatchDarkSourceTask", "source", source.Name, "error", err)
			}
		}
	}

	now := time.Now().UTC()
	if now.Sub(s.lastPruneAt) >= pruneInterval {
		if err := s.EnqueueTask(NewPruneItemsTask(s.ingestPipeline)); err != nil {
			slog.Warn("Failed to enqueue PruneItemsTask", "error", err)
		} else {
			s.lastPruneAt = now
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "name", task.GetName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
