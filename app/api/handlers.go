package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/borealsec/intelfeed/app/database"
	"github.com/borealsec/intelfeed/app/ingest"
	"github.com/borealsec/intelfeed/app/tasks"
	"github.com/borealsec/intelfeed/app/watch"
)

const defaultListLimit = 50

func NewHandler(sourceRepo database.SourceRepository, feedRepo database.FeedRepository,
	itemRepo database.ItemRepository, runRepo database.RunRepository,
	darkRepo database.DarkRepository, ingestPipeline *ingest.Pipeline,
	watchPipeline *watch.Pipeline, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		sourceRepo:     sourceRepo,
		feedRepo:       feedRepo,
		itemRepo:       itemRepo,
		runRepo:        runRepo,
		darkRepo:       darkRepo,
		ingestPipeline: ingestPipeline,
		watchPipeline:  watchPipeline,
		scheduler:      scheduler,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}
	if itemCount, err := h.itemRepo.GetItemCount(); err == nil {
		health["items"] = itemCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{}

	if count, err := h.sourceRepo.GetSourceCount(); err == nil {
		stats["sources"] = count
	}
	if count, err := h.feedRepo.GetFeedCount(); err == nil {
		stats["feeds"] = count
	}
	if count, err := h.itemRepo.GetItemCount(); err == nil {
		stats["items"] = count
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListItems(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))
	section := c.Query("section")
	sourceSlug := c.Query("source")

	items, err := h.itemRepo.GetRecentItems(limit, section, sourceSlug)
	if err != nil {
		slog.Error("Database error", "operation", "list_items", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	payload := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		payload = append(payload, map[string]interface{}{
			"id":            item.ID,
			"source_id":     item.SourceID,
			"feed_id":       item.FeedID,
			"title":         item.Title,
			"url":           item.URL,
			"canonical_url": item.CanonicalURL,
			"stable_id":     item.StableID,
			"published_at":  item.PublishedAt.UTC().Format(time.RFC3339),
			"summary":       item.Summary,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"items": payload,
		"total": len(payload),
	})
}

func (h *Handler) ListFeeds(c *gin.Context) {
	feeds, err := h.feedRepo.GetAllFeeds()
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	payload := make([]map[string]interface{}, 0, len(feeds))
	for _, feed := range feeds {
		feedInfo := map[string]interface{}{
			"id":                feed.ID,
			"name":              feed.Name,
			"url":               feed.URL,
			"source":            feed.SourceSlug,
			"feed_type":         string(feed.FeedType),
			"section":           string(feed.Section),
			"enabled":           feed.Enabled,
			"timeout_seconds":   feed.TimeoutSeconds,
			"max_bytes":         feed.MaxBytes,
			"max_items_per_run": feed.MaxItemsPerRun,
			"max_age_days":      feed.MaxAgeDays,
			"last_error":        feed.LastError,
		}
		if feed.LastSuccessAt != nil {
			feedInfo["last_success_at"] = feed.LastSuccessAt.UTC().Format(time.RFC3339)
		}
		payload = append(payload, feedInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": payload,
		"total": len(payload),
	})
}

func (h *Handler) ListRuns(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))

	runs, err := h.runRepo.GetRecentFetchRuns(limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	payload := make([]map[string]interface{}, 0, len(runs))
	for _, run := range runs {
		runInfo := map[string]interface{}{
			"id":            run.ID,
			"feed_id":       run.FeedID,
			"started_at":    run.StartedAt.UTC().Format(time.RFC3339),
			"ok":            run.OK,
			"error":         run.Error,
			"items_new":     run.ItemsNew,
			"items_updated": run.ItemsUpdated,
		}
		if run.FinishedAt != nil {
			runInfo["finished_at"] = run.FinishedAt.UTC().Format(time.RFC3339)
		}
		if run.HTTPStatus != nil {
			runInfo["http_status"] = *run.HTTPStatus
		}
		if run.DurationMs != nil {
			runInfo["duration_ms"] = *run.DurationMs
		}
		payload = append(payload, runInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"runs":  payload,
		"total": len(payload),
	})
}

func (h *Handler) ListDarkHits(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))

	hits, err := h.darkRepo.GetRecentDarkHits(limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_dark_hits", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	payload := make([]map[string]interface{}, 0, len(hits))
	for _, hit := range hits {
		payload = append(payload, map[string]interface{}{
			"id":               hit.ID,
			"dark_source_id":   hit.DarkSourceID,
			"detected_at":      hit.DetectedAt.UTC().Format(time.RFC3339),
			"matched_keywords": hit.MatchedKeywords,
			"title":            hit.Title,
			"excerpt":          hit.Excerpt,
			"url":              hit.URL,
			"content_hash":     hit.ContentHash,
		})
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"hits":  payload,
		"total": len(payload),
	})
}

// TriggerIngest enqueues one ingestion task per enabled feed matching the
// optional selector. The work runs on the scheduler's worker pool.
func (h *Handler) TriggerIngest(c *gin.Context) {
	selector := c.Query("feed")

	feeds, err := h.feedRepo.GetEnabledFeeds(selector)
	if err != nil {
		slog.Error("Database error", "operation", "trigger_ingest", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if len(feeds) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No enabled feeds matched"})
		return
	}

	enqueued := make([]gin.H, 0, len(feeds))
	for _, feed := range feeds {
		task := tasks.NewIngestFeedTask(feed.ID, feed.Name, h.ingestPipeline)
		if err := h.scheduler.EnqueueTask(task); err != nil {
			slog.Error("Error enqueueing ingest task", "feed", feed.Name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to enqueue ingest task",
				"details": err.Error(),
			})
			return
		}
		enqueued = append(enqueued, gin.H{"id": task.ID, "type": task.Type, "feed": feed.Name})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Ingestion tasks enqueued successfully",
		"tasks":   enqueued,
	})
}

// TriggerIngestDark enqueues one watch task per enabled dark source
// matching the optional selector.
func (h *Handler) TriggerIngestDark(c *gin.Context) {
	selector := c.Query("source")

	sources, err := h.darkRepo.GetEnabledDarkSources(selector)
	if err != nil {
		slog.Error("Database error", "operation", "trigger_ingest_dark", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if len(sources) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No enabled dark sources matched"})
		return
	}

	enqueued := make([]gin.H, 0, len(sources))
	for _, source := range sources {
		task := tasks.NewWatchDarkSourceTask(source.ID, source.Name, h.watchPipeline)
		if err := h.scheduler.EnqueueTask(task); err != nil {
			slog.Error("Error enqueueing watch task", "source", source.Name, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to enqueue watch task",
				"details": err.Error(),
			})
			return
		}
		enqueued = append(enqueued, gin.H{"id": task.ID, "type": task.Type, "source": source.Name})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Watch tasks enqueued successfully",
		"tasks":   enqueued,
	})
}

func (h *Handler) TriggerPrune(c *gin.Context) {
	task := tasks.NewPruneItemsTask(h.ingestPipeline)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing prune task", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue prune task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Prune task enqueued successfully",
		"tasks":   []gin.H{{"id": task.ID, "type": task.Type}},
	})
}

func parseLimit(raw string) int {
	if raw == "" {
		return defaultListLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return defaultListLimit
	}
	if limit > 500 {
		return 500
	}
	return limit
}
