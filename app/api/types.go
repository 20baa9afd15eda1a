package api

import (
	"github.com/borealsec/intelfeed/app/database"
	"github.com/borealsec/intelfeed/app/ingest"
	"github.com/borealsec/intelfeed/app/tasks"
	"github.com/borealsec/intelfeed/app/watch"
)

type Handler struct {
	sourceRepo     database.SourceRepository
	feedRepo       database.FeedRepository
	itemRepo       database.ItemRepository
	runRepo        database.RunRepository
	darkRepo       database.DarkRepository
	ingestPipeline *ingest.Pipeline
	watchPipeline  *watch.Pipeline
	scheduler      tasks.TaskSchedulerInterface
}
