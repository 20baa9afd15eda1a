package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/borealsec/intelfeed/app/api"
	"github.com/borealsec/intelfeed/app/cfg"
	"github.com/borealsec/intelfeed/app/database"
	"github.com/borealsec/intelfeed/app/fetch"
	"github.com/borealsec/intelfeed/app/ingest"
	"github.com/borealsec/intelfeed/app/seed"
	"github.com/borealsec/intelfeed/app/tasks"
	"github.com/borealsec/intelfeed/app/watch"
)

func main() {
	c, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if c == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if c.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting intelfeed", "version", c.Version, "command", c.Command)

	db, err := database.NewConnection(c.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", c.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", c.DBPath, "schema_version", version, "dirty", dirty)

	sourceRepo := database.NewSourceRepository(db)
	feedRepo := database.NewFeedRepository(db)
	itemRepo := database.NewItemRepository(db)
	runRepo := database.NewRunRepository(db)
	darkRepo := database.NewDarkRepository(db)

	fetcher := fetch.NewClient(c.UserAgent, c.FetchRetries)
	darkFetcher, err := fetch.NewDarkClient(c.UserAgent, c.DarkFetchRetries, c.DarkSocksAddr)
	if err != nil {
		slog.Error("Failed to initialize dark fetch client", "error", err)
		os.Exit(1)
	}

	ingestPipeline := ingest.NewPipeline(fetcher, feedRepo, itemRepo, runRepo)
	watchPipeline := watch.NewPipeline(darkFetcher, darkRepo)
	seeder := seed.NewSeeder(sourceRepo, feedRepo, darkRepo)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	switch c.Command {
	case "serve":
		runErr = runServe(ctx, c, sourceRepo, feedRepo, itemRepo, runRepo, darkRepo,
			ingestPipeline, watchPipeline, seeder)
	case "ingest":
		_, runErr = ingestPipeline.Run(ctx, c.FeedSelector, c.DryRun)
	case "ingest-dark":
		_, runErr = watchPipeline.Run(ctx, c.SourceSelector)
	case "seed":
		runErr = runSeed(c, seeder)
	case "prune":
		_, runErr = ingestPipeline.Prune(ctx, c.DryRun)
	default:
		runErr = fmt.Errorf("unknown command %q, expected serve, ingest, ingest-dark, seed, or prune", c.Command)
	}

	if runErr != nil {
		slog.Error("Command failed", "command", c.Command, "error", runErr)
		os.Exit(1)
	}
}

// runSeed applies the built-in tier-1 definitions plus any YAML definition
// files found in the seeds directory.
func runSeed(c *cfg.Cfg, seeder *seed.Seeder) error {
	sources := seed.Tier1Sources()
	var darkSources []seed.DarkSourceDef

	if c.SeedsDir != "" {
		extraSources, extraDark, err := seed.LoadDir(c.SeedsDir)
		if err != nil {
			return fmt.Errorf("failed to load seed definitions from %s: %w", c.SeedsDir, err)
		}
		sources = append(sources, extraSources...)
		darkSources = append(darkSources, extraDark...)
	}

	_, err := seeder.Run(sources, darkSources)
	return err
}

func runServe(ctx context.Context, c *cfg.Cfg,
	sourceRepo database.SourceRepository, feedRepo database.FeedRepository,
	itemRepo database.ItemRepository, runRepo database.RunRepository,
	darkRepo database.DarkRepository, ingestPipeline *ingest.Pipeline,
	watchPipeline *watch.Pipeline, seeder *seed.Seeder) error {

	// Seed on startup so a fresh database serves the tier-1 set without a
	// separate invocation. Re-seeding an up-to-date database is a no-op.
	if err := runSeed(c, seeder); err != nil {
		return err
	}

	slog.Info("Starting background scheduler", "workers", c.WorkerCount, "interval_seconds", c.SchedulerInterval)
	scheduler := tasks.NewScheduler(feedRepo, darkRepo, ingestPipeline, watchPipeline)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(sourceRepo, feedRepo, itemRepo, runRepo, darkRepo,
		ingestPipeline, watchPipeline, scheduler)
	router := api.NewServer(handler, c.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", c.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErrChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return nil
}
