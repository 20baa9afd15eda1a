package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./intelfeed.db" description:"Path to the SQLite database file"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for mutating endpoints (optional)"`
	SeedsDir          string `long:"seeds-dir" env:"SEEDS_DIR" default:"./seeds" description:"Directory with additional source definition files"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"3" description:"Number of background workers for pipeline tasks"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"900" description:"Scheduler interval in seconds"`

	// Clear-web fetch configuration
	UserAgent     string `long:"user-agent" env:"INTEL_USER_AGENT" default:"borealsec-intel-bot/0.1 (+https://borealsec.io)" description:"User agent string for HTTP requests"`
	FetchTimeout  int    `long:"fetch-timeout" env:"INTEL_FETCH_TIMEOUT" default:"10" description:"Per-attempt feed fetch timeout in seconds (global ceiling)"`
	FetchMaxBytes int    `long:"fetch-max-bytes" env:"INTEL_FETCH_MAX_BYTES" default:"1500000" description:"Feed response size cap in bytes (global ceiling)"`
	FetchRetries  int    `long:"fetch-retries" env:"INTEL_FETCH_RETRIES" default:"3" description:"Total feed fetch attempts before giving up"`

	// Dark-watch fetch configuration
	DarkFetchTimeout  int    `long:"dark-fetch-timeout" env:"DARK_FETCH_TIMEOUT" default:"20" description:"Per-attempt dark source fetch timeout in seconds"`
	DarkFetchMaxBytes int    `long:"dark-fetch-max-bytes" env:"DARK_FETCH_MAX_BYTES" default:"1000000" description:"Dark source response size cap in bytes"`
	DarkFetchRetries  int    `long:"dark-fetch-retries" env:"DARK_FETCH_RETRIES" default:"2" description:"Total dark source fetch attempts before giving up"`
	DarkSocksAddr     string `long:"dark-socks-addr" env:"DARK_TOR_SOCKS_ADDR" default:"127.0.0.1:9050" description:"SOCKS5 proxy address used for onion hosts"`

	// Run options for one-shot commands
	FeedSelector   string `long:"feed" env:"FEED" description:"Feed id, source slug, or exact feed name for the ingest command"`
	SourceSelector string `long:"source" env:"SOURCE" description:"Dark source id, slug, or exact name for the ingest-dark command"`
	DryRun         bool   `long:"dry-run" env:"DRY_RUN" description:"Fetch and parse only, without writing items"`

	Debug bool `long:"debug" env:"DEBUG" description:"Enable debug logging"`

	Args struct {
		Command string `positional-arg-name:"command" description:"serve (default), ingest, ingest-dark, seed, or prune"`
	} `positional-args:"yes"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		Port:              raw.Port,
		APIAccessKey:      raw.APIAccessKey,
		SeedsDir:          raw.SeedsDir,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		UserAgent:         raw.UserAgent,
		FetchTimeout:      raw.FetchTimeout,
		FetchMaxBytes:     raw.FetchMaxBytes,
		FetchRetries:      raw.FetchRetries,
		DarkFetchTimeout:  raw.DarkFetchTimeout,
		DarkFetchMaxBytes: raw.DarkFetchMaxBytes,
		DarkFetchRetries:  raw.DarkFetchRetries,
		DarkSocksAddr:     raw.DarkSocksAddr,
		FeedSelector:      raw.FeedSelector,
		SourceSelector:    raw.SourceSelector,
		DryRun:            raw.DryRun,
		Command:           cmp.Or(raw.Args.Command, "serve"),
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// SetForTesting replaces the global configuration. Test helper only.
func SetForTesting(cfg *Cfg) {
	globalCfg = cfg
}
