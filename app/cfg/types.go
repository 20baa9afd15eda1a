package cfg

type Cfg struct {
	// Storage configuration
	DBPath string

	// Application configuration
	Port              string
	APIAccessKey      string
	SeedsDir          string
	WorkerCount       int
	SchedulerInterval int

	// Clear-web fetch configuration
	UserAgent     string
	FetchTimeout  int
	FetchMaxBytes int
	FetchRetries  int

	// Dark-watch fetch configuration
	DarkFetchTimeout  int
	DarkFetchMaxBytes int
	DarkFetchRetries  int
	DarkSocksAddr     string

	// Run options for one-shot commands
	FeedSelector   string
	SourceSelector string
	DryRun         bool

	// Application metadata
	Command string
	Debug   bool
	Version string
}
