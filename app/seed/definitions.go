package seed

// SourceDef declares a source and its feeds for idempotent seeding.
type SourceDef struct {
	Name     string    `yaml:"name"`
	Slug     string    `yaml:"slug"`
	Homepage string    `yaml:"homepage"`
	Tags     []string  `yaml:"tags"`
	Enabled  *bool     `yaml:"enabled"`
	Feeds    []FeedDef `yaml:"feeds"`
}

type FeedDef struct {
	Name           string `yaml:"name"`
	URL            string `yaml:"url"`
	FeedType       string `yaml:"feed_type"`
	Section        string `yaml:"section"`
	Enabled        *bool  `yaml:"enabled"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxBytes       int    `yaml:"max_bytes"`
	MaxAgeDays     int    `yaml:"max_age_days"`
	MaxItemsPerRun int    `yaml:"max_items_per_run"`
}

// DarkSourceDef declares a watched dark source.
type DarkSourceDef struct {
	Name          string   `yaml:"name"`
	Slug          string   `yaml:"slug"`
	Homepage      string   `yaml:"homepage"`
	URL           string   `yaml:"url"`
	Tags          []string `yaml:"tags"`
	Enabled       *bool    `yaml:"enabled"`
	WatchKeywords string   `yaml:"watch_keywords"`
}

// DisabledFeedURLs lists feed endpoints known to be gone; seeding disables
// any enabled feed still pointing at one.
var DisabledFeedURLs = []string{}

// Tier1Sources returns the built-in tier-1 source set.
func Tier1Sources() []SourceDef {
	return []SourceDef{
		{
			Name:     "CERT-SE",
			Slug:     "cert-se",
			Homepage: "https://www.cert.se/",
			Tags:     []string{"government", "sweden"},
			Feeds: []FeedDef{
				{Name: "CERT-SE Feed", URL: "https://www.cert.se/feed/", Section: "sweden"},
			},
		},
		{
			Name:     "CISA",
			Slug:     "cisa",
			Homepage: "https://www.cisa.gov/",
			Tags:     []string{"government", "us"},
			Feeds: []FeedDef{
				{Name: "CISA Alerts", URL: "https://www.cisa.gov/uscert/ncas/alerts.xml", Section: "active"},
			},
		},
		{
			Name:     "MSRC",
			Slug:     "msrc",
			Homepage: "https://msrc.microsoft.com/",
			Tags:     []string{"vendor", "microsoft"},
			Feeds: []FeedDef{
				{Name: "MSRC Security Updates", URL: "https://api.msrc.microsoft.com/update-guide/rss", Section: "advisories", MaxAgeDays: 90},
			},
		},
		{
			Name:     "Cisco",
			Slug:     "cisco",
			Homepage: "https://sec.cloudapps.cisco.com/security/center/publicationListing.x",
			Tags:     []string{"vendor", "network"},
			Feeds: []FeedDef{
				{Name: "Cisco Security Advisories", URL: "https://sec.cloudapps.cisco.com/security/center/psirtrss20/CiscoSecurityAdvisory.xml", Section: "advisories"},
			},
		},
		{
			Name:     "Red Hat",
			Slug:     "red-hat",
			Homepage: "https://access.redhat.com/security",
			Tags:     []string{"vendor", "linux"},
			Feeds: []FeedDef{
				{Name: "Red Hat CVE Feed", URL: "https://access.redhat.com/security/data/metrics/recently-published-cve.rss", Section: "advisories"},
			},
		},
		{
			Name:     "Debian",
			Slug:     "debian",
			Homepage: "https://www.debian.org/security/",
			Tags:     []string{"vendor", "linux"},
			Feeds: []FeedDef{
				{Name: "Debian Security Advisories", URL: "https://www.debian.org/security/dsa.en.rdf", Section: "advisories"},
			},
		},
		{
			Name:     "SANS ISC",
			Slug:     "sans-isc",
			Homepage: "https://isc.sans.edu/",
			Tags:     []string{"research"},
			Feeds: []FeedDef{
				{Name: "SANS ISC Diaries", URL: "https://isc.sans.edu/rssfeed.xml", Section: "research"},
			},
		},
		{
			Name:     "ZDI",
			Slug:     "zdi",
			Homepage: "https://www.zerodayinitiative.com/",
			Tags:     []string{"research", "threat-intel"},
			Feeds: []FeedDef{
				{Name: "ZDI Blog", URL: "https://www.zerodayinitiative.com/blog?format=rss", Section: "research"},
			},
		},
	}
}
