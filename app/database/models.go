package database

import (
	"encoding/json"
	"time"
)

type FeedType string

const (
	FeedTypeRSS  FeedType = "rss"
	FeedTypeAtom FeedType = "atom"
	FeedTypeJSON FeedType = "json"
)

type Section string

const (
	SectionActive     Section = "active"
	SectionAdvisories Section = "advisories"
	SectionResearch   Section = "research"
	SectionSweden     Section = "sweden"
)

// Source is an origin organization that owns one or more feeds.
type Source struct {
	ID        int64
	Name      string
	Slug      string
	Homepage  string
	Tags      []string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Feed is a fetchable endpoint under a Source. The URL is globally unique
// and acts as the seeding dedup boundary. Per-feed limits are clamped
// against the global ceilings at run time.
type Feed struct {
	ID             int64
	SourceID       int64
	SourceName     string
	SourceSlug     string
	SourceEnabled  bool
	Name           string
	URL            string
	FeedType       FeedType
	Section        Section
	Enabled        bool
	TimeoutSeconds int
	MaxBytes       int
	MaxItemsPerRun int
	MaxAgeDays     int
	LastSuccessAt  *time.Time
	LastError      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Item is a deduplicated intelligence entry. StableID is unique across all
// items; CanonicalURL is the primary dedup key when present.
type Item struct {
	ID              int64
	SourceID        int64
	FeedID          int64
	Title           string
	NormalizedTitle string
	TitleHash       string
	URL             string
	CanonicalURL    string
	StableID        string
	PublishedAt     time.Time
	Summary         string
	RawPayload      map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FetchRun is the immutable audit record of one ingestion attempt.
type FetchRun struct {
	ID           int64
	FeedID       int64
	StartedAt    time.Time
	FinishedAt   *time.Time
	OK           bool
	Error        string
	HTTPStatus   *int
	ItemsNew     int
	ItemsUpdated int
	DurationMs   *int64
}

// DarkSource is a passively watched page on an anonymized network.
type DarkSource struct {
	ID            int64
	Name          string
	Slug          string
	Homepage      string
	URL           string
	Enabled       bool
	Tags          []string
	WatchKeywords string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DarkFetchRun audits one watch attempt for one dark source.
type DarkFetchRun struct {
	ID            int64
	DarkSourceID  int64
	StartedAt     time.Time
	FinishedAt    *time.Time
	OK            bool
	Error         string
	BytesReceived int
}

// DarkHit records a deduplicated keyword match. (DarkSourceID, ContentHash)
// is the dedup boundary.
type DarkHit struct {
	ID              int64
	DarkSourceID    int64
	DetectedAt      time.Time
	MatchedKeywords []string
	Title           string
	Excerpt         string
	URL             string
	ContentHash     string
	Raw             string
}

func marshalStrings(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unmarshalStrings(data string) []string {
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil
	}
	return values
}

func marshalPayload(payload map[string]any) string {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func unmarshalPayload(data string) map[string]any {
	var payload map[string]any
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil
	}
	return payload
}
