package normalize

import (
	"testing"
	"time"
)

func TestHashTitle_NormalizesBeforeHashing(t *testing.T) {
	a := HashTitle("Critical   Patch\nReleased")
	b := HashTitle("Critical Patch Released")

	if a != b {
		t.Errorf("Expected equal hashes for equivalent titles: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(a))
	}
}

func TestBuildStableID_CanonicalURLWins(t *testing.T) {
	published := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	a := BuildStableID(1, "https://example.com/post", "Title A", published)
	b := BuildStableID(2, "https://example.com/post", "Title B", published.AddDate(0, 0, 5))

	// Same canonical URL means same identity regardless of feed, title
	// or publication date.
	if a != b {
		t.Errorf("Expected identical IDs for the same canonical URL: %s != %s", a, b)
	}
}

func TestBuildStableID_FallbackUsesFeedTitleAndDay(t *testing.T) {
	published := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	same := BuildStableID(1, "", "Weekly digest", published)
	sameDayLater := BuildStableID(1, "", "Weekly digest", published.Add(8*time.Hour))
	otherFeed := BuildStableID(2, "", "Weekly digest", published)
	otherTitle := BuildStableID(1, "", "Monthly digest", published)
	otherDay := BuildStableID(1, "", "Weekly digest", published.AddDate(0, 0, 1))

	if same != sameDayLater {
		t.Errorf("Expected same ID within the same UTC day")
	}
	if same == otherFeed {
		t.Errorf("Expected different ID for a different feed")
	}
	if same == otherTitle {
		t.Errorf("Expected different ID for a different title")
	}
	if same == otherDay {
		t.Errorf("Expected different ID for a different day")
	}
}

func TestBuildStableID_DayBucketIsUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	// 2024-03-01 02:00 +10:00 is 2024-02-29 16:00 UTC.
	local := time.Date(2024, 3, 1, 2, 0, 0, 0, loc)
	utc := time.Date(2024, 2, 29, 16, 0, 0, 0, time.UTC)

	a := BuildStableID(1, "", "Same item", local)
	b := BuildStableID(1, "", "Same item", utc)

	if a != b {
		t.Errorf("Expected identical IDs for the same UTC instant: %s != %s", a, b)
	}
}
