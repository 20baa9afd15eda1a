package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// HashTitle returns the hex sha256 digest of the normalized title.
func HashTitle(title string) string {
	return sha256Hex(NormalizeTitle(title))
}

// BuildStableID computes the content-derived identity of an ingested item.
// A non-empty canonical URL is the identity source on its own; otherwise
// the item is identified by feed, title hash and UTC day bucket, accepting
// that two distinct same-title items on the same day collide.
func BuildStableID(feedID int64, canonicalURL, normalizedTitle string, publishedAt time.Time) string {
	raw := canonicalURL
	if raw == "" {
		dayBucket := publishedAt.UTC().Format("20060102")
		raw = fmt.Sprintf("%d:%s:%s", feedID, HashTitle(normalizedTitle), dayBucket)
	}
	return sha256Hex(raw)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
