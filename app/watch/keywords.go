package watch

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/borealsec/intelfeed/app/normalize"
)

// contentHashWindow bounds how much normalized text feeds the content
// hash. Pages differing only past this offset dedupe to the same hit.
const contentHashWindow = 2000

// ParseWatchKeywords splits a comma-separated keyword list, lowercasing
// and trimming each entry and dropping empties.
func ParseWatchKeywords(raw string) []string {
	var keywords []string
	for _, part := range strings.Split(raw, ",") {
		keyword := strings.ToLower(strings.TrimSpace(part))
		if keyword != "" {
			keywords = append(keywords, keyword)
		}
	}
	return keywords
}

// MatchKeywords returns, in keyword-list order and deduplicated, every
// keyword appearing as a substring of the lowercased text.
func MatchKeywords(text, rawKeywords string) []string {
	lowered := strings.ToLower(text)
	seen := make(map[string]bool)

	var matches []string
	for _, keyword := range ParseWatchKeywords(rawKeywords) {
		if seen[keyword] {
			continue
		}
		if strings.Contains(lowered, keyword) {
			seen[keyword] = true
			matches = append(matches, keyword)
		}
	}
	return matches
}

// BuildContentHash derives the hit dedup key from the source URL, page
// title, a bounded window of normalized text and the matched keywords.
func BuildContentHash(url, title, text string, matched []string) string {
	normalized := normalize.NormalizeText(text)
	if runes := []rune(normalized); len(runes) > contentHashWindow {
		normalized = string(runes[:contentHashWindow])
	}

	payload := strings.Join([]string{url, title, normalized, strings.Join(matched, ",")}, "\n")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
