package normalize

import (
	"html"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<script(?:\s[^>]*)?>.*?</script\s*>`)
	styleBlockRe  = regexp.MustCompile(`(?is)<style(?:\s[^>]*)?>.*?</style\s*>`)

	// StrictPolicy allows no tags, attributes or protocols at all;
	// whatever survives is plain text.
	strictPolicy = bluemonday.StrictPolicy()
)

// SanitizeSummary reduces an untrusted HTML summary to plain text. Whole
// script and style blocks go first so their payloads cannot leak into the
// text even when the markup is malformed, then a strict sanitization pass
// strips every remaining tag, entities are unescaped and whitespace is
// collapsed.
func SanitizeSummary(markup string) string {
	if markup == "" {
		return ""
	}

	stripped := scriptBlockRe.ReplaceAllString(markup, " ")
	stripped = styleBlockRe.ReplaceAllString(stripped, " ")

	cleaned := strictPolicy.Sanitize(stripped)
	cleaned = html.UnescapeString(cleaned)

	return NormalizeTitle(cleaned)
}
