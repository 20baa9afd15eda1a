package normalize

import (
	"html"
	"regexp"
	"strings"
)

var (
	horizontalWhitespaceRe = regexp.MustCompile(`[ \t\x{00a0}]+`)
	newlineSpacingRe       = regexp.MustCompile(`[ \t]*\n[ \t]*`)
	repeatedNewlinesRe     = regexp.MustCompile(`\n{3,}`)
	whitespaceRe           = regexp.MustCompile(`\s+`)
	tagRe                  = regexp.MustCompile(`<[^>]+>`)
	titleRe                = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title\s*>`)
	mainRe                 = regexp.MustCompile(`(?is)<main(?:\s[^>]*)?>(.*?)</main\s*>`)
	articleRe              = regexp.MustCompile(`(?is)<article(?:\s[^>]*)?>(.*?)</article\s*>`)

	zeroWidthReplacer = strings.NewReplacer(
		"\u200b", "",
		"\u200c", "",
		"\u200d", "",
		"\ufeff", "",
	)
)

// Tag blocks whose content never carries intelligence value. Removed
// wholesale, content included, before the generic tag strip.
var strippedBlockTags = []string{
	"script", "style", "noscript", "svg",
	"header", "footer", "nav", "aside",
}

var blockRes = buildBlockRes(strippedBlockTags)

func buildBlockRes(tags []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(tags))
	for _, tag := range tags {
		res = append(res, regexp.MustCompile(`(?is)<`+tag+`(?:\s[^>]*)?>.*?</`+tag+`\s*>`))
	}
	return res
}

// NormalizeText collapses horizontal whitespace runs to single spaces while
// keeping paragraph structure: line endings become \n, space around
// newlines is trimmed, and runs of three or more newlines collapse to two.
// Non-breaking and zero-width space characters are stripped.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = zeroWidthReplacer.Replace(s)
	s = horizontalWhitespaceRe.ReplaceAllString(s, " ")
	s = newlineSpacingRe.ReplaceAllString(s, "\n")
	s = repeatedNewlinesRe.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// NormalizeTitle collapses all whitespace, newlines included, to single
// spaces. Titles are single-line by definition.
func NormalizeTitle(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// ExtractTitle returns the normalized content of the first <title> element,
// or "Untitled" when the markup has none or it normalizes to empty.
func ExtractTitle(markup string) string {
	match := titleRe.FindStringSubmatch(markup)
	if match == nil {
		return "Untitled"
	}

	title := tagRe.ReplaceAllString(match[1], " ")
	title = NormalizeTitle(html.UnescapeString(title))
	if title == "" {
		return "Untitled"
	}
	return title
}

// ExtractMainContent prefers the first <main> region, then the first
// <article> region, then the full markup. Best-effort boilerplate
// reduction, not a guarantee.
func ExtractMainContent(markup string) string {
	if match := mainRe.FindStringSubmatch(markup); match != nil {
		return match[1]
	}
	if match := articleRe.FindStringSubmatch(markup); match != nil {
		return match[1]
	}
	return markup
}

// StripTags reduces markup to normalized plain text. Script, style,
// noscript and svg blocks and page-chrome blocks (header, footer, nav,
// aside) are removed with their content.
func StripTags(markup string) string {
	if markup == "" {
		return ""
	}

	text := html.UnescapeString(markup)
	for _, re := range blockRes {
		text = re.ReplaceAllString(text, " ")
	}
	text = tagRe.ReplaceAllString(text, " ")

	return NormalizeText(text)
}

// BuildExcerpt normalizes text and truncates it to limit runes, trailing
// whitespace trimmed and a single ellipsis appended when truncated.
func BuildExcerpt(text string, limit int) string {
	cleaned := NormalizeText(text)
	runes := []rune(cleaned)
	if len(runes) <= limit {
		return cleaned
	}
	return strings.TrimRight(string(runes[:limit-1]), " \t\n") + "…"
}
