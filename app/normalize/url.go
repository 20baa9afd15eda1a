package normalize

import (
	"net/url"
	"sort"
	"strings"
)

// Tracking parameters dropped during canonicalization, in addition to any
// parameter whose key starts with "utm_".
var trackingParams = map[string]bool{
	"fbclid":  true,
	"gclid":   true,
	"mc_cid":  true,
	"mc_eid":  true,
	"ref":     true,
	"ref_src": true,
	"source":  true,
}

type queryParam struct {
	key   string
	value string
}

// CanonicalizeURL produces the deterministic canonical form used as the
// primary dedup key: lowercased scheme and host, "/" for an empty path,
// tracking parameters removed, remaining parameters sorted by lowercased
// key, fragment dropped. Inputs that are not absolute URLs are returned
// trimmed and otherwise untouched.
func CanonicalizeURL(raw string) string {
	if raw == "" {
		return ""
	}

	trimmed := strings.TrimSpace(raw)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return trimmed
	}

	params := parseQueryParams(parsed.RawQuery)
	filtered := params[:0]
	for _, param := range params {
		lowered := strings.ToLower(param.key)
		if strings.HasPrefix(lowered, "utm_") || trackingParams[lowered] {
			continue
		}
		filtered = append(filtered, param)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return strings.ToLower(filtered[i].key) < strings.ToLower(filtered[j].key)
	})

	parts := make([]string, 0, len(filtered))
	for _, param := range filtered {
		if param.value == "" {
			parts = append(parts, param.key)
		} else {
			parts = append(parts, param.key+"="+param.value)
		}
	}

	var b strings.Builder
	b.WriteString(strings.ToLower(parsed.Scheme))
	b.WriteString("://")
	b.WriteString(strings.ToLower(parsed.Host))
	if path := parsed.EscapedPath(); path != "" {
		b.WriteString(path)
	} else {
		b.WriteString("/")
	}
	if len(parts) > 0 {
		b.WriteString("?")
		b.WriteString(strings.Join(parts, "&"))
	}

	return b.String()
}

// parseQueryParams splits a raw query preserving order, blank values and
// duplicate keys. Percent escapes are decoded; undecodable pairs keep
// their raw form.
func parseQueryParams(rawQuery string) []queryParam {
	if rawQuery == "" {
		return nil
	}

	var params []queryParam
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		if decoded, err := url.QueryUnescape(key); err == nil {
			key = decoded
		}
		if decoded, err := url.QueryUnescape(value); err == nil {
			value = decoded
		}
		if key == "" {
			continue
		}
		params = append(params, queryParam{key: key, value: value})
	}
	return params
}
