package normalize

import (
	"net/url"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

type TrailingSlashPolicy string

const (
	// TrailingSlashIgnore treats "/a/" and "/a" as the same path.
	TrailingSlashIgnore TrailingSlashPolicy = "ignore"
	// TrailingSlashStrict keeps a trailing slash as an empty final segment.
	TrailingSlashStrict TrailingSlashPolicy = "strict"
)

type Options struct {
	CaseSensitivePath  bool
	CaseSensitiveQuery bool
	TrailingSlash      TrailingSlashPolicy
}

// Values maps a decoded query key to its decoded values, sorted ascending.
type Values map[string][]string

func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}

func (v Values) Contains(key, value string) bool {
	values, ok := v[key]
	if !ok {
		return false
	}
	i := sort.SearchStrings(values, value)
	return i < len(values) && values[i] == value
}

// Query parses a raw query string (with or without the leading '?').
// Repeated keys keep every value. Undecodable escapes are kept raw.
func Query(raw string, opts Options) Values {
	raw = strings.TrimPrefix(raw, "?")
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}

	out := Values{}
	if raw == "" {
		return out
	}

	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = unescapeQuery(key)
		value = unescapeQuery(value)
		if !opts.CaseSensitiveQuery {
			key = strings.ToLower(key)
			value = strings.ToLower(value)
		}
		out[key] = append(out[key], value)
	}

	for _, values := range out {
		sort.Strings(values)
	}
	return out
}

// Segment percent-decodes a single path segment and applies NFC so that
// composed and decomposed forms compare equal.
func Segment(raw string) string {
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		decoded = raw
	}
	return norm.NFC.String(decoded)
}

func unescapeQuery(raw string) string {
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return norm.NFC.String(decoded)
}
