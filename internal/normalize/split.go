package normalize

import (
	"net/url"
	"strings"
)

// Parts is a URL split on its delimiters without any decoding, so every
// piece can be reassembled byte for byte.
type Parts struct {
	// Origin is "scheme://authority", empty for relative input.
	Origin      string
	Path        string
	Query       string
	HasQuery    bool
	Fragment    string
	HasFragment bool
}

// Split never fails. A leading '/', '?' or '#' marks a relative URL; input
// without a scheme is read as "host/path".
func Split(raw string) Parts {
	var p Parts
	rest := raw

	switch {
	case rest == "", strings.ContainsAny(rest[:1], "/?#"):
	default:
		scheme := "https://"
		if i := strings.Index(rest, "://"); i > 0 && !strings.ContainsAny(rest[:i], "/?#") {
			scheme = rest[:i+3]
			rest = rest[i+3:]
		}
		end := strings.IndexAny(rest, "/?#")
		if end < 0 {
			end = len(rest)
		}
		p.Origin = scheme + rest[:end]
		rest = rest[end:]
	}

	if i := strings.IndexByte(rest, '#'); i >= 0 {
		p.Fragment, p.HasFragment = rest[i+1:], true
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		p.Query, p.HasQuery = rest[i+1:], true
		rest = rest[:i]
	}
	p.Path = rest
	return p
}

// Tail is the path with its query and fragment, as written.
func (p Parts) Tail() string {
	var b strings.Builder
	b.WriteString(p.Path)
	if p.HasQuery {
		b.WriteByte('?')
		b.WriteString(p.Query)
	}
	if p.HasFragment {
		b.WriteByte('#')
		b.WriteString(p.Fragment)
	}
	return b.String()
}

func (p Parts) String() string {
	return p.Origin + p.Tail()
}

// LastSegment returns the last non-blank path segment, percent-decoded
// when possible.
func LastSegment(path string) string {
	parts := strings.Split(path, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if strings.TrimSpace(parts[i]) == "" {
			continue
		}
		decoded, err := url.PathUnescape(parts[i])
		if err != nil {
			return parts[i]
		}
		return decoded
	}
	return ""
}

var componentUnescapes = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeComponent escapes s for use as a single query key or value. Unlike
// url.QueryEscape it writes spaces as %20 and leaves !'()* alone.
func EncodeComponent(s string) string {
	return componentUnescapes.Replace(url.QueryEscape(s))
}
