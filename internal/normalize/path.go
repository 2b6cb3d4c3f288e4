package normalize

import "strings"

// Path splits a URL path into decoded segments. Empty segments produced by
// repeated slashes are dropped; the root path yields no segments.
func Path(raw string, opts Options) []string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" || raw == "/" {
		return nil
	}

	trailing := strings.HasSuffix(raw, "/")
	parts := strings.Split(raw, "/")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		seg := Segment(part)
		if !opts.CaseSensitivePath {
			seg = strings.ToLower(seg)
		}
		segments = append(segments, seg)
	}

	if trailing && opts.TrailingSlash == TrailingSlashStrict && len(segments) > 0 {
		segments = append(segments, "")
	}
	if len(segments) == 0 {
		return nil
	}
	return segments
}

// CollapseSlashes replaces runs of '/' with a single slash.
func CollapseSlashes(path string) string {
	if !strings.Contains(path, "//") {
		return path
	}
	var b strings.Builder
	b.Grow(len(path))
	prev := byte(0)
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '/' && prev == '/' {
			continue
		}
		b.WriteByte(c)
		prev = c
	}
	return b.String()
}
