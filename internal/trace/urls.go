package trace

import (
	"strings"

	"github.com/linkshift/linkshift/internal/normalize"
)

// cleanDomain returns "scheme://host" without a trailing slash.
func cleanDomain(domain string) string {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	if domain == "" {
		return DefaultDomain
	}
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	return domain
}

func isAbsolute(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}

// swapDomain keeps path, query and fragment of raw and replaces everything
// before the path with domain.
func swapDomain(raw, domain string) string {
	p := normalize.Split(raw)
	p.Origin = cleanDomain(domain)
	p.Path = normalize.CollapseSlashes(p.Path)
	if p.Path != "" && !strings.HasPrefix(p.Path, "/") {
		p.Path = "/" + p.Path
	}
	return p.String()
}

// stripQuery removes the query and keeps a fragment that followed it.
func stripQuery(raw string) string {
	p := normalize.Split(raw)
	p.Query, p.HasQuery = "", false
	return p.String()
}

// appendQuery adds query (without '?') before any fragment of raw.
func appendQuery(raw, query string) string {
	if query == "" {
		return raw
	}
	base, hash, hasHash := strings.Cut(raw, "#")
	switch {
	case strings.HasSuffix(base, "?"), strings.HasSuffix(base, "&"):
		base += query
	case strings.Contains(base, "?"):
		base += "&" + query
	default:
		base += "?" + query
	}
	if hasHash {
		base += "#" + hash
	}
	return base
}

func ensureSlash(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

// locate finds matcher in the percent-decoded form of path, ignoring case,
// and returns the raw text before and after it. The match starts at a '/'.
func locate(path, matcher string) (before, after string, ok bool) {
	want := decodeLoose(matcher)
	if want == "" {
		return "", "", false
	}
	limit := 3*len(want) + 3

	for i := 0; i < len(path); i++ {
		if path[i] != '/' {
			continue
		}
		var got []byte
		j := i
		for {
			if strings.EqualFold(string(got), want) {
				return path[:i], path[j:], true
			}
			if j >= len(path) || len(got) > limit {
				break
			}
			if b, ok := unhex(path, j); ok {
				got = append(got, b)
				j += 3
				continue
			}
			got = append(got, path[j])
			j++
		}
	}
	return "", "", false
}

func decodeLoose(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		if b, ok := unhex(s, i); ok {
			out = append(out, b)
			i += 3
			continue
		}
		out = append(out, s[i])
		i++
	}
	return string(out)
}

// unhex decodes the escape "%XX" at s[i].
func unhex(s string, i int) (byte, bool) {
	if s[i] != '%' || i+2 >= len(s) {
		return 0, false
	}
	hi, ok1 := hexVal(s[i+1])
	lo, ok2 := hexVal(s[i+2])
	if !ok1 || !ok2 {
		return 0, false
	}
	return hi<<4 | lo, true
}

func hexVal(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
