package normalize

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// Request is a request URL split into the parts the matcher compares.
// Path and RawQuery keep their original escaping.
type Request struct {
	Host     string
	Path     string
	RawQuery string
}

// ParseRequest accepts an absolute URL, a scheme-less "host/path" string or a
// bare path. Input that starts with '/' or does not parse as a URL is a
// bare path; "//a/b" is the path "//a/b", not the host "a".
func ParseRequest(raw string) Request {
	if strings.HasPrefix(raw, "/") {
		return barePath(raw)
	}
	full := raw
	if !strings.Contains(raw, "://") {
		full = "http://" + raw
	}

	u, err := url.Parse(full)
	if err != nil {
		return barePath(raw)
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return Request{
		Host:     Host(u.Host),
		Path:     path,
		RawQuery: u.RawQuery,
	}
}

func barePath(raw string) Request {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	path, query, _ := strings.Cut(raw, "?")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return Request{Path: path, RawQuery: query}
}

// Host lower-cases a host, drops any port and converts it to its ASCII
// (punycode) form. Hosts IDNA rejects are returned lower-cased.
func Host(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return host
	}
	return ascii
}
