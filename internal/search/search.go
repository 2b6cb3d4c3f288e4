// Package search extracts a search term from a URL that no rule matched so
// the request can be sent to a site search instead of a dead link.
package search

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/linkshift/linkshift/internal/config"
	"github.com/linkshift/linkshift/internal/normalize"
)

// Rule is one smart-search candidate. Rules whose PathPrefix does not
// contain the request path are skipped; a Rule without Pattern uses the
// last path segment as the term.
type Rule struct {
	Pattern      string
	Order        int
	Endpoint     string
	PathPrefix   string
	SkipEncoding *bool
}

// Term is the outcome of a successful extraction. Endpoint and SkipEncoding
// are only set when the winning rule overrides them.
type Term struct {
	Value        string
	Endpoint     string
	SkipEncoding *bool
}

type compiled struct {
	Rule
	re *regexp.Regexp
}

// Extractor holds compiled rules and is safe for concurrent use.
type Extractor struct {
	rules  []compiled
	legacy *regexp.Regexp
}

// New compiles rs and the legacy pattern. Patterns that do not compile are
// dropped, and a rule that loses its pattern is dropped with it.
func New(rs []Rule, legacyPattern string) *Extractor {
	ordered := make([]Rule, len(rs))
	copy(ordered, rs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Order < ordered[j].Order
	})
	sort.SliceStable(ordered, func(i, j int) bool {
		return hasPattern(ordered[i]) && !hasPattern(ordered[j])
	})

	e := &Extractor{}
	for _, r := range ordered {
		c := compiled{Rule: r}
		if hasPattern(r) {
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				continue
			}
			c.re = re
		}
		e.rules = append(e.rules, c)
	}
	if strings.TrimSpace(legacyPattern) != "" {
		if re, err := regexp.Compile(legacyPattern); err == nil {
			e.legacy = re
		}
	}
	return e
}

func FromConfig(s config.Settings) *Extractor {
	rs := make([]Rule, len(s.SmartSearchRules))
	for i, r := range s.SmartSearchRules {
		rs[i] = Rule{
			Pattern:      r.Pattern,
			Order:        r.Order,
			Endpoint:     r.SearchURL,
			PathPrefix:   r.PathPattern,
			SkipEncoding: r.SkipEncoding,
		}
	}
	return New(rs, s.SmartSearchPattern)
}

// Extract is New followed by a single extraction.
func Extract(rawURL string, rs []Rule, legacyPattern string) (Term, bool) {
	return New(rs, legacyPattern).Extract(rawURL)
}

// Extract returns the first non-empty term. Rules run in order, then the
// legacy pattern, then the last path segment.
func (e *Extractor) Extract(rawURL string) (Term, bool) {
	parts := normalize.Split(rawURL)
	tail := strings.ToLower(parts.Tail())
	if !strings.HasPrefix(tail, "/") {
		tail = "/" + tail
	}

	for _, r := range e.rules {
		if !withinPrefix(tail, r.PathPrefix) {
			continue
		}
		var term string
		if r.re != nil {
			term = capture(r.re, rawURL)
		} else {
			term = normalize.LastSegment(parts.Path)
		}
		if term != "" {
			return Term{Value: term, Endpoint: r.Endpoint, SkipEncoding: r.SkipEncoding}, true
		}
	}

	if e.legacy != nil {
		if term := capture(e.legacy, rawURL); term != "" {
			return Term{Value: term}, true
		}
	}

	if term := normalize.LastSegment(parts.Path); term != "" {
		return Term{Value: term}, true
	}
	return Term{}, false
}

// withinPrefix requires the prefix to end at a segment boundary of the
// lower-cased path, query and fragment.
func withinPrefix(tail, prefix string) bool {
	if prefix == "" {
		return true
	}
	prefix = strings.ToLower(prefix)
	if !strings.HasPrefix(tail, prefix) {
		return false
	}
	if len(tail) == len(prefix) {
		return true
	}
	switch tail[len(prefix)] {
	case '/', '?', '#':
		return true
	}
	return false
}

func capture(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 || m[1] == "" {
		return ""
	}
	decoded, err := url.PathUnescape(m[1])
	if err != nil {
		return m[1]
	}
	return decoded
}

func hasPattern(r Rule) bool {
	return strings.TrimSpace(r.Pattern) != ""
}

// BuildURL appends the term to the search endpoint.
func BuildURL(endpoint, term string, skipEncoding bool) string {
	if !skipEncoding {
		term = normalize.EncodeComponent(term)
	}
	return endpoint + term
}
