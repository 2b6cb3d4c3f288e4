package match

import (
	"strings"

	"github.com/linkshift/linkshift/internal/normalize"
	"github.com/linkshift/linkshift/internal/rules"
)

type patternKind uint8

const (
	patternLiteral patternKind = iota
	// patternAny is "*" or ":name".
	patternAny
	// patternPrefix is "prefix*".
	patternPrefix
)

type pattern struct {
	kind  patternKind
	value string
}

// Prepared is a rule with its matcher parsed and normalized for one Config.
// Prepare it once and reuse it across requests; it is never modified.
type Prepared struct {
	Rule *rules.Rule
	// Domain is set for matchers naming a host; Host is its ASCII form.
	Domain bool
	Host   string

	segments []pattern
	query    normalize.Values
}

func Prepare(rule *rules.Rule, cfg Config) *Prepared {
	p := &Prepared{Rule: rule}
	if rule == nil {
		return p
	}

	matcher := strings.TrimSpace(rule.Matcher)
	matcher, rawQuery, _ := strings.Cut(matcher, "?")
	path := matcher

	if rules.IsDomainMatcher(matcher) {
		p.Domain = true
		if _, rest, ok := strings.Cut(matcher, "://"); ok {
			matcher = rest
		}
		host, rest, found := strings.Cut(matcher, "/")
		p.Host = normalize.Host(host)
		path = ""
		if found {
			path = "/" + rest
		}
	}

	opts := cfg.options()
	for _, seg := range normalize.Path(path, opts) {
		p.segments = append(p.segments, parsePattern(seg))
	}
	p.query = normalize.Query(rawQuery, opts)
	return p
}

func PrepareAll(rs []rules.Rule, cfg Config) []*Prepared {
	out := make([]*Prepared, len(rs))
	for i := range rs {
		out[i] = Prepare(&rs[i], cfg)
	}
	return out
}

func parsePattern(seg string) pattern {
	switch {
	case seg == "*" || strings.HasPrefix(seg, ":"):
		return pattern{kind: patternAny}
	case len(seg) > 1 && strings.HasSuffix(seg, "*"):
		return pattern{kind: patternPrefix, value: strings.TrimSuffix(seg, "*")}
	default:
		return pattern{kind: patternLiteral, value: seg}
	}
}

// SegmentMatch says how a single request segment satisfied a rule segment.
type SegmentMatch uint8

const (
	NoMatch SegmentMatch = iota
	Exact
	Wildcard
	PrefixApprox
)

func (p pattern) compare(seg string, allowPrefix bool) SegmentMatch {
	switch p.kind {
	case patternAny:
		return Wildcard
	case patternPrefix:
		if strings.HasPrefix(seg, p.value) {
			return Wildcard
		}
		return NoMatch
	}

	if p.value == seg {
		return Exact
	}
	if allowPrefix && p.value != "" && strings.HasPrefix(seg, p.value) {
		return PrefixApprox
	}
	return NoMatch
}

// Len is the number of path segments the matcher consumes.
func (p *Prepared) Len() int {
	return len(p.segments)
}
