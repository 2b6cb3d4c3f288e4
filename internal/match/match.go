package match

import (
	"sort"

	"github.com/linkshift/linkshift/internal/normalize"
	"github.com/linkshift/linkshift/internal/rules"
)

// Result describes the winning rule for a request.
type Result struct {
	Rule    *rules.Rule
	Score   float64
	Quality int
	Tier    Tier
	// Offset is the index of the first request segment the matcher
	// consumed, Length the number of segments it consumed.
	Offset     int
	Length     int
	ExtraQuery bool
}

type request struct {
	host     string
	segments []string
	query    normalize.Values
}

func parseRequest(raw string, cfg Config) request {
	r := normalize.ParseRequest(raw)
	opts := cfg.options()
	return request{
		host:     r.Host,
		segments: normalize.Path(r.Path, opts),
		query:    normalize.Query(r.RawQuery, opts),
	}
}

// candidate is one (rule, offset) pair that satisfied every constraint.
// Scores are kept in tenths of a point so an approximate segment (0.9) never
// needs float comparison.
type candidate struct {
	prepared   *Prepared
	offset     int
	tenths     int
	queryPairs int
	wildcards  int
	approx     bool
	extraQuery bool
	score      int
}

func (c candidate) fullPath(req request) bool {
	return c.offset == 0 && !c.approx && len(c.prepared.segments) == len(req.segments)
}

func (c candidate) result(req request) Result {
	q := quality(c, req)
	return Result{
		Rule:       c.prepared.Rule,
		Score:      float64(c.score) / 10,
		Quality:    q,
		Tier:       TierOf(q),
		Offset:     c.offset,
		Length:     len(c.prepared.segments),
		ExtraQuery: c.extraQuery,
	}
}

// Find returns the single best rule for rawURL.
func Find(rawURL string, prepared []*Prepared, cfg Config) (Result, bool) {
	req := parseRequest(rawURL, cfg)
	best, ok := bestOf(req, prepared, cfg)
	if !ok {
		return Result{}, false
	}
	return best.result(req), true
}

// FindRules prepares rs on the fly. Callers matching many requests against
// the same rules should use Prepare or an Index instead.
func FindRules(rawURL string, rs []rules.Rule, cfg Config) (Result, bool) {
	return Find(rawURL, PrepareAll(rs, cfg), cfg)
}

// FindAll lists every rule that matches rawURL at its first valid offset,
// highest score first.
func FindAll(rawURL string, prepared []*Prepared, cfg Config) []Result {
	req := parseRequest(rawURL, cfg)
	var out []Result
	for _, p := range prepared {
		if c, ok := evaluate(p, req, cfg, true); ok {
			out = append(out, c.result(req))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func bestOf(req request, prepared []*Prepared, cfg Config) (candidate, bool) {
	var best candidate
	found := false
	for _, p := range prepared {
		c, ok := evaluate(p, req, cfg, false)
		if !ok {
			continue
		}
		if !found || better(c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

// evaluate slides the matcher over every valid offset of the request and
// keeps the best one, or the first one when firstOnly is set.
func evaluate(p *Prepared, req request, cfg Config, firstOnly bool) (candidate, bool) {
	if p == nil || p.Rule == nil {
		return candidate{}, false
	}
	if p.Domain && (p.Host == "" || p.Host != req.host) {
		return candidate{}, false
	}
	if len(p.segments) > len(req.segments) {
		return candidate{}, false
	}

	pairs, ok := queryPairs(p.query, req.query)
	if !ok {
		return candidate{}, false
	}
	extra := hasExtraQuery(p.query, req.query)

	kind := p.Rule.Kind()
	allowPrefix := cfg.SegmentPolicy != SegmentExact && (kind == rules.KindPartial || kind == rules.KindDomain)

	var best candidate
	found := false
	for offset := 0; offset <= len(req.segments)-len(p.segments); offset++ {
		c, ok := matchAt(p, req.segments[offset:], allowPrefix)
		if !ok {
			continue
		}
		c.offset = offset
		c.queryPairs = pairs
		c.extraQuery = extra
		c.score = score(c, req, cfg.Weights)

		if firstOnly {
			return c, true
		}
		if !found || better(c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

func matchAt(p *Prepared, window []string, allowPrefix bool) (candidate, bool) {
	c := candidate{prepared: p}
	for i, pat := range p.segments {
		switch pat.compare(window[i], allowPrefix) {
		case Exact:
			c.tenths += 10
		case PrefixApprox:
			c.tenths += 9
			c.approx = true
		case Wildcard:
			c.wildcards++
		default:
			return candidate{}, false
		}
	}
	return c, true
}

// queryPairs checks that every required key carries every required value
// and counts the matched pairs.
func queryPairs(want, got normalize.Values) (int, bool) {
	pairs := 0
	for key, values := range want {
		if !got.Has(key) {
			return 0, false
		}
		for _, v := range values {
			if !got.Contains(key, v) {
				return 0, false
			}
			pairs++
		}
	}
	return pairs, true
}

func hasExtraQuery(want, got normalize.Values) bool {
	for key := range got {
		if !want.Has(key) {
			return true
		}
	}
	return false
}

func score(c candidate, req request, w Weights) int {
	s := c.tenths*w.PathSegment + 10*(c.queryPairs*w.QueryPair+c.wildcards*w.Wildcard)
	exact := c.fullPath(req) && len(c.prepared.query) == len(req.query)
	if exact {
		s += 10 * w.ExactMatch
	}
	if c.prepared.Domain {
		s += 10 * w.Domain
	}
	return s
}

// better reports whether a beats b. The chain ends on the rule ID so exactly
// one candidate wins regardless of rule order.
func better(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.offset != b.offset {
		return a.offset < b.offset
	}
	if a.tenths != b.tenths {
		return a.tenths > b.tenths
	}
	ra, rb := a.prepared.Rule, b.prepared.Rule
	if len(ra.Matcher) != len(rb.Matcher) {
		return len(ra.Matcher) > len(rb.Matcher)
	}
	if a.queryPairs != b.queryPairs {
		return a.queryPairs > b.queryPairs
	}
	if a.wildcards != b.wildcards {
		return a.wildcards < b.wildcards
	}
	if !ra.CreatedAt.Equal(rb.CreatedAt) {
		// A rule without a timestamp sorts before every dated rule.
		if ra.CreatedAt.IsZero() || rb.CreatedAt.IsZero() {
			return ra.CreatedAt.IsZero()
		}
		return ra.CreatedAt.Before(rb.CreatedAt)
	}
	return ra.ID < rb.ID
}
