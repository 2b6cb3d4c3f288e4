package server

import (
	"github.com/linkshift/linkshift/internal/config"
	"github.com/linkshift/linkshift/internal/match"
	"github.com/linkshift/linkshift/internal/policy"
	"github.com/linkshift/linkshift/internal/rules"
	"github.com/linkshift/linkshift/internal/trace"
)

// Resolution is the full answer for one request URL.
type Resolution struct {
	Match   match.Result
	Matched bool
	Trace   trace.Result
	Action  policy.Action
}

func (s *Snapshot) Resolve(rawURL string) Resolution {
	res, ok := s.Index.Find(rawURL)
	var rule *rules.Rule
	if ok {
		rule = res.Rule
	}
	tr := trace.Trace(rawURL, rule, s.DefaultDomain, s.Settings)
	return Resolution{
		Match:   res,
		Matched: ok,
		Trace:   tr,
		Action:  policy.Decide(policy.Outcome{Rule: rule, SearchFallback: tr.SearchFallback != ""}, s.AutoRedirect),
	}
}

// Fallback names the fallback that produced the URL, or "" when a rule
// matched.
func (r Resolution) Fallback() string {
	if r.Matched {
		return ""
	}
	if r.Trace.SearchFallback != "" {
		return config.FallbackSearch
	}
	return config.FallbackDomain
}

// AppliedIDs lists the global entries the trace applied, in order.
func (r Resolution) AppliedIDs() []string {
	if len(r.Trace.Applied) == 0 {
		return nil
	}
	ids := make([]string, len(r.Trace.Applied))
	for i, a := range r.Trace.Applied {
		ids[i] = a.ID
	}
	return ids
}
