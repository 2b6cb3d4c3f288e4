package trace

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/linkshift/linkshift/internal/config"
	"github.com/linkshift/linkshift/internal/normalize"
	"github.com/linkshift/linkshift/internal/rules"
	"github.com/linkshift/linkshift/internal/search"
)

func baseStage(cur string, in *input) outcome {
	if in.rule == nil {
		return fallback(cur, in)
	}

	var next, desc string
	switch r := in.rule.Redirect.(type) {
	case rules.Wildcard:
		desc = "Applied Wildcard Rule"
		next = wildcardBase(r, in)
	case rules.Partial:
		desc = "Applied Partial/Path Rule"
		next = partialBase(r, in)
	case rules.Domain:
		desc = "Applied Domain Replacement Rule"
		next = swapDomain(in.original, targetOr(r.Target, in.domain))
	default:
		desc = "Applied Domain Replacement Rule"
		next = swapDomain(in.original, targetOr(in.rule.Target(), in.domain))
	}
	return outcome{url: next, steps: step(desc, cur, next, CategoryRule)}
}

func wildcardBase(r rules.Wildcard, in *input) string {
	if in.rule.IsDomainMatcher() {
		return swapDomain(in.original, targetOr(r.Target, in.domain))
	}
	if isAbsolute(r.Target) {
		return r.Target
	}
	if r.Target == "" {
		return in.domain
	}
	return in.domain + ensureSlash(r.Target)
}

func partialBase(r rules.Partial, in *input) string {
	tail := ensureSlash(in.parts.Tail())
	// rest is the query and fragment, appended after the path is rewritten.
	rest := in.parts
	rest.Origin, rest.Path = "", ""
	target := strings.Trim(r.Target, "/")

	if in.rule.IsDomainMatcher() {
		base := in.domain
		switch {
		case isAbsolute(r.Target):
			base = strings.TrimRight(r.Target, "/")
		case target != "":
			base += "/" + target
		}
		return base + tail
	}

	matcher, _, _ := strings.Cut(in.rule.Matcher, "?")
	matcher = strings.TrimRight(matcher, "/")
	if before, after, ok := locate(ensureSlash(in.parts.Path), matcher); ok {
		if isAbsolute(r.Target) {
			return strings.TrimRight(r.Target, "/") + after + rest.Tail()
		}
		return in.domain + before + "/" + target + after + rest.Tail()
	}

	// The matcher is not literally present (wildcard segments, or a prefix
	// match on a different spelling): add the target as a trailing segment.
	p := in.parts
	p.Origin = ""
	p.Path = strings.TrimRight(ensureSlash(p.Path), "/") + "/" + target
	return in.domain + p.Tail()
}

func targetOr(target, domain string) string {
	if strings.TrimSpace(target) == "" {
		return domain
	}
	return target
}

// fallback handles requests no rule matched. A search result ends the
// pipeline; global settings are not applied to it.
func fallback(cur string, in *input) outcome {
	s := in.settings
	if s.FallbackMode == config.FallbackSearch {
		extractor := s.Search
		if extractor == nil {
			extractor = search.New(nil, "")
		}
		term, ok := extractor.Extract(in.original)
		endpoint := term.Endpoint
		if endpoint == "" {
			endpoint = s.DefaultSearchURL
		}
		if ok && endpoint != "" {
			skip := s.DefaultSkipEncoding
			if term.SkipEncoding != nil {
				skip = *term.SkipEncoding
			}
			next := search.BuildURL(endpoint, term.Value, skip)
			return outcome{
				url:   next,
				steps: []Step{{Description: fmt.Sprintf("Smart Search Fallback: %q", term.Value), Before: cur, After: next, Changed: true, Category: CategoryRule}},
				done:  true,
			}
		}
	}

	next := swapDomain(in.original, in.domain)
	return outcome{url: next, steps: step("Fallback Generation (Default Redirect)", cur, next, CategoryRule)}
}

func discardsQuery(rule *rules.Rule) bool {
	if rule == nil {
		return false
	}
	switch r := rule.Redirect.(type) {
	case rules.Partial:
		return r.DiscardQuery
	case rules.Domain:
		return r.DiscardQuery
	}
	return false
}

func cleanupStage(cur string, in *input) outcome {
	if !discardsQuery(in.rule) {
		return outcome{url: cur}
	}
	next := stripQuery(cur)
	return outcome{url: next, steps: step("Discarded Query Parameters", cur, next, CategoryCleanup)}
}

func replaceStage(cur string, in *input) outcome {
	out := outcome{url: cur}
	for _, item := range in.merged.Replacements {
		if item.Search == "" {
			continue
		}
		expr := regexp.QuoteMeta(item.Search)
		if !item.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			continue
		}
		next := re.ReplaceAllLiteralString(out.url, item.Replace)
		if next == out.url {
			continue
		}

		desc := fmt.Sprintf("Search & Replace: %q -> %q", item.Search, item.Replace)
		category := CategoryRule
		if item.Origin == OriginGlobal {
			category = CategoryGlobal
			out.applied = append(out.applied, AppliedRule{
				ID:          item.ID,
				Kind:        AppliedSearch,
				Description: fmt.Sprintf("S&R: %q -> %q", item.Search, item.Replace),
			})
		}
		out.steps = append(out.steps, step(desc, out.url, next, category)...)
		out.url = next
	}
	return out
}

func queryStage(cur string, in *input) outcome {
	if in.rule == nil {
		return outcome{url: cur}
	}

	restore := discardsQuery(in.rule)
	if w, ok := in.rule.Redirect.(rules.Wildcard); ok {
		if w.ForwardQuery {
			next := appendQuery(cur, in.parts.Query)
			return outcome{url: next, steps: step("Forwarded Query Parameters (Wildcard)", cur, next, CategoryRule)}
		}
		restore = true
	}
	if !restore || len(in.merged.Kept) == 0 {
		return outcome{url: cur}
	}

	query, applied := keptQuery(in.parts.Query, in.merged.Kept)
	next := appendQuery(cur, query)
	return outcome{
		url:     next,
		steps:   step("Restored Kept Query Parameters", cur, next, CategoryRule),
		applied: applied,
	}
}

type queryPair struct {
	key, value string
}

func parseQuery(raw string) []queryPair {
	var pairs []queryPair
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		pairs = append(pairs, queryPair{key: unescape(k), value: unescape(v)})
	}
	return pairs
}

func unescape(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// keptQuery lets each original query occurrence be claimed by at most one
// kept entry, in entry order. Entries with an invalid pattern are skipped.
func keptQuery(rawQuery string, kept []Kept) (string, []AppliedRule) {
	pairs := parseQuery(rawQuery)
	claimed := make([]bool, len(pairs))
	var parts []string
	var applied []AppliedRule

	for _, k := range kept {
		if k.KeyPattern == "" {
			continue
		}
		keyRe, err := regexp.Compile(k.KeyPattern)
		if err != nil {
			continue
		}
		var valRe *regexp.Regexp
		if k.ValuePattern != "" {
			if valRe, err = regexp.Compile(k.ValuePattern); err != nil {
				continue
			}
		}

		matched := false
		for i, p := range pairs {
			if claimed[i] || !keyRe.MatchString(p.key) {
				continue
			}
			value := p.value
			if valRe != nil {
				m := valRe.FindStringSubmatch(value)
				if m == nil {
					continue
				}
				value = m[0]
				if len(m) > 1 {
					value = m[1]
				}
			}

			key := p.key
			if k.TargetKey != "" {
				key = k.TargetKey
			}
			if !k.SkipEncoding {
				value = normalize.EncodeComponent(value)
			}
			parts = append(parts, normalize.EncodeComponent(key)+"="+value)
			claimed[i] = true
			matched = true
		}

		if matched && k.Origin == OriginGlobal {
			desc := "Kept: " + k.KeyPattern
			if k.TargetKey != "" {
				desc += " -> " + k.TargetKey
			}
			applied = append(applied, AppliedRule{ID: k.ID, Kind: AppliedKept, Description: desc})
		}
	}
	return strings.Join(parts, "&"), applied
}

func staticStage(cur string, in *input) outcome {
	if len(in.merged.Static) == 0 {
		return outcome{url: cur}
	}

	var parts []string
	var applied []AppliedRule
	for _, p := range in.merged.Static {
		if p.Key == "" {
			continue
		}
		value := p.Value
		if !p.SkipEncoding {
			value = normalize.EncodeComponent(value)
		}
		parts = append(parts, normalize.EncodeComponent(p.Key)+"="+value)
		if p.Origin == OriginGlobal {
			applied = append(applied, AppliedRule{ID: p.ID, Kind: AppliedStatic, Description: "Static: " + p.Key + "=" + p.Value})
		}
	}

	next := appendQuery(cur, strings.Join(parts, "&"))
	return outcome{
		url:     next,
		steps:   step("Appended Static Query Parameters", cur, next, CategoryGlobal),
		applied: applied,
	}
}

func finalStage(cur string, _ *input) outcome {
	p := normalize.Split(cur)
	p.Path = normalize.CollapseSlashes(p.Path)
	next := p.String()
	return outcome{url: next, steps: step("Collapsed Repeated Slashes", cur, next, CategoryFinal)}
}
