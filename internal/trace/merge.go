package trace

import (
	"strings"

	"github.com/linkshift/linkshift/internal/rules"
)

type Origin string

const (
	OriginRule   Origin = "rule"
	OriginGlobal Origin = "global"
)

type Replacement struct {
	rules.SearchReplace
	Origin Origin
}

type Static struct {
	rules.StaticParam
	Origin Origin
}

type Kept struct {
	rules.KeptParam
	Origin Origin
}

// Effective is the rule's own entries merged with the global settings, in
// the order they are applied.
type Effective struct {
	Replacements []Replacement
	Static       []Static
	Kept         []Kept
}

// Merge drops global search/replace entries a rule entry overrides and
// global static parameters whose key the rule sets itself, then appends the
// rule's entries. Kept parameters are rule first, global second.
func Merge(rule *rules.Rule, s Settings) Effective {
	var own []rules.SearchReplace
	var ownStatic []rules.StaticParam
	var ownKept []rules.KeptParam
	if rule != nil {
		own = rule.SearchAndReplace
		ownStatic = rule.StaticParams
		if rule.Redirect != nil {
			ownKept = rule.Redirect.KeptParams()
		}
	}

	var eff Effective
	for _, g := range s.SearchAndReplace {
		if !overridden(g, own) {
			eff.Replacements = append(eff.Replacements, Replacement{SearchReplace: g, Origin: OriginGlobal})
		}
	}
	for _, r := range own {
		eff.Replacements = append(eff.Replacements, Replacement{SearchReplace: r, Origin: OriginRule})
	}

	for _, g := range s.StaticParams {
		if !hasStaticKey(ownStatic, g.Key) {
			eff.Static = append(eff.Static, Static{StaticParam: g, Origin: OriginGlobal})
		}
	}
	for _, r := range ownStatic {
		eff.Static = append(eff.Static, Static{StaticParam: r, Origin: OriginRule})
	}

	for _, r := range ownKept {
		eff.Kept = append(eff.Kept, Kept{KeptParam: r, Origin: OriginRule})
	}
	for _, g := range s.KeptParams {
		eff.Kept = append(eff.Kept, Kept{KeptParam: g, Origin: OriginGlobal})
	}
	return eff
}

// overridden: same literal, or both entries case-insensitive and the
// literals equal ignoring case.
func overridden(g rules.SearchReplace, own []rules.SearchReplace) bool {
	for _, r := range own {
		if r.Search == g.Search {
			return true
		}
		if !r.CaseSensitive && !g.CaseSensitive && strings.EqualFold(r.Search, g.Search) {
			return true
		}
	}
	return false
}

func hasStaticKey(items []rules.StaticParam, key string) bool {
	for _, p := range items {
		if p.Key == key {
			return true
		}
	}
	return false
}
