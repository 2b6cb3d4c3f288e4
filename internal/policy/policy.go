package policy

import "github.com/linkshift/linkshift/internal/rules"

type Action string

const (
	// ActionRedirect sends the client straight to the new URL.
	ActionRedirect Action = "redirect"
	// ActionInterstitial shows the new URL and lets the user follow it.
	ActionInterstitial Action = "interstitial"
	// ActionSearch redirects to a search fallback.
	ActionSearch Action = "search"
)

// Outcome summarizes the resolution the decision is based on.
type Outcome struct {
	Rule           *rules.Rule
	SearchFallback bool
}

// Decide returns the action for a resolved request. A rule redirects
// immediately when it or the global settings enable auto-redirect; without a
// rule only the global setting does.
func Decide(o Outcome, globalAutoRedirect bool) Action {
	auto := globalAutoRedirect
	if o.Rule != nil && o.Rule.AutoRedirect {
		auto = true
	}
	if !auto {
		return ActionInterstitial
	}
	if o.SearchFallback {
		return ActionSearch
	}
	return ActionRedirect
}

// Redirects reports whether the action answers with an HTTP redirect.
func (a Action) Redirects() bool {
	return a == ActionRedirect || a == ActionSearch
}
