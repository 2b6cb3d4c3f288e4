package rules

import (
	"strings"
	"time"
)

// Kind is the redirect strategy a rule applies once it matched.
type Kind string

const (
	KindWildcard Kind = "wildcard"
	KindPartial  Kind = "partial"
	KindDomain   Kind = "domain"
)

// Redirect is implemented by Wildcard, Partial and Domain. Each variant only
// carries the query handling it actually consults.
type Redirect interface {
	Kind() Kind
	TargetURL() string
	KeptParams() []KeptParam
}

// Wildcard replaces the whole request URL with Target. The original query is
// either forwarded verbatim or selectively restored through Kept.
type Wildcard struct {
	Target       string
	ForwardQuery bool
	Kept         []KeptParam
}

// Partial replaces the matched part of the request path with Target and
// keeps the surrounding path.
type Partial struct {
	Target       string
	DiscardQuery bool
	Kept         []KeptParam
}

// Domain swaps scheme and host for Target; path, query and fragment pass
// through unless DiscardQuery is set.
type Domain struct {
	Target       string
	DiscardQuery bool
	Kept         []KeptParam
}

func (Wildcard) Kind() Kind { return KindWildcard }
func (Partial) Kind() Kind  { return KindPartial }
func (Domain) Kind() Kind   { return KindDomain }

func (w Wildcard) TargetURL() string { return w.Target }
func (p Partial) TargetURL() string  { return p.Target }
func (d Domain) TargetURL() string   { return d.Target }

func (w Wildcard) KeptParams() []KeptParam { return w.Kept }
func (p Partial) KeptParams() []KeptParam  { return p.Kept }
func (d Domain) KeptParams() []KeptParam   { return d.Kept }

// KeptParam lets request parameters whose key matches KeyPattern survive a
// redirect that drops the query. When ValuePattern is set the value must
// match it and its first capture group (or whole match) is kept.
type KeptParam struct {
	ID           string
	KeyPattern   string
	ValuePattern string
	TargetKey    string
	SkipEncoding bool
}

// StaticParam is appended to every redirect URL.
type StaticParam struct {
	ID           string
	Key          string
	Value        string
	SkipEncoding bool
}

// SearchReplace substitutes every occurrence of the literal Search.
type SearchReplace struct {
	ID            string
	Search        string
	Replace       string
	CaseSensitive bool
}

type Rule struct {
	ID           string
	Matcher      string
	AutoRedirect bool
	InfoText     string
	CreatedAt    time.Time

	Redirect         Redirect
	StaticParams     []StaticParam
	SearchAndReplace []SearchReplace
}

func (r *Rule) Kind() Kind {
	if r == nil || r.Redirect == nil {
		return ""
	}
	return r.Redirect.Kind()
}

func (r *Rule) Target() string {
	if r == nil || r.Redirect == nil {
		return ""
	}
	return r.Redirect.TargetURL()
}

// IsDomainMatcher reports whether the matcher names a host instead of a path.
func (r *Rule) IsDomainMatcher() bool {
	return r != nil && IsDomainMatcher(r.Matcher)
}

func IsDomainMatcher(matcher string) bool {
	return matcher != "" && !strings.HasPrefix(matcher, "/")
}
