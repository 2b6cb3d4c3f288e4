// Package trace builds the redirect URL for a request from the matched rule
// (or the fallback policy) and records every transformation it applied.
package trace

import (
	"github.com/linkshift/linkshift/internal/normalize"
	"github.com/linkshift/linkshift/internal/rules"
	"github.com/linkshift/linkshift/internal/search"
)

// DefaultDomain is used when neither the rule nor the settings name one.
const DefaultDomain = "https://thisisthenewurl.com"

type Category string

const (
	CategoryRule    Category = "rule"
	CategoryGlobal  Category = "global"
	CategoryCleanup Category = "cleanup"
	CategoryFinal   Category = "final"
)

type Step struct {
	Description string   `json:"description"`
	Before      string   `json:"urlBefore"`
	After       string   `json:"urlAfter"`
	Changed     bool     `json:"changed"`
	Category    Category `json:"type"`
}

type AppliedKind string

const (
	AppliedSearch AppliedKind = "search"
	AppliedStatic AppliedKind = "static"
	AppliedKept   AppliedKind = "kept"
)

// AppliedRule names a global setting entry that changed the URL.
type AppliedRule struct {
	ID          string      `json:"id"`
	Kind        AppliedKind `json:"type"`
	Description string      `json:"description"`
}

type Result struct {
	Original       string        `json:"originalUrl"`
	Final          string        `json:"finalUrl"`
	Steps          []Step        `json:"steps"`
	Applied        []AppliedRule `json:"appliedGlobalRules"`
	SearchFallback string        `json:"searchFallback,omitempty"`
}

// Generated is a Result without the step log.
type Generated struct {
	URL            string
	Applied        []AppliedRule
	SearchFallback string
}

type Settings struct {
	// FallbackMode is "domain" or "search" and only matters without a rule.
	FallbackMode        string
	DefaultSearchURL    string
	DefaultSkipEncoding bool
	Search              *search.Extractor

	SearchAndReplace []rules.SearchReplace
	StaticParams     []rules.StaticParam
	KeptParams       []rules.KeptParam
}

// input is the read-only state shared by every stage of one trace.
type input struct {
	original string
	parts    normalize.Parts
	rule     *rules.Rule
	domain   string
	settings Settings
	merged   Effective
}

// outcome is what a stage returns. A stage that leaves the URL untouched
// returns no steps.
type outcome struct {
	url     string
	steps   []Step
	applied []AppliedRule
	// done ends the pipeline after this stage.
	done bool
}

type stage func(cur string, in *input) outcome

var pipeline = []stage{
	baseStage,
	cleanupStage,
	replaceStage,
	queryStage,
	staticStage,
	finalStage,
}

// Trace resolves original against rule, which may be nil when nothing
// matched. It never panics; on an internal failure it returns a plain
// domain swap with no steps.
func Trace(original string, rule *rules.Rule, defaultDomain string, s Settings) (res Result) {
	domain := cleanDomain(defaultDomain)
	defer func() {
		if r := recover(); r != nil {
			res = Result{
				Original: original,
				Final:    swapDomain(original, domain),
				Steps:    []Step{},
				Applied:  []AppliedRule{},
			}
		}
	}()

	if rule != nil && rule.Redirect == nil {
		rule = nil
	}
	in := &input{
		original: original,
		parts:    normalize.Split(original),
		rule:     rule,
		domain:   domain,
		settings: s,
		merged:   Merge(rule, s),
	}

	res = Result{Original: original, Steps: []Step{}, Applied: []AppliedRule{}}
	cur := original
	for _, run := range pipeline {
		out := run(cur, in)
		res.Steps = append(res.Steps, out.steps...)
		res.Applied = append(res.Applied, out.applied...)
		cur = out.url
		if out.done {
			res.SearchFallback = cur
			break
		}
	}
	res.Final = cur
	return res
}

func Generate(original string, rule *rules.Rule, defaultDomain string, s Settings) Generated {
	res := Trace(original, rule, defaultDomain, s)
	return Generated{URL: res.Final, Applied: res.Applied, SearchFallback: res.SearchFallback}
}

func step(description, before, after string, category Category) []Step {
	if before == after {
		return nil
	}
	return []Step{{Description: description, Before: before, After: after, Changed: true, Category: category}}
}
