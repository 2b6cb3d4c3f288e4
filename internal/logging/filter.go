package logging

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// filterEnv is what a filter expression can see of a decision.
type filterEnv struct {
	Tier         string  `expr:"tier"`
	Quality      int     `expr:"quality"`
	Score        float64 `expr:"score"`
	RuleID       string  `expr:"ruleId"`
	RedirectType string  `expr:"redirectType"`
	Fallback     string  `expr:"fallback"`
	Action       string  `expr:"action"`
	Host         string  `expr:"host"`
	Path         string  `expr:"path"`
	Status       int     `expr:"status"`
	RateLimited  bool    `expr:"rateLimited"`
}

func (filterEnv) HasPrefix(s, prefix string) bool {
	return strings.HasPrefix(s, prefix)
}

// Filter is a compiled boolean expression such as
// `tier != "green" || fallback == "search"`.
type Filter struct {
	source  string
	program *vm.Program
}

// NewFilter compiles source. An empty source yields a nil filter, which
// accepts every decision.
func NewFilter(source string) (*Filter, error) {
	if strings.TrimSpace(source) == "" {
		return nil, nil
	}
	program, err := expr.Compile(source, expr.Env(filterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter expression: %w", err)
	}
	return &Filter{source: source, program: program}, nil
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}

func (f *Filter) Allow(d Decision) (bool, error) {
	if f == nil {
		return true, nil
	}
	env := filterEnv{
		Tier:         d.Tier,
		Quality:      d.Quality,
		Score:        d.Score,
		RuleID:       d.RuleID,
		RedirectType: d.RedirectType,
		Fallback:     d.Fallback,
		Action:       d.Action,
		Host:         d.Host,
		Path:         d.Path,
		Status:       d.StatusCode,
		RateLimited:  d.RateLimited,
	}
	result, err := vm.Run(f.program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate filter expression: %w", err)
	}
	return result.(bool), nil
}
