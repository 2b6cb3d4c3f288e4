package match

import (
	"strings"

	"github.com/linkshift/linkshift/internal/config"
	"github.com/linkshift/linkshift/internal/normalize"
)

// SegmentPolicy decides whether a literal rule segment may match a longer
// request segment that starts with it.
type SegmentPolicy string

const (
	// SegmentPrefix lets "test-persist" match "test-persist-extra" for
	// partial and domain rules, at a lower weight than an exact match.
	SegmentPrefix SegmentPolicy = "prefix"
	// SegmentExact requires literal segments to be equal.
	SegmentExact SegmentPolicy = "exact"
)

type Weights struct {
	PathSegment int
	QueryPair   int
	Wildcard    int
	ExactMatch  int
	Domain      int
}

var DefaultWeights = Weights{
	PathSegment: 100,
	QueryPair:   50,
	Wildcard:    -10,
	ExactMatch:  200,
	Domain:      50,
}

type Config struct {
	Weights            Weights
	TrailingSlash      normalize.TrailingSlashPolicy
	CaseSensitivePath  bool
	CaseSensitiveQuery bool
	SegmentPolicy      SegmentPolicy
}

func DefaultConfig() Config {
	return Config{
		Weights:       DefaultWeights,
		TrailingSlash: normalize.TrailingSlashIgnore,
		SegmentPolicy: SegmentPrefix,
	}
}

// ConfigFrom builds a matcher configuration from the file settings. Zero
// weights keep their defaults.
func ConfigFrom(m config.MatchingConfig, caseSensitive bool) Config {
	cfg := DefaultConfig()
	cfg.CaseSensitivePath = caseSensitive
	cfg.CaseSensitiveQuery = m.CaseSensitiveQuery

	if policy := normalize.TrailingSlashPolicy(strings.ToLower(m.TrailingSlash)); policy != "" {
		cfg.TrailingSlash = policy
	}
	if policy := SegmentPolicy(strings.ToLower(m.SegmentPolicy)); policy != "" {
		cfg.SegmentPolicy = policy
	}

	w := m.Weights
	if w.PathSegment != 0 {
		cfg.Weights.PathSegment = w.PathSegment
	}
	if w.QueryPair != 0 {
		cfg.Weights.QueryPair = w.QueryPair
	}
	if w.Wildcard != 0 {
		cfg.Weights.Wildcard = w.Wildcard
	}
	if w.ExactMatch != 0 {
		cfg.Weights.ExactMatch = w.ExactMatch
	}
	if w.Domain != 0 {
		cfg.Weights.Domain = w.Domain
	}
	return cfg
}

func (c Config) options() normalize.Options {
	return normalize.Options{
		CaseSensitivePath:  c.CaseSensitivePath,
		CaseSensitiveQuery: c.CaseSensitiveQuery,
		TrailingSlash:      c.TrailingSlash,
	}
}
