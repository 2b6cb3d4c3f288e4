package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/linkshift/linkshift/internal/config"
)

// CompileAll converts every configured rule, failing on the first rule that
// cannot be honored as written.
func CompileAll(cfg *config.Config) ([]Rule, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	out := make([]Rule, 0, len(cfg.Rules))
	for _, raw := range cfg.Rules {
		compiled, err := Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", raw.ID, err)
		}
		out = append(out, compiled)
	}
	return out, nil
}

func Compile(raw config.Rule) (Rule, error) {
	redirect, err := compileRedirect(raw)
	if err != nil {
		return Rule{}, err
	}

	var created time.Time
	if raw.CreatedAt != "" {
		created, err = time.Parse(time.RFC3339, raw.CreatedAt)
		if err != nil {
			return Rule{}, fmt.Errorf("createdAt: %w", err)
		}
	}

	rule := Rule{
		ID:               raw.ID,
		Matcher:          strings.TrimSpace(raw.Matcher),
		AutoRedirect:     raw.AutoRedirect,
		InfoText:         raw.InfoText,
		CreatedAt:        created,
		Redirect:         redirect,
		StaticParams:     StaticParamsFromConfig(raw.StaticQueryParams),
		SearchAndReplace: SearchReplaceFromConfig(raw.SearchAndReplace),
	}
	if err := rule.Validate(); err != nil {
		return Rule{}, err
	}
	return rule, nil
}

func compileRedirect(raw config.Rule) (Redirect, error) {
	kept := KeptParamsFromConfig(raw.KeptQueryParams)

	switch Kind(raw.RedirectType) {
	case KindWildcard:
		if raw.ForwardQueryParams && raw.DiscardQueryParams {
			return nil, ErrForwardAndDiscard
		}
		return Wildcard{Target: raw.TargetURL, ForwardQuery: raw.ForwardQueryParams, Kept: kept}, nil
	case KindPartial, "":
		if raw.ForwardQueryParams {
			return nil, ErrForwardNotSupported
		}
		return Partial{Target: raw.TargetURL, DiscardQuery: raw.DiscardQueryParams, Kept: kept}, nil
	case KindDomain:
		if raw.ForwardQueryParams {
			return nil, ErrForwardNotSupported
		}
		return Domain{Target: raw.TargetURL, DiscardQuery: raw.DiscardQueryParams, Kept: kept}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownRedirectType, raw.RedirectType)
	}
}

func KeptParamsFromConfig(raw []config.KeptParam) []KeptParam {
	if len(raw) == 0 {
		return nil
	}
	out := make([]KeptParam, len(raw))
	for i, p := range raw {
		out[i] = KeptParam{
			ID:           p.ID,
			KeyPattern:   p.KeyPattern,
			ValuePattern: p.ValuePattern,
			TargetKey:    strings.TrimSpace(p.TargetKey),
			SkipEncoding: p.SkipEncoding,
		}
	}
	return out
}

func StaticParamsFromConfig(raw []config.StaticParam) []StaticParam {
	if len(raw) == 0 {
		return nil
	}
	out := make([]StaticParam, len(raw))
	for i, p := range raw {
		out[i] = StaticParam{ID: p.ID, Key: p.Key, Value: p.Value, SkipEncoding: p.SkipEncoding}
	}
	return out
}

func SearchReplaceFromConfig(raw []config.SearchReplace) []SearchReplace {
	if len(raw) == 0 {
		return nil
	}
	out := make([]SearchReplace, len(raw))
	for i, p := range raw {
		out[i] = SearchReplace{ID: p.ID, Search: p.Search, Replace: p.Replace, CaseSensitive: p.CaseSensitive}
	}
	return out
}
