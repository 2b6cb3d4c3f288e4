package rules

import (
	"fmt"
	"strings"
)

// Validate rejects rules whose configuration cannot be honored as written.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Matcher) == "" {
		return ErrEmptyMatcher
	}

	switch v := r.Redirect.(type) {
	case nil:
		return ErrNoRedirect
	case Wildcard:
		if v.ForwardQuery && len(v.Kept) > 0 {
			return ErrKeptWithForward
		}
	case Partial:
		if strings.TrimSpace(v.Target) == "" {
			return ErrMissingTarget
		}
		if !v.DiscardQuery && len(v.Kept) > 0 {
			return ErrKeptWithoutDiscard
		}
	case Domain:
		if !v.DiscardQuery && len(v.Kept) > 0 {
			return ErrKeptWithoutDiscard
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnknownRedirectType, v)
	}

	for i, kept := range r.Redirect.KeptParams() {
		if kept.KeyPattern == "" {
			return fmt.Errorf("keptQueryParams[%d]: %w", i, ErrEmptyKeyPattern)
		}
	}
	for i, static := range r.StaticParams {
		if static.Key == "" {
			return fmt.Errorf("staticQueryParams[%d]: %w", i, ErrEmptyStaticKey)
		}
	}
	for i, sr := range r.SearchAndReplace {
		if sr.Search == "" {
			return fmt.Errorf("searchAndReplace[%d]: %w", i, ErrEmptySearch)
		}
	}
	return nil
}
