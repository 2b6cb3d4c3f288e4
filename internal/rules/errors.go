package rules

import "errors"

var (
	ErrEmptyMatcher        = errors.New("matcher is required")
	ErrMissingTarget       = errors.New("targetUrl is required")
	ErrUnknownRedirectType = errors.New("unknown redirect type")
	ErrNoRedirect          = errors.New("redirect is required")
	ErrForwardAndDiscard   = errors.New("forwardQueryParams and discardQueryParams are mutually exclusive")
	ErrForwardNotSupported = errors.New("forwardQueryParams is only valid for wildcard rules")
	ErrKeptWithForward     = errors.New("keptQueryParams cannot be combined with forwardQueryParams")
	ErrKeptWithoutDiscard  = errors.New("keptQueryParams require discardQueryParams")
	ErrEmptyKeyPattern     = errors.New("keptQueryParams entry needs a keyPattern")
	ErrEmptyStaticKey      = errors.New("staticQueryParams entry needs a key")
	ErrEmptySearch         = errors.New("searchAndReplace entry needs a search literal")
)
