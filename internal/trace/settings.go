package trace

import (
	"github.com/linkshift/linkshift/internal/config"
	"github.com/linkshift/linkshift/internal/rules"
	"github.com/linkshift/linkshift/internal/search"
)

// SettingsFromConfig compiles the smart-search rules once; the result is
// read-only and may be shared between requests.
func SettingsFromConfig(s config.Settings) Settings {
	return Settings{
		FallbackMode:        s.FallbackMode,
		DefaultSearchURL:    s.DefaultSearchURL,
		DefaultSkipEncoding: s.DefaultSkipEncoding,
		Search:              search.FromConfig(s),
		SearchAndReplace:    rules.SearchReplaceFromConfig(s.SearchAndReplace),
		StaticParams:        rules.StaticParamsFromConfig(s.StaticQueryParams),
		KeptParams:          rules.KeptParamsFromConfig(s.KeptQueryParams),
	}
}
