package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
)

type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Add(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s)", len(v.Problems))
}

func (c *Config) Validate() error {
	v := &ValidationError{}

	if c.ConfigVersion != 1 {
		v.Add("configVersion must be 1")
	}

	if err := validateListen(c.Server.Listen); err != nil {
		v.Add("server.listen invalid: %v", err)
	}

	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			v.Add("server.tls.certFile required when tls.enabled is true")
		}
		if c.Server.TLS.KeyFile == "" {
			v.Add("server.tls.keyFile required when tls.enabled is true")
		}
		if c.Server.TLS.CertFile != "" {
			if err := requireFile(c.resolvePath(c.Server.TLS.CertFile)); err != nil {
				v.Add("server.tls.certFile invalid: %v", err)
			}
		}
		if c.Server.TLS.KeyFile != "" {
			if err := requireFile(c.resolvePath(c.Server.TLS.KeyFile)); err != nil {
				v.Add("server.tls.keyFile invalid: %v", err)
			}
		}
	}

	if c.Metrics.Enabled {
		if err := validateListen(c.Metrics.Listen); err != nil {
			v.Add("metrics.listen invalid: %v", err)
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			v.Add("rateLimit.rps must be > 0")
		}
		if c.RateLimit.Burst <= 0 {
			v.Add("rateLimit.burst must be > 0")
		}
		switch c.RateLimit.Key {
		case "", "ip", "ip_path":
		default:
			v.Add("rateLimit.key must be ip|ip_path")
		}
	}

	c.validateSettings(v)
	c.validateMatching(v)
	c.validateRules(v)

	if len(v.Problems) > 0 {
		sort.Strings(v.Problems)
		return v
	}
	return nil
}

func (c *Config) validateSettings(v *ValidationError) {
	s := c.Settings

	if s.DefaultDomain != "" {
		if err := validateURL(s.DefaultDomain); err != nil {
			v.Add("settings.defaultDomain invalid: %v", err)
		}
	}

	switch s.FallbackMode {
	case "", FallbackDomain:
	case FallbackSearch:
		if s.DefaultSearchURL == "" && !hasSearchEndpoint(s.SmartSearchRules) {
			v.Add("settings.defaultSearchUrl required when fallbackMode is search")
		}
	default:
		v.Add("settings.fallbackMode must be domain|search")
	}

	if s.SmartSearchPattern != "" {
		if err := validatePattern(s.SmartSearchPattern); err != nil {
			v.Add("settings.smartSearchPattern invalid: %v", err)
		}
	}
	for i, rule := range s.SmartSearchRules {
		if rule.Pattern != "" {
			if err := validatePattern(rule.Pattern); err != nil {
				v.Add("settings.smartSearchRules[%d].pattern invalid: %v", i, err)
			}
		}
	}

	validateSearchReplace(v, "settings.searchAndReplace", s.SearchAndReplace)
	validateStatic(v, "settings.staticQueryParams", s.StaticQueryParams)
	validateKept(v, "settings.keptQueryParams", s.KeptQueryParams)
}

func (c *Config) validateMatching(v *ValidationError) {
	switch c.Matching.TrailingSlash {
	case "", "ignore", "strict":
	default:
		v.Add("matching.trailingSlash must be ignore|strict")
	}
	switch c.Matching.SegmentPolicy {
	case "", "prefix", "exact":
	default:
		v.Add("matching.segmentPolicy must be prefix|exact")
	}
	if c.Matching.Weights.Wildcard > 0 {
		v.Add("matching.weights.wildcard must be <= 0")
	}
}

func (c *Config) validateRules(v *ValidationError) {
	ruleIDs := map[string]struct{}{}
	for i, rule := range c.Rules {
		prefix := fmt.Sprintf("rules[%d]", i)

		if rule.ID == "" {
			v.Add("%s.id is required", prefix)
		} else if _, exists := ruleIDs[rule.ID]; exists {
			v.Add("%s.id %q is duplicated", prefix, rule.ID)
		} else {
			ruleIDs[rule.ID] = struct{}{}
		}

		if strings.TrimSpace(rule.Matcher) == "" {
			v.Add("%s.matcher is required", prefix)
		}

		switch rule.RedirectType {
		case "wildcard":
			if rule.ForwardQueryParams && rule.DiscardQueryParams {
				v.Add("%s: forwardQueryParams and discardQueryParams are mutually exclusive", prefix)
			}
			if rule.ForwardQueryParams && len(rule.KeptQueryParams) > 0 {
				v.Add("%s: keptQueryParams cannot be combined with forwardQueryParams", prefix)
			}
		case "", "partial", "domain":
			if rule.ForwardQueryParams {
				v.Add("%s: forwardQueryParams is only valid for wildcard rules", prefix)
			}
			if !rule.DiscardQueryParams && len(rule.KeptQueryParams) > 0 {
				v.Add("%s: keptQueryParams require discardQueryParams", prefix)
			}
			if rule.RedirectType != "domain" && strings.TrimSpace(rule.TargetURL) == "" {
				v.Add("%s.targetUrl is required for partial rules", prefix)
			}
		default:
			v.Add("%s.redirectType must be wildcard|partial|domain", prefix)
		}

		if rule.CreatedAt != "" {
			if _, err := time.Parse(time.RFC3339, rule.CreatedAt); err != nil {
				v.Add("%s.createdAt invalid: %v", prefix, err)
			}
		}

		validateSearchReplace(v, prefix+".searchAndReplace", rule.SearchAndReplace)
		validateStatic(v, prefix+".staticQueryParams", rule.StaticQueryParams)
		validateKept(v, prefix+".keptQueryParams", rule.KeptQueryParams)
	}
}

func validateSearchReplace(v *ValidationError, prefix string, items []SearchReplace) {
	for i, item := range items {
		if item.Search == "" {
			v.Add("%s[%d].search is required", prefix, i)
		}
	}
}

func validateStatic(v *ValidationError, prefix string, items []StaticParam) {
	for i, item := range items {
		if item.Key == "" {
			v.Add("%s[%d].key is required", prefix, i)
		}
	}
}

func validateKept(v *ValidationError, prefix string, items []KeptParam) {
	for i, item := range items {
		if item.KeyPattern == "" {
			v.Add("%s[%d].keyPattern is required", prefix, i)
		} else if err := validatePattern(item.KeyPattern); err != nil {
			v.Add("%s[%d].keyPattern invalid: %v", prefix, i, err)
		}
		if item.ValuePattern != "" {
			if err := validatePattern(item.ValuePattern); err != nil {
				v.Add("%s[%d].valuePattern invalid: %v", prefix, i, err)
			}
		}
	}
}

func hasSearchEndpoint(rules []SmartSearchRule) bool {
	for _, rule := range rules {
		if rule.SearchURL != "" {
			return true
		}
	}
	return false
}

func validatePattern(pattern string) error {
	_, err := regexp.Compile(pattern)
	return err
}

func validateListen(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("address is required")
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return err
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("must use http or https")
	}
	if parsed.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

func requireFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}
