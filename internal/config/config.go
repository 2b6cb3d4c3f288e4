package config

type Config struct {
	ConfigVersion int             `yaml:"configVersion"`
	Server        ServerConfig    `yaml:"server"`
	Settings      Settings        `yaml:"settings"`
	Matching      MatchingConfig  `yaml:"matching"`
	Rules         []Rule          `yaml:"rules"`
	RateLimit     RateLimitConfig `yaml:"rateLimit"`
	Logging       LoggingConfig   `yaml:"logging"`
	Metrics       MetricsConfig   `yaml:"metrics"`

	baseDir string `yaml:"-"`
}

type ServerConfig struct {
	Listen string    `yaml:"listen"`
	TLS    TLSConfig `yaml:"tls"`
	// TrustForwardedProto uses X-Forwarded-Proto/-Host to rebuild the
	// request URL when running behind a proxy.
	TrustForwardedProto bool `yaml:"trustForwardedProto"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
}

// Settings are the global redirect policies shared by every rule.
type Settings struct {
	DefaultDomain       string `yaml:"defaultDomain"`
	FallbackMode        string `yaml:"fallbackMode"`
	CaseSensitive       bool   `yaml:"caseSensitive"`
	AutoRedirect        bool   `yaml:"autoRedirect"`
	DefaultSearchURL    string `yaml:"defaultSearchUrl"`
	DefaultSkipEncoding bool   `yaml:"defaultSearchSkipEncoding"`
	// SmartSearchPattern is the single extraction pattern used before
	// smartSearchRules existed. It is consulted after every rule.
	SmartSearchPattern string            `yaml:"smartSearchPattern"`
	SmartSearchRules   []SmartSearchRule `yaml:"smartSearchRules"`
	SearchAndReplace   []SearchReplace   `yaml:"searchAndReplace"`
	StaticQueryParams  []StaticParam     `yaml:"staticQueryParams"`
	KeptQueryParams    []KeptParam       `yaml:"keptQueryParams"`
}

type SmartSearchRule struct {
	Pattern      string `yaml:"pattern"`
	Order        int    `yaml:"order"`
	SearchURL    string `yaml:"searchUrl"`
	PathPattern  string `yaml:"pathPattern"`
	SkipEncoding *bool  `yaml:"skipEncoding"`
}

type MatchingConfig struct {
	TrailingSlash      string  `yaml:"trailingSlash"`
	CaseSensitiveQuery bool    `yaml:"caseSensitiveQuery"`
	SegmentPolicy      string  `yaml:"segmentPolicy"`
	Weights            Weights `yaml:"weights"`
}

// Weights override the scoring constants; zero values keep the defaults.
type Weights struct {
	PathSegment int `yaml:"pathSegment"`
	QueryPair   int `yaml:"queryPair"`
	Wildcard    int `yaml:"wildcard"`
	ExactMatch  int `yaml:"exactMatch"`
	Domain      int `yaml:"domain"`
}

type Rule struct {
	ID                 string          `yaml:"id"`
	Matcher            string          `yaml:"matcher"`
	TargetURL          string          `yaml:"targetUrl"`
	RedirectType       string          `yaml:"redirectType"`
	AutoRedirect       bool            `yaml:"autoRedirect"`
	DiscardQueryParams bool            `yaml:"discardQueryParams"`
	ForwardQueryParams bool            `yaml:"forwardQueryParams"`
	KeptQueryParams    []KeptParam     `yaml:"keptQueryParams"`
	StaticQueryParams  []StaticParam   `yaml:"staticQueryParams"`
	SearchAndReplace   []SearchReplace `yaml:"searchAndReplace"`
	InfoText           string          `yaml:"infoText"`
	CreatedAt          string          `yaml:"createdAt"`
}

type KeptParam struct {
	ID           string `yaml:"id"`
	KeyPattern   string `yaml:"keyPattern"`
	ValuePattern string `yaml:"valuePattern"`
	TargetKey    string `yaml:"targetKey"`
	SkipEncoding bool   `yaml:"skipEncoding"`
}

type StaticParam struct {
	ID           string `yaml:"id"`
	Key          string `yaml:"key"`
	Value        string `yaml:"value"`
	SkipEncoding bool   `yaml:"skipEncoding"`
}

type SearchReplace struct {
	ID            string `yaml:"id"`
	Search        string `yaml:"search"`
	Replace       string `yaml:"replace"`
	CaseSensitive bool   `yaml:"caseSensitive"`
}

type RateLimitConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Key        string  `yaml:"key"`
	RPS        float64 `yaml:"rps"`
	Burst      int     `yaml:"burst"`
	StatusCode int     `yaml:"statusCode"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	DecisionLog string `yaml:"decisionLog"`
	// Filter is an expression over a decision; only decisions it accepts
	// are written. Empty writes everything.
	Filter string `yaml:"filter"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

const (
	FallbackDomain = "domain"
	FallbackSearch = "search"
)

func (c *Config) BaseDir() string {
	return c.baseDir
}

func (c *Config) ResolvePath(path string) string {
	return c.resolvePath(path)
}
