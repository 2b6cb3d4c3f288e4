package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkshift/linkshift/internal/config"
	"github.com/linkshift/linkshift/internal/logging"
)

const serverYAML = `
configVersion: 1
server:
  listen: "127.0.0.1:8080"
settings:
  defaultDomain: https://new.com
  fallbackMode: search
  defaultSearchUrl: "https://new.com/search?q="
  staticQueryParams:
    - id: utm
      key: utm_source
      value: migration
rules:
  - id: r1
    matcher: /old-section
    targetUrl: /new-section
    redirectType: partial
    autoRedirect: true
  - id: r2
    matcher: oldapp.com
    targetUrl: https://brand-new.com
    redirectType: domain
    infoText: We moved.
`

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg, err := config.Parse([]byte(serverYAML))
	require.NoError(t, err)
	if mutate != nil {
		mutate(cfg)
	}
	snap, err := Build(cfg)
	require.NoError(t, err)
	srv, err := New(NewStaticStore(snap))
	require.NoError(t, err)
	return srv
}

func serve(srv *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestAutoRedirectRule(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := serve(srv, "http://example.com/old-section/page?x=1")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://new.com/new-section/page?x=1&utm_source=migration", rec.Header().Get("Location"))
}

func TestInterstitial(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := serve(srv, "http://oldapp.com/a/b?y=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body interstitialResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "http://oldapp.com/a/b?y=2", body.OriginalURL)
	assert.Equal(t, "https://brand-new.com/a/b?y=2&utm_source=migration", body.TargetURL)
	assert.Equal(t, "r2", body.RuleID)
	assert.Equal(t, "We moved.", body.InfoText)
	assert.Equal(t, 90, body.Quality)
	assert.Equal(t, "green", body.Tier)
	assert.False(t, body.AutoRedirect)
}

func TestSearchFallback(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := serve(srv, "http://example.com/docs/golang")
	require.Equal(t, http.StatusOK, rec.Code)
	var body interstitialResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "https://new.com/search?q=golang", body.TargetURL)
	assert.Equal(t, "search", body.Fallback)
	assert.Empty(t, body.RuleID)

	auto := newTestServer(t, func(cfg *config.Config) { cfg.Settings.AutoRedirect = true })
	rec = serve(auto, "http://example.com/docs/golang")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://new.com/search?q=golang", rec.Header().Get("Location"))
}

func TestTraceEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := serve(srv, "http://linkshift.local/api/trace?url="+url.QueryEscape("http://example.com/old-section/page"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Original string `json:"originalUrl"`
		Final    string `json:"finalUrl"`
		Steps    []struct {
			Type string `json:"type"`
		} `json:"steps"`
		Applied []struct {
			ID string `json:"id"`
		} `json:"appliedGlobalRules"`
		Match *struct {
			RuleID       string `json:"ruleId"`
			RedirectType string `json:"redirectType"`
		} `json:"match"`
		Action string `json:"action"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "http://example.com/old-section/page", body.Original)
	assert.Equal(t, "https://new.com/new-section/page?utm_source=migration", body.Final)
	require.Len(t, body.Steps, 2)
	assert.Equal(t, "rule", body.Steps[0].Type)
	assert.Equal(t, "global", body.Steps[1].Type)
	require.Len(t, body.Applied, 1)
	assert.Equal(t, "utm", body.Applied[0].ID)
	require.NotNil(t, body.Match)
	assert.Equal(t, "r1", body.Match.RuleID)
	assert.Equal(t, "partial", body.Match.RedirectType)
	assert.Equal(t, "redirect", body.Action)
}

func TestTraceEndpointRequiresURL(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := serve(srv, "http://linkshift.local/api/trace")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	rec := serve(srv, "http://linkshift.local/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(2), body["rules"])
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, Key: "ip", RPS: 1, Burst: 1, StatusCode: http.StatusServiceUnavailable}
	})

	first := serve(srv, "http://example.com/old-section")
	assert.Equal(t, http.StatusFound, first.Code)
	second := serve(srv, "http://example.com/old-section")
	assert.Equal(t, http.StatusServiceUnavailable, second.Code)
}

func TestDecisionLog(t *testing.T) {
	srv := newTestServer(t, nil)
	var buf bytes.Buffer
	srv.SetDecisionLogger(logging.NewDecisionLogger(&buf, nil))

	serve(srv, "http://example.com/old-section/page?x=1")

	var d logging.Decision
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &d))
	assert.Equal(t, "r1", d.RuleID)
	assert.Equal(t, "partial", d.RedirectType)
	assert.Equal(t, "redirect", d.Action)
	assert.Equal(t, http.StatusFound, d.StatusCode)
	assert.Equal(t, []string{"utm"}, d.AppliedRules)
	assert.Equal(t, "example.com", d.Host)
	assert.Equal(t, "/old-section/page", d.Path)
	assert.Equal(t, "x=1", d.Query)
	assert.NotEmpty(t, d.RequestID)
	assert.Empty(t, d.Fallback)
}

func TestForwardedHeaders(t *testing.T) {
	srv := newTestServer(t, func(cfg *config.Config) { cfg.Server.TrustForwardedProto = true })

	req := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:9000/a", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("X-Forwarded-Host", "oldapp.com, proxy.internal")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body interstitialResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "https://oldapp.com/a", body.OriginalURL)
	assert.Equal(t, "r2", body.RuleID)
	assert.Equal(t, "203.0.113.7", clientIP(req, true))
	assert.Equal(t, "127.0.0.1:9000", req.Host)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "http://example.com/old-section", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
