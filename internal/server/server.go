package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/linkshift/linkshift/internal/logging"
	"github.com/linkshift/linkshift/internal/observability"
	"github.com/linkshift/linkshift/internal/ratelimit"
	"github.com/linkshift/linkshift/internal/trace"
)

// limiterIdle is how long an unused rate-limit bucket is kept.
const limiterIdle = 10 * time.Minute

type Server struct {
	store       *Store
	mux         *http.ServeMux
	decisionLog *logging.DecisionLogger
	metrics     *observability.Metrics
	limiter     *ratelimit.Limiter
	logger      *slog.Logger

	requestCount uint64
}

func New(store *Store) (*Server, error) {
	if store == nil || store.Snapshot() == nil {
		return nil, errors.New("store with a snapshot is required")
	}
	s := &Server{
		store:   store,
		mux:     http.NewServeMux(),
		limiter: ratelimit.NewLimiter(),
		logger:  slog.New(slog.DiscardHandler),
	}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/trace", s.handleTrace)
	s.mux.HandleFunc("GET /", s.handleResolve)
	return s, nil
}

func (s *Server) SetDecisionLogger(logger *logging.DecisionLogger) {
	s.decisionLog = logger
}

func (s *Server) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

func (s *Server) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Maintain drops idle rate-limit buckets every interval until done closes.
func (s *Server) Maintain(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			remaining := s.limiter.Sweep(now, limiterIdle)
			s.logger.Debug("rate limit buckets swept", "remaining", remaining)
		}
	}
}

type interstitialResponse struct {
	OriginalURL  string `json:"originalUrl"`
	TargetURL    string `json:"targetUrl"`
	RuleID       string `json:"ruleId,omitempty"`
	InfoText     string `json:"infoText,omitempty"`
	Quality      int    `json:"quality"`
	Tier         string `json:"tier,omitempty"`
	Fallback     string `json:"fallback,omitempty"`
	AutoRedirect bool   `json:"autoRedirect"`
}

type matchInfo struct {
	RuleID       string  `json:"ruleId"`
	RedirectType string  `json:"redirectType"`
	Score        float64 `json:"score"`
	Quality      int     `json:"quality"`
	Tier         string  `json:"tier"`
	Offset       int     `json:"offset"`
	Length       int     `json:"length"`
}

type traceResponse struct {
	trace.Result
	Match    *matchInfo `json:"match,omitempty"`
	Fallback string     `json:"fallback,omitempty"`
	Action   string     `json:"action"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"rules":  snap.Index.Len(),
		"loaded": snap.Built.UTC(),
	})
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url query parameter is required"})
		return
	}

	res := s.store.Snapshot().Resolve(raw)
	out := traceResponse{Result: res.Trace, Fallback: res.Fallback(), Action: string(res.Action)}
	if res.Matched {
		out.Match = &matchInfo{
			RuleID:       res.Match.Rule.ID,
			RedirectType: string(res.Match.Rule.Kind()),
			Score:        res.Match.Score,
			Quality:      res.Match.Quality,
			Tier:         string(res.Match.Tier),
			Offset:       res.Match.Offset,
			Length:       res.Match.Length,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	snap := s.store.Snapshot()
	cfg := snap.Config

	decision := logging.Decision{
		Timestamp: time.Now().UTC(),
		RequestID: s.newRequestID(),
		ClientIP:  clientIP(r, cfg.Server.TrustForwardedProto),
		Host:      r.Host,
		Method:    r.Method,
		Path:      r.URL.Path,
		Query:     r.URL.RawQuery,
	}

	ratelimitLabel := ""
	if cfg.RateLimit.Enabled {
		kind := ratelimit.KeyType(cfg.RateLimit.Key)
		if kind == "" {
			kind = ratelimit.KeyIP
		}
		ratelimitLabel = string(kind)
		key := ratelimit.Key(kind, decision.ClientIP, r.URL.Path)
		if !s.limiter.Allow(key, cfg.RateLimit.RPS, cfg.RateLimit.Burst, start) {
			decision.RateLimited = true
			decision.Action = "ratelimited"
			decision.StatusCode = rateLimitStatus(cfg.RateLimit.StatusCode)
			s.writeDecision(decision, start, ratelimitLabel)
			http.Error(w, "rate limit exceeded", decision.StatusCode)
			return
		}
	}

	rawURL := requestURL(r, cfg.Server.TrustForwardedProto)
	res := snap.Resolve(rawURL)

	decision.Action = string(res.Action)
	decision.TargetURL = res.Trace.Final
	decision.Fallback = res.Fallback()
	decision.AppliedRules = res.AppliedIDs()
	decision.Steps = len(res.Trace.Steps)
	if res.Matched {
		decision.RuleID = res.Match.Rule.ID
		decision.RedirectType = string(res.Match.Rule.Kind())
		decision.Score = res.Match.Score
		decision.Quality = res.Match.Quality
		decision.Tier = string(res.Match.Tier)
	}

	if res.Action.Redirects() {
		decision.StatusCode = http.StatusFound
		s.writeDecision(decision, start, ratelimitLabel)
		http.Redirect(w, r, res.Trace.Final, http.StatusFound)
		return
	}

	body := interstitialResponse{
		OriginalURL: rawURL,
		TargetURL:   res.Trace.Final,
		Quality:     decision.Quality,
		Tier:        decision.Tier,
		Fallback:    decision.Fallback,
	}
	if res.Matched {
		body.RuleID = res.Match.Rule.ID
		body.InfoText = res.Match.Rule.InfoText
	}
	decision.StatusCode = http.StatusOK
	s.writeDecision(decision, start, ratelimitLabel)
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) writeDecision(decision logging.Decision, start time.Time, ratelimitKey string) {
	decision.DurationUS = time.Since(start).Microseconds()
	if s.decisionLog != nil {
		if err := s.decisionLog.Write(decision); err != nil {
			s.logger.Warn("decision log write failed", "error", err)
		}
	}
	s.metrics.Observe(decision, ratelimitKey)
}

func (s *Server) newRequestID() string {
	var buf [12]byte
	if _, err := rand.Read(buf[:]); err == nil {
		return hex.EncodeToString(buf[:])
	}
	value := atomic.AddUint64(&s.requestCount, 1)
	return fmt.Sprintf("req-%d", value)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestURL rebuilds the absolute URL the client asked for.
func requestURL(r *http.Request, trustForwarded bool) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	host := r.Host
	if trustForwarded {
		if proto := firstHeaderValue(r.Header.Get("X-Forwarded-Proto")); proto != "" {
			scheme = strings.ToLower(proto)
		}
		if fwdHost := firstHeaderValue(r.Header.Get("X-Forwarded-Host")); fwdHost != "" {
			host = fwdHost
		}
	}
	return scheme + "://" + host + r.URL.RequestURI()
}

func clientIP(r *http.Request, trustForwarded bool) string {
	if r == nil {
		return ""
	}
	if trustForwarded {
		if ip := firstHeaderValue(r.Header.Get("X-Forwarded-For")); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func firstHeaderValue(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.TrimSpace(first)
}

func rateLimitStatus(code int) int {
	if code <= 0 {
		return http.StatusTooManyRequests
	}
	return code
}
