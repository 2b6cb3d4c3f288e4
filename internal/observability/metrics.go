package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/linkshift/linkshift/internal/logging"
)

type Metrics struct {
	resolutionsTotal   *prometheus.CounterVec
	ruleMatchesTotal   *prometheus.CounterVec
	fallbacksTotal     *prometheus.CounterVec
	appliedGlobalTotal *prometheus.CounterVec
	traceSteps         prometheus.Histogram
	ratelimitHitsTotal *prometheus.CounterVec
	reloadsTotal       *prometheus.CounterVec
	resolveDuration    *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		resolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "linkshift_resolutions_total", Help: "Total resolved requests"},
			[]string{"tier", "action", "code"},
		),
		ruleMatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "linkshift_rule_matches_total", Help: "Total requests matched per rule"},
			[]string{"rule_id", "redirect_type"},
		),
		fallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "linkshift_fallbacks_total", Help: "Total requests no rule matched"},
			[]string{"mode"},
		),
		appliedGlobalTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "linkshift_applied_global_rules_total", Help: "Total global setting entries applied"},
			[]string{"id"},
		),
		traceSteps: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linkshift_trace_steps",
				Help:    "Transformation steps per resolved URL",
				Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12},
			},
		),
		ratelimitHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "linkshift_ratelimit_hits_total", Help: "Total rate limit hits"},
			[]string{"key"},
		),
		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "linkshift_config_reloads_total", Help: "Total configuration reloads"},
			[]string{"result"},
		),
		resolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "linkshift_resolve_duration_seconds",
				Help:    "Time spent matching and building the redirect URL",
				Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025},
			},
			[]string{"tier"},
		),
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.resolutionsTotal,
		m.ruleMatchesTotal,
		m.fallbacksTotal,
		m.appliedGlobalTotal,
		m.traceSteps,
		m.ratelimitHitsTotal,
		m.reloadsTotal,
		m.resolveDuration,
	)

	return m
}

func (m *Metrics) Handler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Observe(decision logging.Decision, ratelimitKey string) {
	if m == nil {
		return
	}

	if decision.RateLimited {
		m.ratelimitHitsTotal.WithLabelValues(ratelimitKey).Inc()
		m.resolutionsTotal.WithLabelValues("none", "ratelimited", intToString(decision.StatusCode)).Inc()
		return
	}

	tier := decision.Tier
	if tier == "" {
		tier = "none"
	}
	m.resolutionsTotal.WithLabelValues(tier, decision.Action, intToString(decision.StatusCode)).Inc()
	m.resolveDuration.WithLabelValues(tier).Observe((time.Duration(decision.DurationUS) * time.Microsecond).Seconds())
	m.traceSteps.Observe(float64(decision.Steps))

	if decision.RuleID != "" {
		m.ruleMatchesTotal.WithLabelValues(decision.RuleID, decision.RedirectType).Inc()
	}
	if decision.Fallback != "" {
		m.fallbacksTotal.WithLabelValues(decision.Fallback).Inc()
	}
	for _, id := range decision.AppliedRules {
		m.appliedGlobalTotal.WithLabelValues(id).Inc()
	}
}

// ObserveReload counts a configuration reload attempt.
func (m *Metrics) ObserveReload(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.reloadsTotal.WithLabelValues(result).Inc()
}

func intToString(code int) string {
	if code == 0 {
		return "0"
	}
	return strconv.Itoa(code)
}
