package logging

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"
)

// maxURLField bounds the URL-shaped fields so one hostile request cannot
// produce an arbitrarily long log line.
const maxURLField = 2048

// Decision is written as a single JSON object per resolved request.
type Decision struct {
	Timestamp    time.Time `json:"ts"`
	RequestID    string    `json:"request_id"`
	ClientIP     string    `json:"client_ip"`
	Host         string    `json:"host"`
	Method       string    `json:"method"`
	Path         string    `json:"path"`
	Query        string    `json:"query"`
	RuleID       string    `json:"rule_id"`
	RedirectType string    `json:"redirect_type"`
	Score        float64   `json:"score"`
	Quality      int       `json:"quality"`
	Tier         string    `json:"tier"`
	// Fallback is "domain" or "search" when no rule matched.
	Fallback     string   `json:"fallback"`
	Action       string   `json:"action"`
	StatusCode   int      `json:"status_code"`
	TargetURL    string   `json:"target_url"`
	AppliedRules []string `json:"applied_rules"`
	Steps        int      `json:"steps"`
	RateLimited  bool     `json:"rate_limited"`
	DurationUS   int64    `json:"duration_us"`
}

type DecisionLogger struct {
	mu     sync.Mutex
	w      io.Writer
	filter *Filter
}

// NewDecisionLogger writes every decision the filter accepts. A nil filter
// accepts everything.
func NewDecisionLogger(w io.Writer, filter *Filter) *DecisionLogger {
	return &DecisionLogger{w: w, filter: filter}
}

func OpenDecisionLog(path string, filter *Filter) (*DecisionLogger, func() error, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return NewDecisionLogger(file, filter), file.Close, nil
}

func (l *DecisionLogger) Write(decision Decision) error {
	if l == nil {
		return nil
	}
	if l.filter != nil {
		ok, err := l.filter.Allow(decision)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	decision.Path = truncate(decision.Path)
	decision.Query = truncate(decision.Query)
	decision.TargetURL = truncate(decision.TargetURL)

	data, err := json.Marshal(decision)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.w.Write(append(data, '\n'))
	return err
}

// truncate cuts s to at most maxURLField bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxURLField {
		return s
	}
	cut := maxURLField
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
