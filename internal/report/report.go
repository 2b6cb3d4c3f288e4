package report

import (
	"bufio"
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/linkshift/linkshift/internal/logging"
)

type Summary struct {
	Total        int            `json:"total"`
	Redirected   int            `json:"redirected"`
	Interstitial int            `json:"interstitial"`
	Searched     int            `json:"searched"`
	Matched      int            `json:"matched"`
	RateLimited  int            `json:"rate_limited"`
	Start        time.Time      `json:"start"`
	End          time.Time      `json:"end"`
	Tiers        []CountItem    `json:"tiers"`
	Fallbacks    []CountItem    `json:"fallbacks"`
	TopRules     []CountItem    `json:"top_rules"`
	TopUnmatched []CountItem    `json:"top_unmatched"`
	TopApplied   []CountItem    `json:"top_applied"`
	TopRateLimit []CountItem    `json:"top_rate_limits"`
	Latency      LatencySummary `json:"latency_us"`
}

type CountItem struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type LatencySummary struct {
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type Reader struct {
	Since time.Time
}

// maxLine fits a decision whose URL fields are all at the logger's
// truncation limit.
const maxLine = 64 * 1024

func (r *Reader) Read(path string) ([]logging.Decision, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return r.Decode(file)
}

// Decode reads JSONL decisions from in, skipping those logged before Since.
func (r *Reader) Decode(in io.Reader) ([]logging.Decision, error) {
	var decisions []logging.Decision
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), maxLine)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var d logging.Decision
		if err := json.Unmarshal([]byte(text), &d); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if !r.Since.IsZero() && d.Timestamp.Before(r.Since) {
			continue
		}
		decisions = append(decisions, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return decisions, nil
}

func Summarize(decisions []logging.Decision) Summary {
	var summary Summary
	if len(decisions) == 0 {
		return summary
	}

	summary.Start = decisions[0].Timestamp
	summary.End = decisions[0].Timestamp

	tierCounts := map[string]int{}
	fallbackCounts := map[string]int{}
	ruleCounts := map[string]int{}
	unmatchedCounts := map[string]int{}
	appliedCounts := map[string]int{}
	ratelimitCounts := map[string]int{}
	latencies := make([]int64, 0, len(decisions))

	for _, d := range decisions {
		summary.Total++
		if d.Timestamp.Before(summary.Start) {
			summary.Start = d.Timestamp
		}
		if d.Timestamp.After(summary.End) {
			summary.End = d.Timestamp
		}

		if d.RateLimited {
			summary.RateLimited++
			ratelimitCounts[d.ClientIP]++
			continue
		}

		switch d.Action {
		case "redirect":
			summary.Redirected++
		case "interstitial":
			summary.Interstitial++
		case "search":
			summary.Searched++
		}

		if d.Tier != "" {
			tierCounts[d.Tier]++
		}
		if d.RuleID != "" {
			summary.Matched++
			ruleCounts[d.RuleID]++
		} else {
			if d.Fallback != "" {
				fallbackCounts[d.Fallback]++
			}
			unmatchedCounts[d.Host+d.Path]++
		}
		for _, id := range d.AppliedRules {
			appliedCounts[id]++
		}

		latencies = append(latencies, d.DurationUS)
	}

	summary.Tiers = topCounts(tierCounts, len(tierCounts))
	summary.Fallbacks = topCounts(fallbackCounts, len(fallbackCounts))
	summary.TopRules = topCounts(ruleCounts, 5)
	summary.TopUnmatched = topCounts(unmatchedCounts, 5)
	summary.TopApplied = topCounts(appliedCounts, 5)
	summary.TopRateLimit = topCounts(ratelimitCounts, 5)
	summary.Latency = latencySummary(latencies)

	return summary
}

func topCounts(counts map[string]int, n int) []CountItem {
	if len(counts) == 0 {
		return nil
	}
	items := make([]CountItem, 0, len(counts))
	for key, count := range counts {
		items = append(items, CountItem{Key: key, Count: count})
	}
	slices.SortFunc(items, func(a, b CountItem) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	return items[:min(n, len(items))]
}

func latencySummary(values []int64) LatencySummary {
	if len(values) == 0 {
		return LatencySummary{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	return LatencySummary{
		P50: percentile(sorted, 0.50),
		P95: percentile(sorted, 0.95),
		P99: percentile(sorted, 0.99),
	}
}

// percentile uses the nearest-rank method on sorted values.
func percentile(sorted []int64, p float64) float64 {
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	rank = max(0, min(rank, len(sorted)-1))
	return float64(sorted[rank])
}

type section struct {
	title string
	items []CountItem
}

func (s Summary) totals() [][2]string {
	return [][2]string{
		{"Total", fmt.Sprint(s.Total)},
		{"Matched", fmt.Sprint(s.Matched)},
		{"Redirected", fmt.Sprint(s.Redirected)},
		{"Interstitial", fmt.Sprint(s.Interstitial)},
		{"Search fallback", fmt.Sprint(s.Searched)},
		{"Rate limited", fmt.Sprint(s.RateLimited)},
		{"Latency p50/p95/p99 (us)", fmt.Sprintf("%.0f/%.0f/%.0f", s.Latency.P50, s.Latency.P95, s.Latency.P99)},
	}
}

func (s Summary) sections() []section {
	return []section{
		{"Quality tiers", s.Tiers},
		{"Fallbacks", s.Fallbacks},
		{"Top rules", s.TopRules},
		{"Top unmatched", s.TopUnmatched},
		{"Top applied global rules", s.TopApplied},
		{"Top rate-limited", s.TopRateLimit},
	}
}

func RenderText(summary Summary) string {
	var b strings.Builder
	for _, kv := range summary.totals() {
		fmt.Fprintf(&b, "%s: %s\n", kv[0], kv[1])
	}
	for _, sec := range summary.sections() {
		if len(sec.items) == 0 {
			fmt.Fprintf(&b, "%s: none\n", sec.title)
			continue
		}
		fmt.Fprintf(&b, "%s:\n", sec.title)
		writeItems(&b, sec.items)
	}
	return b.String()
}

func RenderMarkdown(summary Summary) string {
	var b strings.Builder
	b.WriteString("# Linkshift Report\n\n## Totals\n\n")
	for _, kv := range summary.totals() {
		fmt.Fprintf(&b, "- %s: %s\n", kv[0], kv[1])
	}
	b.WriteString("\n")
	for _, sec := range summary.sections() {
		fmt.Fprintf(&b, "## %s\n\n", sec.title)
		if len(sec.items) == 0 {
			b.WriteString("- none\n")
		}
		writeItems(&b, sec.items)
		b.WriteString("\n")
	}
	return b.String()
}

func RenderJSON(summary Summary) ([]byte, error) {
	return json.MarshalIndent(summary, "", "  ")
}

func writeItems(b *strings.Builder, items []CountItem) {
	for _, item := range items {
		fmt.Fprintf(b, "- %s: %d\n", item.Key, item.Count)
	}
}

// WriteOutput writes content to path, or to stdout when path is empty.
func WriteOutput(path string, content []byte) error {
	if path == "" {
		_, err := io.Copy(os.Stdout, bytes.NewReader(content))
		return err
	}
	return os.WriteFile(path, content, 0o600)
}
