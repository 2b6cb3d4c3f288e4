package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/linkshift/linkshift/internal/logging"
	"github.com/linkshift/linkshift/internal/report"
)

func newReportCmd() *cobra.Command {
	var inputPath string
	var since string
	var filterExpr string
	var format string
	var outPath string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a redirect decision log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return errors.New("input path is required")
			}

			reader := report.Reader{}
			if since != "" {
				start, err := parseSince(since, time.Now())
				if err != nil {
					return err
				}
				reader.Since = start
			}

			decisions, err := reader.Read(inputPath)
			if err != nil {
				return err
			}
			decisions, err = filterDecisions(decisions, filterExpr)
			if err != nil {
				return err
			}

			content, err := render(report.Summarize(decisions), format)
			if err != nil {
				return err
			}
			return report.WriteOutput(outPath, content)
		},
	}

	cmd.Flags().StringVar(&inputPath, "in", "", "Path to decision log JSONL")
	cmd.Flags().StringVar(&since, "since", "", "Only include entries newer than a duration (10m) or an RFC 3339 time")
	cmd.Flags().StringVar(&filterExpr, "filter", "", `Only include decisions matching an expression (e.g. tier == "red")`)
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text|md|json")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file path (default stdout)")

	return cmd
}

func parseSince(value string, now time.Time) (time.Time, error) {
	if dur, err := time.ParseDuration(value); err == nil {
		return now.Add(-dur), nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid since %q: want a duration or RFC 3339 time", value)
	}
	return ts, nil
}

func filterDecisions(decisions []logging.Decision, expression string) ([]logging.Decision, error) {
	filter, err := logging.NewFilter(expression)
	if err != nil || filter == nil {
		return decisions, err
	}
	kept := decisions[:0]
	for _, d := range decisions {
		ok, err := filter.Allow(d)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, d)
		}
	}
	return kept, nil
}

func render(summary report.Summary, format string) ([]byte, error) {
	switch format {
	case "", "text":
		return []byte(report.RenderText(summary)), nil
	case "md":
		return []byte(report.RenderMarkdown(summary)), nil
	case "json":
		return report.RenderJSON(summary)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}
