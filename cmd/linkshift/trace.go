package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/linkshift/linkshift/internal/config"
	"github.com/linkshift/linkshift/internal/server"
)

func loadSnapshot(configPath string) (*server.Snapshot, error) {
	if configPath == "" {
		return nil, errors.New("config path is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return server.Build(cfg)
}

func newTraceCmd() *cobra.Command {
	var configPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "trace <url>",
		Short: "Show every transformation step for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(configPath)
			if err != nil {
				return err
			}
			res := snap.Resolve(args[0])
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res.Trace)
			}
			return writeTrace(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the trace as JSON")

	return cmd
}

func writeTrace(w io.Writer, res server.Resolution) error {
	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("original: %s\n", res.Trace.Original)
	if res.Matched {
		printf("rule:     %s (%s, score %.1f, quality %d %s)\n",
			res.Match.Rule.ID, res.Match.Rule.Kind(), res.Match.Score, res.Match.Quality, res.Match.Tier)
	} else {
		printf("rule:     none (%s fallback)\n", res.Fallback())
	}
	for i, s := range res.Trace.Steps {
		printf("%2d. [%s] %s\n    %s\n -> %s\n", i+1, s.Category, s.Description, s.Before, s.After)
	}
	for _, a := range res.Trace.Applied {
		printf("applied:  %s %s %s\n", a.Kind, a.ID, a.Description)
	}
	printf("final:    %s\n", res.Trace.Final)
	printf("action:   %s\n", res.Action)
	return err
}
