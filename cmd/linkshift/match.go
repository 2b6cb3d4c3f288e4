package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/linkshift/linkshift/internal/match"
)

func newMatchCmd() *cobra.Command {
	var configPath string
	var all bool

	cmd := &cobra.Command{
		Use:   "match <url>",
		Short: "Show which rule wins for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := loadSnapshot(configPath)
			if err != nil {
				return err
			}
			var results []match.Result
			if all {
				results = snap.Index.FindAll(args[0])
			} else if res, ok := snap.Index.Find(args[0]); ok {
				results = []match.Result{res}
			}
			return writeMatches(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	cmd.Flags().BoolVar(&all, "all", false, "List every matching rule, best first")

	return cmd
}

func writeMatches(w io.Writer, results []match.Result) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "no matching rule")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tTYPE\tMATCHER\tSCORE\tQUALITY\tTIER\tOFFSET")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f\t%d\t%s\t%d\n",
			r.Rule.ID, r.Rule.Kind(), r.Rule.Matcher, r.Score, r.Quality, r.Tier, r.Offset)
	}
	return tw.Flush()
}
