package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/folio/backend/internal/model"
)

func newStatsCmd(e *env) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the contact statistics report",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := e.contacts.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			printStats(out, stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printStats(w io.Writer, s *model.ContactStats) {
	fmt.Fprintf(w, "Contacts: %d\n", s.Total)
	fmt.Fprintln(w, strings.Repeat("-", 40))

	fmt.Fprintln(w, "By status:")
	for _, st := range model.ContactStatuses {
		fmt.Fprintf(w, "  %-10s %d\n", st, s.ByStatus[st])
	}
	fmt.Fprintln(w, "By priority:")
	for _, p := range model.Priorities {
		fmt.Fprintf(w, "  %-10s %d\n", p, s.ByPriority[p])
	}
	fmt.Fprintln(w, "By source:")
	for _, src := range model.Sources {
		fmt.Fprintf(w, "  %-10s %d\n", src, s.BySource[src])
	}
	if len(s.TopTags) > 0 {
		fmt.Fprintln(w, "Top tags:")
		for _, t := range s.TopTags {
			fmt.Fprintf(w, "  %-14s %d\n", t.Tag, t.Count)
		}
	}
	if s.ResponseTime.Count > 0 {
		fmt.Fprintf(w, "Response time: avg %.1fh over %d replies\n", s.ResponseTime.AverageHours, s.ResponseTime.Count)
	}
}
