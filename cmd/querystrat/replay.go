package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/danielpatrickdp/active-query/internal/replay"
	"github.com/danielpatrickdp/active-query/internal/telemetry"
	"github.com/spf13/cobra"
)

func newReplayCmd(g *globals) *cobra.Command {
	var fixturePath string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a fixture and compare each round's choice with the recorded one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := replay.LoadFixture(fixturePath)
			if err != nil {
				return err
			}
			results, summary, err := replay.RunFixture(cmd.Context(), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{"rounds": results, "summary": summary}); err != nil {
					return err
				}
			} else {
				printReplay(out, f, results, summary)
			}

			if !summary.Passed() {
				// PersistentPostRunE is skipped on error.
				if g.metricsFile != "" {
					if err := telemetry.WriteTextfile(g.metricsFile); err != nil {
						return err
					}
				}
				return errDiverged{mismatches: summary.Mismatches}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "path to a replay fixture JSON file")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of a table")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}

// #region output

func printReplay(w io.Writer, f *replay.Fixture, results []replay.RoundResult, s replay.Summary) {
	if f.Description != "" {
		fmt.Fprintf(w, "%s\n", f.Description)
	}
	fmt.Fprintf(w, "strategy: %s\n\n", s.Strategy)
	fmt.Fprintf(w, "%-6s %-6s %-8s %-5s %-5s %s\n", "ROUND", "INDEX", "EXPECTED", "|U|", "|L|", "RESULT")
	for _, r := range results {
		expected, verdict := "-", "unchecked"
		if r.Expected >= 0 {
			expected = fmt.Sprintf("%d", r.Expected)
			verdict = "ok"
			if !r.Match {
				verdict = "MISMATCH"
			}
		}
		fmt.Fprintf(w, "%-6d %-6d %-8s %-5d %-5d %s\n", r.Round, r.ChosenIndex, expected, r.Unlabeled, r.Labeled, verdict)
	}
	fmt.Fprintf(w, "\n%d matched, %d mismatched, %d unchecked\n", s.Matches, s.Mismatches, s.Unchecked)
}

// #endregion output
