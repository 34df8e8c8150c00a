package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/danielpatrickdp/active-query/internal/store"
	"github.com/spf13/cobra"
)

func newInspectCmd(g *globals) *cobra.Command {
	var runID string
	var last int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List runs, or one run's recent decisions and state versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if g.proc.DBPath == "" {
				return fmt.Errorf("inspect needs --db")
			}
			st, err := store.NewStore(g.proc.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			if runID == "" {
				return listRuns(cmd.OutOrStdout(), st, last, jsonOut)
			}
			return showRun(cmd.OutOrStdout(), st, runID, last, jsonOut)
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "show one run in detail")
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent entries")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of a table")
	dbFlag(cmd, g)
	return cmd
}

// #region list-mode

type runRow struct {
	RunID         string `json:"run_id"`
	Strategy      string `json:"strategy"`
	ActiveVersion string `json:"active_version"`
	CreatedAt     string `json:"created_at"`
}

func listRuns(w io.Writer, st *store.Store, last int, jsonOut bool) error {
	runs, err := st.ListRuns(last)
	if err != nil {
		return err
	}
	rows := make([]runRow, len(runs))
	for i, r := range runs {
		rows[i] = runRow{RunID: r.RunID, Strategy: r.Strategy, ActiveVersion: r.ActiveVersion, CreatedAt: r.CreatedAt.Format(time.RFC3339)}
	}
	if jsonOut {
		return writeJSON(w, rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, "no runs found")
		return nil
	}
	fmt.Fprintf(w, "%-36s  %-20s  %-36s  %s\n", "RUN", "CREATED", "ACTIVE VERSION", "STRATEGY")
	for _, r := range rows {
		fmt.Fprintf(w, "%-36s  %-20s  %-36s  %s\n", r.RunID, r.CreatedAt, r.ActiveVersion, r.Strategy)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type decisionRow struct {
	Round       int     `json:"round"`
	ChosenIndex int     `json:"chosen_index"`
	Unlabeled   int     `json:"unlabeled"`
	Labeled     int     `json:"labeled"`
	ScoreMin    float64 `json:"score_min"`
	ScoreMax    float64 `json:"score_max"`
	VersionID   string  `json:"version_id"`
	CreatedAt   string  `json:"created_at"`
}

type runDetail struct {
	Run       runRow        `json:"run"`
	Config    string        `json:"config,omitempty"`
	Decisions []decisionRow `json:"decisions"`
	Versions  []string      `json:"versions"`
}

func showRun(w io.Writer, st *store.Store, runID string, last int, jsonOut bool) error {
	run, err := st.GetRun(runID)
	if err != nil {
		return err
	}
	decisions, err := st.ListDecisions(runID, last)
	if err != nil {
		return err
	}
	versions, err := st.ListVersions(runID, last)
	if err != nil {
		return err
	}

	d := runDetail{
		Run:    runRow{RunID: run.RunID, Strategy: run.Strategy, ActiveVersion: run.ActiveVersion, CreatedAt: run.CreatedAt.Format(time.RFC3339)},
		Config: run.ConfigYAML,
	}
	for _, dec := range decisions {
		d.Decisions = append(d.Decisions, decisionRow{
			Round:       dec.Round,
			ChosenIndex: dec.ChosenIndex,
			Unlabeled:   dec.Unlabeled,
			Labeled:     dec.Labeled,
			ScoreMin:    dec.ScoreMin,
			ScoreMax:    dec.ScoreMax,
			VersionID:   dec.VersionID,
			CreatedAt:   dec.CreatedAt.Format(time.RFC3339),
		})
	}
	for _, v := range versions {
		d.Versions = append(d.Versions, v.VersionID)
	}

	if jsonOut {
		return writeJSON(w, d)
	}

	fmt.Fprintf(w, "run:      %s\n", d.Run.RunID)
	fmt.Fprintf(w, "strategy: %s\n", d.Run.Strategy)
	fmt.Fprintf(w, "active:   %s\n", d.Run.ActiveVersion)
	fmt.Fprintf(w, "created:  %s\n", d.Run.CreatedAt)
	if d.Config != "" {
		fmt.Fprintf(w, "\n%s", d.Config)
	}

	fmt.Fprintf(w, "\n%-6s %-6s %-5s %-5s %-12s %-12s %s\n", "ROUND", "INDEX", "|U|", "|L|", "MIN", "MAX", "VERSION")
	for _, r := range d.Decisions {
		fmt.Fprintf(w, "%-6d %-6d %-5d %-5d %-12.6g %-12.6g %s\n", r.Round, r.ChosenIndex, r.Unlabeled, r.Labeled, r.ScoreMin, r.ScoreMax, r.VersionID)
	}

	fmt.Fprintln(w, "\nversions (newest first):")
	for _, v := range d.Versions {
		marker := " "
		if v == d.Run.ActiveVersion {
			marker = "*"
		}
		fmt.Fprintf(w, " %s %s\n", marker, v)
	}
	return nil
}

// #endregion detail-mode

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
