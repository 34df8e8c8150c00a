package main

import (
	"fmt"
	"log/slog"

	"github.com/danielpatrickdp/active-query/internal/store"
	"github.com/spf13/cobra"
)

func newRollbackCmd(g *globals) *cobra.Command {
	var runID, versionID string
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Point a run's active state at an earlier version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if g.proc.DBPath == "" {
				return fmt.Errorf("rollback needs --db")
			}
			st, err := store.NewStore(g.proc.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			before, err := st.GetRun(runID)
			if err != nil {
				return err
			}
			if err := st.Rollback(runID, versionID); err != nil {
				return err
			}
			slog.Info("rolled back", "run", runID, "from", before.ActiveVersion, "to", versionID)
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", before.ActiveVersion, versionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "run id")
	cmd.Flags().StringVar(&versionID, "version", "", "version id to make active")
	dbFlag(cmd, g)
	_ = cmd.MarkFlagRequired("run")
	_ = cmd.MarkFlagRequired("version")
	return cmd
}
