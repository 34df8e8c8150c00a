package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/danielpatrickdp/active-query/internal/config"
	"github.com/danielpatrickdp/active-query/internal/logging"
	"github.com/danielpatrickdp/active-query/internal/telemetry"
	"github.com/spf13/cobra"
)

// #region main

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// #endregion main

// #region root

// globals holds flags shared by every subcommand. Environment values seed
// the defaults; flags override them.
type globals struct {
	proc        config.Process
	metricsFile string
}

func newRootCmd() *cobra.Command {
	g := &globals{proc: config.FromEnv()}

	root := &cobra.Command{
		Use:           "querystrat",
		Short:         "Pick the next example to label from a pool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setLogger(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if g.metricsFile == "" {
				return nil
			}
			return telemetry.WriteTextfile(g.metricsFile)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.proc.LogLevel, "log-level", g.proc.LogLevel, "debug | info | warn | error (env "+config.EnvLogLevel+")")
	pf.StringVar(&g.proc.LogFormat, "log-format", g.proc.LogFormat, "text | json (env "+config.EnvLogFormat+")")
	pf.StringVar(&g.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(
		newQueryCmd(g),
		newReplayCmd(g),
		newInspectCmd(g),
		newRollbackCmd(g),
		newStrategiesCmd(),
	)
	return root
}

func (g *globals) setLogger(cmd *cobra.Command) error {
	logger, err := logging.New(logging.Config{
		Level:   g.proc.LogLevel,
		Format:  g.proc.LogFormat,
		Service: "querystrat",
		Output:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// applyLogSpec lets a config file's log section stand in for log flags the
// user did not pass.
func (g *globals) applyLogSpec(cmd *cobra.Command, spec config.LogSpec) error {
	changed := false
	if spec.Level != "" && !cmd.Flags().Changed("log-level") {
		g.proc.LogLevel, changed = spec.Level, true
	}
	if spec.Format != "" && !cmd.Flags().Changed("log-format") {
		g.proc.LogFormat, changed = spec.Format, true
	}
	if !changed {
		return nil
	}
	return g.setLogger(cmd)
}

// dbFlag registers --db with the environment fallback.
func dbFlag(cmd *cobra.Command, g *globals) {
	cmd.Flags().StringVar(&g.proc.DBPath, "db", g.proc.DBPath, "path to the state database (env "+config.EnvDB+")")
}

// errDiverged marks a replay whose choices differ from the fixture. It maps
// to exit status 1 without being reported as a failure to run.
type errDiverged struct{ mismatches int }

func (e errDiverged) Error() string {
	return fmt.Sprintf("replay diverged in %d round(s)", e.mismatches)
}

func exitCode(err error) int {
	var d errDiverged
	if errors.As(err, &d) {
		return 1
	}
	return 2
}

// #endregion root

// #region strategies

func newStrategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the strategy names a config file may use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range config.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// #endregion strategies
