package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/danielpatrickdp/active-query/internal/classifier"
	"github.com/danielpatrickdp/active-query/internal/config"
	"github.com/danielpatrickdp/active-query/internal/dataset"
	"github.com/danielpatrickdp/active-query/internal/querystrategy"
	"github.com/danielpatrickdp/active-query/internal/store"
	"github.com/spf13/cobra"
)

type queryOpts struct {
	configPath string
	dataPath   string
	runID      string
	jsonOut    bool
}

// queryResult is what query prints with --json.
type queryResult struct {
	Index     int       `json:"index"`
	Strategy  string    `json:"strategy"`
	Unlabeled int       `json:"unlabeled"`
	Labeled   int       `json:"labeled"`
	Scores    []float64 `json:"scores"`
	RunID     string    `json:"run_id,omitempty"`
	VersionID string    `json:"version_id,omitempty"`
	Round     int       `json:"round,omitempty"`
}

func newQueryCmd(g *globals) *cobra.Command {
	o := &queryOpts{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Score the unlabeled pool and print the index to label next",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := runQuery(cmd, g, o)
			if err != nil {
				return err
			}
			if o.jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Index)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "", "strategy YAML file")
	f.StringVar(&o.dataPath, "data", "", "JSON bundle with the unlabeled and labeled sets")
	f.StringVar(&g.proc.ClassifierAddr, "classifier-addr", g.proc.ClassifierAddr, "host:port of the model service (env "+config.EnvClassifierAddr+")")
	f.StringVar(&o.runID, "run", "", "continue this run; a new run is created when empty")
	f.BoolVar(&o.jsonOut, "json", false, "print the result as JSON")
	dbFlag(cmd, g)
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

// #region run-query

// runQuery performs one round. With a database the strategy's memory is
// restored from the run's active version first, and the post-choice state is
// committed as a new version along with a decision row.
func runQuery(cmd *cobra.Command, g *globals, o *queryOpts) (queryResult, error) {
	ctx := cmd.Context()
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return queryResult{}, err
	}
	if err := g.applyLogSpec(cmd, cfg.Log); err != nil {
		return queryResult{}, err
	}
	s, err := config.Build(cfg.Strategy)
	if err != nil {
		return queryResult{}, err
	}
	u, l, err := dataset.LoadBundle(o.dataPath)
	if err != nil {
		return queryResult{}, err
	}

	args := querystrategy.Args{U: u, L: l}
	if g.proc.ClassifierAddr != "" {
		remote, err := classifier.NewRemote(g.proc.ClassifierAddr)
		if err != nil {
			return queryResult{}, err
		}
		defer remote.Close()
		args.Clf = remote
	}

	if g.proc.DBPath == "" {
		if o.runID != "" {
			return queryResult{}, fmt.Errorf("--run needs --db")
		}
		idx, scores, err := querystrategy.QueryWithScores(ctx, s, args)
		if err != nil {
			return queryResult{}, err
		}
		return queryResult{Index: idx, Strategy: s.Name(), Unlabeled: u.Len(), Labeled: l.Len(), Scores: scores}, nil
	}

	st, err := store.NewStore(g.proc.DBPath)
	if err != nil {
		return queryResult{}, err
	}
	defer st.Close()

	run, parent, err := openRun(st, o.runID, s, cfg.Strategy)
	if err != nil {
		return queryResult{}, err
	}

	idx, scores, err := querystrategy.QueryWithScores(ctx, s, args)
	if err != nil {
		return queryResult{}, err
	}

	rec, dec, err := st.CommitRound(store.SnapshotRecord(run.RunID, parent.VersionID, s), store.Decision{
		ChosenIndex: idx,
		Unlabeled:   u.Len(),
		Labeled:     l.Len(),
		Scores:      scores,
	})
	if err != nil {
		return queryResult{}, err
	}
	round := dec.Round
	slog.Info("query committed", "run", run.RunID, "version", rec.VersionID, "round", round, "index", idx)

	return queryResult{
		Index:     idx,
		Strategy:  s.Name(),
		Unlabeled: u.Len(),
		Labeled:   l.Len(),
		Scores:    scores,
		RunID:     run.RunID,
		VersionID: rec.VersionID,
		Round:     round,
	}, nil
}

// openRun creates a run when runID is empty, otherwise loads it and restores
// its active state into s.
func openRun(st *store.Store, runID string, s querystrategy.Strategy, spec config.StrategySpec) (store.Run, store.StateRecord, error) {
	if runID == "" {
		yml, err := spec.Marshal()
		if err != nil {
			return store.Run{}, store.StateRecord{}, err
		}
		run, rec, err := st.CreateRun(s.Name(), yml)
		if err != nil {
			return store.Run{}, store.StateRecord{}, err
		}
		slog.Info("run created", "run", run.RunID, "strategy", run.Strategy)
		return run, rec, nil
	}

	run, err := st.GetRun(runID)
	if err != nil {
		return store.Run{}, store.StateRecord{}, err
	}
	if run.Strategy != s.Name() {
		return store.Run{}, store.StateRecord{}, fmt.Errorf("run %s uses %q, config builds %q: %w",
			runID, run.Strategy, s.Name(), querystrategy.ErrInvalidArgument)
	}
	rec, err := st.GetCurrent(runID)
	if err != nil {
		return store.Run{}, store.StateRecord{}, err
	}
	if err := querystrategy.RestoreInto(s, rec.State); err != nil {
		return store.Run{}, store.StateRecord{}, err
	}
	slog.Debug("state restored", "run", runID, "version", rec.VersionID)
	return run, rec, nil
}

// #endregion run-query
