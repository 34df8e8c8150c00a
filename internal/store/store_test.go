package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/active-query/internal/dataset"
	"github.com/danielpatrickdp/active-query/internal/querystrategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func intPtr(i int) *int { return &i }

// #region runs

func TestCreateRunAndGetCurrent(t *testing.T) {
	s := tempDB(t)

	run, rec, err := s.CreateRun("Entropy Sampler", "name: entropy\n")
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, rec.VersionID, run.ActiveVersion)
	assert.Empty(t, rec.ParentID)
	assert.True(t, rec.State.IsZero())

	cur, err := s.GetCurrent(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, rec.VersionID, cur.VersionID)
	assert.Equal(t, run.RunID, cur.RunID)

	got, err := s.GetRun(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, "Entropy Sampler", got.Strategy)
	assert.Equal(t, "name: entropy\n", got.ConfigYAML)
	assert.Equal(t, rec.VersionID, got.ActiveVersion)
}

func TestListRuns(t *testing.T) {
	s := tempDB(t)
	_, _, err := s.CreateRun("a", "")
	require.NoError(t, err)
	_, _, err = s.CreateRun("b", "")
	require.NoError(t, err)

	runs, err := s.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Empty(t, runs[0].ConfigYAML)

	runs, err = s.ListRuns(1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestMissingRun(t *testing.T) {
	s := tempDB(t)
	_, err := s.GetRun("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetCurrent("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetVersion("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

// #endregion runs

// #region versions

func TestCommitAndRollback(t *testing.T) {
	s := tempDB(t)
	run, v1, err := s.CreateRun("combined", "")
	require.NoError(t, err)

	st := querystrategy.State{Children: []querystrategy.State{
		{Previous: []float64{0.25, -1.5}, Pending: intPtr(0), Recorded: true, InitialUnlabeled: 9},
		{},
	}}
	v2, err := s.CommitState(StateRecord{RunID: run.RunID, ParentID: v1.VersionID, State: st})
	require.NoError(t, err)
	assert.NotEmpty(t, v2.VersionID)

	cur, err := s.GetCurrent(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, v2.VersionID, cur.VersionID)
	assert.Equal(t, v1.VersionID, cur.ParentID)
	assert.Equal(t, st, cur.State)

	require.NoError(t, s.Rollback(run.RunID, v1.VersionID))
	cur, err = s.GetCurrent(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, v1.VersionID, cur.VersionID)

	versions, err := s.ListVersions(run.RunID, 10)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestRollbackGuards(t *testing.T) {
	s := tempDB(t)
	runA, _, err := s.CreateRun("a", "")
	require.NoError(t, err)
	_, vB, err := s.CreateRun("b", "")
	require.NoError(t, err)

	assert.ErrorIs(t, s.Rollback(runA.RunID, "missing"), ErrNotFound)
	assert.ErrorIs(t, s.Rollback(runA.RunID, vB.VersionID), ErrNotFound)
}

func TestCommitUnknownRun(t *testing.T) {
	s := tempDB(t)
	_, err := s.CommitState(StateRecord{RunID: "ghost"})
	require.Error(t, err)
}

func TestSnapshotRecordRestores(t *testing.T) {
	s := tempDB(t)
	strat := querystrategy.NewLeastConfidenceDynamicBias(querystrategy.WithModelChange())
	require.NoError(t, strat.Restore(querystrategy.State{
		Previous: []float64{0.1, 0.2}, Pending: intPtr(1), Recorded: true, InitialUnlabeled: 3,
	}))

	run, v1, err := s.CreateRun(strat.Name(), "")
	require.NoError(t, err)
	_, err = s.CommitState(SnapshotRecord(run.RunID, v1.VersionID, strat))
	require.NoError(t, err)

	cur, err := s.GetCurrent(run.RunID)
	require.NoError(t, err)
	fresh := querystrategy.NewLeastConfidenceDynamicBias(querystrategy.WithModelChange())
	require.NoError(t, querystrategy.RestoreInto(fresh, cur.State))
	assert.Equal(t, strat.Snapshot(), fresh.Snapshot())
}

// #endregion versions

// #region decisions

func TestLogAndListDecisions(t *testing.T) {
	s := tempDB(t)
	run, v1, err := s.CreateRun("entropy", "")
	require.NoError(t, err)

	round, err := s.NextRound(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, 1, round)

	d, err := s.LogDecision(Decision{
		RunID: run.RunID, VersionID: v1.VersionID, Round: round,
		ChosenIndex: 2, Unlabeled: 4, Labeled: 3,
		Scores: []float64{0.5, -0.25, 1.75, 0},
	})
	require.NoError(t, err)
	assert.NotZero(t, d.ID)
	assert.Equal(t, -0.25, d.ScoreMin)
	assert.Equal(t, 1.75, d.ScoreMax)

	_, err = s.LogDecision(Decision{RunID: run.RunID, VersionID: v1.VersionID, Round: 2, ChosenIndex: 0, Unlabeled: 3, Labeled: 4, Scores: []float64{1}})
	require.NoError(t, err)

	got, err := s.ListDecisions(run.RunID, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Round)
	assert.Equal(t, []float64{0.5, -0.25, 1.75, 0}, got[1].Scores)
	assert.Equal(t, 2, got[1].ChosenIndex)

	round, err = s.NextRound(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, 3, round)
}

func TestCommitRound(t *testing.T) {
	s := tempDB(t)
	run, v1, err := s.CreateRun("entropy", "")
	require.NoError(t, err)

	rec, d, err := s.CommitRound(
		StateRecord{RunID: run.RunID, ParentID: v1.VersionID, State: querystrategy.State{Pending: intPtr(1)}},
		Decision{ChosenIndex: 1, Unlabeled: 3, Labeled: 2, Scores: []float64{0.1, 0.9, 0.4}},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Round)
	assert.Equal(t, run.RunID, d.RunID)
	assert.Equal(t, rec.VersionID, d.VersionID)
	assert.Equal(t, 0.9, d.ScoreMax)

	cur, err := s.GetCurrent(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, rec.VersionID, cur.VersionID)

	_, d2, err := s.CommitRound(
		StateRecord{RunID: run.RunID, ParentID: rec.VersionID},
		Decision{ChosenIndex: 0, Unlabeled: 2, Labeled: 3, Scores: []float64{1, 0}},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, d2.Round)
}

func TestCommitRoundIsAtomic(t *testing.T) {
	s := tempDB(t)
	run, v1, err := s.CreateRun("entropy", "")
	require.NoError(t, err)

	// Round 2 is already taken, so the decision insert of the next commit fails.
	_, err = s.LogDecision(Decision{RunID: run.RunID, VersionID: v1.VersionID, Round: 2, Unlabeled: 1, Labeled: 1})
	require.NoError(t, err)

	_, _, err = s.CommitRound(
		StateRecord{RunID: run.RunID, ParentID: v1.VersionID, State: querystrategy.State{Pending: intPtr(0)}},
		Decision{ChosenIndex: 0, Unlabeled: 1, Labeled: 1, Scores: []float64{1}},
	)
	require.Error(t, err)

	cur, err := s.GetCurrent(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, v1.VersionID, cur.VersionID)
	versions, err := s.ListVersions(run.RunID, 10)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
	decisions, err := s.ListDecisions(run.RunID, 10)
	require.NoError(t, err)
	assert.Len(t, decisions, 1)

	_, _, err = s.CommitRound(StateRecord{RunID: "no-such-run"}, Decision{})
	require.Error(t, err)
}

func TestScoreEncodingRoundTrip(t *testing.T) {
	in := []float64{0, 1e-300, -3.5, 42}
	assert.Equal(t, in, decodeScores(encodeScores(in)))
	assert.Empty(t, decodeScores(nil))
}

func TestDecisionFromQuery(t *testing.T) {
	s := tempDB(t)
	u, err := dataset.New([][]float64{{0, 0}, {9, 9}, {0.2, 0.1}}, nil)
	require.NoError(t, err)
	l, err := dataset.New([][]float64{{0, 1}, {1, 0}}, []float64{0, 1})
	require.NoError(t, err)
	args := querystrategy.Args{U: u, L: l}

	strat, err := querystrategy.NewMinMax("euclidean")
	require.NoError(t, err)
	idx, scores, err := querystrategy.QueryWithScores(context.Background(), strat, args)
	require.NoError(t, err)

	run, v1, err := s.CreateRun(strat.Name(), "")
	require.NoError(t, err)
	d, err := s.LogDecision(Decision{RunID: run.RunID, VersionID: v1.VersionID, Round: 1, ChosenIndex: idx, Unlabeled: u.Len(), Labeled: l.Len(), Scores: scores})
	require.NoError(t, err)
	assert.Equal(t, 1, d.ChosenIndex)
}

// #endregion decisions
