package replay

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielpatrickdp/active-query/internal/classifier"
	"github.com/danielpatrickdp/active-query/internal/config"
	"github.com/danielpatrickdp/active-query/internal/dataset"
	"github.com/danielpatrickdp/active-query/internal/querystrategy"
)

// #region types

// Pool is the state of a simulated labeling loop: the unlabeled set with the
// labels an oracle would give each row, the labeled set, and the classifier.
type Pool struct {
	U      *dataset.Dataset
	L      *dataset.Dataset
	Oracle []float64 // Oracle[i] labels U row i
	Clf    classifier.Classifier
}

// RoundResult captures one simulated query.
type RoundResult struct {
	Round       int
	ChosenIndex int
	Row         []float64
	Label       float64
	Unlabeled   int // |U| before the row was moved
	Labeled     int // |L| before the row was moved
	Scores      []float64
	Expected    int  // -1 when the fixture has no expectation for the round
	Match       bool // true when Expected is -1
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Strategy   string
	Rounds     int
	Matches    int
	Mismatches int
	Unchecked  int
	FinalState querystrategy.State
}

// Passed reports whether no round diverged.
func (s Summary) Passed() bool { return s.Mismatches == 0 }

// #endregion types

// #region replay

// Replay drives s for the given number of rounds the way an external loop
// would: query, label the chosen row from the oracle, move it from U to L.
// expected[i], when present, is compared with the index chosen in round i+1.
func Replay(ctx context.Context, s querystrategy.Strategy, pool Pool, rounds int, expected []int) ([]RoundResult, Pool, error) {
	if len(pool.Oracle) != pool.U.Len() {
		return nil, pool, fmt.Errorf("replay: %d oracle labels for %d unlabeled rows", len(pool.Oracle), pool.U.Len())
	}
	results := make([]RoundResult, 0, rounds)

	for r := 0; r < rounds; r++ {
		args := querystrategy.Args{U: pool.U, L: pool.L, Clf: pool.Clf}
		idx, scores, err := querystrategy.QueryWithScores(ctx, s, args)
		if err != nil {
			return results, pool, fmt.Errorf("round %d: %w", r+1, err)
		}

		res := RoundResult{
			Round:       r + 1,
			ChosenIndex: idx,
			Label:       pool.Oracle[idx],
			Unlabeled:   pool.U.Len(),
			Labeled:     pool.L.Len(),
			Scores:      scores,
			Expected:    -1,
			Match:       true,
		}
		if r < len(expected) {
			res.Expected = expected[r]
			res.Match = expected[r] == idx
		}

		pool, res.Row, err = move(pool, idx)
		if err != nil {
			return results, pool, fmt.Errorf("round %d: %w", r+1, err)
		}
		results = append(results, res)
		slog.Debug("replay round", "round", res.Round, "index", idx, "match", res.Match)
	}
	return results, pool, nil
}

// move labels U row i from the oracle and appends it to L.
func move(p Pool, i int) (Pool, []float64, error) {
	row, _, u, err := p.U.Remove(i)
	if err != nil {
		return p, nil, fmt.Errorf("remove chosen row: %w", err)
	}
	label := p.Oracle[i]
	l, err := p.L.Append(row, label)
	if err != nil {
		return p, nil, fmt.Errorf("append to labeled: %w", err)
	}
	oracle := make([]float64, 0, len(p.Oracle)-1)
	oracle = append(oracle, p.Oracle[:i]...)
	oracle = append(oracle, p.Oracle[i+1:]...)
	return Pool{U: u, L: l, Oracle: oracle, Clf: p.Clf}, row, nil
}

// RunFixture builds the fixture's strategy and replays it.
func RunFixture(ctx context.Context, f *Fixture) ([]RoundResult, Summary, error) {
	s, err := config.Build(f.Strategy)
	if err != nil {
		return nil, Summary{}, fmt.Errorf("build strategy: %w", err)
	}
	pool, err := f.ToPool()
	if err != nil {
		return nil, Summary{}, err
	}
	results, _, err := Replay(ctx, s, pool, f.Rounds, f.Expected)
	if err != nil {
		return results, Summary{}, err
	}
	return results, Summarize(s, results), nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(s querystrategy.Strategy, results []RoundResult) Summary {
	sum := Summary{
		Strategy:   s.Name(),
		Rounds:     len(results),
		FinalState: querystrategy.SnapshotOf(s),
	}
	for _, r := range results {
		switch {
		case r.Expected < 0:
			sum.Unchecked++
		case r.Match:
			sum.Matches++
		default:
			sum.Mismatches++
		}
	}
	return sum
}

// #endregion replay
