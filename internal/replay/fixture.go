package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/active-query/internal/classifier"
	"github.com/danielpatrickdp/active-query/internal/config"
	"github.com/danielpatrickdp/active-query/internal/dataset"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a strategy,
// a pool with fixed classifier outputs and oracle labels, and the indices
// the strategy is expected to pick round by round.
type Fixture struct {
	Description string              `json:"description"`
	Strategy    config.StrategySpec `json:"strategy"`
	Unlabeled   []FixtureExample    `json:"unlabeled"`
	Labeled     FixtureLabeled      `json:"labeled"`
	Rounds      int                 `json:"rounds"`
	Expected    []int               `json:"expected"`
}

// FixtureExample is one unlabeled row, its oracle label, and what the
// classifier reports for it. The classifier output never changes between
// rounds.
type FixtureExample struct {
	X        []float64 `json:"x"`
	Label    float64   `json:"label"`
	Proba    []float64 `json:"proba,omitempty"`
	Decision []float64 `json:"decision,omitempty"`
}

// FixtureLabeled is the initial labeled set.
type FixtureLabeled struct {
	X [][]float64 `json:"x"`
	Y []float64   `json:"y"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if f.Rounds == 0 {
		f.Rounds = len(f.Expected)
	}
	if f.Rounds > len(f.Unlabeled) {
		return nil, fmt.Errorf("fixture %s: %d rounds with %d unlabeled rows", path, f.Rounds, len(f.Unlabeled))
	}
	return &f, nil
}

// ToPool converts the fixture's sets into a replay starting point.
func (f *Fixture) ToPool() (Pool, error) {
	if len(f.Unlabeled) == 0 {
		return Pool{}, fmt.Errorf("fixture has no unlabeled rows")
	}
	rows := make([][]float64, len(f.Unlabeled))
	labels := make([]float64, len(f.Unlabeled))
	entries := make([]classifier.Entry, len(f.Unlabeled))
	for i, ex := range f.Unlabeled {
		rows[i] = ex.X
		labels[i] = ex.Label
		entries[i] = classifier.Entry{Row: ex.X, Proba: ex.Proba, Decision: ex.Decision}
	}

	u, err := dataset.New(rows, nil)
	if err != nil {
		return Pool{}, fmt.Errorf("unlabeled set: %w", err)
	}
	var l *dataset.Dataset
	if len(f.Labeled.X) == 0 {
		l = dataset.Empty(u.Cols(), true)
	} else {
		l, err = dataset.New(f.Labeled.X, f.Labeled.Y)
		if err != nil {
			return Pool{}, fmt.Errorf("labeled set: %w", err)
		}
	}
	tbl, err := classifier.NewTable(entries)
	if err != nil {
		return Pool{}, fmt.Errorf("classifier table: %w", err)
	}
	return Pool{U: u, L: l, Oracle: labels, Clf: tbl}, nil
}

// #endregion fixture-loader
