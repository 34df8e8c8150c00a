package classifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ErrUnknownRow is returned when a Table is asked about a row it was not given.
var ErrUnknownRow = errors.New("row not present in classifier table")

// #region table

// Entry is the fixed output of a Table for one feature row.
type Entry struct {
	Row      []float64
	Proba    []float64
	Decision []float64
}

// Table is a classifier with precomputed outputs keyed by feature values.
// It never changes between calls, which makes replays deterministic.
type Table struct {
	byKey map[string]Entry
}

// NewTable indexes entries by their feature rows.
func NewTable(entries []Entry) (*Table, error) {
	t := &Table{byKey: make(map[string]Entry, len(entries))}
	for i, e := range entries {
		k := rowKey(e.Row)
		if _, dup := t.byKey[k]; dup {
			return nil, fmt.Errorf("table entry %d: duplicate row %s", i, k)
		}
		t.byKey[k] = e
	}
	return t, nil
}

// PredictProba looks up every row's probabilities.
func (t *Table) PredictProba(_ context.Context, X mat.Matrix) (*mat.Dense, error) {
	return t.lookup(X, "proba", func(e Entry) []float64 { return e.Proba })
}

// DecisionFunction looks up every row's decision values.
func (t *Table) DecisionFunction(_ context.Context, X mat.Matrix) (*mat.Dense, error) {
	return t.lookup(X, "decision", func(e Entry) []float64 { return e.Decision })
}

func (t *Table) lookup(X mat.Matrix, what string, pick func(Entry) []float64) (*mat.Dense, error) {
	r, _ := X.Dims()
	if r == 0 {
		return nil, fmt.Errorf("%s: no rows", what)
	}
	var width int
	var data []float64
	for i := 0; i < r; i++ {
		row := mat.Row(nil, i, X)
		e, ok := t.byKey[rowKey(row)]
		if !ok {
			return nil, fmt.Errorf("%s row %d %s: %w", what, i, rowKey(row), ErrUnknownRow)
		}
		vals := pick(e)
		if len(vals) == 0 {
			return nil, fmt.Errorf("%s row %d: %w", what, i, ErrUnsupported)
		}
		if width == 0 {
			width = len(vals)
			data = make([]float64, 0, r*width)
		} else if len(vals) != width {
			return nil, fmt.Errorf("%s row %d: %d columns, want %d", what, i, len(vals), width)
		}
		data = append(data, vals...)
	}
	return mat.NewDense(r, width, data), nil
}

// #endregion table

// #region helpers

func rowKey(row []float64) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// #endregion helpers
