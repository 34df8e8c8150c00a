package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// #region errors

var (
	// ErrShape is returned when rows, columns or labels disagree in size.
	ErrShape = errors.New("dataset shape mismatch")
	// ErrEmpty is returned by reductions over a dataset with no rows.
	ErrEmpty = errors.New("dataset is empty")
	// ErrIndex is returned for a row index outside [0, Len).
	ErrIndex = errors.New("row index out of range")
)

// #endregion errors

// #region dataset

// Dataset is an ordered set of feature rows with optional labels.
// Row position is the identity strategies return; a Dataset is never
// mutated in place, Remove and Append return new values.
type Dataset struct {
	x    *mat.Dense // nil when the set has no rows
	y    []float64  // nil for unlabeled sets
	cols int
}

// New builds a dataset from rows. Pass nil labels for an unlabeled set.
func New(rows [][]float64, y []float64) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("new dataset: %w", ErrEmpty)
	}
	cols := len(rows[0])
	if cols == 0 {
		return nil, fmt.Errorf("new dataset: zero feature columns: %w", ErrShape)
	}
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("new dataset: row %d has %d columns, want %d: %w", i, len(r), cols, ErrShape)
		}
		data = append(data, r...)
	}
	return FromDense(mat.NewDense(len(rows), cols, data), y)
}

// FromDense wraps an existing matrix. The matrix is not copied.
func FromDense(x *mat.Dense, y []float64) (*Dataset, error) {
	r, c := x.Dims()
	if y != nil && len(y) != r {
		return nil, fmt.Errorf("from dense: %d labels for %d rows: %w", len(y), r, ErrShape)
	}
	return &Dataset{x: x, y: y, cols: c}, nil
}

// Empty returns a dataset with no rows and the given width.
func Empty(cols int, labeled bool) *Dataset {
	d := &Dataset{cols: cols}
	if labeled {
		d.y = []float64{}
	}
	return d
}

// #endregion dataset

// #region accessors

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil || d.x == nil {
		return 0
	}
	r, _ := d.x.Dims()
	return r
}

// Cols returns the number of feature columns.
func (d *Dataset) Cols() int {
	if d == nil {
		return 0
	}
	return d.cols
}

// X returns the feature matrix, or nil for an empty dataset.
func (d *Dataset) X() *mat.Dense {
	if d == nil {
		return nil
	}
	return d.x
}

// Y returns the label vector. Nil for unlabeled sets.
func (d *Dataset) Y() []float64 {
	if d == nil {
		return nil
	}
	return d.y
}

// Labeled reports whether the dataset carries labels.
func (d *Dataset) Labeled() bool {
	return d != nil && d.y != nil
}

// Row returns a copy of row i.
func (d *Dataset) Row(i int) []float64 {
	out := make([]float64, d.cols)
	copy(out, d.x.RawRowView(i))
	return out
}

// Rows returns a copy of every row.
func (d *Dataset) Rows() [][]float64 {
	out := make([][]float64, d.Len())
	for i := range out {
		out[i] = d.Row(i)
	}
	return out
}

// #endregion accessors

// #region row-move

// Remove returns row i, its label (0 for unlabeled sets) and the dataset without it.
func (d *Dataset) Remove(i int) ([]float64, float64, *Dataset, error) {
	n := d.Len()
	if i < 0 || i >= n {
		return nil, 0, nil, fmt.Errorf("remove row %d of %d: %w", i, n, ErrIndex)
	}
	row := d.Row(i)
	var label float64
	if d.y != nil {
		label = d.y[i]
	}

	if n == 1 {
		return row, label, Empty(d.cols, d.y != nil), nil
	}

	data := make([]float64, 0, (n-1)*d.cols)
	for r := 0; r < n; r++ {
		if r == i {
			continue
		}
		data = append(data, d.x.RawRowView(r)...)
	}
	var y []float64
	if d.y != nil {
		y = make([]float64, 0, n-1)
		y = append(y, d.y[:i]...)
		y = append(y, d.y[i+1:]...)
	}
	return row, label, &Dataset{x: mat.NewDense(n-1, d.cols, data), y: y, cols: d.cols}, nil
}

// Append returns the dataset with row added at the end. The label is
// ignored for unlabeled sets.
func (d *Dataset) Append(row []float64, label float64) (*Dataset, error) {
	if d.cols != 0 && len(row) != d.cols {
		return nil, fmt.Errorf("append row with %d columns, want %d: %w", len(row), d.cols, ErrShape)
	}
	n := d.Len()
	cols := len(row)
	data := make([]float64, 0, (n+1)*cols)
	for r := 0; r < n; r++ {
		data = append(data, d.x.RawRowView(r)...)
	}
	data = append(data, row...)

	var y []float64
	if d.y != nil {
		y = make([]float64, 0, n+1)
		y = append(y, d.y...)
		y = append(y, label)
	}
	return &Dataset{x: mat.NewDense(n+1, cols, data), y: y, cols: cols}, nil
}

// #endregion row-move

// #region reductions

// Mean returns the column means.
func (d *Dataset) Mean() ([]float64, error) {
	n := d.Len()
	if n == 0 {
		return nil, fmt.Errorf("mean: %w", ErrEmpty)
	}
	mean := make([]float64, d.cols)
	for r := 0; r < n; r++ {
		floats.Add(mean, d.x.RawRowView(r))
	}
	floats.Scale(1/float64(n), mean)
	return mean, nil
}

// PositiveFraction returns sum(y)/len(y), the share of positive labels
// for a binary 0/1 labeling.
func (d *Dataset) PositiveFraction() (float64, error) {
	if len(d.Y()) == 0 {
		return 0, fmt.Errorf("positive fraction: %w", ErrEmpty)
	}
	return floats.Sum(d.y) / float64(len(d.y)), nil
}

// Stack concatenates the rows of every non-empty dataset.
func Stack(sets ...*Dataset) (*mat.Dense, error) {
	var rows, cols int
	for _, s := range sets {
		if s.Len() == 0 {
			continue
		}
		if cols != 0 && s.Cols() != cols {
			return nil, fmt.Errorf("stack: %d columns vs %d: %w", s.Cols(), cols, ErrShape)
		}
		cols = s.Cols()
		rows += s.Len()
	}
	if rows == 0 {
		return nil, fmt.Errorf("stack: %w", ErrEmpty)
	}
	data := make([]float64, 0, rows*cols)
	for _, s := range sets {
		for r := 0; r < s.Len(); r++ {
			data = append(data, s.x.RawRowView(r)...)
		}
	}
	return mat.NewDense(rows, cols, data), nil
}

// #endregion reductions
