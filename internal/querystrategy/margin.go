package querystrategy

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// #region simple-margin

// SimpleMargin prefers the row closest to a decision hyperplane.
type SimpleMargin struct{ Base }

func NewSimpleMargin() *SimpleMargin { return &SimpleMargin{} }

func (*SimpleMargin) Name() string { return "Simple Margin Sampler" }

// Score returns |decision| per row. With several hyperplanes a row scores its
// smallest absolute margin.
func (*SimpleMargin) Score(ctx context.Context, args Args) ([]float64, error) {
	d, err := decisionFunction(ctx, args)
	if err != nil {
		return nil, err
	}
	r, c := d.Dims()
	scores := make([]float64, r)
	for i := 0; i < r; i++ {
		best := math.Abs(d.At(i, 0))
		for j := 1; j < c; j++ {
			if v := math.Abs(d.At(i, j)); v < best {
				best = v
			}
		}
		scores[i] = best
	}
	return scores, nil
}

func (*SimpleMargin) Choose(scores []float64) (int, error) { return Argmin(scores) }

// #endregion simple-margin

// #region margin

// Margin prefers the row whose two most likely classes are closest.
type Margin struct{ Base }

func NewMargin() *Margin { return &Margin{} }

func (*Margin) Name() string { return "Margin Sampler" }

// Score returns top-1 minus top-2 probability per row.
func (*Margin) Score(ctx context.Context, args Args) ([]float64, error) {
	p, err := predictProba(ctx, args)
	if err != nil {
		return nil, err
	}
	r, c := p.Dims()
	if c < 2 {
		return nil, fmt.Errorf("margin needs two probability columns, got %d: %w", c, ErrUnsupported)
	}
	scores := make([]float64, r)
	for i := 0; i < r; i++ {
		row := mat.Row(nil, i, p)
		sort.Sort(sort.Reverse(sort.Float64Slice(row)))
		scores[i] = row[0] - row[1]
	}
	return scores, nil
}

func (*Margin) Choose(scores []float64) (int, error) { return Argmin(scores) }

// #endregion margin
