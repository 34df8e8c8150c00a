package querystrategy

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/danielpatrickdp/active-query/internal/dataset"
	"github.com/danielpatrickdp/active-query/internal/distance"
	"gonum.org/v1/gonum/mat"
)

// #region metric-cache

// metricState holds a validated metric and, for Mahalanobis, the inverse
// covariance computed from the first arguments seen.
type metricState struct {
	metric distance.Metric
	vi     *mat.Dense
}

func newMetricState(name string) (metricState, error) {
	m, err := distance.Lookup(name)
	if err != nil {
		return metricState{}, err
	}
	return metricState{metric: m}, nil
}

// Warm computes the Mahalanobis inverse covariance from U and L now instead
// of on the first Score. It does nothing for other metrics or when the
// matrix is already cached.
func (ms *metricState) Warm(args Args) error {
	if !ms.metric.NeedsInverseCovariance() || ms.vi != nil {
		return nil
	}
	all, err := dataset.Stack(args.U, args.L)
	if err != nil {
		return fmt.Errorf("mahalanobis covariance: %w", err)
	}
	vi, err := distance.InverseCovariance(all)
	if err != nil {
		return fmt.Errorf("mahalanobis covariance: %w", err)
	}
	ms.vi = vi
	slog.Debug("inverse covariance cached", "metric", ms.metric.Name(), "rows", all.RawMatrix().Rows)
	return nil
}

// Metric returns the configured metric name.
func (ms *metricState) Metric() string { return ms.metric.Name() }

func checkDistances(d []float64, what string) error {
	for i, v := range d {
		if math.IsNaN(v) {
			return fmt.Errorf("%s distance %d is NaN, check that input vectors are non-zero: %w", what, i, ErrDegenerateInput)
		}
	}
	return nil
}

// #endregion metric-cache

// #region distance-to-center

// DistanceToCenter prefers the row least similar to the mean of L, with
// similarity 1/(1+d).
type DistanceToCenter struct {
	Base
	metricState
}

// NewDistanceToCenter validates metric ("" means euclidean).
func NewDistanceToCenter(metric string) (*DistanceToCenter, error) {
	ms, err := newMetricState(metric)
	if err != nil {
		return nil, fmt.Errorf("distance to center: %w", err)
	}
	return &DistanceToCenter{metricState: ms}, nil
}

func (s *DistanceToCenter) Name() string { return "Distance to Center Sampler" }

func (s *DistanceToCenter) Score(_ context.Context, args Args) ([]float64, error) {
	if err := requireUnlabeled(args); err != nil {
		return nil, err
	}
	if args.L.Len() == 0 {
		return nil, fmt.Errorf("distance to center of empty labeled set: %w", ErrDegenerateInput)
	}
	if err := s.Warm(args); err != nil {
		return nil, err
	}
	center, err := args.L.Mean()
	if err != nil {
		return nil, fmt.Errorf("labeled center: %w", err)
	}
	d, err := distance.ToPoint(s.metric, center, args.U.X(), s.vi)
	if err != nil {
		return nil, err
	}
	if err := checkDistances(d, "center"); err != nil {
		return nil, err
	}
	for i, v := range d {
		d[i] = 1 / (1 + v)
	}
	return d, nil
}

func (s *DistanceToCenter) Choose(scores []float64) (int, error) { return Argmin(scores) }

// #endregion distance-to-center

// #region density

// Density prefers the row least similar, on average, to the rest of U.
type Density struct {
	Base
	metricState
}

// NewDensity validates metric ("" means euclidean).
func NewDensity(metric string) (*Density, error) {
	ms, err := newMetricState(metric)
	if err != nil {
		return nil, fmt.Errorf("density: %w", err)
	}
	return &Density{metricState: ms}, nil
}

func (s *Density) Name() string { return "Density Sampler" }

// Score returns the mean of 1/(1+d) from each row to every other row of U.
// A single row scores 0.
func (s *Density) Score(_ context.Context, args Args) ([]float64, error) {
	if err := requireUnlabeled(args); err != nil {
		return nil, err
	}
	n := args.U.Len()
	if n == 1 {
		return []float64{0}, nil
	}
	if err := s.Warm(args); err != nil {
		return nil, err
	}
	d, err := distance.Pairwise(s.metric, args.U.X(), args.U.X(), s.vi)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			v := d.At(i, j)
			if math.IsNaN(v) {
				return nil, fmt.Errorf("distance between rows %d and %d is NaN, check that input vectors are non-zero: %w", i, j, ErrDegenerateInput)
			}
			sum += 1 / (1 + v)
		}
		scores[i] = sum / float64(n-1)
	}
	return scores, nil
}

func (s *Density) Choose(scores []float64) (int, error) { return Argmin(scores) }

// #endregion density

// #region min-max

// MinMax prefers the row farthest from its nearest labeled neighbour.
type MinMax struct {
	Base
	metricState
}

// NewMinMax validates metric ("" means euclidean).
func NewMinMax(metric string) (*MinMax, error) {
	ms, err := newMetricState(metric)
	if err != nil {
		return nil, fmt.Errorf("min max: %w", err)
	}
	return &MinMax{metricState: ms}, nil
}

func (s *MinMax) Name() string { return "Min Max Sampler" }

// Score returns the distance from each row of U to its closest row of L.
func (s *MinMax) Score(_ context.Context, args Args) ([]float64, error) {
	if err := requireUnlabeled(args); err != nil {
		return nil, err
	}
	if args.L.Len() == 0 {
		return nil, fmt.Errorf("min max against empty labeled set: %w", ErrDegenerateInput)
	}
	if err := s.Warm(args); err != nil {
		return nil, err
	}
	d, err := distance.Pairwise(s.metric, args.U.X(), args.L.X(), s.vi)
	if err != nil {
		return nil, err
	}

	r, c := d.Dims()
	scores := make([]float64, r)
	for i := 0; i < r; i++ {
		row := d.RawRowView(i)
		if err := checkDistances(row, fmt.Sprintf("row %d labeled", i)); err != nil {
			return nil, err
		}
		best := row[0]
		for j := 1; j < c; j++ {
			if row[j] < best {
				best = row[j]
			}
		}
		scores[i] = best
	}
	return scores, nil
}

func (s *MinMax) Choose(scores []float64) (int, error) { return Argmax(scores) }

// #endregion min-max
