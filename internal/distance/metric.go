package distance

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// #region errors

var (
	// ErrUnknownMetric is returned for a metric name that is neither built in nor registered.
	ErrUnknownMetric = errors.New("unknown distance metric")
	// ErrDuplicateMetric is returned when registering over an existing name.
	ErrDuplicateMetric = errors.New("distance metric already registered")
	// ErrMissingInverse is returned when Mahalanobis is used without an inverse covariance.
	ErrMissingInverse = errors.New("mahalanobis needs an inverse covariance matrix")
)

// #endregion errors

// #region metric-names

// Built-in metric names.
const (
	Euclidean   = "euclidean"
	SqEuclidean = "sqeuclidean"
	Cityblock   = "cityblock"
	Chebyshev   = "chebyshev"
	Cosine      = "cosine"
	Correlation = "correlation"
	Mahalanobis = "mahalanobis"
)

// #endregion metric-names

// #region metric

// Func computes the distance between two equal-length vectors.
type Func func(u, v []float64) float64

// Metric is a validated distance metric. Obtain one with Lookup.
type Metric struct {
	name string
	fn   Func
	// mahalanobis metrics read the inverse covariance instead of fn
	mahalanobis bool
}

// Name returns the metric's registered name.
func (m Metric) Name() string { return m.name }

// NeedsInverseCovariance reports whether Between requires a VI matrix.
func (m Metric) NeedsInverseCovariance() bool { return m.mahalanobis }

// Between returns the distance between u and v. vi is only read by Mahalanobis.
func (m Metric) Between(u, v []float64, vi *mat.Dense) float64 {
	if m.mahalanobis {
		return mahalanobis(u, v, vi)
	}
	return m.fn(u, v)
}

// #endregion metric

// #region registry

var (
	registryMu sync.RWMutex
	registry   = map[string]Metric{
		Euclidean:   {name: Euclidean, fn: func(u, v []float64) float64 { return floats.Distance(u, v, 2) }},
		SqEuclidean: {name: SqEuclidean, fn: sqEuclidean},
		Cityblock:   {name: Cityblock, fn: func(u, v []float64) float64 { return floats.Distance(u, v, 1) }},
		Chebyshev:   {name: Chebyshev, fn: func(u, v []float64) float64 { return floats.Distance(u, v, math.Inf(1)) }},
		Cosine:      {name: Cosine, fn: cosine},
		Correlation: {name: Correlation, fn: correlation},
		Mahalanobis: {name: Mahalanobis, mahalanobis: true},
	}
)

// Lookup resolves a metric name. The empty name means Euclidean.
func Lookup(name string) (Metric, error) {
	if name == "" {
		name = Euclidean
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	m, ok := registry[name]
	if !ok {
		return Metric{}, fmt.Errorf("lookup %q: %w", name, ErrUnknownMetric)
	}
	return m, nil
}

// Register adds a custom metric under name. Built-in names cannot be replaced.
func Register(name string, fn Func) error {
	if name == "" || fn == nil {
		return fmt.Errorf("register metric: empty name or nil func")
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		return fmt.Errorf("register %q: %w", name, ErrDuplicateMetric)
	}
	registry[name] = Metric{name: name, fn: fn}
	return nil
}

// Names lists every known metric, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// #endregion registry

// #region formulas

func sqEuclidean(u, v []float64) float64 {
	var sum float64
	for i := range u {
		d := u[i] - v[i]
		sum += d * d
	}
	return sum
}

// cosine is NaN when either vector is all zeros.
func cosine(u, v []float64) float64 {
	return 1 - floats.Dot(u, v)/(floats.Norm(u, 2)*floats.Norm(v, 2))
}

func correlation(u, v []float64) float64 {
	cu := centered(u)
	cv := centered(v)
	return cosine(cu, cv)
}

func centered(u []float64) []float64 {
	out := make([]float64, len(u))
	copy(out, u)
	floats.AddConst(-floats.Sum(u)/float64(len(u)), out)
	return out
}

func mahalanobis(u, v []float64, vi *mat.Dense) float64 {
	if vi == nil {
		return math.NaN()
	}
	diff := make([]float64, len(u))
	floats.SubTo(diff, u, v)
	d := mat.NewVecDense(len(diff), diff)
	return math.Sqrt(mat.Inner(d, vi, d))
}

// #endregion formulas
