package distance

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// pinvRcond matches the relative singular-value cutoff of common
// pseudo-inverse implementations.
const pinvRcond = 1e-15

// ErrTooFewRows is returned when a covariance is requested from fewer than two rows.
var ErrTooFewRows = errors.New("covariance needs at least two rows")

// #region pairwise

// Pairwise returns the len(a)×len(b) matrix of distances between rows of a and b.
// vi is required for Mahalanobis and ignored otherwise.
func Pairwise(m Metric, a, b mat.Matrix, vi *mat.Dense) (*mat.Dense, error) {
	if m.NeedsInverseCovariance() && vi == nil {
		return nil, fmt.Errorf("pairwise %s: %w", m.Name(), ErrMissingInverse)
	}
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ca != cb {
		return nil, fmt.Errorf("pairwise %s: %d vs %d columns", m.Name(), ca, cb)
	}

	rowsA := rows(a)
	rowsB := rows(b)
	out := mat.NewDense(ra, rb, nil)
	for i := 0; i < ra; i++ {
		for j := 0; j < rb; j++ {
			out.Set(i, j, m.Between(rowsA[i], rowsB[j], vi))
		}
	}
	return out, nil
}

// ToPoint returns the distance from point to every row of x.
func ToPoint(m Metric, point []float64, x mat.Matrix, vi *mat.Dense) ([]float64, error) {
	if m.NeedsInverseCovariance() && vi == nil {
		return nil, fmt.Errorf("to point %s: %w", m.Name(), ErrMissingInverse)
	}
	r, c := x.Dims()
	if c != len(point) {
		return nil, fmt.Errorf("to point %s: %d vs %d columns", m.Name(), len(point), c)
	}
	out := make([]float64, r)
	for i, row := range rows(x) {
		out[i] = m.Between(point, row, vi)
	}
	return out, nil
}

func rows(x mat.Matrix) [][]float64 {
	r, _ := x.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, x)
	}
	return out
}

// #endregion pairwise

// #region inverse-covariance

// InverseCovariance returns the pseudo-inverse of the feature covariance of x
// (rows are observations). The pseudo-inverse keeps sparse, rank-deficient
// feature sets usable.
func InverseCovariance(x mat.Matrix) (*mat.Dense, error) {
	r, c := x.Dims()
	if r < 2 {
		return nil, fmt.Errorf("inverse covariance of %d rows: %w", r, ErrTooFewRows)
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, x, nil)
	return pseudoInverse(&cov, c)
}

func pseudoInverse(a mat.Matrix, n int) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, fmt.Errorf("pseudo-inverse: svd did not converge")
	}
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	cutoff := pinvRcond * floats.Max(values)
	inv := make([]float64, len(values))
	for k, s := range values {
		if s > cutoff {
			inv[k] = 1 / s
		}
	}

	// pinv = V · diag(inv) · Uᵀ
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sum float64
			for k := range values {
				if inv[k] == 0 {
					continue
				}
				sum += v.At(i, k) * inv[k] * u.At(j, k)
			}
			out.Set(i, j, sum)
		}
	}
	return out, nil
}

// #endregion inverse-covariance
