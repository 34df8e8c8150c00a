package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLookupBuiltins(t *testing.T) {
	tests := []struct {
		name string
		u, v []float64
		want float64
	}{
		{Euclidean, []float64{0, 0}, []float64{3, 4}, 5},
		{SqEuclidean, []float64{0, 0}, []float64{3, 4}, 25},
		{Cityblock, []float64{0, 0}, []float64{3, 4}, 7},
		{Chebyshev, []float64{0, 0}, []float64{3, 4}, 4},
		{Cosine, []float64{1, 0}, []float64{0, 1}, 1},
		{Correlation, []float64{1, 2, 3}, []float64{3, 2, 1}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Lookup(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.name, m.Name())
			assert.InDelta(t, tt.want, m.Between(tt.u, tt.v, nil), 1e-12)
		})
	}
}

func TestLookupDefaultsToEuclidean(t *testing.T) {
	m, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, Euclidean, m.Name())
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("hamming-ish")
	require.ErrorIs(t, err, ErrUnknownMetric)
}

func TestRegisterCustomMetric(t *testing.T) {
	err := Register("always-one", func(u, v []float64) float64 { return 1 })
	require.NoError(t, err)

	m, err := Lookup("always-one")
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.Between([]float64{0}, []float64{9}, nil))
	assert.Contains(t, Names(), "always-one")

	err = Register(Euclidean, func(u, v []float64) float64 { return 0 })
	require.ErrorIs(t, err, ErrDuplicateMetric)
}

func TestCosineOfZeroVectorIsNaN(t *testing.T) {
	m, _ := Lookup(Cosine)
	assert.True(t, math.IsNaN(m.Between([]float64{0, 0}, []float64{1, 1}, nil)))
}

func TestPairwise(t *testing.T) {
	m, _ := Lookup(Euclidean)
	a := mat.NewDense(2, 2, []float64{0, 0, 1, 1})
	b := mat.NewDense(3, 2, []float64{0, 0, 3, 4, 1, 1})

	d, err := Pairwise(m, a, b, nil)
	require.NoError(t, err)
	r, c := d.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.InDelta(t, 5.0, d.At(0, 1), 1e-12)
	assert.InDelta(t, 0.0, d.At(1, 2), 1e-12)
}

func TestToPoint(t *testing.T) {
	m, _ := Lookup(Cityblock)
	x := mat.NewDense(2, 2, []float64{1, 1, 2, 3})
	d, err := ToPoint(m, []float64{0, 0}, x, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 5}, d)
}

func TestMahalanobisNeedsInverse(t *testing.T) {
	m, _ := Lookup(Mahalanobis)
	assert.True(t, m.NeedsInverseCovariance())

	a := mat.NewDense(1, 2, []float64{0, 0})
	_, err := Pairwise(m, a, a, nil)
	require.ErrorIs(t, err, ErrMissingInverse)
}

func TestMahalanobisWithIdentityEqualsEuclidean(t *testing.T) {
	m, _ := Lookup(Mahalanobis)
	vi := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	assert.InDelta(t, 5.0, m.Between([]float64{0, 0}, []float64{3, 4}, vi), 1e-12)
}

func TestInverseCovarianceOfDiagonalData(t *testing.T) {
	// feature variances 1 and 4, uncorrelated
	x := mat.NewDense(4, 2, []float64{
		1, 2,
		-1, -2,
		1, -2,
		-1, 2,
	})
	vi, err := InverseCovariance(x)
	require.NoError(t, err)

	// cov = diag(4/3, 16/3)
	assert.InDelta(t, 3.0/4.0, vi.At(0, 0), 1e-9)
	assert.InDelta(t, 3.0/16.0, vi.At(1, 1), 1e-9)
	assert.InDelta(t, 0.0, vi.At(0, 1), 1e-9)
}

func TestInverseCovarianceRankDeficient(t *testing.T) {
	// second feature is constant: covariance is singular, pinv still defined
	x := mat.NewDense(3, 2, []float64{1, 5, 2, 5, 3, 5})
	vi, err := InverseCovariance(x)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, vi.At(0, 0), 1e-9)
	assert.InDelta(t, 0.0, vi.At(1, 1), 1e-9)
}

func TestInverseCovarianceTooFewRows(t *testing.T) {
	_, err := InverseCovariance(mat.NewDense(1, 2, []float64{1, 2}))
	require.ErrorIs(t, err, ErrTooFewRows)
}
