package linalg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func TestDrawMVNPrecision_Deterministic(t *testing.T) {
	mean := mat.NewVecDense(3, []float64{1, 2, 3})
	precision := mat.NewSymDense(3, []float64{
		4, 0, 0,
		0, 4, 0,
		0, 0, 4,
	})

	a, err := DrawMVNPrecision(rand.New(rand.NewSource(7)), mean, precision)
	require.NoError(t, err)
	b, err := DrawMVNPrecision(rand.New(rand.NewSource(7)), mean, precision)
	require.NoError(t, err)

	assert.Equal(t, a.RawVector().Data, b.RawVector().Data, "same seed, same draw")
	for i := 0; i < 3; i++ {
		assert.False(t, math.IsNaN(a.AtVec(i)))
	}
}

func TestDrawMVNPrecision_RejectsIndefinite(t *testing.T) {
	mean := mat.NewVecDense(2, nil)
	bad := mat.NewSymDense(2, []float64{1, 2, 2, 1}) // eigenvalues 3, -1
	_, err := DrawMVNPrecision(rand.New(rand.NewSource(1)), mean, bad)
	assert.Error(t, err)
}

func TestSolvePrecisionMean(t *testing.T) {
	precision := mat.NewSymDense(2, []float64{2, 0, 0, 4})
	b := mat.NewVecDense(2, []float64{2, 2})
	m, err := SolvePrecisionMean(precision, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, m.AtVec(0), 1e-14)
	assert.InDelta(t, 0.5, m.AtVec(1), 1e-14)
}

func TestDrawInverseGamma_Positive(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		x := DrawInverseGamma(rng, 0.5, 0.5)
		assert.Greater(t, x, 0.0)
	}
}

func TestLogDet(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{2, 0, 0, 3})
	ld, err := LogDet(a)
	require.NoError(t, err)
	assert.InDelta(t, math.Log(6), ld, 1e-12)

	neg := mat.NewDense(2, 2, []float64{0, 1, 1, 0}) // determinant -1
	_, err = LogDet(neg)
	assert.Error(t, err)
}

func TestSpatialFilter(t *testing.T) {
	g := mat.NewDense(2, 2, []float64{0, 1, 1, 0})
	f := SpatialFilter(0.5, g)
	assert.Equal(t, 1.0, f.At(0, 0))
	assert.Equal(t, -0.5, f.At(0, 1))
	assert.Equal(t, -0.5, f.At(1, 0))
	assert.Equal(t, 1.0, f.At(1, 1))
}
