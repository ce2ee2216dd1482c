// Package linalg provides the small set of numerical primitives the
// conditional-draw implementations share: multivariate normal draws
// parameterized by precision, inverse-gamma draws, and numerically stable
// log-determinants.
package linalg

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DrawMVNPrecision samples from N(mean, P^{-1}) where P is a symmetric
// positive-definite precision matrix, via the Cholesky factor of P: with
// P = L L', solving L' x = z for z ~ N(0, I) yields x ~ N(0, P^{-1}).
func DrawMVNPrecision(rng *rand.Rand, mean *mat.VecDense, precision *mat.SymDense) (*mat.VecDense, error) {
	n := mean.Len()
	var chol mat.Cholesky
	if ok := chol.Factorize(precision); !ok {
		return nil, fmt.Errorf("precision matrix of order %d is not positive definite", n)
	}

	z := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		z.SetVec(i, rng.NormFloat64())
	}

	var u mat.TriDense
	chol.UTo(&u)
	x := mat.NewVecDense(n, nil)
	if err := x.SolveVec(&u, z); err != nil {
		return nil, fmt.Errorf("solve against cholesky factor: %w", err)
	}
	x.AddVec(x, mean)
	return x, nil
}

// SolvePrecisionMean computes P^{-1} b, the mean of a conjugate normal
// conditional given its precision P and linear term b.
func SolvePrecisionMean(precision *mat.SymDense, b *mat.VecDense) (*mat.VecDense, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(precision); !ok {
		n, _ := precision.Dims()
		return nil, fmt.Errorf("precision matrix of order %d is not positive definite", n)
	}
	out := mat.NewVecDense(b.Len(), nil)
	if err := chol.SolveVecTo(out, b); err != nil {
		return nil, fmt.Errorf("solve precision system: %w", err)
	}
	return out, nil
}

// DrawInverseGamma samples from the inverse-gamma distribution with the
// given shape and scale.
func DrawInverseGamma(rng *rand.Rand, shape, scale float64) float64 {
	ig := distuv.InverseGamma{Alpha: shape, Beta: scale, Src: rng}
	return ig.Rand()
}

// LogDet computes log|A| for a matrix with positive determinant, as needed
// by the spatial-transformation term of the Metropolis acceptance ratio.
// It fails rather than returning NaN when the determinant is non-positive.
func LogDet(a mat.Matrix) (float64, error) {
	det, sign := mat.LogDet(a)
	if sign <= 0 {
		return 0, fmt.Errorf("determinant is not positive (sign %g)", sign)
	}
	return det, nil
}

// SpatialFilter builds I - coef*G for a square weights matrix G.
func SpatialFilter(coef float64, g *mat.Dense) *mat.Dense {
	n, _ := g.Dims()
	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := -coef * g.At(i, j)
			if i == j {
				v++
			}
			out.Set(i, j, v)
		}
	}
	return out
}
