// Package weights validates and standardizes spatial weights matrices and
// group-membership structures before a model is constructed.
//
// All checks here are construction-time checks: a dimension disagreement is
// fatal and names both offending inputs and their sizes.
package weights

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/aretw0/gibbs/pkg/domain"
)

// RowStandardize scales every row of W to sum to one (the "r" transform).
// Rows that sum to zero (islands) are left untouched.
func RowStandardize(W *mat.Dense) *mat.Dense {
	r, c := W.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		sum := 0.0
		for j := 0; j < c; j++ {
			sum += W.At(i, j)
		}
		if sum == 0 {
			continue
		}
		for j := 0; j < c; j++ {
			out.Set(i, j, W.At(i, j)/sum)
		}
	}
	return out
}

// Validate checks and row-standardizes the lower- and upper-level weights.
// W must be N x N over lower-level observations and M must be J x J over
// groups, with N >= J.
func Validate(W, M *mat.Dense) (*mat.Dense, *mat.Dense, error) {
	wr, wc := W.Dims()
	if wr != wc {
		return nil, nil, fmt.Errorf("lower-level weights are %dx%d, not square: %w",
			wr, wc, domain.ErrDimensionMismatch)
	}
	mr, mc := M.Dims()
	if mr != mc {
		return nil, nil, fmt.Errorf("upper-level weights are %dx%d, not square: %w",
			mr, mc, domain.ErrDimensionMismatch)
	}
	if wr < mr {
		return nil, nil, fmt.Errorf("lower-level weights order W (%d) is smaller than upper-level M (%d): %w",
			wr, mr, domain.ErrDimensionMismatch)
	}
	return RowStandardize(W), RowStandardize(M), nil
}

// CheckCovariates verifies that a covariate matrix has one row per
// observation of the matching weights matrix.
func CheckCovariates(name string, X mat.Matrix, W mat.Matrix) error {
	xr, _ := X.Dims()
	wr, _ := W.Dims()
	if xr != wr {
		return fmt.Errorf("number of observations does not match between %s (%d) and weights (%d): %w",
			name, xr, wr, domain.ErrDimensionMismatch)
	}
	return nil
}

// DeltaFromMembership builds the N x J group indicator matrix from a
// membership vector assigning each lower-level observation to a group.
func DeltaFromMembership(membership []int, nGroups int) (*mat.Dense, error) {
	n := len(membership)
	if n == 0 {
		return nil, fmt.Errorf("empty membership vector: %w", domain.ErrDimensionMismatch)
	}
	delta := mat.NewDense(n, nGroups, nil)
	for i, g := range membership {
		if g < 0 || g >= nGroups {
			return nil, fmt.Errorf("observation %d assigned to group %d of %d: %w",
				i, g, nGroups, domain.ErrDimensionMismatch)
		}
		delta.Set(i, g, 1)
	}
	return delta, nil
}

// MembershipFromDelta recovers the membership vector from an indicator
// matrix. Every row must contain exactly one unit entry.
func MembershipFromDelta(delta *mat.Dense) ([]int, error) {
	n, j := delta.Dims()
	membership := make([]int, n)
	for i := 0; i < n; i++ {
		found := -1
		for g := 0; g < j; g++ {
			switch delta.At(i, g) {
			case 0:
			case 1:
				if found >= 0 {
					return nil, fmt.Errorf("indicator row %d has multiple group assignments: %w",
						i, domain.ErrDimensionMismatch)
				}
				found = g
			default:
				return nil, fmt.Errorf("indicator row %d holds %g, want 0 or 1: %w",
					i, delta.At(i, g), domain.ErrDimensionMismatch)
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("indicator row %d has no group assignment: %w",
				i, domain.ErrDimensionMismatch)
		}
		membership[i] = found
	}
	return membership, nil
}

// DeltaMembers reconciles an indicator matrix and a membership vector: either
// may be nil and is derived from the other; when both are given they must
// agree. nObs and nGroups pin the expected shape.
func DeltaMembers(delta *mat.Dense, membership []int, nObs, nGroups int) (*mat.Dense, []int, error) {
	switch {
	case delta == nil && membership == nil:
		return nil, nil, fmt.Errorf("either a membership vector or an indicator matrix is required: %w",
			domain.ErrDimensionMismatch)
	case delta == nil:
		if len(membership) != nObs {
			return nil, nil, fmt.Errorf("membership has %d entries for %d observations: %w",
				len(membership), nObs, domain.ErrDimensionMismatch)
		}
		d, err := DeltaFromMembership(membership, nGroups)
		if err != nil {
			return nil, nil, err
		}
		return d, membership, nil
	default:
		dr, dc := delta.Dims()
		if dr != nObs || dc != nGroups {
			return nil, nil, fmt.Errorf("indicator matrix is %dx%d, want %dx%d: %w",
				dr, dc, nObs, nGroups, domain.ErrDimensionMismatch)
		}
		derived, err := MembershipFromDelta(delta)
		if err != nil {
			return nil, nil, err
		}
		if membership != nil {
			if len(membership) != nObs {
				return nil, nil, fmt.Errorf("membership has %d entries for %d observations: %w",
					len(membership), nObs, domain.ErrDimensionMismatch)
			}
			for i := range membership {
				if membership[i] != derived[i] {
					return nil, nil, fmt.Errorf("membership and indicator matrix disagree at observation %d (%d vs %d): %w",
						i, membership[i], derived[i], domain.ErrDimensionMismatch)
				}
			}
		}
		return delta, derived, nil
	}
}

// EigenRange computes the extremal real eigenvalues of a weights matrix.
// The reciprocals bound the admissible range of the matching spatial
// dependence parameter.
func EigenRange(W *mat.Dense) (emin, emax float64, err error) {
	r, c := W.Dims()
	if r != c {
		return 0, 0, fmt.Errorf("weights are %dx%d, not square: %w", r, c, domain.ErrDimensionMismatch)
	}
	var eig mat.Eigen
	if ok := eig.Factorize(W, mat.EigenNone); !ok {
		return 0, 0, fmt.Errorf("eigenvalue decomposition of %dx%d weights failed", r, c)
	}
	values := eig.Values(nil)
	emin, emax = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		re := real(v)
		if re < emin {
			emin = re
		}
		if re > emax {
			emax = re
		}
	}
	return emin, emax, nil
}

// TruncationBounds converts an eigenvalue range into the admissible interval
// [1/emin, 1/emax] for the spatial parameter. For a row-standardized matrix
// the upper bound is 1.
func TruncationBounds(emin, emax float64) (lower, upper float64) {
	return 1 / emin, 1 / emax
}
