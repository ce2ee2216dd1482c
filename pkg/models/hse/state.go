package hse

import (
	"gonum.org/v1/gonum/mat"
)

// Priors holds the hyperparameters of the conjugate blocks. The defaults are
// diffuse: zero means with precision 0.001*I, and IG(0.001, 0.001) scale
// priors on both variance components.
type Priors struct {
	BetasMean       *mat.VecDense
	BetasPrecision  *mat.SymDense
	GammasMean      *mat.VecDense
	GammasPrecision *mat.SymDense

	Sigma2Shape float64 // v0 of the IG prior on Sigma2
	Sigma2Scale float64 // s0 of the IG prior on Sigma2
	Tau2Shape   float64
	Tau2Scale   float64
}

func defaultPriors(p, q int) Priors {
	bp := mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		bp.SetSym(i, i, 0.001)
	}
	gp := mat.NewSymDense(q, nil)
	for i := 0; i < q; i++ {
		gp.SetSym(i, i, 0.001)
	}
	return Priors{
		BetasMean:       mat.NewVecDense(p, nil),
		BetasPrecision:  bp,
		GammasMean:      mat.NewVecDense(q, nil),
		GammasPrecision: gp,
		Sigma2Shape:     0.001,
		Sigma2Scale:     0.001,
		Tau2Shape:       0.001,
		Tau2Scale:       0.001,
	}
}

func (p Priors) clone() Priors {
	cp := p
	cp.BetasMean = mat.VecDenseCopyOf(p.BetasMean)
	cp.BetasPrecision = copySym(p.BetasPrecision)
	cp.GammasMean = mat.VecDenseCopyOf(p.GammasMean)
	cp.GammasPrecision = copySym(p.GammasPrecision)
	return cp
}

// State is the mutable bundle of current parameter values and the cached
// algebraic quantities the conditional draws share. Dimensions are fixed at
// construction; every cached quantity is refreshed whenever its inputs
// change (the spatial filters after an accepted Metropolis move, the linear
// predictors after every conjugate draw).
type State struct {
	// Dimensions.
	N, J, P, Q int

	// Data, fixed after construction.
	Y     *mat.VecDense // N
	X     *mat.Dense    // N x p
	W     *mat.Dense    // N x N, row-standardized
	M     *mat.Dense    // J x J, row-standardized
	Z     *mat.Dense    // J x q
	Delta *mat.Dense    // N x J indicator

	// Current parameter values.
	Betas  *mat.VecDense // p
	Alphas *mat.VecDense // J
	Gammas *mat.VecDense // q
	Sigma2 float64
	Tau2   float64
	Rho    float64
	Lambda float64

	// Truncation ranges from the extremal eigenvalues of W and M.
	RhoMin, RhoMax       float64
	LambdaMin, LambdaMax float64

	// Cached spatial filters and transformed data, finalized on the first
	// draw and refreshed after accepted Metropolis moves.
	A       *mat.Dense // I - Rho*W
	B       *mat.Dense // I - Lambda*M
	AX      *mat.Dense // A X
	ADelta  *mat.Dense // A Delta
	AY      *mat.VecDense
	BZ      *mat.Dense // B Z
	LogDetA float64
	LogDetB float64
}

func (s *State) clone() *State {
	cp := *s
	cp.Y = mat.VecDenseCopyOf(s.Y)
	cp.X = mat.DenseCopyOf(s.X)
	cp.W = mat.DenseCopyOf(s.W)
	cp.M = mat.DenseCopyOf(s.M)
	cp.Z = mat.DenseCopyOf(s.Z)
	cp.Delta = mat.DenseCopyOf(s.Delta)
	cp.Betas = mat.VecDenseCopyOf(s.Betas)
	cp.Alphas = mat.VecDenseCopyOf(s.Alphas)
	cp.Gammas = mat.VecDenseCopyOf(s.Gammas)
	if s.A != nil {
		cp.A = mat.DenseCopyOf(s.A)
		cp.B = mat.DenseCopyOf(s.B)
		cp.AX = mat.DenseCopyOf(s.AX)
		cp.ADelta = mat.DenseCopyOf(s.ADelta)
		cp.AY = mat.VecDenseCopyOf(s.AY)
		cp.BZ = mat.DenseCopyOf(s.BZ)
	}
	return &cp
}

func copySym(s *mat.SymDense) *mat.SymDense {
	n, _ := s.Dims()
	out := mat.NewSymDense(n, nil)
	out.CopySym(s)
	return out
}
