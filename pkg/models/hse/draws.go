package hse

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/aretw0/gibbs/pkg/models/linalg"
)

// drawBetas samples the lower-level coefficients from their exact
// multivariate-normal conditional on the spatially filtered scale.
func (m *Model) drawBetas(rng *rand.Rand) error {
	st := m.state

	// r = A(y - Delta*Alphas), using the cached transforms.
	r := mat.NewVecDense(st.N, nil)
	r.MulVec(st.ADelta, st.Alphas)
	r.SubVec(st.AY, r)

	var prec mat.SymDense
	prec.SymOuterK(1/st.Sigma2, st.AX.T())
	prec.AddSym(&prec, m.priors.BetasPrecision)

	b := mat.NewVecDense(st.P, nil)
	b.MulVec(st.AX.T(), r)
	b.ScaleVec(1/st.Sigma2, b)
	prior := mat.NewVecDense(st.P, nil)
	prior.MulVec(m.priors.BetasPrecision, m.priors.BetasMean)
	b.AddVec(b, prior)

	mean, err := linalg.SolvePrecisionMean(&prec, b)
	if err != nil {
		return err
	}
	draw, err := linalg.DrawMVNPrecision(rng, mean, &prec)
	if err != nil {
		return err
	}
	st.Betas = draw
	return nil
}

// drawAlphas samples the spatial random effects. The likelihood contributes
// through A*Delta, the upper-level prior through B and the group covariates.
func (m *Model) drawAlphas(rng *rand.Rand) error {
	st := m.state

	s := mat.NewVecDense(st.N, nil)
	s.MulVec(st.AX, st.Betas)
	s.SubVec(st.AY, s)

	var prec, upper mat.SymDense
	prec.SymOuterK(1/st.Sigma2, st.ADelta.T())
	upper.SymOuterK(1/st.Tau2, st.B.T())
	prec.AddSym(&prec, &upper)

	b := mat.NewVecDense(st.J, nil)
	b.MulVec(st.ADelta.T(), s)
	b.ScaleVec(1/st.Sigma2, b)

	bzg := mat.NewVecDense(st.J, nil)
	bzg.MulVec(st.BZ, st.Gammas)
	priorTerm := mat.NewVecDense(st.J, nil)
	priorTerm.MulVec(st.B.T(), bzg)
	b.AddScaledVec(b, 1/st.Tau2, priorTerm)

	mean, err := linalg.SolvePrecisionMean(&prec, b)
	if err != nil {
		return err
	}
	draw, err := linalg.DrawMVNPrecision(rng, mean, &prec)
	if err != nil {
		return err
	}
	st.Alphas = draw
	return nil
}

// drawGammas samples the upper-level coefficients given the filtered random
// effects.
func (m *Model) drawGammas(rng *rand.Rand) error {
	st := m.state

	var prec mat.SymDense
	prec.SymOuterK(1/st.Tau2, st.BZ.T())
	prec.AddSym(&prec, m.priors.GammasPrecision)

	balpha := mat.NewVecDense(st.J, nil)
	balpha.MulVec(st.B, st.Alphas)

	b := mat.NewVecDense(st.Q, nil)
	b.MulVec(st.BZ.T(), balpha)
	b.ScaleVec(1/st.Tau2, b)
	prior := mat.NewVecDense(st.Q, nil)
	prior.MulVec(m.priors.GammasPrecision, m.priors.GammasMean)
	b.AddVec(b, prior)

	mean, err := linalg.SolvePrecisionMean(&prec, b)
	if err != nil {
		return err
	}
	draw, err := linalg.DrawMVNPrecision(rng, mean, &prec)
	if err != nil {
		return err
	}
	st.Gammas = draw
	return nil
}

// drawSigma2 samples the lower-level variance from its inverse-gamma
// conditional.
func (m *Model) drawSigma2(rng *rand.Rand) error {
	st := m.state
	e := m.filteredResidual(st.Rho, nil)
	shape := (float64(st.N) + m.priors.Sigma2Shape) / 2
	scale := (mat.Dot(e, e) + m.priors.Sigma2Shape*m.priors.Sigma2Scale) / 2
	st.Sigma2 = linalg.DrawInverseGamma(rng, shape, scale)
	return nil
}

// drawTau2 samples the upper-level variance from its inverse-gamma
// conditional.
func (m *Model) drawTau2(rng *rand.Rand) error {
	st := m.state
	u := m.filteredEffects(st.Lambda, nil)
	shape := (float64(st.J) + m.priors.Tau2Shape) / 2
	scale := (mat.Dot(u, u) + m.priors.Tau2Shape*m.priors.Tau2Scale) / 2
	st.Tau2 = linalg.DrawInverseGamma(rng, shape, scale)
	return nil
}

// drawRho updates the lower-level spatial dependence parameter with a
// truncated random-walk Metropolis step. Proposals outside the admissible
// range are rejected before any likelihood work.
func (m *Model) drawRho(rng *rand.Rand) error {
	st, cfg := m.state, m.rhoCfg

	proposal := st.Rho + cfg.Proposal(rng, cfg.Jump)
	if !cfg.InRange(proposal) {
		cfg.Reject()
		return nil
	}

	aStar := linalg.SpatialFilter(proposal, st.W)
	ldStar, err := linalg.LogDet(aStar)
	if err != nil {
		return err
	}
	eStar := m.filteredResidual(proposal, aStar)
	eCur := m.filteredResidual(st.Rho, nil)

	logpStar := ldStar - mat.Dot(eStar, eStar)/(2*st.Sigma2)
	logpCur := st.LogDetA - mat.Dot(eCur, eCur)/(2*st.Sigma2)

	if math.Log(rng.Float64()) < logpStar-logpCur {
		st.Rho = proposal
		cfg.Accept()
		return m.refreshLower()
	}
	cfg.Reject()
	return nil
}

// drawLambda updates the upper-level spatial dependence parameter with the
// same truncated Metropolis scheme against the random-effects likelihood.
func (m *Model) drawLambda(rng *rand.Rand) error {
	st, cfg := m.state, m.lambdaCfg

	proposal := st.Lambda + cfg.Proposal(rng, cfg.Jump)
	if !cfg.InRange(proposal) {
		cfg.Reject()
		return nil
	}

	bStar := linalg.SpatialFilter(proposal, st.M)
	ldStar, err := linalg.LogDet(bStar)
	if err != nil {
		return err
	}
	uStar := m.filteredEffects(proposal, bStar)
	uCur := m.filteredEffects(st.Lambda, nil)

	logpStar := ldStar - mat.Dot(uStar, uStar)/(2*st.Tau2)
	logpCur := st.LogDetB - mat.Dot(uCur, uCur)/(2*st.Tau2)

	if math.Log(rng.Float64()) < logpStar-logpCur {
		st.Lambda = proposal
		cfg.Accept()
		return m.refreshUpper()
	}
	cfg.Reject()
	return nil
}

// filteredResidual computes (I - rho*W)(y - X*Betas - Delta*Alphas). When
// filter is nil and rho is the current value, the cached A is used.
func (m *Model) filteredResidual(rho float64, filter *mat.Dense) *mat.VecDense {
	st := m.state

	raw := mat.NewVecDense(st.N, nil)
	raw.MulVec(st.X, st.Betas)
	da := mat.NewVecDense(st.N, nil)
	da.MulVec(st.Delta, st.Alphas)
	raw.AddVec(raw, da)
	raw.SubVec(st.Y, raw)

	if filter == nil {
		if rho == st.Rho && st.A != nil {
			filter = st.A
		} else {
			filter = linalg.SpatialFilter(rho, st.W)
		}
	}
	out := mat.NewVecDense(st.N, nil)
	out.MulVec(filter, raw)
	return out
}

// filteredEffects computes (I - lambda*M)(Alphas - Z*Gammas), the deviation
// of the random effects from their regional mean on the filtered scale.
func (m *Model) filteredEffects(lambda float64, filter *mat.Dense) *mat.VecDense {
	st := m.state

	v := mat.NewVecDense(st.J, nil)
	v.MulVec(st.Z, st.Gammas)
	v.SubVec(st.Alphas, v)

	if filter == nil {
		if lambda == st.Lambda && st.B != nil {
			filter = st.B
		} else {
			filter = linalg.SpatialFilter(lambda, st.M)
		}
	}
	out := mat.NewVecDense(st.J, nil)
	out.MulVec(filter, v)
	return out
}
