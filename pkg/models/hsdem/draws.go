package hsdem

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/aretw0/gibbs/pkg/models/linalg"
)

// drawAlphas samples the regional effects: the likelihood enters through the
// membership indicator, the prior through the filtered regional regression.
func (m *Model) drawAlphas(rng *rand.Rand) error {
	st := m.state

	var prec, upper mat.SymDense
	prec.ScaleSym(1/st.Sigma2, st.DtD)
	upper.SymOuterK(1/st.Tau2, st.B.T())
	prec.AddSym(&prec, &upper)

	r := mat.NewVecDense(st.N, nil)
	r.MulVec(st.X, st.Betas)
	r.SubVec(st.Y, r)
	b := mat.NewVecDense(st.J, nil)
	b.MulVec(st.Delta.T(), r)
	b.ScaleVec(1/st.Sigma2, b)

	zg := mat.NewVecDense(st.J, nil)
	zg.MulVec(st.Z, st.Gammas)
	prior := mat.NewVecDense(st.J, nil)
	prior.MulVec(st.B.T(), zg)
	b.AddScaledVec(b, 1/st.Tau2, prior)

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

// drawBetas samples the stacked direct and Durbin coefficients.
func (m *Model) drawBetas(rng *rand.Rand) error {
	st := m.state

	var prec mat.SymDense
	prec.ScaleSym(1/st.Sigma2, st.XtX)
	prec.AddSym(&prec, m.priors.BetasPrecision)

	r := mat.NewVecDense(st.N, nil)
	r.MulVec(st.Delta, st.Alphas)
	r.SubVec(st.Y, r)
	b := mat.NewVecDense(st.P, nil)
	b.MulVec(st.X.T(), r)
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

// drawSigma2 samples the observation variance from its inverse-gamma
// conditional.
func (m *Model) drawSigma2(rng *rand.Rand) error {
	st := m.state
	e := m.residual()
	shape := (float64(st.N) + m.priors.Sigma2Shape) / 2
	scale := (mat.Dot(e, e) + m.priors.Sigma2Shape*m.priors.Sigma2Scale) / 2
	st.Sigma2 = linalg.DrawInverseGamma(rng, shape, scale)
	return nil
}

// drawTau2 samples the regional variance from its inverse-gamma conditional.
func (m *Model) drawTau2(rng *rand.Rand) error {
	st := m.state
	u := m.filteredEffects(st.Lambda, nil)
	shape := (float64(st.J) + m.priors.Tau2Shape) / 2
	scale := (mat.Dot(u, u) + m.priors.Tau2Shape*m.priors.Tau2Scale) / 2
	st.Tau2 = linalg.DrawInverseGamma(rng, shape, scale)
	return nil
}

// drawGammas samples the regional coefficients against the filtered effects.
func (m *Model) drawGammas(rng *rand.Rand) error {
	st := m.state

	var prec mat.SymDense
	prec.ScaleSym(1/st.Tau2, st.ZtZ)
	prec.AddSym(&prec, m.priors.GammasPrecision)

	balpha := mat.NewVecDense(st.J, nil)
	balpha.MulVec(st.B, st.Alphas)
	b := mat.NewVecDense(st.Q, nil)
	b.MulVec(st.Z.T(), balpha)
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

// drawLambda updates the regional spatial dependence parameter with a
// truncated adaptive Metropolis step.
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

// residual computes y - X*Betas - Delta*Alphas.
func (m *Model) residual() *mat.VecDense {
	st := m.state
	out := mat.NewVecDense(st.N, nil)
	out.MulVec(st.X, st.Betas)
	da := mat.NewVecDense(st.N, nil)
	da.MulVec(st.Delta, st.Alphas)
	out.AddVec(out, da)
	out.SubVec(st.Y, out)
	return out
}

// filteredEffects computes (I - lambda*M)*Alphas - Z*Gammas.
func (m *Model) filteredEffects(lambda float64, filter *mat.Dense) *mat.VecDense {
	st := m.state
	if filter == nil {
		if lambda == st.Lambda && st.B != nil {
			filter = st.B
		} else {
			filter = linalg.SpatialFilter(lambda, st.M)
		}
	}
	out := mat.NewVecDense(st.J, nil)
	out.MulVec(filter, st.Alphas)
	zg := mat.NewVecDense(st.J, nil)
	zg.MulVec(st.Z, st.Gammas)
	out.SubVec(out, zg)
	return out
}
