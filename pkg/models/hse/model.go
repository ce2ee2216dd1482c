package hse

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/aretw0/gibbs/pkg/configs"
	"github.com/aretw0/gibbs/pkg/domain"
	"github.com/aretw0/gibbs/pkg/models/linalg"
	"github.com/aretw0/gibbs/pkg/sampler"
	"github.com/aretw0/gibbs/pkg/weights"
)

// Traced parameter names, in draw order.
var tracedParams = []string{"Betas", "Alphas", "Gammas", "Sigma2", "Tau2", "Rho", "Lambda"}

// Model carries one instance's State and Metropolis configuration and
// implements sampler.Model.
type Model struct {
	state     *State
	priors    Priors
	rhoCfg    *configs.Metropolis
	lambdaCfg *configs.Metropolis

	finalized bool

	// Construction-time knobs, applied after validation.
	membership []int
	delta      *mat.Dense
	tuning     int
	jump       float64
	rhoOpts    []configs.Option
	lambdaOpts []configs.Option
	setPriors  func(*Priors)
}

// Option configures model construction.
type Option func(*Model)

// WithMembership assigns each lower-level observation to its group.
func WithMembership(membership []int) Option {
	return func(m *Model) { m.membership = append([]int(nil), membership...) }
}

// WithDelta supplies the N x J group indicator matrix directly.
func WithDelta(delta *mat.Dense) Option {
	return func(m *Model) { m.delta = delta }
}

// WithTuning sets the adaptation budget of both Metropolis steps.
func WithTuning(budget int) Option {
	return func(m *Model) { m.tuning = budget }
}

// WithJump sets the initial proposal step size of both Metropolis steps.
func WithJump(jump float64) Option {
	return func(m *Model) { m.jump = jump }
}

// WithRhoConfig appends extra tuning options for the Rho step.
func WithRhoConfig(opts ...configs.Option) Option {
	return func(m *Model) { m.rhoOpts = append(m.rhoOpts, opts...) }
}

// WithLambdaConfig appends extra tuning options for the Lambda step.
func WithLambdaConfig(opts ...configs.Option) Option {
	return func(m *Model) { m.lambdaOpts = append(m.lambdaOpts, opts...) }
}

// WithPriors mutates the default diffuse priors in place.
func WithPriors(set func(*Priors)) Option {
	return func(m *Model) { m.setPriors = set }
}

// New validates the inputs and builds a model positioned at its starting
// values. No draws are taken. y must have one entry per row of W; Z one row
// per row of M; exactly one of membership or Delta identifies the grouping.
func New(y []float64, X, W, M, Z *mat.Dense, opts ...Option) (*Model, error) {
	m := &Model{jump: 0.5}
	for _, opt := range opts {
		opt(m)
	}

	Wstd, Mstd, err := weights.Validate(W, M)
	if err != nil {
		return nil, err
	}
	n, _ := Wstd.Dims()
	j, _ := Mstd.Dims()

	if len(y) != n {
		return nil, fmt.Errorf("number of observations does not match between y (%d) and W (%d): %w",
			len(y), n, domain.ErrDimensionMismatch)
	}
	if err := weights.CheckCovariates("X", X, Wstd); err != nil {
		return nil, err
	}
	if err := weights.CheckCovariates("Z", Z, Mstd); err != nil {
		return nil, err
	}
	delta, membership, err := weights.DeltaMembers(m.delta, m.membership, n, j)
	if err != nil {
		return nil, err
	}
	m.membership = membership

	_, p := X.Dims()
	_, q := Z.Dims()

	wMin, wMax, err := weights.EigenRange(Wstd)
	if err != nil {
		return nil, fmt.Errorf("eigenvalue range of W: %w", err)
	}
	mMin, mMax, err := weights.EigenRange(Mstd)
	if err != nil {
		return nil, fmt.Errorf("eigenvalue range of M: %w", err)
	}
	rhoLo, rhoHi := weights.TruncationBounds(wMin, wMax)
	lamLo, lamHi := weights.TruncationBounds(mMin, mMax)

	st := &State{
		N: n, J: j, P: p, Q: q,
		Y:     mat.NewVecDense(n, append([]float64(nil), y...)),
		X:     mat.DenseCopyOf(X),
		W:     Wstd,
		M:     Mstd,
		Z:     mat.DenseCopyOf(Z),
		Delta: delta,

		Betas:  mat.NewVecDense(p, nil),
		Alphas: mat.NewVecDense(j, nil),
		Gammas: mat.NewVecDense(q, nil),
		Sigma2: 2,
		Tau2:   2,
		Rho:    -1.0 / float64(n-1),
		Lambda: -1.0 / float64(j-1),

		RhoMin: rhoLo, RhoMax: rhoHi,
		LambdaMin: lamLo, LambdaMax: lamHi,
	}
	m.state = st

	m.priors = defaultPriors(p, q)
	if m.setPriors != nil {
		m.setPriors(&m.priors)
	}

	base := []configs.Option{configs.WithJump(m.jump), configs.WithTuning(m.tuning)}
	m.rhoCfg = configs.NewMetropolis(rhoLo, rhoHi, append(base, m.rhoOpts...)...)
	m.lambdaCfg = configs.NewMetropolis(lamLo, lamHi, append(base, m.lambdaOpts...)...)

	return m, nil
}

// State exposes the model's mutable state, mainly for tests and diagnostics.
func (m *Model) State() *State { return m.state }

// RhoConfig returns the Metropolis tuning record for Rho.
func (m *Model) RhoConfig() *configs.Metropolis { return m.rhoCfg }

// LambdaConfig returns the Metropolis tuning record for Lambda.
func (m *Model) LambdaConfig() *configs.Metropolis { return m.lambdaCfg }

// Finalize caches the spatial filters and transformed data the conditional
// draws assume are current. Called once by the engine before the first draw.
func (m *Model) Finalize() error {
	if m.finalized {
		return nil
	}
	if err := m.refreshLower(); err != nil {
		return err
	}
	if err := m.refreshUpper(); err != nil {
		return err
	}
	m.finalized = true
	return nil
}

// refreshLower rebuilds A = I - Rho*W and everything derived from it.
func (m *Model) refreshLower() error {
	st := m.state
	st.A = linalg.SpatialFilter(st.Rho, st.W)
	ld, err := linalg.LogDet(st.A)
	if err != nil {
		return fmt.Errorf("log-determinant of I - %g*W: %w", st.Rho, err)
	}
	st.LogDetA = ld

	ax := mat.NewDense(st.N, st.P, nil)
	ax.Mul(st.A, st.X)
	st.AX = ax

	ad := mat.NewDense(st.N, st.J, nil)
	ad.Mul(st.A, st.Delta)
	st.ADelta = ad

	ay := mat.NewVecDense(st.N, nil)
	ay.MulVec(st.A, st.Y)
	st.AY = ay
	return nil
}

// refreshUpper rebuilds B = I - Lambda*M and everything derived from it.
func (m *Model) refreshUpper() error {
	st := m.state
	st.B = linalg.SpatialFilter(st.Lambda, st.M)
	ld, err := linalg.LogDet(st.B)
	if err != nil {
		return fmt.Errorf("log-determinant of I - %g*M: %w", st.Lambda, err)
	}
	st.LogDetB = ld

	bz := mat.NewDense(st.J, st.Q, nil)
	bz.Mul(st.B, st.Z)
	st.BZ = bz
	return nil
}

// Iteration runs the full ordered conditional-draw sequence once.
func (m *Model) Iteration(rng *rand.Rand) error {
	steps := []struct {
		name string
		draw func(*rand.Rand) error
	}{
		{"Betas", m.drawBetas},
		{"Alphas", m.drawAlphas},
		{"Gammas", m.drawGammas},
		{"Sigma2", m.drawSigma2},
		{"Tau2", m.drawTau2},
		{"Rho", m.drawRho},
		{"Lambda", m.drawLambda},
	}
	for _, s := range steps {
		if err := s.draw(rng); err != nil {
			return fmt.Errorf("draw %s: %w", s.name, err)
		}
	}
	return nil
}

// TracedParams lists the recorded parameters in column order.
func (m *Model) TracedParams() []string {
	return append([]string(nil), tracedParams...)
}

// TraceRecord snapshots the current parameter values.
func (m *Model) TraceRecord() domain.Record {
	st := m.state
	return domain.Record{
		"Betas":  vecValues(st.Betas),
		"Alphas": vecValues(st.Alphas),
		"Gammas": vecValues(st.Gammas),
		"Sigma2": domain.Scalar(st.Sigma2),
		"Tau2":   domain.Scalar(st.Tau2),
		"Rho":    domain.Scalar(st.Rho),
		"Lambda": domain.Scalar(st.Lambda),
	}
}

// Clone returns a fully-owned deep copy for a parallel chain.
func (m *Model) Clone() sampler.Model {
	return &Model{
		state:      m.state.clone(),
		priors:     m.priors.clone(),
		rhoCfg:     m.rhoCfg.Clone(),
		lambdaCfg:  m.lambdaCfg.Clone(),
		finalized:  m.finalized,
		membership: append([]int(nil), m.membership...),
	}
}

// FuzzStartingValues perturbs the starting position so parallel chains start
// from diverse values: coefficients get a normal jitter, variances a
// log-normal one. Spatial parameters stay at their starting point, which is
// always interior to the truncation range.
func (m *Model) FuzzStartingValues(rng *rand.Rand) {
	st := m.state
	for i := 0; i < st.P; i++ {
		st.Betas.SetVec(i, st.Betas.AtVec(i)+0.1*rng.NormFloat64())
	}
	for i := 0; i < st.Q; i++ {
		st.Gammas.SetVec(i, st.Gammas.AtVec(i)+0.1*rng.NormFloat64())
	}
	st.Sigma2 *= math.Exp(0.25 * rng.NormFloat64())
	st.Tau2 *= math.Exp(0.25 * rng.NormFloat64())
}

func vecValues(v *mat.VecDense) domain.Vector {
	out := make(domain.Vector, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
