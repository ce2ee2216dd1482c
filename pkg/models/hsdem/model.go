package hsdem

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

var tracedParams = []string{"Alphas", "Betas", "Sigma2", "Tau2", "Gammas", "Lambda"}

// Priors mirrors the diffuse defaults of the reference formulation.
type Priors struct {
	BetasMean       *mat.VecDense
	BetasPrecision  *mat.SymDense
	GammasMean      *mat.VecDense
	GammasPrecision *mat.SymDense
	Sigma2Shape     float64
	Sigma2Scale     float64
	Tau2Shape       float64
	Tau2Scale       float64
}

// State bundles the data, current parameter values, and the cross-products
// cached at construction. Dimensions are fixed once validated.
type State struct {
	N, J, P, Q int

	Y     *mat.VecDense
	X     *mat.Dense // N x p, including Durbin lags when enabled
	M     *mat.Dense // J x J, row-standardized
	Z     *mat.Dense // J x q
	Delta *mat.Dense // N x J

	// Cross-products, fixed after construction.
	XtX *mat.SymDense
	ZtZ *mat.SymDense
	DtD *mat.SymDense

	Alphas *mat.VecDense
	Betas  *mat.VecDense
	Gammas *mat.VecDense
	Sigma2 float64
	Tau2   float64
	Lambda float64

	LambdaMin, LambdaMax float64

	// Cached upper-level filter, refreshed on accepted Metropolis moves.
	B       *mat.Dense
	LogDetB float64
}

// Model implements sampler.Model for the HSDEM specification.
type Model struct {
	state     *State
	priors    Priors
	lambdaCfg *configs.Metropolis
	finalized bool

	membership  []int
	delta       *mat.Dense
	tuning      int
	jump        float64
	lambdaOpts  []configs.Option
	setPriors   func(*Priors)
	spatialLags bool
}

// Option configures model construction.
type Option func(*Model)

// WithMembership assigns each lower-level observation to its group.
func WithMembership(membership []int) Option {
	return func(m *Model) { m.membership = append([]int(nil), membership...) }
}

// WithDelta supplies the N x J indicator matrix directly.
func WithDelta(delta *mat.Dense) Option {
	return func(m *Model) { m.delta = delta }
}

// WithTuning sets the Lambda step's adaptation budget.
func WithTuning(budget int) Option {
	return func(m *Model) { m.tuning = budget }
}

// WithJump sets the Lambda step's initial proposal step size.
func WithJump(jump float64) Option {
	return func(m *Model) { m.jump = jump }
}

// WithLambdaConfig appends extra tuning options for the Lambda step.
func WithLambdaConfig(opts ...configs.Option) Option {
	return func(m *Model) { m.lambdaOpts = append(m.lambdaOpts, opts...) }
}

// WithSpatialLags toggles the Durbin terms (on by default).
func WithSpatialLags(on bool) Option {
	return func(m *Model) { m.spatialLags = on }
}

// WithPriors mutates the default diffuse priors in place.
func WithPriors(set func(*Priors)) Option {
	return func(m *Model) { m.setPriors = set }
}

// New validates the inputs and positions the model at its starting values.
// W is used only to build the Durbin lags of X; dependence enters through M.
func New(y []float64, X, W, M, Z *mat.Dense, opts ...Option) (*Model, error) {
	m := &Model{jump: 0.5, spatialLags: true}
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

	xd := mat.DenseCopyOf(X)
	if m.spatialLags {
		_, p0 := X.Dims()
		lag := mat.NewDense(n, p0, nil)
		lag.Mul(Wstd, X)
		aug := mat.NewDense(n, 2*p0, nil)
		aug.Slice(0, n, 0, p0).(*mat.Dense).Copy(X)
		aug.Slice(0, n, p0, 2*p0).(*mat.Dense).Copy(lag)
		xd = aug
	}
	_, p := xd.Dims()
	_, q := Z.Dims()

	mMin, mMax, err := weights.EigenRange(Mstd)
	if err != nil {
		return nil, fmt.Errorf("eigenvalue range of M: %w", err)
	}
	lamLo, lamHi := weights.TruncationBounds(mMin, mMax)

	st := &State{
		N: n, J: j, P: p, Q: q,
		Y:     mat.NewVecDense(n, append([]float64(nil), y...)),
		X:     xd,
		M:     Mstd,
		Z:     mat.DenseCopyOf(Z),
		Delta: delta,

		Alphas: mat.NewVecDense(j, nil),
		Betas:  mat.NewVecDense(p, nil),
		Gammas: mat.NewVecDense(q, nil),
		Sigma2: 2,
		Tau2:   2,
		Lambda: -1.0 / float64(j-1),

		LambdaMin: lamLo, LambdaMax: lamHi,
	}
	var xtx, ztz, dtd mat.SymDense
	xtx.SymOuterK(1, st.X.T())
	ztz.SymOuterK(1, st.Z.T())
	dtd.SymOuterK(1, st.Delta.T())
	st.XtX, st.ZtZ, st.DtD = &xtx, &ztz, &dtd
	m.state = st

	m.priors = defaultPriors(p, q)
	if m.setPriors != nil {
		m.setPriors(&m.priors)
	}

	m.lambdaCfg = configs.NewMetropolis(lamLo, lamHi,
		append([]configs.Option{configs.WithJump(m.jump), configs.WithTuning(m.tuning)}, m.lambdaOpts...)...)
	return m, nil
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

// State exposes the model's mutable state.
func (m *Model) State() *State { return m.state }

// LambdaConfig returns the Metropolis tuning record for Lambda.
func (m *Model) LambdaConfig() *configs.Metropolis { return m.lambdaCfg }

// Finalize caches the upper-level spatial filter. Called once by the engine.
func (m *Model) Finalize() error {
	if m.finalized {
		return nil
	}
	if err := m.refreshUpper(); err != nil {
		return err
	}
	m.finalized = true
	return nil
}

func (m *Model) refreshUpper() error {
	st := m.state
	st.B = linalg.SpatialFilter(st.Lambda, st.M)
	ld, err := linalg.LogDet(st.B)
	if err != nil {
		return fmt.Errorf("log-determinant of I - %g*M: %w", st.Lambda, err)
	}
	st.LogDetB = ld
	return nil
}

// Iteration runs the ordered conditional-draw sequence once.
func (m *Model) Iteration(rng *rand.Rand) error {
	steps := []struct {
		name string
		draw func(*rand.Rand) error
	}{
		{"Alphas", m.drawAlphas},
		{"Betas", m.drawBetas},
		{"Sigma2", m.drawSigma2},
		{"Tau2", m.drawTau2},
		{"Gammas", m.drawGammas},
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
		"Alphas": vecValues(st.Alphas),
		"Betas":  vecValues(st.Betas),
		"Sigma2": domain.Scalar(st.Sigma2),
		"Tau2":   domain.Scalar(st.Tau2),
		"Gammas": vecValues(st.Gammas),
		"Lambda": domain.Scalar(st.Lambda),
	}
}

// Clone returns a fully-owned deep copy for a parallel chain.
func (m *Model) Clone() sampler.Model {
	st := *m.state
	st.Y = mat.VecDenseCopyOf(m.state.Y)
	st.X = mat.DenseCopyOf(m.state.X)
	st.M = mat.DenseCopyOf(m.state.M)
	st.Z = mat.DenseCopyOf(m.state.Z)
	st.Delta = mat.DenseCopyOf(m.state.Delta)
	st.XtX = copySym(m.state.XtX)
	st.ZtZ = copySym(m.state.ZtZ)
	st.DtD = copySym(m.state.DtD)
	st.Alphas = mat.VecDenseCopyOf(m.state.Alphas)
	st.Betas = mat.VecDenseCopyOf(m.state.Betas)
	st.Gammas = mat.VecDenseCopyOf(m.state.Gammas)
	if m.state.B != nil {
		st.B = mat.DenseCopyOf(m.state.B)
	}

	priors := m.priors
	priors.BetasMean = mat.VecDenseCopyOf(m.priors.BetasMean)
	priors.BetasPrecision = copySym(m.priors.BetasPrecision)
	priors.GammasMean = mat.VecDenseCopyOf(m.priors.GammasMean)
	priors.GammasPrecision = copySym(m.priors.GammasPrecision)

	return &Model{
		state:      &st,
		priors:     priors,
		lambdaCfg:  m.lambdaCfg.Clone(),
		finalized:  m.finalized,
		membership: append([]int(nil), m.membership...),
	}
}

// FuzzStartingValues jitters the starting position for chain diversity.
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

func copySym(s *mat.SymDense) *mat.SymDense {
	n, _ := s.Dims()
	out := mat.NewSymDense(n, nil)
	out.CopySym(s)
	return out
}
