package hsdem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/aretw0/gibbs/internal/testutils"
	"github.com/aretw0/gibbs/pkg/configs"
	"github.com/aretw0/gibbs/pkg/sampler"
)

func newSmallModel(t *testing.T, opts ...Option) *Model {
	t.Helper()
	ds := testutils.Small(42)
	opts = append([]Option{WithMembership(ds.Membership)}, opts...)
	m, err := New(ds.Y, ds.X, ds.W, ds.M, ds.Z, opts...)
	require.NoError(t, err)
	return m
}

func TestNew_DurbinLagsDoubleTheCovariates(t *testing.T) {
	ds := testutils.Small(42)

	m := newSmallModel(t)
	assert.Equal(t, 2*ds.P, m.State().P, "lagged copies stack beside the originals")

	plain, err := New(ds.Y, ds.X, ds.W, ds.M, ds.Z,
		WithMembership(ds.Membership), WithSpatialLags(false))
	require.NoError(t, err)
	assert.Equal(t, ds.P, plain.State().P)

	// The left block of the design matrix is the untouched X.
	st := m.State()
	for i := 0; i < st.N; i++ {
		for k := 0; k < ds.P; k++ {
			assert.Equal(t, ds.X.At(i, k), st.X.At(i, k))
		}
	}
}

func TestNew_StartingState(t *testing.T) {
	m := newSmallModel(t)
	st := m.State()

	assert.Equal(t, 20, st.N)
	assert.Equal(t, 5, st.J)
	assert.Equal(t, 1, st.Q)
	assert.Equal(t, 2.0, st.Sigma2)
	assert.Equal(t, 2.0, st.Tau2)
	assert.InDelta(t, -1.0/4.0, st.Lambda, 1e-15)
	assert.InDelta(t, 1.0, st.LambdaMax, 1e-10)
	assert.Less(t, st.LambdaMin, st.Lambda)
}

func TestNew_DimensionErrors(t *testing.T) {
	ds := testutils.Small(42)

	_, err := New(ds.Y[:5], ds.X, ds.W, ds.M, ds.Z, WithMembership(ds.Membership))
	assert.ErrorContains(t, err, "y")

	_, err = New(ds.Y, ds.X, ds.W, ds.M, ds.Z)
	assert.Error(t, err, "grouping must be identified")
}

func TestModel_SingleDraw(t *testing.T) {
	m := newSmallModel(t)
	s := sampler.New(m, sampler.WithSeed(13))

	require.NoError(t, s.Sample(context.Background(), 1, 1))

	tr := s.Trace()
	n, err := tr.Len(0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	betas, err := tr.Series(0, "Betas")
	require.NoError(t, err)
	require.Len(t, betas, 1)
	assert.Len(t, betas[0], m.State().P)

	st := m.State()
	assert.Greater(t, st.Sigma2, 0.0)
	assert.Greater(t, st.Tau2, 0.0)
	assert.True(t, st.LambdaMin <= st.Lambda && st.Lambda <= st.LambdaMax)
}

func TestModel_SameSeedIsDeterministic(t *testing.T) {
	run := func() *sampler.Sampler {
		s := sampler.New(newSmallModel(t), sampler.WithSeed(17))
		require.NoError(t, s.Sample(context.Background(), 25, 1))
		return s
	}
	a, b := run(), run()
	assert.True(t, a.Trace().Equal(b.Trace()))
}

func TestModel_OutOfRangeProposalRejected(t *testing.T) {
	far := func(*rand.Rand, float64) float64 { return 1e6 }
	m := newSmallModel(t, WithLambdaConfig(configs.WithProposal(far)))

	require.NoError(t, m.Finalize())
	require.NoError(t, m.Iteration(rand.New(rand.NewSource(1))))

	assert.InDelta(t, -1.0/4.0, m.State().Lambda, 1e-15)
	assert.Equal(t, 1, m.LambdaConfig().Rejected)
	assert.Equal(t, 0, m.LambdaConfig().Accepted)
}

func TestModel_CloneIsIndependent(t *testing.T) {
	m := newSmallModel(t)
	require.NoError(t, m.Finalize())

	cp := m.Clone().(*Model)
	require.NoError(t, cp.Iteration(rand.New(rand.NewSource(5))))

	assert.Equal(t, 2.0, m.State().Sigma2)
	assert.NotEqual(t, m.State().Sigma2, cp.State().Sigma2)
}

func TestModel_TracedParamsMatchRecord(t *testing.T) {
	m := newSmallModel(t)
	rec := m.TraceRecord()
	for _, name := range m.TracedParams() {
		assert.Contains(t, rec, name)
	}
	assert.Len(t, rec, len(m.TracedParams()))
}
