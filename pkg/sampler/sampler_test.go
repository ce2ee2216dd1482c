package sampler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/aretw0/gibbs/pkg/domain"
	"github.com/aretw0/gibbs/pkg/ports"
	"github.com/aretw0/gibbs/pkg/sampler"
	"github.com/aretw0/gibbs/pkg/trace"
)

func chainLen(t *testing.T, tr *trace.Trace, chain int) int {
	t.Helper()
	n, err := tr.Len(chain)
	require.NoError(t, err)
	return n
}

var errBoom = errors.New("boom")

// walkModel is a one-parameter random walk, enough to exercise the engine's
// control loop without any linear algebra.
type walkModel struct {
	value     float64
	finalized int
	iters     int
	fuzzed    bool

	// cancelAfter invokes cancel once this many iterations have completed.
	cancelAfter int
	cancel      context.CancelFunc

	// failOn makes the clone with that index (1-based) fail on its third
	// iteration. cloneSeq is shared across all copies of one lineage.
	failOn   int
	cloneSeq *int32
}

func newWalkModel() *walkModel {
	return &walkModel{cloneSeq: new(int32)}
}

func (m *walkModel) Finalize() error {
	m.finalized++
	return nil
}

func (m *walkModel) Iteration(rng *rand.Rand) error {
	m.iters++
	if m.failOn > 0 && m.iters >= 3 {
		return errBoom
	}
	m.value += rng.NormFloat64()
	if m.cancelAfter > 0 && m.iters >= m.cancelAfter && m.cancel != nil {
		m.cancel()
	}
	return nil
}

func (m *walkModel) TracedParams() []string { return []string{"Value"} }

func (m *walkModel) TraceRecord() domain.Record {
	return domain.Record{"Value": {m.value}}
}

func (m *walkModel) Clone() sampler.Model {
	cp := *m
	idx := atomic.AddInt32(m.cloneSeq, 1)
	if m.failOn > 0 && int(idx) != m.failOn {
		cp.failOn = 0
	}
	return &cp
}

func (m *walkModel) FuzzStartingValues(rng *rand.Rand) {
	m.fuzzed = true
	m.value += rng.NormFloat64()
}

// countingRecorder tallies engine progress events per chain.
type countingRecorder struct {
	mu      sync.Mutex
	draws   map[int]int
	batches int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{draws: map[int]int{}}
}

func (r *countingRecorder) DrawCompleted(chain, cycle int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draws[chain]++
}

func (r *countingRecorder) SampleCompleted(elapsed time.Duration, draws int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
}

func (r *countingRecorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.draws {
		n += c
	}
	return n
}

// memSink records WriteHead calls in memory and tracks its forks.
type memSink struct {
	mu     sync.Mutex
	recs   []domain.Record
	forks  map[int]*memSink
	closed bool
}

func newMemSink() *memSink { return &memSink{forks: map[int]*memSink{}} }

func (s *memSink) WriteHead(_ context.Context, _ int, rec domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec.Clone())
	return nil
}

func (s *memSink) Fork(index int) (ports.TraceSink, error) {
	child := newMemSink()
	s.mu.Lock()
	s.forks[index] = child
	s.mu.Unlock()
	return child, nil
}

func (s *memSink) Close() error {
	s.closed = true
	return nil
}

func (s *memSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recs)
}

func TestSampler_SerialRun(t *testing.T) {
	m := newWalkModel()
	s := sampler.New(m, sampler.WithSeed(1))

	require.NoError(t, s.Sample(context.Background(), 10, 1))

	assert.Equal(t, 10, s.Cycles())
	assert.Equal(t, 10, chainLen(t, s.Trace(), 0))
	assert.Equal(t, 1, m.finalized, "invariants finalized exactly once")
	assert.Greater(t, s.Elapsed(), time.Duration(0))

	// A second batch continues the same chain.
	require.NoError(t, s.Sample(context.Background(), 5, 1))
	assert.Equal(t, 15, s.Cycles())
	assert.Equal(t, 15, chainLen(t, s.Trace(), 0))
	assert.Equal(t, 1, m.finalized)
}

func TestSampler_DrawAdvancesOneCycle(t *testing.T) {
	m := newWalkModel()
	s := sampler.New(m, sampler.WithSeed(1))

	require.NoError(t, s.Draw())
	require.NoError(t, s.Draw())
	assert.Equal(t, 2, s.Cycles())
	assert.Equal(t, 1, m.finalized)
}

func TestSampler_InterruptKeepsPartialProgress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := newWalkModel()
	m.cancelAfter, m.cancel = 3, cancel

	s := sampler.New(m, sampler.WithSeed(1))
	require.NoError(t, s.Sample(ctx, 100, 1), "interruption is not an error")

	assert.Equal(t, 3, s.Cycles())
	assert.Equal(t, 3, chainLen(t, s.Trace(), 0), "completed draws survive the interrupt")
}

func TestSampler_CancelledContextDrawsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := sampler.New(newWalkModel(), sampler.WithSeed(1))
	require.NoError(t, s.Sample(ctx, 10, 1))
	assert.Zero(t, s.Cycles())
}

func TestSampler_SinkFlushAndCompaction(t *testing.T) {
	sink := newMemSink()
	s := sampler.New(newWalkModel(),
		sampler.WithSeed(1), sampler.WithSink(sink), sampler.WithCompaction())

	require.NoError(t, s.Sample(context.Background(), 8, 1))

	assert.Equal(t, 8, sink.len(), "every draw flushed to the sink")
	assert.Equal(t, 1, chainLen(t, s.Trace(), 0), "compaction keeps only the head in memory")

	head, err := s.Trace().Head(0)
	require.NoError(t, err)
	assert.Equal(t, sink.recs[7]["Value"], head["Value"])
}

func TestSampler_ParallelFanOut(t *testing.T) {
	sink := newMemSink()
	s := sampler.New(newWalkModel(), sampler.WithSeed(3), sampler.WithSink(sink))

	require.NoError(t, s.Sample(context.Background(), 20, 4))

	tr := s.Trace()
	assert.Equal(t, 4, tr.NChains())
	for ci := 0; ci < 4; ci++ {
		assert.Equal(t, 20, chainLen(t, tr, ci))
	}
	assert.Equal(t, 20, s.Cycles())
	require.Len(t, s.ChainModels(), 4)

	// Each worker drew on a fuzzed, fully-owned copy with its own sink fork.
	seen := map[float64]bool{}
	for i, cm := range s.ChainModels() {
		wm := cm.(*walkModel)
		assert.True(t, wm.fuzzed, "chain %d starting values fuzzed", i)
		seen[wm.value] = true
		require.Contains(t, sink.forks, i)
		assert.Equal(t, 20, sink.forks[i].len())
	}
	assert.Len(t, seen, 4, "chains diverge")
	assert.Zero(t, sink.len(), "root sink untouched by parallel draws")
}

func TestSampler_RecorderSeesEveryChain(t *testing.T) {
	rec := newCountingRecorder()
	s := sampler.New(newWalkModel(), sampler.WithSeed(3), sampler.WithRecorder(rec))

	require.NoError(t, s.Sample(context.Background(), 10, 4))

	assert.Equal(t, 40, rec.total(), "every parallel draw is recorded")
	for chain := 0; chain < 4; chain++ {
		assert.Equal(t, 10, rec.draws[chain], "chain %d", chain)
	}
	assert.Equal(t, 1, rec.batches)
}

func TestSampler_RecorderSerialChainZero(t *testing.T) {
	rec := newCountingRecorder()
	s := sampler.New(newWalkModel(), sampler.WithSeed(1), sampler.WithRecorder(rec))

	require.NoError(t, s.Sample(context.Background(), 5, 1))

	assert.Equal(t, map[int]int{0: 5}, rec.draws)
}

func TestSampler_DrawRejectedAfterParallelRun(t *testing.T) {
	s := sampler.New(newWalkModel(), sampler.WithSeed(3))
	require.NoError(t, s.Sample(context.Background(), 4, 3))

	err := s.Draw()
	require.ErrorContains(t, err, "parallel chains")

	// The multi-chain trace stays rectangular.
	tr := s.Trace()
	for ci := 0; ci < tr.NChains(); ci++ {
		assert.Equal(t, 4, chainLen(t, tr, ci))
	}
}

func TestSampler_ParallelContinuationAppends(t *testing.T) {
	s := sampler.New(newWalkModel(), sampler.WithSeed(3))
	ctx := context.Background()

	require.NoError(t, s.Sample(ctx, 10, 4))
	// jobs is ignored once per-chain models exist; the held chains resume.
	require.NoError(t, s.Sample(ctx, 5, 1))

	tr := s.Trace()
	assert.Equal(t, 4, tr.NChains())
	for ci := 0; ci < 4; ci++ {
		assert.Equal(t, 15, chainLen(t, tr, ci))
	}
	assert.Equal(t, 15, s.Cycles())
}

func TestSampler_ParallelSeedIsDeterministic(t *testing.T) {
	run := func() *sampler.Sampler {
		s := sampler.New(newWalkModel(), sampler.WithSeed(21))
		require.NoError(t, s.Sample(context.Background(), 12, 3))
		return s
	}
	a, b := run(), run()
	assert.True(t, a.Trace().Equal(b.Trace()))
}

func TestSampler_WorkerFailureAbortsBatch(t *testing.T) {
	m := newWalkModel()
	m.failOn = 2

	s := sampler.New(m, sampler.WithSeed(3))
	err := s.Sample(context.Background(), 10, 4)

	require.ErrorIs(t, err, errBoom)
	assert.Zero(t, s.Cycles(), "failed batch leaves the sampler unchanged")
	assert.Equal(t, 0, chainLen(t, s.Trace(), 0))
}

func TestSampler_ModelAccessors(t *testing.T) {
	m := newWalkModel()
	s := sampler.New(m, sampler.WithSeed(3))
	assert.Same(t, m, s.Model())

	require.NoError(t, s.Sample(context.Background(), 2, 2))
	assert.NotSame(t, m, s.Model(), "parallel run replaces the model with chain 0's copy")
}
