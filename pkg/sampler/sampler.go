package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/exp/rand"

	"github.com/aretw0/gibbs/internal/logging"
	"github.com/aretw0/gibbs/pkg/domain"
	"github.com/aretw0/gibbs/pkg/ports"
	"github.com/aretw0/gibbs/pkg/trace"
)

// Model is the capability interface the engine is generic over. A model owns
// its State and Configuration; the sampler owns the loop, the trace, and the
// cycle counter.
type Model interface {
	// Finalize caches the invariants some conditional draws assume are
	// already computed. The engine calls it exactly once, before the first
	// draw of a chain.
	Finalize() error

	// Iteration executes the model's ordered sequence of conditional draws,
	// reading and writing the model's state in place.
	Iteration(rng *rand.Rand) error

	// TracedParams lists the parameter names recorded after every draw, in
	// trace column order.
	TracedParams() []string

	// TraceRecord snapshots the current value of every traced parameter.
	TraceRecord() domain.Record

	// Clone returns a fully-owned deep copy for a parallel chain worker.
	Clone() Model
}

// StartFuzzer is implemented by models that can perturb their starting
// values. The sampler applies it to each copy on the very first parallel
// fan-out so that chains start from diverse positions.
type StartFuzzer interface {
	FuzzStartingValues(rng *rand.Rand)
}

// Recorder receives engine progress events; pkg/observability provides a
// prometheus-backed implementation.
type Recorder interface {
	DrawCompleted(chain, cycle int)
	SampleCompleted(elapsed time.Duration, draws int)
}

// Sampler drives one model (or, after a parallel run, one model per chain)
// through the shared sample/draw control loop.
type Sampler struct {
	model    Model
	chains   []Model // per-chain final models after a parallel run
	trace    *trace.Trace
	sink     ports.TraceSink
	logger   *slog.Logger
	rng      *rand.Rand
	recorder Recorder

	chain   int // index reported to the recorder; worker copies get theirs
	cycles  int
	elapsed time.Duration
	compact bool
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sampler) { s.logger = logger }
}

// WithSeed fixes the master seed, making single-chain runs and the per-chain
// seed fan-out deterministic.
func WithSeed(seed uint64) Option {
	return func(s *Sampler) { s.rng = rand.New(rand.NewSource(seed)) }
}

// WithSink attaches a persistence sink. The head-of-trace record is flushed
// to it after every completed draw.
func WithSink(sink ports.TraceSink) Option {
	return func(s *Sampler) { s.sink = sink }
}

// WithCompaction enables bounded-memory tracing: after each flush to the
// sink, the in-memory sequences are truncated to the most recent value.
// Requires a sink; full in-memory retention is the default.
func WithCompaction() Option {
	return func(s *Sampler) { s.compact = true }
}

// WithRecorder attaches a progress recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Sampler) { s.recorder = r }
}

// New builds a sampler around a constructed model. No draws are taken; call
// Sample or Draw.
func New(model Model, opts ...Option) *Sampler {
	s := &Sampler{
		model:  model,
		trace:  trace.New(model.TracedParams()...),
		logger: logging.NewNop(),
		rng:    rand.New(rand.NewSource(uint64(time.Now().UnixNano()))),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Trace exposes the sampled history.
func (s *Sampler) Trace() *trace.Trace { return s.trace }

// Cycles reports the total number of completed iterations.
func (s *Sampler) Cycles() int { return s.cycles }

// Elapsed reports total wall-clock time spent inside Sample, accumulated
// across invocations regardless of interruption.
func (s *Sampler) Elapsed() time.Duration { return s.elapsed }

// Model returns the current model (chain 0's model after a parallel run).
func (s *Sampler) Model() Model {
	if len(s.chains) > 0 {
		return s.chains[0]
	}
	return s.model
}

// ChainModels returns the per-chain final models of the last parallel run.
func (s *Sampler) ChainModels() []Model { return s.chains }

// Sample draws n iterations. With jobs > 1, or when the sampler already
// holds multiple parallel chains, the draws fan out across independent
// workers (see SampleParallel semantics in the package docs). Otherwise the
// chain advances serially; cancelling ctx stops the loop between draws,
// logs a warning with the completed count, and returns nil with all partial
// progress retained.
func (s *Sampler) Sample(ctx context.Context, n, jobs int) error {
	start := time.Now()
	defer func() {
		d := time.Since(start)
		s.elapsed += d
		if s.recorder != nil {
			s.recorder.SampleCompleted(d, s.cycles)
		}
	}()

	var err error
	if jobs > 1 || len(s.chains) > 0 {
		err = s.sampleParallel(ctx, n, jobs)
	} else {
		err = s.run(ctx, n)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.logger.Warn("sampling interrupted", "completed_draws", s.cycles)
		return nil
	}
	return err
}

// run advances the chain up to n draws, stopping with the context error if
// cancelled. Cancellation is only observed between draws, so progress is
// always a whole number of iterations.
func (s *Sampler) run(ctx context.Context, n int) error {
	for remaining := n; remaining > 0; remaining-- {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := s.Draw(); err != nil {
			return err
		}
	}
	return nil
}

// Draw takes exactly one sample from the joint posterior. On the first call
// of a chain it finalizes the model's invariants; it then runs the model's
// iteration, appends the traced values to chain 0, and flushes to the sink
// when one is attached. After a parallel run the sampler holds one model per
// chain and a single chain can no longer advance alone; use Sample so every
// chain stays the same length.
func (s *Sampler) Draw() error {
	if len(s.chains) > 0 {
		return fmt.Errorf("sampler holds %d parallel chains; use Sample to advance them together", len(s.chains))
	}
	if s.cycles == 0 {
		if err := s.model.Finalize(); err != nil {
			return fmt.Errorf("finalize invariants: %w", err)
		}
	}
	if err := s.model.Iteration(s.rng); err != nil {
		return fmt.Errorf("iteration %d: %w", s.cycles+1, err)
	}
	s.cycles++

	rec := s.model.TraceRecord()
	if err := s.trace.Append(0, rec); err != nil {
		return err
	}
	if s.recorder != nil {
		s.recorder.DrawCompleted(s.chain, s.cycles)
	}
	if s.sink != nil {
		if err := s.sink.WriteHead(context.Background(), s.cycles, rec); err != nil {
			return fmt.Errorf("flush head to sink: %w", err)
		}
		if s.compact {
			if err := s.trace.Compact(0); err != nil {
				return err
			}
		}
	}
	return nil
}
