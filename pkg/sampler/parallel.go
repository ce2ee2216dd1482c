package sampler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/rand"

	"github.com/aretw0/gibbs/pkg/trace"
)

// sampleParallel fans the model out across jobs independent workers, each a
// fully-owned deep copy with its own seed, then joins and recombines their
// traces. When the sampler already holds per-chain models from an earlier
// parallel run, those chains resume and the jobs argument is ignored.
func (s *Sampler) sampleParallel(ctx context.Context, n, jobs int) error {
	resuming := len(s.chains) > 0
	if resuming {
		if jobs > 1 && jobs != len(s.chains) {
			s.logger.Warn("ignoring jobs, resuming existing chains",
				"jobs", jobs, "chains", len(s.chains))
		}
		jobs = len(s.chains)
	}
	if jobs < 1 {
		return fmt.Errorf("parallel sampling needs at least one job, got %d", jobs)
	}

	copies := make([]*Sampler, jobs)
	for i := 0; i < jobs; i++ {
		var m Model
		if resuming {
			m = s.chains[i].Clone()
		} else {
			m = s.model.Clone()
		}
		// Fuzz starting values only on the very first parallel run, before
		// any draws exist; a prerequisite for convergence diagnostics.
		if s.cycles == 0 {
			if fz, ok := m.(StartFuzzer); ok {
				fz.FuzzStartingValues(s.rng)
			}
		}
		cp := &Sampler{
			model:    m,
			trace:    trace.New(m.TracedParams()...),
			logger:   s.logger,
			recorder: s.recorder,
			chain:    i,
			compact:  s.compact,
			cycles:   s.cycles,
			rng:      rand.New(rand.NewSource(s.rng.Uint64())),
		}
		if s.sink != nil {
			forked, err := s.sink.Fork(i)
			if err != nil {
				return fmt.Errorf("fork sink for chain %d: %w", i, err)
			}
			cp.sink = forked
		}
		copies[i] = cp
	}

	// Dispatch. The first failure cancels every other worker and aborts the
	// batch; there is no partial-success path across chains.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, jobs)
	var wg sync.WaitGroup
	for i, cp := range copies {
		wg.Add(1)
		go func(i int, cp *Sampler) {
			defer wg.Done()
			if err := cp.run(runCtx, n); err != nil {
				errs[i] = err
				cancel()
			}
		}(i, cp)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("chain %d: %w", i, err)
		}
	}
	// Interrupted workers stop at different iteration counts, so their chains
	// cannot be recombined into a rectangular trace; the whole batch is
	// discarded and only previously completed draws survive.
	if err := ctx.Err(); err != nil {
		return err
	}

	// Recombine: continuation appends onto the existing chains, a first run
	// adopts each worker's chain as chain i of the combined trace.
	chains := make([]trace.Chain, jobs)
	for i, cp := range copies {
		got, err := cp.trace.Select(nil, nil, 0, -1)
		if err != nil {
			return err
		}
		chains[i] = got[0]
	}
	combined, err := trace.NewMulti(chains...)
	if err != nil {
		return err
	}
	if s.cycles > 0 {
		if err := s.trace.Extend(combined); err != nil {
			return err
		}
	} else {
		s.trace = combined
	}

	s.chains = make([]Model, jobs)
	for i, cp := range copies {
		s.chains[i] = cp.model
	}
	s.cycles += n
	return nil
}
