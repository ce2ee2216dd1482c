package trace

import (
	"fmt"
	"math"
	"sort"

	"github.com/aretw0/gibbs/pkg/domain"
)

// Chain holds one chain's draws: parameter name -> ordered sequence.
type Chain map[string][]domain.Vector

// Clone returns a deep copy of the chain.
func (c Chain) Clone() Chain {
	out := make(Chain, len(c))
	for name, seq := range c {
		cp := make([]domain.Vector, len(seq))
		for i, v := range seq {
			cp[i] = v.Clone()
		}
		out[name] = cp
	}
	return out
}

// Trace is the ordered collection of chains produced by a sampling run.
// The parameter-name order is fixed at construction and drives CSV column
// layout.
type Trace struct {
	names  []string
	chains []Chain
}

// New creates a single-chain trace with one empty sequence per parameter.
func New(names ...string) *Trace {
	t := &Trace{names: append([]string(nil), names...)}
	t.chains = []Chain{emptyChain(t.names)}
	return t
}

// NewMulti builds a trace from pre-populated chains. The chains must agree on
// their parameter sets; otherwise domain.ErrSchemaMismatch is returned before
// any chain is adopted.
func NewMulti(chains ...Chain) (*Trace, error) {
	if len(chains) == 0 {
		return nil, domain.ErrEmptyTrace
	}
	names := sortedNames(chains[0])
	for i, c := range chains[1:] {
		if !sameNames(names, sortedNames(c)) {
			return nil, fmt.Errorf("chain %d disagrees with chain 0: %w", i+1, domain.ErrSchemaMismatch)
		}
	}
	cp := make([]Chain, len(chains))
	for i, c := range chains {
		cp[i] = c.Clone()
	}
	return &Trace{names: names, chains: cp}, nil
}

func emptyChain(names []string) Chain {
	c := make(Chain, len(names))
	for _, n := range names {
		c[n] = nil
	}
	return c
}

func sortedNames(c Chain) []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// NChains reports the number of chains.
func (t *Trace) NChains() int { return len(t.chains) }

// Varnames returns the tracked parameter names in column order.
func (t *Trace) Varnames() []string { return append([]string(nil), t.names...) }

// Len reports the number of completed iterations recorded in a chain.
func (t *Trace) Len(chain int) (int, error) {
	if chain < 0 || chain >= len(t.chains) {
		return 0, fmt.Errorf("chain %d of %d: %w", chain, len(t.chains), domain.ErrChainIndex)
	}
	if len(t.names) == 0 {
		return 0, nil
	}
	return len(t.chains[chain][t.names[0]]), nil
}

// Append records one completed iteration on the given chain. Every tracked
// parameter must be present in the record so sequences stay aligned.
func (t *Trace) Append(chain int, rec domain.Record) error {
	if chain < 0 || chain >= len(t.chains) {
		return fmt.Errorf("chain %d of %d: %w", chain, len(t.chains), domain.ErrChainIndex)
	}
	for _, name := range t.names {
		if _, ok := rec[name]; !ok {
			return fmt.Errorf("record missing %q: %w", name, domain.ErrSchemaMismatch)
		}
	}
	c := t.chains[chain]
	for _, name := range t.names {
		c[name] = append(c[name], rec[name].Clone())
	}
	return nil
}

// Series returns the full sequence of draws for one parameter on one chain.
func (t *Trace) Series(chain int, name string) ([]domain.Vector, error) {
	if chain < 0 || chain >= len(t.chains) {
		return nil, fmt.Errorf("chain %d of %d: %w", chain, len(t.chains), domain.ErrChainIndex)
	}
	seq, ok := t.chains[chain][name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, domain.ErrUnknownParameter)
	}
	return seq, nil
}

// Head returns the most recent value of every tracked parameter on a chain.
func (t *Trace) Head(chain int) (domain.Record, error) {
	n, err := t.Len(chain)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("chain %d is empty: %w", chain, domain.ErrEmptyTrace)
	}
	rec := make(domain.Record, len(t.names))
	for _, name := range t.names {
		seq := t.chains[chain][name]
		rec[name] = seq[len(seq)-1].Clone()
	}
	return rec, nil
}

// Select retrieves draws along up to three axes: chain indexes, parameter
// names, and an iteration window [from, to). Nil chain or name selectors mean
// "all"; to < 0 means "through the end". The result has one Chain per
// selected chain index, in selector order.
func (t *Trace) Select(chains []int, names []string, from, to int) ([]Chain, error) {
	if chains == nil {
		chains = make([]int, len(t.chains))
		for i := range chains {
			chains[i] = i
		}
	}
	if names == nil {
		names = t.names
	}
	out := make([]Chain, 0, len(chains))
	for _, ci := range chains {
		if ci < 0 || ci >= len(t.chains) {
			return nil, fmt.Errorf("chain %d of %d: %w", ci, len(t.chains), domain.ErrChainIndex)
		}
		src := t.chains[ci]
		dst := make(Chain, len(names))
		for _, name := range names {
			seq, ok := src[name]
			if !ok {
				return nil, fmt.Errorf("%q: %w", name, domain.ErrUnknownParameter)
			}
			lo, hi, err := window(len(seq), from, to)
			if err != nil {
				return nil, err
			}
			dst[name] = seq[lo:hi]
		}
		out = append(out, dst)
	}
	return out, nil
}

func window(n, from, to int) (int, int, error) {
	if to < 0 {
		to = n
	}
	if from < 0 || from > n || to > n || from > to {
		return 0, 0, fmt.Errorf("iteration window [%d,%d) outside 0..%d", from, to, n)
	}
	return from, to, nil
}

// Drop removes the named parameters from every chain in place.
func (t *Trace) Drop(names ...string) error {
	for _, name := range names {
		found := false
		for _, have := range t.names {
			if have == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%q: %w", name, domain.ErrUnknownParameter)
		}
	}
	for _, name := range names {
		for _, c := range t.chains {
			delete(c, name)
		}
		for i, have := range t.names {
			if have == name {
				t.names = append(t.names[:i], t.names[i+1:]...)
				break
			}
		}
	}
	return nil
}

// DropCopy returns a copy of the trace without the named parameters, leaving
// the receiver untouched.
func (t *Trace) DropCopy(names ...string) (*Trace, error) {
	cp := t.Clone()
	if err := cp.Drop(names...); err != nil {
		return nil, err
	}
	return cp, nil
}

// Clone deep-copies the trace.
func (t *Trace) Clone() *Trace {
	chains := make([]Chain, len(t.chains))
	for i, c := range t.chains {
		chains[i] = c.Clone()
	}
	return &Trace{names: append([]string(nil), t.names...), chains: chains}
}

// Compact truncates every sequence on a chain to its most recent value.
// Used by the engine's bounded-memory mode after flushing to a sink.
func (t *Trace) Compact(chain int) error {
	if chain < 0 || chain >= len(t.chains) {
		return fmt.Errorf("chain %d of %d: %w", chain, len(t.chains), domain.ErrChainIndex)
	}
	c := t.chains[chain]
	for name, seq := range c {
		if len(seq) > 1 {
			c[name] = []domain.Vector{seq[len(seq)-1]}
		}
	}
	return nil
}

// Extend appends another trace's chains onto this trace, parameter-wise:
// chain i of other is concatenated onto chain i of the receiver. Used when a
// parallel run continues existing chains.
func (t *Trace) Extend(other *Trace) error {
	if !sameNames(sortedNames(t.chains[0]), sortedNames(other.chains[0])) {
		return domain.ErrSchemaMismatch
	}
	if len(other.chains) != len(t.chains) {
		return fmt.Errorf("cannot extend %d chains with %d: %w",
			len(t.chains), len(other.chains), domain.ErrChainIndex)
	}
	for i, c := range other.chains {
		dst := t.chains[i]
		src := c.Clone()
		for _, name := range t.names {
			dst[name] = append(dst[name], src[name]...)
		}
	}
	return nil
}

// Equal reports exact equality of schema and values.
func (t *Trace) Equal(other *Trace) bool {
	return t.AllClose(other, 0, 0) == nil
}

// AllClose compares two traces for approximate equality. The parameter-name
// sets must match exactly; values are compared per chain, per parameter, per
// iteration with |a-b| <= atol + rtol*|b|. The returned error names the first
// parameter that fails.
func (t *Trace) AllClose(other *Trace, rtol, atol float64) error {
	if other == nil {
		return domain.ErrNotClose
	}
	if !sameNames(sortedNames(t.chains[0]), sortedNames(other.chains[0])) {
		return fmt.Errorf("variable names differ (%v vs %v): %w",
			t.names, other.names, domain.ErrSchemaMismatch)
	}
	if len(t.chains) != len(other.chains) {
		return fmt.Errorf("chain counts differ (%d vs %d): %w",
			len(t.chains), len(other.chains), domain.ErrNotClose)
	}
	for ci := range t.chains {
		for _, name := range t.names {
			a, b := t.chains[ci][name], other.chains[ci][name]
			if len(a) != len(b) {
				return fmt.Errorf("chain %d %q: lengths differ (%d vs %d): %w",
					ci, name, len(a), len(b), domain.ErrNotClose)
			}
			for i := range a {
				if len(a[i]) != len(b[i]) {
					return fmt.Errorf("chain %d %q iteration %d: widths differ: %w",
						ci, name, i, domain.ErrNotClose)
				}
				for j := range a[i] {
					diff := math.Abs(a[i][j] - b[i][j])
					if diff > atol+rtol*math.Abs(b[i][j]) {
						return fmt.Errorf("chain %d %q iteration %d component %d: |%g-%g| > tolerance: %w",
							ci, name, i, j, a[i][j], b[i][j], domain.ErrNotClose)
					}
				}
			}
		}
	}
	return nil
}
