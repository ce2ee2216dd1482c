// Package configs holds per-parameter tuning settings for the adaptive
// Metropolis steps used on spatial-dependence parameters.
package configs

import (
	"golang.org/x/exp/rand"
)

// Proposal draws a symmetric random-walk step of the given scale.
type Proposal func(rng *rand.Rand, scale float64) float64

// NormalProposal is the default proposal: a zero-mean normal step.
func NormalProposal(rng *rand.Rand, scale float64) float64 {
	return rng.NormFloat64() * scale
}

// Metropolis carries the tuning state for one spatial parameter. The
// truncation bounds derive from the extremal eigenvalues of the parameter's
// weights matrix; proposals outside [LowerBound, UpperBound] are rejected
// without evaluating the posterior ratio.
type Metropolis struct {
	Jump      float64  // proposal step size
	ARLow     float64  // acceptance-rate lower bound
	ARHigh    float64  // acceptance-rate upper bound
	AdaptStep float64  // multiplicative step-size rescale factor
	MaxAdapt  int      // tuning budget; adaptation stops after this many attempts
	Proposal  Proposal // symmetric random-walk proposal

	LowerBound float64
	UpperBound float64

	Accepted int
	Rejected int
}

// Option configures a Metropolis record.
type Option func(*Metropolis)

// WithJump sets the initial proposal step size.
func WithJump(j float64) Option { return func(m *Metropolis) { m.Jump = j } }

// WithAcceptanceBounds sets the target acceptance-rate band.
func WithAcceptanceBounds(low, high float64) Option {
	return func(m *Metropolis) { m.ARLow, m.ARHigh = low, high }
}

// WithAdaptStep sets the multiplicative rescale factor applied while tuning.
func WithAdaptStep(s float64) Option { return func(m *Metropolis) { m.AdaptStep = s } }

// WithTuning sets the adaptation budget (number of attempted draws during
// which the step size may change). Zero disables adaptation.
func WithTuning(budget int) Option { return func(m *Metropolis) { m.MaxAdapt = budget } }

// WithProposal overrides the proposal distribution.
func WithProposal(p Proposal) Option { return func(m *Metropolis) { m.Proposal = p } }

// NewMetropolis builds a tuning record with the standard defaults and the
// given truncation bounds.
func NewMetropolis(lower, upper float64, opts ...Option) *Metropolis {
	m := &Metropolis{
		Jump:       0.5,
		ARLow:      0.4,
		ARHigh:     0.6,
		AdaptStep:  1.01,
		Proposal:   NormalProposal,
		LowerBound: lower,
		UpperBound: upper,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// InRange reports whether a proposed value lies inside the truncated support.
func (m *Metropolis) InRange(v float64) bool {
	return v >= m.LowerBound && v <= m.UpperBound
}

// Attempts is the total number of attempted draws so far.
func (m *Metropolis) Attempts() int { return m.Accepted + m.Rejected }

// AcceptanceRate is the rolling acceptance rate over all attempts.
func (m *Metropolis) AcceptanceRate() float64 {
	n := m.Attempts()
	if n == 0 {
		return 0
	}
	return float64(m.Accepted) / float64(n)
}

// Accept records an accepted draw and retunes if still in the tuning phase.
func (m *Metropolis) Accept() {
	m.Accepted++
	m.tune()
}

// Reject records a rejected draw and retunes if still in the tuning phase.
func (m *Metropolis) Reject() {
	m.Rejected++
	m.tune()
}

// Adapting reports whether the step size may still change.
func (m *Metropolis) Adapting() bool {
	return m.MaxAdapt > 0 && m.Attempts() < m.MaxAdapt
}

// tune rescales the step size while the tuning budget lasts: the step grows
// when the sampler accepts too often and shrinks when it accepts too rarely.
// Once the budget is exhausted the step size is frozen.
func (m *Metropolis) tune() {
	if m.MaxAdapt <= 0 || m.Attempts() > m.MaxAdapt {
		return
	}
	ar := m.AcceptanceRate()
	switch {
	case ar > m.ARHigh:
		m.Jump *= m.AdaptStep
	case ar < m.ARLow:
		m.Jump /= m.AdaptStep
	}
}

// Clone returns an independent copy for a parallel chain.
func (m *Metropolis) Clone() *Metropolis {
	cp := *m
	return &cp
}
