package domain

import "errors"

// ErrSchemaMismatch is returned when chains in a trace disagree on the set of
// tracked parameter names.
var ErrSchemaMismatch = errors.New("chains do not share the same parameter schema")

// ErrDimensionMismatch is returned when model inputs disagree on observation
// or group counts at construction time.
var ErrDimensionMismatch = errors.New("input dimensions do not match")

// ErrChainIndex is returned when a chain selector does not match any chain.
var ErrChainIndex = errors.New("chain index out of range")

// ErrUnknownParameter is returned when a parameter name is not tracked.
var ErrUnknownParameter = errors.New("unknown parameter")

// ErrEmptyTrace is returned when an operation needs at least one chain.
var ErrEmptyTrace = errors.New("trace has no chains")

// ErrNotClose is returned by approximate trace comparison on the first
// parameter whose values diverge beyond tolerance.
var ErrNotClose = errors.New("trace values differ beyond tolerance")
