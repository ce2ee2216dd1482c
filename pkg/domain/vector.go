package domain

// Vector is one draw of a (possibly multivariate) parameter.
type Vector []float64

// Clone returns an independent copy.
func (v Vector) Clone() Vector {
	return append(Vector(nil), v...)
}

// Scalar wraps a single value as a one-component vector.
func Scalar(x float64) Vector { return Vector{x} }

// Record maps parameter names to their current draw, the unit of exchange
// between a model and the trace.
type Record map[string]Vector

// Clone returns a deep copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for name, v := range r {
		out[name] = v.Clone()
	}
	return out
}
