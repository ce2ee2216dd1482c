/*
Package trace implements the multi-chain record of sampled parameter values.

A Trace owns one or more chains. Every chain maps the same set of parameter
names (the schema) to an ordered sequence of draws, one entry per completed
sampling iteration. The schema is validated whenever chains are combined;
chains that disagree on parameter names are rejected with
domain.ErrSchemaMismatch before any data access succeeds.

# Key Components

  - Trace: append-only store with chain/parameter/iteration selection.
  - Chain: a single chain's parameter sequences.
  - CSV round-trip: one row per iteration, vector parameters flattened into
    one column per component (Betas_0, Betas_1, ...) and reassembled by
    common name stem on import. Multi-chain traces map to one file per chain
    with an index suffix.

# Usage

	tr := trace.New("Betas", "Sigma2")
	tr.Append(0, domain.Record{"Betas": {0.1, 0.2}, "Sigma2": {2}})
	seq, _ := tr.Series(0, "Sigma2")
*/
package trace
