/*
Package sampler implements the generic Gibbs sampling control loop shared by
all models.

The engine is generic over the Model capability interface: a model supplies
its ordered sequence of conditional draws (Iteration), a one-time invariant
finalization hook, and a snapshot of its tracked parameter values. The
sampler owns everything else: the cycle counter, the trace, elapsed-time
accounting, the optional persistence sink, and parallel multi-chain fan-out.

# Key Components

  - Sampler: the orchestrator; Sample(ctx, n, jobs) and Draw() are the only
    entry points a constructed model needs.
  - Model: the capability interface each model implements.
  - StartFuzzer: optional hook to perturb starting values on the first
    parallel fan-out, so chains diverge enough for convergence diagnostics.

# Concurrency

A single chain runs strictly sequentially. Parallelism exists only across
chains: each worker receives a fully-owned deep copy of the model (explicit
Clone, no shared references) and its own deterministic seed, and the sampler
alone joins and recombines the results. A failure in any worker aborts the
whole batch. Cancelling the context during single-chain sampling stops after
the current draw with a warning and keeps all partial progress.
*/
package sampler
