/*
Package domain defines the core value types and sentinel errors shared by the
sampling engine, the trace store, and the model implementations.

A sampled parameter value is always a Vector: scalar parameters are vectors of
length one, vector parameters (regression coefficients, random effects) carry
one entry per component. A Record maps parameter names to their current
values and is the unit of exchange between a model and the trace store.
*/
package domain
