/*
Package ports defines the interfaces the sampling engine depends on, keeping
the core decoupled from concrete persistence backends.

Adapters live in pkg/adapters. Each adapter is verified against the shared
contract test (RunTraceSinkContract) so every backend honors the same
append-only, exclusively-owned semantics.
*/
package ports
