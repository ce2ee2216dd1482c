package ports

import (
	"context"

	"github.com/aretw0/gibbs/pkg/domain"
)

// TraceSink receives the head-of-trace record after every completed draw.
// A sink is exclusively owned by one sampler (or one parallel chain copy), so
// implementations do not need internal locking across samplers.
type TraceSink interface {
	// WriteHead appends the record for the given completed iteration.
	WriteHead(ctx context.Context, iteration int, rec domain.Record) error

	// Fork derives an independently-named sink for parallel chain copy i
	// (by convention the target name gains an "_i" suffix).
	Fork(index int) (TraceSink, error)

	// Close releases the underlying connection.
	Close() error
}
