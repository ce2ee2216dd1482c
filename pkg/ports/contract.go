package ports

import (
	"context"
	"testing"

	"github.com/aretw0/gibbs/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SinkFixture is what an adapter test hands to the shared contract: the sink
// under test plus a way to read back what was written to a given target.
type SinkFixture struct {
	Sink TraceSink
	// ReadBack returns the appended sequence for one parameter on the sink
	// identified by fork index (-1 for the root sink).
	ReadBack func(forkIndex int, param string) ([]domain.Vector, error)
}

// RunTraceSinkContract verifies that a TraceSink implementation preserves
// append order, isolates forked sinks, and round-trips vector components.
func RunTraceSinkContract(t *testing.T, fixture SinkFixture) {
	ctx := context.Background()
	sink := fixture.Sink

	t.Run("AppendOrder", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			rec := domain.Record{
				"Betas":  {float64(i), float64(i) * 0.5},
				"Sigma2": {2.0 / float64(i)},
			}
			require.NoError(t, sink.WriteHead(ctx, i, rec))
		}

		seq, err := fixture.ReadBack(-1, "Betas")
		require.NoError(t, err)
		require.Len(t, seq, 3)
		assert.Equal(t, domain.Vector{2, 1}, seq[1])

		seq, err = fixture.ReadBack(-1, "Sigma2")
		require.NoError(t, err)
		require.Len(t, seq, 3)
		assert.InDelta(t, 2.0/3.0, seq[2][0], 1e-12)
	})

	t.Run("ForkIsolation", func(t *testing.T) {
		forked, err := sink.Fork(0)
		require.NoError(t, err)
		defer forked.Close()

		require.NoError(t, forked.WriteHead(ctx, 1, domain.Record{"Rho": {0.25}}))

		seq, err := fixture.ReadBack(0, "Rho")
		require.NoError(t, err)
		require.Len(t, seq, 1)
		assert.Equal(t, domain.Vector{0.25}, seq[0])

		// The root sink must not see the forked sink's writes.
		root, err := fixture.ReadBack(-1, "Rho")
		require.NoError(t, err)
		assert.Empty(t, root)
	})

	t.Run("Close", func(t *testing.T) {
		assert.NoError(t, sink.Close())
	})
}
