package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/gibbs/pkg/domain"
	"github.com/aretw0/gibbs/pkg/ports"
)

func TestSink_Contract(t *testing.T) {
	root := filepath.Join(t.TempDir(), "trace.db")
	sink, err := New(root)
	require.NoError(t, err)

	ports.RunTraceSinkContract(t, ports.SinkFixture{
		Sink: sink,
		ReadBack: func(forkIndex int, param string) ([]domain.Vector, error) {
			path := root
			if forkIndex >= 0 {
				path = ForkPath(root, forkIndex)
			}
			return ReadSeries(context.Background(), path, param)
		},
	})
}

func TestForkPath(t *testing.T) {
	assert.Equal(t, "run_2.db", ForkPath("run.db", 2))
	assert.Equal(t, "trace_0", ForkPath("trace", 0))
}

func TestReadSeries_MissingParameter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	sink, err := New(path)
	require.NoError(t, err)
	defer sink.Close()

	seq, err := ReadSeries(context.Background(), path, "Rho")
	require.NoError(t, err)
	assert.Empty(t, seq)
}
