package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redissink "github.com/aretw0/gibbs/pkg/adapters/redis"
	"github.com/aretw0/gibbs/pkg/domain"
	"github.com/aretw0/gibbs/pkg/ports"
)

func TestRedisSink_Contract(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})

	sink := redissink.NewFromClient(client, "contract-run")
	ports.RunTraceSinkContract(t, ports.SinkFixture{
		Sink: sink,
		ReadBack: func(forkIndex int, param string) ([]domain.Vector, error) {
			name := "contract-run"
			if forkIndex >= 0 {
				name = "contract-run_0"
			}
			reader := redissink.NewFromClient(client, name)
			return reader.Series(context.Background(), param)
		},
	})
}

func TestRedisSink_ForkNaming(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	sink := redissink.NewFromClient(client, "run")

	forked, err := sink.Fork(3)
	require.NoError(t, err)
	assert.Equal(t, "run_3", forked.(*redissink.Sink).Name())

	// Forks share the connection, so closing one must not break the root.
	require.NoError(t, forked.Close())
	require.NoError(t, sink.WriteHead(context.Background(), 1,
		domain.Record{"Sigma2": {2}}))
}

func TestRedisSink_VectorRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	sink := redissink.NewFromClient(client, "vectors")
	ctx := context.Background()

	require.NoError(t, sink.WriteHead(ctx, 1, domain.Record{
		"Betas": {1.5, -0.25, 1e-9},
	}))
	require.NoError(t, sink.WriteHead(ctx, 2, domain.Record{
		"Betas": {2.5, -0.5, 2e-9},
	}))

	seq, err := sink.Series(ctx, "Betas")
	require.NoError(t, err)
	require.Len(t, seq, 2)
	assert.Equal(t, domain.Vector{1.5, -0.25, 1e-9}, seq[0])
	assert.Equal(t, domain.Vector{2.5, -0.5, 2e-9}, seq[1])
}
