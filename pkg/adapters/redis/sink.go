// Package redis streams head-of-trace records to a Redis list per parameter,
// so a long run can be watched or consumed while it is still sampling.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/gibbs/pkg/domain"
	"github.com/aretw0/gibbs/pkg/ports"
)

// Sink implements ports.TraceSink on a Redis backend. Each parameter maps to
// one list keyed by run name; every draw RPUSHes a JSON-encoded vector.
type Sink struct {
	client     *backend.Client
	name       string
	ownsClient bool
}

var _ ports.TraceSink = (*Sink)(nil)

// New connects to the given address and namespaces all keys under name.
func New(ctx context.Context, addr, password string, db int, name string) (*Sink, error) {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return &Sink{client: client, name: name, ownsClient: true}, nil
}

// NewFromClient wraps an existing client. Close leaves the client open.
func NewFromClient(client *backend.Client, name string) *Sink {
	return &Sink{client: client, name: name}
}

// Name returns the key namespace for this sink.
func (s *Sink) Name() string { return s.name }

func (s *Sink) key(param string) string {
	return fmt.Sprintf("gibbs:trace:%s:%s", s.name, param)
}

// WriteHead pushes one completed iteration, pipelined across parameters.
func (s *Sink) WriteHead(ctx context.Context, iteration int, rec domain.Record) error {
	pipe := s.client.Pipeline()
	for param, vec := range rec {
		payload, err := json.Marshal([]float64(vec))
		if err != nil {
			return fmt.Errorf("encode %s: %w", param, err)
		}
		pipe.RPush(ctx, s.key(param), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("flush iteration %d: %w", iteration, err)
	}
	return nil
}

// Fork returns a sink on the same connection whose keys gain the chain index
// suffix (run -> run_0). The fork never closes the shared client.
func (s *Sink) Fork(index int) (ports.TraceSink, error) {
	return NewFromClient(s.client, fmt.Sprintf("%s_%d", s.name, index)), nil
}

// Close releases the connection when this sink opened it.
func (s *Sink) Close() error {
	if !s.ownsClient {
		return nil
	}
	return s.client.Close()
}

// Series reads back the full appended sequence for one parameter.
func (s *Sink) Series(ctx context.Context, param string) ([]domain.Vector, error) {
	raw, err := s.client.LRange(ctx, s.key(param), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", param, err)
	}
	out := make([]domain.Vector, 0, len(raw))
	for i, item := range raw {
		var vec []float64
		if err := json.Unmarshal([]byte(item), &vec); err != nil {
			return nil, fmt.Errorf("decode %s[%d]: %w", param, i, err)
		}
		out = append(out, vec)
	}
	return out, nil
}
