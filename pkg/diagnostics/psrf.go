// Package diagnostics computes convergence statistics over completed
// multi-chain traces.
package diagnostics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/aretw0/gibbs/pkg/domain"
	"github.com/aretw0/gibbs/pkg/trace"
)

// Method selects the potential-scale-reduction-factor variant.
type Method string

const (
	// MethodBrooks is the Brooks & Gelman (1998) revision, the default.
	MethodBrooks Method = "brooks"
	// MethodOriginal is the original Gelman & Rubin (1992) form.
	MethodOriginal Method = "original"
)

// PSRF computes the potential scale reduction factor for every tracked
// parameter, one entry per vector component. It needs at least two chains
// with at least two iterations each.
//
// With m chains of n draws, within-chain variance W and between-chain
// variance B = n*Var(chain means):
//
//	sigma2 = (n-1)/n * W + B/n
//	original: Rhat = sqrt((sigma2 + B/(m*n)) / W)
//	brooks:   Rhat = sqrt((m+1)/m * sigma2/W - (n-1)/(m*n))
func PSRF(t *trace.Trace, method Method) (map[string]domain.Vector, error) {
	switch method {
	case MethodBrooks, MethodOriginal:
	case "":
		method = MethodBrooks
	default:
		return nil, fmt.Errorf("unknown psrf method %q", method)
	}

	m := t.NChains()
	if m < 2 {
		return nil, fmt.Errorf("psrf needs at least 2 chains, trace has %d", m)
	}

	out := make(map[string]domain.Vector)
	for _, name := range t.Varnames() {
		var width, n int
		seqs := make([][]domain.Vector, m)
		for ci := 0; ci < m; ci++ {
			seq, err := t.Series(ci, name)
			if err != nil {
				return nil, err
			}
			if ci == 0 {
				n = len(seq)
				if n < 2 {
					return nil, fmt.Errorf("psrf needs at least 2 iterations, %q has %d", name, n)
				}
				width = len(seq[0])
			}
			if len(seq) != n {
				return nil, fmt.Errorf("chain %d of %q has %d draws, chain 0 has %d: %w",
					ci, name, len(seq), n, domain.ErrSchemaMismatch)
			}
			seqs[ci] = seq
		}

		rhat := make(domain.Vector, width)
		for k := 0; k < width; k++ {
			means := make([]float64, m)
			vars := make([]float64, m)
			for ci := 0; ci < m; ci++ {
				xs := make([]float64, n)
				for i := 0; i < n; i++ {
					xs[i] = seqs[ci][i][k]
				}
				means[ci] = stat.Mean(xs, nil)
				vars[ci] = stat.Variance(xs, nil)
			}
			w := stat.Mean(vars, nil)
			b := float64(n) * stat.Variance(means, nil)
			sigma2 := float64(n-1)/float64(n)*w + b/float64(n)

			var r float64
			switch method {
			case MethodOriginal:
				r = (sigma2 + b/float64(m*n)) / w
			default:
				r = float64(m+1)/float64(m)*sigma2/w - float64(n-1)/float64(m*n)
			}
			rhat[k] = math.Sqrt(r)
		}
		out[name] = rhat
	}
	return out, nil
}
