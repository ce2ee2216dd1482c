// Package observability exposes sampling progress as prometheus metrics and
// a small HTTP status surface for long-running jobs.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/gibbs/pkg/configs"
	"github.com/aretw0/gibbs/pkg/sampler"
)

// Metrics implements sampler.Recorder on a private prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	draws      *prometheus.CounterVec
	cycle      prometheus.Gauge
	samples    prometheus.Counter
	duration   prometheus.Counter
	mhAccepted *prometheus.GaugeVec
	mhRejected *prometheus.GaugeVec
	mhJump     *prometheus.GaugeVec
}

var _ sampler.Recorder = (*Metrics)(nil)

// NewMetrics builds and registers the collector set.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		draws: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gibbs_draws_total",
			Help: "Completed posterior draws per chain.",
		}, []string{"chain"}),
		cycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gibbs_cycle",
			Help: "Latest completed iteration number.",
		}),
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gibbs_sample_batches_total",
			Help: "Completed Sample invocations.",
		}),
		duration: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gibbs_sampling_seconds_total",
			Help: "Wall-clock seconds spent sampling.",
		}),
		mhAccepted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gibbs_metropolis_accepted",
			Help: "Accepted Metropolis proposals per spatial parameter.",
		}, []string{"parameter"}),
		mhRejected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gibbs_metropolis_rejected",
			Help: "Rejected Metropolis proposals per spatial parameter.",
		}, []string{"parameter"}),
		mhJump: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gibbs_metropolis_step_size",
			Help: "Current proposal step size per spatial parameter.",
		}, []string{"parameter"}),
	}
	m.registry.MustRegister(m.draws, m.cycle, m.samples, m.duration,
		m.mhAccepted, m.mhRejected, m.mhJump)
	return m
}

// Registry exposes the backing registry for the metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// DrawCompleted records one finished iteration on a chain.
func (m *Metrics) DrawCompleted(chain, cycle int) {
	m.draws.WithLabelValues(strconv.Itoa(chain)).Inc()
	m.cycle.Set(float64(cycle))
}

// SampleCompleted records one finished Sample batch.
func (m *Metrics) SampleCompleted(elapsed time.Duration, draws int) {
	m.samples.Inc()
	m.duration.Add(elapsed.Seconds())
	m.cycle.Set(float64(draws))
}

// ObserveMetropolis publishes the tuning state of one adaptive step. Call it
// after each batch; the gauges reflect the latest snapshot.
func (m *Metrics) ObserveMetropolis(parameter string, cfg *configs.Metropolis) {
	m.mhAccepted.WithLabelValues(parameter).Set(float64(cfg.Accepted))
	m.mhRejected.WithLabelValues(parameter).Set(float64(cfg.Rejected))
	m.mhJump.WithLabelValues(parameter).Set(cfg.Jump)
}
