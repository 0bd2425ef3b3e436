// Package metrics exposes sweep outcomes as Prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/bioreact/internal/sim"
)

// Collector bundles the run metrics and records them from simulator results.
type Collector struct {
	gatherer prometheus.Gatherer

	Runs          *prometheus.CounterVec
	Steps         prometheus.Histogram
	RejectedSteps prometheus.Counter
	Evaluations   prometheus.Counter
	Durations     *prometheus.HistogramVec
}

// NewCollector registers the run metrics against reg, defaulting to the
// global registry when nil. Registering twice on the same registry returns
// the already registered metrics.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bioreact_runs_total",
		Help: "Scenario runs, labeled by final status.",
	}, []string{"status"}), "bioreact_runs_total")
	if err != nil {
		return nil, err
	}

	steps, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bioreact_run_steps",
		Help:    "Accepted integrator steps per run.",
		Buckets: prometheus.ExponentialBuckets(10, 2, 12),
	}), "bioreact_run_steps")
	if err != nil {
		return nil, err
	}

	rejected, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bioreact_run_rejected_steps_total",
		Help: "Integrator steps rejected by the error controller.",
	}), "bioreact_run_rejected_steps_total")
	if err != nil {
		return nil, err
	}

	evals, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bioreact_rhs_evaluations_total",
		Help: "Right-hand side evaluations across all runs.",
	}), "bioreact_rhs_evaluations_total")
	if err != nil {
		return nil, err
	}

	durations, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bioreact_run_duration_seconds",
		Help:    "Wall-clock time per run in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"status"}), "bioreact_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:      gatherer,
		Runs:          runs,
		Steps:         steps,
		RejectedSteps: rejected,
		Evaluations:   evals,
		Durations:     durations,
	}, nil
}

// Record implements sim.Recorder.
func (c *Collector) Record(r sim.RunResult) {
	if c == nil {
		return
	}
	status := r.Status.String()
	c.Runs.WithLabelValues(status).Inc()
	c.Steps.Observe(float64(r.Stats.Steps))
	c.RejectedSteps.Add(float64(r.Stats.Rejected))
	c.Evaluations.Add(float64(r.Stats.Evaluations))
	c.Durations.WithLabelValues(status).Observe(r.Elapsed.Seconds())
}

// WriteFile dumps every metric of the collector's registry in the
// Prometheus text format.
func (c *Collector) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
