// Package metrics registers the prometheus collectors the optimizer
// exposes in statefull mode: how long solves take, how often they come
// back with no feasible plan, and how much of each accelerator pool the
// last plan left idle.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	solveDuration   *prometheus.HistogramVec
	infeasibleTotal prometheus.Counter
	gpuRemaining    *prometheus.GaugeVec
)

// InitMetrics registers the optimizer's collectors with registry. Safe to
// call once per registry; a second call on the same registry returns the
// AlreadyRegisteredError from the underlying client.
func InitMetrics(registry prometheus.Registerer) error {
	solveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gpu_optimizer_solve_duration_seconds",
			Help:    "Wall-clock time of one Optimize call, from encoding through assembly.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	infeasibleTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gpu_optimizer_infeasible_total",
			Help: "Number of Optimize calls that produced no feasible allocation.",
		},
	)
	gpuRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gpu_optimizer_gpu_remaining",
			Help: "Accelerator units left unused by the last allocation, by accelerator type.",
		},
		[]string{"accelerator_type"},
	)

	if err := registry.Register(solveDuration); err != nil {
		return fmt.Errorf("failed to register solveDuration metric: %w", err)
	}
	if err := registry.Register(infeasibleTotal); err != nil {
		return fmt.Errorf("failed to register infeasibleTotal metric: %w", err)
	}
	if err := registry.Register(gpuRemaining); err != nil {
		return fmt.Errorf("failed to register gpuRemaining metric: %w", err)
	}
	return nil
}

// ObserveSolve records the duration of one Optimize call, labeled by
// whether it found a plan.
func ObserveSolve(d time.Duration, solved bool) {
	if solveDuration == nil {
		return
	}
	outcome := "no_solution"
	if solved {
		outcome = "solved"
	}
	solveDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// IncInfeasible records one no-feasible-plan outcome.
func IncInfeasible() {
	if infeasibleTotal == nil {
		return
	}
	infeasibleTotal.Inc()
}

// SetGPURemaining records, per accelerator type, how many units the last
// allocation left unused.
func SetGPURemaining(acceleratorType string, remaining int) {
	if gpuRemaining == nil {
		return
	}
	gpuRemaining.WithLabelValues(acceleratorType).Set(float64(remaining))
}
