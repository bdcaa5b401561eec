package shell

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for command execution.
type Metrics struct {
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	InFlight          prometheus.Gauge
}

// NewMetrics creates and registers execution metrics once per process.
//
// Metrics:
//   - shelld_executions_total{kind, outcome} - executions by entry point and terminal state
//   - shelld_execution_duration_seconds{kind} - wall time of spawned executions
//   - shelld_executions_in_flight - subprocesses currently running
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			ExecutionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "shelld_executions_total",
					Help: "Total executions by kind and outcome",
				},
				[]string{"kind", "outcome"}, // kind: command, script, script_file
			),
			ExecutionDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "shelld_execution_duration_seconds",
					Help:    "Duration of spawned executions in seconds",
					Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
				},
				[]string{"kind"},
			),
			InFlight: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "shelld_executions_in_flight",
				Help: "Number of subprocesses currently running",
			}),
		}
	})
	return globalMetrics
}

func (m *Metrics) record(kind string, outcome Outcome) {
	if m == nil {
		return
	}
	m.ExecutionsTotal.WithLabelValues(kind, string(outcome)).Inc()
}

func (m *Metrics) observe(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.ExecutionDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) started() {
	if m != nil {
		m.InFlight.Inc()
	}
}

func (m *Metrics) finished() {
	if m != nil {
		m.InFlight.Dec()
	}
}
