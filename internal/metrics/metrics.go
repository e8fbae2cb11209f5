// Package metrics exports solver telemetry as Prometheus metrics.
//
// The CLI is short-lived, so metrics are not served over HTTP. They are
// collected in a private registry and written once, at exit, in the text
// exposition format for the node exporter's textfile collector.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gitrdm/valencesolver/pkg/valence"
)

const namespace = "valence"

// Recorder implements valence.Recorder on top of Prometheus collectors.
type Recorder struct {
	registry *prometheus.Registry

	solves    *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	ilpSolves *prometheus.CounterVec
	ilpNodes  prometheus.Histogram
}

var _ valence.Recorder = (*Recorder)(nil)

// New creates a recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solves_total",
			Help:      "Compositions solved, by mode, final stage and feasibility.",
		}, []string{"mode", "stage", "feasible"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solve_duration_seconds",
			Help:      "Wall time of one composition solve.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 9),
		}, []string{"mode"}),
		ilpSolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ilp_solves_total",
			Help:      "Integer programs solved, by final status.",
		}, []string{"status"}),
		ilpNodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ilp_nodes",
			Help:      "Branch and bound nodes explored per integer program.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	r.registry.MustRegister(r.solves, r.duration, r.ilpSolves, r.ilpNodes)
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveSolve implements valence.Recorder.
func (r *Recorder) ObserveSolve(mode string, stage valence.Stage, feasible bool, elapsed time.Duration) {
	r.solves.WithLabelValues(mode, stage.String(), strconv.FormatBool(feasible)).Inc()
	r.duration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// ObserveILP implements valence.Recorder.
func (r *Recorder) ObserveILP(status string, nodes int) {
	r.ilpSolves.WithLabelValues(status).Inc()
	r.ilpNodes.Observe(float64(nodes))
}

// WriteTextfile writes every metric to path in the text exposition format.
// The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
