// Package telemetry exposes Prometheus metrics for the racelog store.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "racelog"
	subsystem = "store"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics groups the collectors registered for one store instance.
type Metrics struct {
	flushes     *prometheus.CounterVec
	sliceWrites *prometheus.CounterVec
	retries     prometheus.Counter
	merged      *prometheus.CounterVec
	usageRatio  prometheus.Gauge
	mutations   *prometheus.CounterVec
}

// New registers the store collectors with reg. A nil reg uses a private
// registry, which keeps repeated construction in tests from colliding.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		flushes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "flushes_total",
			Help:      "Persistence flushes by outcome",
		}, []string{"outcome"}),
		sliceWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "slice_writes_total",
			Help:      "Slice writes by slice name and outcome",
		}, []string{"slice", "outcome"}),
		retries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "flush_retries_total",
			Help:      "Flush retries scheduled after a failed write",
		}),
		merged: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "merged_records_total",
			Help:      "Incoming cloud records by kind and result",
		}, []string{"kind", "result"}),
		usageRatio: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "usage_ratio",
			Help:      "Storage used as a fraction of quota (0-1)",
		}),
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "mutations_total",
			Help:      "Applied state mutations by operation",
		}, []string{"op"}),
	}
}

// Flush records the outcome of one flush.
func (m *Metrics) Flush(outcome string) {
	if m == nil {
		return
	}
	m.flushes.WithLabelValues(outcome).Inc()
}

// SliceWrite records the outcome of writing one slice.
func (m *Metrics) SliceWrite(slice, outcome string) {
	if m == nil {
		return
	}
	m.sliceWrites.WithLabelValues(slice, outcome).Inc()
}

// Retry records a scheduled flush retry.
func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

// Merged adds n records of kind ("entry", "fault") with the given result
// ("added", "updated", "unchanged", "echo", "tombstoned", "invalid").
func (m *Metrics) Merged(kind, result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.merged.WithLabelValues(kind, result).Add(float64(n))
}

// Usage sets the storage usage ratio.
func (m *Metrics) Usage(ratio float64) {
	if m == nil {
		return
	}
	m.usageRatio.Set(ratio)
}

// Mutation records one applied state mutation.
func (m *Metrics) Mutation(op string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op).Inc()
}
