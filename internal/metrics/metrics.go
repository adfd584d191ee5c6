// Package metrics records verification counters and timings in a
// Prometheus registry that can be exported to a node-exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics owns a private registry so that each run exports only its own series.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	ScenariosTotal     *prometheus.CounterVec
	ScenarioDuration   prometheus.Histogram
	ComparisonsTotal   *prometheus.CounterVec
	MismatchedElements *prometheus.CounterVec
	InvokeDuration     *prometheus.HistogramVec
	AllocatedBytes     prometheus.Gauge
}

// New creates the metric set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		ScenariosTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "opverify_scenarios_total",
			Help: "Scenarios run, by outcome.",
		}, []string{"status"}),
		ScenarioDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "opverify_scenario_duration_seconds",
			Help:    "Wall time per scenario including build, both runs and comparison.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		ComparisonsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "opverify_comparisons_total",
			Help: "Pairwise output comparisons, by pair and result.",
		}, []string{"pair", "result"}),
		MismatchedElements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "opverify_mismatched_elements_total",
			Help: "Elements outside tolerance, by scenario.",
		}, []string{"scenario"}),
		InvokeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "opverify_invoke_duration_seconds",
			Help:    "Execution context invoke time, by backend plan.",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend"}),
		AllocatedBytes: f.NewGauge(prometheus.GaugeOpts{
			Name: "opverify_allocated_tensor_bytes",
			Help: "Tensor bytes held by the most recently created execution context.",
		}),
	}
}

// RecordScenario counts one scenario outcome.
func (m *Metrics) RecordScenario(status string, d time.Duration) {
	if m == nil {
		return
	}

	m.ScenariosTotal.WithLabelValues(status).Inc()
	m.ScenarioDuration.Observe(d.Seconds())
}

// RecordComparison counts one pairwise comparison and its mismatches.
func (m *Metrics) RecordComparison(scenario, pair string, mismatches int) {
	if m == nil {
		return
	}

	result := "pass"
	if mismatches > 0 {
		result = "fail"
		m.MismatchedElements.WithLabelValues(scenario).Add(float64(mismatches))
	}

	m.ComparisonsTotal.WithLabelValues(pair, result).Inc()
}

// RecordInvoke observes one invoke on the given backend plan.
func (m *Metrics) RecordInvoke(backend string, d time.Duration) {
	if m == nil {
		return
	}

	m.InvokeDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// RecordAllocation sets the allocated tensor byte gauge.
func (m *Metrics) RecordAllocation(bytes int64) {
	if m == nil {
		return
	}

	m.AllocatedBytes.Set(float64(bytes))
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}

	return prometheus.WriteToTextfile(path, m.Registry)
}
