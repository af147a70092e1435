// Package metrics exposes ingestion and matching counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "logdog"

// Drop reasons for LinesDropped
const (
	DropEmpty     = "empty"
	DropBlacklist = "blacklist"
	DropPaused    = "paused"
)

// Metrics holds every collector used by logdog. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	LinesRead     *prometheus.CounterVec
	LinesDropped  *prometheus.CounterVec
	Restarts      *prometheus.CounterVec
	Feeding       *prometheus.GaugeVec
	ValuesEmitted *prometheus.CounterVec
	DecodeErrors  *prometheus.CounterVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LinesRead: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lines_read_total",
				Help:      "Lines read from a log source",
			},
			[]string{"source"},
		),
		LinesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lines_dropped_total",
				Help:      "Lines read but not dispatched to listeners",
			},
			[]string{"source", "reason"},
		),
		Restarts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_restarts_total",
				Help:      "Relaunches of a log source command after EOF or failure",
			},
			[]string{"source"},
		),
		Feeding: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "source_feeding",
				Help:      "Whether a source forwards lines to listeners (1 = feeding, 0 = paused)",
			},
			[]string{"source"},
		),
		ValuesEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matched_values_total",
				Help:      "Values emitted by a matcher",
			},
			[]string{"matcher"},
		),
		DecodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decode_errors_total",
				Help:      "Capture groups skipped because they did not decode to a number",
			},
			[]string{"matcher"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.LinesRead, m.LinesDropped, m.Restarts, m.Feeding, m.ValuesEmitted, m.DecodeErrors)
	}
	return m
}

// NewRegistry creates a registry with Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

func (m *Metrics) LineRead(source string) {
	if m != nil {
		m.LinesRead.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) LineDropped(source, reason string) {
	if m != nil {
		m.LinesDropped.WithLabelValues(source, reason).Inc()
	}
}

func (m *Metrics) Restarted(source string) {
	if m != nil {
		m.Restarts.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) SetFeeding(source string, feeding bool) {
	if m == nil {
		return
	}
	v := 0.0
	if feeding {
		v = 1
	}
	m.Feeding.WithLabelValues(source).Set(v)
}

func (m *Metrics) ValueEmitted(matcher string) {
	if m != nil {
		m.ValuesEmitted.WithLabelValues(matcher).Inc()
	}
}

func (m *Metrics) DecodeFailed(matcher string) {
	if m != nil {
		m.DecodeErrors.WithLabelValues(matcher).Inc()
	}
}
