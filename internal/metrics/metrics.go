// Package metrics exposes conversion counters and timings in Prometheus
// format.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	pdfmulti "github.com/alnah/go-pdfmulti"
)

const namespace = "pdfmulti"

// Outcome labels.
const (
	OutcomeDone    = "done"
	OutcomeFailed  = "failed"
	OutcomeAborted = "aborted"
	OutcomeBusy    = "busy"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	inFlight    prometheus.Gauge
	conversions *prometheus.CounterVec
	duration    prometheus.Histogram
	pages       prometheus.Histogram
}

// New creates and registers the collectors, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_transitions_total",
				Help:      "Pipeline states entered, by state.",
			},
			[]string{"state"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "conversions_in_flight",
			Help:      "Conversions started and not yet finished.",
		}),
		conversions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Finished conversion requests, by outcome.",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_duration_seconds",
			Help:      "Wall time of conversion requests.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		pages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pdf_pages",
			Help:      "Page count of produced documents.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}

	m.registry.MustRegister(
		m.transitions,
		m.inFlight,
		m.conversions,
		m.duration,
		m.pages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// StateHook counts state transitions and tracks in-flight conversions.
// Pass it to pdfmulti.WithStateHook.
func (m *Metrics) StateHook(s pdfmulti.State) {
	m.transitions.WithLabelValues(s.String()).Inc()
	switch s {
	case pdfmulti.StateIdle:
		m.inFlight.Inc()
	case pdfmulti.StateDone, pdfmulti.StateFailed, pdfmulti.StateAborted:
		m.inFlight.Dec()
	}
}

// ObserveConversion records one finished conversion request.
func (m *Metrics) ObserveConversion(d time.Duration, result *pdfmulti.Result, err error) {
	outcome := Outcome(err)
	m.conversions.WithLabelValues(outcome).Inc()
	if outcome == OutcomeBusy {
		return
	}
	m.duration.Observe(d.Seconds())
	if result != nil && result.Pages > 0 {
		m.pages.Observe(float64(result.Pages))
	}
}

// Outcome maps a conversion error to its label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeDone
	case errors.Is(err, pdfmulti.ErrEmptyContent):
		return OutcomeAborted
	case errors.Is(err, pdfmulti.ErrBusy):
		return OutcomeBusy
	default:
		return OutcomeFailed
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
