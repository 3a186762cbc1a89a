package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kikiluvv/clipcraft/internal/tracker"
)

// Tracking outcomes
const (
	OutcomeCentered  = "centered"
	OutcomeLetterbox = "letterbox"
	OutcomeFallback  = "fallback"
	OutcomeError     = "error"
)

// Metrics holds the reframer's Prometheus collectors on a private registry.
type Metrics struct {
	passes   *prometheus.CounterVec
	dropped  prometheus.Counter
	duration prometheus.Histogram
	renders  *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipcraft_tracking_passes_total",
			Help: "Tracking passes by outcome",
		}, []string{"outcome"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipcraft_samples_dropped_total",
			Help: "Samples dropped because decoding or detection failed",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "clipcraft_tracking_duration_seconds",
			Help:    "Wall time of a tracking pass",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipcraft_renders_total",
			Help: "Renders by result",
		}, []string{"result"}),
	}

	m.registry.MustRegister(m.passes, m.dropped, m.duration, m.renders)
	return m
}

// ObserveTracking records one finished pass. A nil result counts as an error.
func (m *Metrics) ObserveTracking(res *tracker.Result, elapsed time.Duration) {
	m.duration.Observe(elapsed.Seconds())
	m.passes.WithLabelValues(Outcome(res)).Inc()
	if res != nil && res.Stats.DroppedSamples > 0 {
		m.dropped.Add(float64(res.Stats.DroppedSamples))
	}
}

// ObserveRender records a render attempt.
func (m *Metrics) ObserveRender(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.renders.WithLabelValues(result).Inc()
}

// Outcome maps a result to its outcome label.
func Outcome(res *tracker.Result) string {
	switch {
	case res == nil:
		return OutcomeError
	case res.UsedFallback:
		return OutcomeFallback
	case res.Mode == tracker.Letterbox:
		return OutcomeLetterbox
	default:
		return OutcomeCentered
	}
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
