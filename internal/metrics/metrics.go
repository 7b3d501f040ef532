package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "impact_connector"

// Metrics holds all Prometheus metrics for the connector.
type Metrics struct {
	// Attribution capture
	Captures *prometheus.CounterVec

	// Event handling
	Events *prometheus.CounterVec

	// Reports built and sent
	Conversions *prometheus.CounterVec
	Actions     *prometheus.CounterVec

	// Outbound API
	APIRequests *prometheus.CounterVec
	APILatency  *prometheus.HistogramVec

	// Settings
	SettingsRefreshes *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics with reg.
func New(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Captures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "click_id_captures_total",
				Help:      "Click id capture outcomes on page render and callback",
			},
			[]string{"outcome"},
		),
		Events: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Host lifecycle events received",
			},
			[]string{"kind", "result"},
		),
		Conversions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Conversion reports by result",
			},
			[]string{"result"},
		),
		Actions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Adjustment reports by trigger and result",
			},
			[]string{"trigger", "result"},
		),
		APIRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Requests sent to the Impact API",
			},
			[]string{"resource", "method", "status"},
		),
		APILatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Impact API request latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"resource"},
		),
		SettingsRefreshes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settings_refreshes_total",
				Help:      "Settings snapshot reloads",
			},
			[]string{"result"},
		),
		gatherer: reg,
	}
}

// Handler returns the Prometheus metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordCapture records a click id capture outcome.
func (m *Metrics) RecordCapture(outcome string) {
	if m == nil {
		return
	}
	m.Captures.WithLabelValues(outcome).Inc()
}

// RecordEvent records a handled lifecycle event.
func (m *Metrics) RecordEvent(kind, result string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(kind, result).Inc()
}

// RecordConversion records a conversion report result.
func (m *Metrics) RecordConversion(result string) {
	if m == nil {
		return
	}
	m.Conversions.WithLabelValues(result).Inc()
}

// RecordAction records an adjustment report result.
func (m *Metrics) RecordAction(trigger, result string) {
	if m == nil {
		return
	}
	m.Actions.WithLabelValues(trigger, result).Inc()
}

// RecordAPIRequest records an outbound request. status is 0 on transport
// failure.
func (m *Metrics) RecordAPIRequest(resource, method string, status int, latency time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.APIRequests.WithLabelValues(resource, method, code).Inc()
	m.APILatency.WithLabelValues(resource).Observe(latency.Seconds())
}

// RecordSettingsRefresh records a settings reload.
func (m *Metrics) RecordSettingsRefresh(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.SettingsRefreshes.WithLabelValues(result).Inc()
}
