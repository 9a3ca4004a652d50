package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the DASH audio server.
type Metrics struct {
	registry                  *prometheus.Registry
	requestsTotal             prometheus.Counter
	errorsTotal               prometheus.Counter
	conversionsStartedTotal   prometheus.Counter
	conversionsCompletedTotal prometheus.Counter
	conversionsFailedTotal    prometheus.Counter
	stuckJobsRecoveredTotal   prometheus.Counter
	scansTotal                prometheus.Counter
	processingTracks          prometheus.Gauge
}

// New creates and registers Prometheus metrics for the server.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dash_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dash_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	conversionsStartedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dash_conversions_started_total",
		Help: "Total number of conversions scheduled",
	})
	conversionsCompletedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dash_conversions_completed_total",
		Help: "Total number of conversions that produced a manifest",
	})
	conversionsFailedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dash_conversions_failed_total",
		Help: "Total number of failed conversion attempts",
	})
	stuckJobsRecoveredTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dash_stuck_jobs_recovered_total",
		Help: "Total number of stuck conversions re-queued by the sweeper",
	})
	scansTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dash_library_scans_total",
		Help: "Total number of library scans started",
	})
	processingTracks := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dash_processing_tracks",
		Help: "Number of tracks currently being converted",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		conversionsStartedTotal,
		conversionsCompletedTotal,
		conversionsFailedTotal,
		stuckJobsRecoveredTotal,
		scansTotal,
		processingTracks,
	)

	return &Metrics{
		registry:                  registry,
		requestsTotal:             requestsTotal,
		errorsTotal:               errorsTotal,
		conversionsStartedTotal:   conversionsStartedTotal,
		conversionsCompletedTotal: conversionsCompletedTotal,
		conversionsFailedTotal:    conversionsFailedTotal,
		stuckJobsRecoveredTotal:   stuckJobsRecoveredTotal,
		scansTotal:                scansTotal,
		processingTracks:          processingTracks,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncConversionsStarted increments the conversions scheduled counter.
func (m *Metrics) IncConversionsStarted() {
	m.conversionsStartedTotal.Inc()
}

// IncConversionsCompleted increments the completed conversions counter.
func (m *Metrics) IncConversionsCompleted() {
	m.conversionsCompletedTotal.Inc()
}

// IncConversionsFailed increments the failed conversion attempts counter.
func (m *Metrics) IncConversionsFailed() {
	m.conversionsFailedTotal.Inc()
}

// IncStuckJobsRecovered increments the sweeper recovery counter.
func (m *Metrics) IncStuckJobsRecovered() {
	m.stuckJobsRecoveredTotal.Inc()
}

// IncScans increments the library scan counter.
func (m *Metrics) IncScans() {
	m.scansTotal.Inc()
}

// SetProcessingTracks sets the in-flight conversions gauge.
func (m *Metrics) SetProcessingTracks(n int) {
	m.processingTracks.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
