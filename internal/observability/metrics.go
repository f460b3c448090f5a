// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Sweep metrics
	SweepsTotal       *prometheus.CounterVec
	SweepDuration     prometheus.Histogram
	SweepsSkipped     prometheus.Counter
	SweepInProgress   prometheus.Gauge
	ProductsProcessed *prometheus.CounterVec
	EventsClassified  *prometheus.CounterVec

	// Scrape metrics
	ScrapeLatency *prometheus.HistogramVec

	// Notification metrics
	NotificationsSent *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulSweep prometheus.Gauge
	TrackedProducts     prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg leaves the metrics unregistered, which is useful in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "price_monitor"
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Sweep metrics
		SweepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Total number of sweeps by status",
		}, []string{"status"}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Sweep execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),
		SweepsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "skipped_total",
			Help:      "Scheduled sweeps skipped because the previous one was still running",
		}),
		SweepInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "in_progress",
			Help:      "Number of sweeps currently running",
		}),
		ProductsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "products_processed_total",
			Help:      "Total number of products processed by terminal state",
		}, []string{"state"}),
		EventsClassified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "events_classified_total",
			Help:      "Total number of classified events by kind",
		}, []string{"event"}),

		// Scrape metrics
		ScrapeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scrape",
			Name:      "latency_seconds",
			Help:      "Product page scrape latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),

		// Notification metrics
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "dispatches_total",
			Help:      "Total number of notification dispatches by event and status",
		}, []string{"event", "status"}),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulSweep: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_sweep_timestamp",
			Help:      "Unix timestamp of last completed sweep",
		}),
		TrackedProducts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "tracked_products",
			Help:      "Number of products loaded by the last sweep",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordSweep records a finished sweep.
func (m *Metrics) RecordSweep(status string, products int, duration time.Duration, finishedAt time.Time) {
	m.SweepsTotal.WithLabelValues(status).Inc()
	m.SweepDuration.Observe(duration.Seconds())
	m.TrackedProducts.Set(float64(products))
	if status == "ok" {
		m.LastSuccessfulSweep.Set(float64(finishedAt.Unix()))
	}
}

// RecordOutcome records one product's terminal state and classified event.
func (m *Metrics) RecordOutcome(state, event string) {
	m.ProductsProcessed.WithLabelValues(state).Inc()
	if event != "" {
		m.EventsClassified.WithLabelValues(event).Inc()
	}
}

// RecordScrape records scrape latency labelled by "ok" or "failed".
func (m *Metrics) RecordScrape(seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.ScrapeLatency.WithLabelValues(status).Observe(seconds)
}

// RecordNotification records a dispatch attempt.
func (m *Metrics) RecordNotification(event string, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.NotificationsSent.WithLabelValues(event, status).Inc()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordDBQuery records database query metrics on DefaultMetrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.RecordDBQuery(database, operation, seconds, err)
}
