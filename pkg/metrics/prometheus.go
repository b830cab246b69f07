// Package metrics provides Prometheus metrics for the spotwatch service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the spotwatch service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingest metrics - per source adapter
	spotsIngested *prometheus.CounterVec
	parseErrors   *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	reconnects    *prometheus.CounterVec
	bufferSize    *prometheus.GaugeVec

	// Matching metrics
	cycleDuration prometheus.Histogram
	spotsMatched  prometheus.Counter
	activeAlerts  prometheus.Gauge
	expiredAlerts prometheus.Counter

	// Delivery metrics
	notificationsSent    prometheus.Counter
	notificationsDropped *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "spotwatch",
		subsystem:        "monitor",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.spotsIngested = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "spots_ingested_total",
			Help:      "Total number of spots ingested, by source adapter",
		},
		[]string{"source"},
	)

	m.parseErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "parse_errors_total",
			Help:      "Total number of malformed feed units skipped, by source adapter",
		},
		[]string{"source"},
	)

	m.fetchErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "fetch_errors_total",
			Help:      "Total number of transient fetch failures, by source adapter",
		},
		[]string{"source"},
	)

	m.reconnects = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "reconnects_total",
			Help:      "Total number of stream reconnect attempts, by source adapter",
		},
		[]string{"source"},
	)

	m.bufferSize = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "buffer_size",
			Help:      "Current number of spots held in the recent-spot buffer",
		},
		[]string{"source"},
	)

	m.cycleDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "cycle_duration_seconds",
		Help:      "Histogram of monitoring cycle duration in seconds",
		Buckets:   m.histogramBuckets,
	})

	m.spotsMatched = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "spots_matched_total",
		Help:      "Total number of (spot, alert) pairs that passed all match checks",
	})

	m.activeAlerts = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "active_alerts",
		Help:      "Number of active alerts seen by the last monitoring cycle",
	})

	m.expiredAlerts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "expired_alerts_total",
		Help:      "Total number of alerts deactivated by the expiration sweep",
	})

	m.notificationsSent = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notifications_sent_total",
		Help:      "Total number of notifications delivered successfully",
	})

	m.notificationsDropped = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "notifications_dropped_total",
			Help:      "Total number of notifications dropped, by reason",
		},
		[]string{"reason"},
	)
}

// GetRegistry returns the registry backing the global manager, for serving
// the metrics endpoint.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Global helper functions backed by the global manager.

func RecordSpotIngested(source string) {
	globalManager.spotsIngested.WithLabelValues(source).Inc()
}

func RecordParseError(source string) {
	globalManager.parseErrors.WithLabelValues(source).Inc()
}

func RecordFetchError(source string) {
	globalManager.fetchErrors.WithLabelValues(source).Inc()
}

func RecordReconnect(source string) {
	globalManager.reconnects.WithLabelValues(source).Inc()
}

func UpdateBufferSize(source string, size int) {
	globalManager.bufferSize.WithLabelValues(source).Set(float64(size))
}

func RecordCycleDuration(seconds float64) {
	globalManager.cycleDuration.Observe(seconds)
}

func RecordSpotMatched() {
	globalManager.spotsMatched.Inc()
}

func UpdateActiveAlerts(count int) {
	globalManager.activeAlerts.Set(float64(count))
}

func RecordExpiredAlerts(count int) {
	globalManager.expiredAlerts.Add(float64(count))
}

func RecordNotificationSent() {
	globalManager.notificationsSent.Inc()
}

// Drop reasons used with RecordNotificationDropped.
const (
	DropDuplicate   = "duplicate"
	DropCooldown    = "cooldown"
	DropRateLimited = "rate_limited"
	DropPermanent   = "permanent_failure"
	DropTransient   = "transient_failure"
	DropLedgerError = "ledger_error"
)

func RecordNotificationDropped(reason string) {
	globalManager.notificationsDropped.WithLabelValues(reason).Inc()
}
