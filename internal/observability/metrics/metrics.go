package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "bacnet_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	transitionsTotal   *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	acksTotal          *prometheus.CounterVec
	pollsTotal         *prometheus.CounterVec
	pendingTransitions prometheus.Gauge
	dispatchLatency    *prometheus.HistogramVec
	exportTotal        *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB) {
	registerOnce.Do(func() {
		transitionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "event_transitions_total",
				Help: "Total committed event state transitions by kind",
			},
			[]string{"kind"},
		)
		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Total notification dispatch outcomes by result",
			},
			[]string{"result"},
		)
		acksTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "acknowledgments_total",
				Help: "Total acknowledgment attempts by result",
			},
			[]string{"result"},
		)
		pollsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "enrollment_polls_total",
				Help: "Total enrollment poll fetches by result",
			},
			[]string{"result"},
		)
		pendingTransitions = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "pending_transitions",
				Help: "Number of armed time-delayed transitions",
			},
		)
		dispatchLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "notification_dispatch_latency_seconds",
				Help:    "Notification dispatch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "history_export_total",
				Help: "Total event history exports by format and result",
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			transitionsTotal,
			notificationsTotal,
			acksTotal,
			pollsTotal,
			pendingTransitions,
			dispatchLatency,
			exportTotal,
		)

		if db != nil {
			registerDBMetrics(db)
		}
	})
}

func registerDBMetrics(db *sql.DB) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "db_open_connections",
			Help: "Open connections in the history database pool",
		},
		func() float64 { return float64(db.Stats().OpenConnections) },
	))
}

// IncTransition increments the committed transition counter.
func IncTransition(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if transitionsTotal != nil {
		transitionsTotal.WithLabelValues(kind).Inc()
	}
}

// IncNotification increments the notification dispatch counter.
func IncNotification(result string) {
	if result == "" {
		result = resultSuccess
	}
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(result).Inc()
	}
}

// IncAck increments the acknowledgment counter.
func IncAck(result string) {
	if result == "" {
		result = "unknown"
	}
	if acksTotal != nil {
		acksTotal.WithLabelValues(result).Inc()
	}
}

// IncPoll increments the enrollment poll counter.
func IncPoll(result string) {
	if result == "" {
		result = resultSuccess
	}
	if pollsTotal != nil {
		pollsTotal.WithLabelValues(result).Inc()
	}
}

// SetPendingTransitions sets the armed pending-transition gauge.
func SetPendingTransitions(count int) {
	if count < 0 {
		count = 0
	}
	if pendingTransitions != nil {
		pendingTransitions.Set(float64(count))
	}
}

// ObserveDispatch records notification dispatch latency and result.
func ObserveDispatch(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if dispatchLatency != nil {
		dispatchLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncExport increments the history export counter.
func IncExport(format, result string) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
