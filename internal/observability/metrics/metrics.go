package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "station_"

	resultSuccess = "success"
	resultError   = "error"

	reasonParseError    = "parse-error"
	reasonSchemaInvalid = "schema-invalid"
	reasonWriteFailed   = "write-failed"
)

var (
	registerOnce sync.Once

	activeConnections  prometheus.Gauge
	connectionDuration prometheus.Histogram
	eventsSent         *prometheus.CounterVec

	broadcastLatency prometheus.Histogram
	relayErrors      *prometheus.CounterVec

	publishAttempts *prometheus.CounterVec
	publishRetries  prometheus.Counter

	brokerConnected  prometheus.Gauge
	brokerReconnects prometheus.Counter

	ingestResults *prometheus.CounterVec
)

// Init registers relay metrics and, when a db handle is given, pool gauges.
func Init(db *sql.DB) {
	registerOnce.Do(func() {
		activeConnections = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "stream_connections_active",
				Help: "Currently connected stream subscribers",
			},
		)
		connectionDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "stream_connection_duration_seconds",
				Help:    "Stream subscriber connection lifetime in seconds",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10),
			},
		)
		eventsSent = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "stream_events_sent_total",
				Help: "Total stream events delivered by event type",
			},
			[]string{"type"},
		)

		broadcastLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "relay_broadcast_latency_seconds",
				Help:    "Fan-out latency per relayed message in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)
		relayErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "relay_errors_total",
				Help: "Total relay errors by reason",
			},
			[]string{"reason"},
		)

		publishAttempts = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "publish_total",
				Help: "Total reading publishes by result",
			},
			[]string{"result"},
		)
		publishRetries = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "publish_retries_total",
				Help: "Total retried publish attempts",
			},
		)

		brokerConnected = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "broker_connected",
				Help: "1 when the relay subscription to the broker is live",
			},
		)
		brokerReconnects = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "broker_reconnects_total",
				Help: "Total relay subscription reconnect attempts",
			},
		)

		ingestResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_readings_total",
				Help: "Total ingested readings by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			activeConnections,
			connectionDuration,
			eventsSent,
			broadcastLatency,
			relayErrors,
			publishAttempts,
			publishRetries,
			brokerConnected,
			brokerReconnects,
			ingestResults,
		)

		if db != nil {
			registerDBMetrics(db)
		}
	})
}

func registerDBMetrics(db *sql.DB) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "db_connections_in_use",
			Help: "Open connections currently in use by the observation store",
		},
		func() float64 { return float64(db.Stats().InUse) },
	))
}

// IncActiveConnections moves the active subscriber gauge.
func IncActiveConnections() {
	if activeConnections != nil {
		activeConnections.Inc()
	}
}

// DecActiveConnections moves the active subscriber gauge.
func DecActiveConnections() {
	if activeConnections != nil {
		activeConnections.Dec()
	}
}

// ObserveConnectionDuration records a closed subscriber's lifetime.
func ObserveConnectionDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	if connectionDuration != nil {
		connectionDuration.Observe(d.Seconds())
	}
}

// AddEventsSent counts delivered stream events of one type.
func AddEventsSent(eventType string, count int) {
	if eventType == "" {
		eventType = "unknown"
	}
	if count <= 0 {
		return
	}
	if eventsSent != nil {
		eventsSent.WithLabelValues(eventType).Add(float64(count))
	}
}

// ObserveBroadcast records one fan-out pass.
func ObserveBroadcast(d time.Duration) {
	if broadcastLatency != nil {
		broadcastLatency.Observe(d.Seconds())
	}
}

// IncRelayError counts a dropped message or failed connection write.
func IncRelayError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if relayErrors != nil {
		relayErrors.WithLabelValues(reason).Inc()
	}
}

// IncPublish counts a publish outcome.
func IncPublish(result string) {
	if result == "" {
		result = resultSuccess
	}
	if publishAttempts != nil {
		publishAttempts.WithLabelValues(result).Inc()
	}
}

// IncPublishRetry counts one retried publish attempt.
func IncPublishRetry() {
	if publishRetries != nil {
		publishRetries.Inc()
	}
}

// SetBrokerConnected flips the subscription liveness gauge.
func SetBrokerConnected(connected bool) {
	if brokerConnected == nil {
		return
	}
	if connected {
		brokerConnected.Set(1)
	} else {
		brokerConnected.Set(0)
	}
}

// IncBrokerReconnect counts one reconnect attempt.
func IncBrokerReconnect() {
	if brokerReconnects != nil {
		brokerReconnects.Inc()
	}
}

// IncIngest counts an ingested reading outcome.
func IncIngest(result string) {
	if result == "" {
		result = resultSuccess
	}
	if ingestResults != nil {
		ingestResults.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	ReasonParseError    = reasonParseError
	ReasonSchemaInvalid = reasonSchemaInvalid
	ReasonWriteFailed   = reasonWriteFailed
)
