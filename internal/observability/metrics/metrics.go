package metrics

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "homewatch_"

	resultSuccess = "success"
	resultError   = "error"
	resultNone    = "none"

	escalationFailed      = "failed"
	escalationNoTarget    = "no_target"
	escalationNoPhone     = "no_phone"
	escalationUnavailable = "unavailable"
)

var (
	registerOnce sync.Once

	eventsIngested *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	healthUpdates *prometheus.CounterVec
	alertEvents   *prometheus.CounterVec

	escalations *prometheus.CounterVec
	predictions *prometheus.CounterVec

	persistenceTotal   *prometheus.CounterVec
	persistenceLatency *prometheus.HistogramVec
)

// Init registers engine metrics and the state gauges backed by g.
func Init(g Gauges, logger *log.Logger) {
	registerOnce.Do(func() {
		eventsIngested = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_ingested_total",
				Help: "Total ingested events by event type",
			},
			[]string{"type"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "HTTP event ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		healthUpdates = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "health_updates_total",
				Help: "Total device health observations by status",
			},
			[]string{"status"},
		)
		alertEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_events_total",
				Help: "Total alert lifecycle events by type",
			},
			[]string{"event"},
		)

		escalations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "escalations_total",
				Help: "Total escalation attempts by result",
			},
			[]string{"result"},
		)
		predictions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "predictions_total",
				Help: "Total chain predictions by result",
			},
			[]string{"result"},
		)

		persistenceTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "persistence_operations_total",
				Help: "Total state load/save operations by result",
			},
			[]string{"op", "result"},
		)
		persistenceLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "persistence_latency_seconds",
				Help:    "State load/save latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "result"},
		)

		prometheus.MustRegister(
			eventsIngested,
			ingestLatency,
			healthUpdates,
			alertEvents,
			escalations,
			predictions,
			persistenceTotal,
			persistenceLatency,
		)

		registerGauges(g, logger)
	})
}

// IncEventIngested increments the ingest counter for an event type.
func IncEventIngested(eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}
	if eventsIngested != nil {
		eventsIngested.WithLabelValues(eventType).Inc()
	}
}

// ObserveIngest records HTTP ingest duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncHealthUpdate increments the health observation counter.
func IncHealthUpdate(status string) {
	if status == "" {
		status = "unknown"
	}
	if healthUpdates != nil {
		healthUpdates.WithLabelValues(status).Inc()
	}
}

// IncAlertEvent increments alert lifecycle counters.
func IncAlertEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if alertEvents != nil {
		alertEvents.WithLabelValues(event).Inc()
	}
}

// IncEscalation increments escalation counters.
func IncEscalation(result string) {
	if result == "" {
		result = "unknown"
	}
	if escalations != nil {
		escalations.WithLabelValues(result).Inc()
	}
}

// IncPrediction records whether a prediction was produced.
func IncPrediction(predicted bool) {
	result := resultNone
	if predicted {
		result = resultSuccess
	}
	if predictions != nil {
		predictions.WithLabelValues(result).Inc()
	}
}

// ObservePersistence records a load or save and its outcome.
func ObservePersistence(op string, err error, duration time.Duration) {
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	if persistenceTotal != nil {
		persistenceTotal.WithLabelValues(op, result).Inc()
	}
	if persistenceLatency != nil {
		persistenceLatency.WithLabelValues(op, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	EscalationSuccess     = resultSuccess
	EscalationFailed      = escalationFailed
	EscalationNoTarget    = escalationNoTarget
	EscalationNoPhone     = escalationNoPhone
	EscalationUnavailable = escalationUnavailable
)
