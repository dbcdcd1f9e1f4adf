package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery paths an event can reach the handlers through.
const (
	sourceKafka = "kafka"
	sourceRelay = "relay"
)

var (
	handledCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progression",
		Subsystem: "events",
		Name:      "handled_total",
		Help:      "Progression events handled, labeled by delivery path, event type and result.",
	}, []string{"source", "event_type", "result"})

	handleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "progression",
		Subsystem: "events",
		Name:      "handle_duration_seconds",
		Help:      "Time spent in the handler chain per event type.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"event_type"})

	undecodableCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progression",
		Subsystem: "events",
		Name:      "undecodable_total",
		Help:      "Kafka messages committed without handling because they could not be decoded.",
	}, []string{"topic"})

	eventLagGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "progression",
		Subsystem: "events",
		Name:      "last_handled_lag_seconds",
		Help:      "Age of the most recently handled event when its handlers finished.",
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(handledCounter, handleDuration, undecodableCounter, eventLagGauge)
}

// observeHandled records the outcome of one pass through the handlers.
func observeHandled(source string, msg Message, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	handledCounter.WithLabelValues(source, msg.EventType, result).Inc()
	handleDuration.WithLabelValues(msg.EventType).Observe(time.Since(started).Seconds())
	if err == nil && !msg.Timestamp.IsZero() {
		eventLagGauge.WithLabelValues(source).Set(time.Since(msg.Timestamp).Seconds())
	}
}

func recordUndecodable(topic string) {
	undecodableCounter.WithLabelValues(topic).Inc()
}
