package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// DLQ outcomes.
const (
	outcomeReplayed    = "replayed"
	outcomeRescheduled = "rescheduled"
	outcomeQuarantined = "quarantined"
)

var (
	deliveredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progression",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Progression events published to Kafka, labeled by event type.",
	}, []string{"event_type"})

	failedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progression",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Progression events whose delivery batch failed, labeled by event type.",
	}, []string{"event_type"})

	deadLetteredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progression",
		Subsystem: "outbox",
		Name:      "events_dead_lettered_total",
		Help:      "Progression events copied to outbox_dlq, labeled by topic and event type.",
	}, []string{"topic", "event_type"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "progression",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent claiming, delivering and settling one outbox batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progression",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "DLQ entries handled by the manager, labeled by outcome and event type.",
	}, []string{"outcome", "event_type"})

	dlqBacklogGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "progression",
		Subsystem: "dlq",
		Name:      "entries",
		Help:      "Entries currently in outbox_dlq, split into waiting and quarantined.",
	}, []string{"state"})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, deadLetteredCounter, batchDuration, dlqOutcomeCounter, dlqBacklogGauge)
}

func recordDelivered(messages []Message) {
	for _, msg := range messages {
		deliveredCounter.WithLabelValues(msg.EventType).Inc()
	}
}

func recordFailed(messages []Message) {
	for _, msg := range messages {
		failedCounter.WithLabelValues(msg.EventType).Inc()
	}
}

func recordDeadLettered(msg Message) {
	deadLetteredCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}

func recordDLQOutcome(outcome string, entry dlqEntry) {
	dlqOutcomeCounter.WithLabelValues(outcome, entry.EventType).Inc()
}

// refreshBacklog reads both DLQ backlog sizes in one query. Errors leave the gauges unchanged.
func refreshBacklog(ctx context.Context, pool *pgxpool.Pool) {
	var waiting, quarantined int
	err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE quarantined_at IS NULL), COUNT(*) FILTER (WHERE quarantined_at IS NOT NULL) FROM outbox_dlq`,
	).Scan(&waiting, &quarantined)
	if err != nil {
		return
	}
	dlqBacklogGauge.WithLabelValues("waiting").Set(float64(waiting))
	dlqBacklogGauge.WithLabelValues("quarantined").Set(float64(quarantined))
}
