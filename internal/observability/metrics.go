// Package observability holds the process-wide progression metrics and tracer.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
)

// Tracer is shared by the progression components for span creation.
var Tracer = otel.Tracer("progression-engine")

var (
	workoutsFinishedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "progression",
		Subsystem: "workouts",
		Name:      "finished_total",
		Help:      "Number of workouts transitioned to completed.",
	})
	workoutsDeletedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "progression",
		Subsystem: "workouts",
		Name:      "deleted_total",
		Help:      "Number of workouts soft deleted.",
	})
	xpAwardedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "progression",
		Subsystem: "workouts",
		Name:      "xp_delta_applied_total",
		Help:      "Sum of absolute XP deltas applied to user totals by workout changes.",
	})
	recordsCreatedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progression",
		Subsystem: "records",
		Name:      "created_total",
		Help:      "Number of personal records appended, labeled by metric type.",
	}, []string{"type"})
	recordDetectionFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "progression",
		Subsystem: "records",
		Name:      "detection_failures_total",
		Help:      "Number of best-effort record detections that failed during finish or edit.",
	})
	achievementsUnlockedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progression",
		Subsystem: "achievements",
		Name:      "unlocked_total",
		Help:      "Number of achievements unlocked, labeled by category.",
	}, []string{"category"})
	lastWorkoutCompletedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "progression",
		Subsystem: "workouts",
		Name:      "last_completed_timestamp_seconds",
		Help:      "Unix timestamp of the most recent workout completion.",
	})
	sweepUsersCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "progression",
		Subsystem: "sweep",
		Name:      "users_total",
		Help:      "Number of users visited by the periodic sweep, labeled by outcome.",
	}, []string{"outcome"})
	sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "progression",
		Subsystem: "sweep",
		Name:      "duration_seconds",
		Help:      "Duration of a full sweep run.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(
		workoutsFinishedCounter,
		workoutsDeletedCounter,
		xpAwardedCounter,
		recordsCreatedCounter,
		recordDetectionFailures,
		achievementsUnlockedCounter,
		lastWorkoutCompletedGauge,
		sweepUsersCounter,
		sweepDuration,
	)
}

// RecordWorkoutFinished bumps the finish counter and completion watermark.
func RecordWorkoutFinished(ts time.Time) {
	workoutsFinishedCounter.Inc()
	if !ts.IsZero() {
		lastWorkoutCompletedGauge.Set(float64(ts.Unix()))
	}
}

// RecordWorkoutDeleted counts a soft delete.
func RecordWorkoutDeleted() {
	workoutsDeletedCounter.Inc()
}

// RecordXPDelta accumulates the magnitude of an applied XP delta.
func RecordXPDelta(delta int) {
	if delta < 0 {
		delta = -delta
	}
	xpAwardedCounter.Add(float64(delta))
}

// RecordPersonalRecord counts an appended record.
func RecordPersonalRecord(recordType string) {
	recordsCreatedCounter.WithLabelValues(recordType).Inc()
}

// RecordDetectionFailure counts a swallowed detector failure.
func RecordDetectionFailure() {
	recordDetectionFailures.Inc()
}

// RecordAchievementUnlocked counts an unlock.
func RecordAchievementUnlocked(category string) {
	achievementsUnlockedCounter.WithLabelValues(category).Inc()
}

// RecordSweepUser counts one user visited by the sweep. outcome is "ok" or "error".
func RecordSweepUser(outcome string) {
	sweepUsersCounter.WithLabelValues(outcome).Inc()
}

// ObserveSweep records how long a sweep run took.
func ObserveSweep(d time.Duration) {
	sweepDuration.Observe(d.Seconds())
}
