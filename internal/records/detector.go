// Package records detects and serves append-only personal records.
package records

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/observability"
)

// Repository stores record history. AppendRecord also enqueues the record.created event.
type Repository interface {
	CurrentBest(ctx context.Context, userID, exerciseID string, recordType domain.RecordType) (*domain.PersonalRecord, error)
	AppendRecord(ctx context.Context, record domain.PersonalRecord, exerciseName string) error
	ListRecords(ctx context.Context, userID, exerciseID string, since time.Time) ([]domain.PersonalRecord, error)
}

// ExerciseLookup resolves exercise names for event payloads.
type ExerciseLookup interface {
	Lookup(ctx context.Context, ids []string) (map[string]domain.Exercise, error)
}

// Detector compares completed workouts against stored bests.
type Detector struct {
	repo      Repository
	exercises ExerciseLookup
	now       func() time.Time
}

// NewDetector constructs a Detector. exercises may be nil, in which case events carry no names.
func NewDetector(repo Repository, exercises ExerciseLookup) *Detector {
	return &Detector{repo: repo, exercises: exercises, now: time.Now}
}

// Metrics are the per-exercise values a workout is evaluated on.
type Metrics map[domain.RecordType]float64

// ExtractMetrics computes max weight, max reps, total volume, max set duration and max set distance.
func ExtractMetrics(entry domain.ExerciseEntry) Metrics {
	m := Metrics{}
	for _, set := range entry.Sets {
		m[domain.RecordWeight] = max(m[domain.RecordWeight], set.Weight)
		m[domain.RecordReps] = max(m[domain.RecordReps], float64(set.Reps))
		m[domain.RecordVolume] += set.Weight * float64(set.Reps)
		m[domain.RecordDuration] = max(m[domain.RecordDuration], float64(set.Duration))
		m[domain.RecordDistance] = max(m[domain.RecordDistance], set.Distance)
	}
	return m
}

// Detect appends a record for every metric that strictly exceeds the user's current best and
// returns the new rows. Existing rows are never touched, so re-running after an edit is safe.
func (d *Detector) Detect(ctx context.Context, workout domain.Workout) (created []domain.PersonalRecord, err error) {
	ctx, span := observability.Tracer.Start(ctx, "records.detect")
	span.SetAttributes(attribute.String("workout.id", workout.ID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	names := d.exerciseNames(ctx, workout.Exercises)
	achievedAt := d.now().UTC()

	for _, entry := range workout.Exercises {
		metrics := ExtractMetrics(entry)
		for _, recordType := range domain.RecordTypes {
			value := metrics[recordType]
			if value <= 0 {
				continue
			}
			record, err := d.appendIfBetter(ctx, workout, entry.ExerciseID, recordType, value, achievedAt, names[entry.ExerciseID])
			if err != nil {
				return created, err
			}
			if record != nil {
				created = append(created, *record)
			}
		}
	}
	return created, nil
}

func (d *Detector) appendIfBetter(ctx context.Context, workout domain.Workout, exerciseID string, recordType domain.RecordType, value float64, achievedAt time.Time, exerciseName string) (*domain.PersonalRecord, error) {
	best, err := d.repo.CurrentBest(ctx, workout.UserID, exerciseID, recordType)
	if err != nil {
		return nil, fmt.Errorf("current best %s/%s: %w", exerciseID, recordType, err)
	}
	if best != nil && value <= best.Value {
		return nil, nil
	}

	record := domain.PersonalRecord{
		ID:         uuid.NewString(),
		UserID:     workout.UserID,
		ExerciseID: exerciseID,
		WorkoutID:  workout.ID,
		Type:       recordType,
		Value:      value,
		Unit:       recordType.Unit(),
		AchievedAt: achievedAt,
	}
	if best != nil {
		previous := best.Value
		record.PreviousValue = &previous
		record.Improvement = Improvement(previous, value)
	}

	if err := d.repo.AppendRecord(ctx, record, exerciseName); err != nil {
		return nil, fmt.Errorf("append record %s/%s: %w", exerciseID, recordType, err)
	}
	observability.RecordPersonalRecord(string(recordType))
	return &record, nil
}

// Improvement is the percentage change from previous to value, or 0 without a usable previous.
func Improvement(previous, value float64) float64 {
	if previous <= 0 {
		return 0
	}
	return (value - previous) / previous * 100
}

func (d *Detector) exerciseNames(ctx context.Context, entries []domain.ExerciseEntry) map[string]string {
	names := make(map[string]string)
	if d.exercises == nil {
		return names
	}
	found, err := d.exercises.Lookup(ctx, domain.ExerciseIDs(entries))
	if err != nil {
		return names
	}
	for id, ex := range found {
		names[id] = ex.Name
	}
	return names
}
