package workout

import (
	"context"

	"example.com/progression/internal/domain"
)

//go:generate mockgen -source=$GOFILE -destination=deps_mocks_test.go -package=workout_test

// ExerciseVerifier rejects workouts that reference unknown exercises.
type ExerciseVerifier interface {
	Verify(ctx context.Context, exerciseIDs []string) error
}

// RecordDetector appends personal records for a completed workout.
type RecordDetector interface {
	Detect(ctx context.Context, workout domain.Workout) ([]domain.PersonalRecord, error)
}
