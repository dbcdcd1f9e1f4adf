package workout

import (
	"context"

	"example.com/progression/internal/domain"
)

// Repository persists workouts. Every mutation adjusts the owner's progression block and
// enqueues the matching outbox event inside the same transaction.
type Repository interface {
	// CreateWorkout stores the workout, adds its XP to the owner and increments total workouts.
	CreateWorkout(ctx context.Context, workout domain.Workout) error
	// GetWorkout returns the owner's non-deleted workout, or nil.
	GetWorkout(ctx context.Context, userID, workoutID string) (*domain.Workout, error)
	ListWorkouts(ctx context.Context, userID string, filter domain.WorkoutFilter) ([]domain.Workout, *domain.Cursor, error)
	// UpdateWorkout replaces the workout and applies XPEarned minus the stored value to the owner.
	// It returns the applied delta, or domain.ErrWorkoutNotFound when the row is gone.
	UpdateWorkout(ctx context.Context, workout domain.Workout, eventType string) (int, error)
	// SoftDeleteWorkout flags the workout deleted and subtracts its XP once. It returns nil
	// when the workout is missing or already deleted.
	SoftDeleteWorkout(ctx context.Context, userID, workoutID string) (*domain.Workout, error)
}
