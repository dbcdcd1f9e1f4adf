// Package domain defines the progression engine's entities, store contracts and error taxonomy.
package domain

import (
	"strings"
	"time"
)

// WorkoutStatus tracks a workout through planned -> in-progress -> completed.
type WorkoutStatus string

const (
	StatusPlanned    WorkoutStatus = "planned"
	StatusInProgress WorkoutStatus = "in-progress"
	StatusCompleted  WorkoutStatus = "completed"
)

// Visibility gates feed inclusion and like/comment permission.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityFriends Visibility = "friends"
	VisibilityPublic  Visibility = "public"
)

// Numeric bounds enforced on logged sets and workouts.
const (
	MaxReps        = 999
	MaxWeight      = 9999
	MaxDurationSec = 86400
	MaxDistance    = 999999
	MaxNameLength  = 100
	MaxNotesLength = 1000
)

// Set is a single logged set. Zero values mean the metric was not recorded.
type Set struct {
	Reps        int        `json:"reps,omitempty"`
	Weight      float64    `json:"weight,omitempty"`
	Duration    int        `json:"duration,omitempty"`
	Distance    float64    `json:"distance,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ExerciseEntry is one exercise performed in a workout with its ordered sets.
type ExerciseEntry struct {
	ExerciseID string `json:"exercise_id"`
	Sets       []Set  `json:"sets"`
	Notes      string `json:"notes,omitempty"`
}

// Workout is a user's exercise session.
type Workout struct {
	ID           string
	UserID       string
	Name         string
	Exercises    []ExerciseEntry
	Status       WorkoutStatus
	Visibility   Visibility
	Date         time.Time
	Duration     int
	Notes        string
	XPEarned     int
	IsDeleted    bool
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
	LastEditedAt time.Time
	UpdatedAt    time.Time
}

// TotalVolume sums weight x reps across every set of the workout.
func (w Workout) TotalVolume() float64 {
	var volume float64
	for _, ex := range w.Exercises {
		for _, set := range ex.Sets {
			volume += set.Weight * float64(set.Reps)
		}
	}
	return volume
}

// ExerciseIDs returns the distinct exercise ids referenced by the workout, in order.
func ExerciseIDs(entries []ExerciseEntry) []string {
	seen := make(map[string]struct{}, len(entries))
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.ExerciseID]; ok {
			continue
		}
		seen[entry.ExerciseID] = struct{}{}
		ids = append(ids, entry.ExerciseID)
	}
	return ids
}

// ValidateExercises checks exercise entries and their sets against the numeric bounds.
func ValidateExercises(entries []ExerciseEntry) error {
	for i, entry := range entries {
		if strings.TrimSpace(entry.ExerciseID) == "" {
			return Validation("exercises[%d].exercise_id is required", i)
		}
		for j, set := range entry.Sets {
			if err := set.Validate(); err != nil {
				return Validation("exercises[%d].sets[%d]: %s", i, j, err.Message)
			}
		}
	}
	return nil
}

// Validate checks the set's numeric bounds.
func (s Set) Validate() *Error {
	switch {
	case s.Reps < 0 || s.Reps > MaxReps:
		return Validation("reps must be between 0 and %d", MaxReps)
	case s.Weight < 0 || s.Weight > MaxWeight:
		return Validation("weight must be between 0 and %d", MaxWeight)
	case s.Duration < 0 || s.Duration > MaxDurationSec:
		return Validation("duration must be between 0 and %d", MaxDurationSec)
	case s.Distance < 0 || s.Distance > MaxDistance:
		return Validation("distance must be between 0 and %d", MaxDistance)
	}
	return nil
}

// ValidateDuration checks a workout-level duration in seconds.
func ValidateDuration(seconds int) error {
	if seconds < 0 || seconds > MaxDurationSec {
		return Validation("duration must be between 0 and %d seconds", MaxDurationSec)
	}
	return nil
}

// ParseVisibility validates a visibility value; empty defaults to private.
func ParseVisibility(raw string) (Visibility, error) {
	switch Visibility(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return VisibilityPrivate, nil
	case VisibilityPrivate:
		return VisibilityPrivate, nil
	case VisibilityFriends:
		return VisibilityFriends, nil
	case VisibilityPublic:
		return VisibilityPublic, nil
	}
	return "", Validation("visibility must be one of private, friends, public")
}

// Cursor models the pagination token for date-ordered lists.
type Cursor struct {
	Date time.Time
	ID   string
}

// WorkoutFilter narrows a user's workout listing.
type WorkoutFilter struct {
	From       *time.Time
	To         *time.Time
	ExerciseID string
	Cursor     *Cursor
	Limit      int
}
