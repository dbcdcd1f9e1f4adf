package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/persistence/memory"
	"example.com/progression/internal/streak"
)

var now = time.Date(2025, time.July, 20, 12, 0, 0, 0, time.UTC)

func completedWorkout(id string, date time.Time, duration int, sets ...domain.Set) domain.Workout {
	entries := []domain.ExerciseEntry{{ExerciseID: "bench", Sets: sets}}
	return domain.Workout{
		ID:        id,
		UserID:    "user-1",
		Name:      id,
		Status:    domain.StatusCompleted,
		Date:      date,
		Duration:  duration,
		Exercises: entries,
		XPEarned:  len(sets)*10 + min(duration/60, 60),
	}
}

func seed(t *testing.T, store *memory.Store, workouts ...domain.Workout) {
	t.Helper()
	for _, w := range workouts {
		require.NoError(t, store.CreateWorkout(context.Background(), w))
	}
}

func TestDashboard(t *testing.T) {
	store := memory.NewStore()
	seed(t, store,
		completedWorkout("today", now.Add(-time.Hour), 1800, domain.Set{Reps: 10, Weight: 60}, domain.Set{Reps: 8, Weight: 70}),
		completedWorkout("yesterday", now.AddDate(0, 0, -1), 600, domain.Set{Reps: 5, Weight: 100}),
		completedWorkout("last-month", now.AddDate(0, 0, -20), 0, domain.Set{Reps: 12, Weight: 40}),
		completedWorkout("ancient", now.AddDate(0, -6, 0), 0, domain.Set{Reps: 1, Weight: 1}),
	)

	tracker := streak.NewTracker(store, streak.WithClock(func() time.Time { return now }))
	svc := NewService(store, tracker)
	svc.now = func() time.Time { return now }

	dash, err := svc.Dashboard(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 4, dash.Overall.Workouts)
	assert.Equal(t, 5, dash.Overall.Sets)
	assert.Equal(t, 2400, dash.Overall.Duration)
	assert.InDelta(t, 600.0, dash.Overall.AvgDuration, 0.001)

	assert.Equal(t, 2, dash.Weekly.Workouts)
	assert.Equal(t, 20+30+10+10, dash.Weekly.XP)

	require.Len(t, dash.Chart, 3)
	assert.Equal(t, now.AddDate(0, 0, -20).Format("2006-01-02"), dash.Chart[0].Date)
	assert.Equal(t, now.Format("2006-01-02"), dash.Chart[2].Date)

	assert.Equal(t, 2, dash.User.CurrentStreak)
	assert.Equal(t, 2, dash.User.LongestStreak)
	assert.Equal(t, 4, dash.User.TotalWorkouts)
}

func TestDashboardCountsOnlyCompletedWorkouts(t *testing.T) {
	store := memory.NewStore()
	planned := completedWorkout("planned", now.AddDate(0, 0, 2), 0, domain.Set{Reps: 5, Weight: 80})
	planned.Status = domain.StatusPlanned
	planned.XPEarned = 0
	seed(t, store,
		completedWorkout("done", now.Add(-time.Hour), 600, domain.Set{Reps: 10, Weight: 60}),
		planned,
	)

	progress, err := store.GetProgress(context.Background(), "user-1")
	require.NoError(t, err)
	require.Equal(t, 2, progress.TotalWorkouts)

	svc := NewService(store, nil)
	svc.now = func() time.Time { return now }
	dash, err := svc.Dashboard(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, dash.Overall.Workouts)
	assert.Equal(t, dash.Overall.Workouts, dash.User.TotalWorkouts)
}

func TestExerciseProgress(t *testing.T) {
	store := memory.NewStore()
	seed(t, store,
		completedWorkout("a", now.AddDate(0, 0, -2), 0, domain.Set{Reps: 10, Weight: 50}, domain.Set{Reps: 10, Weight: 70}),
		completedWorkout("b", now.AddDate(0, 0, -1), 0, domain.Set{Reps: 12, Weight: 60}),
	)

	progress, err := NewService(store, nil).ExerciseProgress(context.Background(), "user-1", "bench")
	require.NoError(t, err)
	require.Len(t, progress.History, 2)
	assert.Equal(t, "b", progress.History[0].WorkoutID)

	older := progress.History[1]
	assert.Equal(t, 2, older.Sets)
	assert.Equal(t, 20, older.Reps)
	assert.Equal(t, 60.0, older.AvgWeight)
	assert.Equal(t, 70.0, older.MaxWeight)
	assert.Equal(t, 1200.0, older.Volume)

	assert.Equal(t, Bests{MaxWeight: 70, MaxVolume: 1200, MaxSets: 2, MaxReps: 20}, progress.Bests)

	empty, err := NewService(store, nil).ExerciseProgress(context.Background(), "user-1", "squat")
	require.NoError(t, err)
	assert.Empty(t, empty.History)
	assert.Equal(t, Bests{}, empty.Bests)
}

func TestWorkoutStatsWindow(t *testing.T) {
	store := memory.NewStore()
	seed(t, store,
		completedWorkout("recent", now.AddDate(0, 0, -3), 0, domain.Set{Reps: 1}),
		completedWorkout("old", now.AddDate(0, 0, -40), 0, domain.Set{Reps: 1}),
	)
	svc := NewService(store, nil)
	svc.now = func() time.Time { return now }

	totals, err := svc.WorkoutStats(context.Background(), "user-1", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.Workouts)
}

func TestSessionForEmptyEntry(t *testing.T) {
	assert.Equal(t, Session{}, SessionFor(domain.ExerciseEntry{}))
}
