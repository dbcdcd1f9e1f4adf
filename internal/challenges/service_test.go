package challenges

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/events"
	"example.com/progression/internal/persistence/memory"
)

var start = time.Date(2025, time.May, 5, 9, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newService(t *testing.T) (*Service, *memory.Store, *clock) {
	t.Helper()
	store := memory.NewStore(memory.WithExercises(
		domain.Exercise{ID: "bench", Name: "Bench Press"},
		domain.Exercise{ID: "squat", Name: "Back Squat"},
	))
	c := &clock{t: start}
	svc := NewService(store)
	svc.now = c.now
	return svc, store, c
}

func logWorkout(t *testing.T, store *memory.Store, userID string, date time.Time, entries ...domain.ExerciseEntry) {
	t.Helper()
	require.NoError(t, store.CreateWorkout(context.Background(), domain.Workout{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      "session",
		Status:    domain.StatusCompleted,
		Date:      date,
		Exercises: entries,
	}))
}

func sets(exerciseID string, reps int, weight float64, n int) domain.ExerciseEntry {
	e := domain.ExerciseEntry{ExerciseID: exerciseID}
	for i := 0; i < n; i++ {
		e.Sets = append(e.Sets, domain.Set{Reps: reps, Weight: weight})
	}
	return e
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{name: "self", in: CreateInput{ChallengedID: "alice", Type: domain.ChallengeVolume, TargetValue: 1}, want: domain.ErrInvalidChallenge},
		{name: "unknown exercise", in: CreateInput{ChallengedID: "bob", Type: domain.ChallengeSpecificExercise, TargetValue: 1, ExerciseID: "curl"}, want: domain.ErrExerciseNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, "alice", tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	invalid := []CreateInput{
		{Type: domain.ChallengeVolume, TargetValue: 1},
		{ChallengedID: "bob", Type: "distance", TargetValue: 1},
		{ChallengedID: "bob", Type: domain.ChallengeVolume},
		{ChallengedID: "bob", Type: domain.ChallengeVolume, TargetValue: 1, Duration: MaxDuration + 1},
		{ChallengedID: "bob", Type: domain.ChallengeSpecificExercise, TargetValue: 1},
	}
	for _, in := range invalid {
		_, err := svc.Create(ctx, "alice", in)
		assert.Equal(t, domain.KindValidation, domain.KindOf(err), "%+v", in)
	}
}

func TestCreateEnqueuesEventForChallenged(t *testing.T) {
	svc, store, _ := newService(t)
	c, err := svc.Create(context.Background(), "alice", CreateInput{
		ChallengedID: "bob", Type: domain.ChallengeWorkoutCount, TargetValue: 5, ExerciseID: "bench",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ChallengePending, c.Status)
	assert.Equal(t, DefaultDuration, c.Duration)
	assert.Empty(t, c.ExerciseID, "only specific_exercise keeps an exercise")

	pending := store.DrainEvents()
	require.Len(t, pending, 1)
	assert.Equal(t, events.ChallengeCreated, pending[0].Type)
	assert.Equal(t, "bob", pending[0].UserID)
	assert.Equal(t, events.TopicSocial, pending[0].Topic)
}

func TestAcceptAndReject(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	in := CreateInput{ChallengedID: "bob", Type: domain.ChallengeVolume, TargetValue: 1000, Duration: 3}

	c, err := svc.Create(ctx, "alice", in)
	require.NoError(t, err)

	_, err = svc.Accept(ctx, "alice", c.ID)
	assert.ErrorIs(t, err, domain.ErrChallengeNotFound, "the challenger cannot accept")

	accepted, err := svc.Accept(ctx, "bob", c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ChallengeAccepted, accepted.Status)
	require.NotNil(t, accepted.EndDate)
	assert.Equal(t, start.AddDate(0, 0, 3), *accepted.EndDate)

	_, err = svc.Reject(ctx, "bob", c.ID)
	assert.ErrorIs(t, err, domain.ErrChallengeNotFound, "only pending challenges can be rejected")

	other, err := svc.Create(ctx, "alice", in)
	require.NoError(t, err)
	rejected, err := svc.Reject(ctx, "bob", other.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ChallengeRejected, rejected.Status)

	mine, err := svc.List(ctx, "bob", domain.ChallengeAccepted)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, c.ID, mine[0].ID)

	all, err := svc.List(ctx, "alice", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.List(ctx, "alice", "won")
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = svc.Get(ctx, "mallory", c.ID)
	assert.ErrorIs(t, err, domain.ErrChallengeNotFound)
}

func TestProgressByType(t *testing.T) {
	svc, store, clk := newService(t)
	ctx := context.Background()

	logWorkout(t, store, "alice", start.Add(-time.Hour), sets("bench", 10, 100, 5))
	logWorkout(t, store, "alice", start.Add(24*time.Hour), sets("bench", 10, 50, 2), sets("squat", 5, 100, 1))
	logWorkout(t, store, "alice", start.Add(48*time.Hour), sets("squat", 5, 100, 2))
	logWorkout(t, store, "bob", start.Add(30*time.Hour), sets("bench", 8, 60, 3))
	logWorkout(t, store, "bob", start.AddDate(0, 0, 10), sets("bench", 10, 200, 10))

	tests := []struct {
		kind           domain.ChallengeType
		exerciseID     string
		wantChallenger float64
		wantChallenged float64
	}{
		{kind: domain.ChallengeWorkoutCount, wantChallenger: 2, wantChallenged: 1},
		{kind: domain.ChallengeVolume, wantChallenger: 1000 + 500 + 1000, wantChallenged: 1440},
		{kind: domain.ChallengeSpecificExercise, exerciseID: "bench", wantChallenger: 1000, wantChallenged: 1440},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			clk.t = start
			c, err := svc.Create(ctx, "alice", CreateInput{ChallengedID: "bob", Type: tt.kind, TargetValue: 1, ExerciseID: tt.exerciseID})
			require.NoError(t, err)
			_, err = svc.Accept(ctx, "bob", c.ID)
			require.NoError(t, err)

			clk.t = start.AddDate(0, 0, 3)
			scored, err := svc.UpdateProgress(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.ChallengeAccepted, scored.Status)
			assert.Equal(t, tt.wantChallenger, scored.ChallengerProgress)
			assert.Equal(t, tt.wantChallenged, scored.ChallengedProgress)

			got, err := svc.Get(ctx, "alice", c.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantChallenger, got.ChallengerProgress)
		})
	}
}

func TestRefreshExpiresAndCompletes(t *testing.T) {
	svc, store, clk := newService(t)
	ctx := context.Background()

	stale, err := svc.Create(ctx, "alice", CreateInput{ChallengedID: "carol", Type: domain.ChallengeVolume, TargetValue: 1})
	require.NoError(t, err)

	clk.t = start.AddDate(0, 0, 2)
	fresh, err := svc.Create(ctx, "alice", CreateInput{ChallengedID: "dave", Type: domain.ChallengeVolume, TargetValue: 1})
	require.NoError(t, err)
	race, err := svc.Create(ctx, "alice", CreateInput{ChallengedID: "bob", Type: domain.ChallengeWorkoutCount, TargetValue: 3, Duration: 2})
	require.NoError(t, err)
	_, err = svc.Accept(ctx, "bob", race.ID)
	require.NoError(t, err)
	logWorkout(t, store, "bob", start.AddDate(0, 0, 3), sets("bench", 5, 50, 1))
	store.DrainEvents()

	clk.t = start.AddDate(0, 0, 5)
	res, err := svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, RefreshResult{Expired: 0, Updated: 1, Completed: 1}, res)

	clk.t = start.AddDate(0, 0, 8)
	res, err = svc.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Zero(t, res.Updated)

	got, err := store.GetChallenge(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ChallengeExpired, got.Status)
	got, err = store.GetChallenge(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ChallengePending, got.Status)

	done, err := store.GetChallenge(ctx, race.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ChallengeCompleted, done.Status)
	assert.Equal(t, "bob", done.WinnerID)
	assert.Equal(t, 1.0, done.ChallengedProgress)
	require.NotNil(t, done.CompletedAt)

	completed := store.DrainEvents()
	require.Len(t, completed, 2)
	recipients := []string{completed[0].UserID, completed[1].UserID}
	assert.ElementsMatch(t, []string{"alice", "bob"}, recipients)
	assert.Equal(t, events.ChallengeCompleted, completed[0].Type)
}

func TestCompletedChallengeWithoutWinnerIsDraw(t *testing.T) {
	svc, _, clk := newService(t)
	ctx := context.Background()
	c, err := svc.Create(ctx, "alice", CreateInput{ChallengedID: "bob", Type: domain.ChallengeWorkoutCount, TargetValue: 1, Duration: 1})
	require.NoError(t, err)
	_, err = svc.Accept(ctx, "bob", c.ID)
	require.NoError(t, err)

	clk.t = start.AddDate(0, 0, 2)
	done, err := svc.UpdateProgress(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ChallengeCompleted, done.Status)
	assert.Empty(t, done.WinnerID)

	again, err := svc.UpdateProgress(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, done.CompletedAt, again.CompletedAt, "completed challenges are not rescored")

	_, err = svc.UpdateProgress(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrChallengeNotFound)
}
