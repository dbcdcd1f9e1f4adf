package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"example.com/progression/internal/achievements"
	"example.com/progression/internal/challenges"
	"example.com/progression/internal/domain"
	"example.com/progression/internal/persistence/memory"
	"example.com/progression/internal/streak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var now = time.Date(2026, time.May, 20, 18, 0, 0, 0, time.UTC)

func completedWorkout(id, userID string, date time.Time) domain.Workout {
	return domain.Workout{
		ID:         id,
		UserID:     userID,
		Name:       "Session",
		Exercises:  []domain.ExerciseEntry{{ExerciseID: "bench", Sets: []domain.Set{{Reps: 5, Weight: 100, Completed: true}}}},
		Status:     domain.StatusCompleted,
		Visibility: domain.VisibilityPrivate,
		Date:       date,
		XPEarned:   10,
		CreatedAt:  date,
		UpdatedAt:  date,
	}
}

type rebuilder struct {
	store  *memory.Store
	scores map[string]int
}

func (r *rebuilder) Rebuild(ctx context.Context) (int, error) {
	users, err := r.store.TopByXP(ctx, 0)
	if err != nil {
		return 0, err
	}
	for _, u := range users {
		r.scores[u.UserID] = u.XP
	}
	return len(users), nil
}

func TestRunOnceRefreshesActiveUsers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.WithAchievements(achievements.DefaultCatalog()...))

	require.NoError(t, store.CreateWorkout(ctx, completedWorkout("w-1", "active", now.AddDate(0, 0, -1))))
	require.NoError(t, store.CreateWorkout(ctx, completedWorkout("w-2", "active", now)))
	require.NoError(t, store.CreateWorkout(ctx, completedWorkout("w-3", "lapsed", now.AddDate(0, 0, -10))))
	require.NoError(t, store.CreateWorkout(ctx, completedWorkout("w-4", "gone", now.AddDate(0, 0, -90))))
	_, err := store.SaveStreak(ctx, "lapsed", 4)
	require.NoError(t, err)
	_, err = store.SaveStreak(ctx, "gone", 6)
	require.NoError(t, err)

	stale := domain.Challenge{
		ID:           "ch-1",
		ChallengerID: "active",
		ChallengedID: "lapsed",
		Type:         domain.ChallengeVolume,
		TargetValue:  1000,
		Duration:     7,
		Status:       domain.ChallengePending,
		CreatedAt:    time.Now().AddDate(0, 0, -30),
	}
	require.NoError(t, store.CreateChallenge(ctx, stale))

	board := &rebuilder{store: store, scores: map[string]int{}}
	tracker := streak.NewTracker(store, streak.WithClock(func() time.Time { return now }))
	sweeper := New(store, tracker, achievements.NewEvaluator(store, nil), 30*24*time.Hour,
		WithClock(func() time.Time { return now }),
		WithLeaderboard(board),
		WithChallenges(challenges.NewService(store)),
	)

	res, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Users)
	assert.Zero(t, res.Failed)
	assert.GreaterOrEqual(t, res.Unlocked, 2, "both visited users earn first_workout")

	active, err := store.GetProgress(ctx, "active")
	require.NoError(t, err)
	assert.Equal(t, 2, active.CurrentStreak)

	lapsed, err := store.GetProgress(ctx, "lapsed")
	require.NoError(t, err)
	assert.Zero(t, lapsed.CurrentStreak)
	assert.Equal(t, 4, lapsed.LongestStreak)

	gone, err := store.GetProgress(ctx, "gone")
	require.NoError(t, err)
	assert.Equal(t, 6, gone.CurrentStreak, "users outside the window are not visited")

	assert.Equal(t, 3, res.Ranked)
	assert.Contains(t, board.scores, "active")
	assert.Contains(t, board.scores, "gone", "the leaderboard is rebuilt for every user")
	assert.Equal(t, 1, res.Challenges.Expired)

	expired, err := store.GetChallenge(ctx, "ch-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ChallengeExpired, expired.Status)

	again, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Unlocked)
}

type flakyStreaks struct {
	failFor string
}

func (f flakyStreaks) Recompute(_ context.Context, userID string) (streak.Result, error) {
	if userID == f.failFor {
		return streak.Result{}, errors.New("store unavailable")
	}
	return streak.Result{}, nil
}

type noAchievements struct{}

func (noAchievements) Check(context.Context, string) ([]domain.Achievement, error) {
	return nil, nil
}

type failingBoard struct{}

func (failingBoard) Rebuild(context.Context) (int, error) {
	return 0, errors.New("redis down")
}

type staticUsers []string

func (s staticUsers) ActiveUsers(context.Context, time.Time) ([]string, error) {
	return s, nil
}

func TestRunOnceContinuesPastFailures(t *testing.T) {
	sweeper := New(staticUsers{"a", "b", "c"}, flakyStreaks{failFor: "b"}, noAchievements{}, time.Hour)

	res, err := sweeper.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user b")
	assert.Equal(t, Result{Users: 3, Failed: 1}, res)
}

func TestRunOnceReportsRebuildFailure(t *testing.T) {
	sweeper := New(staticUsers{"a"}, flakyStreaks{}, noAchievements{}, time.Hour, WithLeaderboard(failingBoard{}))

	res, err := sweeper.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rebuild leaderboard")
	assert.Equal(t, 1, res.Users)
	assert.Zero(t, res.Failed)
}

func TestRunOnceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sweeper := New(staticUsers{"a", "b"}, flakyStreaks{}, noAchievements{}, time.Hour)

	res, err := sweeper.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Users)
}

func TestSchedule(t *testing.T) {
	sweeper := New(staticUsers{}, flakyStreaks{}, noAchievements{}, time.Hour)
	c := cron.New()

	require.NoError(t, sweeper.Schedule(context.Background(), c, "@every 1h"))
	assert.Len(t, c.Entries(), 1)

	err := sweeper.Schedule(context.Background(), c, "not a schedule")
	assert.Error(t, err)
	assert.Len(t, c.Entries(), 1)
}
