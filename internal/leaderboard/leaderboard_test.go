package leaderboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/persistence/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction(
			"github.com/go-redis/redis/v8/internal/pool.(*ConnPool).reaper",
		),
	)
}

func seedCompleted(t *testing.T, store *memory.Store, userID string, date time.Time, sets int) {
	t.Helper()
	entries := []domain.ExerciseEntry{{ExerciseID: "bench"}}
	for i := 0; i < sets; i++ {
		entries[0].Sets = append(entries[0].Sets, domain.Set{Reps: 10, Weight: 10})
	}
	require.NoError(t, store.CreateWorkout(context.Background(), domain.Workout{
		ID:        userID + date.Format(time.RFC3339),
		UserID:    userID,
		Name:      "session",
		Status:    domain.StatusCompleted,
		Date:      date,
		Exercises: entries,
		XPEarned:  sets * 10,
	}))
}

func TestTopFromRedis(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()

	board := NewBoard(rdb, memory.NewStore())
	mock.ExpectExists(BuiltKey).SetVal(1)
	mock.ExpectZRevRangeWithScores(XPKey, 0, 9).SetVal([]redis.Z{
		{Score: 1200, Member: "alice"},
		{Score: 90, Member: "bob"},
	})

	entries, err := board.Top(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.LeaderboardEntry{Rank: 1, UserID: "alice", XP: 1200, Level: 4}, entries[0])
	assert.Equal(t, domain.LeaderboardEntry{Rank: 2, UserID: "bob", XP: 90, Level: 1}, entries[1])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTopRebuildsUnmarkedSet(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()

	store := memory.NewStore()
	now := time.Now().UTC()
	seedCompleted(t, store, "alice", now, 5)
	seedCompleted(t, store, "bob", now, 2)
	seedCompleted(t, store, "carol", now, 1)

	board := NewBoard(rdb, store)
	mock.ExpectExists(BuiltKey).SetVal(0)
	mock.ExpectTxPipeline()
	mock.ExpectDel(XPKey).SetVal(1)
	mock.ExpectZAdd(XPKey,
		&redis.Z{Score: 50, Member: "alice"},
		&redis.Z{Score: 20, Member: "bob"},
		&redis.Z{Score: 10, Member: "carol"},
	).SetVal(3)
	mock.ExpectSet(BuiltKey, "1", 0).SetVal("OK")
	mock.ExpectTxPipelineExec()

	entries, err := board.Top(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].UserID)
	assert.Equal(t, 2, entries[1].Rank)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTopIncludesUsersMissingFromPartialSet(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()

	store := memory.NewStore()
	now := time.Now().UTC()
	seedCompleted(t, store, "veteran", now.AddDate(0, 0, -40), 50)
	seedCompleted(t, store, "newbie", now, 1)
	board := NewBoard(rdb, store)
	ctx := context.Background()

	// Only the recently active user has been written since Redis was flushed.
	mock.ExpectZAdd(XPKey, &redis.Z{Score: 10, Member: "newbie"}).SetVal(1)
	require.NoError(t, board.Record(ctx, "newbie", 10))

	mock.ExpectExists(BuiltKey).SetVal(0)
	mock.ExpectTxPipeline()
	mock.ExpectDel(XPKey).SetVal(1)
	mock.ExpectZAdd(XPKey,
		&redis.Z{Score: 500, Member: "veteran"},
		&redis.Z{Score: 10, Member: "newbie"},
	).SetVal(2)
	mock.ExpectSet(BuiltKey, "1", 0).SetVal("OK")
	mock.ExpectTxPipelineExec()

	entries, err := board.Top(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.LeaderboardEntry{Rank: 1, UserID: "veteran", XP: 500, Level: 3}, entries[0])
	assert.Equal(t, "newbie", entries[1].UserID)

	mock.ExpectExists(BuiltKey).SetVal(1)
	mock.ExpectZRevRangeWithScores(XPKey, 0, 9).SetVal([]redis.Z{
		{Score: 500, Member: "veteran"},
		{Score: 10, Member: "newbie"},
	})
	entries, err = board.Top(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "veteran", entries[0].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTopSurvivesRedisError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()

	store := memory.NewStore()
	seedCompleted(t, store, "alice", time.Now().UTC(), 1)

	board := NewBoard(rdb, store)
	mock.ExpectExists(BuiltKey).SetErr(errors.New("connection refused"))

	entries, err := board.Top(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 10, entries[0].XP)

	mock.ExpectExists(BuiltKey).SetVal(1)
	mock.ExpectZRevRangeWithScores(XPKey, 0, 9).SetErr(errors.New("connection refused"))

	entries, err = board.Top(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRebuildWithoutRedis(t *testing.T) {
	n, err := NewBoard(nil, memory.NewStore()).Rebuild(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecord(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()

	board := NewBoard(rdb, memory.NewStore())
	mock.ExpectZAdd(XPKey, &redis.Z{Score: 340, Member: "alice"}).SetVal(1)
	require.NoError(t, board.Record(context.Background(), "alice", 340))

	mock.ExpectZAdd(XPKey, &redis.Z{Score: 1, Member: "alice"}).SetErr(errors.New("readonly"))
	assert.Error(t, board.Record(context.Background(), "alice", 1))

	assert.NoError(t, NewBoard(nil, memory.NewStore()).Record(context.Background(), "alice", 5))
}

func TestTopByWorkoutsCurrentMonth(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	seedCompleted(t, store, "alice", now.AddDate(0, 0, -1), 1)
	seedCompleted(t, store, "alice", now.AddDate(0, 0, -2), 1)
	seedCompleted(t, store, "bob", now.AddDate(0, 0, -3), 3)
	seedCompleted(t, store, "bob", now.AddDate(0, -1, 0), 3)

	board := NewBoard(nil, store)
	board.now = func() time.Time { return now }

	entries, err := board.TopByWorkouts(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].UserID)
	assert.Equal(t, 2, entries[0].WorkoutCount)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "bob", entries[1].UserID)
	assert.Equal(t, 1, entries[1].WorkoutCount)
	assert.Equal(t, 300.0, entries[1].TotalVolume)
}

func TestTopByStreak(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	_, err := store.SaveStreak(ctx, "alice", 3)
	require.NoError(t, err)
	_, err = store.SaveStreak(ctx, "bob", 9)
	require.NoError(t, err)
	_, err = store.SaveStreak(ctx, "carol", 0)
	require.NoError(t, err)

	entries, err := NewBoard(nil, store).TopByStreak(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bob", entries[0].UserID)
	assert.Equal(t, 9, entries[0].CurrentStreak)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "alice", entries[1].UserID)
}

func TestTopByVolumeCurrentMonth(t *testing.T) {
	store := memory.NewStore()
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	seedCompleted(t, store, "alice", now.AddDate(0, 0, -1), 1)
	seedCompleted(t, store, "alice", now.AddDate(0, 0, -2), 1)
	seedCompleted(t, store, "bob", now.AddDate(0, 0, -3), 3)
	seedCompleted(t, store, "carol", now.AddDate(0, -1, 0), 9)

	board := NewBoard(nil, store)
	board.now = func() time.Time { return now }

	entries, err := board.TopByVolume(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bob", entries[0].UserID)
	assert.Equal(t, 300.0, entries[0].TotalVolume)
	assert.Equal(t, "alice", entries[1].UserID)
	assert.Equal(t, 2, entries[1].WorkoutCount)
}

func TestUserRanks(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	seedCompleted(t, store, "alice", now.AddDate(0, 0, -1), 5)
	seedCompleted(t, store, "alice", now.AddDate(0, 0, -2), 5)
	seedCompleted(t, store, "bob", now.AddDate(0, 0, -1), 5)
	seedCompleted(t, store, "carol", now.AddDate(0, 0, -1), 1)
	seedCompleted(t, store, "carol", now.AddDate(0, -2, 0), 1)
	_, err := store.SaveStreak(ctx, "bob", 4)
	require.NoError(t, err)

	board := NewBoard(nil, store)
	board.now = func() time.Time { return now }

	ranks, err := board.UserRanks(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.UserRanks{XPRank: 2, StreakRank: 1, WorkoutsRank: 2, TotalUsers: 3}, ranks)

	ranks, err = board.UserRanks(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, 3, ranks.XPRank)
	assert.Equal(t, 2, ranks.StreakRank)
	assert.Equal(t, 2, ranks.WorkoutsRank)

	ranks, err = board.UserRanks(ctx, "stranger")
	require.NoError(t, err)
	assert.Equal(t, 4, ranks.XPRank)
	assert.Equal(t, 4, ranks.WorkoutsRank)
}

func TestFriendsLeaderboard(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	seedCompleted(t, store, "alice", now.AddDate(0, 0, -1), 3)
	seedCompleted(t, store, "bob", now.AddDate(0, 0, -1), 1)
	seedCompleted(t, store, "bob", now.AddDate(0, 0, -2), 1)
	seedCompleted(t, store, "carol", now.AddDate(0, -1, 0), 20)
	seedCompleted(t, store, "mallory", now.AddDate(0, 0, -1), 50)

	for _, f := range []domain.Friendship{
		{ID: "f1", RequesterID: "alice", RecipientID: "bob", Status: domain.FriendshipPending},
		{ID: "f2", RequesterID: "carol", RecipientID: "alice", Status: domain.FriendshipPending},
		{ID: "f3", RequesterID: "alice", RecipientID: "mallory", Status: domain.FriendshipPending},
	} {
		require.NoError(t, store.CreateFriendship(ctx, f))
	}
	require.NoError(t, store.AcceptFriendship(ctx, domain.Friendship{ID: "f1", RequesterID: "alice", RecipientID: "bob"}))
	require.NoError(t, store.AcceptFriendship(ctx, domain.Friendship{ID: "f2", RequesterID: "carol", RecipientID: "alice"}))

	board := NewBoard(nil, store)
	board.now = func() time.Time { return now }

	byXP, err := board.Friends(ctx, "alice", KindXP)
	require.NoError(t, err)
	require.Len(t, byXP, 3)
	assert.Equal(t, []string{"carol", "alice", "bob"}, userIDs(byXP))
	assert.True(t, byXP[1].IsCurrentUser)
	assert.False(t, byXP[0].IsCurrentUser)

	byWorkouts, err := board.Friends(ctx, "alice", KindWorkouts)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "alice", "carol"}, userIDs(byWorkouts))
	assert.Equal(t, 0, byWorkouts[2].WorkoutCount)
	assert.Equal(t, 3, byWorkouts[2].Rank)

	byVolume, err := board.Friends(ctx, "alice", KindVolume)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, userIDs(byVolume))
	assert.Equal(t, 300.0, byVolume[0].TotalVolume)

	lonely, err := board.Friends(ctx, "dave", KindXP)
	require.NoError(t, err)
	require.Len(t, lonely, 1)
	assert.True(t, lonely[0].IsCurrentUser)
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("")
	assert.True(t, ok)
	assert.Equal(t, KindXP, k)
	k, ok = ParseKind("volume")
	assert.True(t, ok)
	assert.Equal(t, KindVolume, k)
	_, ok = ParseKind("streak")
	assert.False(t, ok)
}

func userIDs(entries []domain.LeaderboardEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.UserID)
	}
	return out
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(-1))
	assert.Equal(t, MaxLimit, ClampLimit(500))
	assert.Equal(t, 7, ClampLimit(7))
}
