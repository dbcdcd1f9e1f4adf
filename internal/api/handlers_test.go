package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/progression/internal/achievements"
	"example.com/progression/internal/auth"
	"example.com/progression/internal/catalog"
	"example.com/progression/internal/challenges"
	"example.com/progression/internal/domain"
	"example.com/progression/internal/leaderboard"
	"example.com/progression/internal/notify"
	"example.com/progression/internal/observability"
	"example.com/progression/internal/persistence/memory"
	"example.com/progression/internal/records"
	"example.com/progression/internal/social"
	"example.com/progression/internal/stats"
	"example.com/progression/internal/streak"
	"example.com/progression/internal/workout"
)

var testAuth = auth.Config{Secret: "api-test-secret", Issuer: "progression.test"}

type testServer struct {
	t      *testing.T
	store  *memory.Store
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore(
		memory.WithExercises(
			domain.Exercise{ID: "bench", Name: "Bench Press", Category: "strength"},
			domain.Exercise{ID: "squat", Name: "Back Squat", Category: "strength"},
		),
		memory.WithAchievements(achievements.DefaultCatalog()...),
	)
	exercises := catalog.New(store, 1)
	detector := records.NewDetector(store, exercises)
	tracker := streak.NewTracker(store)

	handler := NewHandler(Services{
		Workouts:      workout.NewService(store, exercises, detector),
		Social:        social.NewService(store),
		Records:       detector,
		Achievements:  achievements.NewEvaluator(store, tracker),
		Stats:         stats.NewService(store, tracker),
		Leaderboard:   leaderboard.NewBoard(nil, store),
		Notifications: notify.NewService(store),
		Challenges:    challenges.NewService(store),
	})
	router := handler.Router(RouterParams{
		Auth:            auth.NewMiddleware(testAuth),
		Instrumentation: observability.NewHTTPInstrumentation(prometheus.NewRegistry()),
		AllowedOrigins:  []string{"https://app.example.com"},
	})
	return &testServer{t: t, store: store, router: router}
}

func (s *testServer) token(subject string, scopes ...string) string {
	if len(scopes) == 0 {
		scopes = auth.AllScopes
	}
	tok, err := auth.Sign(testAuth, subject, scopes, time.Hour)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func threeSets(exerciseID string, weight float64) []domain.ExerciseEntry {
	return []domain.ExerciseEntry{{
		ExerciseID: exerciseID,
		Sets:       []domain.Set{{Reps: 10, Weight: weight}, {Reps: 10, Weight: weight}, {Reps: 8, Weight: weight}},
	}}
}

func TestWorkoutLifecycle(t *testing.T) {
	srv := newTestServer(t)
	tok := srv.token("user-1")

	rr := srv.do(http.MethodPost, "/v1/workouts", tok, CreateWorkoutRequest{Name: "Push day", Exercises: threeSets("bench", 80)})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[WorkoutView](t, rr)
	assert.Equal(t, "planned", created.Status)
	assert.Equal(t, "private", created.Visibility)
	assert.Equal(t, 30, created.XPEarned)
	assert.Equal(t, 3, created.TotalSets)
	assert.InDelta(t, 2240.0, created.TotalVolume, 0.001)

	path := "/v1/workouts/" + created.WorkoutID
	rr = srv.do(http.MethodPost, path+"/start", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "in-progress", decode[WorkoutView](t, rr).Status)

	zero := 0
	rr = srv.do(http.MethodPatch, path+"/sets", tok, CompleteSetRequest{ExerciseIndex: &zero, SetIndex: &zero, Completed: true})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.True(t, decode[WorkoutView](t, rr).Exercises[0].Sets[0].Completed)

	outOfRange := 7
	rr = srv.do(http.MethodPatch, path+"/sets", tok, CompleteSetRequest{ExerciseIndex: &zero, SetIndex: &outOfRange, Completed: true})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_SET_INDEX", decode[errorBody](t, rr).Code)

	duration := 1800
	rr = srv.do(http.MethodPost, path+"/finish", tok, FinishWorkoutRequest{Duration: &duration})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	finished := decode[FinishResponse](t, rr)
	assert.Equal(t, "completed", finished.Workout.Status)
	assert.Equal(t, 60, finished.Workout.XPEarned)
	assert.NotNil(t, finished.Workout.CompletedAt)
	assert.NotEmpty(t, finished.NewRecords)

	rr = srv.do(http.MethodPost, path+"/finish", tok, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "INVALID_STATE_TRANSITION", decode[errorBody](t, rr).Code)

	rr = srv.do(http.MethodGet, "/v1/stats/dashboard", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	dash := decode[DashboardResponse](t, rr)
	assert.Equal(t, 60, dash.User.XP)
	assert.Equal(t, 1, dash.User.Level)
	assert.Equal(t, 1, dash.User.TotalWorkouts)
	assert.Equal(t, 1, dash.User.CurrentStreak)
	assert.Equal(t, 1, dash.Overall.Workouts)

	rr = srv.do(http.MethodDelete, path, tok, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = srv.do(http.MethodDelete, path, tok, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "WORKOUT_NOT_FOUND", decode[errorBody](t, rr).Code)

	progress, err := srv.store.GetProgress(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, progress.XP)
	assert.Equal(t, 0, progress.TotalWorkouts)
}

func TestCreateRejectsInvalidPayloads(t *testing.T) {
	srv := newTestServer(t)
	tok := srv.token("user-1")

	rr := srv.do(http.MethodPost, "/v1/workouts", tok, CreateWorkoutRequest{Name: "Legs", Exercises: threeSets("deadlift", 100)})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decode[errorBody](t, rr)
	assert.Equal(t, "EXERCISE_NOT_FOUND", body.Code)
	assert.Equal(t, "validation", body.Type)

	rr = srv.do(http.MethodPost, "/v1/workouts", tok, CreateWorkoutRequest{Name: "Legs", Exercises: threeSets("squat", 100), Visibility: "everyone"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "VALIDATION_FAILED", decode[errorBody](t, rr).Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/workouts", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rr = srv.do(http.MethodGet, "/v1/workouts?cursor=!!!", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestListWorkoutsPaginates(t *testing.T) {
	srv := newTestServer(t)
	tok := srv.token("user-1")

	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		date := base.AddDate(0, 0, i)
		rr := srv.do(http.MethodPost, "/v1/workouts", tok, CreateWorkoutRequest{Name: "Session", Exercises: threeSets("bench", 60), Date: &date})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr := srv.do(http.MethodGet, "/v1/workouts?limit=2", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[ListWorkoutsResponse](t, rr)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	assert.True(t, page.Items[0].Date.After(page.Items[1].Date))

	rr = srv.do(http.MethodGet, "/v1/workouts?limit=2&cursor="+page.NextCursor, tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rest := decode[ListWorkoutsResponse](t, rr)
	require.Len(t, rest.Items, 1)
	assert.Empty(t, rest.NextCursor)

	rr = srv.do(http.MethodGet, "/v1/workouts?from=2026-03-02&to=2026-03-02T23:59:59Z", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[ListWorkoutsResponse](t, rr).Items, 1)
}

func TestAuthenticationAndScopes(t *testing.T) {
	srv := newTestServer(t)

	rr := srv.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = srv.do(http.MethodGet, "/v1/workouts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	readOnly := srv.token("user-1", auth.ScopeWorkoutsRead)
	rr = srv.do(http.MethodGet, "/v1/workouts", readOnly, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = srv.do(http.MethodPost, "/v1/workouts", readOnly, CreateWorkoutRequest{Name: "x"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "INSUFFICIENT_SCOPE", decode[errorBody](t, rr).Code)

	writeOnly := srv.token("user-1", auth.ScopeWorkoutsWrite)
	rr = srv.do(http.MethodGet, "/v1/stats/workouts?days=7", writeOnly, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = srv.do(http.MethodPost, "/v1/workouts/abc/like", writeOnly, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCorsPreflight(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/workouts", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/v1/workouts", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr = httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestSocialFlow(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.token("alice")
	bob := srv.token("bob")

	rr := srv.do(http.MethodPost, "/v1/workouts", alice, CreateWorkoutRequest{
		Name: "Morning lift", Exercises: threeSets("squat", 100), Status: "completed", Visibility: "friends",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	workoutID := decode[WorkoutView](t, rr).WorkoutID

	rr = srv.do(http.MethodPost, "/v1/workouts", alice, CreateWorkoutRequest{
		Name: "Private lift", Exercises: threeSets("bench", 70), Status: "completed", Visibility: "private",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	privateID := decode[WorkoutView](t, rr).WorkoutID

	rr = srv.do(http.MethodPost, "/v1/workouts/"+privateID+"/like", bob, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "FORBIDDEN", decode[errorBody](t, rr).Code)

	rr = srv.do(http.MethodPost, "/v1/friends/requests", bob, FriendRequestRequest{UserID: "bob"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(http.MethodPost, "/v1/friends/requests", bob, FriendRequestRequest{UserID: "alice"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	requestID := decode[FriendshipView](t, rr).FriendshipID

	rr = srv.do(http.MethodGet, "/v1/friends/requests", alice, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	pending := decode[struct{ Items []FriendshipView }](t, rr)
	require.Len(t, pending.Items, 1)
	assert.Equal(t, "bob", pending.Items[0].FriendID)

	rr = srv.do(http.MethodPost, "/v1/friends/requests/"+requestID+"/accept", bob, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code, "only the recipient can accept")
	rr = srv.do(http.MethodPost, "/v1/friends/requests/"+requestID+"/accept", alice, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "accepted", decode[FriendshipView](t, rr).Status)

	rr = srv.do(http.MethodPost, "/v1/workouts/"+privateID+"/like", bob, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code, "friends may like private workouts")
	rr = srv.do(http.MethodPost, "/v1/workouts/"+workoutID+"/like", bob, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = srv.do(http.MethodPost, "/v1/workouts/"+workoutID+"/like", bob, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "ALREADY_LIKED", decode[errorBody](t, rr).Code)

	rr = srv.do(http.MethodPost, "/v1/workouts/"+workoutID+"/comments", bob, CommentRequest{Content: "  "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = srv.do(http.MethodPost, "/v1/workouts/"+workoutID+"/comments", bob, CommentRequest{Content: "Strong!"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	commentID := decode[CommentView](t, rr).CommentID

	rr = srv.do(http.MethodGet, "/v1/feed", bob, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	feed := decode[FeedResponse](t, rr)
	require.Len(t, feed.Items, 1)
	assert.Equal(t, workoutID, feed.Items[0].Workout.WorkoutID)
	assert.Equal(t, 1, feed.Items[0].LikesCount)
	assert.Equal(t, 1, feed.Items[0].CommentsCount)
	assert.True(t, feed.Items[0].IsLikedByUser)

	rr = srv.do(http.MethodDelete, "/v1/comments/"+commentID, alice, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code, "comments can only be deleted by their author")
	rr = srv.do(http.MethodDelete, "/v1/comments/"+commentID, bob, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = srv.do(http.MethodDelete, "/v1/workouts/"+workoutID+"/like", bob, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = srv.do(http.MethodDelete, "/v1/workouts/"+workoutID+"/like", bob, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(http.MethodDelete, "/v1/friends/alice", bob, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = srv.do(http.MethodGet, "/v1/friends", bob, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[struct{ Items []FriendshipView }](t, rr).Items)
}

func TestAchievementsRecordsAndLeaderboard(t *testing.T) {
	srv := newTestServer(t)
	tok := srv.token("user-1")
	other := srv.token("user-2")

	rr := srv.do(http.MethodPost, "/v1/workouts", tok, CreateWorkoutRequest{Name: "Bench", Exercises: threeSets("bench", 90), Status: "completed"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = srv.do(http.MethodPost, "/v1/workouts", other, CreateWorkoutRequest{
		Name: "Short", Exercises: []domain.ExerciseEntry{{ExerciseID: "squat", Sets: []domain.Set{{Reps: 5, Weight: 60}}}},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = srv.do(http.MethodPost, "/v1/achievements/check", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	checked := decode[struct{ Unlocked []AchievementView }](t, rr)
	require.NotEmpty(t, checked.Unlocked)
	assert.Equal(t, "first_workout", checked.Unlocked[0].Key)

	rr = srv.do(http.MethodPost, "/v1/achievements/check", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[struct{ Unlocked []AchievementView }](t, rr).Unlocked)

	rr = srv.do(http.MethodGet, "/v1/achievements/me", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	mine := decode[AchievementProgressResponse](t, rr)
	assert.Equal(t, len(achievements.DefaultCatalog()), mine.TotalAchievements)
	assert.GreaterOrEqual(t, mine.TotalUnlocked, 1)

	rr = srv.do(http.MethodGet, "/v1/achievements", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[struct{ Items []AchievementView }](t, rr).Items, len(achievements.DefaultCatalog()))

	rr = srv.do(http.MethodGet, "/v1/records", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	bests := decode[struct{ Items []ExerciseBestsView }](t, rr)
	require.Len(t, bests.Items, 1)
	assert.Equal(t, "bench", bests.Items[0].ExerciseID)
	assert.InDelta(t, 90.0, bests.Items[0].Records[string(domain.RecordWeight)].Value, 0.001)

	rr = srv.do(http.MethodGet, "/v1/records/exercises/bench", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, decode[struct{ Items []RecordView }](t, rr).Items)

	rr = srv.do(http.MethodGet, "/v1/stats/exercises/bench", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	progress := decode[ExerciseProgressResponse](t, rr)
	require.Len(t, progress.History, 1)
	assert.InDelta(t, 90.0, progress.MaxWeight, 0.001)

	rr = srv.do(http.MethodGet, "/v1/leaderboard/xp?limit=5", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	board := decode[struct{ Items []LeaderboardEntryView }](t, rr)
	require.Len(t, board.Items, 2)
	assert.Equal(t, "user-1", board.Items[0].UserID)
	assert.Equal(t, 1, board.Items[0].Rank)
	assert.Equal(t, 2, board.Items[1].Rank)

	rr = srv.do(http.MethodGet, "/v1/leaderboard/workouts", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	monthly := decode[struct{ Items []LeaderboardEntryView }](t, rr)
	require.Len(t, monthly.Items, 1)
	assert.Equal(t, 1, monthly.Items[0].WorkoutCount)

	rr = srv.do(http.MethodGet, "/v1/leaderboard/volume", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	volume := decode[struct{ Items []LeaderboardEntryView }](t, rr)
	require.Len(t, volume.Items, 1)
	assert.Equal(t, "user-1", volume.Items[0].UserID)

	rr = srv.do(http.MethodGet, "/v1/leaderboard/streak?limit=1", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[struct{ Items []LeaderboardEntryView }](t, rr).Items, 1)

	rr = srv.do(http.MethodGet, "/v1/leaderboard/me", other, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	ranks := decode[UserRanksView](t, rr)
	assert.Equal(t, 2, ranks.XPRank)
	assert.Equal(t, 2, ranks.WorkoutsRank)
	assert.Equal(t, 2, ranks.TotalUsers)

	rr = srv.do(http.MethodGet, "/v1/leaderboard/friends?type=workouts", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	friends := decode[struct{ Items []LeaderboardEntryView }](t, rr)
	require.Len(t, friends.Items, 1)
	assert.True(t, friends.Items[0].IsCurrentUser)
	assert.Equal(t, 1, friends.Items[0].WorkoutCount)

	rr = srv.do(http.MethodGet, "/v1/leaderboard/friends?type=streak", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChallengeFlow(t *testing.T) {
	srv := newTestServer(t)
	alice := srv.token("alice")
	bob := srv.token("bob")

	rr := srv.do(http.MethodPost, "/v1/challenges", alice, CreateChallengeRequest{ChallengedID: "alice", Type: "volume", TargetValue: 100})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "INVALID_CHALLENGE", decode[errorBody](t, rr).Code)

	rr = srv.do(http.MethodPost, "/v1/challenges", alice, CreateChallengeRequest{
		ChallengedID: "bob", Type: "specific_exercise", TargetValue: 1000, ExerciseID: "bench", Duration: 5,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[ChallengeView](t, rr)
	assert.Equal(t, "pending", created.Status)
	assert.Equal(t, 5, created.Duration)

	path := "/v1/challenges/" + created.ChallengeID
	rr = srv.do(http.MethodPost, path+"/accept", alice, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "CHALLENGE_NOT_FOUND", decode[errorBody](t, rr).Code)

	rr = srv.do(http.MethodPost, path+"/accept", bob, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	accepted := decode[ChallengeView](t, rr)
	assert.Equal(t, "accepted", accepted.Status)
	require.NotNil(t, accepted.EndDate)

	rr = srv.do(http.MethodPost, "/v1/workouts", bob, CreateWorkoutRequest{Name: "Bench", Exercises: threeSets("bench", 50), Status: "completed"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = srv.do(http.MethodGet, path, alice, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	scored := decode[ChallengeView](t, rr)
	assert.Equal(t, 0.0, scored.ChallengerProgress)
	assert.Equal(t, 1400.0, scored.ChallengedProgress)

	rr = srv.do(http.MethodGet, path, srv.token("mallory"), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(http.MethodGet, "/v1/challenges?status=accepted", bob, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[struct{ Items []ChallengeView }](t, rr).Items, 1)

	rr = srv.do(http.MethodGet, "/v1/challenges?status=bogus", bob, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(http.MethodPost, "/v1/challenges", alice, CreateChallengeRequest{ChallengedID: "bob", Type: "workout_count", TargetValue: 3})
	require.Equal(t, http.StatusCreated, rr.Code)
	second := decode[ChallengeView](t, rr)
	rr = srv.do(http.MethodPost, "/v1/challenges/"+second.ChallengeID+"/reject", bob, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "rejected", decode[ChallengeView](t, rr).Status)

	rr = srv.do(http.MethodPost, "/v1/challenges", srv.token("reader", auth.ScopeWorkoutsRead), CreateChallengeRequest{ChallengedID: "bob", Type: "volume", TargetValue: 1})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestNotificationsReadFlow(t *testing.T) {
	srv := newTestServer(t)
	tok := srv.token("user-1")
	ctx := context.Background()

	for i, id := range []string{"n-1", "n-2"} {
		require.NoError(t, srv.store.CreateNotification(ctx, domain.Notification{
			ID: id, UserID: "user-1", Type: notify.TypeAchievement, Title: "Unlocked",
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}))
	}

	rr := srv.do(http.MethodGet, "/v1/notifications", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[NotificationsResponse](t, rr)
	require.Len(t, list.Items, 2)
	assert.Equal(t, 2, list.UnreadCount)
	assert.Equal(t, "n-2", list.Items[0].NotificationID)

	rr = srv.do(http.MethodPost, "/v1/notifications/n-1/read", tok, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = srv.do(http.MethodPost, "/v1/notifications/n-1/read", srv.token("user-2"), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(http.MethodGet, "/v1/notifications?unread=true", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	unread := decode[NotificationsResponse](t, rr)
	require.Len(t, unread.Items, 1)
	assert.Equal(t, 1, unread.UnreadCount)

	rr = srv.do(http.MethodPost, "/v1/notifications/read-all", tok, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]int{"updated": 1}, decode[map[string]int](t, rr))
}

func TestWriteErrorHidesInfrastructureFailures(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, httptest.NewRequest(http.MethodGet, "/v1/feed", nil), assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decode[errorBody](t, rr)
	assert.Equal(t, "INTERNAL", body.Code)
	assert.NotContains(t, body.Detail, assert.AnError.Error())
}
