// Package api exposes HTTP handlers for the progression engine.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"example.com/progression/internal/achievements"
	"example.com/progression/internal/auth"
	"example.com/progression/internal/challenges"
	"example.com/progression/internal/domain"
	"example.com/progression/internal/leaderboard"
	"example.com/progression/internal/middleware"
	"example.com/progression/internal/notify"
	"example.com/progression/internal/observability"
	"example.com/progression/internal/records"
	"example.com/progression/internal/social"
	"example.com/progression/internal/stats"
	"example.com/progression/internal/workout"
)

// Services are the components the handlers delegate to.
type Services struct {
	Workouts      *workout.Service
	Social        *social.Service
	Records       *records.Detector
	Achievements  *achievements.Evaluator
	Stats         *stats.Service
	Leaderboard   *leaderboard.Board
	Notifications *notify.Service
	Challenges    *challenges.Service
}

// Handler coordinates HTTP requests with the progression services.
type Handler struct {
	svc Services
}

// NewHandler builds a Handler.
func NewHandler(svc Services) *Handler {
	return &Handler{svc: svc}
}

// RouterParams configure the middleware chain around the routes.
type RouterParams struct {
	Auth               auth.Middleware
	Instrumentation    *observability.HTTPInstrumentation
	RateLimiter        middleware.RequestRateLimiter
	RateLimitPerMinute int
	AllowedOrigins     []string
	MetricsHandler     http.Handler
}

// Router wires every endpoint and the middleware chain.
func (h *Handler) Router(params RouterParams) *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("progression-api"))

	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	if params.MetricsHandler != nil {
		r.Handle("/metrics", params.MetricsHandler).Methods(http.MethodGet)
	}

	v1 := r.PathPrefix("/v1").Subrouter()
	read := func(fn http.HandlerFunc) http.Handler {
		return auth.RequireAnyScope(fn, auth.ScopeWorkoutsRead, auth.ScopeWorkoutsWrite)
	}
	write := func(fn http.HandlerFunc) http.Handler {
		return auth.RequireScope(auth.ScopeWorkoutsWrite, fn)
	}
	socialWrite := func(fn http.HandlerFunc) http.Handler {
		return auth.RequireScope(auth.ScopeSocialWrite, fn)
	}

	v1.Handle("/workouts", write(h.createWorkout)).Methods(http.MethodPost)
	v1.Handle("/workouts", read(h.listWorkouts)).Methods(http.MethodGet)
	v1.Handle("/workouts/{id}", read(h.getWorkout)).Methods(http.MethodGet)
	v1.Handle("/workouts/{id}", write(h.updateWorkout)).Methods(http.MethodPatch, http.MethodPut)
	v1.Handle("/workouts/{id}", write(h.deleteWorkout)).Methods(http.MethodDelete)
	v1.Handle("/workouts/{id}/start", write(h.startWorkout)).Methods(http.MethodPost)
	v1.Handle("/workouts/{id}/sets", write(h.completeSet)).Methods(http.MethodPatch)
	v1.Handle("/workouts/{id}/finish", write(h.finishWorkout)).Methods(http.MethodPost)

	v1.Handle("/workouts/{id}/like", socialWrite(h.likeWorkout)).Methods(http.MethodPost)
	v1.Handle("/workouts/{id}/like", socialWrite(h.unlikeWorkout)).Methods(http.MethodDelete)
	v1.Handle("/workouts/{id}/comments", read(h.listComments)).Methods(http.MethodGet)
	v1.Handle("/workouts/{id}/comments", socialWrite(h.addComment)).Methods(http.MethodPost)
	v1.Handle("/comments/{id}", socialWrite(h.deleteComment)).Methods(http.MethodDelete)
	v1.Handle("/feed", read(h.feed)).Methods(http.MethodGet)

	v1.Handle("/friends", read(h.listFriends)).Methods(http.MethodGet)
	v1.Handle("/friends/{user_id}", socialWrite(h.removeFriend)).Methods(http.MethodDelete)
	v1.Handle("/friends/requests", read(h.pendingRequests)).Methods(http.MethodGet)
	v1.Handle("/friends/requests", socialWrite(h.sendFriendRequest)).Methods(http.MethodPost)
	v1.Handle("/friends/requests/{id}/accept", socialWrite(h.acceptFriendRequest)).Methods(http.MethodPost)
	v1.Handle("/friends/requests/{id}/reject", socialWrite(h.rejectFriendRequest)).Methods(http.MethodPost)

	v1.Handle("/challenges", read(h.listChallenges)).Methods(http.MethodGet)
	v1.Handle("/challenges", socialWrite(h.createChallenge)).Methods(http.MethodPost)
	v1.Handle("/challenges/{id}", read(h.getChallenge)).Methods(http.MethodGet)
	v1.Handle("/challenges/{id}/accept", socialWrite(h.acceptChallenge)).Methods(http.MethodPost)
	v1.Handle("/challenges/{id}/reject", socialWrite(h.rejectChallenge)).Methods(http.MethodPost)

	v1.Handle("/records", read(h.listRecords)).Methods(http.MethodGet)
	v1.Handle("/records/recent", read(h.recentRecords)).Methods(http.MethodGet)
	v1.Handle("/records/exercises/{exercise_id}", read(h.exerciseRecords)).Methods(http.MethodGet)

	v1.Handle("/achievements", read(h.achievementCatalog)).Methods(http.MethodGet)
	v1.Handle("/achievements/me", read(h.myAchievements)).Methods(http.MethodGet)
	v1.Handle("/achievements/check", write(h.checkAchievements)).Methods(http.MethodPost)

	v1.Handle("/stats/dashboard", read(h.dashboard)).Methods(http.MethodGet)
	v1.Handle("/stats/workouts", read(h.workoutStats)).Methods(http.MethodGet)
	v1.Handle("/stats/exercises/{exercise_id}", read(h.exerciseProgress)).Methods(http.MethodGet)

	v1.Handle("/leaderboard/xp", read(h.xpLeaderboard)).Methods(http.MethodGet)
	v1.Handle("/leaderboard/workouts", read(h.workoutLeaderboard)).Methods(http.MethodGet)
	v1.Handle("/leaderboard/volume", read(h.volumeLeaderboard)).Methods(http.MethodGet)
	v1.Handle("/leaderboard/streak", read(h.streakLeaderboard)).Methods(http.MethodGet)
	v1.Handle("/leaderboard/friends", read(h.friendsLeaderboard)).Methods(http.MethodGet)
	v1.Handle("/leaderboard/me", read(h.myRanks)).Methods(http.MethodGet)

	v1.Handle("/notifications", read(h.listNotifications)).Methods(http.MethodGet)
	v1.Handle("/notifications/read-all", read(h.markAllNotificationsRead)).Methods(http.MethodPost)
	v1.Handle("/notifications/{id}/read", read(h.markNotificationRead)).Methods(http.MethodPost)

	// Preflight requests match here so the CORS middleware sees them.
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Use(middleware.PanicRecovery(params.Instrumentation))
	r.Use(middleware.LogRequest())
	if params.Instrumentation != nil {
		r.Use(middleware.RequestMetrics(params.Instrumentation))
	}
	r.Use(middleware.Cors(params.AllowedOrigins))
	r.Use(params.Auth.Wrap)
	r.Use(middleware.RateLimit(params.RateLimiter, "api", params.RateLimitPerMinute, params.Instrumentation))
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func currentUser(r *http.Request) string {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		return ""
	}
	return claims.Subject
}

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return domain.Validation("unable to parse body")
	}
	return nil
}

func intParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, domain.Validation("%s must be a non-negative integer", name)
	}
	return v, nil
}

// timeParam accepts RFC 3339 timestamps or plain YYYY-MM-DD dates (UTC midnight).
func timeParam(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if ts, err := time.Parse(layout, raw); err == nil {
			ts = ts.UTC()
			return &ts, nil
		}
	}
	return nil, domain.Validation("%s must be RFC 3339 or YYYY-MM-DD", name)
}

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// writeError maps domain errors to their status; anything else is logged and hidden behind a 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		writeJSON(w, statusFor(de.Kind), errorBody{Type: string(de.Kind), Code: de.Code, Detail: de.Message})
		return
	}
	log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	writeJSON(w, http.StatusInternalServerError, errorBody{Type: "internal", Code: "INTERNAL", Detail: "internal server error"})
}

type errorBody struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warnf("encode response: %s", err)
	}
}
