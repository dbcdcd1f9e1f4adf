package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/leaderboard"
)

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	bests, err := h.svc.Records.UserRecords(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toExerciseBestsViews(bests)})
}

func (h *Handler) recentRecords(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days")
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.svc.Records.RecentRecords(r.Context(), currentUser(r), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toRecordViews(list)})
}

func (h *Handler) exerciseRecords(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Records.ExerciseRecords(r.Context(), currentUser(r), mux.Vars(r)["exercise_id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toRecordViews(list)})
}

func achievementViews(list []domain.Achievement) []AchievementView {
	out := make([]AchievementView, 0, len(list))
	for _, a := range list {
		out = append(out, toAchievementView(a))
	}
	return out
}

func (h *Handler) achievementCatalog(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Achievements.Catalog(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": achievementViews(list)})
}

func (h *Handler) myAchievements(w http.ResponseWriter, r *http.Request) {
	progress, err := h.svc.Achievements.UserProgress(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]AchievementView, 0, len(progress.Achievements))
	for _, s := range progress.Achievements {
		items = append(items, toStatusView(s))
	}
	writeJSON(w, http.StatusOK, AchievementProgressResponse{
		Achievements:      items,
		TotalUnlocked:     progress.TotalUnlocked,
		TotalAchievements: progress.TotalAchievements,
	})
}

func (h *Handler) checkAchievements(w http.ResponseWriter, r *http.Request) {
	unlocked, err := h.svc.Achievements.Check(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unlocked": achievementViews(unlocked)})
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Stats.Dashboard(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardResponse(d))
}

func (h *Handler) workoutStats(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days")
	if err != nil {
		writeError(w, r, err)
		return
	}
	totals, err := h.svc.Stats.WorkoutStats(r.Context(), currentUser(r), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTotalsView(totals))
}

func (h *Handler) exerciseProgress(w http.ResponseWriter, r *http.Request) {
	exerciseID := mux.Vars(r)["exercise_id"]
	p, err := h.svc.Stats.ExerciseProgress(r.Context(), currentUser(r), exerciseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExerciseProgressResponse(exerciseID, p))
}

func (h *Handler) xpLeaderboard(w http.ResponseWriter, r *http.Request) {
	h.globalLeaderboard(w, r, h.svc.Leaderboard.Top)
}

func (h *Handler) workoutLeaderboard(w http.ResponseWriter, r *http.Request) {
	h.globalLeaderboard(w, r, h.svc.Leaderboard.TopByWorkouts)
}

func (h *Handler) volumeLeaderboard(w http.ResponseWriter, r *http.Request) {
	h.globalLeaderboard(w, r, h.svc.Leaderboard.TopByVolume)
}

func (h *Handler) streakLeaderboard(w http.ResponseWriter, r *http.Request) {
	h.globalLeaderboard(w, r, h.svc.Leaderboard.TopByStreak)
}

func (h *Handler) globalLeaderboard(w http.ResponseWriter, r *http.Request, top func(context.Context, int) ([]domain.LeaderboardEntry, error)) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := top(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": toLeaderboardViews(entries)})
}

func (h *Handler) friendsLeaderboard(w http.ResponseWriter, r *http.Request) {
	kind, ok := leaderboard.ParseKind(r.URL.Query().Get("type"))
	if !ok {
		writeError(w, r, domain.Validation("type must be one of xp, workouts, volume"))
		return
	}
	entries, err := h.svc.Leaderboard.Friends(r.Context(), currentUser(r), kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"type": kind, "items": toLeaderboardViews(entries)})
}

func (h *Handler) myRanks(w http.ResponseWriter, r *http.Request) {
	ranks, err := h.svc.Leaderboard.UserRanks(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserRanksView{
		XPRank:       ranks.XPRank,
		StreakRank:   ranks.StreakRank,
		WorkoutsRank: ranks.WorkoutsRank,
		TotalUsers:   ranks.TotalUsers,
	})
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"
	page, err := h.svc.Notifications.List(r.Context(), currentUser(r), unreadOnly, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]NotificationView, 0, len(page.Notifications))
	for _, n := range page.Notifications {
		items = append(items, toNotificationView(n))
	}
	writeJSON(w, http.StatusOK, NotificationsResponse{Items: items, UnreadCount: page.UnreadCount})
}

func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Notifications.MarkRead(r.Context(), currentUser(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Notifications.MarkAllRead(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}
