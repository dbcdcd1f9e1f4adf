package api

import (
	"time"

	"example.com/progression/internal/achievements"
	"example.com/progression/internal/domain"
	"example.com/progression/internal/persistence"
	"example.com/progression/internal/records"
	"example.com/progression/internal/stats"
	"example.com/progression/internal/xp"
)

// WorkoutView exposes full details about a workout.
type WorkoutView struct {
	WorkoutID    string                 `json:"workout_id"`
	UserID       string                 `json:"user_id"`
	Name         string                 `json:"name"`
	Exercises    []domain.ExerciseEntry `json:"exercises"`
	Status       string                 `json:"status"`
	Visibility   string                 `json:"visibility"`
	Date         time.Time              `json:"date"`
	Duration     int                    `json:"duration"`
	Notes        string                 `json:"notes,omitempty"`
	XPEarned     int                    `json:"xp_earned"`
	TotalSets    int                    `json:"total_sets"`
	TotalVolume  float64                `json:"total_volume"`
	CreatedAt    time.Time              `json:"created_at"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	LastEditedAt time.Time              `json:"last_edited_at"`
}

func toWorkoutView(w domain.Workout) WorkoutView {
	exercises := w.Exercises
	if exercises == nil {
		exercises = []domain.ExerciseEntry{}
	}
	return WorkoutView{
		WorkoutID:    w.ID,
		UserID:       w.UserID,
		Name:         w.Name,
		Exercises:    exercises,
		Status:       string(w.Status),
		Visibility:   string(w.Visibility),
		Date:         w.Date,
		Duration:     w.Duration,
		Notes:        w.Notes,
		XPEarned:     w.XPEarned,
		TotalSets:    xp.TotalSets(w.Exercises),
		TotalVolume:  w.TotalVolume(),
		CreatedAt:    w.CreatedAt,
		StartedAt:    w.StartedAt,
		CompletedAt:  w.CompletedAt,
		LastEditedAt: w.LastEditedAt,
	}
}

// ListWorkoutsResponse packages list results.
type ListWorkoutsResponse struct {
	Items      []WorkoutView `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// RecordView is one personal record row.
type RecordView struct {
	RecordID      string    `json:"record_id"`
	ExerciseID    string    `json:"exercise_id"`
	WorkoutID     string    `json:"workout_id"`
	Type          string    `json:"type"`
	Value         float64   `json:"value"`
	Unit          string    `json:"unit"`
	PreviousValue *float64  `json:"previous_value,omitempty"`
	Improvement   float64   `json:"improvement"`
	AchievedAt    time.Time `json:"achieved_at"`
}

func toRecordView(r domain.PersonalRecord) RecordView {
	return RecordView{
		RecordID:      r.ID,
		ExerciseID:    r.ExerciseID,
		WorkoutID:     r.WorkoutID,
		Type:          string(r.Type),
		Value:         r.Value,
		Unit:          r.Unit,
		PreviousValue: r.PreviousValue,
		Improvement:   r.Improvement,
		AchievedAt:    r.AchievedAt,
	}
}

func toRecordViews(list []domain.PersonalRecord) []RecordView {
	out := make([]RecordView, 0, len(list))
	for _, r := range list {
		out = append(out, toRecordView(r))
	}
	return out
}

// FinishResponse is the finished workout plus the records it set.
type FinishResponse struct {
	Workout    WorkoutView  `json:"workout"`
	NewRecords []RecordView `json:"new_records"`
}

// ExerciseBestsView groups the best record per metric for one exercise.
type ExerciseBestsView struct {
	ExerciseID string                `json:"exercise_id"`
	Records    map[string]RecordView `json:"records"`
}

func toExerciseBestsViews(list []records.ExerciseBests) []ExerciseBestsView {
	out := make([]ExerciseBestsView, 0, len(list))
	for _, b := range list {
		view := ExerciseBestsView{ExerciseID: b.ExerciseID, Records: make(map[string]RecordView, len(b.Records))}
		for t, r := range b.Records {
			view.Records[string(t)] = toRecordView(r)
		}
		out = append(out, view)
	}
	return out
}

// CommentView is one comment on a workout.
type CommentView struct {
	CommentID string    `json:"comment_id"`
	WorkoutID string    `json:"workout_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func toCommentView(c domain.Comment) CommentView {
	return CommentView{
		CommentID: c.ID,
		WorkoutID: c.WorkoutID,
		UserID:    c.UserID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
	}
}

// FeedItemView is a feed workout with its social counters.
type FeedItemView struct {
	Workout       WorkoutView `json:"workout"`
	LikesCount    int         `json:"likes_count"`
	CommentsCount int         `json:"comments_count"`
	IsLikedByUser bool        `json:"is_liked_by_user"`
}

// FeedResponse is one page of the friend feed.
type FeedResponse struct {
	Items      []FeedItemView `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// FriendshipView describes a friendship edge from the caller's perspective.
type FriendshipView struct {
	FriendshipID string    `json:"friendship_id"`
	RequesterID  string    `json:"requester_id"`
	RecipientID  string    `json:"recipient_id"`
	FriendID     string    `json:"friend_id"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func toFriendshipView(f domain.Friendship, viewer string) FriendshipView {
	return FriendshipView{
		FriendshipID: f.ID,
		RequesterID:  f.RequesterID,
		RecipientID:  f.RecipientID,
		FriendID:     f.Other(viewer),
		Status:       string(f.Status),
		CreatedAt:    f.CreatedAt,
	}
}

// AchievementView is a catalog entry, optionally annotated with the caller's progress.
type AchievementView struct {
	Key         string     `json:"key"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon,omitempty"`
	Category    string     `json:"category"`
	Requirement int        `json:"requirement"`
	XPReward    int        `json:"xp_reward"`
	Rarity      string     `json:"rarity"`
	Unlocked    *bool      `json:"unlocked,omitempty"`
	UnlockedAt  *time.Time `json:"unlocked_at,omitempty"`
	Progress    *int       `json:"progress,omitempty"`
	Percentage  *float64   `json:"percentage,omitempty"`
}

func toAchievementView(a domain.Achievement) AchievementView {
	return AchievementView{
		Key:         a.Key,
		Name:        a.Name,
		Description: a.Description,
		Icon:        a.Icon,
		Category:    string(a.Category),
		Requirement: a.Requirement,
		XPReward:    a.XPReward,
		Rarity:      a.Rarity,
	}
}

func toStatusView(s achievements.Status) AchievementView {
	view := toAchievementView(s.Achievement)
	view.Unlocked = &s.Unlocked
	view.UnlockedAt = s.UnlockedAt
	view.Progress = &s.Progress
	view.Percentage = &s.Percentage
	return view
}

// AchievementProgressResponse is the caller's standing across the catalog.
type AchievementProgressResponse struct {
	Achievements      []AchievementView `json:"achievements"`
	TotalUnlocked     int               `json:"total_unlocked"`
	TotalAchievements int               `json:"total_achievements"`
}

// TotalsView is an aggregate over a set of workouts.
type TotalsView struct {
	Workouts    int     `json:"workouts"`
	XP          int     `json:"xp"`
	Duration    int     `json:"duration"`
	AvgDuration float64 `json:"avg_duration"`
	Sets        int     `json:"sets"`
}

func toTotalsView(t stats.Totals) TotalsView {
	return TotalsView{
		Workouts:    t.Workouts,
		XP:          t.XP,
		Duration:    t.Duration,
		AvgDuration: t.AvgDuration,
		Sets:        t.Sets,
	}
}

// DayBucketView is one chart point.
type DayBucketView struct {
	Date     string `json:"date"`
	Count    int    `json:"count"`
	XP       int    `json:"xp"`
	Duration int    `json:"duration"`
}

// UserBlockView is the progression summary shown on the dashboard.
type UserBlockView struct {
	XP            int `json:"xp"`
	Level         int `json:"level"`
	TotalWorkouts int `json:"total_workouts"`
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
}

// DashboardResponse is the combined overview for the caller.
type DashboardResponse struct {
	Overall TotalsView      `json:"overall"`
	Weekly  TotalsView      `json:"weekly"`
	Chart   []DayBucketView `json:"chart"`
	User    UserBlockView   `json:"user"`
}

func toDashboardResponse(d stats.Dashboard) DashboardResponse {
	chart := make([]DayBucketView, 0, len(d.Chart))
	for _, b := range d.Chart {
		chart = append(chart, DayBucketView{Date: b.Date, Count: b.Count, XP: b.XP, Duration: b.Duration})
	}
	return DashboardResponse{
		Overall: toTotalsView(d.Overall),
		Weekly:  toTotalsView(d.Weekly),
		Chart:   chart,
		User: UserBlockView{
			XP:            d.User.XP,
			Level:         d.User.Level,
			TotalWorkouts: d.User.TotalWorkouts,
			CurrentStreak: d.User.CurrentStreak,
			LongestStreak: d.User.LongestStreak,
		},
	}
}

// SessionView is one workout's performance on a single exercise.
type SessionView struct {
	Date      time.Time `json:"date"`
	WorkoutID string    `json:"workout_id"`
	Sets      int       `json:"sets"`
	Reps      int       `json:"reps"`
	AvgWeight float64   `json:"avg_weight"`
	MaxWeight float64   `json:"max_weight"`
	Volume    float64   `json:"volume"`
}

// ExerciseProgressResponse is the recent history of one exercise.
type ExerciseProgressResponse struct {
	ExerciseID string        `json:"exercise_id"`
	History    []SessionView `json:"history"`
	MaxWeight  float64       `json:"max_weight"`
	MaxVolume  float64       `json:"max_volume"`
	MaxSets    int           `json:"max_sets"`
	MaxReps    int           `json:"max_reps"`
}

func toExerciseProgressResponse(exerciseID string, p stats.ExerciseProgress) ExerciseProgressResponse {
	history := make([]SessionView, 0, len(p.History))
	for _, s := range p.History {
		history = append(history, SessionView{
			Date:      s.Date,
			WorkoutID: s.WorkoutID,
			Sets:      s.Sets,
			Reps:      s.Reps,
			AvgWeight: s.AvgWeight,
			MaxWeight: s.MaxWeight,
			Volume:    s.Volume,
		})
	}
	return ExerciseProgressResponse{
		ExerciseID: exerciseID,
		History:    history,
		MaxWeight:  p.Bests.MaxWeight,
		MaxVolume:  p.Bests.MaxVolume,
		MaxSets:    p.Bests.MaxSets,
		MaxReps:    p.Bests.MaxReps,
	}
}

// LeaderboardEntryView is one ranked row.
type LeaderboardEntryView struct {
	Rank          int     `json:"rank"`
	UserID        string  `json:"user_id"`
	XP            int     `json:"xp"`
	Level         int     `json:"level"`
	CurrentStreak int     `json:"current_streak"`
	WorkoutCount  int     `json:"workout_count,omitempty"`
	TotalVolume   float64 `json:"total_volume,omitempty"`
	IsCurrentUser bool    `json:"is_current_user,omitempty"`
}

func toLeaderboardViews(list []domain.LeaderboardEntry) []LeaderboardEntryView {
	out := make([]LeaderboardEntryView, 0, len(list))
	for _, e := range list {
		out = append(out, LeaderboardEntryView{
			Rank:          e.Rank,
			UserID:        e.UserID,
			XP:            e.XP,
			Level:         e.Level,
			CurrentStreak: e.CurrentStreak,
			WorkoutCount:  e.WorkoutCount,
			TotalVolume:   e.TotalVolume,
			IsCurrentUser: e.IsCurrentUser,
		})
	}
	return out
}

// UserRanksView is the caller's position on each global board.
type UserRanksView struct {
	XPRank       int `json:"xp_rank"`
	StreakRank   int `json:"streak_rank"`
	WorkoutsRank int `json:"workouts_rank"`
	TotalUsers   int `json:"total_users"`
}

// NotificationView is one user notification.
type NotificationView struct {
	NotificationID string         `json:"notification_id"`
	Type           string         `json:"type"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	Data           map[string]any `json:"data,omitempty"`
	Read           bool           `json:"read"`
	ReadAt         *time.Time     `json:"read_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NotificationsResponse lists notifications with the unread total.
type NotificationsResponse struct {
	Items       []NotificationView `json:"items"`
	UnreadCount int                `json:"unread_count"`
}

func toNotificationView(n domain.Notification) NotificationView {
	return NotificationView{
		NotificationID: n.ID,
		Type:           n.Type,
		Title:          n.Title,
		Body:           n.Body,
		Data:           n.Data,
		Read:           n.Read,
		ReadAt:         n.ReadAt,
		CreatedAt:      n.CreatedAt,
	}
}

func encodeCursor(c *domain.Cursor) string {
	return persistence.EncodeCursor(c)
}
