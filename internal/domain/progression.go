package domain

import "time"

// UserProgress is the progression block kept per user.
type UserProgress struct {
	UserID        string
	XP            int
	TotalWorkouts int
	CurrentStreak int
	LongestStreak int
	UpdatedAt     time.Time
}

// RecordType is the metric a personal record is tracked for.
type RecordType string

const (
	RecordWeight   RecordType = "weight"
	RecordReps     RecordType = "reps"
	RecordVolume   RecordType = "volume"
	RecordDuration RecordType = "duration"
	RecordDistance RecordType = "distance"
)

// RecordTypes lists the metrics in evaluation order.
var RecordTypes = []RecordType{RecordWeight, RecordReps, RecordVolume, RecordDuration, RecordDistance}

// Unit returns the display unit stored alongside records of this type.
func (t RecordType) Unit() string {
	switch t {
	case RecordWeight, RecordVolume:
		return "kg"
	case RecordDuration:
		return "sec"
	case RecordDistance:
		return "km"
	}
	return ""
}

// Notifies reports whether new records of this type produce a user notification.
func (t RecordType) Notifies() bool {
	return t == RecordWeight || t == RecordVolume
}

// PersonalRecord is one append-only row of a user's record history.
type PersonalRecord struct {
	ID            string
	UserID        string
	ExerciseID    string
	WorkoutID     string
	Type          RecordType
	Value         float64
	Unit          string
	PreviousValue *float64
	Improvement   float64
	AchievedAt    time.Time
}

// AchievementCategory selects which progress counter an achievement is measured against.
type AchievementCategory string

const (
	CategoryWorkout  AchievementCategory = "workout"
	CategoryExercise AchievementCategory = "exercise"
	CategorySocial   AchievementCategory = "social"
	CategoryXP       AchievementCategory = "xp"
	CategoryStreak   AchievementCategory = "streak"
)

// Achievement is a read-only catalog definition.
type Achievement struct {
	Key         string
	Name        string
	Description string
	Icon        string
	Category    AchievementCategory
	Requirement int
	XPReward    int
	Rarity      string
}

// UserAchievement records an unlock; unique per (UserID, AchievementKey).
type UserAchievement struct {
	UserID         string
	AchievementKey string
	Progress       int
	UnlockedAt     time.Time
}

// Counters are the live aggregates achievements are evaluated against.
type Counters struct {
	CompletedWorkouts int
	TotalSets         int
	Friends           int
	XP                int
	CurrentStreak     int
}

// For returns the counter backing the given category.
func (c Counters) For(category AchievementCategory) int {
	switch category {
	case CategoryWorkout:
		return c.CompletedWorkouts
	case CategoryExercise:
		return c.TotalSets
	case CategorySocial:
		return c.Friends
	case CategoryXP:
		return c.XP
	case CategoryStreak:
		return c.CurrentStreak
	}
	return 0
}

// Exercise is the read-only catalog entry referenced by workouts.
type Exercise struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Notification is a message produced for a user when records or achievements land.
type Notification struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Body      string
	Data      map[string]any
	Read      bool
	ReadAt    *time.Time
	CreatedAt time.Time
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank          int
	UserID        string
	XP            int
	Level         int
	CurrentStreak int
	WorkoutCount  int
	TotalVolume   float64
	IsCurrentUser bool
}

// UserRanks is a user's 1-based position on each global board. A rank is one more than the
// number of users with a strictly greater value, so ties share a rank.
type UserRanks struct {
	XPRank       int
	StreakRank   int
	WorkoutsRank int
	TotalUsers   int
}
