// Package stats builds dashboard and per-exercise progress views from completed workouts.
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/streak"
	"example.com/progression/internal/xp"
)

const (
	chartDays        = 30
	weekDays         = 7
	exerciseSessions = 20
	dayLayout        = "2006-01-02"
)

// Repository reads completed workouts and the progression block.
type Repository interface {
	CompletedWorkouts(ctx context.Context, userID string, since time.Time) ([]domain.Workout, error)
	ExerciseWorkouts(ctx context.Context, userID, exerciseID string, limit int) ([]domain.Workout, error)
	GetProgress(ctx context.Context, userID string) (domain.UserProgress, error)
}

// StreakRecomputer refreshes the user's streak before the dashboard is built.
type StreakRecomputer interface {
	Recompute(ctx context.Context, userID string) (streak.Result, error)
}

// Service computes read models.
type Service struct {
	repo    Repository
	streaks StreakRecomputer
	now     func() time.Time
}

// NewService constructs a Service. streaks may be nil to serve the stored streak.
func NewService(repo Repository, streaks StreakRecomputer) *Service {
	return &Service{repo: repo, streaks: streaks, now: time.Now}
}

// Totals is an aggregate over a set of workouts.
type Totals struct {
	Workouts    int
	XP          int
	Duration    int
	AvgDuration float64
	Sets        int
}

// DayBucket is one chart point.
type DayBucket struct {
	Date     string
	Count    int
	XP       int
	Duration int
}

// UserBlock is the progression summary shown on the dashboard.
type UserBlock struct {
	XP            int
	Level         int
	TotalWorkouts int
	CurrentStreak int
	LongestStreak int
}

// Dashboard is the combined overview for one user.
type Dashboard struct {
	Overall Totals
	Weekly  Totals
	Chart   []DayBucket
	User    UserBlock
}

// Dashboard builds lifetime totals, the last 7 days, a 30-day chart and the user block.
func (s *Service) Dashboard(ctx context.Context, userID string) (Dashboard, error) {
	if s.streaks != nil {
		if _, err := s.streaks.Recompute(ctx, userID); err != nil {
			return Dashboard{}, fmt.Errorf("recompute streak: %w", err)
		}
	}
	all, err := s.repo.CompletedWorkouts(ctx, userID, time.Time{})
	if err != nil {
		return Dashboard{}, fmt.Errorf("completed workouts: %w", err)
	}
	progress, err := s.repo.GetProgress(ctx, userID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("get progress: %w", err)
	}

	now := s.now().UTC()
	weekStart := now.AddDate(0, 0, -weekDays)
	chartStart := now.AddDate(0, 0, -chartDays)

	return Dashboard{
		Overall: Summarize(all),
		Weekly:  Summarize(Since(all, weekStart)),
		Chart:   ByDay(Since(all, chartStart)),
		User: UserBlock{
			XP:            progress.XP,
			Level:         xp.Level(progress.XP),
			TotalWorkouts: len(all),
			CurrentStreak: progress.CurrentStreak,
			LongestStreak: progress.LongestStreak,
		},
	}, nil
}

// WorkoutStats summarises completed workouts from the last days days.
func (s *Service) WorkoutStats(ctx context.Context, userID string, days int) (Totals, error) {
	if days <= 0 {
		days = chartDays
	}
	since := s.now().UTC().AddDate(0, 0, -days)
	list, err := s.repo.CompletedWorkouts(ctx, userID, since)
	if err != nil {
		return Totals{}, fmt.Errorf("completed workouts: %w", err)
	}
	return Summarize(list), nil
}

// Session is one workout's performance on a single exercise.
type Session struct {
	Date      time.Time
	WorkoutID string
	Sets      int
	Reps      int
	AvgWeight float64
	MaxWeight float64
	Volume    float64
}

// Bests are the maxima across the returned sessions.
type Bests struct {
	MaxWeight float64
	MaxVolume float64
	MaxSets   int
	MaxReps   int
}

// ExerciseProgress is the recent history of one exercise.
type ExerciseProgress struct {
	History []Session
	Bests   Bests
}

// ExerciseProgress returns the last 20 sessions of exerciseID, newest first, and their maxima.
func (s *Service) ExerciseProgress(ctx context.Context, userID, exerciseID string) (ExerciseProgress, error) {
	workouts, err := s.repo.ExerciseWorkouts(ctx, userID, exerciseID, exerciseSessions)
	if err != nil {
		return ExerciseProgress{}, fmt.Errorf("exercise workouts: %w", err)
	}
	out := ExerciseProgress{History: make([]Session, 0, len(workouts))}
	for _, w := range workouts {
		for _, entry := range w.Exercises {
			if entry.ExerciseID != exerciseID {
				continue
			}
			session := SessionFor(entry)
			session.Date = w.Date
			session.WorkoutID = w.ID
			out.History = append(out.History, session)
			break
		}
	}
	for _, session := range out.History {
		out.Bests.MaxWeight = max(out.Bests.MaxWeight, session.MaxWeight)
		out.Bests.MaxVolume = max(out.Bests.MaxVolume, session.Volume)
		out.Bests.MaxSets = max(out.Bests.MaxSets, session.Sets)
		out.Bests.MaxReps = max(out.Bests.MaxReps, session.Reps)
	}
	return out, nil
}

// SessionFor reduces one exercise entry to its session figures.
func SessionFor(entry domain.ExerciseEntry) Session {
	session := Session{Sets: len(entry.Sets)}
	var totalWeight float64
	for _, set := range entry.Sets {
		session.Reps += set.Reps
		totalWeight += set.Weight
		session.MaxWeight = max(session.MaxWeight, set.Weight)
		session.Volume += set.Weight * float64(set.Reps)
	}
	if session.Sets > 0 {
		session.AvgWeight = totalWeight / float64(session.Sets)
	}
	return session
}

// Summarize totals a list of workouts.
func Summarize(list []domain.Workout) Totals {
	t := Totals{Workouts: len(list)}
	for _, w := range list {
		t.XP += w.XPEarned
		t.Duration += w.Duration
		t.Sets += xp.TotalSets(w.Exercises)
	}
	if t.Workouts > 0 {
		t.AvgDuration = float64(t.Duration) / float64(t.Workouts)
	}
	return t
}

// Since keeps workouts dated at or after start.
func Since(list []domain.Workout, start time.Time) []domain.Workout {
	out := make([]domain.Workout, 0, len(list))
	for _, w := range list {
		if !w.Date.Before(start) {
			out = append(out, w)
		}
	}
	return out
}

// ByDay groups workouts by UTC calendar day, oldest first.
func ByDay(list []domain.Workout) []DayBucket {
	buckets := make(map[string]*DayBucket)
	for _, w := range list {
		key := w.Date.UTC().Format(dayLayout)
		b, ok := buckets[key]
		if !ok {
			b = &DayBucket{Date: key}
			buckets[key] = b
		}
		b.Count++
		b.XP += w.XPEarned
		b.Duration += w.Duration
	}
	out := make([]DayBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
