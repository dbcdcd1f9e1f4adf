// Package streak derives consecutive-day workout streaks from completed workout dates.
package streak

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/codes"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/observability"
)

// Lookback caps how many workout dates are read per recomputation.
const Lookback = 365

// Repository is the storage the tracker reads dates from and persists results to.
type Repository interface {
	CompletedWorkoutDates(ctx context.Context, userID string, limit int) ([]time.Time, error)
	SaveStreak(ctx context.Context, userID string, current int) (domain.UserProgress, error)
}

// Result is the outcome of a recomputation.
type Result struct {
	Current int
	Longest int
}

// Tracker recomputes and persists a user's streak.
type Tracker struct {
	repo     Repository
	now      func() time.Time
	lookback int
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the time source used to decide what "today" is.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithLookback overrides the number of dates read per recomputation.
func WithLookback(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.lookback = n
		}
	}
}

// NewTracker constructs a Tracker.
func NewTracker(repo Repository, opts ...Option) *Tracker {
	t := &Tracker{repo: repo, now: time.Now, lookback: Lookback}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Recompute reads the user's recent completed workout dates, computes the current streak and
// persists it together with the longest-streak high-water mark.
func (t *Tracker) Recompute(ctx context.Context, userID string) (res Result, err error) {
	ctx, span := observability.Tracer.Start(ctx, "streak.recompute")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	dates, err := t.repo.CompletedWorkoutDates(ctx, userID, t.lookback)
	if err != nil {
		return Result{}, fmt.Errorf("load workout dates: %w", err)
	}

	current := Compute(dates, t.now())
	progress, err := t.repo.SaveStreak(ctx, userID, current)
	if err != nil {
		return Result{}, fmt.Errorf("save streak: %w", err)
	}
	return Result{Current: progress.CurrentStreak, Longest: progress.LongestStreak}, nil
}

// Compute walks the dates from most recent and counts consecutive calendar days (UTC) ending
// today or yesterday. Several workouts on one day count once; dates after today are ignored.
func Compute(dates []time.Time, today time.Time) int {
	days := distinctDays(dates)
	if len(days) == 0 {
		return 0
	}

	expected := truncateDay(today)
	streak := 0
	for _, day := range days {
		if day.After(expected) && streak == 0 {
			continue
		}
		switch {
		case day.Equal(expected):
		case streak == 0 && day.Equal(expected.AddDate(0, 0, -1)):
		default:
			return streak
		}
		streak++
		expected = day.AddDate(0, 0, -1)
	}
	return streak
}

func distinctDays(dates []time.Time) []time.Time {
	seen := make(map[time.Time]struct{}, len(dates))
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		day := truncateDay(d)
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })
	return days
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
