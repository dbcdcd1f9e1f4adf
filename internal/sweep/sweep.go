// Package sweep periodically refreshes derived progression state for recently active users.
// Streaks decay with time rather than with events, so a user who stops training is only
// brought back to zero by the sweep.
package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"example.com/progression/internal/challenges"
	"example.com/progression/internal/domain"
	"example.com/progression/internal/observability"
	"example.com/progression/internal/streak"
)

type userLister interface {
	ActiveUsers(ctx context.Context, since time.Time) ([]string, error)
}

type streakRecomputer interface {
	Recompute(ctx context.Context, userID string) (streak.Result, error)
}

type achievementChecker interface {
	Check(ctx context.Context, userID string) ([]domain.Achievement, error)
}

type rankRebuilder interface {
	Rebuild(ctx context.Context) (int, error)
}

type challengeRefresher interface {
	Refresh(ctx context.Context) (challenges.RefreshResult, error)
}

// Result summarises one run.
type Result struct {
	Users      int
	Failed     int
	Unlocked   int
	Ranked     int
	Challenges challenges.RefreshResult
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithClock overrides the time source used for the activity window.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// WithLeaderboard rebuilds the XP leaderboard from the store after the users are visited.
func WithLeaderboard(board rankRebuilder) Option {
	return func(s *Sweeper) {
		s.board = board
	}
}

// WithChallenges expires stale challenges and settles finished ones on every run.
func WithChallenges(c challengeRefresher) Option {
	return func(s *Sweeper) {
		s.challenges = c
	}
}

// Sweeper recomputes streaks and achievements.
type Sweeper struct {
	users        userLister
	streaks      streakRecomputer
	achievements achievementChecker
	board        rankRebuilder
	challenges   challengeRefresher
	window       time.Duration
	now          func() time.Time
	logger       log.FieldLogger
}

// New constructs a Sweeper visiting users with workouts touched within window. achievements
// should not recompute the streak itself.
func New(users userLister, streaks streakRecomputer, achievements achievementChecker, window time.Duration, opts ...Option) *Sweeper {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	s := &Sweeper{
		users:        users,
		streaks:      streaks,
		achievements: achievements,
		window:       window,
		now:          time.Now,
		logger:       log.WithField("component", "sweep"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce visits every active user, then rebuilds the leaderboard and refreshes challenges. A
// failing step does not stop the run; the failures are combined into the returned error.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	start := time.Now()
	defer func() { observability.ObserveSweep(time.Since(start)) }()

	since := s.now().UTC().Add(-s.window)
	users, err := s.users.ActiveUsers(ctx, since)
	if err != nil {
		return Result{}, fmt.Errorf("list active users: %w", err)
	}

	var (
		res  Result
		errs error
	)
	for _, userID := range users {
		if ctx.Err() != nil {
			return res, multierr.Append(errs, ctx.Err())
		}
		res.Users++
		unlocked, err := s.refresh(ctx, userID)
		if err != nil {
			res.Failed++
			observability.RecordSweepUser("error")
			errs = multierr.Append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		observability.RecordSweepUser("ok")
		res.Unlocked += unlocked
	}

	if s.board != nil {
		ranked, err := s.board.Rebuild(ctx)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("rebuild leaderboard: %w", err))
		}
		res.Ranked = ranked
	}
	if s.challenges != nil {
		refreshed, err := s.challenges.Refresh(ctx)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("refresh challenges: %w", err))
		}
		res.Challenges = refreshed
	}
	return res, errs
}

func (s *Sweeper) refresh(ctx context.Context, userID string) (int, error) {
	if _, err := s.streaks.Recompute(ctx, userID); err != nil {
		return 0, fmt.Errorf("recompute streak: %w", err)
	}
	unlocked, err := s.achievements.Check(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("check achievements: %w", err)
	}
	return len(unlocked), nil
}

// Schedule registers a run on c for every tick of schedule. Runs use ctx and are skipped once it
// is cancelled.
func (s *Sweeper) Schedule(ctx context.Context, c *cron.Cron, schedule string) error {
	err := c.AddFunc(schedule, func() {
		if ctx.Err() != nil {
			return
		}
		res, err := s.RunOnce(ctx)
		entry := s.logger.WithFields(log.Fields{
			"users":                res.Users,
			"failed":               res.Failed,
			"unlocked":             res.Unlocked,
			"ranked":               res.Ranked,
			"challenges_expired":   res.Challenges.Expired,
			"challenges_completed": res.Challenges.Completed,
		})
		if err != nil {
			entry.WithError(err).Error("sweep finished with errors")
			return
		}
		entry.Info("sweep finished")
	})
	if err != nil {
		return fmt.Errorf("schedule sweep %q: %w", schedule, err)
	}
	return nil
}
