// Package achievements evaluates unlock conditions against freshly computed progress counters.
package achievements

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/observability"
	"example.com/progression/internal/streak"
)

// ErrCatalogEmpty is returned by Check when no achievement definitions are installed.
var ErrCatalogEmpty = errors.New("achievement catalog is empty: run migrations or progressionctl seed")

// Repository exposes the catalog, unlock rows and live counters.
type Repository interface {
	ListAchievements(ctx context.Context) ([]domain.Achievement, error)
	ListUserAchievements(ctx context.Context, userID string) ([]domain.UserAchievement, error)
	ProgressCounters(ctx context.Context, userID string) (domain.Counters, error)
	// UnlockAchievement inserts the unlock row and credits the reward in one transaction.
	// It returns domain.ErrAlreadyUnlocked when the (user, key) pair already exists.
	UnlockAchievement(ctx context.Context, unlock domain.UserAchievement, achievement domain.Achievement) error
}

// StreakRecomputer refreshes the persisted streak before counters are read.
type StreakRecomputer interface {
	Recompute(ctx context.Context, userID string) (streak.Result, error)
}

// Evaluator unlocks achievements whose requirement is met.
type Evaluator struct {
	repo    Repository
	streaks StreakRecomputer
	logger  log.FieldLogger
	now     func() time.Time
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithLogger sets the logger used for unlock and skip messages.
func WithLogger(logger log.FieldLogger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// WithClock overrides the unlock timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// NewEvaluator constructs an Evaluator. streaks may be nil to use the stored streak as-is.
func NewEvaluator(repo Repository, streaks StreakRecomputer, opts ...Option) *Evaluator {
	e := &Evaluator{repo: repo, streaks: streaks, logger: log.StandardLogger(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Check recomputes the user's counters and unlocks every achievement whose threshold is now met.
// Concurrent checks for the same user unlock each achievement at most once.
func (e *Evaluator) Check(ctx context.Context, userID string) (unlocked []domain.Achievement, err error) {
	ctx, span := observability.Tracer.Start(ctx, "achievements.check")
	span.SetAttributes(attribute.String("user.id", userID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	counters, err := e.counters(ctx, userID)
	if err != nil {
		return nil, err
	}
	catalog, err := e.catalog(ctx)
	if err != nil {
		return nil, err
	}
	if len(catalog) == 0 {
		return nil, ErrCatalogEmpty
	}
	existing, err := e.repo.ListUserAchievements(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user achievements: %w", err)
	}
	have := make(map[string]struct{}, len(existing))
	for _, ua := range existing {
		have[ua.AchievementKey] = struct{}{}
	}

	unlocked = make([]domain.Achievement, 0)
	for _, achievement := range catalog {
		if _, ok := have[achievement.Key]; ok {
			continue
		}
		progress := counters.For(achievement.Category)
		if progress < achievement.Requirement {
			continue
		}
		unlock := domain.UserAchievement{
			UserID:         userID,
			AchievementKey: achievement.Key,
			Progress:       progress,
			UnlockedAt:     e.now().UTC(),
		}
		if err := e.repo.UnlockAchievement(ctx, unlock, achievement); err != nil {
			if errors.Is(err, domain.ErrAlreadyUnlocked) {
				e.logger.WithFields(log.Fields{"user_id": userID, "achievement": achievement.Key}).Debug("achievement already unlocked")
				continue
			}
			return unlocked, fmt.Errorf("unlock %s: %w", achievement.Key, err)
		}
		observability.RecordAchievementUnlocked(string(achievement.Category))
		e.logger.WithFields(log.Fields{"user_id": userID, "achievement": achievement.Key, "xp_reward": achievement.XPReward}).Info("achievement unlocked")
		unlocked = append(unlocked, achievement)
	}
	return unlocked, nil
}

// Catalog returns every achievement ordered by category and requirement.
func (e *Evaluator) Catalog(ctx context.Context) ([]domain.Achievement, error) {
	return e.catalog(ctx)
}

// Status is one catalog entry annotated with a user's progress towards it.
type Status struct {
	Achievement domain.Achievement
	Unlocked    bool
	UnlockedAt  *time.Time
	Progress    int
	Percentage  float64
}

// Progress summarises a user's standing across the whole catalog.
type Progress struct {
	Achievements      []Status
	TotalUnlocked     int
	TotalAchievements int
}

// UserProgress reports per-achievement progress without unlocking anything.
func (e *Evaluator) UserProgress(ctx context.Context, userID string) (Progress, error) {
	catalog, err := e.catalog(ctx)
	if err != nil {
		return Progress{}, err
	}
	existing, err := e.repo.ListUserAchievements(ctx, userID)
	if err != nil {
		return Progress{}, fmt.Errorf("list user achievements: %w", err)
	}
	counters, err := e.repo.ProgressCounters(ctx, userID)
	if err != nil {
		return Progress{}, fmt.Errorf("progress counters: %w", err)
	}

	unlockedAt := make(map[string]time.Time, len(existing))
	for _, ua := range existing {
		unlockedAt[ua.AchievementKey] = ua.UnlockedAt
	}

	out := Progress{Achievements: make([]Status, 0, len(catalog)), TotalAchievements: len(catalog)}
	for _, achievement := range catalog {
		current := counters.For(achievement.Category)
		status := Status{
			Achievement: achievement,
			Progress:    min(current, achievement.Requirement),
			Percentage:  Percentage(current, achievement.Requirement),
		}
		if at, ok := unlockedAt[achievement.Key]; ok {
			status.Unlocked = true
			status.UnlockedAt = &at
			out.TotalUnlocked++
		}
		out.Achievements = append(out.Achievements, status)
	}
	return out, nil
}

// Percentage is current/requirement as a percentage capped at 100.
func Percentage(current, requirement int) float64 {
	if requirement <= 0 {
		return 100
	}
	return min(float64(current)/float64(requirement)*100, 100)
}

func (e *Evaluator) counters(ctx context.Context, userID string) (domain.Counters, error) {
	var fresh *streak.Result
	if e.streaks != nil {
		res, err := e.streaks.Recompute(ctx, userID)
		if err != nil {
			return domain.Counters{}, fmt.Errorf("recompute streak: %w", err)
		}
		fresh = &res
	}
	counters, err := e.repo.ProgressCounters(ctx, userID)
	if err != nil {
		return domain.Counters{}, fmt.Errorf("progress counters: %w", err)
	}
	if fresh != nil {
		counters.CurrentStreak = fresh.Current
	}
	return counters, nil
}

func (e *Evaluator) catalog(ctx context.Context) ([]domain.Achievement, error) {
	list, err := e.repo.ListAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	SortCatalog(list)
	return list, nil
}
