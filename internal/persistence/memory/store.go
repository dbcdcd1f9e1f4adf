// Package memory provides an in-process store for local development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/events"
)

// Store keeps every progression collection in memory behind a single lock. Uniqueness
// rules (likes, unlocks) are enforced under the lock the way the Postgres store enforces
// them with constraints.
type Store struct {
	mu sync.RWMutex

	now func() time.Time

	users         map[string]*domain.UserProgress
	exercises     map[string]domain.Exercise
	workouts      map[string]*domain.Workout
	records       []domain.PersonalRecord
	achievements  map[string]domain.Achievement
	unlocks       map[string]domain.UserAchievement
	friendships   map[string]*domain.Friendship
	likes         map[string]domain.Like
	comments      map[string]domain.Comment
	notifications map[string]*domain.Notification
	challenges    map[string]*domain.Challenge

	outbox []events.Envelope
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithExercises seeds the exercise catalog.
func WithExercises(list ...domain.Exercise) Option {
	return func(s *Store) {
		for _, ex := range list {
			s.exercises[ex.ID] = ex
		}
	}
}

// WithAchievements seeds the achievement catalog.
func WithAchievements(list ...domain.Achievement) Option {
	return func(s *Store) {
		for _, a := range list {
			s.achievements[a.Key] = a
		}
	}
}

// NewStore constructs an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:           time.Now,
		users:         make(map[string]*domain.UserProgress),
		exercises:     make(map[string]domain.Exercise),
		workouts:      make(map[string]*domain.Workout),
		achievements:  make(map[string]domain.Achievement),
		unlocks:       make(map[string]domain.UserAchievement),
		friendships:   make(map[string]*domain.Friendship),
		likes:         make(map[string]domain.Like),
		comments:      make(map[string]domain.Comment),
		notifications: make(map[string]*domain.Notification),
		challenges:    make(map[string]*domain.Challenge),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DrainEvents returns and clears the pending outbox entries.
func (s *Store) DrainEvents() []events.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.outbox
	s.outbox = nil
	return out
}

// PendingEvents reports how many outbox entries are waiting.
func (s *Store) PendingEvents() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.outbox)
}

// emit appends an event; callers hold the write lock.
func (s *Store) emit(eventType, aggregateID, userID string, payload any) error {
	env, err := events.New(eventType, aggregateID, userID, payload)
	if err != nil {
		return fmt.Errorf("build %s event: %w", eventType, err)
	}
	s.outbox = append(s.outbox, env)
	return nil
}

// user returns the progress row for userID, creating it on first write; callers hold the write lock.
func (s *Store) user(userID string) *domain.UserProgress {
	u, ok := s.users[userID]
	if !ok {
		u = &domain.UserProgress{UserID: userID, UpdatedAt: s.now().UTC()}
		s.users[userID] = u
	}
	return u
}

func (s *Store) addXP(u *domain.UserProgress, delta int) {
	u.XP = max(u.XP+delta, 0)
	u.UpdatedAt = s.now().UTC()
}

// GetProgress returns the user's progression block; unknown users read as zero.
func (s *Store) GetProgress(_ context.Context, userID string) (domain.UserProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[userID]; ok {
		return *u, nil
	}
	return domain.UserProgress{UserID: userID}, nil
}

// ExercisesByIDs returns the catalog entries that exist among ids.
func (s *Store) ExercisesByIDs(_ context.Context, ids []string) ([]domain.Exercise, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Exercise, 0, len(ids))
	for _, id := range ids {
		if ex, ok := s.exercises[id]; ok {
			out = append(out, ex)
		}
	}
	return out, nil
}

// UpsertExercises inserts or replaces catalog entries.
func (s *Store) UpsertExercises(_ context.Context, list []domain.Exercise) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ex := range list {
		s.exercises[ex.ID] = ex
	}
	return nil
}

// ActiveUsers lists users with workout activity since the given instant.
func (s *Store) ActiveUsers(_ context.Context, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, w := range s.workouts {
		if w.UpdatedAt.Before(since) && w.Date.Before(since) {
			continue
		}
		seen[w.UserID] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func cloneWorkout(w *domain.Workout) domain.Workout {
	out := *w
	out.Exercises = make([]domain.ExerciseEntry, len(w.Exercises))
	for i, entry := range w.Exercises {
		out.Exercises[i] = entry
		out.Exercises[i].Sets = append([]domain.Set(nil), entry.Sets...)
	}
	return out
}

func sortByDateDesc(list []domain.Workout) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Date.Equal(list[j].Date) {
			return list[i].ID > list[j].ID
		}
		return list[i].Date.After(list[j].Date)
	})
}
