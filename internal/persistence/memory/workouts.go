package memory

import (
	"context"
	"slices"
	"time"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/events"
	"example.com/progression/internal/persistence"
)

// CreateWorkout stores w, credits its XP and bumps the owner's workout count.
func (s *Store) CreateWorkout(_ context.Context, w domain.Workout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneWorkout(&w)
	s.workouts[w.ID] = &stored

	u := s.user(w.UserID)
	s.addXP(u, w.XPEarned)
	u.TotalWorkouts++

	if err := s.emit(events.WorkoutCreated, w.ID, w.UserID, events.WorkoutChangedFrom(w, w.XPEarned)); err != nil {
		return err
	}
	if w.Status == domain.StatusCompleted {
		return s.emit(events.WorkoutCompleted, w.ID, w.UserID, events.WorkoutChangedFrom(w, 0))
	}
	return nil
}

// GetWorkout returns the owner's non-deleted workout or nil.
func (s *Store) GetWorkout(_ context.Context, userID, id string) (*domain.Workout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workouts[id]
	if !ok || w.IsDeleted || w.UserID != userID {
		return nil, nil
	}
	out := cloneWorkout(w)
	return &out, nil
}

// GetActiveWorkout returns any non-deleted workout by id or nil.
func (s *Store) GetActiveWorkout(_ context.Context, id string) (*domain.Workout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workouts[id]
	if !ok || w.IsDeleted {
		return nil, nil
	}
	out := cloneWorkout(w)
	return &out, nil
}

// ListWorkouts pages through the owner's workouts by date desc, id desc.
func (s *Store) ListWorkouts(_ context.Context, userID string, filter domain.WorkoutFilter) ([]domain.Workout, *domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Workout, 0)
	for _, w := range s.workouts {
		if w.UserID != userID || w.IsDeleted {
			continue
		}
		if filter.From != nil && w.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && w.Date.After(*filter.To) {
			continue
		}
		if filter.ExerciseID != "" && !slices.Contains(domain.ExerciseIDs(w.Exercises), filter.ExerciseID) {
			continue
		}
		matches = append(matches, cloneWorkout(w))
	}
	page, next := paginate(matches, filter.Cursor, filter.Limit)
	return page, next, nil
}

// UpdateWorkout replaces the stored workout and applies the XP difference to its owner.
func (s *Store) UpdateWorkout(_ context.Context, w domain.Workout, eventType string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.workouts[w.ID]
	if !ok || current.IsDeleted || current.UserID != w.UserID {
		return 0, domain.ErrWorkoutNotFound
	}
	delta := w.XPEarned - current.XPEarned
	stored := cloneWorkout(&w)
	s.workouts[w.ID] = &stored
	if delta != 0 {
		s.addXP(s.user(w.UserID), delta)
	}
	return delta, s.emit(eventType, w.ID, w.UserID, events.WorkoutChangedFrom(w, delta))
}

// SoftDeleteWorkout flags the workout deleted and reverses its XP and count exactly once.
func (s *Store) SoftDeleteWorkout(_ context.Context, userID, id string) (*domain.Workout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.workouts[id]
	if !ok || w.IsDeleted || w.UserID != userID {
		return nil, nil
	}
	now := s.now().UTC()
	w.IsDeleted = true
	w.UpdatedAt = now

	u := s.user(userID)
	s.addXP(u, -w.XPEarned)
	u.TotalWorkouts = max(u.TotalWorkouts-1, 0)

	out := cloneWorkout(w)
	if err := s.emit(events.WorkoutDeleted, id, userID, events.WorkoutChangedFrom(out, -w.XPEarned)); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompletedWorkoutDates returns up to limit dates of completed, non-deleted workouts, newest first.
func (s *Store) CompletedWorkoutDates(_ context.Context, userID string, limit int) ([]time.Time, error) {
	completed := s.completed(userID, time.Time{})
	dates := make([]time.Time, 0, len(completed))
	for _, w := range completed {
		dates = append(dates, w.Date)
	}
	if limit > 0 && len(dates) > limit {
		dates = dates[:limit]
	}
	return dates, nil
}

// CompletedWorkouts returns completed, non-deleted workouts dated at or after since, newest first.
func (s *Store) CompletedWorkouts(_ context.Context, userID string, since time.Time) ([]domain.Workout, error) {
	return s.completed(userID, since), nil
}

// ExerciseWorkouts returns the most recent completed workouts containing exerciseID.
func (s *Store) ExerciseWorkouts(_ context.Context, userID, exerciseID string, limit int) ([]domain.Workout, error) {
	out := make([]domain.Workout, 0)
	for _, w := range s.completed(userID, time.Time{}) {
		if slices.Contains(domain.ExerciseIDs(w.Exercises), exerciseID) {
			out = append(out, w)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// FeedWorkouts lists completed, non-deleted, friends or public workouts authored by userIDs.
func (s *Store) FeedWorkouts(_ context.Context, userIDs []string, cursor *domain.Cursor, limit int) ([]domain.Workout, *domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]domain.Workout, 0)
	for _, w := range s.workouts {
		if w.IsDeleted || w.Status != domain.StatusCompleted || w.Visibility == domain.VisibilityPrivate {
			continue
		}
		if !slices.Contains(userIDs, w.UserID) {
			continue
		}
		matches = append(matches, cloneWorkout(w))
	}
	page, next := paginate(matches, cursor, limit)
	return page, next, nil
}

func (s *Store) completed(userID string, since time.Time) []domain.Workout {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Workout, 0)
	for _, w := range s.workouts {
		if w.UserID != userID || w.IsDeleted || w.Status != domain.StatusCompleted {
			continue
		}
		if !since.IsZero() && w.Date.Before(since) {
			continue
		}
		out = append(out, cloneWorkout(w))
	}
	sortByDateDesc(out)
	return out
}

func paginate(list []domain.Workout, cursor *domain.Cursor, limit int) ([]domain.Workout, *domain.Cursor) {
	sortByDateDesc(list)
	page := make([]domain.Workout, 0, max(limit, 0))
	var next *domain.Cursor
	for _, w := range list {
		if !persistence.Before(cursor, w.Date, w.ID) {
			continue
		}
		if limit > 0 && len(page) == limit {
			last := page[len(page)-1]
			next = &domain.Cursor{Date: last.Date, ID: last.ID}
			break
		}
		page = append(page, w)
	}
	return page, next
}
