package memory

import (
	"context"
	"sort"
	"time"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/events"
)

// CreateChallenge stores a pending challenge and enqueues challenge.created for the challenged user.
func (s *Store) CreateChallenge(_ context.Context, c domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := c
	s.challenges[c.ID] = &stored
	return s.emit(events.ChallengeCreated, c.ID, c.ChallengedID, events.ChallengeFrom(c))
}

// GetChallenge returns the challenge or nil.
func (s *Store) GetChallenge(_ context.Context, id string) (*domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.challenges[id]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

// UpdateChallenge replaces the challenge while it is still in status from. Completing a
// challenge enqueues challenge.completed for both participants.
func (s *Store) UpdateChallenge(_ context.Context, c domain.Challenge, from domain.ChallengeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.challenges[c.ID]
	if !ok || current.Status != from {
		return domain.ErrChallengeNotFound
	}
	*current = c
	if c.Status != domain.ChallengeCompleted || from == domain.ChallengeCompleted {
		return nil
	}
	payload := events.ChallengeFrom(c)
	if err := s.emit(events.ChallengeCompleted, c.ID, c.ChallengerID, payload); err != nil {
		return err
	}
	return s.emit(events.ChallengeCompleted, c.ID, c.ChallengedID, payload)
}

// ListChallenges returns the challenges userID takes part in, newest first. An empty status
// matches every status.
func (s *Store) ListChallenges(_ context.Context, userID string, status domain.ChallengeStatus) ([]domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Challenge, 0)
	for _, c := range s.challenges {
		if !c.Involves(userID) || (status != "" && c.Status != status) {
			continue
		}
		out = append(out, *c)
	}
	sortChallenges(out)
	return out, nil
}

// ListChallengesByStatus returns every challenge in status, newest first.
func (s *Store) ListChallengesByStatus(_ context.Context, status domain.ChallengeStatus) ([]domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Challenge, 0)
	for _, c := range s.challenges {
		if c.Status == status {
			out = append(out, *c)
		}
	}
	sortChallenges(out)
	return out, nil
}

// ExpirePendingChallenges moves pending challenges created before cutoff to expired.
func (s *Store) ExpirePendingChallenges(_ context.Context, cutoff, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.challenges {
		if c.Status == domain.ChallengePending && c.CreatedAt.Before(cutoff) {
			c.Status = domain.ChallengeExpired
			c.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func sortChallenges(list []domain.Challenge) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}
