package memory

import (
	"context"
	"sort"
	"time"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/events"
	"example.com/progression/internal/xp"
)

// CurrentBest returns the maximum-value record for the key, or nil. Ties resolve to the earliest row.
func (s *Store) CurrentBest(_ context.Context, userID, exerciseID string, recordType domain.RecordType) (*domain.PersonalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *domain.PersonalRecord
	for i := range s.records {
		row := s.records[i]
		if row.UserID != userID || row.ExerciseID != exerciseID || row.Type != recordType {
			continue
		}
		if best == nil || row.Value > best.Value {
			best = &row
		}
	}
	return best, nil
}

// AppendRecord appends a record row and enqueues record.created.
func (s *Store) AppendRecord(_ context.Context, record domain.PersonalRecord, exerciseName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return s.emit(events.RecordCreated, record.ID, record.UserID, events.RecordCreatedFrom(record, exerciseName))
}

// ListRecords returns matching records, newest first. An empty exerciseID matches every exercise.
func (s *Store) ListRecords(_ context.Context, userID, exerciseID string, since time.Time) ([]domain.PersonalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PersonalRecord, 0)
	for _, row := range s.records {
		if row.UserID != userID || (exerciseID != "" && row.ExerciseID != exerciseID) {
			continue
		}
		if !since.IsZero() && row.AchievedAt.Before(since) {
			continue
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AchievedAt.After(out[j].AchievedAt) })
	return out, nil
}

// SaveStreak stores the current streak and raises the longest-streak high-water mark.
func (s *Store) SaveStreak(_ context.Context, userID string, current int) (domain.UserProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user(userID)
	u.CurrentStreak = current
	u.LongestStreak = max(u.LongestStreak, current)
	u.UpdatedAt = s.now().UTC()
	return *u, nil
}

// ListAchievements returns the catalog.
func (s *Store) ListAchievements(context.Context) ([]domain.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Achievement, 0, len(s.achievements))
	for _, a := range s.achievements {
		out = append(out, a)
	}
	return out, nil
}

// UpsertAchievements inserts or replaces catalog definitions.
func (s *Store) UpsertAchievements(_ context.Context, list []domain.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range list {
		s.achievements[a.Key] = a
	}
	return nil
}

// ListUserAchievements returns the user's unlocks, oldest first.
func (s *Store) ListUserAchievements(_ context.Context, userID string) ([]domain.UserAchievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserAchievement, 0)
	for _, ua := range s.unlocks {
		if ua.UserID == userID {
			out = append(out, ua)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnlockedAt.Before(out[j].UnlockedAt) })
	return out, nil
}

// UnlockAchievement inserts the unlock, credits the reward and enqueues achievement.unlocked atomically.
func (s *Store) UnlockAchievement(_ context.Context, unlock domain.UserAchievement, achievement domain.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := unlock.UserID + "/" + unlock.AchievementKey
	if _, ok := s.unlocks[key]; ok {
		return domain.ErrAlreadyUnlocked
	}
	s.unlocks[key] = unlock
	s.addXP(s.user(unlock.UserID), achievement.XPReward)
	return s.emit(events.AchievementUnlocked, key, unlock.UserID, events.AchievementUnlockedFrom(unlock, achievement))
}

// ProgressCounters derives the live achievement counters.
func (s *Store) ProgressCounters(_ context.Context, userID string) (domain.Counters, error) {
	completed := s.completed(userID, time.Time{})

	s.mu.RLock()
	defer s.mu.RUnlock()
	counters := domain.Counters{CompletedWorkouts: len(completed)}
	for _, w := range completed {
		counters.TotalSets += xp.TotalSets(w.Exercises)
	}
	for _, f := range s.friendships {
		if f.Status == domain.FriendshipAccepted && (f.RequesterID == userID || f.RecipientID == userID) {
			counters.Friends++
		}
	}
	if u, ok := s.users[userID]; ok {
		counters.XP = u.XP
		counters.CurrentStreak = u.CurrentStreak
	}
	return counters, nil
}

// TopByXP returns users ordered by XP desc.
func (s *Store) TopByXP(_ context.Context, limit int) ([]domain.UserProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserProgress, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].XP == out[j].XP {
			return out[i].UserID < out[j].UserID
		}
		return out[i].XP > out[j].XP
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TopByStreak returns users ordered by current streak desc.
func (s *Store) TopByStreak(_ context.Context, limit int) ([]domain.UserProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserProgress, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CurrentStreak != out[j].CurrentStreak {
			return out[i].CurrentStreak > out[j].CurrentStreak
		}
		if out[i].LongestStreak != out[j].LongestStreak {
			return out[i].LongestStreak > out[j].LongestStreak
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TopByWorkouts ranks users by completed workouts dated at or after since.
func (s *Store) TopByWorkouts(_ context.Context, since time.Time, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.periodTotals(since, nil)
	sort.Slice(out, func(i, j int) bool {
		if out[i].WorkoutCount == out[j].WorkoutCount {
			if out[i].TotalVolume == out[j].TotalVolume {
				return out[i].UserID < out[j].UserID
			}
			return out[i].TotalVolume > out[j].TotalVolume
		}
		return out[i].WorkoutCount > out[j].WorkoutCount
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TopByVolume ranks users by lifted volume over completed workouts dated at or after since.
func (s *Store) TopByVolume(_ context.Context, since time.Time, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.periodTotals(since, nil)
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalVolume == out[j].TotalVolume {
			if out[i].WorkoutCount == out[j].WorkoutCount {
				return out[i].UserID < out[j].UserID
			}
			return out[i].WorkoutCount > out[j].WorkoutCount
		}
		return out[i].TotalVolume > out[j].TotalVolume
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemberStandings returns one unranked row per id in userIDs, with period totals counted
// from since. Users without activity read as zero.
func (s *Store) MemberStandings(_ context.Context, userIDs []string, since time.Time) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		members[id] = true
	}
	totals := make(map[string]domain.LeaderboardEntry)
	for _, e := range s.periodTotals(since, members) {
		totals[e.UserID] = e
	}
	out := make([]domain.LeaderboardEntry, 0, len(members))
	for id := range members {
		e, ok := totals[id]
		if !ok {
			e = domain.LeaderboardEntry{UserID: id}
		}
		if u, found := s.users[id]; found {
			e.XP = u.XP
			e.CurrentStreak = u.CurrentStreak
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// UserRanks counts the users strictly ahead of userID on XP, current streak and completed
// workouts since the given instant.
func (s *Store) UserRanks(_ context.Context, userID string, since time.Time) (domain.UserRanks, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var self domain.UserProgress
	if u, ok := s.users[userID]; ok {
		self = *u
	}
	ranks := domain.UserRanks{XPRank: 1, StreakRank: 1, WorkoutsRank: 1, TotalUsers: len(s.users)}
	for _, u := range s.users {
		if u.XP > self.XP {
			ranks.XPRank++
		}
		if u.CurrentStreak > self.CurrentStreak {
			ranks.StreakRank++
		}
	}
	totals := s.periodTotals(since, nil)
	own := 0
	for _, e := range totals {
		if e.UserID == userID {
			own = e.WorkoutCount
		}
	}
	for _, e := range totals {
		if e.WorkoutCount > own {
			ranks.WorkoutsRank++
		}
	}
	return ranks, nil
}

// periodTotals aggregates completed workouts dated at or after since per user, restricted to
// members when it is non-nil; callers hold the lock.
func (s *Store) periodTotals(since time.Time, members map[string]bool) []domain.LeaderboardEntry {
	byUser := make(map[string]*domain.LeaderboardEntry)
	for _, w := range s.workouts {
		if w.IsDeleted || w.Status != domain.StatusCompleted || w.Date.Before(since) {
			continue
		}
		if members != nil && !members[w.UserID] {
			continue
		}
		entry, ok := byUser[w.UserID]
		if !ok {
			entry = &domain.LeaderboardEntry{UserID: w.UserID}
			if u, found := s.users[w.UserID]; found {
				entry.XP = u.XP
				entry.CurrentStreak = u.CurrentStreak
			}
			byUser[w.UserID] = entry
		}
		entry.WorkoutCount++
		entry.TotalVolume += w.TotalVolume()
	}
	out := make([]domain.LeaderboardEntry, 0, len(byUser))
	for _, entry := range byUser {
		out = append(out, *entry)
	}
	return out
}
