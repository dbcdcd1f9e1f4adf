package memory

import (
	"context"
	"sort"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/events"
)

// GetFriendship finds the edge between a and b in either direction.
func (s *Store) GetFriendship(_ context.Context, a, b string) (*domain.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.friendships {
		if (f.RequesterID == a && f.RecipientID == b) || (f.RequesterID == b && f.RecipientID == a) {
			out := *f
			return &out, nil
		}
	}
	return nil, nil
}

// GetFriendshipByID returns the edge or nil.
func (s *Store) GetFriendshipByID(_ context.Context, id string) (*domain.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.friendships[id]
	if !ok {
		return nil, nil
	}
	out := *f
	return &out, nil
}

// CreateFriendship stores a new edge. A second edge for the same pair is REQUEST_PENDING.
func (s *Store) CreateFriendship(_ context.Context, f domain.Friendship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.friendships {
		if (existing.RequesterID == f.RequesterID && existing.RecipientID == f.RecipientID) ||
			(existing.RequesterID == f.RecipientID && existing.RecipientID == f.RequesterID) {
			return domain.ErrRequestPending
		}
	}
	s.friendships[f.ID] = &f
	return nil
}

// AcceptFriendship stores the accepted edge and enqueues friendship.accepted for both users.
func (s *Store) AcceptFriendship(_ context.Context, f domain.Friendship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.friendships[f.ID]
	if !ok || current.Status != domain.FriendshipPending {
		return domain.ErrRequestNotFound
	}
	current.Status = domain.FriendshipAccepted
	current.UpdatedAt = f.UpdatedAt
	payload := events.FriendshipAcceptedFrom(*current)
	if err := s.emit(events.FriendshipAccepted, f.ID, f.RequesterID, payload); err != nil {
		return err
	}
	return s.emit(events.FriendshipAccepted, f.ID, f.RecipientID, payload)
}

// DeleteFriendship removes the edge.
func (s *Store) DeleteFriendship(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.friendships, id)
	return nil
}

// ListFriendships returns userID's edges in the given status, newest first.
func (s *Store) ListFriendships(_ context.Context, userID string, status domain.FriendshipStatus) ([]domain.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Friendship, 0)
	for _, f := range s.friendships {
		if f.Status != status || (f.RequesterID != userID && f.RecipientID != userID) {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func likeKey(workoutID, userID string) string {
	return workoutID + "/" + userID
}

// CreateLike stores the like; a duplicate pair is ALREADY_LIKED.
func (s *Store) CreateLike(_ context.Context, like domain.Like) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := likeKey(like.WorkoutID, like.UserID)
	if _, ok := s.likes[key]; ok {
		return domain.ErrAlreadyLiked
	}
	s.likes[key] = like
	return nil
}

// DeleteLike removes the like and reports whether one existed.
func (s *Store) DeleteLike(_ context.Context, workoutID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := likeKey(workoutID, userID)
	if _, ok := s.likes[key]; !ok {
		return false, nil
	}
	delete(s.likes, key)
	return true, nil
}

// CreateComment stores a comment.
func (s *Store) CreateComment(_ context.Context, comment domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[comment.ID] = comment
	return nil
}

// ListComments returns a workout's comments, newest first.
func (s *Store) ListComments(_ context.Context, workoutID string) ([]domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Comment, 0)
	for _, c := range s.comments {
		if c.WorkoutID == workoutID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteComment removes userID's own comment and reports whether one was removed.
func (s *Store) DeleteComment(_ context.Context, userID, commentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok || c.UserID != userID {
		return false, nil
	}
	delete(s.comments, commentID)
	return true, nil
}

// LikeCounts counts likes per workout id.
func (s *Store) LikeCounts(_ context.Context, workoutIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := toSet(workoutIDs)
	counts := make(map[string]int, len(workoutIDs))
	for _, like := range s.likes {
		if _, ok := wanted[like.WorkoutID]; ok {
			counts[like.WorkoutID]++
		}
	}
	return counts, nil
}

// CommentCounts counts comments per workout id.
func (s *Store) CommentCounts(_ context.Context, workoutIDs []string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wanted := toSet(workoutIDs)
	counts := make(map[string]int, len(workoutIDs))
	for _, c := range s.comments {
		if _, ok := wanted[c.WorkoutID]; ok {
			counts[c.WorkoutID]++
		}
	}
	return counts, nil
}

// LikedBy reports which of the workouts userID has liked.
func (s *Store) LikedBy(_ context.Context, userID string, workoutIDs []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(workoutIDs))
	for _, id := range workoutIDs {
		if _, ok := s.likes[likeKey(id, userID)]; ok {
			out[id] = true
		}
	}
	return out, nil
}

// CreateNotification stores a notification.
func (s *Store) CreateNotification(_ context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notifications[n.ID]; ok {
		return nil
	}
	s.notifications[n.ID] = &n
	return nil
}

// ListNotifications returns the newest notifications for userID plus the unread total.
func (s *Store) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Notification, 0)
	unread := 0
	for _, n := range s.notifications {
		if n.UserID != userID {
			continue
		}
		if !n.Read {
			unread++
		}
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, unread, nil
}

// MarkNotificationRead flags one of userID's notifications as read.
func (s *Store) MarkNotificationRead(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return domain.ErrNotificationNotFound
	}
	if !n.Read {
		now := s.now().UTC()
		n.Read = true
		n.ReadAt = &now
	}
	return nil
}

// MarkAllNotificationsRead flags every unread notification of userID and returns how many changed.
func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	changed := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			n.ReadAt = &now
			changed++
		}
	}
	return changed, nil
}

func toSet(ids []string) map[string]struct{} {
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}
