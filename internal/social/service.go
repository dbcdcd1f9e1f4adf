// Package social maintains likes, comments, friendships and the friend feed.
package social

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"example.com/progression/internal/domain"
)

// Feed pagination bounds.
const (
	DefaultFeedLimit = 20
	MaxFeedLimit     = 100
	MaxCommentLength = 500
)

// Repository is the storage surface the aggregator needs.
type Repository interface {
	// GetActiveWorkout returns nil when the workout is missing or soft deleted.
	GetActiveWorkout(ctx context.Context, workoutID string) (*domain.Workout, error)

	// GetFriendship finds the edge between a and b in either direction, or nil.
	GetFriendship(ctx context.Context, a, b string) (*domain.Friendship, error)
	GetFriendshipByID(ctx context.Context, id string) (*domain.Friendship, error)
	CreateFriendship(ctx context.Context, f domain.Friendship) error
	// AcceptFriendship persists the accepted edge and enqueues friendship.accepted.
	AcceptFriendship(ctx context.Context, f domain.Friendship) error
	DeleteFriendship(ctx context.Context, id string) error
	ListFriendships(ctx context.Context, userID string, status domain.FriendshipStatus) ([]domain.Friendship, error)

	// CreateLike returns domain.ErrAlreadyLiked on a duplicate (workout, user) pair.
	CreateLike(ctx context.Context, like domain.Like) error
	DeleteLike(ctx context.Context, workoutID, userID string) (bool, error)
	CreateComment(ctx context.Context, comment domain.Comment) error
	ListComments(ctx context.Context, workoutID string) ([]domain.Comment, error)
	DeleteComment(ctx context.Context, userID, commentID string) (bool, error)

	// FeedWorkouts lists completed, non-deleted friends/public workouts of userIDs by date desc, id desc.
	FeedWorkouts(ctx context.Context, userIDs []string, cursor *domain.Cursor, limit int) ([]domain.Workout, *domain.Cursor, error)
	LikeCounts(ctx context.Context, workoutIDs []string) (map[string]int, error)
	CommentCounts(ctx context.Context, workoutIDs []string) (map[string]int, error)
	LikedBy(ctx context.Context, userID string, workoutIDs []string) (map[string]bool, error)
}

// Service implements the social operations.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Like records userID's like on a workout the user is allowed to see.
func (s *Service) Like(ctx context.Context, userID, workoutID string) error {
	if _, err := s.accessibleWorkout(ctx, userID, workoutID); err != nil {
		return err
	}
	return s.repo.CreateLike(ctx, domain.Like{WorkoutID: workoutID, UserID: userID, CreatedAt: s.now().UTC()})
}

// Unlike removes userID's like.
func (s *Service) Unlike(ctx context.Context, userID, workoutID string) error {
	removed, err := s.repo.DeleteLike(ctx, workoutID, userID)
	if err != nil {
		return err
	}
	if !removed {
		return domain.ErrNotLiked
	}
	return nil
}

// AddComment appends a comment after the same visibility check as Like.
func (s *Service) AddComment(ctx context.Context, userID, workoutID, content string) (domain.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > MaxCommentLength {
		return domain.Comment{}, domain.Validation("content must be between 1 and %d characters", MaxCommentLength)
	}
	if _, err := s.accessibleWorkout(ctx, userID, workoutID); err != nil {
		return domain.Comment{}, err
	}
	comment := domain.Comment{
		ID:        uuid.NewString(),
		WorkoutID: workoutID,
		UserID:    userID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		return domain.Comment{}, err
	}
	return comment, nil
}

// Comments lists a visible workout's comments, newest first.
func (s *Service) Comments(ctx context.Context, userID, workoutID string) ([]domain.Comment, error) {
	if _, err := s.accessibleWorkout(ctx, userID, workoutID); err != nil {
		return nil, err
	}
	return s.repo.ListComments(ctx, workoutID)
}

// DeleteComment removes one of userID's own comments.
func (s *Service) DeleteComment(ctx context.Context, userID, commentID string) error {
	removed, err := s.repo.DeleteComment(ctx, userID, commentID)
	if err != nil {
		return err
	}
	if !removed {
		return domain.ErrCommentNotFound
	}
	return nil
}

// FeedPage is one page of the friend feed.
type FeedPage struct {
	Items      []domain.FeedItem
	NextCursor *domain.Cursor
}

// Feed assembles completed friends/public workouts from userID and their accepted friends.
func (s *Service) Feed(ctx context.Context, userID string, cursor *domain.Cursor, limit int) (FeedPage, error) {
	limit = ClampLimit(limit)

	friends, err := s.FriendIDs(ctx, userID)
	if err != nil {
		return FeedPage{}, err
	}
	authors := append(friends, userID)

	workouts, next, err := s.repo.FeedWorkouts(ctx, authors, cursor, limit)
	if err != nil {
		return FeedPage{}, fmt.Errorf("feed workouts: %w", err)
	}
	if len(workouts) == 0 {
		return FeedPage{Items: []domain.FeedItem{}}, nil
	}

	ids := make([]string, len(workouts))
	for i, w := range workouts {
		ids[i] = w.ID
	}
	likes, err := s.repo.LikeCounts(ctx, ids)
	if err != nil {
		return FeedPage{}, fmt.Errorf("like counts: %w", err)
	}
	comments, err := s.repo.CommentCounts(ctx, ids)
	if err != nil {
		return FeedPage{}, fmt.Errorf("comment counts: %w", err)
	}
	liked, err := s.repo.LikedBy(ctx, userID, ids)
	if err != nil {
		return FeedPage{}, fmt.Errorf("liked by: %w", err)
	}

	items := make([]domain.FeedItem, len(workouts))
	for i, w := range workouts {
		items[i] = domain.FeedItem{
			Workout:       w,
			LikesCount:    likes[w.ID],
			CommentsCount: comments[w.ID],
			IsLikedByUser: liked[w.ID],
		}
	}
	return FeedPage{Items: items, NextCursor: next}, nil
}

// ClampLimit applies the feed's default and maximum page size.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultFeedLimit
	}
	return min(limit, MaxFeedLimit)
}

// AreFriends reports whether a and b share an accepted friendship.
func (s *Service) AreFriends(ctx context.Context, a, b string) (bool, error) {
	f, err := s.repo.GetFriendship(ctx, a, b)
	if err != nil {
		return false, err
	}
	return f != nil && f.Status == domain.FriendshipAccepted, nil
}

// FriendIDs returns the ids of userID's accepted friends.
func (s *Service) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	edges, err := s.repo.ListFriendships(ctx, userID, domain.FriendshipAccepted)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	ids := make([]string, 0, len(edges))
	for _, f := range edges {
		ids = append(ids, f.Other(userID))
	}
	return ids, nil
}

func (s *Service) accessibleWorkout(ctx context.Context, userID, workoutID string) (*domain.Workout, error) {
	workout, err := s.repo.GetActiveWorkout(ctx, workoutID)
	if err != nil {
		return nil, err
	}
	if workout == nil {
		return nil, domain.ErrWorkoutNotFound
	}
	if workout.Visibility != domain.VisibilityPrivate || workout.UserID == userID {
		return workout, nil
	}
	friends, err := s.AreFriends(ctx, userID, workout.UserID)
	if err != nil {
		return nil, err
	}
	if !friends {
		return nil, domain.ErrForbidden
	}
	return workout, nil
}
