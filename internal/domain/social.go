package domain

import "time"

// FriendshipStatus is the state of a friendship edge.
type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
	FriendshipBlocked  FriendshipStatus = "blocked"
)

// Friendship links a requester and a recipient.
type Friendship struct {
	ID          string
	RequesterID string
	RecipientID string
	Status      FriendshipStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Other returns the id of the participant that is not userID.
func (f Friendship) Other(userID string) string {
	if f.RequesterID == userID {
		return f.RecipientID
	}
	return f.RequesterID
}

// Like is unique per (WorkoutID, UserID).
type Like struct {
	WorkoutID string
	UserID    string
	CreatedAt time.Time
}

// Comment is an append-only note left on a workout.
type Comment struct {
	ID        string
	WorkoutID string
	UserID    string
	Content   string
	CreatedAt time.Time
}

// FeedItem is a workout enriched with its social aggregates for one viewer.
type FeedItem struct {
	Workout       Workout
	LikesCount    int
	CommentsCount int
	IsLikedByUser bool
}
