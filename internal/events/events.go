// Package events defines the progression event payloads and their routing metadata.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"example.com/progression/internal/domain"
)

// Event types written to the outbox.
const (
	WorkoutCreated      = "workout.created"
	WorkoutUpdated      = "workout.updated"
	WorkoutCompleted    = "workout.completed"
	WorkoutDeleted      = "workout.deleted"
	RecordCreated       = "record.created"
	AchievementUnlocked = "achievement.unlocked"
	FriendshipAccepted  = "friendship.accepted"
	ChallengeCreated    = "challenge.created"
	ChallengeCompleted  = "challenge.completed"
)

// Topics carrying progression events.
const (
	TopicWorkouts     = "progression_workout_events"
	TopicRecords      = "progression_record_events"
	TopicAchievements = "progression_achievement_events"
	TopicSocial       = "progression_social_events"
)

// Metadata describes how an event type is routed.
type Metadata struct {
	AggregateType string
	Topic         string
	SchemaSubject string
}

// Catalog maps event types to their routing metadata.
var Catalog = map[string]Metadata{
	WorkoutCreated:      {AggregateType: "workout", Topic: TopicWorkouts, SchemaSubject: TopicWorkouts + "-workout.created-value"},
	WorkoutUpdated:      {AggregateType: "workout", Topic: TopicWorkouts, SchemaSubject: TopicWorkouts + "-workout.updated-value"},
	WorkoutCompleted:    {AggregateType: "workout", Topic: TopicWorkouts, SchemaSubject: TopicWorkouts + "-workout.completed-value"},
	WorkoutDeleted:      {AggregateType: "workout", Topic: TopicWorkouts, SchemaSubject: TopicWorkouts + "-workout.deleted-value"},
	RecordCreated:       {AggregateType: "personal_record", Topic: TopicRecords, SchemaSubject: TopicRecords + "-value"},
	AchievementUnlocked: {AggregateType: "user_achievement", Topic: TopicAchievements, SchemaSubject: TopicAchievements + "-value"},
	FriendshipAccepted:  {AggregateType: "friendship", Topic: TopicSocial, SchemaSubject: TopicSocial + "-value"},
	ChallengeCreated:    {AggregateType: "challenge", Topic: TopicSocial, SchemaSubject: TopicSocial + "-challenge.created-value"},
	ChallengeCompleted:  {AggregateType: "challenge", Topic: TopicSocial, SchemaSubject: TopicSocial + "-challenge.completed-value"},
}

// Envelope is an event ready to be stored in the outbox. Events are partitioned by user.
type Envelope struct {
	Type          string
	AggregateType string
	AggregateID   string
	UserID        string
	Topic         string
	SchemaSubject string
	Payload       json.RawMessage
	DedupeKey     string
	OccurredAt    time.Time
}

// PartitionKey keeps every event of a user on the same partition.
func (e Envelope) PartitionKey() string {
	return e.UserID
}

// New marshals payload and resolves routing metadata for eventType.
func New(eventType, aggregateID, userID string, payload any) (Envelope, error) {
	meta, ok := Catalog[eventType]
	if !ok {
		return Envelope{}, fmt.Errorf("unknown event type: %s", eventType)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	now := time.Now().UTC()
	return Envelope{
		Type:          eventType,
		AggregateType: meta.AggregateType,
		AggregateID:   aggregateID,
		UserID:        userID,
		Topic:         meta.Topic,
		SchemaSubject: meta.SchemaSubject,
		Payload:       body,
		DedupeKey:     fmt.Sprintf("%s:%s:%d", aggregateID, eventType, now.UnixNano()),
		OccurredAt:    now,
	}, nil
}

// WorkoutChanged is emitted on workout create, update, completion and deletion.
type WorkoutChanged struct {
	WorkoutID  string    `json:"workout_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	XPEarned   int       `json:"xp_earned"`
	XPDelta    int       `json:"xp_delta"`
	Date       time.Time `json:"date"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RecordCreatedPayload is emitted for each appended personal record.
type RecordCreatedPayload struct {
	RecordID      string    `json:"record_id"`
	UserID        string    `json:"user_id"`
	ExerciseID    string    `json:"exercise_id"`
	ExerciseName  string    `json:"exercise_name,omitempty"`
	WorkoutID     string    `json:"workout_id"`
	Type          string    `json:"type"`
	Value         float64   `json:"value"`
	Unit          string    `json:"unit,omitempty"`
	PreviousValue *float64  `json:"previous_value,omitempty"`
	Improvement   float64   `json:"improvement"`
	AchievedAt    time.Time `json:"achieved_at"`
}

// AchievementUnlockedPayload is emitted when a user unlocks an achievement.
type AchievementUnlockedPayload struct {
	UserID         string    `json:"user_id"`
	AchievementKey string    `json:"achievement_key"`
	Name           string    `json:"name"`
	XPReward       int       `json:"xp_reward"`
	Progress       int       `json:"progress"`
	UnlockedAt     time.Time `json:"unlocked_at"`
}

// FriendshipAcceptedPayload is emitted when a friend request is accepted.
type FriendshipAcceptedPayload struct {
	FriendshipID string    `json:"friendship_id"`
	RequesterID  string    `json:"requester_id"`
	RecipientID  string    `json:"recipient_id"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// ChallengePayload is emitted when a challenge is issued and when it completes.
type ChallengePayload struct {
	ChallengeID        string    `json:"challenge_id"`
	ChallengerID       string    `json:"challenger_id"`
	ChallengedID       string    `json:"challenged_id"`
	Type               string    `json:"type"`
	Status             string    `json:"status"`
	TargetValue        float64   `json:"target_value"`
	Duration           int       `json:"duration"`
	ChallengerProgress float64   `json:"challenger_progress"`
	ChallengedProgress float64   `json:"challenged_progress"`
	WinnerID           string    `json:"winner_id,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// WorkoutChangedFrom builds the workout payload for w with the XP delta applied to its owner.
func WorkoutChangedFrom(w domain.Workout, delta int) WorkoutChanged {
	return WorkoutChanged{
		WorkoutID:  w.ID,
		UserID:     w.UserID,
		Status:     string(w.Status),
		XPEarned:   w.XPEarned,
		XPDelta:    delta,
		Date:       w.Date,
		OccurredAt: time.Now().UTC(),
	}
}

// RecordCreatedFrom builds the record payload.
func RecordCreatedFrom(r domain.PersonalRecord, exerciseName string) RecordCreatedPayload {
	return RecordCreatedPayload{
		RecordID:      r.ID,
		UserID:        r.UserID,
		ExerciseID:    r.ExerciseID,
		ExerciseName:  exerciseName,
		WorkoutID:     r.WorkoutID,
		Type:          string(r.Type),
		Value:         r.Value,
		Unit:          r.Unit,
		PreviousValue: r.PreviousValue,
		Improvement:   r.Improvement,
		AchievedAt:    r.AchievedAt,
	}
}

// AchievementUnlockedFrom builds the unlock payload.
func AchievementUnlockedFrom(ua domain.UserAchievement, a domain.Achievement) AchievementUnlockedPayload {
	return AchievementUnlockedPayload{
		UserID:         ua.UserID,
		AchievementKey: a.Key,
		Name:           a.Name,
		XPReward:       a.XPReward,
		Progress:       ua.Progress,
		UnlockedAt:     ua.UnlockedAt,
	}
}

// FriendshipAcceptedFrom builds the friendship payload.
func FriendshipAcceptedFrom(f domain.Friendship) FriendshipAcceptedPayload {
	return FriendshipAcceptedPayload{
		FriendshipID: f.ID,
		RequesterID:  f.RequesterID,
		RecipientID:  f.RecipientID,
		OccurredAt:   f.UpdatedAt,
	}
}

// ChallengeFrom builds the challenge payload.
func ChallengeFrom(c domain.Challenge) ChallengePayload {
	return ChallengePayload{
		ChallengeID:        c.ID,
		ChallengerID:       c.ChallengerID,
		ChallengedID:       c.ChallengedID,
		Type:               string(c.Type),
		Status:             string(c.Status),
		TargetValue:        c.TargetValue,
		Duration:           c.Duration,
		ChallengerProgress: c.ChallengerProgress,
		ChallengedProgress: c.ChallengedProgress,
		WinnerID:           c.WinnerID,
		OccurredAt:         c.UpdatedAt,
	}
}
