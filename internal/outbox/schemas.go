package outbox

import "example.com/progression/internal/events"

const workoutChangedSchema = `{
  "type": "object",
  "title": "WorkoutChanged",
  "properties": {
    "workout_id": {"type": "string"},
    "user_id": {"type": "string"},
    "status": {"type": "string", "enum": ["planned", "in-progress", "completed"]},
    "xp_earned": {"type": "integer", "minimum": 0},
    "xp_delta": {"type": "integer"},
    "date": {"type": "string", "format": "date-time"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["workout_id", "user_id", "status", "xp_earned", "xp_delta", "date", "occurred_at"],
  "additionalProperties": false
}`

const recordCreatedSchema = `{
  "type": "object",
  "title": "RecordCreated",
  "properties": {
    "record_id": {"type": "string"},
    "user_id": {"type": "string"},
    "exercise_id": {"type": "string"},
    "exercise_name": {"type": "string"},
    "workout_id": {"type": "string"},
    "type": {"type": "string", "enum": ["weight", "reps", "volume", "duration", "distance"]},
    "value": {"type": "number"},
    "unit": {"type": "string"},
    "previous_value": {"type": "number"},
    "improvement": {"type": "number"},
    "achieved_at": {"type": "string", "format": "date-time"}
  },
  "required": ["record_id", "user_id", "exercise_id", "workout_id", "type", "value", "improvement", "achieved_at"],
  "additionalProperties": false
}`

const achievementUnlockedSchema = `{
  "type": "object",
  "title": "AchievementUnlocked",
  "properties": {
    "user_id": {"type": "string"},
    "achievement_key": {"type": "string"},
    "name": {"type": "string"},
    "xp_reward": {"type": "integer"},
    "progress": {"type": "integer"},
    "unlocked_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "achievement_key", "name", "xp_reward", "progress", "unlocked_at"],
  "additionalProperties": false
}`

const friendshipAcceptedSchema = `{
  "type": "object",
  "title": "FriendshipAccepted",
  "properties": {
    "friendship_id": {"type": "string"},
    "requester_id": {"type": "string"},
    "recipient_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["friendship_id", "requester_id", "recipient_id", "occurred_at"],
  "additionalProperties": false
}`

const challengeSchema = `{
  "type": "object",
  "title": "Challenge",
  "properties": {
    "challenge_id": {"type": "string"},
    "challenger_id": {"type": "string"},
    "challenged_id": {"type": "string"},
    "type": {"type": "string", "enum": ["workout_count", "volume", "specific_exercise"]},
    "status": {"type": "string"},
    "target_value": {"type": "number"},
    "duration": {"type": "integer"},
    "challenger_progress": {"type": "number"},
    "challenged_progress": {"type": "number"},
    "winner_id": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["challenge_id", "challenger_id", "challenged_id", "type", "status", "target_value", "duration", "occurred_at"],
  "additionalProperties": false
}`

// schemaCatalog maps event types to the JSON schema registered for their subject.
var schemaCatalog = map[string]string{
	events.WorkoutCreated:      workoutChangedSchema,
	events.WorkoutUpdated:      workoutChangedSchema,
	events.WorkoutCompleted:    workoutChangedSchema,
	events.WorkoutDeleted:      workoutChangedSchema,
	events.RecordCreated:       recordCreatedSchema,
	events.AchievementUnlocked: achievementUnlockedSchema,
	events.FriendshipAccepted:  friendshipAcceptedSchema,
	events.ChallengeCreated:    challengeSchema,
	events.ChallengeCompleted:  challengeSchema,
}
