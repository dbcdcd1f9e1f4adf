package domain

import "time"

// ChallengeType is the metric two users compete on.
type ChallengeType string

const (
	ChallengeWorkoutCount     ChallengeType = "workout_count"
	ChallengeVolume           ChallengeType = "volume"
	ChallengeSpecificExercise ChallengeType = "specific_exercise"
)

// Valid reports whether t is a known challenge type.
func (t ChallengeType) Valid() bool {
	switch t {
	case ChallengeWorkoutCount, ChallengeVolume, ChallengeSpecificExercise:
		return true
	}
	return false
}

// ChallengeStatus is the lifecycle state of a challenge.
type ChallengeStatus string

const (
	ChallengePending   ChallengeStatus = "pending"
	ChallengeAccepted  ChallengeStatus = "accepted"
	ChallengeRejected  ChallengeStatus = "rejected"
	ChallengeCompleted ChallengeStatus = "completed"
	ChallengeExpired   ChallengeStatus = "expired"
)

// Valid reports whether s is a known challenge status.
func (s ChallengeStatus) Valid() bool {
	switch s {
	case ChallengePending, ChallengeAccepted, ChallengeRejected, ChallengeCompleted, ChallengeExpired:
		return true
	}
	return false
}

// Challenge is a head-to-head contest between a challenger and the challenged user. The
// window opens when the challenged user accepts and lasts Duration days.
type Challenge struct {
	ID                 string
	ChallengerID       string
	ChallengedID       string
	Type               ChallengeType
	TargetValue        float64
	Unit               string
	ExerciseID         string
	Duration           int
	Status             ChallengeStatus
	ChallengerProgress float64
	ChallengedProgress float64
	WinnerID           string
	StartDate          *time.Time
	EndDate            *time.Time
	AcceptedAt         *time.Time
	CompletedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Involves reports whether userID is one of the two participants.
func (c Challenge) Involves(userID string) bool {
	return c.ChallengerID == userID || c.ChallengedID == userID
}
