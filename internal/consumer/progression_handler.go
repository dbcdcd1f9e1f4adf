package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/events"
	"example.com/progression/internal/streak"
)

// ProgressionEvents lists the event types that can move a user's streak, achievements or XP rank.
var ProgressionEvents = []string{
	events.WorkoutCreated,
	events.WorkoutUpdated,
	events.WorkoutCompleted,
	events.WorkoutDeleted,
	events.AchievementUnlocked,
	events.FriendshipAccepted,
}

type streakRecomputer interface {
	Recompute(ctx context.Context, userID string) (streak.Result, error)
}

type achievementChecker interface {
	Check(ctx context.Context, userID string) ([]domain.Achievement, error)
}

type progressReader interface {
	GetProgress(ctx context.Context, userID string) (domain.UserProgress, error)
}

type rankRecorder interface {
	Record(ctx context.Context, userID string, totalXP int) error
}

// ProgressionHandler refreshes derived progression state after an event: the streak, achievement
// unlocks and the user's leaderboard score.
type ProgressionHandler struct {
	streaks      streakRecomputer
	achievements achievementChecker
	progress     progressReader
	board        rankRecorder
	logger       log.FieldLogger
}

// NewProgressionHandler constructs a ProgressionHandler. The handler recomputes the streak itself,
// so achievements should be an evaluator built without a streak recomputer. board may be nil.
func NewProgressionHandler(streaks streakRecomputer, achievements achievementChecker, progress progressReader, board rankRecorder) *ProgressionHandler {
	return &ProgressionHandler{
		streaks:      streaks,
		achievements: achievements,
		progress:     progress,
		board:        board,
		logger:       log.WithField("component", "progression-handler"),
	}
}

// Handle recomputes progression for the event's user. Achievement events only refresh the
// leaderboard score and re-run the check, since an unlock can complete an XP milestone.
func (h *ProgressionHandler) Handle(ctx context.Context, msg Message) error {
	userID, err := eventUser(msg)
	if err != nil {
		return err
	}

	if msg.EventType != events.AchievementUnlocked {
		if _, err := h.streaks.Recompute(ctx, userID); err != nil {
			return fmt.Errorf("recompute streak: %w", err)
		}
	}

	unlocked, err := h.achievements.Check(ctx, userID)
	if err != nil {
		return fmt.Errorf("check achievements: %w", err)
	}
	if len(unlocked) > 0 {
		h.logger.WithField("user_id", userID).Infof("%d achievements unlocked after %s", len(unlocked), msg.EventType)
	}

	if h.board == nil {
		return nil
	}
	progress, err := h.progress.GetProgress(ctx, userID)
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}
	if err := h.board.Record(ctx, userID, progress.XP); err != nil {
		h.logger.WithField("user_id", userID).Warnf("leaderboard update failed: %s", err)
	}
	return nil
}

// eventUser resolves the user an event belongs to, reading the payload when the header is absent.
func eventUser(msg Message) (string, error) {
	if msg.UserID != "" {
		return msg.UserID, nil
	}
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(msg.Payload, &body); err != nil {
		return "", fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}
	if body.UserID == "" {
		return "", errors.New("event carries no user id")
	}
	return body.UserID, nil
}
