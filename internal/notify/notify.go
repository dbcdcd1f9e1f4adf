// Package notify turns record and achievement events into user notifications.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/events"
)

const (
	TypeRecord      = "record"
	TypeAchievement = "achievement"
	TypeChallenge   = "challenge"

	DefaultListLimit = 50
	MaxListLimit     = 100
)

var idNamespace = uuid.MustParse("3f6c1b52-8d0e-4c36-9a57-0f1f6b1c9d21")

// Store persists notifications.
type Store interface {
	CreateNotification(ctx context.Context, n domain.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, int, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
}

// Service builds and serves notifications.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs a Service.
func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Handle stores the notification derived from env, if any. Replays of the same event land on
// the same notification ID.
func (s *Service) Handle(ctx context.Context, env events.Envelope) error {
	n, ok, err := Build(env)
	if err != nil || !ok {
		return err
	}
	n.CreatedAt = s.now().UTC()
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// Build maps an event to a notification. Only weight and volume records notify. Challenge
// events are addressed to one participant each, so the envelope user is the recipient.
func Build(env events.Envelope) (domain.Notification, bool, error) {
	n := domain.Notification{
		ID:     uuid.NewSHA1(idNamespace, []byte(env.DedupeKey)).String(),
		UserID: env.UserID,
	}
	switch env.Type {
	case events.RecordCreated:
		var p events.RecordCreatedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return domain.Notification{}, false, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if !domain.RecordType(p.Type).Notifies() {
			return domain.Notification{}, false, nil
		}
		name := p.ExerciseName
		if name == "" {
			name = p.ExerciseID
		}
		n.Type = TypeRecord
		n.Title = "New personal record!"
		n.Body = fmt.Sprintf("%s: %s %s", name, strconv.FormatFloat(p.Value, 'f', -1, 64), domain.RecordType(p.Type).Unit())
		n.Data = map[string]any{
			"recordId":   p.RecordID,
			"exerciseId": p.ExerciseID,
			"recordType": p.Type,
			"value":      p.Value,
		}
		return n, true, nil
	case events.AchievementUnlocked:
		var p events.AchievementUnlockedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return domain.Notification{}, false, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		n.Type = TypeAchievement
		n.Title = "Achievement unlocked!"
		n.Body = "You earned: " + p.Name
		n.Data = map[string]any{
			"achievementKey": p.AchievementKey,
			"xpReward":       p.XPReward,
		}
		return n, true, nil
	case events.ChallengeCreated, events.ChallengeCompleted:
		var p events.ChallengePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return domain.Notification{}, false, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		n.Type = TypeChallenge
		n.Data = map[string]any{
			"challengeId":   p.ChallengeID,
			"challengeType": p.Type,
		}
		if env.Type == events.ChallengeCreated {
			n.Title = "New challenge!"
			n.Body = fmt.Sprintf("%s challenged you (%s, %d days)", p.ChallengerID, p.Type, p.Duration)
			return n, true, nil
		}
		switch p.WinnerID {
		case "":
			n.Title = "Challenge finished in a draw"
		case env.UserID:
			n.Title = "You won the challenge!"
		default:
			n.Title = "Challenge finished"
		}
		n.Body = fmt.Sprintf("%s vs %s: %s to %s",
			p.ChallengerID, p.ChallengedID,
			strconv.FormatFloat(p.ChallengerProgress, 'f', -1, 64),
			strconv.FormatFloat(p.ChallengedProgress, 'f', -1, 64))
		n.Data["winnerId"] = p.WinnerID
		return n, true, nil
	}
	return domain.Notification{}, false, nil
}

// Page is a list of notifications with the user's unread total.
type Page struct {
	Notifications []domain.Notification
	UnreadCount   int
}

// List returns the newest notifications of userID.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit int) (Page, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	list, unread, err := s.store.ListNotifications(ctx, userID, unreadOnly, limit)
	if err != nil {
		return Page{}, fmt.Errorf("list notifications: %w", err)
	}
	return Page{Notifications: list, UnreadCount: unread}, nil
}

// MarkRead marks one notification read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.store.MarkNotificationRead(ctx, userID, id)
}

// MarkAllRead marks every notification of userID read and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.store.MarkAllNotificationsRead(ctx, userID)
}
