package consumer

import (
	"context"

	"example.com/progression/internal/events"
)

// NotificationEvents lists the event types that can produce a notification.
var NotificationEvents = []string{events.RecordCreated, events.AchievementUnlocked, events.ChallengeCreated, events.ChallengeCompleted}

type notifier interface {
	Handle(ctx context.Context, env events.Envelope) error
}

// NotificationHandler stores a notification for record, achievement and challenge events.
type NotificationHandler struct {
	notifier notifier
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(n notifier) *NotificationHandler {
	return &NotificationHandler{notifier: n}
}

// Handle forwards the event to the notifier.
func (h *NotificationHandler) Handle(ctx context.Context, msg Message) error {
	return h.notifier.Handle(ctx, msg.Envelope())
}
