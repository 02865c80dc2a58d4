package service

import (
	"context"
	"log/slog"

	"villagehub/internal/microservices/http-api/models"
)

// Publisher pushes a persisted notification to live dashboards.
// The websocket Broker satisfies it.
type Publisher interface {
	Publish(notification *models.Notification) (string, error)
}

// NotifyResult reports both halves of a notify call. PushErr is informational:
// the notification is already durable when it is set.
type NotifyResult struct {
	Notification *models.Notification
	MessageID    string
	PushErr      error
}

// Notifier is the entry point the village CRUD layer calls after a state change.
type Notifier struct {
	store     NotificationService
	publisher Publisher
	logger    *slog.Logger
}

func NewNotifier(store NotificationService, publisher Publisher, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{store: store, publisher: publisher, logger: logger}
}

// Notify persists and fans out the notification, then attempts a live push.
// Only persistence failures are returned as errors.
func (n *Notifier) Notify(ctx context.Context, in CreateNotificationInput) (*NotifyResult, error) {
	notification, err := n.store.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	result := &NotifyResult{Notification: notification}
	if n.publisher == nil {
		return result, nil
	}

	result.MessageID, result.PushErr = n.publisher.Publish(notification)
	if result.PushErr != nil {
		n.logger.Warn("live_push_failed",
			"notification_id", notification.ID,
			"village_key", notification.VillageKey,
			"error", result.PushErr.Error(),
		)
	}
	return result, nil
}
