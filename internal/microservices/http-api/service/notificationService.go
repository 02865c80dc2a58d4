package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"villagehub/internal/microservices/http-api/models"
	"villagehub/internal/microservices/http-api/repository"

	"gorm.io/datatypes"
)

var (
	ErrInvalidNotification = errors.New("invalid notification")
	ErrInvalidTenantKey    = errors.New("invalid tenant key")
)

// CreateNotificationInput carries the notify contract arguments.
// Category and Priority may be empty, in which case the type's catalog defaults apply.
type CreateNotificationInput struct {
	VillageKey   string
	ActorAdminID string
	Type         string
	Category     string
	Title        string
	Message      string
	Payload      map[string]any
	Priority     string
}

// NotificationService is the notification store: it persists a notification and fans it out
// into one delivery row per eligible admin. It never broadcasts.
type NotificationService interface {
	Create(ctx context.Context, in CreateNotificationInput) (*models.Notification, error)
}

type notificationService struct {
	repo      repository.NotificationRepository
	adminRepo repository.AdminRepository
	cache     repository.StatsCache
	logger    *slog.Logger
	now       func() time.Time
}

func NewNotificationService(
	repo repository.NotificationRepository,
	adminRepo repository.AdminRepository,
	cache repository.StatsCache,
	logger *slog.Logger,
) NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &notificationService{
		repo:      repo,
		adminRepo: adminRepo,
		cache:     cache,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *notificationService) Create(ctx context.Context, in CreateNotificationInput) (*models.Notification, error) {
	notification, err := s.build(in)
	if err != nil {
		return nil, err
	}

	adminIDs, err := s.adminRepo.FindVerifiedIDs(ctx, notification.VillageKey, in.ActorAdminID)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients for village %q: %w", notification.VillageKey, err)
	}

	if err := s.repo.CreateWithDeliveries(ctx, notification, adminIDs); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, adminIDs...)
	}

	s.logger.Info("notification_created",
		"notification_id", notification.ID,
		"village_key", notification.VillageKey,
		"type", notification.Type,
		"recipients", len(adminIDs),
	)
	return notification, nil
}

// build validates the input and turns it into an unsaved Notification.
func (s *notificationService) build(in CreateNotificationInput) (*models.Notification, error) {
	villageKey := strings.TrimSpace(in.VillageKey)
	if villageKey == "" {
		return nil, fmt.Errorf("%w: village key is required", ErrInvalidTenantKey)
	}

	notifType, ok := ParseNotificationType(in.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidNotification, in.Type)
	}

	category := notifType.DefaultCategory()
	if in.Category != "" {
		if category, ok = ParseCategory(in.Category); !ok {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidNotification, in.Category)
		}
	}

	priority := notifType.DefaultPriority()
	if in.Priority != "" {
		if priority, ok = ParsePriority(in.Priority); !ok {
			return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidNotification, in.Priority)
		}
	}

	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidNotification)
	}

	notification := &models.Notification{
		VillageKey: villageKey,
		Type:       string(notifType),
		Category:   string(category),
		Title:      in.Title,
		Message:    in.Message,
		Priority:   string(priority),
		CreatedAt:  s.now(),
	}
	if in.ActorAdminID != "" {
		actor := in.ActorAdminID
		notification.ActorID = &actor
	}
	if in.Payload != nil {
		raw, err := json.Marshal(in.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: payload: %v", ErrInvalidNotification, err)
		}
		notification.Payload = datatypes.JSON(raw)
	}
	return notification, nil
}
