package repository

import (
	"context"
	"fmt"

	"villagehub/internal/microservices/http-api/models"

	"gorm.io/gorm"
)

// fanOutBatchSize bounds a single multi-row INSERT of delivery rows.
const fanOutBatchSize = 500

type NotificationRepository interface {
	// CreateWithDeliveries persists the notification and one unseen/unread delivery per admin atomically.
	CreateWithDeliveries(ctx context.Context, notification *models.Notification, adminIDs []string) error
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) CreateWithDeliveries(ctx context.Context, notification *models.Notification, adminIDs []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(notification).Error; err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		if len(adminIDs) == 0 {
			return nil
		}

		deliveries := make([]models.Delivery, 0, len(adminIDs))
		for _, adminID := range adminIDs {
			deliveries = append(deliveries, models.Delivery{
				NotificationID: notification.ID,
				AdminID:        adminID,
			})
		}
		if err := tx.CreateInBatches(deliveries, fanOutBatchSize).Error; err != nil {
			return fmt.Errorf("insert %d deliveries: %w", len(deliveries), err)
		}
		return nil
	})
}
