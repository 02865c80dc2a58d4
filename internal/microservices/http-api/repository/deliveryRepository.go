package repository

import (
	"context"
	"time"

	"villagehub/internal/microservices/http-api/models"

	"gorm.io/gorm"
)

// DeliveryRepository reads and mutates per-admin delivery state.
// Mark operations on rows that do not exist affect zero rows and are not errors.
type DeliveryRepository interface {
	ListForAdmin(ctx context.Context, adminID string, limit, offset int) ([]models.AdminNotification, error)
	CountUnread(ctx context.Context, adminID string) (int64, error)
	Stats(ctx context.Context, adminID string) (models.DeliveryStats, error)
	Find(ctx context.Context, notificationID, adminID string) (*models.Delivery, error)
	MarkSeen(ctx context.Context, notificationID, adminID string, at time.Time) (int64, error)
	MarkAllSeen(ctx context.Context, adminID string, at time.Time) (int64, error)
	MarkRead(ctx context.Context, notificationID, adminID string, at time.Time) (int64, error)
	MarkAllRead(ctx context.Context, adminID string, at time.Time) (int64, error)
}

type deliveryRepository struct {
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) DeliveryRepository {
	return &deliveryRepository{db: db}
}

func (r *deliveryRepository) ListForAdmin(ctx context.Context, adminID string, limit, offset int) ([]models.AdminNotification, error) {
	var rows []models.AdminNotification
	err := r.db.WithContext(ctx).
		Table("notification_deliveries AS d").
		Select("n.*, d.seen_at, d.read_at").
		Joins("JOIN notifications AS n ON n.id = d.notification_id").
		Where("d.admin_id = ?", adminID).
		Order("n.created_at DESC").
		Order("n.id ASC").
		Limit(limit).
		Offset(offset).
		Scan(&rows).Error
	return rows, err
}

func (r *deliveryRepository) CountUnread(ctx context.Context, adminID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("admin_id = ? AND read_at IS NULL", adminID).
		Count(&count).Error
	return count, err
}

func (r *deliveryRepository) Stats(ctx context.Context, adminID string) (models.DeliveryStats, error) {
	var stats models.DeliveryStats
	err := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Select(`COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN read_at IS NULL THEN 1 ELSE 0 END), 0) AS unread,
			COALESCE(SUM(CASE WHEN seen_at IS NULL THEN 1 ELSE 0 END), 0) AS unseen`).
		Where("admin_id = ?", adminID).
		Scan(&stats).Error
	return stats, err
}

func (r *deliveryRepository) Find(ctx context.Context, notificationID, adminID string) (*models.Delivery, error) {
	var delivery models.Delivery
	err := r.db.WithContext(ctx).
		Where("notification_id = ? AND admin_id = ?", notificationID, adminID).
		First(&delivery).Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

// MarkSeen only touches a row whose seen_at is still null, so the first timestamp wins.
func (r *deliveryRepository) MarkSeen(ctx context.Context, notificationID, adminID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("notification_id = ? AND admin_id = ? AND seen_at IS NULL", notificationID, adminID).
		Update("seen_at", at)
	return result.RowsAffected, result.Error
}

func (r *deliveryRepository) MarkAllSeen(ctx context.Context, adminID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("admin_id = ? AND seen_at IS NULL", adminID).
		Update("seen_at", at)
	return result.RowsAffected, result.Error
}

// MarkRead never clears read_at and leaves an existing timestamp in place.
func (r *deliveryRepository) MarkRead(ctx context.Context, notificationID, adminID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("notification_id = ? AND admin_id = ? AND read_at IS NULL", notificationID, adminID).
		Update("read_at", at)
	return result.RowsAffected, result.Error
}

func (r *deliveryRepository) MarkAllRead(ctx context.Context, adminID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Delivery{}).
		Where("admin_id = ? AND read_at IS NULL", adminID).
		Update("read_at", at)
	return result.RowsAffected, result.Error
}
