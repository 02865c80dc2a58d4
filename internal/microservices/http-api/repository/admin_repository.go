package repository

import (
	"context"

	"villagehub/internal/microservices/http-api/models"

	"gorm.io/gorm"
)

// AdminRepository resolves notification recipients from the admin membership table.
type AdminRepository interface {
	// FindVerifiedIDs returns verified admins of the village, minus excludeID when it is non-empty.
	FindVerifiedIDs(ctx context.Context, villageKey, excludeID string) ([]string, error)
}

type adminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) AdminRepository {
	return &adminRepository{db: db}
}

func (r *adminRepository) FindVerifiedIDs(ctx context.Context, villageKey, excludeID string) ([]string, error) {
	var ids []string
	query := r.db.WithContext(ctx).
		Model(&models.Admin{}).
		Where("village_key = ? AND status = ?", villageKey, models.AdminStatusVerified)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	err := query.Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}
