package models

import "time"

const (
	AdminStatusPending  = "pending"
	AdminStatusVerified = "verified"
)

// Admin is owned by the village CRUD layer; this subsystem only reads membership and verification.
type Admin struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	VillageKey string    `gorm:"not null;index;size:100" json:"village_key"`
	Email      string    `gorm:"size:255" json:"email"`
	Status     string    `gorm:"not null;default:'pending';size:16" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Admin) TableName() string {
	return "admins"
}
