package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification is the immutable record of an event worth telling a village's admins about.
// One row per event; per-admin state lives in Delivery.
type Notification struct {
	ID         string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	VillageKey string         `gorm:"not null;index;size:100" json:"village_key"`
	ActorID    *string        `gorm:"size:36" json:"actor_admin_id,omitempty"` // admin who triggered the event, never a recipient
	Type       string         `gorm:"not null;size:64" json:"type"`            // resident_pending, house_updated, ...
	Category   string         `gorm:"not null;size:32" json:"category"`        // user_approval | house_management | visitor_management
	Title      string         `gorm:"not null;size:255" json:"title"`
	Message    string         `gorm:"type:text" json:"message"`
	Payload    datatypes.JSON `json:"payload,omitempty"`
	Priority   string         `gorm:"not null;size:16" json:"priority"` // low | medium | high | urgent
	CreatedAt  time.Time      `gorm:"not null;index" json:"created_at"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (n *Notification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	return
}

func (Notification) TableName() string {
	return "notifications"
}

// Delivery is the per-recipient state of a Notification, keyed by (notification, admin).
type Delivery struct {
	NotificationID string     `gorm:"primaryKey;type:varchar(36)" json:"notification_id"`
	AdminID        string     `gorm:"primaryKey;type:varchar(36);index" json:"admin_id"`
	SeenAt         *time.Time `json:"seen_at"` // set when the admin opens the notification panel
	ReadAt         *time.Time `json:"read_at"` // set when the item is opened or on mark-all-read

	Notification *Notification `gorm:"foreignKey:NotificationID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Delivery) TableName() string {
	return "notification_deliveries"
}

// AdminNotification is the dashboard projection: a Notification joined with one admin's Delivery.
type AdminNotification struct {
	Notification
	SeenAt *time.Time `json:"seen_at"`
	ReadAt *time.Time `json:"read_at"`
}

// DeliveryStats aggregates one admin's delivery rows.
type DeliveryStats struct {
	Total  int64 `json:"total"`
	Unread int64 `json:"unread"`
	Unseen int64 `json:"unseen"`
}
