package dto

import (
	"encoding/json"
	"time"

	"villagehub/internal/microservices/http-api/models"
)

// NotifyRequest: payload of the internal notify endpoint called by the village CRUD layer
type NotifyRequest struct {
	VillageKey   string         `json:"village_key" binding:"required,max=100"`
	ActorAdminID string         `json:"actor_admin_id" binding:"omitempty,max=36"`
	Type         string         `json:"type" binding:"required"`
	Category     string         `json:"category"`
	Title        string         `json:"title" binding:"required,max=255"`
	Message      string         `json:"message"`
	Payload      map[string]any `json:"payload"`
	Priority     string         `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
}

// NotifyResponse: created notification plus the outcome of the live push
type NotifyResponse struct {
	Notification NotificationResponse `json:"notification"`
	LivePush     string               `json:"live_push"` // queued | capacity_exceeded | invalid_tenant | failed
	MessageID    string               `json:"message_id,omitempty"`
}

type NotificationResponse struct {
	ID         string          `json:"id"`
	VillageKey string          `json:"village_key"`
	Type       string          `json:"type"`
	Category   string          `json:"category"`
	Title      string          `json:"title"`
	Message    string          `json:"message"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Priority   string          `json:"priority"`
	CreatedAt  time.Time       `json:"created_at"`
	SeenAt     *time.Time      `json:"seen_at,omitempty"`
	ReadAt     *time.Time      `json:"read_at,omitempty"`
	IsRead     bool            `json:"is_read"`
}

func FromNotification(n *models.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:         n.ID,
		VillageKey: n.VillageKey,
		Type:       n.Type,
		Category:   n.Category,
		Title:      n.Title,
		Message:    n.Message,
		Priority:   n.Priority,
		CreatedAt:  n.CreatedAt,
	}
	if len(n.Payload) > 0 {
		resp.Payload = json.RawMessage(n.Payload)
	}
	return resp
}

func FromAdminNotification(n models.AdminNotification) NotificationResponse {
	resp := FromNotification(&n.Notification)
	resp.SeenAt = n.SeenAt
	resp.ReadAt = n.ReadAt
	resp.IsRead = n.ReadAt != nil
	return resp
}
