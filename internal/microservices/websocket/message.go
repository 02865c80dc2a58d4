package websocket

import (
	"encoding/json"
	"log/slog"
	"time"

	"villagehub/internal/microservices/http-api/models"
)

// Wire protocol between the broker and admin dashboards.
// Every frame is a JSON object {type, data?, timestamp?}.

type MessageType string

const (
	TypeWelcome           MessageType = "WELCOME"
	TypeSubscribeAdmin    MessageType = "SUBSCRIBE_ADMIN"
	TypeSubscribedAdmin   MessageType = "SUBSCRIBED_ADMIN"
	TypeAdminNotification MessageType = "ADMIN_NOTIFICATION"
	TypePing              MessageType = "PING"
	TypePong              MessageType = "PONG"
	TypeError             MessageType = "ERROR"
	TypeEcho              MessageType = "ECHO" // debug reply for well-formed frames the server has no handler for
)

// machine-readable ERROR reasons
const (
	ReasonInvalidJSON       = "invalid_json"
	ReasonMissingType       = "missing_type"
	ReasonUnknownType       = "unknown_type"
	ReasonMissingFields     = "missing_fields"
	ReasonInvalidVillageKey = "invalid_village_key"
	ReasonRateLimited       = "rate_limited"
	ReasonPublishFailed     = "publish_failed"
)

// Frame is an outbound message. Timestamp is unix milliseconds.
type Frame struct {
	Type      MessageType `json:"type"`
	Data      any         `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp,omitempty"`
}

func NewFrame(msgType MessageType, data any) *Frame {
	return &Frame{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// ToJSON: marshal Frame to JSON
func (f *Frame) ToJSON() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		slog.Error("Failed to marshal frame to JSON", "type", f.Type, "error", err)
		return nil, err
	}
	return data, nil
}

// InboundFrame is a parsed client frame; Data stays raw until the handler for Type decodes it.
type InboundFrame struct {
	Type MessageType
	Data json.RawMessage
}

type ErrorData struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type WelcomeData struct {
	ConnectionID string `json:"connectionId"`
}

type SubscribeAdminData struct {
	VillageKey string `json:"villageKey"`
}

type SubscribedAdminData struct {
	VillageKey string `json:"villageKey"`
	Topic      string `json:"topic"`
}

// NotificationData is the ADMIN_NOTIFICATION body pushed to dashboards.
type NotificationData struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Category   string          `json:"category"`
	Title      string          `json:"title"`
	Message    string          `json:"message"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Priority   string          `json:"priority"`
	VillageKey string          `json:"villageKey"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func NotificationDataFrom(n *models.Notification) NotificationData {
	data := NotificationData{
		ID:         n.ID,
		Type:       n.Type,
		Category:   n.Category,
		Title:      n.Title,
		Message:    n.Message,
		Priority:   n.Priority,
		VillageKey: n.VillageKey,
		CreatedAt:  n.CreatedAt,
	}
	if len(n.Payload) > 0 {
		data.Payload = json.RawMessage(n.Payload)
	}
	return data
}

// ParseFrame decodes a client frame. It only checks the envelope; per-type fields are checked by handlers.
func ParseFrame(raw []byte) (*InboundFrame, *ErrorData) {
	var envelope struct {
		Type json.RawMessage `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &ErrorData{Reason: ReasonInvalidJSON, Message: "frame is not a JSON object"}
	}

	var msgType string
	if len(envelope.Type) == 0 || json.Unmarshal(envelope.Type, &msgType) != nil || msgType == "" {
		return nil, &ErrorData{Reason: ReasonMissingType, Message: "frame has no string type"}
	}
	return &InboundFrame{Type: MessageType(msgType), Data: envelope.Data}, nil
}

// ParseAdminNotification checks that a client-sent ADMIN_NOTIFICATION carries id, title and villageKey.
func ParseAdminNotification(raw json.RawMessage) (map[string]any, string, *ErrorData) {
	missing := &ErrorData{Reason: ReasonMissingFields, Message: "ADMIN_NOTIFICATION requires data.id, data.title and data.villageKey"}
	if len(raw) == 0 {
		return nil, "", missing
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		return nil, "", missing
	}

	switch id := data["id"].(type) {
	case string:
		if id == "" {
			return nil, "", missing
		}
	case float64:
	default:
		return nil, "", missing
	}
	if title, _ := data["title"].(string); title == "" {
		return nil, "", missing
	}
	villageKey, _ := data["villageKey"].(string)
	if villageKey == "" {
		return nil, "", missing
	}
	return data, villageKey, nil
}

// isServerFrame reports types that only the server is expected to send.
func isServerFrame(t MessageType) bool {
	switch t {
	case TypeWelcome, TypeSubscribedAdmin, TypePong, TypeError, TypeEcho:
		return true
	}
	return false
}
