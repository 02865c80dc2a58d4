package queue

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Priority orders queued messages; higher drains first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

var priorityNames = map[Priority]string{
	PriorityLow:      "low",
	PriorityNormal:   "normal",
	PriorityHigh:     "high",
	PriorityCritical: "critical",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// Message is a unit of outbound work. It only ever lives in queue memory.
type Message struct {
	ID            string
	Type          string
	Payload       any
	Priority      Priority
	RetryCount    int
	MaxRetries    int
	EnqueuedAt    time.Time
	ExpiresAt     *time.Time
	TargetClients []string
	Metadata      map[string]string

	seq        uint64
	contentKey string
}

// Expired reports whether the message is past its expiry at now.
func (m *Message) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && !now.Before(*m.ExpiresAt)
}

// EnqueueRequest describes a message to enqueue. Zero TTL means no expiry.
type EnqueueRequest struct {
	Type          string
	Payload       any
	Priority      Priority
	MaxRetries    int
	TargetClients []string
	Metadata      map[string]string
	TTL           time.Duration
}

// contentKey fingerprints (type, payload); two requests with the same key are duplicates.
func contentKey(msgType string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("fingerprint payload: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(msgType))
	h.Write([]byte{0})
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// messageID combines the content fingerprint with the enqueue time.
func messageID(key string, at time.Time) string {
	return fmt.Sprintf("%s-%d", key[:16], at.UnixNano())
}
