package websocket

import (
	"strings"

	"villagehub/internal/microservices/http-api/service"
)

const adminTopicPrefix = "admin:"

// ErrInvalidTenantKey is the same sentinel the notification store returns.
var ErrInvalidTenantKey = service.ErrInvalidTenantKey

// CanonicalVillageKey lower-cases key and keeps only [a-z0-9_-].
// Subscribe and publish both go through it, so "Village-A" and "village-a" share a topic
// while "village_a" does not.
func CanonicalVillageKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range strings.ToLower(key) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// AdminTopic returns the broadcast topic of a village's admins.
func AdminTopic(villageKey string) (string, error) {
	canonical := CanonicalVillageKey(villageKey)
	if canonical == "" {
		return "", ErrInvalidTenantKey
	}
	return adminTopicPrefix + canonical, nil
}
