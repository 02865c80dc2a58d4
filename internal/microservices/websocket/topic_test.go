package websocket

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"villagehub/internal/microservices/http-api/service"
)

func TestCanonicalVillageKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"village-a", "village-a"},
		{"Village-A", "village-a"},
		{"  PHA-SUK-001 ", "pha-suk-001"},
		{"village_a", "village_a"},
		{"vill@ge#a", "villgea"},
		{"บ้าน-01", "-01"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalVillageKey(tt.in))
		})
	}
}

func TestAdminTopic(t *testing.T) {
	upper, err := AdminTopic("Village-A")
	require.NoError(t, err)
	lower, err := AdminTopic("village-a")
	require.NoError(t, err)
	underscore, err := AdminTopic("village_a")
	require.NoError(t, err)

	assert.Equal(t, "admin:village-a", upper)
	assert.Equal(t, upper, lower)
	assert.NotEqual(t, upper, underscore)
}

func TestAdminTopic_RejectsEmptyCanonicalKey(t *testing.T) {
	for _, key := range []string{"", "   ", "@@@"} {
		_, err := AdminTopic(key)
		assert.ErrorIs(t, err, ErrInvalidTenantKey, "key %q", key)
	}
}

func TestErrInvalidTenantKey_SharedWithStore(t *testing.T) {
	_, err := AdminTopic("***")
	assert.ErrorIs(t, err, service.ErrInvalidTenantKey)
	assert.ErrorIs(t, fmt.Errorf("notify: %w", service.ErrInvalidTenantKey), ErrInvalidTenantKey)
}
