package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateIdempotencyKey(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		a := GenerateIdempotencyKey("v-1", "redeemed", "2025-06-01T12:00:00Z")
		b := GenerateIdempotencyKey("v-1", "redeemed", "2025-06-01T12:00:00Z")

		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
	})

	t.Run("differs when any component changes", func(t *testing.T) {
		base := GenerateIdempotencyKey("v-1", "redeemed", "2025-06-01T12:00:00Z")

		assert.NotEqual(t, base, GenerateIdempotencyKey("v-2", "redeemed", "2025-06-01T12:00:00Z"))
		assert.NotEqual(t, base, GenerateIdempotencyKey("v-1", "delivered", "2025-06-01T12:00:00Z"))
		assert.NotEqual(t, base, GenerateIdempotencyKey("v-1", "redeemed", "2025-06-01T12:00:01Z"))
	})
}

func TestFilter_Normalize(t *testing.T) {
	tests := []struct {
		name       string
		in         Filter
		wantLimit  int
		wantOffset int
	}{
		{"defaults applied", Filter{}, 50, 0},
		{"negative offset reset", Filter{Limit: 10, Offset: -5}, 10, 0},
		{"limit capped", Filter{Limit: 10000}, 500, 0},
		{"valid passthrough", Filter{Limit: 25, Offset: 100}, 25, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			assert.Equal(t, tt.wantLimit, got.Limit)
			assert.Equal(t, tt.wantOffset, got.Offset)
		})
	}
}
