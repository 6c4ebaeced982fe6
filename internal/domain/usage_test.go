package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsageRecord_Remaining(t *testing.T) {
	tests := []struct {
		name      string
		used      int
		limit     int
		remaining int
		exhausted bool
	}{
		{"fresh", 0, 100, 100, false},
		{"one left", 99, 100, 1, false},
		{"full", 100, 100, 0, true},
		{"limit lowered below usage", 40, 10, 0, true},
		{"unsubscribed", 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &UsageRecord{UploadsUsed: tt.used, EffectiveUploadLimit: tt.limit}
			assert.Equal(t, tt.remaining, u.Remaining())
			assert.Equal(t, tt.exhausted, u.Exhausted())
		})
	}
}
