package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafetyRating(t *testing.T) {
	tests := []struct {
		name     string
		rate     float64
		expected float64
	}{
		{"zero rate is safest", 0, 10.0},
		{"midpoint", 25, 5.0},
		{"clamp boundary", 45, 1.0},
		{"clamped above boundary", 200, 1.0},
		{"small rate", 0.125, 9.975},
		{"slope is -0.2 per unit", 10, 8.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, SafetyRating(tc.rate), 1e-9)
		})
	}
}

func TestSafetyRating_MonotonicallyDecreasing(t *testing.T) {
	prev := SafetyRating(0)
	for rate := 1.0; rate <= 60; rate++ {
		cur := SafetyRating(rate)
		assert.LessOrEqual(t, cur, prev, "rate %v", rate)
		prev = cur
	}
}
