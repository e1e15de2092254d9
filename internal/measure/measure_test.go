package measure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOunces(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"2 1/2 oz", 2.5},
		{"30 ml", 1.01},
		{"1 wedge", 0},
		{"", 0},
		{"2 dashes", 0},
		{"1 1/2 cl", 0.51},
		{"3/4 oz", 0.75},
		{"1/2", 0.5},
		{"2", 2},
		{"1.5 ounces", 1.5},
		{"4 CL", 1.35},
		{"  2 OZ ", 2},
		{"2 1/2 cups", 2.5},
		{"juice of 1 lime", 0},
		{"top up", 0},
		{"1/0 oz", 0},
		{"1 slice orange", 0},
		{"1 twist of lemon", 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.InDelta(t, tt.want, Ounces(tt.raw), 1e-9)
		})
	}
}

func TestParseKeepsRawText(t *testing.T) {
	m := Parse("1 1/2 oz")
	assert.Equal(t, "1 1/2 oz", m.Raw)
	assert.Equal(t, 1.5, m.Ounces)
	assert.True(t, m.IsLiquid())
}

func TestParseGarbageIsSilentGarnish(t *testing.T) {
	for _, raw := range []string{"???", "a splash", "fill with soda", "-3 oz"} {
		m := Parse(raw)
		assert.False(t, m.IsLiquid(), raw)
		assert.Zero(t, m.Ounces, raw)
	}
}
