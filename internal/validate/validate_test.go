package validate

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	v := New(DefaultBounds())
	cases := []struct {
		name     string
		lat, lon float64
		in       bool
	}{
		{"stockholm", 59.3293, 18.0686, true},
		{"kiruna", 67.8558, 20.2253, true},
		{"corner_low", 55, 10, true},
		{"corner_high", 70, 25, true},
		{"new_york", 40.7, -74.0, false},
		{"lat_just_below", 54.9999, 15, false},
		{"lon_just_above", 60, 25.0001, false},
		{"nan", math.NaN(), 18, false},
		{"inf", 60, math.Inf(1), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := v.Validate(c.lat, c.lon)
			assert.Equal(t, c.in, got.InScope)
			if c.in {
				assert.Empty(t, got.Reason)
			} else {
				assert.Equal(t, ReasonOutOfRange, got.Reason)
			}
		})
	}
}

func TestValidateCustomBounds(t *testing.T) {
	v := New(Bounds{LatMin: 0, LatMax: 1, LonMin: 0, LonMax: 1})
	assert.True(t, v.Validate(0.5, 0.5).InScope)
	assert.False(t, v.Validate(59, 18).InScope)
}
