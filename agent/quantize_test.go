package agent

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func TestQuantizeStaysInRangeWithOneDecimal(t *testing.T) {
	q := NewQuantizer(rand.New(rand.NewSource(7)))
	for min := 0; min < 60; min++ {
		for max := min + 1; max < 60; max++ {
			lo, hi := decimal.NewFromInt(int64(min)), decimal.NewFromInt(int64(max))
			v := q.Quantize(lo, hi)
			if v.LessThan(lo) || v.GreaterThan(hi) {
				t.Fatalf("Quantize(%d, %d) = %s, out of range", min, max, v)
			}
			if !v.Equal(v.Truncate(1)) {
				t.Fatalf("Quantize(%d, %d) = %s has more than one decimal", min, max, v)
			}
		}
	}
}

func TestQuantizeOffGridBounds(t *testing.T) {
	tests := []struct {
		name     string
		min, max string
		draw     float64
		want     string
	}{
		{"lowest draw rounds min up", "47.55", "50", 0, "47.6"},
		{"highest draw truncates", "0.1", "2.0", 0.9999999, "1.9"},
		{"mid draw", "10", "20", 0.5, "15"},
		{"fractional bounds", "166.25", "175", 0.25, "168.4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewQuantizer(constSource(tt.draw)).Quantize(d(tt.min), d(tt.max))
			if !got.Equal(d(tt.want)) {
				t.Errorf("Quantize(%s, %s) = %s, want %s", tt.min, tt.max, got, tt.want)
			}
			if got.LessThan(d(tt.min)) || got.GreaterThan(d(tt.max)) {
				t.Errorf("Quantize(%s, %s) = %s out of range", tt.min, tt.max, got)
			}
		})
	}
}

func TestQuantizeInvalidRangeReturnsZero(t *testing.T) {
	q := NewQuantizer(constSource(0.5))
	tests := []struct {
		name     string
		min, max string
	}{
		{"negative min", "-1", "5"},
		{"range below one", "0.1", "1.0"},
		{"inverted", "10", "2"},
		{"empty", "3", "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := q.Quantize(d(tt.min), d(tt.max)); !got.IsZero() {
				t.Errorf("Quantize(%s, %s) = %s, want 0", tt.min, tt.max, got)
			}
		})
	}
}
