package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMulDivFloor(t *testing.T) {
	tests := []struct {
		name     string
		a, b     uint64
		den      uint64
		expected uint64
	}{
		{"exact division", 7000, 10000, 10000, 7000},
		{"truncates down", 1, 10000, 3, 3333},
		{"zero numerator", 0, 10000, 10000, 0},
		{"large values do not overflow", math.MaxUint64 / 2, 10000, 10000, math.MaxUint64 / 2},
		// 3333*(2^64-1) = 61482997997673935532795; floor div by 10000
		{"weight of huge total", math.MaxUint64, 3333, 10000, 6148299799767393553},
		// 5000*(2^64-1)/10000 = (2^64-1)/2, floored
		{"half of max total", math.MaxUint64, 5000, 10000, math.MaxUint64 / 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MulDivFloor(tt.a, tt.b, tt.den))
		})
	}
}

func TestMulDivFloorNeverRoundsUp(t *testing.T) {
	// floor(v*10000/total) summed over parts of total must stay <= 10000
	total := uint64(9999999999)
	parts := []uint64{1234567890, 4444444444, 4320987665}

	var sum uint64
	for _, p := range parts {
		sum += MulDivFloor(p, 10000, total)
	}
	assert.LessOrEqual(t, sum, uint64(10000))
}
