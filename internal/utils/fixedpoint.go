// Package utils provides small shared helpers.
package utils

import "math/bits"

// MulDivFloor computes floor(a * b / den) using full-width 128-bit
// intermediate math, so a*b never overflows before the division.
//
// All weight arithmetic in ballast goes through this helper: basis-point
// weights are computed with truncating division only, which is what keeps
// the "sum of current weights never exceeds 10000" invariant exact. Never
// substitute floating point here.
//
// Panics if den is zero or if the quotient does not fit in 64 bits. Callers
// keep both out of reach: weights are bounded by 10000 bps and values are
// bounded by the portfolio total.
func MulDivFloor(a, b, den uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	quo, _ := bits.Div64(hi, lo, den)
	return quo
}
