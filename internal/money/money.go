// Package money provides shared MRU amount parsing and formatting utilities.
//
// Amounts use 2 decimal places. All values are stored as big.Int in the
// smallest unit (1 MRU = 100 units), so aggregate sums never lose precision.
package money

import (
	"math/big"
	"strings"
)

const Decimals = 2

// Parse converts a decimal string (e.g. "1500.50") to its smallest-unit
// big.Int representation (150050). Returns (nil, false) on invalid input.
//
// Rules:
//   - Empty string returns (0, true)
//   - Negative amounts are rejected
//   - Multiple decimal points are rejected
//   - Fractional parts are padded/truncated to 2 decimal places
func Parse(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return big.NewInt(0), true
	}

	if strings.HasPrefix(s, "-") {
		return nil, false
	}

	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return nil, false
	}
	whole := parts[0]
	frac := ""
	if len(parts) > 1 {
		frac = parts[1]
	}

	// Pad or trim to 2 decimals
	for len(frac) < Decimals {
		frac += "0"
	}
	frac = frac[:Decimals]

	combined := whole + frac
	result, ok := new(big.Int).SetString(combined, 10)
	return result, ok
}

// Format converts a smallest-unit big.Int to a decimal string with exactly
// 2 decimal places (e.g. "1500.50").
func Format(amount *big.Int) string {
	if amount == nil {
		return "0.00"
	}
	neg := amount.Sign() < 0
	abs := new(big.Int).Abs(amount)
	s := abs.String()
	for len(s) < Decimals+1 {
		s = "0" + s
	}
	decimal := len(s) - Decimals
	result := s[:decimal] + "." + s[decimal:]
	if neg {
		result = "-" + result
	}
	return result
}

// Add returns the sum of two decimal strings. Invalid operands count as zero.
func Add(a, b string) string {
	x, ok := Parse(a)
	if !ok {
		x = big.NewInt(0)
	}
	y, ok := Parse(b)
	if !ok {
		y = big.NewInt(0)
	}
	return Format(new(big.Int).Add(x, y))
}

// Cmp compares two decimal strings: -1 if a < b, 0 if equal, +1 if a > b.
// Invalid operands count as zero.
func Cmp(a, b string) int {
	x, ok := Parse(a)
	if !ok {
		x = big.NewInt(0)
	}
	y, ok := Parse(b)
	if !ok {
		y = big.NewInt(0)
	}
	return x.Cmp(y)
}

// Float converts a decimal string to float64 for statistical use
// (feature extraction, averages). Invalid input yields 0.
func Float(s string) float64 {
	v, ok := Parse(s)
	if !ok {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), big.NewFloat(100)).Float64()
	return f
}

// FromFloat renders a float64 as a 2-decimal string. Used when averaging.
func FromFloat(f float64) string {
	neg := f < 0
	if neg {
		f = -f
	}
	units := int64(f*100 + 0.5)
	v := big.NewInt(units)
	if neg {
		v.Neg(v)
	}
	return Format(v)
}
