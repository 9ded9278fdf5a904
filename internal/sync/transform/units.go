// Package transform maps internal catalog rows onto the destination
// marketplace payload shape. Every function here is pure: no I/O, no state,
// same input produces the same output.
package transform

import "math"

// floatSlack absorbs the binary representation error of decimal inputs
// before truncation, so 4.10 scales to 410 rather than 409. It is far below
// any genuine sub-minor-unit remainder, so 19.995 still truncates to 1999.
const floatSlack = 1e-6

// PriceMinorUnits converts a decimal price to the destination's minor-unit
// integer. Truncates the decimal value toward zero, never rounds:
// 19.999 -> 1999.
func PriceMinorUnits(price float64) int64 {
	return int64(math.Trunc(price*100 + floatSlack))
}

// WeightGrams converts a weight in kilograms to whole grams, truncating the
// decimal value toward zero: 1.2345 -> 1234.
func WeightGrams(kg float64) int64 {
	return int64(math.Trunc(kg*1000 + floatSlack))
}
