package engine

import "math"

// Round2 rounds to two decimal places (cents).
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RoundWhole rounds to the nearest unit. Derived financing amounts and the
// acquisition fee are kept in whole currency units.
func RoundWhole(v float64) float64 {
	return math.Round(v)
}
