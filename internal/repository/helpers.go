package repository

import "math"

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// ListLimit clamps a requested page size
func ListLimit(n int) int {
	if n <= 0 {
		return DefaultListLimit
	}
	if n > MaxListLimit {
		return MaxListLimit
	}
	return n
}

// Round2 rounds an averaged value to two places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
