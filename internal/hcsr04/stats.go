package hcsr04

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// TrimmedMean drops one minimum and one maximum value and returns the mean
// of the rest, rounded to the nearest integer with ties to even.
func TrimmedMean(readings []float64) (int, error) {
	if len(readings) < 3 {
		return 0, ErrTooFewReadings
	}
	sum := floats.Sum(readings) - floats.Min(readings) - floats.Max(readings)
	return int(math.RoundToEven(sum / float64(len(readings)-2))), nil
}
