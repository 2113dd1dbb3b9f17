// Package volume maps a distance estimate to the volume of liquid in the
// container with a calibrated straight line.
package volume

import (
	"fmt"
	"math"
)

// Coefficients fitted by eye to the bucket calibration table.
const (
	DefaultSlope     = -22.93 // ml per mm
	DefaultIntercept = 2522.0 // ml
)

// Mapper is an affine distance-to-volume transform.
type Mapper struct {
	Slope     float64
	Intercept float64
}

// DefaultMapper returns the mapping for the LolaT bucket.
func DefaultMapper() Mapper {
	return Mapper{Slope: DefaultSlope, Intercept: DefaultIntercept}
}

// Volume returns the volume in ml for a distance in mm, rounded to the
// nearest ml with ties to even. The result is not clamped: readings beyond the calibrated
// range can yield negative volumes.
func (m Mapper) Volume(distanceMM int) int {
	return int(math.RoundToEven(m.Slope*float64(distanceMM) + m.Intercept))
}

func (m Mapper) String() string {
	return fmt.Sprintf("volume = %g * reading + %g", m.Slope, m.Intercept)
}
