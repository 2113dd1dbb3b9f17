// Package units provides the acoustic constants and distance unit
// conversions shared by the ranging driver and the reporting tools.
package units

import (
	"strings"
	"time"
)

// SpeedOfSoundMMPerSecond is the speed of sound in dry air at about 20°C,
// expressed in millimetres per second.
const SpeedOfSoundMMPerSecond = 343000.0

// Unit constants
const (
	MM   = "mm"
	CM   = "cm"
	Inch = "in"
)

// ValidUnits contains all valid distance unit values
var ValidUnits = []string{MM, CM, Inch}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertDistance converts a distance in millimetres to the target units.
// Unknown units leave the value in millimetres.
func ConvertDistance(mm float64, targetUnits string) float64 {
	switch targetUnits {
	case CM:
		return mm / 10
	case Inch:
		return mm / 25.4
	default:
		return mm
	}
}

// DistanceForEcho converts an echo pulse width into the one-way distance to
// the reflecting surface in millimetres. The pulse covers the round trip, so
// the result is halved.
func DistanceForEcho(echo time.Duration) float64 {
	return SpeedOfSoundMMPerSecond * echo.Seconds() / 2
}

// EchoForDistance is the inverse of DistanceForEcho, rounded to the
// nearest microsecond.
func EchoForDistance(mm float64) time.Duration {
	seconds := 2 * mm / SpeedOfSoundMMPerSecond
	return time.Duration(seconds*1e6+0.5) * time.Microsecond
}
