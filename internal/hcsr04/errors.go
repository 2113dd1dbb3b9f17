package hcsr04

import (
	"errors"
	"fmt"
	"time"
)

// Reason classifies an out-of-range reading.
type Reason int

const (
	// ReasonNothingInRange is reported for readings below the minimum
	// distance: the echo was too short to be a real object.
	ReasonNothingInRange Reason = iota + 1
	// ReasonTooClose is reported for readings above the maximum distance.
	// A very long echo is how noise close to the transducer shows up, so
	// the name describes the physical cause rather than the number.
	ReasonTooClose
)

func (r Reason) String() string {
	switch r {
	case ReasonNothingInRange:
		return "nothing in range"
	case ReasonTooClose:
		return "too close"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// OutOfRangeError reports a single reading outside the sensor's operating
// envelope.
type OutOfRangeError struct {
	Reason   Reason
	Distance float64 // mm
}

func (e *OutOfRangeError) Error() string {
	switch e.Reason {
	case ReasonNothingInRange:
		return "Nothing in range of sensor?"
	case ReasonTooClose:
		return "Something too close to sensor?"
	default:
		return fmt.Sprintf("distance %.1fmm out of range", e.Distance)
	}
}

// Echo wait phases reported by TimeoutError.
const (
	PhaseRise = "rise"
	PhaseFall = "fall"
)

// TimeoutError reports that the echo line did not change level within the
// echo timeout. A rise timeout usually means no module is connected.
type TimeoutError struct {
	Phase  string
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no echo %s after %v: check sensor wiring", e.Phase, e.Waited)
}

var (
	// ErrNotOpen is returned by ranging operations outside a session.
	ErrNotOpen = errors.New("hcsr04: sensor session is not open")
	// ErrAlreadyOpen is returned by Open on an open sensor.
	ErrAlreadyOpen = errors.New("hcsr04: sensor session is already open")
	// ErrPinsBusy is returned by Open while another sensor has a session on
	// the same board, whichever pins it uses. Only one session per board is
	// allowed because Close resets every pin on the board.
	ErrPinsBusy = errors.New("hcsr04: board is in use by another sensor session")
	// ErrTooFewReadings is returned when a batch cannot be trimmed.
	ErrTooFewReadings = errors.New("hcsr04: at least 3 readings are needed for a trimmed mean")
)

// IsReadingError reports whether err is a bad-data failure from a ranging
// cycle, as opposed to a misuse or hardware access error. Callers degrade
// on reading errors instead of stopping.
func IsReadingError(err error) bool {
	var oor *OutOfRangeError
	var te *TimeoutError
	return errors.As(err, &oor) || errors.As(err, &te)
}
