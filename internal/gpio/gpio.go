// Package gpio provides an abstraction over a board's digital I/O pins with
// the small surface the ultrasonic ranging driver needs: a pin numbering
// mode, pin direction, output level, input level, edge callbacks and a
// release-everything cleanup.
//
// HostBoard drives real hardware through either the periph.io host drivers
// or go-rpio memory-mapped registers. FakeBoard is an in-process simulation
// used by tests and dev mode.
package gpio

import (
	"errors"
	"fmt"
	"strings"
)

// Pin identifies a single digital I/O line. Its meaning depends on the
// board Mode: a physical header position in ModeBoard, a Broadcom channel
// number in ModeBCM.
type Pin int

// Level is the binary state of a pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// Direction is a pin's configured direction.
type Direction int

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == Out {
		return "OUT"
	}
	return "IN"
}

// Edge is a level transition on a pin.
type Edge int

const (
	Rising Edge = iota + 1
	Falling
)

func (e Edge) String() string {
	switch e {
	case Rising:
		return "RISING"
	case Falling:
		return "FALLING"
	default:
		return fmt.Sprintf("Edge(%d)", int(e))
	}
}

// Mode is the pin numbering scheme in effect on a board.
type Mode int

const (
	ModeUnknown Mode = iota
	ModeBoard
	ModeBCM
)

func (m Mode) String() string {
	switch m {
	case ModeBoard:
		return "BOARD"
	case ModeBCM:
		return "BCM"
	default:
		return "UNKNOWN"
	}
}

// ParseMode parses a numbering scheme name (BOARD or BCM, any case).
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BOARD":
		return ModeBoard, nil
	case "BCM":
		return ModeBCM, nil
	default:
		return ModeUnknown, fmt.Errorf("unsupported pin mode %q: expected BOARD or BCM", s)
	}
}

var (
	// ErrModeNotSet is returned by pin operations before SetMode.
	ErrModeNotSet = errors.New("gpio: pin numbering mode has not been set")
	// ErrInvalidPin is returned for a pin number that does not exist in
	// the current mode.
	ErrInvalidPin = errors.New("gpio: invalid pin for mode")
	// ErrWrongDirection is returned when reading an output pin or writing
	// an input pin.
	ErrWrongDirection = errors.New("gpio: pin is configured in the wrong direction")
)

// Board is a digital I/O adapter. Implementations are process-wide shared
// state and are not safe for use by more than one sensor session per pin.
type Board interface {
	// SetMode selects the pin numbering scheme. It must be called before
	// any other pin operation.
	SetMode(Mode) error
	// Mode returns the current numbering scheme, ModeUnknown after Cleanup.
	Mode() Mode
	// Setup configures the direction of a pin. Output pins start low.
	// Any callbacks registered on the pin are cleared.
	Setup(Pin, Direction) error
	// Output drives an output pin to the given level.
	Output(Pin, Level) error
	// Input samples the level of an input pin.
	Input(Pin) (Level, error)
	// AddEdgeCallback registers fn to be called on each matching
	// transition of the pin.
	AddEdgeCallback(Pin, Edge, func()) error
	// Cleanup releases every pin, clears all callbacks and resets the
	// numbering mode to ModeUnknown.
	Cleanup() error
}

// boardToBCM maps Raspberry Pi 40-pin header positions to Broadcom GPIO
// channel numbers. Power and ground positions are absent.
var boardToBCM = map[Pin]Pin{
	3: 2, 5: 3, 7: 4, 8: 14, 10: 15, 11: 17, 12: 18, 13: 27,
	15: 22, 16: 23, 18: 24, 19: 10, 21: 9, 22: 25, 23: 11, 24: 8,
	26: 7, 27: 0, 28: 1, 29: 5, 31: 6, 32: 12, 33: 13, 35: 19,
	36: 16, 37: 26, 38: 20, 40: 21,
}

var validBCM = func() map[Pin]bool {
	m := make(map[Pin]bool, len(boardToBCM))
	for _, bcm := range boardToBCM {
		m[bcm] = true
	}
	return m
}()

// ValidPin reports whether pin exists under the given numbering mode.
func ValidPin(mode Mode, pin Pin) bool {
	switch mode {
	case ModeBoard:
		_, ok := boardToBCM[pin]
		return ok
	case ModeBCM:
		return validBCM[pin]
	default:
		return false
	}
}

// ToBCM translates a pin in the given mode to its Broadcom channel number.
func ToBCM(mode Mode, pin Pin) (Pin, error) {
	switch mode {
	case ModeUnknown:
		return 0, ErrModeNotSet
	case ModeBoard:
		bcm, ok := boardToBCM[pin]
		if !ok {
			return 0, fmt.Errorf("%w: pin %d in %s mode", ErrInvalidPin, pin, mode)
		}
		return bcm, nil
	case ModeBCM:
		if !validBCM[pin] {
			return 0, fmt.Errorf("%w: pin %d in %s mode", ErrInvalidPin, pin, mode)
		}
		return pin, nil
	default:
		return 0, fmt.Errorf("unsupported mode %d", mode)
	}
}

func checkEdge(e Edge) error {
	if e != Rising && e != Falling {
		return fmt.Errorf("gpio: edge must be RISING or FALLING, got %v", e)
	}
	return nil
}
