package gpio

import (
	"fmt"
	"io"
	"strings"

	"github.com/dougalf/lolat/internal/timeutil"
)

// Driver names accepted by Open.
const (
	DriverPeriph = "periph"
	DriverRPIO   = "rpio"
	DriverFake   = "fake"
)

// Open returns a Board for the named driver. The clock is only used by the
// fake driver.
func Open(driver string, clock timeutil.Clock) (Board, error) {
	switch strings.ToLower(driver) {
	case DriverPeriph, "":
		return NewPeriphBoard()
	case DriverRPIO:
		return NewRPIOBoard()
	case DriverFake:
		return NewFakeBoard(clock), nil
	default:
		return nil, fmt.Errorf("unknown board driver %q (want %s, %s or %s)", driver, DriverPeriph, DriverRPIO, DriverFake)
	}
}

// Close releases driver resources held by b, if any.
func Close(b Board) error {
	if c, ok := b.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
