package hcsr04

import (
	"fmt"
	"time"

	"github.com/dougalf/lolat/internal/gpio"
)

// Operating envelope in millimetres. The datasheet quotes 20mm to 4000mm;
// these bounds allow about 10% either side.
const (
	DistMin = 27.0
	DistMax = 4400.0
)

// Defaults for the ranging cycle.
const (
	DefaultSettleInterval = 60 * time.Millisecond
	DefaultTriggerPulse   = 10 * time.Microsecond
	DefaultEchoTimeout    = 100 * time.Millisecond
	DefaultReadings       = 5
)

// Limits is the accepted distance range in millimetres, inclusive.
type Limits struct {
	Min, Max float64
}

// Check returns d unchanged if it lies within the limits.
func (l Limits) Check(d float64) (float64, error) {
	if d < l.Min {
		return 0, &OutOfRangeError{Reason: ReasonNothingInRange, Distance: d}
	}
	if d > l.Max {
		return 0, &OutOfRangeError{Reason: ReasonTooClose, Distance: d}
	}
	return d, nil
}

// Config describes how a sensor is wired and how it ranges.
type Config struct {
	Mode    gpio.Mode
	Trigger gpio.Pin
	Echo    gpio.Pin

	// SettleInterval is waited before each trigger so that a late echo
	// from the previous cycle cannot be read as this one.
	SettleInterval time.Duration
	TriggerPulse   time.Duration
	// EchoTimeout bounds each busy-wait on the echo line.
	EchoTimeout time.Duration
	// Readings is the batch size of GetDistance.
	Readings int
	Limits   Limits
}

// DefaultConfig returns the wiring used by the LolaT board: trigger on
// header pin 7, echo on header pin 11.
func DefaultConfig() Config {
	return Config{
		Mode:           gpio.ModeBoard,
		Trigger:        7,
		Echo:           11,
		SettleInterval: DefaultSettleInterval,
		TriggerPulse:   DefaultTriggerPulse,
		EchoTimeout:    DefaultEchoTimeout,
		Readings:       DefaultReadings,
		Limits:         Limits{Min: DistMin, Max: DistMax},
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.Mode != gpio.ModeBoard && c.Mode != gpio.ModeBCM {
		return fmt.Errorf("pin mode must be BOARD or BCM, got %v", c.Mode)
	}
	if !gpio.ValidPin(c.Mode, c.Trigger) {
		return fmt.Errorf("trigger pin %d is not a GPIO pin in %v mode", c.Trigger, c.Mode)
	}
	if !gpio.ValidPin(c.Mode, c.Echo) {
		return fmt.Errorf("echo pin %d is not a GPIO pin in %v mode", c.Echo, c.Mode)
	}
	if c.Trigger == c.Echo {
		return fmt.Errorf("trigger and echo must be different pins, both are %d", c.Trigger)
	}
	if c.SettleInterval < 0 {
		return fmt.Errorf("settle interval must be non-negative, got %v", c.SettleInterval)
	}
	if c.TriggerPulse <= 0 {
		return fmt.Errorf("trigger pulse must be positive, got %v", c.TriggerPulse)
	}
	if c.EchoTimeout <= 0 {
		return fmt.Errorf("echo timeout must be positive, got %v", c.EchoTimeout)
	}
	if c.Readings < 3 {
		return fmt.Errorf("readings per estimate must be at least 3, got %d", c.Readings)
	}
	if c.Limits.Min < 0 || c.Limits.Max <= c.Limits.Min {
		return fmt.Errorf("distance limits must satisfy 0 <= min < max, got [%g, %g]", c.Limits.Min, c.Limits.Max)
	}
	return nil
}
