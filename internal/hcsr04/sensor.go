// Package hcsr04 drives an HC-SR04 ultrasonic ranging module through a
// gpio.Board and turns its echo timing into robust distance estimates.
//
// A ranging cycle waits for the previous echo to decay, pulses the trigger
// line, then busy-waits on the echo line to time the returned pulse. The
// pulse width is converted to a distance with the speed of sound and
// checked against the module's operating envelope. GetDistance takes a
// batch of such readings and returns their trimmed mean.
//
// A Sensor must be opened before use and closed afterwards; WithSession
// does both and guarantees the board is released on every exit path.
package hcsr04

import (
	"fmt"
	"sync"
	"time"

	"github.com/dougalf/lolat/internal/gpio"
	"github.com/dougalf/lolat/internal/monitoring"
	"github.com/dougalf/lolat/internal/timeutil"
	"github.com/dougalf/lolat/internal/units"
)

// boards records which boards have an open session. Cleanup resets every
// pin on a board, so a second session on the same board would be torn down
// by the first one closing.
var boards = struct {
	sync.Mutex
	held map[gpio.Board]*Sensor
}{held: make(map[gpio.Board]*Sensor)}

// Sensor is an HC-SR04 module wired to a trigger and an echo pin.
type Sensor struct {
	board gpio.Board
	clock timeutil.Clock
	cfg   Config

	mu   sync.Mutex
	open bool
}

// New returns a closed Sensor. A nil clock means the wall clock.
func New(board gpio.Board, clock timeutil.Clock, cfg Config) (*Sensor, error) {
	if board == nil {
		return nil, fmt.Errorf("hcsr04: nil board")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("hcsr04: %w", err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Sensor{board: board, clock: clock, cfg: cfg}, nil
}

// Config returns the sensor's configuration.
func (s *Sensor) Config() Config { return s.cfg }

// IsOpen reports whether a session is in progress.
func (s *Sensor) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Open claims the board and configures the pins: trigger as an output held
// low, echo as an input.
func (s *Sensor) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		return ErrAlreadyOpen
	}

	boards.Lock()
	if holder, ok := boards.held[s.board]; ok && holder != s {
		boards.Unlock()
		return ErrPinsBusy
	}
	boards.held[s.board] = s
	boards.Unlock()

	if err := s.configure(); err != nil {
		_ = s.board.Cleanup()
		s.release()
		return fmt.Errorf("hcsr04: open session: %w", err)
	}
	s.open = true
	monitoring.Logf("hcsr04: session open (trigger %d, echo %d, %v numbering)", s.cfg.Trigger, s.cfg.Echo, s.cfg.Mode)
	return nil
}

func (s *Sensor) configure() error {
	if err := s.board.SetMode(s.cfg.Mode); err != nil {
		return err
	}
	if err := s.board.Setup(s.cfg.Trigger, gpio.Out); err != nil {
		return err
	}
	if err := s.board.Output(s.cfg.Trigger, gpio.Low); err != nil {
		return err
	}
	return s.board.Setup(s.cfg.Echo, gpio.In)
}

func (s *Sensor) release() {
	boards.Lock()
	if boards.held[s.board] == s {
		delete(boards.held, s.board)
	}
	boards.Unlock()
}

// Close releases every pin on the board and clears its callbacks. Closing a
// closed sensor does nothing.
func (s *Sensor) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	s.open = false
	defer s.release()
	if err := s.board.Cleanup(); err != nil {
		return fmt.Errorf("hcsr04: release pins: %w", err)
	}
	return nil
}

// WithSession opens the sensor, runs fn and closes the sensor again. The
// board is released even if fn panics. A Close error is returned only when
// fn succeeded.
func (s *Sensor) WithSession(fn func(*Sensor) error) (err error) {
	if err := s.Open(); err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

// MeasureRoundTrip runs one ranging cycle and returns the echo pulse width,
// which is the round-trip time of the sound burst.
func (s *Sensor) MeasureRoundTrip() (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, ErrNotOpen
	}
	return s.measure()
}

func (s *Sensor) measure() (time.Duration, error) {
	s.clock.Sleep(s.cfg.SettleInterval)

	if err := s.board.Output(s.cfg.Trigger, gpio.High); err != nil {
		return 0, fmt.Errorf("hcsr04: raise trigger: %w", err)
	}
	s.clock.Sleep(s.cfg.TriggerPulse)
	if err := s.board.Output(s.cfg.Trigger, gpio.Low); err != nil {
		return 0, fmt.Errorf("hcsr04: lower trigger: %w", err)
	}

	// Timing starts only after the trigger is low again, so the trigger's
	// own rising edge cannot be counted as echo.
	start, err := s.waitForEcho(gpio.High, PhaseRise)
	if err != nil {
		return 0, err
	}
	end, err := s.waitForEcho(gpio.Low, PhaseFall)
	if err != nil {
		return 0, err
	}
	return end.Sub(start), nil
}

// waitForEcho busy-waits until the echo pin reads want and returns the time
// it was observed.
func (s *Sensor) waitForEcho(want gpio.Level, phase string) (time.Time, error) {
	began := s.clock.Now()
	for {
		l, err := s.board.Input(s.cfg.Echo)
		if err != nil {
			return time.Time{}, fmt.Errorf("hcsr04: read echo: %w", err)
		}
		now := s.clock.Now()
		if l == want {
			return now, nil
		}
		if waited := now.Sub(began); waited >= s.cfg.EchoTimeout {
			return time.Time{}, &TimeoutError{Phase: phase, Waited: waited}
		}
	}
}

// EstimateDistance converts an echo pulse width into a distance in mm,
// rejecting values outside lim. The result is not rounded.
func EstimateDistance(pulse time.Duration, lim Limits) (float64, error) {
	return lim.Check(units.DistanceForEcho(pulse))
}

// EstimateDistance applies the sensor's configured limits.
func (s *Sensor) EstimateDistance(pulse time.Duration) (float64, error) {
	return EstimateDistance(pulse, s.cfg.Limits)
}

// ReadDistance runs one ranging cycle and returns the validated distance.
func (s *Sensor) ReadDistance() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, ErrNotOpen
	}
	return s.readDistance()
}

func (s *Sensor) readDistance() (float64, error) {
	pulse, err := s.measure()
	if err != nil {
		return 0, err
	}
	return EstimateDistance(pulse, s.cfg.Limits)
}

// GetDistance takes a batch of readings and returns their trimmed mean in
// whole millimetres. The first failing reading ends the batch and its
// error is returned as is; readings are never retried or substituted.
func (s *Sensor) GetDistance() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0, ErrNotOpen
	}

	readings := make([]float64, 0, s.cfg.Readings)
	for i := 0; i < s.cfg.Readings; i++ {
		d, err := s.readDistance()
		if err != nil {
			return 0, err
		}
		readings = append(readings, d)
	}
	return TrimmedMean(readings)
}
