package gpio

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dougalf/lolat/internal/timeutil"
)

// DefaultReadTick is how far a FakeBoard advances a mock clock on each Input.
const DefaultReadTick = time.Microsecond

// advancer is satisfied by timeutil.MockClock.
type advancer interface {
	Advance(time.Duration)
}

type pulse struct {
	at    time.Time
	width time.Duration
}

type echoWiring struct {
	trigger, echo Pin
	delay         time.Duration
	width         func() time.Duration
}

// FakeBoard is an in-memory Board. It validates calls the way the
// RPi.GPIO library does and can simulate an ultrasonic module wired to it.
//
// When the board's clock is a mock clock, every Input advances virtual time
// by ReadTick so that busy-wait loops observe time passing.
type FakeBoard struct {
	clock timeutil.Clock
	// ReadTick is the virtual time consumed by one Input call.
	ReadTick time.Duration

	mu        sync.Mutex
	mode      Mode
	dirs      map[Pin]Direction // keyed by BCM channel
	levels    map[Pin]Level
	pulses    map[Pin][]pulse
	callbacks map[Pin][]callback
	echo      *echoWiring
	cleanups  int
}

// NewFakeBoard returns a FakeBoard that reads time from clock.
func NewFakeBoard(clock timeutil.Clock) *FakeBoard {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &FakeBoard{
		clock:     clock,
		ReadTick:  DefaultReadTick,
		dirs:      make(map[Pin]Direction),
		levels:    make(map[Pin]Level),
		pulses:    make(map[Pin][]pulse),
		callbacks: make(map[Pin][]callback),
	}
}

func (b *FakeBoard) String() string {
	return fmt.Sprintf("fake board (mode %s)", b.Mode())
}

func (b *FakeBoard) SetMode(m Mode) error {
	if m != ModeBoard && m != ModeBCM {
		return fmt.Errorf("gpio: mode should be BOARD or BCM, got %v", m)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mode = m
	return nil
}

func (b *FakeBoard) Mode() Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

func (b *FakeBoard) Setup(pin Pin, dir Direction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	bcm, err := ToBCM(b.mode, pin)
	if err != nil {
		return err
	}
	b.dirs[bcm] = dir
	b.levels[bcm] = Low
	delete(b.pulses, bcm)
	delete(b.callbacks, bcm)
	return nil
}

// lookup resolves pin and checks it is configured as want, or in either
// direction when either is set. Callers must hold b.mu.
func (b *FakeBoard) lookup(pin Pin, want Direction, either bool) (Pin, error) {
	bcm, err := ToBCM(b.mode, pin)
	if err != nil {
		return 0, err
	}
	dir, ok := b.dirs[bcm]
	if !ok {
		return 0, fmt.Errorf("gpio: pin %d has not been set up", pin)
	}
	if !either && dir != want {
		return 0, fmt.Errorf("%w: pin %d is not set to %v", ErrWrongDirection, pin, want)
	}
	return bcm, nil
}

func (b *FakeBoard) Output(pin Pin, l Level) error {
	now := b.clock.Now()

	b.mu.Lock()
	bcm, err := b.lookup(pin, Out, false)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	prev := b.levels[bcm]
	b.levels[bcm] = l
	var fire []func()
	if prev != l {
		fire = b.matching(bcm, l)
		if w := b.echo; w != nil && w.trigger == bcm && l == Low {
			if width := w.width(); width > 0 {
				b.pulses[w.echo] = append(b.pulses[w.echo], pulse{at: now.Add(w.delay), width: width})
			}
		}
	}
	b.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
	return nil
}

func (b *FakeBoard) Input(pin Pin) (Level, error) {
	if a, ok := b.clock.(advancer); ok && b.ReadTick > 0 {
		a.Advance(b.ReadTick)
	}
	now := b.clock.Now()

	b.mu.Lock()
	defer b.mu.Unlock()
	bcm, err := b.lookup(pin, In, false)
	if err != nil {
		return Low, err
	}
	if b.levels[bcm] == High {
		return High, nil
	}
	// drop pulses that have finished, report any still in progress
	live := b.pulses[bcm][:0]
	level := Low
	for _, p := range b.pulses[bcm] {
		if !now.Before(p.at.Add(p.width)) {
			continue
		}
		live = append(live, p)
		if !now.Before(p.at) {
			level = High
		}
	}
	b.pulses[bcm] = live
	return level, nil
}

// AddEdgeCallback registers fn on any configured pin. Unlike hardware
// boards, callbacks on output pins fire when Output changes their level.
func (b *FakeBoard) AddEdgeCallback(pin Pin, edge Edge, fn func()) error {
	if err := checkEdge(edge); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	bcm, err := b.lookup(pin, In, true)
	if err != nil {
		return err
	}
	b.callbacks[bcm] = append(b.callbacks[bcm], callback{edge: edge, fn: fn})
	return nil
}

// matching returns the callbacks on bcm for a transition to l.
// Callers must hold b.mu.
func (b *FakeBoard) matching(bcm Pin, l Level) []func() {
	edge := Falling
	if l == High {
		edge = Rising
	}
	var fns []func()
	for _, cb := range b.callbacks[bcm] {
		if cb.edge == edge {
			fns = append(fns, cb.fn)
		}
	}
	return fns
}

// SimulateInput sets the level of an input pin, firing callbacks if the
// level changed.
func (b *FakeBoard) SimulateInput(pin Pin, l Level) error {
	b.mu.Lock()
	bcm, err := b.lookup(pin, In, false)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	var fire []func()
	if b.levels[bcm] != l {
		fire = b.matching(bcm, l)
	}
	b.levels[bcm] = l
	b.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
	return nil
}

// SchedulePulse makes an input pin read high for width starting at at.
func (b *FakeBoard) SchedulePulse(pin Pin, at time.Time, width time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	bcm, err := b.lookup(pin, In, false)
	if err != nil {
		return err
	}
	b.pulses[bcm] = append(b.pulses[bcm], pulse{at: at, width: width})
	return nil
}

// WireEcho simulates an ultrasonic module between two BCM channels: each
// falling edge on trigger schedules a pulse on echo after delay, lasting
// width(). A width of zero means no echo is returned. The wiring survives
// Cleanup.
func (b *FakeBoard) WireEcho(trigger, echo Pin, delay time.Duration, width func() time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.echo = &echoWiring{trigger: trigger, echo: echo, delay: delay, width: width}
}

// Level reports the current level of a configured pin without consuming
// virtual time.
func (b *FakeBoard) Level(pin Pin) (Level, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bcm, err := b.lookup(pin, In, true)
	if err != nil {
		return Low, err
	}
	return b.levels[bcm], nil
}

// ConfiguredPins returns the BCM channels currently set up, in order.
func (b *FakeBoard) ConfiguredPins() []Pin {
	b.mu.Lock()
	defer b.mu.Unlock()
	pins := make([]Pin, 0, len(b.dirs))
	for p := range b.dirs {
		pins = append(pins, p)
	}
	sort.Slice(pins, func(i, j int) bool { return pins[i] < pins[j] })
	return pins
}

// Callbacks returns the number of registered edge callbacks.
func (b *FakeBoard) Callbacks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, cbs := range b.callbacks {
		n += len(cbs)
	}
	return n
}

// Cleanups returns how many times Cleanup has been called.
func (b *FakeBoard) Cleanups() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cleanups
}

func (b *FakeBoard) Cleanup() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mode = ModeUnknown
	b.dirs = make(map[Pin]Direction)
	b.levels = make(map[Pin]Level)
	b.pulses = make(map[Pin][]pulse)
	b.callbacks = make(map[Pin][]callback)
	b.cleanups++
	return nil
}
