package gpio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// edgePoll bounds how long a watcher goroutine blocks in a single wait, so
// that Cleanup can stop it promptly.
const edgePoll = 50 * time.Millisecond

// pinDriver is the per-channel hardware access a HostBoard delegates to.
// Pins are always Broadcom channel numbers at this level.
type pinDriver interface {
	name() string
	configure(bcm Pin, dir Direction) error
	write(bcm Pin, l Level) error
	read(bcm Pin) (Level, error)
	// armEdges enables detection of both edges on an input channel.
	armEdges(bcm Pin) error
	// waitForEdge blocks until an edge is seen or timeout elapses.
	waitForEdge(bcm Pin, timeout time.Duration) bool
	// release returns a channel to a floating input.
	release(bcm Pin) error
}

type callback struct {
	edge Edge
	fn   func()
}

// HostBoard is a Board backed by real GPIO hardware through a pinDriver.
// It enforces the same rules as the RPi.GPIO library: a mode must be set
// first, pins must be set up before use, and inputs cannot be written.
type HostBoard struct {
	drv    pinDriver
	closer func() error

	mu        sync.Mutex
	mode      Mode
	dirs      map[Pin]Direction
	callbacks map[Pin][]callback
	watchers  map[Pin]*edgeWatcher
}

func newHostBoard(drv pinDriver) *HostBoard {
	return &HostBoard{
		drv:       drv,
		dirs:      make(map[Pin]Direction),
		callbacks: make(map[Pin][]callback),
		watchers:  make(map[Pin]*edgeWatcher),
	}
}

func (b *HostBoard) String() string {
	return fmt.Sprintf("%s board (mode %s)", b.drv.name(), b.Mode())
}

func (b *HostBoard) SetMode(m Mode) error {
	if m != ModeBoard && m != ModeBCM {
		return fmt.Errorf("gpio: mode should be BOARD or BCM, got %v", m)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mode = m
	return nil
}

func (b *HostBoard) Mode() Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

func (b *HostBoard) Setup(pin Pin, dir Direction) error {
	b.mu.Lock()
	bcm, err := ToBCM(b.mode, pin)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	w := b.watchers[pin]
	delete(b.watchers, pin)
	delete(b.callbacks, pin)
	b.mu.Unlock()

	// stop outside the lock: a callback may be calling back into the board
	if w != nil {
		w.stop()
	}

	if err := b.drv.configure(bcm, dir); err != nil {
		return fmt.Errorf("gpio: setup pin %d as %v: %w", pin, dir, err)
	}

	b.mu.Lock()
	b.dirs[pin] = dir
	b.mu.Unlock()
	return nil
}

func (b *HostBoard) resolve(pin Pin, want Direction) (Pin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bcm, err := ToBCM(b.mode, pin)
	if err != nil {
		return 0, err
	}
	dir, ok := b.dirs[pin]
	if !ok || dir != want {
		return 0, fmt.Errorf("%w: pin %d is not set to %v", ErrWrongDirection, pin, want)
	}
	return bcm, nil
}

func (b *HostBoard) Output(pin Pin, l Level) error {
	bcm, err := b.resolve(pin, Out)
	if err != nil {
		return err
	}
	return b.drv.write(bcm, l)
}

func (b *HostBoard) Input(pin Pin) (Level, error) {
	bcm, err := b.resolve(pin, In)
	if err != nil {
		return Low, err
	}
	return b.drv.read(bcm)
}

// AddEdgeCallback registers fn for transitions on an input pin. Hardware
// drivers can only detect edges on inputs.
func (b *HostBoard) AddEdgeCallback(pin Pin, edge Edge, fn func()) error {
	if err := checkEdge(edge); err != nil {
		return err
	}
	bcm, err := b.resolve(pin, In)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbacks[pin] = append(b.callbacks[pin], callback{edge: edge, fn: fn})
	if b.watchers[pin] != nil {
		return nil
	}
	if err := b.drv.armEdges(bcm); err != nil {
		return fmt.Errorf("gpio: enable edge detection on pin %d: %w", pin, err)
	}
	b.watchers[pin] = startWatcher(func(w *edgeWatcher) {
		if !b.drv.waitForEdge(bcm, edgePoll) {
			return
		}
		l, err := b.drv.read(bcm)
		if err != nil {
			return
		}
		b.dispatch(w, pin, l)
	})
	return nil
}

func (b *HostBoard) dispatch(w *edgeWatcher, pin Pin, l Level) {
	edge := Falling
	if l == High {
		edge = Rising
	}
	b.mu.Lock()
	cbs := append([]callback(nil), b.callbacks[pin]...)
	b.mu.Unlock()

	w.inCallback.Store(true)
	defer w.inCallback.Store(false)
	for _, cb := range cbs {
		if w.stopped() {
			return
		}
		if cb.edge == edge {
			cb.fn()
		}
	}
}

// Cleanup stops all edge watchers, returns every configured pin to a
// floating input and resets the numbering mode.
func (b *HostBoard) Cleanup() error {
	b.mu.Lock()
	watchers := b.watchers
	pins := make(map[Pin]Pin, len(b.dirs))
	for pin := range b.dirs {
		if bcm, err := ToBCM(b.mode, pin); err == nil {
			pins[pin] = bcm
		}
	}
	b.watchers = make(map[Pin]*edgeWatcher)
	b.callbacks = make(map[Pin][]callback)
	b.dirs = make(map[Pin]Direction)
	b.mode = ModeUnknown
	b.mu.Unlock()

	for _, w := range watchers {
		w.stop()
	}

	var firstErr error
	for pin, bcm := range pins {
		if err := b.drv.release(bcm); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("gpio: release pin %d: %w", pin, err)
		}
	}
	return firstErr
}

// Close releases driver resources. The board is unusable afterwards.
func (b *HostBoard) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

type edgeWatcher struct {
	done       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	inCallback atomic.Bool
}

// startWatcher runs poll repeatedly on its own goroutine until stopped.
func startWatcher(poll func(w *edgeWatcher)) *edgeWatcher {
	w := &edgeWatcher{done: make(chan struct{})}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for !w.stopped() {
			poll(w)
		}
	}()
	return w
}

func (w *edgeWatcher) stopped() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// stop ends the watcher. No callback starts after stop returns. While a
// callback is running, stop does not wait for it: the callback may itself
// be the caller, through Setup or Cleanup, and would wait on its own
// goroutine forever.
func (w *edgeWatcher) stop() {
	w.stopOnce.Do(func() { close(w.done) })
	if w.inCallback.Load() {
		return
	}
	w.wg.Wait()
}
