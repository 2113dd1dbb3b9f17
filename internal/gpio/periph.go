package gpio

import (
	"fmt"
	"sync"
	"time"

	pgpio "periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// NewPeriphBoard initialises the periph.io host drivers and returns a board
// that resolves channels through the gpioreg registry.
func NewPeriphBoard() (*HostBoard, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialise periph host: %w", err)
	}
	return newPeriphBoard(gpioreg.ByName), nil
}

func newPeriphBoard(byName func(string) pgpio.PinIO) *HostBoard {
	return newHostBoard(&periphDriver{
		byName: byName,
		pins:   make(map[Pin]pgpio.PinIO),
	})
}

type periphDriver struct {
	byName func(string) pgpio.PinIO

	mu   sync.Mutex
	pins map[Pin]pgpio.PinIO
}

func (d *periphDriver) name() string { return "periph" }

// pin looks up a Broadcom channel by its registry name, e.g. "GPIO17".
func (d *periphDriver) pin(bcm Pin) (pgpio.PinIO, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.pins[bcm]; ok {
		return p, nil
	}
	name := fmt.Sprintf("GPIO%d", bcm)
	p := d.byName(name)
	if p == nil {
		return nil, fmt.Errorf("no GPIO pin named %s", name)
	}
	d.pins[bcm] = p
	return p, nil
}

func (d *periphDriver) configure(bcm Pin, dir Direction) error {
	p, err := d.pin(bcm)
	if err != nil {
		return err
	}
	if dir == Out {
		return p.Out(pgpio.Low)
	}
	return p.In(pgpio.PullDown, pgpio.NoEdge)
}

func (d *periphDriver) write(bcm Pin, l Level) error {
	p, err := d.pin(bcm)
	if err != nil {
		return err
	}
	return p.Out(pgpio.Level(l))
}

func (d *periphDriver) read(bcm Pin) (Level, error) {
	p, err := d.pin(bcm)
	if err != nil {
		return Low, err
	}
	return Level(p.Read()), nil
}

func (d *periphDriver) armEdges(bcm Pin) error {
	p, err := d.pin(bcm)
	if err != nil {
		return err
	}
	return p.In(pgpio.PullDown, pgpio.BothEdges)
}

func (d *periphDriver) waitForEdge(bcm Pin, timeout time.Duration) bool {
	p, err := d.pin(bcm)
	if err != nil {
		time.Sleep(timeout)
		return false
	}
	return p.WaitForEdge(timeout)
}

func (d *periphDriver) release(bcm Pin) error {
	p, err := d.pin(bcm)
	if err != nil {
		return err
	}
	return p.In(pgpio.Float, pgpio.NoEdge)
}
