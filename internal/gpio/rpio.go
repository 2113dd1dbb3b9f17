package gpio

import (
	"fmt"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
)

// rpioEdgePoll is how often a watcher checks the event-detect register.
// go-rpio latches edges in hardware but offers no blocking wait.
const rpioEdgePoll = 20 * time.Microsecond

// NewRPIOBoard memory-maps the BCM283x GPIO registers through go-rpio.
// Close unmaps them again.
func NewRPIOBoard() (*HostBoard, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio memory: %w", err)
	}
	b := newHostBoard(rpioDriver{})
	b.closer = rpio.Close
	return b, nil
}

type rpioDriver struct{}

func (rpioDriver) name() string { return "rpio" }

func (rpioDriver) configure(bcm Pin, dir Direction) error {
	p := rpio.Pin(bcm)
	if dir == Out {
		p.Output()
		p.Low()
		return nil
	}
	p.Input()
	p.PullDown()
	return nil
}

func (rpioDriver) write(bcm Pin, l Level) error {
	p := rpio.Pin(bcm)
	if l == High {
		p.High()
	} else {
		p.Low()
	}
	return nil
}

func (rpioDriver) read(bcm Pin) (Level, error) {
	return rpio.Pin(bcm).Read() == rpio.High, nil
}

func (rpioDriver) armEdges(bcm Pin) error {
	rpio.Pin(bcm).Detect(rpio.AnyEdge)
	return nil
}

func (rpioDriver) waitForEdge(bcm Pin, timeout time.Duration) bool {
	p := rpio.Pin(bcm)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if p.EdgeDetected() {
			return true
		}
		time.Sleep(rpioEdgePoll)
	}
	return false
}

func (rpioDriver) release(bcm Pin) error {
	p := rpio.Pin(bcm)
	p.Detect(rpio.NoEdge)
	p.Input()
	p.PullOff()
	return nil
}
