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

// simulatedEchoDelay is how long the simulated module takes to answer a
// trigger pulse.
const simulatedEchoDelay = 200 * time.Microsecond

// OpenBoard opens the named GPIO driver for a sensor wired as cfg. The fake
// driver answers every trigger pulse with an echo from SimulatedEcho, so
// tools run end to end without hardware.
func OpenBoard(driver string, cfg Config) (gpio.Board, error) {
	board, err := gpio.Open(driver, timeutil.RealClock{})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s board: %w", driver, err)
	}
	fake, ok := board.(*gpio.FakeBoard)
	if !ok {
		return board, nil
	}
	trig, err := gpio.ToBCM(cfg.Mode, cfg.Trigger)
	if err != nil {
		return nil, err
	}
	echo, err := gpio.ToBCM(cfg.Mode, cfg.Echo)
	if err != nil {
		return nil, err
	}
	fake.WireEcho(trig, echo, simulatedEchoDelay, SimulatedEcho())
	monitoring.Logf("hcsr04: using simulated sensor (trigger BCM %d, echo BCM %d)", trig, echo)
	return board, nil
}

// SimulatedEcho returns echo widths for a level that starts 1m below the
// sensor and rises 1mm per ping, with a few mm of jitter. It wraps after
// 900 pings, so every distance stays inside the default limits.
func SimulatedEcho() func() time.Duration {
	var mu sync.Mutex
	n := 0
	return func() time.Duration {
		mu.Lock()
		defer mu.Unlock()
		d := 1000 - float64(n%900) + float64(n%5-2)*3
		n++
		return units.EchoForDistance(d)
	}
}
