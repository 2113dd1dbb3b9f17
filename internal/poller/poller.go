// Package poller runs the LolaT measurement loop: estimate the distance to
// the liquid, map it to a volume and publish both.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/dougalf/lolat/internal/metrics"
	"github.com/dougalf/lolat/internal/monitoring"
	"github.com/dougalf/lolat/internal/timeutil"
	"github.com/dougalf/lolat/internal/volume"
)

// DefaultInterval is the pause between polling cycles.
const DefaultInterval = 15 * time.Minute

// DistanceReader is the part of an open hcsr04.Sensor the poller uses.
type DistanceReader interface {
	GetDistance() (int, error)
}

// Result is the outcome of one polling cycle. A failed estimate is
// published as Reading 0 and Volume 0, and Err holds the cause.
type Result struct {
	Reading int       `json:"reading"`
	Volume  int       `json:"volume"`
	At      time.Time `json:"at"`
	Err     error     `json:"-"`
}

// OK reports whether the cycle produced a real estimate.
func (r Result) OK() bool { return r.Err == nil }

// Poller periodically reads the sensor and publishes the result.
type Poller struct {
	Sensor   DistanceReader
	Mapper   volume.Mapper
	Sink     metrics.Sink
	Interval time.Duration
	Clock    timeutil.Clock

	mu     sync.Mutex
	latest Result
	cycles int
}

// New returns a Poller with the default interval and the wall clock.
func New(sensor DistanceReader, mapper volume.Mapper, sink metrics.Sink) *Poller {
	return &Poller{
		Sensor:   sensor,
		Mapper:   mapper,
		Sink:     sink,
		Interval: DefaultInterval,
		Clock:    timeutil.RealClock{},
	}
}

// RunOnce performs one cycle. Sensor and sink failures are logged; neither
// stops the caller.
func (p *Poller) RunOnce(ctx context.Context) Result {
	res := Result{At: p.Clock.Now()}
	reading, err := p.Sensor.GetDistance()
	if err != nil {
		monitoring.Logf("poller: %v", err)
		res.Err = err
	} else {
		res.Reading = reading
		res.Volume = p.Mapper.Volume(reading)
	}

	monitoring.Logf("Sending to db: reading : %d, volume: %d", res.Reading, res.Volume)
	if p.Sink != nil {
		fields := metrics.Fields{
			metrics.FieldReading: int64(res.Reading),
			metrics.FieldVolume:  int64(res.Volume),
		}
		if err := p.Sink.Publish(ctx, metrics.Measurement, fields); err != nil {
			monitoring.Logf("poller: publish failed: %v", err)
		}
	}

	p.mu.Lock()
	p.latest = res
	p.cycles++
	p.mu.Unlock()
	return res
}

// Run polls immediately and then once per Interval until ctx is done. A
// cycle already in progress is allowed to finish.
func (p *Poller) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	p.RunOnce(ctx)

	ticker := p.Clock.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			p.RunOnce(ctx)
		case <-ctx.Done():
			monitoring.Logf("poller: stopping after %d cycles", p.Cycles())
			return nil
		}
	}
}

// Latest returns the most recent cycle result, if any cycle has run.
func (p *Poller) Latest() (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.cycles > 0
}

// Cycles returns the number of completed cycles.
func (p *Poller) Cycles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cycles
}
