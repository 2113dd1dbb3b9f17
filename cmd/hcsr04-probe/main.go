// Command hcsr04-probe takes a few raw readings from an HC-SR04 and prints
// them with their average. Readings are not range checked, so it can be
// used to find the module's real limits on the bench.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"time"

	"github.com/dougalf/lolat/internal/gpio"
	"github.com/dougalf/lolat/internal/hcsr04"
	"github.com/dougalf/lolat/internal/timeutil"
	"github.com/dougalf/lolat/internal/units"
)

var (
	readings = flag.Int("n", 3, "Number of readings to take")
	settle   = flag.Duration("settle", 2*time.Second, "Time to let the sensor settle before the first reading")
	driver   = flag.String("driver", gpio.DriverPeriph, "GPIO driver: periph, rpio or fake")
	mode     = flag.String("mode", "BOARD", "Pin numbering: BOARD or BCM")
	trigger  = flag.Int("trigger", 7, "Trigger pin")
	echo     = flag.Int("echo", 11, "Echo pin")
	unit     = flag.String("units", units.MM, "Units for the average: "+units.GetValidUnitsString())
)

type roundTripper interface {
	MeasureRoundTrip() (time.Duration, error)
}

func main() {
	flag.Parse()
	if !units.IsValid(*unit) {
		log.Fatalf("invalid -units %q, want one of %s", *unit, units.GetValidUnitsString())
	}
	if *readings < 1 {
		log.Fatal("-n must be at least 1")
	}

	m, err := gpio.ParseMode(*mode)
	if err != nil {
		log.Fatal(err)
	}
	cfg := hcsr04.DefaultConfig()
	cfg.Mode, cfg.Trigger, cfg.Echo = m, gpio.Pin(*trigger), gpio.Pin(*echo)

	board, err := gpio.Open(*driver, timeutil.RealClock{})
	if err != nil {
		log.Fatal(err)
	}
	defer gpio.Close(board)

	sensor, err := hcsr04.New(board, timeutil.RealClock{}, cfg)
	if err != nil {
		log.Fatal(err)
	}
	err = sensor.WithSession(func(s *hcsr04.Sensor) error {
		_, err := probe(s, timeutil.RealClock{}, *readings, *settle, *unit, os.Stdout)
		return err
	})
	if err != nil {
		log.Fatal(err)
	}
}

// probe prints n raw distances in whole millimetres and returns their
// average, rounded to the nearest millimetre.
func probe(s roundTripper, clock timeutil.Clock, n int, settle time.Duration, unit string, out io.Writer) (int, error) {
	fmt.Fprintln(out, "Waiting for sensor to settle")
	clock.Sleep(settle)

	fmt.Fprintln(out, "Calculating distance")
	total := 0.0
	for i := 0; i < n; i++ {
		pulse, err := s.MeasureRoundTrip()
		if err != nil {
			return 0, fmt.Errorf("reading %d: %w", i+1, err)
		}
		d := math.RoundToEven(units.DistanceForEcho(pulse))
		fmt.Fprintf(out, "Distance: %d mm\n", int(d))
		total += d
	}

	avg := math.RoundToEven(total / float64(n))
	if unit == units.MM {
		fmt.Fprintf(out, "Average distance: %d mm\n", int(avg))
	} else {
		fmt.Fprintf(out, "Average distance: %.1f %s\n", units.ConvertDistance(avg, unit), unit)
	}
	return int(avg), nil
}
