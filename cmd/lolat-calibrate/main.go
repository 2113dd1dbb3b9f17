// Command lolat-calibrate builds the distance-to-volume table for a
// container by pouring known volumes and reading the sensor after each.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dougalf/lolat/internal/calibration"
	"github.com/dougalf/lolat/internal/config"
	"github.com/dougalf/lolat/internal/fsutil"
	"github.com/dougalf/lolat/internal/gpio"
	"github.com/dougalf/lolat/internal/hcsr04"
	"github.com/dougalf/lolat/internal/timeutil"
	"github.com/dougalf/lolat/internal/version"
	"github.com/dougalf/lolat/internal/volume"
)

var (
	outPath     = flag.String("out", calibration.DefaultFileName, "Calibration table to write")
	plotPath    = flag.String("plot", "", "Also render the table to this image (png, svg or pdf)")
	configPath  = flag.String("config", "", "Path to a JSON config file for the sensor wiring")
	driver      = flag.String("driver", "", "GPIO driver: periph, rpio or fake (overrides config)")
	replot      = flag.Bool("replot", false, "Plot an existing table instead of running a session")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if *replot {
		if err := plotExisting(fsutil.OSFileSystem{}, *outPath, *plotPath, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	opts := options{
		outPath:    *outPath,
		plotPath:   *plotPath,
		configPath: *configPath,
		driver:     *driver,
	}
	if err := calibrate(opts, fsutil.OSFileSystem{}, os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

type options struct {
	outPath    string
	plotPath   string
	configPath string
	driver     string
}

// calibrate runs one interactive session and reports the result. Quitting
// before the baseline reading is a clean exit. Declining to overwrite an
// existing table is an error, so scripts can tell it from a finished run.
func calibrate(o options, fsys fsutil.FileSystem, in io.Reader, out io.Writer) error {
	cfg := config.Empty()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(o.configPath); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}
	if o.driver != "" {
		cfg.SetBoardDriver(o.driver)
	}

	sc, err := cfg.SensorConfig()
	if err != nil {
		return fmt.Errorf("invalid sensor config: %w", err)
	}
	board, err := hcsr04.OpenBoard(cfg.GetBoardDriver(), sc)
	if err != nil {
		return err
	}
	defer gpio.Close(board)

	sensor, err := hcsr04.New(board, timeutil.RealClock{}, sc)
	if err != nil {
		return err
	}

	var table calibration.Table
	err = sensor.WithSession(func(s *hcsr04.Sensor) error {
		sess := &calibration.Session{
			Sensor: s,
			FS:     fsys,
			Path:   o.outPath,
			In:     in,
			Out:    out,
		}
		var err error
		table, err = sess.Run()
		return err
	})
	if errors.Is(err, calibration.ErrAborted) {
		fmt.Fprintln(out, err)
		return nil
	}
	if err != nil {
		return err
	}
	return report(table, o.plotPath, out)
}

// report prints the fitted line and renders the plot if asked. A table
// too short to fit is still plotted, without the line.
func report(table calibration.Table, plotPath string, out io.Writer) error {
	var line *volume.Mapper
	if fit, err := calibration.Fit(table); err != nil {
		fmt.Fprintln(out, err)
	} else {
		fmt.Fprintf(out, "Suggested mapping: %v\n", fit)
		line = &fit
	}
	if plotPath == "" {
		return nil
	}
	if err := calibration.Plot(table, line, plotPath); err != nil {
		return err
	}
	fmt.Fprintf(out, "Plot written to %s\n", plotPath)
	return nil
}

func plotExisting(fsys fsutil.FileSystem, tablePath, plotPath string, out io.Writer) error {
	if plotPath == "" {
		return fmt.Errorf("-replot needs -plot")
	}
	table, err := calibration.Load(fsys, tablePath)
	if err != nil {
		return err
	}
	return report(table, plotPath, out)
}
