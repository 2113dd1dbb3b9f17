package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dougalf/lolat/internal/calibration"
	"github.com/dougalf/lolat/internal/fsutil"
	"github.com/dougalf/lolat/internal/gpio"
	"github.com/dougalf/lolat/internal/hcsr04"
	"github.com/dougalf/lolat/internal/monitoring"
)

func TestReport(t *testing.T) {
	var out bytes.Buffer
	table := calibration.Table{{110, 0}, {90, 500}, {70, 1000}}
	plot := filepath.Join(t.TempDir(), "cal.png")

	if err := report(table, plot, &out); err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(out.String(), "Suggested mapping: volume = ") {
		t.Errorf("output %q lacks the fitted mapping", out.String())
	}
	if _, err := os.Stat(plot); err != nil {
		t.Errorf("plot not written: %v", err)
	}
}

func TestReport_BaselineOnly(t *testing.T) {
	var out bytes.Buffer
	if err := report(calibration.Table{{110, 0}}, "", &out); err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.Contains(out.String(), "two or more distances") {
		t.Errorf("output %q should explain why there is no fit", out.String())
	}
}

func TestPlotExisting(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	if err := fsys.WriteFile("cal.json", []byte("[[110, 0], [90, 500]]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	plot := filepath.Join(t.TempDir(), "cal.svg")

	var out bytes.Buffer
	if err := plotExisting(fsys, "cal.json", plot, &out); err != nil {
		t.Fatalf("plotExisting: %v", err)
	}
	if !strings.Contains(out.String(), "Plot written to") {
		t.Errorf("output %q", out.String())
	}

	if err := plotExisting(fsys, "cal.json", "", &out); err == nil {
		t.Error("plotExisting without a plot path should fail")
	}
	if err := plotExisting(fsys, "missing.json", plot, &out); err == nil {
		t.Error("plotExisting of a missing table should fail")
	}
}

func TestCalibrate_FakeDriver(t *testing.T) {
	defer monitoring.SetLogger(nil)()
	fsys := fsutil.NewMemoryFileSystem()
	var out bytes.Buffer

	opts := options{outPath: "cal.json", driver: gpio.DriverFake}
	if err := calibrate(opts, fsys, strings.NewReader("500\nq\n"), &out); err != nil {
		t.Fatalf("calibrate: %v\n%s", err, out.String())
	}

	table, err := calibration.Load(fsys, "cal.json")
	if err != nil {
		t.Fatalf("table not written: %v", err)
	}
	if len(table) != 2 || table[0].Volume != 0 || table[1].Volume != 500 {
		t.Fatalf("table = %v, want a baseline and one 500ml pour", table)
	}
	lim := hcsr04.DefaultConfig().Limits
	for _, s := range table {
		if _, err := lim.Check(float64(s.Distance)); err != nil {
			t.Errorf("simulated distance %d: %v", s.Distance, err)
		}
	}
	if !strings.Contains(out.String(), "Writing mapping file.") {
		t.Errorf("output %q", out.String())
	}
}

func TestCalibrate_OverwriteDeclinedFails(t *testing.T) {
	defer monitoring.SetLogger(nil)()
	fsys := fsutil.NewMemoryFileSystem()
	if err := fsys.WriteFile("cal.json", []byte("[[110, 0]]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	opts := options{outPath: "cal.json", driver: gpio.DriverFake}
	err := calibrate(opts, fsys, strings.NewReader("n\n"), &out)
	if !errors.Is(err, calibration.ErrOverwriteDeclined) {
		t.Fatalf("calibrate error = %v, want ErrOverwriteDeclined", err)
	}

	table, err := calibration.Load(fsys, "cal.json")
	if err != nil || len(table) != 1 {
		t.Errorf("existing table changed: %v, %v", table, err)
	}
}

func TestCalibrate_UnknownDriver(t *testing.T) {
	opts := options{outPath: "cal.json", driver: "arduino"}
	if err := calibrate(opts, fsutil.NewMemoryFileSystem(), strings.NewReader(""), &bytes.Buffer{}); err == nil {
		t.Error("calibrate with an unknown driver should fail")
	}
}
