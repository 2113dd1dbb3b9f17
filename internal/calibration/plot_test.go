package calibration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dougalf/lolat/internal/volume"
)

func TestPlot(t *testing.T) {
	table := Table{{110, 0}, {88, 500}, {66, 1000}, {44, 1500}}
	fit := volume.DefaultMapper()

	for _, name := range []string{"cal.png", "cal.svg"} {
		path := filepath.Join(t.TempDir(), name)
		if err := Plot(table, &fit, path); err != nil {
			t.Fatalf("Plot(%s): %v", name, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestPlotEmpty(t *testing.T) {
	if err := Plot(nil, nil, filepath.Join(t.TempDir(), "x.png")); err == nil {
		t.Error("expected error for empty table")
	}
}
