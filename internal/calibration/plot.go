package calibration

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/dougalf/lolat/internal/volume"
)

// Plot renders the table as volume against distance and saves it to path.
// The image format follows the file extension (png, svg, pdf). If fit is
// non-nil its line is drawn over the samples so the mapping coefficients
// can be checked by eye.
func Plot(t Table, fit *volume.Mapper, path string) error {
	if len(t) == 0 {
		return fmt.Errorf("plot calibration: empty table")
	}

	p := plot.New()
	p.Title.Text = "Bucket calibration"
	p.X.Label.Text = "Distance (mm)"
	p.Y.Label.Text = "Volume (ml)"

	pts := make(plotter.XYs, len(t))
	for i, s := range t {
		pts[i] = plotter.XY{X: float64(s.Distance), Y: float64(s.Volume)}
	}
	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return fmt.Errorf("plot calibration: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line, points)
	p.Legend.Add("samples", line, points)

	if fit != nil {
		m := *fit
		f := plotter.NewFunction(func(x float64) float64 {
			return m.Slope*x + m.Intercept
		})
		f.Color = color.RGBA{R: 200, A: 255}
		f.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(f)
		p.Legend.Add(m.String(), f)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save calibration plot: %w", err)
	}
	return nil
}
