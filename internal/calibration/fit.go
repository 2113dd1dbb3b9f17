package calibration

import (
	"errors"

	"gonum.org/v1/gonum/stat"

	"github.com/dougalf/lolat/internal/volume"
)

// ErrTooFewSamples is returned by Fit for tables without two distinct
// distances.
var ErrTooFewSamples = errors.New("calibration: need samples at two or more distances to fit a line")

// Fit returns the least-squares line through the table, volume against
// distance.
func Fit(t Table) (volume.Mapper, error) {
	xs := make([]float64, len(t))
	ys := make([]float64, len(t))
	distinct := false
	for i, s := range t {
		xs[i] = float64(s.Distance)
		ys[i] = float64(s.Volume)
		if s.Distance != t[0].Distance {
			distinct = true
		}
	}
	if !distinct {
		return volume.Mapper{}, ErrTooFewSamples
	}
	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	return volume.Mapper{Slope: slope, Intercept: intercept}, nil
}
