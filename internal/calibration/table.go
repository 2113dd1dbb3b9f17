// Package calibration builds the bucket calibration table: pairs of sensor
// distance and the cumulative volume of liquid poured in to reach it.
package calibration

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dougalf/lolat/internal/fsutil"
)

// DefaultFileName is where the calibration tool writes its table.
const DefaultFileName = "bucket_calibration.json"

// Sample pairs a distance estimate in mm with the total volume in ml that
// had been added when it was taken. It is encoded as a two element JSON
// array.
type Sample struct {
	Distance int
	Volume   int
}

func (s Sample) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{s.Distance, s.Volume})
}

func (s *Sample) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("calibration sample: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("calibration sample: want [distance, volume], got %d values", len(pair))
	}
	s.Distance, s.Volume = pair[0], pair[1]
	return nil
}

// Table is an ordered calibration run. The first sample is the empty
// container baseline.
type Table []Sample

// ErrNoBaseline is returned for a table that does not start at 0 ml.
var ErrNoBaseline = errors.New("calibration table must start with a 0ml baseline")

// Validate checks the table is non-empty and starts at 0ml.
func (t Table) Validate() error {
	if len(t) == 0 || t[0].Volume != 0 {
		return ErrNoBaseline
	}
	return nil
}

// Encode renders the table as 4-space indented JSON with a trailing
// newline.
func (t Table) Encode() ([]byte, error) {
	if t == nil {
		t = Table{}
	}
	data, err := json.MarshalIndent(t, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Load reads and validates a calibration table.
func Load(fsys fsutil.FileSystem, path string) (Table, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration table: %w", err)
	}
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse calibration table %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
