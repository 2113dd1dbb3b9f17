package calibration

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/dougalf/lolat/internal/fsutil"
)

// ErrOverwriteDeclined is returned when the output file exists and the
// operator chose not to replace it.
var ErrOverwriteDeclined = errors.New("calibration file exists and was not overwritten")

// Output is a calibration file reserved at the start of a run and written
// in one go at the end.
type Output struct {
	fsys    fsutil.FileSystem
	path    string
	created bool // the empty placeholder is ours to remove
	done    bool
}

// ReserveOutput checks the table can be written to path before any liquid
// is poured. A new file is created empty. If path already exists confirm is
// asked whether to overwrite it; the existing contents are kept until
// Commit.
func ReserveOutput(fsys fsutil.FileSystem, path string, confirm func() (bool, error)) (*Output, error) {
	err := fsys.CreateExclusive(path, 0o644)
	if err == nil {
		return &Output{fsys: fsys, path: path, created: true}, nil
	}
	if !errors.Is(err, fs.ErrExist) {
		return nil, fmt.Errorf("open calibration file: %w", err)
	}
	ok, err := confirm()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrOverwriteDeclined
	}
	return &Output{fsys: fsys, path: path}, nil
}

// Path returns the output file name.
func (o *Output) Path() string { return o.path }

// Commit writes the table, replacing the file atomically.
func (o *Output) Commit(t Table) error {
	if o.done {
		return errors.New("calibration output already finished")
	}
	data, err := t.Encode()
	if err != nil {
		return fmt.Errorf("encode calibration table: %w", err)
	}
	if err := o.fsys.WriteFile(o.path, data, 0o644); err != nil {
		return fmt.Errorf("write calibration table: %w", err)
	}
	o.done = true
	return nil
}

// Abort gives up on the output. A placeholder created by ReserveOutput is
// removed; a pre-existing file is left untouched.
func (o *Output) Abort() error {
	if o.done {
		return nil
	}
	o.done = true
	if !o.created {
		return nil
	}
	if err := o.fsys.Remove(o.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
