package calibration

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dougalf/lolat/internal/fsutil"
	"github.com/dougalf/lolat/internal/hcsr04"
	"github.com/dougalf/lolat/internal/monitoring"
)

// DistanceReader is the part of hcsr04.Sensor a calibration run needs.
type DistanceReader interface {
	GetDistance() (int, error)
}

// ErrAborted is returned when the operator quits before a baseline reading
// was taken. Nothing is written.
var ErrAborted = errors.New("calibration aborted before a baseline reading")

// errQuit is the operator asking to finish.
var errQuit = errors.New("quit")

// Session is one interactive calibration run. The operator pours liquid in
// steps, entering the volume added each time, and a distance estimate is
// recorded after every pour.
type Session struct {
	Sensor DistanceReader
	FS     fsutil.FileSystem
	Path   string
	In     io.Reader
	Out    io.Writer

	lines *bufio.Scanner
}

// Run reserves the output file, records the baseline and pour steps, and
// writes the table when the operator finishes. The table is returned even
// when it was written successfully.
func (s *Session) Run() (Table, error) {
	s.lines = bufio.NewScanner(s.In)

	out, err := ReserveOutput(s.FS, s.Path, s.confirmOverwrite)
	if err != nil {
		return nil, err
	}

	table, err := s.collect()
	if err != nil {
		if aerr := out.Abort(); aerr != nil {
			monitoring.Logf("calibration: remove %s: %v", out.Path(), aerr)
		}
		return nil, err
	}

	s.println("Writing mapping file.")
	if err := out.Commit(table); err != nil {
		return table, err
	}
	s.println("Done.")
	return table, nil
}

func (s *Session) collect() (Table, error) {
	s.println("Taking sensor reading with an empty bucket")
	baseline, err := s.readOrQuit()
	if errors.Is(err, errQuit) {
		return nil, ErrAborted
	}
	if err != nil {
		return nil, err
	}
	s.printf("New mapping: %dmm = 0ml.\n", baseline)
	table := Table{{Distance: baseline, Volume: 0}}

	total, added := 0, 0
	for {
		s.println("\nAdd liquid to the bucket, wait for waves to subside.")
		added, err = s.askVolume("Enter volume of liquid added (in ml)", added)
		if errors.Is(err, errQuit) {
			return table, nil
		}
		total += added

		reading, err := s.readOrQuit()
		if errors.Is(err, errQuit) {
			return table, nil
		}
		if err != nil {
			return nil, err
		}
		s.printf("New mapping: %dmm = %dml.\n", reading, total)
		table = append(table, Sample{Distance: reading, Volume: total})
	}
}

// readOrQuit takes an estimate, letting the operator retry after a bad
// reading. Errors other than bad readings end the run.
func (s *Session) readOrQuit() (int, error) {
	for {
		d, err := s.Sensor.GetDistance()
		if err == nil {
			return d, nil
		}
		if !hcsr04.IsReadingError(err) {
			return 0, err
		}
		s.println(err.Error())
		s.println("Check sensor / liquid level then press enter to try again.")
		answer, ok := s.ask("\tOr enter 'q' to write file and finish. ")
		if !ok || answer == "q" {
			return 0, errQuit
		}
	}
}

// askVolume prompts until the operator enters an integer (which may be
// negative), an empty line for last, or q.
func (s *Session) askVolume(message string, last int) (int, error) {
	prompt := fmt.Sprintf("%s,\n\tor just 'enter' for same as last time (%d),\n\tor 'q' to write file and finish. ", message, last)
	for {
		answer, ok := s.ask(prompt)
		if !ok || answer == "q" {
			return last, errQuit
		}
		if answer == "" {
			return last, nil
		}
		v, err := strconv.Atoi(answer)
		if err == nil {
			return v, nil
		}
		s.println("Couldn't parse that input. Please try again.")
	}
}

func (s *Session) confirmOverwrite() (bool, error) {
	answer, _ := s.ask("File exists. Overwrite? [N|y] ")
	return answer == "y", nil
}

// ask prints prompt and reads one line. ok is false at end of input.
func (s *Session) ask(prompt string) (answer string, ok bool) {
	fmt.Fprint(s.Out, prompt)
	if !s.lines.Scan() {
		fmt.Fprintln(s.Out)
		return "", false
	}
	return strings.TrimRight(s.lines.Text(), "\r"), true
}

func (s *Session) println(msg string) { fmt.Fprintln(s.Out, msg) }

func (s *Session) printf(format string, v ...interface{}) { fmt.Fprintf(s.Out, format, v...) }
