// Package metrics publishes level readings to the places that chart them:
// a Telegraf socket listener, an MQTT broker, a Kafka topic and the local
// sqlite reading log.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Measurement is the name every LolaT point is published under.
const Measurement = "lolat"

// Field names of a LolaT point.
const (
	FieldReading = "reading"
	FieldVolume  = "volume"
)

// Fields maps field names to integer values.
type Fields map[string]int64

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sink accepts one named measurement at a time.
type Sink interface {
	Publish(ctx context.Context, measurement string, fields Fields) error
}

// Multi fans a point out to several sinks. Every sink is tried; the errors
// of those that failed are joined.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, measurement string, fields Fields) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, measurement, fields); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

// Point is a published measurement as seen by a Recorder.
type Point struct {
	Measurement string
	Fields      Fields
}

// Recorder is a Sink that keeps points in memory. The daemon uses it in
// place of the network sinks in dev mode.
type Recorder struct {
	mu     sync.Mutex
	points []Point
	limit  int
}

// NewRecorder keeps at most limit points, dropping the oldest. A limit of
// zero keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Publish(_ context.Context, measurement string, fields Fields) error {
	cp := make(Fields, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = append(r.points, Point{Measurement: measurement, Fields: cp})
	if r.limit > 0 && len(r.points) > r.limit {
		r.points = r.points[len(r.points)-r.limit:]
	}
	return nil
}

// Points returns a copy of the recorded points, oldest first.
func (r *Recorder) Points() []Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Point(nil), r.points...)
}

// Last returns the most recent point.
func (r *Recorder) Last() (Point, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.points) == 0 {
		return Point{}, false
	}
	return r.points[len(r.points)-1], true
}
