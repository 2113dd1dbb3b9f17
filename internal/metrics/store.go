package metrics

import (
	"context"
	"fmt"
)

// ReadingStore persists LolaT points. db.DB implements it.
type ReadingStore interface {
	RecordReading(ctx context.Context, reading, volume int64) error
}

// StoreSink writes lolat points to a ReadingStore. Points with any other
// measurement name are rejected.
type StoreSink struct {
	Store ReadingStore
}

func (s StoreSink) Publish(ctx context.Context, measurement string, fields Fields) error {
	if measurement != Measurement {
		return fmt.Errorf("store: unsupported measurement %q", measurement)
	}
	reading, ok := fields[FieldReading]
	if !ok {
		return fmt.Errorf("store: point has no %q field", FieldReading)
	}
	volume, ok := fields[FieldVolume]
	if !ok {
		return fmt.Errorf("store: point has no %q field", FieldVolume)
	}
	return s.Store.RecordReading(ctx, reading, volume)
}
