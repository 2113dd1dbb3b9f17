package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultKafkaTopic is the topic points are produced to.
const DefaultKafkaTopic = "lolat.readings"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink produces each point as a JSON message keyed by measurement.
type KafkaSink struct {
	w   messageWriter
	now func() time.Time
}

// NewKafkaSink returns a sink writing to topic on the given brokers.
// Connections are made lazily on the first Publish.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
		now: time.Now,
	}
}

func (s *KafkaSink) Publish(ctx context.Context, measurement string, fields Fields) error {
	now := s.now().UTC()
	value, err := json.Marshal(jsonPoint{Measurement: measurement, Fields: fields, Time: now})
	if err != nil {
		return fmt.Errorf("kafka: marshal point: %w", err)
	}
	msg := kafka.Message{Key: []byte(measurement), Value: value, Time: now}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes broker connections.
func (s *KafkaSink) Close() error {
	return s.w.Close()
}
