package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultMQTTTopic is the topic points are published to.
const DefaultMQTTTopic = "lolat/bucket"

// mqttPublisher is the part of mqtt.Client a sink uses.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// jsonPoint is the JSON encoding of a point used by the MQTT and Kafka sinks.
type jsonPoint struct {
	Measurement string    `json:"measurement"`
	Fields      Fields    `json:"fields"`
	Time        time.Time `json:"time"`
}

// MQTTSink publishes each point as a JSON message.
type MQTTSink struct {
	client  mqttPublisher
	topic   string
	qos     byte
	timeout time.Duration
	now     func() time.Time
	close   func()
}

// NewMQTTSink connects to broker (e.g. "tcp://localhost:1883").
func NewMQTTSink(broker, clientID, topic string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetConnectTimeout(10 * time.Second).
		SetAutoReconnect(true)
	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt: connect %s: %w", broker, token.Error())
	}
	s := newMQTTSink(c, topic)
	s.close = func() { c.Disconnect(250) }
	return s, nil
}

func newMQTTSink(client mqttPublisher, topic string) *MQTTSink {
	return &MQTTSink{
		client:  client,
		topic:   topic,
		qos:     1,
		timeout: 10 * time.Second,
		now:     time.Now,
	}
}

func (s *MQTTSink) Publish(ctx context.Context, measurement string, fields Fields) error {
	payload, err := json.Marshal(jsonPoint{Measurement: measurement, Fields: fields, Time: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("mqtt: marshal point: %w", err)
	}

	token := s.client.Publish(s.topic, s.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.timeout):
		return fmt.Errorf("mqtt: publish to %s timed out after %v", s.topic, s.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish to %s: %w", s.topic, err)
	}
	return nil
}

// Close disconnects from the broker.
func (s *MQTTSink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
