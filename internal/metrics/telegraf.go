package metrics

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/influxdata/line-protocol/v2/lineprotocol"
)

// Telegraf socket listener defaults.
const (
	DefaultTelegrafNetwork = "udp"
	DefaultTelegrafAddr    = "localhost:8094"
)

// DefaultTags identifies LolaT points in the Telegraf pipeline.
func DefaultTags() map[string]string {
	return map[string]string{"src": "bucket"}
}

// TelegrafSink writes points in InfluxDB line protocol to a Telegraf
// socket_listener input. Points carry no timestamp; Telegraf stamps them on
// arrival.
type TelegrafSink struct {
	Network string
	Addr    string
	Tags    map[string]string
	Timeout time.Duration

	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewTelegrafSink returns a sink for network ("udp" or "tcp") and addr.
func NewTelegrafSink(network, addr string, tags map[string]string) *TelegrafSink {
	d := &net.Dialer{}
	return &TelegrafSink{
		Network: network,
		Addr:    addr,
		Tags:    tags,
		Timeout: 5 * time.Second,
		dial:    d.DialContext,
	}
}

// Encode renders one line of line protocol.
func (s *TelegrafSink) Encode(measurement string, fields Fields) ([]byte, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("telegraf: point %q has no fields", measurement)
	}
	var enc lineprotocol.Encoder
	enc.StartLine(measurement)

	// line protocol requires tags in lexical key order
	keys := make([]string, 0, len(s.Tags))
	for k := range s.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		enc.AddTag(k, s.Tags[k])
	}
	for _, k := range fields.Keys() {
		enc.AddField(k, lineprotocol.IntValue(fields[k]))
	}
	enc.EndLine(time.Time{})
	if err := enc.Err(); err != nil {
		return nil, fmt.Errorf("telegraf: encode %q: %w", measurement, err)
	}
	return enc.Bytes(), nil
}

func (s *TelegrafSink) Publish(ctx context.Context, measurement string, fields Fields) error {
	line, err := s.Encode(measurement, fields)
	if err != nil {
		return err
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	conn, err := s.dial(ctx, s.Network, s.Addr)
	if err != nil {
		return fmt.Errorf("telegraf: dial %s/%s: %w", s.Network, s.Addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	if _, err := conn.Write(line); err != nil {
		return fmt.Errorf("telegraf: write: %w", err)
	}
	return nil
}
