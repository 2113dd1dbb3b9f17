// Package config loads the LolaT daemon configuration from JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dougalf/lolat/internal/gpio"
	"github.com/dougalf/lolat/internal/hcsr04"
	"github.com/dougalf/lolat/internal/metrics"
	"github.com/dougalf/lolat/internal/volume"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/lolat.defaults.json"

// Defaults for keys that are not sensor or volume parameters.
const (
	DefaultPollInterval = 15 * time.Minute
	DefaultDBPath       = "lolat.db"
	DefaultMQTTClientID = "lolat"
)

// Config is the root configuration. Every field is optional; the Get
// methods return defaults for fields absent from the file. An explicit
// empty string disables the sink or server it names.
type Config struct {
	// Sensor wiring
	BoardDriver *string `json:"board_driver,omitempty"` // periph, rpio or fake
	PinMode     *string `json:"pin_mode,omitempty"`     // BOARD or BCM
	TriggerPin  *int    `json:"trigger_pin,omitempty"`
	EchoPin     *int    `json:"echo_pin,omitempty"`

	// Ranging
	SettleInterval      *string  `json:"settle_interval,omitempty"` // duration string like "60ms"
	TriggerPulse        *string  `json:"trigger_pulse,omitempty"`
	EchoTimeout         *string  `json:"echo_timeout,omitempty"`
	ReadingsPerEstimate *int     `json:"readings_per_estimate,omitempty"`
	DistMinMM           *float64 `json:"dist_min_mm,omitempty"`
	DistMaxMM           *float64 `json:"dist_max_mm,omitempty"`

	// Volume mapping
	VolumeSlope     *float64 `json:"volume_slope,omitempty"`
	VolumeIntercept *float64 `json:"volume_intercept,omitempty"`

	// Polling and publishing
	PollInterval    *string           `json:"poll_interval,omitempty"`
	TelegrafAddr    *string           `json:"telegraf_addr,omitempty"`
	TelegrafNetwork *string           `json:"telegraf_network,omitempty"`
	TelegrafTags    map[string]string `json:"telegraf_tags,omitempty"`
	MQTTBroker      *string           `json:"mqtt_broker,omitempty"`
	MQTTTopic       *string           `json:"mqtt_topic,omitempty"`
	MQTTClientID    *string           `json:"mqtt_client_id,omitempty"`
	KafkaBrokers    []string          `json:"kafka_brokers,omitempty"`
	KafkaTopic      *string           `json:"kafka_topic,omitempty"`
	DBPath          *string           `json:"db_path,omitempty"`
	Listen          *string           `json:"listen,omitempty"`
}

func ptrString(v string) *string { return &v }

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// LoadConfig loads a Config from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the file keep their defaults, so partial configs are safe.
func LoadConfig(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks field syntax and that the resulting sensor configuration
// is usable.
func (c *Config) Validate() error {
	if c.BoardDriver != nil {
		switch strings.ToLower(*c.BoardDriver) {
		case gpio.DriverPeriph, gpio.DriverRPIO, gpio.DriverFake:
		default:
			return fmt.Errorf("board_driver must be %s, %s or %s, got %q",
				gpio.DriverPeriph, gpio.DriverRPIO, gpio.DriverFake, *c.BoardDriver)
		}
	}
	if c.PinMode != nil {
		if _, err := gpio.ParseMode(*c.PinMode); err != nil {
			return fmt.Errorf("invalid pin_mode: %w", err)
		}
	}
	for name, v := range map[string]*string{
		"settle_interval": c.SettleInterval,
		"trigger_pulse":   c.TriggerPulse,
		"echo_timeout":    c.EchoTimeout,
		"poll_interval":   c.PollInterval,
	} {
		if v == nil || *v == "" {
			continue
		}
		if _, err := time.ParseDuration(*v); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
		}
	}
	if c.GetPollInterval() <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.GetPollInterval())
	}
	if c.TelegrafNetwork != nil {
		switch *c.TelegrafNetwork {
		case "udp", "tcp", "unix", "unixgram":
		default:
			return fmt.Errorf("telegraf_network must be udp, tcp, unix or unixgram, got %q", *c.TelegrafNetwork)
		}
	}
	if _, err := c.SensorConfig(); err != nil {
		return err
	}
	return nil
}

func duration(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetBoardDriver returns the board_driver value or the default.
func (c *Config) GetBoardDriver() string {
	if c.BoardDriver == nil {
		return gpio.DriverPeriph
	}
	return strings.ToLower(*c.BoardDriver)
}

// GetPinMode returns the pin numbering mode or BOARD.
func (c *Config) GetPinMode() gpio.Mode {
	if c.PinMode == nil {
		return gpio.ModeBoard
	}
	m, err := gpio.ParseMode(*c.PinMode)
	if err != nil {
		return gpio.ModeBoard
	}
	return m
}

// GetTriggerPin returns the trigger_pin value or the default.
func (c *Config) GetTriggerPin() gpio.Pin {
	if c.TriggerPin == nil {
		return hcsr04.DefaultConfig().Trigger
	}
	return gpio.Pin(*c.TriggerPin)
}

// GetEchoPin returns the echo_pin value or the default.
func (c *Config) GetEchoPin() gpio.Pin {
	if c.EchoPin == nil {
		return hcsr04.DefaultConfig().Echo
	}
	return gpio.Pin(*c.EchoPin)
}

// GetSettleInterval parses and returns settle_interval.
func (c *Config) GetSettleInterval() time.Duration {
	return duration(c.SettleInterval, hcsr04.DefaultSettleInterval)
}

// GetTriggerPulse parses and returns trigger_pulse.
func (c *Config) GetTriggerPulse() time.Duration {
	return duration(c.TriggerPulse, hcsr04.DefaultTriggerPulse)
}

// GetEchoTimeout parses and returns echo_timeout.
func (c *Config) GetEchoTimeout() time.Duration {
	return duration(c.EchoTimeout, hcsr04.DefaultEchoTimeout)
}

// GetReadingsPerEstimate returns the readings_per_estimate value or the default.
func (c *Config) GetReadingsPerEstimate() int {
	if c.ReadingsPerEstimate == nil {
		return hcsr04.DefaultReadings
	}
	return *c.ReadingsPerEstimate
}

// GetDistMinMM returns the dist_min_mm value or the default.
func (c *Config) GetDistMinMM() float64 {
	if c.DistMinMM == nil {
		return hcsr04.DistMin
	}
	return *c.DistMinMM
}

// GetDistMaxMM returns the dist_max_mm value or the default.
func (c *Config) GetDistMaxMM() float64 {
	if c.DistMaxMM == nil {
		return hcsr04.DistMax
	}
	return *c.DistMaxMM
}

// SensorConfig assembles and validates the sensor configuration.
func (c *Config) SensorConfig() (hcsr04.Config, error) {
	sc := hcsr04.Config{
		Mode:           c.GetPinMode(),
		Trigger:        c.GetTriggerPin(),
		Echo:           c.GetEchoPin(),
		SettleInterval: c.GetSettleInterval(),
		TriggerPulse:   c.GetTriggerPulse(),
		EchoTimeout:    c.GetEchoTimeout(),
		Readings:       c.GetReadingsPerEstimate(),
		Limits:         hcsr04.Limits{Min: c.GetDistMinMM(), Max: c.GetDistMaxMM()},
	}
	if err := sc.Validate(); err != nil {
		return hcsr04.Config{}, err
	}
	return sc, nil
}

// Mapper returns the configured distance-to-volume line.
func (c *Config) Mapper() volume.Mapper {
	m := volume.DefaultMapper()
	if c.VolumeSlope != nil {
		m.Slope = *c.VolumeSlope
	}
	if c.VolumeIntercept != nil {
		m.Intercept = *c.VolumeIntercept
	}
	return m
}

// GetPollInterval parses and returns poll_interval.
func (c *Config) GetPollInterval() time.Duration {
	return duration(c.PollInterval, DefaultPollInterval)
}

// GetTelegrafAddr returns the Telegraf socket address. Empty disables the
// Telegraf sink.
func (c *Config) GetTelegrafAddr() string {
	if c.TelegrafAddr == nil {
		return metrics.DefaultTelegrafAddr
	}
	return *c.TelegrafAddr
}

// GetTelegrafNetwork returns the telegraf_network value or the default.
func (c *Config) GetTelegrafNetwork() string {
	if c.TelegrafNetwork == nil {
		return metrics.DefaultTelegrafNetwork
	}
	return *c.TelegrafNetwork
}

// GetTelegrafTags returns the configured tags or src=bucket.
func (c *Config) GetTelegrafTags() map[string]string {
	if c.TelegrafTags == nil {
		return metrics.DefaultTags()
	}
	return c.TelegrafTags
}

// GetMQTTBroker returns the MQTT broker URL. Unset or empty disables MQTT.
func (c *Config) GetMQTTBroker() string {
	if c.MQTTBroker == nil {
		return ""
	}
	return *c.MQTTBroker
}

// GetMQTTTopic returns the mqtt_topic value or the default.
func (c *Config) GetMQTTTopic() string {
	if c.MQTTTopic == nil || *c.MQTTTopic == "" {
		return metrics.DefaultMQTTTopic
	}
	return *c.MQTTTopic
}

// GetMQTTClientID returns the mqtt_client_id value or the default.
func (c *Config) GetMQTTClientID() string {
	if c.MQTTClientID == nil || *c.MQTTClientID == "" {
		return DefaultMQTTClientID
	}
	return *c.MQTTClientID
}

// GetKafkaBrokers returns the Kafka bootstrap brokers. None disables Kafka.
func (c *Config) GetKafkaBrokers() []string {
	return c.KafkaBrokers
}

// GetKafkaTopic returns the kafka_topic value or the default.
func (c *Config) GetKafkaTopic() string {
	if c.KafkaTopic == nil || *c.KafkaTopic == "" {
		return metrics.DefaultKafkaTopic
	}
	return *c.KafkaTopic
}

// GetDBPath returns the reading log path. Empty disables the log.
func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return DefaultDBPath
	}
	return *c.DBPath
}

// GetListen returns the HTTP listen address. Unset or empty disables the
// HTTP server.
func (c *Config) GetListen() string {
	if c.Listen == nil {
		return ""
	}
	return *c.Listen
}

// SetListen overrides the listen address, typically from a flag.
func (c *Config) SetListen(addr string) { c.Listen = ptrString(addr) }

// SetBoardDriver overrides the board driver, typically from a flag.
func (c *Config) SetBoardDriver(driver string) { c.BoardDriver = ptrString(driver) }

// SetDBPath overrides the reading log path, typically from a flag.
func (c *Config) SetDBPath(path string) { c.DBPath = ptrString(path) }
