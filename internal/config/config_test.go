package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dougalf/lolat/internal/gpio"
	"github.com/dougalf/lolat/internal/hcsr04"
	"github.com/dougalf/lolat/internal/testutil"
	"github.com/dougalf/lolat/internal/volume"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := Empty()

	sc, err := cfg.SensorConfig()
	if err != nil {
		t.Fatalf("SensorConfig() error: %v", err)
	}
	if diff := cmp.Diff(hcsr04.DefaultConfig(), sc); diff != "" {
		t.Errorf("SensorConfig() mismatch (-want +got):\n%s", diff)
	}
	if got := cfg.Mapper(); got != volume.DefaultMapper() {
		t.Errorf("Mapper() = %v, want %v", got, volume.DefaultMapper())
	}
	if cfg.GetBoardDriver() != gpio.DriverPeriph {
		t.Errorf("GetBoardDriver() = %q, want %q", cfg.GetBoardDriver(), gpio.DriverPeriph)
	}
	if cfg.GetPollInterval() != 15*time.Minute {
		t.Errorf("GetPollInterval() = %v, want 15m", cfg.GetPollInterval())
	}
	if cfg.GetTelegrafAddr() != "localhost:8094" || cfg.GetTelegrafNetwork() != "udp" {
		t.Errorf("telegraf = %s/%s, want udp/localhost:8094", cfg.GetTelegrafNetwork(), cfg.GetTelegrafAddr())
	}
	if diff := cmp.Diff(map[string]string{"src": "bucket"}, cfg.GetTelegrafTags()); diff != "" {
		t.Errorf("GetTelegrafTags() mismatch (-want +got):\n%s", diff)
	}
	if cfg.GetMQTTBroker() != "" || len(cfg.GetKafkaBrokers()) != 0 || cfg.GetListen() != "" {
		t.Errorf("optional sinks should be disabled by default")
	}
	if cfg.GetDBPath() != DefaultDBPath {
		t.Errorf("GetDBPath() = %q, want %q", cfg.GetDBPath(), DefaultDBPath)
	}
}

func TestLoadDefaultsFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", DefaultConfigPath))
	if err != nil {
		t.Fatalf("LoadConfig(%s): %v", DefaultConfigPath, err)
	}

	// The defaults file must agree with the built-in defaults.
	empty := Empty()
	want, _ := empty.SensorConfig()
	got, err := cfg.SensorConfig()
	if err != nil {
		t.Fatalf("SensorConfig() error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("defaults file sensor config mismatch (-builtin +file):\n%s", diff)
	}
	if cfg.Mapper() != empty.Mapper() {
		t.Errorf("defaults file mapper %v, built-in %v", cfg.Mapper(), empty.Mapper())
	}
	if cfg.GetPollInterval() != empty.GetPollInterval() {
		t.Errorf("defaults file poll interval %v, built-in %v", cfg.GetPollInterval(), empty.GetPollInterval())
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, "lolat.json", `{
  "board_driver": "RPIO",
  "pin_mode": "bcm",
  "trigger_pin": 23,
  "echo_pin": 24,
  "settle_interval": "80ms",
  "readings_per_estimate": 7,
  "dist_max_mm": 2000,
  "volume_slope": -10,
  "poll_interval": "1m",
  "telegraf_addr": "",
  "mqtt_broker": "tcp://broker:1883",
  "kafka_brokers": ["k1:9092", "k2:9092"],
  "listen": ":8080"
}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	sc, err := cfg.SensorConfig()
	if err != nil {
		t.Fatalf("SensorConfig() error: %v", err)
	}
	want := hcsr04.DefaultConfig()
	want.Mode = gpio.ModeBCM
	want.Trigger, want.Echo = 23, 24
	want.SettleInterval = 80 * time.Millisecond
	want.Readings = 7
	want.Limits.Max = 2000
	if diff := cmp.Diff(want, sc); diff != "" {
		t.Errorf("SensorConfig() mismatch (-want +got):\n%s", diff)
	}

	if cfg.GetBoardDriver() != gpio.DriverRPIO {
		t.Errorf("GetBoardDriver() = %q, want rpio", cfg.GetBoardDriver())
	}
	if m := cfg.Mapper(); m.Slope != -10 || m.Intercept != volume.DefaultIntercept {
		t.Errorf("Mapper() = %v", m)
	}
	if cfg.GetPollInterval() != time.Minute {
		t.Errorf("GetPollInterval() = %v, want 1m", cfg.GetPollInterval())
	}
	if cfg.GetTelegrafAddr() != "" {
		t.Errorf("explicit empty telegraf_addr should disable Telegraf, got %q", cfg.GetTelegrafAddr())
	}
	if cfg.GetMQTTBroker() != "tcp://broker:1883" || cfg.GetMQTTTopic() != "lolat/bucket" {
		t.Errorf("mqtt = %s %s", cfg.GetMQTTBroker(), cfg.GetMQTTTopic())
	}
	if diff := cmp.Diff([]string{"k1:9092", "k2:9092"}, cfg.GetKafkaBrokers()); diff != "" {
		t.Errorf("GetKafkaBrokers() mismatch (-want +got):\n%s", diff)
	}
	if cfg.GetListen() != ":8080" {
		t.Errorf("GetListen() = %q", cfg.GetListen())
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "lolat.yaml", `{}`, "must have .json extension"},
		{"bad json", "bad.json", `{"trigger_pin": }`, "failed to parse config JSON"},
		{"bad duration", "dur.json", `{"echo_timeout": "soon"}`, "invalid echo_timeout"},
		{"bad driver", "drv.json", `{"board_driver": "arduino"}`, "board_driver must be"},
		{"bad mode", "mode.json", `{"pin_mode": "WIRING"}`, "invalid pin_mode"},
		{"not a gpio pin", "pin.json", `{"trigger_pin": 1}`, "trigger pin 1"},
		{"same pins", "same.json", `{"trigger_pin": 11}`, "different pins"},
		{"too few readings", "few.json", `{"readings_per_estimate": 2}`, "at least 3"},
		{"inverted limits", "lim.json", `{"dist_min_mm": 500, "dist_max_mm": 100}`, "distance limits"},
		{"zero poll", "poll.json", `{"poll_interval": "0s"}`, "poll_interval must be positive"},
		{"bad network", "net.json", `{"telegraf_network": "carrier-pigeon"}`, "telegraf_network"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadConfig(path)
			if err == nil {
				t.Fatalf("LoadConfig succeeded, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadConfig error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(testutil.TempPath(t, "absent.json"))
	testutil.AssertError(t, err)
}

func TestLoadConfig_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.json")
	big := `{"listen": "` + strings.Repeat("x", 1024*1024) + `"}`
	if err := os.WriteFile(path, []byte(big), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("LoadConfig error = %v, want too large", err)
	}
}

func TestOverrides(t *testing.T) {
	cfg := Empty()
	cfg.SetListen("127.0.0.1:9000")
	cfg.SetBoardDriver("FAKE")
	cfg.SetDBPath("")

	if cfg.GetListen() != "127.0.0.1:9000" {
		t.Errorf("GetListen() = %q", cfg.GetListen())
	}
	if cfg.GetBoardDriver() != gpio.DriverFake {
		t.Errorf("GetBoardDriver() = %q", cfg.GetBoardDriver())
	}
	if cfg.GetDBPath() != "" {
		t.Errorf("GetDBPath() = %q, want disabled", cfg.GetDBPath())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}
