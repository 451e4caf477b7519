package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
devices:
  - name: dash-gps
    type: nmea
    enabled: true
    serialdevice: /dev/ttyUSB0
    baud: 9600
  - name: phone
    type: udp
    enabled: false
    listen-addr: ":5598"

feed:
  url: https://hazards.example.com/feed.json
  reload-interval-secs: 900
  default-speed-unit: kmh
  fail-on-empty-catalog: true

engine:
  alert-distance-m: 800
  ahead-angle-deg: 45

sinks:
  triplog:
    path: /var/lib/roadwatch/trips.db
  relay:
    listen-addr: ":5599"

controllers:
  - type: status
    status:
      port: 8090
      enable-cors: true
`

func writeSampleConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		t.Fatalf("writing sample config: %v", err)
	}
	return path
}

func TestYAMLProviderLoadConfig(t *testing.T) {
	provider := NewYAMLProvider(writeSampleConfig(t))

	cfg, err := provider.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if len(cfg.Devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(cfg.Devices))
	}
	if cfg.Devices[0].Type != "nmea" || cfg.Devices[0].SerialDevice != "/dev/ttyUSB0" {
		t.Errorf("device 0 = %+v", cfg.Devices[0])
	}
	if cfg.Devices[1].Enabled {
		t.Error("device 1 should be disabled")
	}

	if cfg.Feed.URL != "https://hazards.example.com/feed.json" {
		t.Errorf("feed.URL = %q", cfg.Feed.URL)
	}
	if !cfg.Feed.FailOnEmptyCatalog {
		t.Error("feed.FailOnEmptyCatalog should be true")
	}

	if cfg.Engine.AlertDistanceM != 800 {
		t.Errorf("engine.AlertDistanceM = %v, want 800", cfg.Engine.AlertDistanceM)
	}
	if cfg.Engine.CameraVisibleRadiusM != 0 {
		t.Errorf("unset threshold should stay zero, got %v", cfg.Engine.CameraVisibleRadiusM)
	}

	if cfg.Sinks.TripLog == nil || cfg.Sinks.TripLog.Path != "/var/lib/roadwatch/trips.db" {
		t.Errorf("sinks.TripLog = %+v", cfg.Sinks.TripLog)
	}
	if cfg.Sinks.TimescaleDB != nil {
		t.Error("sinks.TimescaleDB should be nil when not configured")
	}
	if cfg.Sinks.Relay == nil || cfg.Sinks.Relay.ListenAddr != ":5599" {
		t.Errorf("sinks.Relay = %+v", cfg.Sinks.Relay)
	}

	if len(cfg.Controllers) != 1 {
		t.Fatalf("expected 1 controller, got %d", len(cfg.Controllers))
	}
	sc := cfg.Controllers[0].StatusServer
	if cfg.Controllers[0].Type != "status" || sc == nil || sc.Port != 8090 || !sc.EnableCORS {
		t.Errorf("controller 0 = %+v status=%+v", cfg.Controllers[0], sc)
	}
}

func TestYAMLProviderGettersLazyLoad(t *testing.T) {
	provider := NewYAMLProvider(writeSampleConfig(t))

	devices, err := provider.GetDevices()
	if err != nil {
		t.Fatalf("GetDevices() error: %v", err)
	}
	if len(devices) != 2 {
		t.Errorf("expected 2 devices, got %d", len(devices))
	}

	engine, err := provider.GetEngine()
	if err != nil {
		t.Fatalf("GetEngine() error: %v", err)
	}
	if engine.AheadAngleDeg != 45 {
		t.Errorf("engine.AheadAngleDeg = %v, want 45", engine.AheadAngleDeg)
	}
}

func TestYAMLProviderMissingFile(t *testing.T) {
	provider := NewYAMLProvider(filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := provider.LoadConfig(); err == nil {
		t.Error("expected an error for a missing config file")
	}
}
