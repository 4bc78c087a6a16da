package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
gateway:
  id: "greenhouse-3"
  tick_interval_ms: 250
bridge:
  broker: "tcp://bridge.local:1883"
  mesh_topic: "radio/mesh/in"
connectivity:
  probe_addr: "1.1.1.1:53"
backend:
  base_url: "http://collector.local:3000"
logger:
  level: "debug"
  console: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Gateway.ID != "greenhouse-3" {
		t.Errorf("Gateway.ID = %q, want greenhouse-3", cfg.Gateway.ID)
	}
	if cfg.Gateway.TickInterval != 250 {
		t.Errorf("Gateway.TickInterval = %d, want 250", cfg.Gateway.TickInterval)
	}
	if cfg.Bridge.Broker != "tcp://bridge.local:1883" {
		t.Errorf("Bridge.Broker = %q", cfg.Bridge.Broker)
	}
	if cfg.Backend.BaseURL != "http://collector.local:3000" {
		t.Errorf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Logger.Level = %q, want debug", cfg.Logger.Level)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, `
backend:
  base_url: "http://collector.local:3000"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Gateway.ID != "gateway-01" {
		t.Errorf("default Gateway.ID = %q, want gateway-01", cfg.Gateway.ID)
	}
	if cfg.Gateway.NamePrefix != "gateway-" {
		t.Errorf("default Gateway.NamePrefix = %q, want gateway-", cfg.Gateway.NamePrefix)
	}
	if cfg.Gateway.TickInterval != 100 {
		t.Errorf("default Gateway.TickInterval = %d, want 100", cfg.Gateway.TickInterval)
	}
	if cfg.Bridge.MeshTopic != "radio/mesh/frames" {
		t.Errorf("default Bridge.MeshTopic = %q", cfg.Bridge.MeshTopic)
	}
	if cfg.Connectivity.ProbeAddr != "8.8.8.8:53" {
		t.Errorf("default Connectivity.ProbeAddr = %q", cfg.Connectivity.ProbeAddr)
	}
	if cfg.Connectivity.UplinkAddr != cfg.Connectivity.ProbeAddr {
		t.Errorf("Connectivity.UplinkAddr = %q, want probe address fallback", cfg.Connectivity.UplinkAddr)
	}
	if cfg.Backend.DataPath != "/api/sensors/data" {
		t.Errorf("default Backend.DataPath = %q", cfg.Backend.DataPath)
	}
	if cfg.API.Listen != ":8080" {
		t.Errorf("default API.Listen = %q", cfg.API.Listen)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing configuration file")
	}
}
