package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleConfig = `
session:
  name: office-capture
  input_path: ./captures
  num_workers: 2
resolver:
  enabled: false
  timeout: 500ms
rules:
  render:
    - prefix: "10."
      shape: box
      color: blue
  flags:
    - origins: ["10.0.0.1"]
      destinations: ["10.0.0.2", "10.0.0.3"]
      color: red
  labels:
    - address: 10.0.0.1
      label: gateway
output:
  writers:
    - type: dot
      enabled: true
      root_path: ./out
    - type: clickhouse
      enabled: false
      clickhouse:
        host: localhost
        port: 9000
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Session.Name != "office-capture" {
		t.Errorf("Expected session name 'office-capture', got '%s'", cfg.Session.Name)
	}
	if cfg.Session.NumWorkers != 2 {
		t.Errorf("Expected 2 workers, got %d", cfg.Session.NumWorkers)
	}
	if cfg.Session.SizeOfPacketChannel != DefaultChannelSize {
		t.Errorf("Expected default channel size %d, got %d", DefaultChannelSize, cfg.Session.SizeOfPacketChannel)
	}
	if cfg.Resolver.Enabled {
		t.Error("Expected resolver to be disabled")
	}
	timeout, err := cfg.ResolverTimeout()
	if err != nil || timeout != 500*time.Millisecond {
		t.Errorf("Expected 500ms timeout, got %v (err %v)", timeout, err)
	}
	if len(cfg.Rules.Render) != 1 || cfg.Rules.Render[0].Shape != "box" {
		t.Errorf("Unexpected render rules: %+v", cfg.Rules.Render)
	}
	if len(cfg.Rules.Flags) != 1 || len(cfg.Rules.Flags[0].Destinations) != 2 {
		t.Errorf("Unexpected flag rules: %+v", cfg.Rules.Flags)
	}
	if len(cfg.Rules.Labels) != 1 || cfg.Rules.Labels[0].Label != "gateway" {
		t.Errorf("Unexpected labels: %+v", cfg.Rules.Labels)
	}
	if len(cfg.Output.Writers) != 2 || cfg.Output.Writers[1].ClickHouse.Port != 9000 {
		t.Errorf("Unexpected writers: %+v", cfg.Output.Writers)
	}
	if cfg.Probe.Subject != DefaultNATSSubject {
		t.Errorf("Expected default subject, got '%s'", cfg.Probe.Subject)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Session.Name != DefaultSessionName {
		t.Errorf("Expected default session name, got '%s'", cfg.Session.Name)
	}
	if !cfg.Resolver.Enabled {
		t.Error("Expected resolver to be enabled by default")
	}
	if timeout, _ := cfg.ResolverTimeout(); timeout != DefaultResolverTimeout {
		t.Errorf("Expected default timeout %s, got %s", DefaultResolverTimeout, timeout)
	}
}

func TestParse_InvalidTimeout(t *testing.T) {
	for _, raw := range []string{"resolver: {timeout: soon}", "resolver: {timeout: -1s}"} {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Errorf("Expected error for %q", raw)
		}
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOrDefault(filepath.Join(dir, "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if cfg.Session.Name != DefaultSessionName || !cfg.Resolver.Enabled {
		t.Errorf("Expected defaults, got %+v", cfg.Session)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("session:\n  name: lab\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	cfg, err = LoadOrDefault(path)
	if err != nil {
		t.Fatalf("LoadOrDefault failed: %v", err)
	}
	if cfg.Session.Name != "lab" {
		t.Errorf("Expected session name 'lab', got '%s'", cfg.Session.Name)
	}
}
