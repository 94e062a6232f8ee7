package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSessionName     = "TrafficAnalyzer"
	DefaultResolverTimeout = 2 * time.Second
	DefaultNumWorkers      = 4
	DefaultChannelSize     = 1024
	DefaultNATSSubject     = "tg.packets.tuples"
	DefaultListenAddr      = ":8080"
)

// SessionConfig describes a single analysis session.
type SessionConfig struct {
	Name                string `yaml:"name"`
	InputPath           string `yaml:"input_path"`
	NumWorkers          int    `yaml:"num_workers"`
	SizeOfPacketChannel int    `yaml:"size_of_packet_channel"`
}

// ResolverConfig holds the reverse DNS settings.
type ResolverConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Timeout   string `yaml:"timeout"`
	DNSServer string `yaml:"dns_server"`
}

// RenderRuleDef defines a prefix based node rule.
type RenderRuleDef struct {
	Prefix string `yaml:"prefix"`
	Shape  string `yaml:"shape"`
	Color  string `yaml:"color"`
}

// FlagRuleDef defines an origin/destination based edge rule.
type FlagRuleDef struct {
	Origins      []string `yaml:"origins"`
	Destinations []string `yaml:"destinations"`
	Color        string   `yaml:"color"`
}

// LabelDef overrides the display label of a single address.
type LabelDef struct {
	Address string `yaml:"address"`
	Label   string `yaml:"label"`
}

// RulesConfig holds all rendering rules. Order is significant.
type RulesConfig struct {
	Render    []RenderRuleDef `yaml:"render"`
	Flags     []FlagRuleDef   `yaml:"flags"`
	Labels    []LabelDef      `yaml:"labels"`
	EdgeColor string          `yaml:"edge_color"`
}

// ClickHouseConfig holds the connection settings for the ClickHouse writer.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SQLiteConfig holds the settings for the SQLite writer.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// WriterDef defines a single output writer.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	RootPath   string           `yaml:"root_path"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	SQLite     SQLiteConfig     `yaml:"sqlite"`
}

// OutputConfig lists the writers run at the end of a session.
type OutputConfig struct {
	Writers []WriterDef `yaml:"writers"`
}

// ProbeConfig holds the NATS transport settings shared by tg-probe and tg-engine.
type ProbeConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// APIConfig holds the HTTP API settings.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// GeoIPConfig points at an optional MaxMind country database.
type GeoIPConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Session  SessionConfig  `yaml:"session"`
	Resolver ResolverConfig `yaml:"resolver"`
	Rules    RulesConfig    `yaml:"rules"`
	Output   OutputConfig   `yaml:"output"`
	Probe    ProbeConfig    `yaml:"probe"`
	API      APIConfig      `yaml:"api"`
	GeoIP    GeoIPConfig    `yaml:"geoip"`
}

// Default returns a configuration usable without a config file.
func Default() *Config {
	cfg := &Config{
		Resolver: ResolverConfig{Enabled: true},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault loads filePath when it exists and returns the defaults
// otherwise.
func LoadOrDefault(filePath string) (*Config, error) {
	if _, err := os.Stat(filePath); errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return LoadConfig(filePath)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Config{
		Resolver: ResolverConfig{Enabled: true},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.applyDefaults()
	if _, err := cfg.ResolverTimeout(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Session.Name == "" {
		c.Session.Name = DefaultSessionName
	}
	if c.Session.NumWorkers <= 0 {
		c.Session.NumWorkers = DefaultNumWorkers
	}
	if c.Session.SizeOfPacketChannel <= 0 {
		c.Session.SizeOfPacketChannel = DefaultChannelSize
	}
	if c.Resolver.Timeout == "" {
		c.Resolver.Timeout = DefaultResolverTimeout.String()
	}
	if c.Probe.Subject == "" {
		c.Probe.Subject = DefaultNATSSubject
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = DefaultListenAddr
	}
}

// ResolverTimeout returns the parsed per-lookup timeout.
func (c *Config) ResolverTimeout() (time.Duration, error) {
	timeout, err := time.ParseDuration(c.Resolver.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid resolver timeout: %w", err)
	}
	if timeout <= 0 {
		return 0, fmt.Errorf("resolver timeout must be a positive duration")
	}
	return timeout, nil
}
