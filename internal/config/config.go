package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultFileName = "pagebeacon.yaml"

// AddressEnv overrides the collector listen address.
const AddressEnv = "PAGEBEACON_ADDRESS"

// Config captures the knobs for the collector and the simulator.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Beacon  BeaconConfig  `yaml:"beacon"`
	Logging LoggingConfig `yaml:"logging"`

	// Source indicates where the configuration originated (defaults or a file path).
	Source string `yaml:"-"`
}

// ServerConfig controls the collection endpoint.
type ServerConfig struct {
	Address      string `yaml:"address"`
	DatabasePath string `yaml:"database_path"`
}

// KafkaConfig enables forwarding of collected events. An empty broker list
// disables it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// BeaconConfig points simulated pages at a collector.
type BeaconConfig struct {
	Endpoint string `yaml:"endpoint"`
}

// LoggingConfig defines log verbosity and formatting.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the baseline configuration used when no overrides are supplied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:      "127.0.0.1:8123",
			DatabasePath: filepath.Join(ApplicationDirectory(), "events.db"),
		},
		Kafka: KafkaConfig{
			Topic: "analytics.page_events",
		},
		Beacon: BeaconConfig{
			Endpoint: "http://127.0.0.1:8123",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Source: "<defaults>",
	}
}

// ApplicationDirectory is the platform-specific data directory.
func ApplicationDirectory() string {
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		homeDirectory = "."
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDirectory, "Library", "Application Support", "PageBeacon")
	case "windows":
		return filepath.Join(homeDirectory, "AppData", "Roaming", "PageBeacon")
	default: // linux and others
		return filepath.Join(homeDirectory, ".local", "share", "PageBeacon")
	}
}

// Load reads configuration from disk if present, otherwise returning defaults.
// When path is empty, the loader attempts to read ./pagebeacon.yaml but
// tolerates a missing file. AddressEnv, when set, wins over both.
func Load(path string) (Config, error) {
	cfg := Default()

	candidate := strings.TrimSpace(path)
	explicit := candidate != ""
	if !explicit {
		candidate = DefaultFileName
	}

	file, err := os.Open(candidate)
	switch {
	case err == nil:
		defer file.Close()
		if err := decode(file, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %q: %w", candidate, err)
		}
		cfg.Source = candidate
	case errors.Is(err, os.ErrNotExist):
		if explicit {
			return cfg, fmt.Errorf("config file %q not found", candidate)
		}
	default:
		return cfg, fmt.Errorf("open config file %q: %w", candidate, err)
	}

	if address := strings.TrimSpace(os.Getenv(AddressEnv)); address != "" {
		cfg.Server.Address = address
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate ensures essential configuration values are present and sensible.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Address) == "" {
		return errors.New("server.address must not be empty")
	}
	if strings.TrimSpace(c.Server.DatabasePath) == "" {
		return errors.New("server.database_path must not be empty")
	}
	if len(c.Kafka.Brokers) > 0 && strings.TrimSpace(c.Kafka.Topic) == "" {
		return errors.New("kafka.topic must not be empty when kafka.brokers is set")
	}
	endpoint, err := url.Parse(c.Beacon.Endpoint)
	if err != nil || endpoint.Scheme == "" || endpoint.Host == "" {
		return fmt.Errorf("beacon.endpoint must be an absolute URL, got %q", c.Beacon.Endpoint)
	}
	if _, err := NormalizeLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if _, err := NormalizeFormat(c.Logging.Format); err != nil {
		return err
	}
	return nil
}

func (c *Config) normalize() {
	defaults := Default()

	c.Server.Address = strings.TrimSpace(c.Server.Address)
	if c.Server.Address == "" {
		c.Server.Address = defaults.Server.Address
	}
	if strings.TrimSpace(c.Server.DatabasePath) == "" {
		c.Server.DatabasePath = defaults.Server.DatabasePath
	}
	c.Beacon.Endpoint = strings.TrimRight(strings.TrimSpace(c.Beacon.Endpoint), "/")
	if c.Beacon.Endpoint == "" {
		c.Beacon.Endpoint = defaults.Beacon.Endpoint
	}

	brokers := c.Kafka.Brokers[:0]
	for _, broker := range c.Kafka.Brokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	c.Kafka.Brokers = brokers
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = nil
	}

	if level, err := NormalizeLogLevel(c.Logging.Level); err == nil {
		c.Logging.Level = level
	}
	if format, err := NormalizeFormat(c.Logging.Format); err == nil {
		c.Logging.Format = format
	}
}

// NormalizeLogLevel validates and lowercases known logging levels.
func NormalizeLogLevel(level string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return "info", nil
	case "debug":
		return "debug", nil
	case "warn", "warning":
		return "warn", nil
	case "error":
		return "error", nil
	default:
		return "", fmt.Errorf("unsupported log level %q", level)
	}
}

// NormalizeFormat validates and canonicalizes logging format identifiers.
func NormalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return "json", nil
	case "console", "text":
		return "console", nil
	default:
		return "", fmt.Errorf("unsupported log format %q", format)
	}
}
