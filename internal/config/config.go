package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
	"tinygo.org/x/bluetooth"

	"github.com/chaz8081/blescreen/internal/permission"
)

// Config holds all application configuration.
type Config struct {
	Bluetooth   BluetoothConfig   `yaml:"bluetooth"`
	Scan        ScanConfig        `yaml:"scan"`
	Connect     ConnectConfig     `yaml:"connect"`
	Permissions PermissionsConfig `yaml:"permissions"`
	Locale      string            `yaml:"locale"`
	LogLevel    string            `yaml:"log_level"`
}

// BluetoothConfig holds the initial toggle state and stack start options.
type BluetoothConfig struct {
	Enabled   bool `yaml:"enabled"`
	ShowAlert bool `yaml:"show_alert"`
}

// ScanConfig holds discovery settings.
type ScanConfig struct {
	DurationSeconds int      `yaml:"duration_seconds"`
	ServiceUUIDs    []string `yaml:"service_uuids"`
	AllowDuplicates bool     `yaml:"allow_duplicates"`
	AutoStart       bool     `yaml:"auto_start"` // scan as soon as the screen activates
	FreshList       bool     `yaml:"fresh_list"` // clear the list when a new scan starts
}

// ConnectConfig holds connection settings.
type ConnectConfig struct {
	TimeoutSeconds   int  `yaml:"timeout_seconds"`
	RetrieveServices bool `yaml:"retrieve_services"`
}

// PermissionsConfig selects the permission provider.
type PermissionsConfig struct {
	Provider string   `yaml:"provider"` // "bluez" or "static"
	Granted  []string `yaml:"granted"`  // capabilities granted by the static provider
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "blescreen")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Bluetooth: BluetoothConfig{
			Enabled:   true,
			ShowAlert: false,
		},
		Scan: ScanConfig{
			DurationSeconds: 10,
			AllowDuplicates: true,
			AutoStart:       true,
			FreshList:       true,
		},
		Connect: ConnectConfig{
			TimeoutSeconds:   10,
			RetrieveServices: true,
		},
		Permissions: PermissionsConfig{
			Provider: "bluez",
			Granted:  []string{"location", "bluetooth_scan", "bluetooth_connect"},
		},
		Locale:   "en",
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Scan.DurationSeconds <= 0 {
		return fmt.Errorf("scan.duration_seconds must be > 0")
	}

	for _, raw := range c.Scan.ServiceUUIDs {
		if _, err := bluetooth.ParseUUID(raw); err != nil {
			return fmt.Errorf("scan.service_uuids: invalid UUID %q: %w", raw, err)
		}
	}

	if c.Connect.TimeoutSeconds <= 0 {
		return fmt.Errorf("connect.timeout_seconds must be > 0")
	}

	switch c.Permissions.Provider {
	case "bluez":
	case "static":
		for _, name := range c.Permissions.Granted {
			if _, err := permission.ParseCapability(name); err != nil {
				return fmt.Errorf("permissions.granted: %w", err)
			}
		}
	default:
		return fmt.Errorf("permissions.provider must be \"bluez\" or \"static\", got %q", c.Permissions.Provider)
	}

	if _, err := language.Parse(c.Locale); err != nil {
		return fmt.Errorf("locale %q is not a valid language tag: %w", c.Locale, err)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ScanDuration returns scan.duration_seconds as a Duration.
func (c *Config) ScanDuration() time.Duration {
	return time.Duration(c.Scan.DurationSeconds) * time.Second
}

// ConnectTimeout returns connect.timeout_seconds as a Duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Connect.TimeoutSeconds) * time.Second
}

// GrantedCapabilities returns permissions.granted as capabilities, skipping
// unknown names (Validate rejects them).
func (c *Config) GrantedCapabilities() []permission.Capability {
	var caps []permission.Capability
	for _, name := range c.Permissions.Granted {
		if cp, err := permission.ParseCapability(name); err == nil {
			caps = append(caps, cp)
		}
	}
	return caps
}

// ParseLogLevel maps a log_level value to a slog.Level. Unknown values
// default to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultHeader = "# blescreen configuration\n# Written with default values; edit as needed.\n\n"

// WriteDefault writes the default config to DefaultConfigPath if no file
// exists there. It returns the written path, or "" if a config already
// existed.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(defaultHeader), data...), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}
