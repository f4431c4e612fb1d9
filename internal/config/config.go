package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	DataDir  string        `yaml:"data_dir"`
	Remote   RemoteConfig  `yaml:"remote"`
	BLE      BLEConfig     `yaml:"ble"`
	Display  DisplayConfig `yaml:"display"`
	Sync     SyncConfig    `yaml:"sync"`
	LogLevel string        `yaml:"log_level"`
}

// RemoteConfig holds remote permit source settings.
type RemoteConfig struct {
	// URL overrides the permit source. Empty keeps the URL stored in
	// the permit store (seeded with the default source on first run).
	URL string `yaml:"url"`
}

// BLEConfig holds Bluetooth settings shared by the peripheral server
// and the push client.
type BLEConfig struct {
	DeviceName  string   `yaml:"device_name"`
	ScanTimeout Duration `yaml:"scan_timeout"`
}

// Duration wraps time.Duration so YAML configs can use values like "10s".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// DisplayConfig holds settings for the physical display.
type DisplayConfig struct {
	Flipped bool `yaml:"flipped"`
}

// SyncConfig holds the remote sync schedule.
type SyncConfig struct {
	Schedule string `yaml:"schedule"` // cron expression
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "permitsync")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".local", "share", "permitsync")

	return &Config{
		DataDir: dataDir,
		BLE: BLEConfig{
			DeviceName:  "permitsync",
			ScanTimeout: Duration(10 * time.Second),
		},
		Sync: SyncConfig{
			Schedule: "0 6 * * *", // daily at 06:00
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in data_dir is expanded to the user's home
// directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.DataDir = expandTilde(cfg.DataDir)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}

	if c.BLE.DeviceName == "" {
		return fmt.Errorf("ble.device_name must not be empty")
	}

	if c.BLE.ScanTimeout <= 0 {
		return fmt.Errorf("ble.scan_timeout must be > 0")
	}

	if c.Sync.Schedule != "" {
		if _, err := cron.ParseStandard(c.Sync.Schedule); err != nil {
			return fmt.Errorf("sync.schedule is not a valid cron expression: %w", err)
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// WriteDefault writes a commented default config to the default path if
// no config file exists yet. It returns the written path, or "" when a
// file already existed.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(DefaultConfigDir(), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	cfg := Default()
	body, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshaling default config: %w", err)
	}

	content := "# permitsync configuration\n# Edit and restart the daemon to apply.\n" + string(body)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// ParseLogLevel maps a config log level string to a slog.Level.
// Unknown values fall back to info.
func ParseLogLevel(s string) slog.Level {
	switch s {
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

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
