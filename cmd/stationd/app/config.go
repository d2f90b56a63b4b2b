package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses humane duration strings ("10s", "2m") from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", raw, err)
	}

	*d = Duration(parsed)
	return nil
}

// Config represents the main application configuration
type Config struct {
	Settings SettingsConfig `yaml:"settings"`
	Server   ServerConfig   `yaml:"server"`
	GPS      GPSConfig      `yaml:"gps"`
	Climate  ClimateConfig  `yaml:"climate"`
	Geiger   GeigerConfig   `yaml:"geiger"`
	Storage  StorageConfig  `yaml:"storage"`
	Poll     PollConfig     `yaml:"poll"`
}

// SettingsConfig represents global application settings
type SettingsConfig struct {
	LogLevel string `yaml:"logLevel"`
}

// ServerConfig represents the HTTP boundary settings
type ServerConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

// GPSConfig represents the positioning receiver settings
type GPSConfig struct {
	Address string   `yaml:"address"`
	Timeout Duration `yaml:"timeout"`
}

// ClimateConfig represents the temperature/humidity probe settings
type ClimateConfig struct {
	I2CBus     string   `yaml:"i2cBus"`
	Address    uint16   `yaml:"address"`
	Retries    int      `yaml:"retries"`
	RetryDelay Duration `yaml:"retryDelay"`
}

// GeigerConfig represents the radiation counter settings
type GeigerConfig struct {
	Port        string   `yaml:"port"`
	Baud        int      `yaml:"baud"`
	ReadTimeout Duration `yaml:"readTimeout"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	Path string `yaml:"path"`
}

// PollConfig represents the optional background sampling schedule
type PollConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

// LoadConfig reads and validates the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.GPS.Timeout <= 0 {
		c.GPS.Timeout = Duration(10 * time.Second)
	}
	if c.Geiger.ReadTimeout <= 0 {
		c.Geiger.ReadTimeout = Duration(3 * time.Second)
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data/readings.sqlite"
	}
	if c.Poll.Schedule == "" {
		c.Poll.Schedule = "@every 5m"
	}
}

func (c *Config) validate() error {
	if c.Geiger.Port == "" {
		return errors.New("geiger port is required")
	}
	return nil
}

// LogLevel maps the configured level name onto a slog level, defaulting to
// info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Settings.LogLevel) {
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
