package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/zgpcy/worldclock/internal/devices"
	"github.com/zgpcy/worldclock/internal/display"
	"github.com/zgpcy/worldclock/internal/logger"
	"github.com/zgpcy/worldclock/internal/timeapi"
	"gopkg.in/yaml.v3"
)

// Configuration validation constants
const (
	MinRefreshInterval = 10    // Minimum refresh interval in seconds
	MinPort            = 1     // Minimum valid port number
	MaxPort            = 65535 // Maximum valid port number
	MaxAPITimeout      = 300   // Upper bound for api_timeout in seconds

	// Default values
	DefaultRefreshInterval      = 300 // 5 minutes in seconds
	DefaultHTTPPort             = 8080
	DefaultLogLevel             = "info"
	DefaultRetryInitialInterval = 1 // seconds
)

// TimeService configures the upstream time API
type TimeService struct {
	BaseURL           string `yaml:"base_url"`
	APITimeout        int    `yaml:"api_timeout"`         // seconds, 0 = no override
	RequestsPerMinute int    `yaml:"requests_per_minute"` // 0 = unlimited
}

// Retry configures retries of network failures in the background refresh
type Retry struct {
	MaxElapsed      int `yaml:"max_elapsed"`      // seconds, 0 = no retries
	InitialInterval int `yaml:"initial_interval"` // seconds
}

// Display configures the per-zone result holders
type Display struct {
	Policy string `yaml:"policy"`
}

// Config represents the application configuration
type Config struct {
	TimeService     TimeService `yaml:"time_service"`
	Zones           []string    `yaml:"zones"`
	RefreshInterval int         `yaml:"refresh_interval"` // seconds
	Retry           Retry       `yaml:"retry"`
	Display         Display     `yaml:"display"`
	Devices         []string    `yaml:"devices"`
	HTTPPort        int         `yaml:"http_port"`
	LogLevel        string      `yaml:"log_level"`
}

// Load loads configuration from a YAML file and applies environment variable overrides.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		// #nosec G304 -- Config file path is provided by administrator via CLI flag, not user input
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment variable error: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadEnvFile reads KEY=VALUE pairs from a dotenv file into the process
// environment so they feed the WORLDCLOCK_* overrides. Variables already set
// win over the file. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults sets default values for configuration
func applyDefaults(cfg *Config) {
	if cfg.TimeService.BaseURL == "" {
		cfg.TimeService.BaseURL = timeapi.DefaultBaseURL
	}
	// nil means unset; an explicit empty list is caught by validate
	if cfg.Zones == nil {
		cfg.Zones = []string{""}
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.Retry.InitialInterval == 0 {
		cfg.Retry.InitialInterval = DefaultRetryInitialInterval
	}
	if cfg.Display.Policy == "" {
		cfg.Display.Policy = string(display.PreserveOnError)
	}
	if cfg.HTTPPort == 0 {
		cfg.HTTPPort = DefaultHTTPPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
}

// envInt reads an integer environment variable into dst when set
func envInt(name string, dst *int) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	trimmed := strings.TrimSpace(val)
	if !isDecimal(trimmed) {
		return fmt.Errorf("invalid %s: must be a decimal integer, got %q", name, val)
	}
	// cast parses with base 0, so leading zeros would read as octal
	digits := strings.TrimLeft(strings.TrimLeft(trimmed, "+-"), "0")
	if digits == "" {
		digits = "0"
	}
	if strings.HasPrefix(trimmed, "-") {
		digits = "-" + digits
	}
	i, err := cast.ToIntE(digits)
	if err != nil {
		return fmt.Errorf("invalid %s: must be an integer, got %q", name, val)
	}
	*dst = i
	return nil
}

// isDecimal reports whether s is an optionally signed run of ASCII digits
func isDecimal(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv("WORLDCLOCK_BASE_URL"); val != "" {
		cfg.TimeService.BaseURL = val
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"WORLDCLOCK_API_TIMEOUT", &cfg.TimeService.APITimeout},
		{"WORLDCLOCK_REQUESTS_PER_MINUTE", &cfg.TimeService.RequestsPerMinute},
		{"WORLDCLOCK_REFRESH_INTERVAL", &cfg.RefreshInterval},
		{"WORLDCLOCK_HTTP_PORT", &cfg.HTTPPort},
	}
	for _, e := range ints {
		if err := envInt(e.name, e.dst); err != nil {
			return err
		}
	}

	if val := os.Getenv("WORLDCLOCK_LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}

	if val := os.Getenv("WORLDCLOCK_DISPLAY_POLICY"); val != "" {
		cfg.Display.Policy = val
	}

	// Comma-separated zones, "ip" for the IP lookup
	// Example: WORLDCLOCK_ZONES="ip,Europe/London,Asia/Tokyo"
	if val := os.Getenv("WORLDCLOCK_ZONES"); val != "" {
		var zones []string
		for _, z := range strings.Split(val, ",") {
			z = strings.TrimSpace(z)
			if z == "ip" {
				z = ""
			}
			zones = append(zones, z)
		}
		cfg.Zones = zones
	}

	return nil
}

// validate validates the configuration
func validate(cfg *Config) error {
	u, err := url.Parse(cfg.TimeService.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("time_service.base_url must be an http(s) URL, got %q", cfg.TimeService.BaseURL)
	}

	if cfg.TimeService.APITimeout < 0 {
		return fmt.Errorf("time_service.api_timeout cannot be negative, got %d", cfg.TimeService.APITimeout)
	}
	if cfg.TimeService.APITimeout > MaxAPITimeout {
		return fmt.Errorf("time_service.api_timeout should not exceed %d seconds, got %d", MaxAPITimeout, cfg.TimeService.APITimeout)
	}
	if cfg.TimeService.RequestsPerMinute < 0 {
		return fmt.Errorf("time_service.requests_per_minute cannot be negative, got %d", cfg.TimeService.RequestsPerMinute)
	}

	if len(cfg.Zones) == 0 {
		return fmt.Errorf("no zones configured")
	}
	seen := make(map[timeapi.Zone]bool, len(cfg.Zones))
	for i, z := range cfg.Zones {
		zone, ok := timeapi.ParseZone(z)
		if !ok {
			return fmt.Errorf("zone at index %d is not a known time zone: %q", i, z)
		}
		if seen[zone] {
			return fmt.Errorf("zone %q configured more than once", zone.String())
		}
		seen[zone] = true
	}

	if cfg.RefreshInterval < MinRefreshInterval {
		return fmt.Errorf("refresh_interval must be at least %d seconds, got %d", MinRefreshInterval, cfg.RefreshInterval)
	}

	if cfg.Retry.MaxElapsed < 0 {
		return fmt.Errorf("retry.max_elapsed cannot be negative, got %d", cfg.Retry.MaxElapsed)
	}
	if cfg.Retry.InitialInterval <= 0 {
		return fmt.Errorf("retry.initial_interval must be positive, got %d", cfg.Retry.InitialInterval)
	}

	if _, err := display.ParsePolicy(cfg.Display.Policy); err != nil {
		return err
	}

	names := make(map[string]bool, len(cfg.Devices))
	for i, d := range cfg.Devices {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("device at index %d has empty name", i)
		}
		if names[d] {
			return fmt.Errorf("device %q listed more than once", d)
		}
		names[d] = true
	}

	if cfg.HTTPPort < MinPort || cfg.HTTPPort > MaxPort {
		return fmt.Errorf("http_port must be between %d and %d", MinPort, MaxPort)
	}

	if !logger.ValidLevel(cfg.LogLevel) {
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}

	return nil
}

// ZoneList returns the configured zones as lookup identifiers
func (c *Config) ZoneList() []timeapi.Zone {
	out := make([]timeapi.Zone, 0, len(c.Zones))
	for _, z := range c.Zones {
		zone, _ := timeapi.ParseZone(z)
		out = append(out, zone)
	}
	return out
}

// DevicesList returns the configured mock device names, or nil for the defaults
func (c *Config) DevicesList() []devices.Name {
	if len(c.Devices) == 0 {
		return nil
	}
	out := make([]devices.Name, len(c.Devices))
	for i, d := range c.Devices {
		out[i] = devices.Name(d)
	}
	return out
}

// DisplayPolicy returns the parsed display policy
func (c *Config) DisplayPolicy() display.Policy {
	p, err := display.ParsePolicy(c.Display.Policy)
	if err != nil {
		return display.PreserveOnError
	}
	return p
}

// APITimeoutDuration returns the per-request timeout, zero when not overridden
func (c *Config) APITimeoutDuration() time.Duration {
	return time.Duration(c.TimeService.APITimeout) * time.Second
}

// RefreshIntervalDuration returns the refresh period
func (c *Config) RefreshIntervalDuration() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Second
}
