// Package config provides configuration management for worldclock.
//
// This package handles loading configuration from YAML files, applying
// environment variable overrides, setting defaults, and validating the
// configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. YAML configuration file
//  3. Default values (lowest priority)
//
// Supported environment variables:
//   - WORLDCLOCK_BASE_URL: Time service base URL
//   - WORLDCLOCK_API_TIMEOUT: Per-request timeout in seconds (0 = none)
//   - WORLDCLOCK_REQUESTS_PER_MINUTE: Outbound request pacing (0 = unlimited)
//   - WORLDCLOCK_ZONES: Comma-separated zones, "ip" for IP lookup
//   - WORLDCLOCK_REFRESH_INTERVAL: Refresh interval in seconds (minimum: 10)
//   - WORLDCLOCK_HTTP_PORT: HTTP server port (1-65535)
//   - WORLDCLOCK_LOG_LEVEL: Log level (debug, info, warn, error)
//   - WORLDCLOCK_DISPLAY_POLICY: preserve or replace
//
// Example configuration file (config.yaml):
//
//	time_service:
//	  base_url: "http://worldtimeapi.org"
//	  api_timeout: 0
//	  requests_per_minute: 30
//
//	zones:
//	  - ""                # IP-geolocated
//	  - "America/New_York"
//	  - "Europe/London"
//
//	refresh_interval: 300
//	retry:
//	  max_elapsed: 30
//	display:
//	  policy: preserve
//	devices: ["Device 1", "Device 2", "Device 3"]
//	http_port: 8080
//	log_level: "info"
package config
