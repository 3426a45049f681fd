// Package collector keeps the world clocks fresh and exports them as
// Prometheus metrics.
//
// ClockCollector subscribes to a TimeSource (normally *timeapi.Client) and
// applies every lookup outcome to a per-zone display.Holder. Lookups made
// outside the refresh loop, such as those served by the HTTP API, update the
// holders too.
//
// The collector exposes the following metrics:
//   - worldclock_lookup_up: 1 if the zone's last lookup succeeded
//   - worldclock_lookup_duration_seconds: duration of the zone's last refresh lookup
//   - worldclock_clock_skew_seconds: remote time minus local time at the last success
//   - worldclock_lookup_errors_total: failed lookups by zone and error kind
//   - worldclock_last_refresh_timestamp_seconds: completion time of the last refresh
//   - worldclock_devices: mock device counts by state
//   - worldclock_build_info: build version information
//
// Example usage:
//
//	client, _ := timeapi.NewClient(cfg.TimeService.BaseURL, log)
//	registry := devices.NewMockRegistry(cfg.DevicesList())
//	c := collector.NewClockCollector(client, registry, cfg, log)
//	prometheus.MustRegister(c)
//	c.StartBackgroundRefresh(ctx)
package collector
