// Package server provides the HTTP surface of worldclock.
//
// Available endpoints:
//   - GET  /                        : Web UI showing every clock and the mock devices
//   - GET  /metrics                 : Prometheus metrics endpoint
//   - GET  /health                  : Liveness probe (always returns 200)
//   - GET  /ready                   : Readiness probe (200 after a successful, error-free refresh)
//   - GET  /api/zones               : Zones accepted by /api/time
//   - GET  /api/time?zone=          : One lookup; empty zone or "ip" uses IP geolocation
//   - GET  /api/clocks              : Display state of every configured zone
//   - POST /api/refresh             : Start a refresh of all zones
//   - GET  /api/devices             : Mock device lists
//   - POST /api/devices/connect     : {"name": "..."}
//   - POST /api/devices/disconnect  : {"name": "..."}
//
// Every response carries an X-Request-ID header, copied from the request
// when present and generated otherwise.
//
// The server is configured with sensible timeout defaults:
//   - Read timeout: 15 seconds
//   - Write timeout: 15 seconds
//   - Idle timeout: 60 seconds
package server
