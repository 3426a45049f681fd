// Package cli provides the timectl command-line interface.
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/zgpcy/worldclock/internal/devices"
	"github.com/zgpcy/worldclock/internal/logger"
	"github.com/zgpcy/worldclock/internal/timeapi"
)

// options holds the global flags
type options struct {
	baseURL  string
	timeout  time.Duration
	logLevel string
	json     bool
	devices  []string
}

// NewRootCmd builds the timectl command tree
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "timectl",
		Short: "Look up the current date and time for a world time zone",
		Long: `timectl queries the world time service and prints the current
date and time, either for the caller's IP-geolocated zone or for a
named IANA zone.

Examples:
  # Time for the zone of this machine's public IP
  timectl now

  # Time in Tokyo, as JSON
  timectl now Asia/Tokyo --json

  # List accepted zones
  timectl zones`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.baseURL, "base-url", timeapi.DefaultBaseURL, "Time service base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "Per-request timeout (0 = none)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "error", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "Output as JSON")

	root.AddCommand(
		newNowCmd(opts),
		newZonesCmd(opts),
		newDevicesCmd(opts),
		newVersionCmd(),
	)
	return root
}

// ExecuteContext runs the CLI with ctx
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (o *options) logger(cmd *cobra.Command) *logger.Logger {
	return logger.NewWithWriter(o.logLevel, cmd.ErrOrStderr())
}

func (o *options) client(cmd *cobra.Command) (*timeapi.Client, error) {
	return timeapi.NewClient(o.baseURL, o.logger(cmd), timeapi.WithTimeout(o.timeout))
}

func (o *options) registry() *devices.MockRegistry {
	if len(o.devices) == 0 {
		return devices.NewMockRegistry(nil)
	}
	names := make([]devices.Name, len(o.devices))
	for i, d := range o.devices {
		names[i] = devices.Name(d)
	}
	return devices.NewMockRegistry(names)
}
