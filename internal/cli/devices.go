package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zgpcy/worldclock/internal/devices"
)

func newDevicesCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "Inspect the mock device registry",
		Long: `Inspect the mock device registry.

The registry is a fixed in-memory list; no Bluetooth or other radio is
used. State lasts only for the lifetime of one command.`,
	}
	cmd.PersistentFlags().StringSliceVar(&opts.devices, "device", nil, "Seed device names (repeatable)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List available and connected devices",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return printDevices(cmd.OutOrStdout(), opts.registry(), opts.json)
			},
		},
		&cobra.Command{
			Use:   "connect <name>...",
			Short: "Connect one or more devices and print the result",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				reg := opts.registry()
				for _, name := range args {
					if err := reg.Connect(devices.Name(name)); err != nil {
						return err
					}
				}
				return printDevices(cmd.OutOrStdout(), reg, opts.json)
			},
		},
	)
	return cmd
}

func printDevices(w io.Writer, reg devices.Registry, asJSON bool) error {
	available := reg.ListAvailable()
	connected := reg.ListConnected()

	if asJSON {
		return json.NewEncoder(w).Encode(map[string][]devices.Name{
			"available": available,
			"connected": connected,
		})
	}

	fmt.Fprintf(w, "Available: %s\n", joinNames(available))
	fmt.Fprintf(w, "Connected: %s\n", joinNames(connected))
	return nil
}

func joinNames(names []devices.Name) string {
	if len(names) == 0 {
		return "none"
	}
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}
