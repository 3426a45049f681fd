package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zgpcy/worldclock/internal/timeapi"
	"github.com/zgpcy/worldclock/internal/version"
)

func newZonesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "zones",
		Short: "List the accepted time zone identifiers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			zones := timeapi.SortedZones()
			out := cmd.OutOrStdout()
			if opts.json {
				return json.NewEncoder(out).Encode(zones)
			}
			for _, z := range zones {
				fmt.Fprintln(out, z)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
