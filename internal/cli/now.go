package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zgpcy/worldclock/internal/display"
	"github.com/zgpcy/worldclock/internal/timeapi"
)

func newNowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "now [zone]",
		Short: "Print the current date and time",
		Long: `Print the current date and time from the world time service.

Without a zone the service geolocates the caller by IP. With a zone,
it must be one of the identifiers listed by "timectl zones".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) == 1 {
				raw = args[0]
			}
			zone, ok := timeapi.ParseZone(raw)
			if !ok {
				return fmt.Errorf("unknown time zone %q (see \"timectl zones\")", raw)
			}

			client, err := opts.client(cmd)
			if err != nil {
				return err
			}

			res, err := client.FetchTime(cmd.Context(), zone)
			if err != nil {
				return errors.New(display.Message(err))
			}

			out := cmd.OutOrStdout()
			if opts.json {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			fmt.Fprintf(out, "Zone: %s\n", res.Zone)
			fmt.Fprintf(out, "Date: %s\n", res.Date)
			fmt.Fprintf(out, "Time: %s\n", res.Time)
			return nil
		},
	}
}
