package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-caddy/pkg/geo"
)

func newLocationCmd(a *app) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "location",
		Short: "Show the detected location",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := a.locator().Current(cmd.Context(), refresh)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, geo.Summary(r))
			fmt.Fprintf(out, "Coordinates: %.4f, %.4f (%s)\n", r.Location.Latitude, r.Location.Longitude, r.Location.Timezone)
			if !geo.IsAccurate(r) {
				fmt.Fprintln(out, "Location may be imprecise; weather uses the configured course location.")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "skip the cached location")
	return cmd
}

func newWeatherCmd(a *app) *cobra.Command {
	var location string
	cmd := &cobra.Command{
		Use:   "weather",
		Short: "Show golf weather for the course",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), a.weather().GolfWeather(cmd.Context(), location))
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "location label for the report")
	return cmd
}
