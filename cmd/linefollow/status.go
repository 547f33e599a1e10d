package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/banshee-data/linefollow/internal/httputil"
	"github.com/banshee-data/linefollow/internal/telemetry"
	"github.com/banshee-data/linefollow/internal/units"
)

// newStatusCmd queries the dashboard of a running `linefollow run --listen`.
func newStatusCmd(client httputil.HTTPClient) *cobra.Command {
	var url, unit string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the latest frame and run summary from a running dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateUnits(unit); err != nil {
				return err
			}
			base := strings.TrimRight(url, "/")
			if !strings.Contains(base, "://") {
				base = "http://" + base
			}
			out := cmd.OutOrStdout()

			var health map[string]string
			if err := httputil.GetJSON(client, base+"/health", &health); err != nil {
				return fmt.Errorf("dashboard %s unreachable: %w", base, err)
			}
			fmt.Fprintf(out, "dashboard %s (%s)\n", base, health["version"])

			var frame telemetry.Frame
			err := httputil.GetJSON(client, base+"/api/frame", &frame)
			var statusErr *httputil.StatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
				fmt.Fprintln(out, "no frames yet")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, telemetry.FormatFrame(frame))

			var s telemetry.Summary
			if err := httputil.GetJSON(client, base+"/api/summary", &s); err != nil {
				return err
			}
			fmt.Fprintf(out, "last %d frames: drifts=%d on_line=%d diff_stddev=%.4f distance=%.2f %s\n",
				s.Frames, s.DriftEpisodes, s.TicksOnLine, s.DifferenceStdDev,
				units.ConvertDistance(s.Distance, unit), unit)
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://127.0.0.1:8080", "Dashboard address")
	cmd.Flags().StringVar(&unit, "units", units.IN, "Distance units ("+units.GetValidUnitsString()+")")
	return cmd
}
