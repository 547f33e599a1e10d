package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/linefollow/internal/dashboard"
	"github.com/banshee-data/linefollow/internal/db"
	"github.com/banshee-data/linefollow/internal/telemetry"
	"github.com/banshee-data/linefollow/internal/units"
)

const defaultDBPath = "linefollow.db"

func openDB(path string) (*db.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("run database %s: %w", path, err)
	}
	return db.NewDB(path)
}

func validateUnits(unit string) error {
	if !units.IsValid(unit) {
		return fmt.Errorf("invalid --units %q; must be one of %s", unit, units.GetValidUnitsString())
	}
	return nil
}

func newRunsCmd() *cobra.Command {
	var dbPath, unit string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs with a summary of each",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateUnits(unit); err != nil {
				return err
			}
			database, err := openDB(dbPath)
			if err != nil {
				return err
			}
			defer database.Close()

			runs, err := database.Runs()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no runs recorded")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "RUN\tSTARTED\tSOURCE\tFRAMES\tDRIFTS\tDIFF STDDEV\tDISTANCE (%s)\n", unit)
			for _, run := range runs {
				frames, err := database.Frames(run.ID, 0)
				if err != nil {
					return fmt.Errorf("run %s: %w", run.ID, err)
				}
				s := telemetry.Summarize(frames)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.4f\t%.2f\n",
					run.ID, run.StartedAt.Format(time.RFC3339), run.Source,
					run.FrameCount, s.DriftEpisodes, s.DifferenceStdDev, units.ConvertDistance(s.Distance, unit))
			}
			return tw.Flush()
		},
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "Run database")
	cmd.Flags().StringVar(&unit, "units", units.IN, "Distance units ("+units.GetValidUnitsString()+")")

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a recorded run and its frames",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDB(dbPath)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.DeleteRun(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted run %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func newPlotCmd() *cobra.Command {
	var dbPath, runID, out string
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render a recorded run's odometer path to a PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDB(dbPath)
			if err != nil {
				return err
			}
			defer database.Close()

			var run db.Run
			if runID == "" || runID == "latest" {
				run, err = database.LatestRun()
			} else {
				run, err = database.GetRun(runID)
			}
			if err != nil {
				return err
			}
			frames, err := database.Frames(run.ID, 0)
			if err != nil {
				return err
			}
			if len(frames) == 0 {
				return errors.New("run has no frames")
			}

			if out == "" {
				out = fmt.Sprintf("path-%s.png", run.ID)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := dashboard.WritePathPNG(frames, f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d frames)\n", out, len(frames))
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", defaultDBPath, "Run database")
	cmd.Flags().StringVar(&runID, "run", "latest", "Run id to plot")
	cmd.Flags().StringVar(&out, "out", "", "Output PNG (default path-<run>.png)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the run database schema",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "Run database")

	withDB := func(fn func(cmd *cobra.Command, database *db.DB) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			database, err := db.OpenDB(dbPath)
			if err != nil {
				return err
			}
			defer database.Close()
			return fn(cmd, database)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: withDB(func(cmd *cobra.Command, database *db.DB) error {
			if err := database.MigrateUp(db.Migrations()); err != nil {
				return err
			}
			return printVersion(cmd, database)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: withDB(func(cmd *cobra.Command, database *db.DB) error {
			if err := database.MigrateDown(db.Migrations()); err != nil {
				return err
			}
			return printVersion(cmd, database)
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the schema version",
		RunE:  withDB(printVersion),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without migrating, to clear a dirty state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil || version < 0 {
				return fmt.Errorf("invalid version %q", args[0])
			}
			return withDB(func(cmd *cobra.Command, database *db.DB) error {
				if err := database.MigrateForce(db.Migrations(), version); err != nil {
					return err
				}
				return printVersion(cmd, database)
			})(cmd, args)
		},
	})
	return cmd
}

func printVersion(cmd *cobra.Command, database *db.DB) error {
	v, dirty, err := database.MigrateVersion(db.Migrations())
	if err != nil {
		return err
	}
	state := "clean"
	if dirty {
		state = "dirty"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", v, state)
	return nil
}
