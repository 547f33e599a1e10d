package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/linefollow/internal/config"
	"github.com/banshee-data/linefollow/internal/control"
	"github.com/banshee-data/linefollow/internal/dashboard"
	"github.com/banshee-data/linefollow/internal/db"
	"github.com/banshee-data/linefollow/internal/monitoring"
	"github.com/banshee-data/linefollow/internal/sensors"
	"github.com/banshee-data/linefollow/internal/telemetry"
	"github.com/banshee-data/linefollow/internal/timeutil"
)

const recorderCapacity = 3000

type runOptions struct {
	configPath string
	port       string
	baud       int
	replay     string
	fast       bool
	dbPath     string
	listen     string
	hold       bool
	debug      bool
}

func newRunCmd() *cobra.Command {
	var o runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the control loop on a serial bridge or a replay file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRobot(cmd.Context(), o)
		},
	}
	cmd.Flags().StringVar(&o.configPath, "config", "", "Tuning config file (.json, .yaml); defaults when empty")
	cmd.Flags().StringVar(&o.port, "port", "", "Serial device of the sensor bridge")
	cmd.Flags().IntVar(&o.baud, "baud", sensors.DefaultPortOptions().BaudRate, "Serial baud rate")
	cmd.Flags().StringVar(&o.replay, "replay", "", "Replay samples from a fixture file instead of a serial port")
	cmd.Flags().BoolVar(&o.fast, "fast", false, "Replay as fast as possible on simulated time")
	cmd.Flags().StringVar(&o.dbPath, "db", "", "Record the run into this sqlite database")
	cmd.Flags().StringVar(&o.listen, "listen", "", "Serve the debug dashboard on this address (e.g. :8080)")
	cmd.Flags().BoolVar(&o.hold, "hold", false, "Keep the dashboard up after a replay ends, until interrupted")
	cmd.Flags().BoolVar(&o.debug, "debug", false, "Enable per-tick debug logging")
	cmd.MarkFlagsMutuallyExclusive("port", "replay")
	cmd.MarkFlagsOneRequired("port", "replay")
	return cmd
}

func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	cfg, err := config.LoadTuningConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func runRobot(ctx context.Context, o runOptions) error {
	monitoring.SetDebug(o.debug)
	if o.fast && o.replay == "" {
		return errors.New("--fast requires --replay")
	}

	tuning, err := loadTuning(o.configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	recorder := telemetry.NewRecorder(recorderCapacity)
	totals := telemetry.NewAccumulator()
	reporters := telemetry.Reporters{recorder, totals}
	var stream *telemetry.Broadcaster
	if o.listen != "" {
		stream = telemetry.NewBroadcaster()
		reporters = append(reporters, stream)
	}
	if every := tuning.GetReportEvery(); every > 0 {
		reporters = append(reporters, telemetry.NewLogReporter(every))
	}

	sourceLabel := "serial:" + o.port
	if o.replay != "" {
		sourceLabel = "replay:" + o.replay
	}

	var database *db.DB
	if o.dbPath != "" {
		database, err = db.NewDB(o.dbPath)
		if err != nil {
			return fmt.Errorf("failed to open run database: %w", err)
		}
		defer database.Close()

		run, err := database.CreateRun(time.Now(), sourceLabel, tuning)
		if err != nil {
			return err
		}
		reporters = append(reporters, database.NewFrameRecorder(run.ID))
		monitoring.Logf("recording run %s to %s", run.ID, o.dbPath)
	}

	var (
		source       sensors.Source
		serialSource *sensors.SerialSource
	)
	if o.replay != "" {
		replay, err := sensors.LoadReplaySource(o.replay)
		if err != nil {
			return err
		}
		source = replay
		monitoring.Logf("replaying %d samples from %s", replay.Remaining(), o.replay)
	} else {
		serialSource, err = sensors.OpenSerialSource(o.port, sensors.PortOptions{BaudRate: o.baud})
		if err != nil {
			return err
		}
		// Closing the port unblocks the scanner after the routines stop.
		defer serialSource.Close()
		source = serialSource
	}

	var (
		clock     timeutil.Clock = timeutil.RealClock{}
		simulated *timeutil.MockClock
	)
	if o.fast {
		simulated = timeutil.NewMockClock(time.Now())
		clock = simulated
	}

	robot, err := control.NewRobot(source, control.ConfigFromTuning(tuning), reporters, clock)
	if err != nil {
		return err
	}

	// Background routines stop before the port and database close.
	var wg sync.WaitGroup
	defer func() {
		cancel()
		if stream != nil {
			stream.Close()
		}
		wg.Wait()
	}()

	if serialSource != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := serialSource.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				monitoring.Logf("failed to monitor serial port: %v", err)
			}
			monitoring.Logf("monitor routine terminated")
		}()
	}

	if o.listen != "" {
		server := dashboard.NewServer(dashboard.Config{Address: o.listen, Recorder: recorder, Stream: stream, DB: database})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Start(ctx); err != nil {
				monitoring.Logf("dashboard failed: %v", err)
				cancel()
			}
		}()
	}

	period := tuning.GetTickPeriod()
	if simulated != nil {
		err = robot.RunSimulated(ctx, simulated, period)
	} else {
		err = robot.Run(ctx, period)
	}
	if err != nil {
		return err
	}

	summary := totals.Summary()
	monitoring.Logf("run finished: frames=%d drifts=%d on_line=%d left=%d right=%d diff_mean=%.4f diff_stddev=%.4f final=(%.3f, %.3f, %.1f°)",
		summary.Frames, summary.DriftEpisodes, summary.TicksOnLine, summary.TicksLeft, summary.TicksRight,
		summary.DifferenceMean, summary.DifferenceStdDev,
		summary.FinalPose.X, summary.FinalPose.Y, summary.FinalPose.Heading)

	if o.hold && o.listen != "" && ctx.Err() == nil {
		monitoring.Logf("holding dashboard on %s; interrupt to exit", o.listen)
		<-ctx.Done()
	}
	return nil
}
