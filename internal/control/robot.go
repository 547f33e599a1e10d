package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/linefollow/internal/config"
	"github.com/banshee-data/linefollow/internal/linetrack"
	"github.com/banshee-data/linefollow/internal/monitoring"
	"github.com/banshee-data/linefollow/internal/odometry"
	"github.com/banshee-data/linefollow/internal/reflectance"
	"github.com/banshee-data/linefollow/internal/sensors"
	"github.com/banshee-data/linefollow/internal/telemetry"
	"github.com/banshee-data/linefollow/internal/timeutil"
)

// ErrNotInitialized is returned by Tick before a successful Init.
var ErrNotInitialized = errors.New("robot not initialized")

// Config holds everything needed to assemble a Robot.
type Config struct {
	EMAGain                float64
	WindowLength           int
	Monitor                linetrack.Config
	Geometry               odometry.Geometry
	OdometerUpdateInterval time.Duration
	Steering               Steering
}

// ConfigFromTuning resolves a tuning file into a robot Config.
func ConfigFromTuning(t *config.TuningConfig) Config {
	return Config{
		EMAGain:      t.GetEMAGain(),
		WindowLength: t.GetWindowLength(),
		Monitor: linetrack.Config{
			MistakeThreshold:  t.GetMistakeThreshold(),
			RecoveryThreshold: t.GetRecoveryThreshold(),
			Mode:              t.GetSignalMode(),
		},
		Geometry:               t.GetGeometry(),
		OdometerUpdateInterval: t.GetOdometerUpdateInterval(),
		Steering: Steering{
			Gain:      t.GetSteeringGain(),
			Deadband:  t.GetSteeringDeadband(),
			BaseSpeed: t.GetBaseSpeed(),
		},
	}
}

// Robot wires one sample source through the processing chain. It is driven
// from a single goroutine.
type Robot struct {
	source   sensors.Source
	reporter telemetry.Reporter
	clock    timeutil.Clock

	latch     *sensors.Latch
	processor *reflectance.Processor
	monitor   *linetrack.Monitor
	odometer  *odometry.Odometer
	steering  Steering

	initialized bool
	tick        uint64
}

// NewRobot assembles a robot. A nil reporter discards frames and a nil clock
// uses wall time.
func NewRobot(source sensors.Source, cfg Config, reporter telemetry.Reporter, clock timeutil.Clock) (*Robot, error) {
	if source == nil {
		return nil, errors.New("sample source is required")
	}
	if err := cfg.Geometry.Validate(); err != nil {
		return nil, err
	}
	processor, err := reflectance.NewProcessor(cfg.EMAGain, cfg.WindowLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create reflectance processor: %w", err)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if reporter == nil {
		reporter = telemetry.Reporters{}
	}

	latch := sensors.NewLatch(cfg.Geometry)
	return &Robot{
		source:    source,
		reporter:  reporter,
		clock:     clock,
		latch:     latch,
		processor: processor,
		monitor:   linetrack.NewMonitor(processor, cfg.Monitor),
		odometer:  odometry.NewOdometer(latch, latch, clock, cfg.OdometerUpdateInterval),
		steering:  cfg.Steering,
	}, nil
}

// Init seeds the filters from the first sample and tares the odometer.
func (r *Robot) Init() error {
	s, err := r.source.Sample()
	if err != nil {
		return err
	}
	r.latch.Set(s)
	r.processor.Init(r.latch.Reflectance())
	r.odometer.Tare()
	r.initialized = true
	r.tick = 0
	monitoring.Logf("control: initialized from %s", s)
	return nil
}

// Initialized reports whether Init has succeeded.
func (r *Robot) Initialized() bool { return r.initialized }

// Processor exposes the reflectance processor for queries.
func (r *Robot) Processor() *reflectance.Processor { return r.processor }

// Monitor exposes the drift monitor.
func (r *Robot) Monitor() *linetrack.Monitor { return r.monitor }

// Odometer exposes the pose estimator.
func (r *Robot) Odometer() *odometry.Odometer { return r.odometer }

// Tick runs one control step and reports its frame. Reporter failures are
// logged, not returned.
func (r *Robot) Tick() (telemetry.Frame, error) {
	if !r.initialized {
		return telemetry.Frame{}, ErrNotInitialized
	}
	s, err := r.source.Sample()
	if err != nil {
		return telemetry.Frame{}, err
	}
	r.latch.Set(s)

	prev := r.monitor.Current()
	snap := r.processor.Update(r.latch.Reflectance())
	mistake := r.monitor.Update()
	if mistake != prev {
		monitoring.Logf("control: tick %d %s -> %s (signal %.4f)", r.tick, prev, mistake, r.monitor.Signal())
	}
	r.odometer.Update()

	r.tick++
	frame := telemetry.Frame{
		Tick:       r.tick,
		Time:       r.clock.Now(),
		Left:       snap.Left,
		Right:      snap.Right,
		Difference: snap.Difference,
		Mistake:    mistake,
		Pose:       r.odometer.Pose(),
		Steer:      r.steering.Command(r.monitor.Signal()),
	}
	if err := r.reporter.Report(frame); err != nil {
		monitoring.Logf("control: report tick %d: %v", frame.Tick, err)
	}
	return frame, nil
}

// Run ticks every period on the robot's clock until ctx ends or the source
// is exhausted. Both end the run cleanly. Until Init succeeds each tick
// retries it; other sample errors skip the tick.
func (r *Robot) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("invalid tick period %v", period)
	}
	ticker := r.clock.NewTicker(period)
	defer ticker.Stop()
	return r.run(ctx, ticker.C())
}

func (r *Robot) run(ctx context.Context, ticks <-chan time.Time) error {
	if r.step() {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("control: stopping after %d ticks", r.tick)
			return nil
		case <-ticks:
			if r.step() {
				return nil
			}
		}
	}
}

// RunSimulated replays the source as fast as it yields samples, advancing
// clock by period before each tick. The robot must have been built with the
// same clock so odometer gating sees simulated time.
func (r *Robot) RunSimulated(ctx context.Context, clock *timeutil.MockClock, period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("invalid tick period %v", period)
	}
	if r.clock != timeutil.Clock(clock) {
		return errors.New("simulated run needs the robot's own clock")
	}
	if r.step() {
		return nil
	}
	for ctx.Err() == nil {
		clock.Advance(period)
		if r.step() {
			return nil
		}
	}
	monitoring.Logf("control: stopping after %d ticks", r.tick)
	return nil
}

// step runs Init or Tick and reports whether the run is over.
func (r *Robot) step() bool {
	var err error
	if !r.initialized {
		err = r.Init()
	} else {
		_, err = r.Tick()
	}
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		monitoring.Logf("control: source exhausted after %d ticks", r.tick)
		return true
	case errors.Is(err, sensors.ErrNoSample):
		monitoring.Debugf("control: waiting for first sample")
	default:
		monitoring.Logf("control: skipping tick: %v", err)
	}
	return false
}
