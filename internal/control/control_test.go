package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/linefollow/internal/config"
	"github.com/banshee-data/linefollow/internal/linetrack"
	"github.com/banshee-data/linefollow/internal/monitoring"
	"github.com/banshee-data/linefollow/internal/odometry"
	"github.com/banshee-data/linefollow/internal/sensors"
	"github.com/banshee-data/linefollow/internal/telemetry"
	"github.com/banshee-data/linefollow/internal/timeutil"
)

func quiet(t *testing.T) {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })
}

func testConfig() Config {
	return Config{
		EMAGain:                0.5,
		WindowLength:           3,
		Monitor:                linetrack.DefaultConfig(),
		Geometry:               odometry.DefaultGeometry(),
		OdometerUpdateInterval: 50 * time.Millisecond,
		Steering:               Steering{Gain: 0.15, Deadband: 0.2, BaseSpeed: 0.3},
	}
}

type sourceFunc func() (sensors.Sample, error)

func (f sourceFunc) Sample() (sensors.Sample, error) { return f() }

func TestSteering_Command(t *testing.T) {
	s := Steering{Gain: 0.15, Deadband: 0.2, BaseSpeed: 0.3}

	tests := []struct {
		name        string
		reflectance float64
		wantTurn    float64
	}{
		{"centered", 0, 0},
		{"inside deadband", 0.1, 0},
		{"inside deadband negative", -0.19, 0},
		{"at deadband", 0.2, 0.03},
		{"drifted right", 0.5, 0.075},
		{"drifted left", -1, -0.15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := s.Command(tt.reflectance)
			assert.Equal(t, 0.3, cmd.Forward)
			assert.InDelta(t, tt.wantTurn, cmd.Turn, 1e-12)
		})
	}
}

func TestConfigFromTuning(t *testing.T) {
	cfg := ConfigFromTuning(config.DefaultTuningConfig())
	assert.Equal(t, 0.9, cfg.EMAGain)
	assert.Equal(t, 15, cfg.WindowLength)
	assert.Equal(t, linetrack.DefaultConfig(), cfg.Monitor)
	assert.Equal(t, odometry.DefaultGeometry(), cfg.Geometry)
	assert.Equal(t, 50*time.Millisecond, cfg.OdometerUpdateInterval)
	assert.Equal(t, Steering{Gain: 0.15, Deadband: 0.2, BaseSpeed: 0.3}, cfg.Steering)
}

func TestNewRobot_Errors(t *testing.T) {
	_, err := NewRobot(nil, testConfig(), nil, nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.WindowLength = 0
	_, err = NewRobot(sensors.NewReplaySource(nil), cfg, nil, nil)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.EMAGain = 2
	_, err = NewRobot(sensors.NewReplaySource(nil), cfg, nil, nil)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Geometry.WheelDiameter = 0
	_, err = NewRobot(sensors.NewReplaySource(nil), cfg, nil, nil)
	assert.Error(t, err)
}

func TestRobot_TickBeforeInit(t *testing.T) {
	r, err := NewRobot(sensors.NewReplaySource([]sensors.Sample{{}}), testConfig(), nil, nil)
	require.NoError(t, err)
	_, err = r.Tick()
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.False(t, r.Initialized())
}

func TestRobot_TickSequence(t *testing.T) {
	quiet(t)

	samples := []sensors.Sample{
		{LeftReflectance: 1, RightReflectance: 1},
		{LeftReflectance: 1.5, RightReflectance: 1, LeftCount: 100, RightCount: 100},
		{LeftReflectance: 1.5, RightReflectance: 1, LeftCount: 200, RightCount: 200},
		{LeftReflectance: 1, RightReflectance: 1, LeftCount: 300, RightCount: 300},
		{LeftReflectance: 1, RightReflectance: 1, LeftCount: 400, RightCount: 400},
		{LeftReflectance: 0.8, RightReflectance: 1, LeftCount: 500, RightCount: 500},
		{LeftReflectance: 0.8, RightReflectance: 1, LeftCount: 600, RightCount: 600},
	}
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	rec := telemetry.NewRecorder(16)
	r, err := NewRobot(sensors.NewReplaySource(samples), testConfig(), rec, clock)
	require.NoError(t, err)
	require.NoError(t, r.Init())
	assert.True(t, r.Initialized())

	want := []linetrack.Mistake{
		linetrack.MistakeNone,         // window [0 0 .5]
		linetrack.MistakeDriftedRight, // [0 .5 .5]
		linetrack.MistakeDriftedRight, // [.5 .5 0]
		linetrack.MistakeDriftedRight, // [.5 0 0] stays until crossing -0.1
		linetrack.MistakeDriftedRight, // [0 0 -.2]
		linetrack.MistakeNone,         // [0 -.2 -.2]
	}
	var frames []telemetry.Frame
	for i := range want {
		clock.Advance(60 * time.Millisecond)
		f, err := r.Tick()
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), f.Tick)
		assert.Equal(t, want[i], f.Mistake, "tick %d", f.Tick)
		frames = append(frames, f)
	}

	assert.InDelta(t, 0.5, frames[0].Difference.Raw, 1e-12)
	assert.InDelta(t, 0.25, frames[0].Difference.Filtered, 1e-12)
	assert.InDelta(t, 0.075, frames[1].Steer.Turn, 1e-12)
	assert.InDelta(t, 0.0, frames[0].Steer.Turn, 1e-12)

	geo := odometry.DefaultGeometry()
	last := frames[len(frames)-1]
	assert.InDelta(t, geo.Distance(600), last.Pose.Y, 1e-9)
	assert.InDelta(t, 0, last.Pose.X, 1e-9)
	assert.Equal(t, 360.0, last.Pose.Heading)
	assert.Equal(t, time.Unix(1000, 0).Add(360*time.Millisecond), last.Time)

	assert.Equal(t, 6, rec.Len())

	_, err = r.Tick()
	assert.Error(t, err)
}

func TestRobot_ReporterErrorDoesNotFailTick(t *testing.T) {
	quiet(t)

	boom := telemetry.ReporterFunc(func(telemetry.Frame) error { return errors.New("disk full") })
	src := sensors.NewReplaySource([]sensors.Sample{{}, {}})
	r, err := NewRobot(src, testConfig(), boom, timeutil.NewMockClock(time.Unix(0, 0)))
	require.NoError(t, err)
	require.NoError(t, r.Init())
	_, err = r.Tick()
	assert.NoError(t, err)
}

func TestRobot_RunLoopStopsOnEOF(t *testing.T) {
	quiet(t)

	src := sensors.NewReplaySource(make([]sensors.Sample, 3))
	rec := telemetry.NewRecorder(8)
	r, err := NewRobot(src, testConfig(), rec, timeutil.NewMockClock(time.Unix(0, 0)))
	require.NoError(t, err)

	ticks := make(chan time.Time)
	done := make(chan error, 1)
	go func() { done <- r.run(context.Background(), ticks) }()

	// The first sample seeds the robot before any tick; two ticks consume
	// the rest and the third finds the source exhausted.
	for i := 0; i < 3; i++ {
		ticks <- time.Time{}
	}
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop at end of source")
	}
	assert.Equal(t, 2, rec.Len())
}

func TestRobot_RunSkipsBadSamplesAndWaitsForFirst(t *testing.T) {
	quiet(t)

	calls := 0
	src := sourceFunc(func() (sensors.Sample, error) {
		calls++
		switch calls {
		case 1:
			return sensors.Sample{}, sensors.ErrNoSample
		case 3:
			return sensors.Sample{}, errors.New("checksum")
		}
		return sensors.Sample{LeftReflectance: 1, RightReflectance: 1}, nil
	})
	rec := telemetry.NewRecorder(8)
	r, err := NewRobot(src, testConfig(), rec, timeutil.NewMockClock(time.Unix(0, 0)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan time.Time)
	done := make(chan error, 1)
	go func() { done <- r.run(ctx, ticks) }()

	// call 1 (no sample yet), 2 (init), 3 (skipped), 4 and 5 (frames).
	for i := 0; i < 4; i++ {
		ticks <- time.Time{}
	}
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop on cancel")
	}
	assert.True(t, r.Initialized())
	assert.Equal(t, 2, rec.Len())
}

func TestRobot_RunOnMockClock(t *testing.T) {
	quiet(t)

	src := sensors.NewReplaySource(make([]sensors.Sample, 5))
	rec := telemetry.NewRecorder(8)
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	r, err := NewRobot(src, testConfig(), rec, clock)
	require.NoError(t, err)

	assert.Error(t, r.Run(context.Background(), 0))

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background(), 20*time.Millisecond) }()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-done:
			require.NoError(t, err)
			assert.Equal(t, 4, rec.Len())
			return
		case <-deadline:
			t.Fatal("Run did not finish")
		default:
			clock.Advance(20 * time.Millisecond)
			time.Sleep(time.Millisecond)
		}
	}
}

func TestRobot_RunSimulated(t *testing.T) {
	quiet(t)

	samples := make([]sensors.Sample, 6)
	for i := range samples {
		samples[i] = sensors.Sample{LeftReflectance: 1, RightReflectance: 1, LeftCount: int64(i * 100), RightCount: int64(i * 100)}
	}
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	rec := telemetry.NewRecorder(8)
	r, err := NewRobot(sensors.NewReplaySource(samples), testConfig(), rec, clock)
	require.NoError(t, err)

	assert.Error(t, r.RunSimulated(context.Background(), timeutil.NewMockClock(time.Unix(0, 0)), 20*time.Millisecond))
	assert.Error(t, r.RunSimulated(context.Background(), clock, 0))

	require.NoError(t, r.RunSimulated(context.Background(), clock, 20*time.Millisecond))
	assert.Equal(t, 5, rec.Len())

	// Six advances: five ticks plus the one that found the source empty.
	assert.Equal(t, time.Unix(0, 0).Add(120*time.Millisecond), clock.Now())

	// At 20ms per tick the 50ms gate only opens on tick 3 (60ms); tick 5 is
	// 40ms after it.
	last, ok := rec.Latest()
	require.True(t, ok)
	geo := odometry.DefaultGeometry()
	assert.InDelta(t, geo.Distance(300), last.Pose.Y, 1e-9)
}
