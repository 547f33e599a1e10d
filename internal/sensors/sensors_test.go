package sensors

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/linefollow/internal/monitoring"
	"github.com/banshee-data/linefollow/internal/odometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestParseSample(t *testing.T) {
	s, err := ParseSample(" 1.25, 0.5 ,100,-20,90\n")
	require.NoError(t, err)
	assert.Equal(t, Sample{LeftReflectance: 1.25, RightReflectance: 0.5, LeftCount: 100, RightCount: -20, GyroZ: 90}, s)
	assert.Equal(t, "1.25,0.5,100,-20,90", s.String())

	round, err := ParseSample(s.String())
	require.NoError(t, err)
	assert.Equal(t, s, round)
}

func TestParseSample_Malformed(t *testing.T) {
	for _, line := range []string{
		"",
		"1,2,3,4",
		"1,2,3,4,5,6",
		"x,2,3,4,5",
		"1,y,3,4,5",
		"1,2,3.5,4,5",
		"1,2,3,z,5",
		"1,2,3,4,nope",
	} {
		_, err := ParseSample(line)
		assert.True(t, errors.Is(err, ErrMalformedSample), "line %q: %v", line, err)
	}
}

func TestReadSamples(t *testing.T) {
	input := "# left,right,lc,rc,gyro\n1,2,3,4,5\n\n  \n0.5,0.25,10,11,-3\n"
	samples, err := ReadSamples(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, int64(10), samples[1].LeftCount)

	_, err = ReadSamples(strings.NewReader("1,2,3,4,5\nbad\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestReplaySource(t *testing.T) {
	src := NewReplaySource([]Sample{{LeftCount: 1}, {LeftCount: 2}})
	assert.Equal(t, 2, src.Remaining())

	s, err := src.Sample()
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.LeftCount)

	s, err = src.Sample()
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.LeftCount)

	_, err = src.Sample()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 0, src.Remaining())
}

func TestLoadReplaySource(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "run.txt")
	require.NoError(t, os.WriteFile(good, []byte("1,1,0,0,0\n1,0.9,5,5,0\n"), 0644))

	src, err := LoadReplaySource(good)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Remaining())

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n"), 0644))
	_, err = LoadReplaySource(empty)
	assert.Error(t, err)

	_, err = LoadReplaySource(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestSerialSource_Monitor(t *testing.T) {
	original := monitoring.Logf
	defer func() { monitoring.Logf = original }()
	monitoring.SetLogger(nil)

	r, w := io.Pipe()
	src := NewSerialSource(r)

	_, err := src.Sample()
	assert.True(t, errors.Is(err, ErrNoSample))

	done := make(chan error, 1)
	go func() { done <- src.Monitor(context.Background()) }()

	_, err = io.WriteString(w, "garbage\n1.5,0.5,10,12,45\n# comment\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after port closed")
	}

	s, err := src.Sample()
	require.NoError(t, err)
	assert.Equal(t, Sample{LeftReflectance: 1.5, RightReflectance: 0.5, LeftCount: 10, RightCount: 12, GyroZ: 45}, s)
	assert.Equal(t, 1, src.Dropped())
}

func TestSerialSource_MonitorCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	src := NewSerialSource(r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Monitor(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
	assert.NoError(t, src.Close())
}

func TestPortOptions(t *testing.T) {
	opts, err := PortOptions{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, DefaultPortOptions(), opts)

	mode, err := PortOptions{BaudRate: 9600, StopBits: 2, Parity: "even"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, 9600, mode.BaudRate)
	assert.Equal(t, 8, mode.DataBits)
	assert.Equal(t, serial.TwoStopBits, mode.StopBits)
	assert.Equal(t, serial.EvenParity, mode.Parity)

	mode, err = DefaultPortOptions().SerialMode()
	require.NoError(t, err)
	assert.Equal(t, serial.OneStopBit, mode.StopBits)
	assert.Equal(t, serial.NoParity, mode.Parity)

	_, err = PortOptions{DataBits: 9}.Normalize()
	assert.Error(t, err)
	_, err = PortOptions{StopBits: 3}.Normalize()
	assert.Error(t, err)
	_, err = PortOptions{Parity: "mark"}.SerialMode()
	assert.Error(t, err)
}

func TestLatch(t *testing.T) {
	geo := odometry.DefaultGeometry()
	l := NewLatch(geo)

	l.Set(Sample{LeftReflectance: 2, RightReflectance: 1, LeftCount: 100, RightCount: 50, GyroZ: 30})
	left, right := l.Reflectance()
	assert.Equal(t, 2.0, left)
	assert.Equal(t, 1.0, right)
	assert.Equal(t, 30.0, l.AngleZ())
	assert.InDelta(t, geo.Distance(100), l.LeftDistance(), 1e-12)

	l.Reset()
	assert.Equal(t, 0.0, l.LeftDistance())
	assert.Equal(t, 0.0, l.RightDistance())

	l.Set(Sample{LeftCount: 685, RightCount: 635})
	assert.InDelta(t, geo.Distance(585), l.LeftDistance(), 1e-12)
	assert.InDelta(t, geo.Distance(585), l.RightDistance(), 1e-12)
	assert.Equal(t, int64(685), l.Current().LeftCount)
}
