package sensors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.bug.st/serial"

	"github.com/banshee-data/linefollow/internal/monitoring"
)

// Source yields the raw readings for one control tick.
type Source interface {
	Sample() (Sample, error)
}

// SerialSource keeps the most recent sample read from a serial bridge. Monitor
// runs the reader; Sample may be called concurrently from the control loop.
type SerialSource struct {
	port io.ReadCloser

	mu      sync.Mutex
	latest  Sample
	have    bool
	dropped int
}

// NewSerialSource wraps an already-open port, or any line-oriented reader.
func NewSerialSource(port io.ReadCloser) *SerialSource {
	return &SerialSource{port: port}
}

// OpenSerialSource opens the serial device at path.
func OpenSerialSource(path string, opts PortOptions) (*SerialSource, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}

	return NewSerialSource(port), nil
}

// Sample returns the most recent sample, or ErrNoSample before the first.
func (s *SerialSource) Sample() (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.have {
		return Sample{}, ErrNoSample
	}
	return s.latest, nil
}

// Dropped returns how many malformed lines were skipped.
func (s *SerialSource) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Monitor scans lines from the port until ctx is done or the port is
// exhausted. Malformed lines are logged and skipped.
func (s *SerialSource) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking Scan runs on its own goroutine so cancellation is not held
	// up by a quiet port.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				return nil
			}
			if skipLine(line) {
				continue
			}
			sample, err := ParseSample(line)
			if err != nil {
				s.mu.Lock()
				s.dropped++
				s.mu.Unlock()
				monitoring.Logf("sensors: skipping line: %v", err)
				continue
			}
			monitoring.Debugf("sensors: %s", sample)

			s.mu.Lock()
			s.latest = sample
			s.have = true
			s.mu.Unlock()
		}
	}
}

// Close closes the underlying port.
func (s *SerialSource) Close() error {
	return s.port.Close()
}

// ReplaySource plays back recorded samples, one per call.
type ReplaySource struct {
	samples []Sample
	next    int
}

// NewReplaySource returns a source over samples.
func NewReplaySource(samples []Sample) *ReplaySource {
	return &ReplaySource{samples: samples}
}

// ReadSamples parses every sample line from r, skipping blanks and comments.
func ReadSamples(r io.Reader) ([]Sample, error) {
	var samples []Sample
	scan := bufio.NewScanner(r)
	lineNo := 0
	for scan.Scan() {
		lineNo++
		line := scan.Text()
		if skipLine(line) {
			continue
		}
		sample, err := ParseSample(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		samples = append(samples, sample)
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// LoadReplaySource reads a fixture file into a ReplaySource.
func LoadReplaySource(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	defer f.Close()

	samples, err := ReadSamples(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read replay file %s: %w", path, err)
	}
	if len(samples) == 0 {
		return nil, errors.New("replay file contains no samples")
	}
	return NewReplaySource(samples), nil
}

// Sample returns the next recorded sample, or io.EOF once exhausted.
func (r *ReplaySource) Sample() (Sample, error) {
	if r.next >= len(r.samples) {
		return Sample{}, io.EOF
	}
	s := r.samples[r.next]
	r.next++
	return s, nil
}

// Remaining returns how many samples are left.
func (r *ReplaySource) Remaining() int {
	return len(r.samples) - r.next
}
