// Package sensors adapts the robot's raw readings into the scalar inputs the
// signal-processing core consumes.
//
// The robot's serial bridge emits one comma-separated line per sample:
//
//	left_v,right_v,left_count,right_count,gyro_z_deg
//
// Sources turn those lines into Samples; a Latch then serves the current
// Sample to the odometer's encoder and gyro collaborators.
package sensors

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNoSample is returned by a live source before its first line arrives.
	ErrNoSample = errors.New("no sample received yet")
	// ErrMalformedSample wraps line parse failures.
	ErrMalformedSample = errors.New("malformed sample")
)

// Sample is one set of raw readings.
type Sample struct {
	LeftReflectance  float64 `json:"left_v"`
	RightReflectance float64 `json:"right_v"`
	LeftCount        int64   `json:"left_count"`
	RightCount       int64   `json:"right_count"`
	GyroZ            float64 `json:"gyro_z"`
}

const sampleFields = 5

// ParseSample parses a serial bridge line.
func ParseSample(line string) (Sample, error) {
	segments := strings.Split(strings.TrimSpace(line), ",")
	if len(segments) != sampleFields {
		return Sample{}, fmt.Errorf("%w: %q has %d fields, expected %d", ErrMalformedSample, line, len(segments), sampleFields)
	}

	var s Sample
	var err error

	if s.LeftReflectance, err = strconv.ParseFloat(strings.TrimSpace(segments[0]), 64); err != nil {
		return Sample{}, fmt.Errorf("%w: failed to parse left reflectance: %v", ErrMalformedSample, err)
	}
	if s.RightReflectance, err = strconv.ParseFloat(strings.TrimSpace(segments[1]), 64); err != nil {
		return Sample{}, fmt.Errorf("%w: failed to parse right reflectance: %v", ErrMalformedSample, err)
	}
	if s.LeftCount, err = strconv.ParseInt(strings.TrimSpace(segments[2]), 10, 64); err != nil {
		return Sample{}, fmt.Errorf("%w: failed to parse left count: %v", ErrMalformedSample, err)
	}
	if s.RightCount, err = strconv.ParseInt(strings.TrimSpace(segments[3]), 10, 64); err != nil {
		return Sample{}, fmt.Errorf("%w: failed to parse right count: %v", ErrMalformedSample, err)
	}
	if s.GyroZ, err = strconv.ParseFloat(strings.TrimSpace(segments[4]), 64); err != nil {
		return Sample{}, fmt.Errorf("%w: failed to parse gyro angle: %v", ErrMalformedSample, err)
	}
	return s, nil
}

// String renders the sample in the serial line format.
func (s Sample) String() string {
	return fmt.Sprintf("%g,%g,%d,%d,%g", s.LeftReflectance, s.RightReflectance, s.LeftCount, s.RightCount, s.GyroZ)
}

// skipLine reports blank lines and # comments.
func skipLine(line string) bool {
	line = strings.TrimSpace(line)
	return line == "" || strings.HasPrefix(line, "#")
}
