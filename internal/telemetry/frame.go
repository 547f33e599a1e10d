// Package telemetry carries per-tick snapshots of the control loop to
// observers: the console log, the dashboard and the run database.
package telemetry

import (
	"errors"
	"time"

	"github.com/banshee-data/linefollow/internal/linetrack"
	"github.com/banshee-data/linefollow/internal/odometry"
	"github.com/banshee-data/linefollow/internal/reflectance"
)

// Steer is the drive command computed for a tick. It is reported, not
// actuated.
type Steer struct {
	Forward float64 `json:"forward"`
	Turn    float64 `json:"turn"`
}

// Frame is everything observed and computed during one tick.
type Frame struct {
	Tick       uint64              `json:"tick"`
	Time       time.Time           `json:"time"`
	Left       reflectance.Reading `json:"left"`
	Right      reflectance.Reading `json:"right"`
	Difference reflectance.Reading `json:"difference"`
	Mistake    linetrack.Mistake   `json:"mistake"`
	Pose       odometry.Pose       `json:"pose"`
	Steer      Steer               `json:"steer"`
}

// Reporter receives frames from the control loop.
type Reporter interface {
	Report(Frame) error
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Frame) error

func (f ReporterFunc) Report(fr Frame) error { return f(fr) }

// Reporters fans a frame out to every reporter. All reporters see the frame
// even if an earlier one fails; the errors are joined.
type Reporters []Reporter

func (rs Reporters) Report(f Frame) error {
	var errs []error
	for _, r := range rs {
		if r == nil {
			continue
		}
		if err := r.Report(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
