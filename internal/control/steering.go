// Package control runs the line-following loop: it reads sensors, feeds the
// signal processing and drift monitor, integrates odometry and computes the
// steering command for each tick.
package control

import (
	"math"

	"github.com/banshee-data/linefollow/internal/telemetry"
)

// Steering is a proportional controller on the reflectance difference.
type Steering struct {
	Gain      float64
	Deadband  float64
	BaseSpeed float64
}

// Command returns the drive command for a processed reflectance difference.
// The turn follows the drive's rotation convention, so the controller error
// is negated twice. Errors smaller than the deadband produce no turn.
func (s Steering) Command(reflectance float64) telemetry.Steer {
	e := -reflectance
	if math.Abs(e) < s.Deadband {
		e = 0
	}
	turn := s.Gain * e
	return telemetry.Steer{Forward: s.BaseSpeed, Turn: -turn}
}
