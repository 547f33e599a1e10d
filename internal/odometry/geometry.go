package odometry

import (
	"fmt"
	"math"
)

// Geometry holds the drivetrain calibration used to turn encoder counts into
// linear distance. Distances come out in the unit of WheelDiameter.
type Geometry struct {
	GearRatio              float64 `json:"gear_ratio" yaml:"gear_ratio"`
	CountsPerMotorShaftRev float64 `json:"counts_per_motor_shaft_rev" yaml:"counts_per_motor_shaft_rev"`
	WheelDiameter          float64 `json:"wheel_diameter_in" yaml:"wheel_diameter_in"`
}

// DefaultGeometry returns the XRP drivetrain: a 48.75:1 gearbox behind a
// 12-count motor encoder, driving 60 mm (2.3622 in) wheels.
func DefaultGeometry() Geometry {
	return Geometry{
		GearRatio:              (30.0 / 14.0) * (28.0 / 16.0) * (36.0 / 9.0) * (26.0 / 8.0),
		CountsPerMotorShaftRev: 12.0,
		WheelDiameter:          2.3622,
	}
}

// CountsPerRevolution is the number of encoder counts per wheel revolution.
func (g Geometry) CountsPerRevolution() float64 {
	return g.CountsPerMotorShaftRev * g.GearRatio
}

// DistancePerPulse is the wheel travel for one encoder count.
func (g Geometry) DistancePerPulse() float64 {
	return math.Pi * g.WheelDiameter / g.CountsPerRevolution()
}

// Distance converts an encoder count to travelled distance.
func (g Geometry) Distance(counts int64) float64 {
	return float64(counts) * g.DistancePerPulse()
}

// Validate reports a geometry that cannot produce finite distances.
func (g Geometry) Validate() error {
	if g.GearRatio <= 0 {
		return fmt.Errorf("gear_ratio must be positive, got %v", g.GearRatio)
	}
	if g.CountsPerMotorShaftRev <= 0 {
		return fmt.Errorf("counts_per_motor_shaft_rev must be positive, got %v", g.CountsPerMotorShaftRev)
	}
	if g.WheelDiameter <= 0 {
		return fmt.Errorf("wheel_diameter_in must be positive, got %v", g.WheelDiameter)
	}
	return nil
}
