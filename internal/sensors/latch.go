package sensors

import "github.com/banshee-data/linefollow/internal/odometry"

// Latch holds the sample for the current tick. It implements the odometer's
// Encoders and Gyro, converting encoder counts to distance with the
// configured geometry. Reset captures the current counts as the new zero.
type Latch struct {
	geometry odometry.Geometry

	sample      Sample
	leftOffset  int64
	rightOffset int64
}

// NewLatch returns an empty latch for the given drivetrain.
func NewLatch(geometry odometry.Geometry) *Latch {
	return &Latch{geometry: geometry}
}

// Set replaces the current sample.
func (l *Latch) Set(s Sample) {
	l.sample = s
}

// Current returns the latched sample.
func (l *Latch) Current() Sample {
	return l.sample
}

// Reflectance returns the latched left and right voltages.
func (l *Latch) Reflectance() (left, right float64) {
	return l.sample.LeftReflectance, l.sample.RightReflectance
}

// LeftDistance returns left wheel travel since the last Reset.
func (l *Latch) LeftDistance() float64 {
	return l.geometry.Distance(l.sample.LeftCount - l.leftOffset)
}

// RightDistance returns right wheel travel since the last Reset.
func (l *Latch) RightDistance() float64 {
	return l.geometry.Distance(l.sample.RightCount - l.rightOffset)
}

// Reset zeroes both encoders at the current counts.
func (l *Latch) Reset() {
	l.leftOffset = l.sample.LeftCount
	l.rightOffset = l.sample.RightCount
}

// AngleZ returns the latched raw gyro yaw.
func (l *Latch) AngleZ() float64 {
	return l.sample.GyroZ
}

var (
	_ odometry.Encoders = (*Latch)(nil)
	_ odometry.Gyro     = (*Latch)(nil)
)
