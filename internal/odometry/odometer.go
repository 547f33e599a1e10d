// Package odometry dead-reckons the robot's planar position from wheel
// distances and a gyro heading.
//
// Heading convention: the gyro reports clockwise-positive yaw, the odometer
// reports heading = 360 - yaw in degrees. Heading 0 points along +y, and a
// positive heading moves the robot towards -x.
package odometry

import (
	"math"
	"time"

	"github.com/banshee-data/linefollow/internal/timeutil"
)

const degToRad = math.Pi / 180.0

// Encoders reports cumulative wheel travel since the last Reset.
type Encoders interface {
	LeftDistance() float64
	RightDistance() float64
	Reset()
}

// Gyro reports the raw yaw angle in degrees, clockwise positive.
type Gyro interface {
	AngleZ() float64
}

// Pose is the estimated position and heading.
type Pose struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// Odometer integrates wheel travel along the gyro heading. Integration is
// rate limited: Update only advances the pose once more than
// minUpdateInterval has passed since the previous integration.
type Odometer struct {
	encoders Encoders
	gyro     Gyro
	clock    timeutil.Clock

	minUpdateInterval time.Duration

	x, y          float64
	heading       float64
	previousLeft  float64
	previousRight float64
	previousTime  time.Time
}

// NewOdometer returns an odometer at the origin. Call Tare before the first
// Update to capture encoder and clock baselines.
func NewOdometer(encoders Encoders, gyro Gyro, clock timeutil.Clock, minUpdateInterval time.Duration) *Odometer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Odometer{
		encoders:          encoders,
		gyro:              gyro,
		clock:             clock,
		minUpdateInterval: minUpdateInterval,
	}
}

// MinUpdateInterval returns the integration gate.
func (o *Odometer) MinUpdateInterval() time.Duration { return o.minUpdateInterval }

// Tare zeroes the encoders and the pose and captures new baselines.
func (o *Odometer) Tare() {
	o.encoders.Reset()

	o.x = 0
	o.y = 0
	o.heading = o.Heading()
	o.previousLeft = o.encoders.LeftDistance()
	o.previousRight = o.encoders.RightDistance()
	o.previousTime = o.clock.Now()
}

// Update reads the heading and, if the gate has opened, integrates the
// average wheel travel since the previous integration along it. It reports
// whether the pose advanced.
func (o *Odometer) Update() bool {
	t := o.clock.Now()
	heading := o.Heading()
	o.heading = heading

	if t.Sub(o.previousTime) <= o.minUpdateInterval {
		return false
	}

	left := o.encoders.LeftDistance()
	right := o.encoders.RightDistance()

	deltaLeft := left - o.previousLeft
	deltaRight := right - o.previousRight
	delta := (deltaLeft + deltaRight) / 2.0

	rad := heading * degToRad
	o.x += delta * -math.Sin(rad)
	o.y += delta * math.Cos(rad)

	o.previousLeft = left
	o.previousRight = right
	o.previousTime = t
	return true
}

// X returns the accumulated x position.
func (o *Odometer) X() float64 { return o.x }

// Y returns the accumulated y position.
func (o *Odometer) Y() float64 { return o.y }

// Heading reads the gyro and returns the converted heading in degrees.
func (o *Odometer) Heading() float64 {
	return 360 - o.gyro.AngleZ()
}

// Pose returns the position with the heading read by the last Update or Tare.
func (o *Odometer) Pose() Pose {
	return Pose{X: o.x, Y: o.y, Heading: o.heading}
}
