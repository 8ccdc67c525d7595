// Package wheel closes a velocity control loop over one motor+encoder
// pair: it converts a desired speed, expressed as a percentage of the
// wheel's rated maximum, into a PID-corrected motor duty command at
// each control tick.
//
// All three quantities the loop touches — the setpoint, the PID
// output, and the motor command — are kept in the same
// percentage-of-max-speed unit throughout. The distilled control
// description this is built from mixed raw cm/s encoder velocity into
// a PID tuned in percentage units; normalizing the measurement before
// it ever reaches the controller (see Controller.measuredPercent)
// resolves that unit mismatch instead of reproducing it.
package wheel

import (
	"time"

	"linebot/internal/encoder"
	"linebot/internal/motor"
	"linebot/internal/pid"
)

// Controller drives one wheel to a commanded percentage of its rated
// top speed.
type Controller struct {
	motor   *motor.Motor
	encoder *encoder.Encoder
	pid     *pid.Controller

	maxSpeedCms float64

	targetPercent float64
}

// New creates a wheel velocity controller. maxSpeedCms is the wheel's
// rated top linear speed in cm/s, used to normalize encoder feedback
// into the same percentage units as the setpoint and motor command.
func New(m *motor.Motor, e *encoder.Encoder, p *pid.Controller, maxSpeedCms float64) *Controller {
	if maxSpeedCms <= 0 {
		panic("wheel: maxSpeedCms must be positive")
	}
	return &Controller{motor: m, encoder: e, pid: p, maxSpeedCms: maxSpeedCms}
}

// SetSpeed commands a new target speed as a percentage of rated top
// speed, clamped to [-100, 100].
func (c *Controller) SetSpeed(percent float64) {
	if percent > 100 {
		percent = 100
	}
	if percent < -100 {
		percent = -100
	}
	c.targetPercent = percent
}

// TargetSpeed returns the last commanded setpoint, in percent.
func (c *Controller) TargetSpeed() float64 { return c.targetPercent }

// SetSpeedCms commands a new target speed in cm/s, converting to the
// percentage-of-rated-top-speed setpoint spec.md §4.4 describes
// (setpoint = 100 * v / max_speed_cm_s).
func (c *Controller) SetSpeedCms(cmPerS float64) {
	c.SetSpeed(100 * cmPerS / c.maxSpeedCms)
}

// TargetSpeedCms returns the last commanded setpoint in cm/s.
func (c *Controller) TargetSpeedCms() float64 {
	return c.targetPercent / 100 * c.maxSpeedCms
}

// Speed returns the most recently measured speed, in percent of rated
// top speed.
func (c *Controller) Speed() float64 {
	return c.measuredPercent()
}

// SpeedCms returns the most recently measured speed in raw cm/s.
func (c *Controller) SpeedCms() float64 {
	return c.encoder.Velocity()
}

// Position returns the accumulated distance traveled, in centimeters,
// as tracked by the underlying encoder.
func (c *Controller) Position() float64 {
	return c.encoder.Position()
}

// ResetPosition zeroes the accumulated distance, for servo positioning
// moves that measure distance from their own starting point.
func (c *Controller) ResetPosition() {
	c.encoder.Reset()
}

func (c *Controller) measuredPercent() float64 {
	return c.encoder.Velocity() / c.maxSpeedCms * 100
}

// Update advances the encoder and PID loop by dt, adds the PID output
// as a percentage correction to the motor's current speed command, and
// writes the sum, clamped to [-100, 100], back to the motor.
func (c *Controller) Update(dt time.Duration) error {
	c.encoder.Update(dt)
	measured := c.measuredPercent()
	out := float64(c.motor.Speed()) + c.pid.Update(c.targetPercent, measured, dt)

	if out > 100 {
		out = 100
	}
	if out < -100 {
		out = -100
	}
	return c.motor.SetSpeed(int8(out))
}
