// Package servo implements a position controller over a wheel.Controller:
// it commands a proportional speed toward a target distance and
// reports arrival once the remaining distance falls within a
// tolerance.
//
// The distilled description of this component left the arrival test
// as an open question (comparing a possibly-negative remaining
// distance directly against a positive tolerance misclassifies
// overshoot past the target as "not yet arrived"). Resolved here by
// comparing the absolute remaining distance, the natural reading of
// "within epsilon of the target" and the one a caller driving a
// physical wheel actually wants.
package servo

import (
	"math"
	"time"

	"linebot/internal/wheel"
)

// Controller drives a wheel to a target distance and holds position
// once it arrives.
type Controller struct {
	wheel *wheel.Controller

	// GainPercentPerCm converts remaining distance, in centimeters,
	// into a wheel speed setpoint percentage.
	GainPercentPerCm float64
	// EpsilonCm is the remaining-distance tolerance below which the
	// target is considered reached.
	EpsilonCm float64

	targetCm  float64
	hasTarget bool
}

// New creates a servo position controller over w.
func New(w *wheel.Controller, gainPercentPerCm, epsilonCm float64) *Controller {
	if epsilonCm <= 0 {
		panic("servo: epsilonCm must be positive")
	}
	return &Controller{wheel: w, GainPercentPerCm: gainPercentPerCm, EpsilonCm: epsilonCm}
}

// MoveTo commands a move to distanceCm, measured from the wheel's
// current position, which is reset to zero as the new origin.
func (c *Controller) MoveTo(distanceCm float64) {
	c.wheel.ResetPosition()
	c.targetCm = distanceCm
	c.hasTarget = true
}

// Remaining returns the signed distance still to travel.
func (c *Controller) Remaining() float64 {
	return c.targetCm - c.wheel.Position()
}

// IsTargetReached reports whether the wheel is within EpsilonCm of the
// commanded target, in either direction (including overshoot).
func (c *Controller) IsTargetReached() bool {
	if !c.hasTarget {
		return true
	}
	return math.Abs(c.Remaining()) < c.EpsilonCm
}

// Update advances the position loop by dt: while a move is in
// progress it commands a proportional speed toward the target and
// stops the wheel once it arrives; otherwise it just advances the
// underlying wheel loop unchanged.
func (c *Controller) Update(dt time.Duration) error {
	if !c.hasTarget {
		return c.wheel.Update(dt)
	}

	if c.IsTargetReached() {
		c.wheel.SetSpeed(0)
		return c.wheel.Update(dt)
	}

	speed := c.GainPercentPerCm * c.Remaining()
	c.wheel.SetSpeed(speed)
	return c.wheel.Update(dt)
}

// Stop cancels any in-progress move and halts the wheel.
func (c *Controller) Stop() {
	c.hasTarget = false
	c.wheel.SetSpeed(0)
}
