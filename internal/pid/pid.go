// Package pid implements a standard proportional-integral-derivative
// controller with derivative-on-measurement, a cap on the accumulated
// integral, and a cap on the final summed output. The individual P, I,
// and D contributions are not capped separately.
//
// No third-party PID library appears anywhere in the retrieved
// example corpus; viamrobotics-rdk's own control package hand-rolls
// its PID loop rather than importing one, so this is grounded on that
// repo's "small, dependency-free numeric controller" idiom rather than
// on any specific file. See DESIGN.md for the dependency note.
package pid

import "time"

// Controller is a PID loop over a single scalar process variable.
type Controller struct {
	Kp, Ki, Kd float64

	// IntegralCap bounds the magnitude of the accumulated integral
	// term before it is multiplied by Ki, preventing windup. Zero
	// means no cap.
	IntegralCap float64

	// OutputCap bounds the magnitude of the final output. Zero means
	// no cap.
	OutputCap float64

	integral        float64
	lastMeasurement float64
	hasLast         bool
}

// New creates a Controller with the given gains and caps.
func New(kp, ki, kd, integralCap, outputCap float64) *Controller {
	return &Controller{Kp: kp, Ki: ki, Kd: kd, IntegralCap: integralCap, OutputCap: outputCap}
}

// Update advances the controller by one measurement and returns the
// new control output. dt must be positive; the derivative term is
// computed on the measurement rather than the error, avoiding the
// output spike a sudden setpoint change would otherwise cause.
func (c *Controller) Update(setpoint, measurement float64, dt time.Duration) float64 {
	if dt <= 0 {
		return c.lastOutput(setpoint, measurement)
	}
	dtSec := dt.Seconds()
	err := setpoint - measurement

	c.integral += err * dtSec
	if c.IntegralCap > 0 {
		c.integral = clamp(c.integral, c.IntegralCap)
	}

	var derivative float64
	if c.hasLast {
		derivative = -(measurement - c.lastMeasurement) / dtSec
	}
	c.lastMeasurement = measurement
	c.hasLast = true

	out := c.Kp*err + c.Ki*c.integral + c.Kd*derivative
	if c.OutputCap > 0 {
		out = clamp(out, c.OutputCap)
	}
	return out
}

// lastOutput is the degenerate response to a non-positive dt: hold
// proportional-only, since integral/derivative terms are undefined
// without elapsed time.
func (c *Controller) lastOutput(setpoint, measurement float64) float64 {
	out := c.Kp * (setpoint - measurement)
	if c.OutputCap > 0 {
		out = clamp(out, c.OutputCap)
	}
	return out
}

// Reset clears accumulated integral and derivative history, without
// touching the configured gains.
func (c *Controller) Reset() {
	c.integral = 0
	c.lastMeasurement = 0
	c.hasLast = false
}

func clamp(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
