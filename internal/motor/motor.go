// Package motor drives a PWM+direction H-bridge wheel motor.
//
// Grounded on core/pwm_hal.go and core/gpio_hal.go's
// capability split (a PWM duty sink plus one or more direction
// outputs): core/stepper_hal.go uses that same pairing to drive stepper
// enable/sleep lines, generalized here to the two direction wiring
// styles spec.md §6 calls out — a single DIR pin plus PWM magnitude,
// and a two-pin "IN1/IN2" style where direction is encoded as which
// pin is driven high.
package motor

import "linebot/hal"

// Direction is the sense SetDirection drives the motor's last commanded
// magnitude in.
type Direction int8

const (
	Forward Direction = 1
	Reverse Direction = -1
)

// Motor drives one wheel's H-bridge.
type Motor struct {
	pwm hal.PWMSink

	dir        hal.DigitalOut // single-pin mode
	dirA, dirB hal.DigitalOut // two-pin mode
	twoPin     bool

	invert  bool
	minDuty uint8
	speed   int8
}

// New creates a single-DIR-pin motor driver. invert swaps which
// polarity of DIR corresponds to positive speed, for wiring that ended
// up reversed on the board. minDuty is the PWM duty below which the
// motor stalls rather than turning (spec.md §3's WheelDriver.min_duty);
// every nonzero speed maps into [minDuty, MaxDuty()] rather than
// [0, MaxDuty()] so that a commanded speed of 1 still clears the stall
// floor.
func New(pwm hal.PWMSink, dir hal.DigitalOut, minDuty uint8, invert bool) *Motor {
	if pwm == nil || dir == nil {
		panic("motor: pwm and dir must be non-nil")
	}
	return &Motor{pwm: pwm, dir: dir, minDuty: minDuty, invert: invert}
}

// NewTwoPin creates a two-direction-pin motor driver (the IN1/IN2
// style): forward drives dirA high and dirB low, reverse is the
// opposite, and both pins are driven low at zero speed so the driver
// IC brakes rather than coasting.
func NewTwoPin(pwm hal.PWMSink, dirA, dirB hal.DigitalOut, minDuty uint8, invert bool) *Motor {
	if pwm == nil || dirA == nil || dirB == nil {
		panic("motor: pwm, dirA and dirB must be non-nil")
	}
	return &Motor{pwm: pwm, dirA: dirA, dirB: dirB, twoPin: true, minDuty: minDuty, invert: invert}
}

// SetSpeed drives the motor at percent of full scale, -100..100; 0
// means stopped. Magnitudes outside the range are clamped rather than
// rejected, matching core/pwm_hal.go's permissive PWM duty setters.
func (m *Motor) SetSpeed(percent int8) error {
	if percent > 100 {
		percent = 100
	}
	if percent < -100 {
		percent = -100
	}

	forward := percent >= 0
	if m.invert {
		forward = !forward
	}

	if m.twoPin {
		a, b := forward, !forward
		if percent == 0 {
			a, b = false, false
		}
		if err := m.dirA.Set(a); err != nil {
			return err
		}
		if err := m.dirB.Set(b); err != nil {
			return err
		}
	} else {
		if err := m.dir.Set(forward); err != nil {
			return err
		}
	}

	mag := percent
	if mag < 0 {
		mag = -mag
	}
	if err := m.pwm.SetDuty(m.dutyFor(mag, forward)); err != nil {
		return err
	}

	m.speed = percent
	return nil
}

// dutyFor maps a nonzero speed magnitude in [1, 100] onto
// [minDuty, MaxDuty()] (a magnitude of 0 gives duty 0), the mapping
// spec.md §4.3 describes as
// "duty = map(|s|, 1..100, min_duty..max_duty)". forward's opposite
// direction is driven coast-high on this H-bridge, so its duty is
// inverted about MaxDuty() to keep the motor's effective brake/coast
// behavior symmetric between directions.
func (m *Motor) dutyFor(mag int8, forward bool) uint8 {
	if mag <= 0 {
		return 0
	}
	maxDuty := m.pwm.MaxDuty()
	duty := uint8(int(m.minDuty) + (int(mag)-1)*(int(maxDuty)-int(m.minDuty))/99)
	if !forward {
		duty = maxDuty - duty
	}
	return duty
}

// SetDirection re-applies the motor's current speed magnitude in dir,
// the way dc_motor's set_direction reassigns the sign of an
// already-commanded speed without the caller having to recompute the
// magnitude.
func (m *Motor) SetDirection(dir Direction) error {
	mag := m.speed
	if mag < 0 {
		mag = -mag
	}
	return m.SetSpeed(int8(dir) * mag)
}

// Speed returns the last commanded speed percentage.
func (m *Motor) Speed() int8 { return m.speed }

// Stop is shorthand for SetSpeed(0).
func (m *Motor) Stop() error { return m.SetSpeed(0) }
