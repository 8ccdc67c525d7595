// Package stepper implements the STEP-pulse generation state machine
// described in spec.md §4.1: an outer lifecycle state machine
// (Idle/StartStepping/Stepping/StopStepping) wrapping an inner pulse
// state machine (Idle/StartHigh/High/StartLow/Low), driven entirely by
// a scheduler-invoked Tick with no owned timer of its own.
//
// It is grounded on core/stepper.go (the move-queue pulse generator)
// and core/stepper_hal.go (the StepperBackend capability split
// between "own the pins" and "own the timing"), but the state machine
// itself is a rewrite: core/stepper.go generalizes to Klipper's
// acceleration-profiled move queue, which this design's Non-goals
// explicitly exclude (no acceleration/deceleration profiles — pulse
// frequency changes are instantaneous).
package stepper

import (
	"time"

	"linebot/hal"
)

// OuterState is the stepper's lifecycle state.
type OuterState uint8

const (
	Idle OuterState = iota
	StartStepping
	Stepping
	StopStepping
)

func (s OuterState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case StartStepping:
		return "StartStepping"
	case Stepping:
		return "Stepping"
	case StopStepping:
		return "StopStepping"
	default:
		return "Unknown"
	}
}

// PulseState is the inner pulse-edge state machine.
type PulseState uint8

const (
	PulseIdle PulseState = iota
	PulseStartHigh
	PulseHigh
	PulseStartLow
	PulseLow
)

func (p PulseState) String() string {
	switch p {
	case PulseIdle:
		return "Idle"
	case PulseStartHigh:
		return "StartHigh"
	case PulseHigh:
		return "High"
	case PulseStartLow:
		return "StartLow"
	case PulseLow:
		return "Low"
	default:
		return "Unknown"
	}
}

// Direction is the rotation sense commanded on the DIR pin.
type Direction uint8

const (
	Clockwise Direction = iota
	CounterClockwise
)

// Rearmer is the scheduler hook a Stepper calls exactly once, the
// moment it transitions out of Idle, to launch its own tick chain.
// Design Notes §9 prefers this explicit single-method capability over
// a raw closure to avoid the captured-environment problem and to match
// how the rest of the core abstracts peripherals (hal.DigitalOut,
// hal.PWMSink, ...).
type Rearmer interface {
	// Rearm requests that the owning task be invoked (almost)
	// immediately by the scheduler.
	Rearm()
}

// Timings holds the stepper's fixed pulse-width configuration.
type Timings struct {
	// PulseWidth is the duration STEP is held high for every pulse.
	// Typical values are 1-2µs. Invariant: PulseWidth < 1/frequency
	// for every frequency ever passed to SetSpeed.
	PulseWidth time.Duration
}

// DefaultTimings returns the common 2µs pulse width seen in the
// core/stepper.go's StepperQueueSize defaults and typical stepper driver specs.
func DefaultTimings() Timings {
	return Timings{PulseWidth: 2 * time.Microsecond}
}

// Stepper generates STEP/DIR pulses for one axis.
type Stepper struct {
	step hal.DigitalOut
	dir  hal.DigitalOut

	timings Timings
	rearm   Rearmer

	direction Direction
	speedHz   float64
	stepDelay time.Duration // 1/frequency; only meaningful once hasSpeed
	hasSpeed  bool

	state OuterState
	pulse PulseState
}

// New creates an idle stepper bound to the given STEP/DIR outputs.
// PulseWidth must be positive; invalid construction parameters panic
// immediately rather than silently producing a stepper that will
// misbehave at the first tick (spec.md §4.1 Failure, §9 Design Notes).
func New(step, dir hal.DigitalOut, timings Timings, rearm Rearmer) *Stepper {
	if timings.PulseWidth <= 0 {
		panic("stepper: pulse width must be positive")
	}
	if step == nil || dir == nil || rearm == nil {
		panic("stepper: step, dir and rearm must be non-nil")
	}
	return &Stepper{
		step:    step,
		dir:     dir,
		timings: timings,
		rearm:   rearm,
		state:   Idle,
		pulse:   PulseIdle,
	}
}

// State returns the current outer lifecycle state.
func (s *Stepper) State() OuterState { return s.state }

// PulseState returns the current inner pulse state.
func (s *Stepper) PulseState() PulseState { return s.pulse }

// Direction returns the last commanded direction.
func (s *Stepper) Direction() Direction { return s.direction }

// SpeedHz returns the last commanded step frequency, or 0 if SetSpeed
// has never been called.
func (s *Stepper) SpeedHz() float64 { return s.speedHz }

// SetDirection updates the DIR pin. It may be called at any time; the
// new direction takes effect for the next pulse cycle the inner state
// machine starts (clockwise drives DIR high, matching spec.md §6).
func (s *Stepper) SetDirection(d Direction) {
	s.direction = d
	_ = s.dir.Set(d == Clockwise)
}

// SetSpeed sets the step frequency in Hz. From Idle this fires the
// Start transition and invokes the Rearmer exactly once to launch the
// tick chain; while already Stepping it simply updates the period for
// subsequent pulses without invoking Rearmer again or disturbing the
// pulse currently in flight.
func (s *Stepper) SetSpeed(hz float64) {
	if hz <= 0 {
		panic("stepper: frequency must be positive")
	}
	stepDelay := time.Duration(float64(time.Second) / hz)
	if s.timings.PulseWidth >= stepDelay {
		panic("stepper: pulse_width must be less than 1/frequency")
	}

	s.speedHz = hz
	s.stepDelay = stepDelay
	s.hasSpeed = true

	if s.state == Idle {
		s.state = StartStepping
		s.rearm.Rearm()
	}
	// If StopStepping is in flight, a renewed SetSpeed does not cancel
	// the pending stop: the caller must wait for Idle and re-arm again,
	// matching the lifecycle's one-way Stepping->StopStepping->Idle flow.
}

// Stop requests a transition to StopStepping. It is a logical request
// only: the current pulse is always allowed to finish its low phase
// before STEP generation actually halts (spec.md §4.1). Idle+Stop is a
// no-op.
func (s *Stepper) Stop() {
	if s.state == Stepping {
		s.state = StopStepping
	}
}

// Tick is the scheduler-invoked, non-blocking step of the engine. It
// performs at most one GPIO edge and returns the delay until it should
// be invoked again, or (0, false) when there is no further pending
// work (Idle).
func (s *Stepper) Tick(now time.Time) (time.Duration, bool) {
	switch s.state {
	case Idle:
		return 0, false

	case StartStepping:
		s.pulse = PulseStartHigh
		s.state = Stepping
		return s.Tick(now)

	case Stepping:
		return s.tickPulse(false)

	case StopStepping:
		return s.tickPulse(true)

	default:
		panic("stepper: invalid outer state " + s.state.String())
	}
}

// tickPulse advances the inner pulse state machine by one step.
// stopping indicates the outer machine wants to halt at the next safe
// boundary: a pulse that has already begun its high phase is always
// allowed to complete a full low phase before the engine reports Idle,
// so STEP is never left high across a stop (spec.md §8 invariant 1).
func (s *Stepper) tickPulse(stopping bool) (time.Duration, bool) {
	switch s.pulse {
	case PulseStartHigh:
		if stopping {
			// At a clean pulse boundary: STEP is already low from the
			// previous cycle's low phase, so Stop resolves immediately.
			s.pulse = PulseIdle
			s.state = Idle
			return 0, false
		}
		_ = s.step.Set(true)
		s.pulse = PulseHigh
		return s.timings.PulseWidth, true

	case PulseHigh:
		s.pulse = PulseStartLow
		if stopping {
			// Defer: let the next scheduled tick drive STEP low and
			// finish the stop, rather than completing it mid-pulse.
			return 0, true
		}
		return s.Tick(time.Time{})

	case PulseStartLow:
		_ = s.step.Set(false)
		if stopping {
			s.pulse = PulseIdle
			s.state = Idle
			return 0, false
		}
		s.pulse = PulseLow
		return s.stepDelay - s.timings.PulseWidth, true

	case PulseLow:
		if stopping {
			s.pulse = PulseIdle
			s.state = Idle
			return 0, false
		}
		s.pulse = PulseStartHigh
		return s.Tick(time.Time{})

	default:
		// Terminal/invalid inner state reached: resolve to Idle rather
		// than loop forever.
		s.pulse = PulseIdle
		s.state = Idle
		return 0, false
	}
}
