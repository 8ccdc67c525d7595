package stepper

import (
	"testing"
	"time"
)

type fakePin struct {
	level bool
	sets  []bool
}

func (p *fakePin) Set(high bool) error {
	p.level = high
	p.sets = append(p.sets, high)
	return nil
}

type fakeRearmer struct{ armed int }

func (r *fakeRearmer) Rearm() { r.armed++ }

func newTestStepper(t *testing.T, pulseWidth time.Duration) (*Stepper, *fakePin, *fakePin, *fakeRearmer) {
	t.Helper()
	step := &fakePin{}
	dir := &fakePin{}
	rearm := &fakeRearmer{}
	s := New(step, dir, Timings{PulseWidth: pulseWidth}, rearm)
	return s, step, dir, rearm
}

func TestNewStepperStartsIdle(t *testing.T) {
	s, _, _, _ := newTestStepper(t, 2*time.Microsecond)
	if s.State() != Idle {
		t.Fatalf("expected Idle, got %v", s.State())
	}
}

func TestNewPanicsOnBadPulseWidth(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-positive pulse width")
		}
	}()
	New(&fakePin{}, &fakePin{}, Timings{PulseWidth: 0}, &fakeRearmer{})
}

func TestSetSpeedFromIdleArmsAndStarts(t *testing.T) {
	s, _, _, rearm := newTestStepper(t, 2*time.Microsecond)
	s.SetSpeed(1500) // period ~667us

	if s.State() != StartStepping {
		t.Fatalf("expected StartStepping immediately after SetSpeed, got %v", s.State())
	}
	if rearm.armed != 1 {
		t.Fatalf("expected exactly 1 Rearm call, got %d", rearm.armed)
	}
}

func TestSetSpeedPanicsWhenPulseWidthExceedsPeriod(t *testing.T) {
	s, _, _, _ := newTestStepper(t, 1*time.Millisecond)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic: pulse_width must be < 1/frequency")
		}
	}()
	s.SetSpeed(1500) // 667us period, shorter than the 1ms pulse width
}

func TestFirstTickDrivesHighAndReturnsPulseWidth(t *testing.T) {
	s, step, _, _ := newTestStepper(t, 2*time.Microsecond)
	s.SetSpeed(1000)

	now := time.Now()
	delay, more := s.Tick(now)

	if !more {
		t.Fatal("expected reschedule after first tick")
	}
	if delay != 2*time.Microsecond {
		t.Fatalf("expected pulse width delay, got %v", delay)
	}
	if !step.level {
		t.Fatal("expected STEP driven high")
	}
	if s.PulseState() != PulseHigh {
		t.Fatalf("expected inner state High, got %v", s.PulseState())
	}
}

func TestSecondTickDrivesLowAndReturnsRemainderOfPeriod(t *testing.T) {
	s, step, _, _ := newTestStepper(t, 2*time.Microsecond)
	s.SetSpeed(1000) // period = 1ms

	now := time.Now()
	s.Tick(now) // StartStepping->Stepping, drives high

	delay, more := s.Tick(now.Add(2 * time.Microsecond))
	if !more {
		t.Fatal("expected reschedule after second tick")
	}
	wantDelay := time.Millisecond - 2*time.Microsecond
	if delay != wantDelay {
		t.Fatalf("expected %v low-phase delay, got %v", wantDelay, delay)
	}
	if step.level {
		t.Fatal("expected STEP driven low")
	}
	if s.PulseState() != PulseLow {
		t.Fatalf("expected inner state Low, got %v", s.PulseState())
	}
}

func TestPulseCyclesContinuously(t *testing.T) {
	s, step, _, _ := newTestStepper(t, 2*time.Microsecond)
	s.SetSpeed(1000)

	now := time.Now()
	var highs, lows int
	for i := 0; i < 20; i++ {
		d, more := s.Tick(now)
		if !more {
			t.Fatalf("iteration %d: expected reschedule while stepping", i)
		}
		if step.level {
			highs++
		} else {
			lows++
		}
		now = now.Add(d)
	}
	if highs == 0 || lows == 0 {
		t.Fatalf("expected both high and low edges, got highs=%d lows=%d", highs, lows)
	}
}

func TestStepNeverLeftHighAcrossStopAtBoundary(t *testing.T) {
	s, step, _, _ := newTestStepper(t, 2*time.Microsecond)
	s.SetSpeed(1000)
	now := time.Now()

	// Drive one full cycle so we return to a clean StartHigh boundary.
	d, _ := s.Tick(now) // high
	now = now.Add(d)
	d, _ = s.Tick(now) // low
	now = now.Add(d)

	if s.PulseState() != PulseStartHigh {
		t.Fatalf("expected boundary state StartHigh, got %v", s.PulseState())
	}

	s.Stop()
	delay, more := s.Tick(now)
	if more {
		t.Fatalf("expected no reschedule once stop resolves at a boundary, got delay=%v", delay)
	}
	if s.State() != Idle {
		t.Fatalf("expected Idle, got %v", s.State())
	}
	if step.level {
		t.Fatal("STEP must never be high after Stop resolves")
	}
}

func TestStopDuringHighPhaseFinishesLowBeforeIdle(t *testing.T) {
	s, step, _, _ := newTestStepper(t, 2*time.Microsecond)
	s.SetSpeed(1000)
	now := time.Now()

	d, _ := s.Tick(now) // drives high, pulse=High
	now = now.Add(d)
	if s.PulseState() != PulseHigh {
		t.Fatalf("precondition failed, pulse=%v", s.PulseState())
	}

	s.Stop()

	// "next" tick: high phase elapses, defers to StartLow, does not
	// drive hardware yet and must not report Idle.
	delay1, more1 := s.Tick(now)
	if !more1 {
		t.Fatal("expected a deferred reschedule, not immediate Idle")
	}
	if s.State() != StopStepping {
		t.Fatalf("expected still StopStepping mid-defer, got %v", s.State())
	}
	now = now.Add(delay1)

	// "next-but-one" tick: drives STEP low and resolves to Idle.
	delay2, more2 := s.Tick(now)
	if more2 {
		t.Fatalf("expected final tick to report no further work, got delay=%v", delay2)
	}
	if s.State() != Idle {
		t.Fatalf("expected Idle after completing the deferred low phase, got %v", s.State())
	}
	if step.level {
		t.Fatal("STEP must be low once stop completes")
	}
}

func TestStopDuringLowPhaseResolvesImmediately(t *testing.T) {
	s, step, _, _ := newTestStepper(t, 2*time.Microsecond)
	s.SetSpeed(1000)
	now := time.Now()

	d, _ := s.Tick(now) // high
	now = now.Add(d)
	d, _ = s.Tick(now) // low
	now = now.Add(d)

	if s.PulseState() != PulseLow {
		t.Fatalf("precondition failed, pulse=%v", s.PulseState())
	}

	s.Stop()
	delay, more := s.Tick(now)
	if more {
		t.Fatalf("expected immediate resolution to Idle, got delay=%v", delay)
	}
	if s.State() != Idle {
		t.Fatalf("expected Idle, got %v", s.State())
	}
	if step.level {
		t.Fatal("STEP must remain low")
	}
}

func TestIdleStopIsNoop(t *testing.T) {
	s, _, _, _ := newTestStepper(t, 2*time.Microsecond)
	s.Stop()
	if s.State() != Idle {
		t.Fatalf("expected Idle, got %v", s.State())
	}
}

func TestSetDirectionWritesDirPin(t *testing.T) {
	s, _, dir, _ := newTestStepper(t, 2*time.Microsecond)
	s.SetDirection(Clockwise)
	if !dir.level {
		t.Fatal("expected DIR high for Clockwise")
	}
	s.SetDirection(CounterClockwise)
	if dir.level {
		t.Fatal("expected DIR low for CounterClockwise")
	}
}
