package pid

import (
	"testing"
	"time"
)

func TestProportionalOnly(t *testing.T) {
	c := New(2.0, 0, 0, 0, 0)
	out := c.Update(10, 4, 10*time.Millisecond)
	want := 2.0 * 6.0
	if out != want {
		t.Fatalf("expected %v, got %v", want, out)
	}
}

func TestIntegralAccumulates(t *testing.T) {
	c := New(0, 1.0, 0, 0, 0)
	c.Update(1, 0, time.Second) // integral += 1
	out := c.Update(1, 0, time.Second)
	if out != 2.0 {
		t.Fatalf("expected accumulated integral output 2.0, got %v", out)
	}
}

func TestIntegralCapPreventsWindup(t *testing.T) {
	c := New(0, 1.0, 0, 5.0, 0)
	for i := 0; i < 100; i++ {
		c.Update(100, 0, time.Second)
	}
	if c.integral != 5.0 {
		t.Fatalf("expected integral clamped to 5.0, got %v", c.integral)
	}
}

func TestDerivativeOnMeasurementIgnoresSetpointJump(t *testing.T) {
	c := New(0, 0, 1.0, 0, 0)
	c.Update(0, 5, time.Second) // establishes baseline measurement, no prior derivative
	// Setpoint jumps wildly but measurement stays constant: derivative
	// term must be 0 since only measurement change drives it.
	out := c.Update(1000, 5, time.Second)
	if out != 0 {
		t.Fatalf("expected 0 derivative output when measurement unchanged, got %v", out)
	}
}

func TestDerivativeRespondsToMeasurementChange(t *testing.T) {
	c := New(0, 0, 2.0, 0, 0)
	c.Update(0, 0, time.Second)
	out := c.Update(0, 3, time.Second) // measurement rose by 3 over 1s
	want := -2.0 * 3.0
	if out != want {
		t.Fatalf("expected %v, got %v", want, out)
	}
}

func TestOutputCapClampsFinalSum(t *testing.T) {
	c := New(100, 0, 0, 0, 10)
	out := c.Update(100, 0, time.Second)
	if out != 10 {
		t.Fatalf("expected output clamped to 10, got %v", out)
	}
	out = c.Update(-100, 0, time.Second)
	if out != -10 {
		t.Fatalf("expected output clamped to -10, got %v", out)
	}
}

func TestResetClearsHistory(t *testing.T) {
	c := New(0, 1.0, 1.0, 0, 0)
	c.Update(1, 0, time.Second)
	c.Reset()
	if c.integral != 0 || c.hasLast {
		t.Fatal("expected Reset to clear integral and derivative history")
	}
}

func TestNonPositiveDtFallsBackToProportional(t *testing.T) {
	c := New(3.0, 1.0, 1.0, 0, 0)
	out := c.Update(10, 4, 0)
	want := 3.0 * 6.0
	if out != want {
		t.Fatalf("expected proportional-only fallback %v, got %v", want, out)
	}
}
