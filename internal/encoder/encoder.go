// Package encoder converts a free-running hardware quadrature counter
// into a monotonic signed position and a velocity estimate.
//
// Grounded on the signed-wraparound idiom used throughout
// core/scheduler.go ("int32(a-b) < 0" to compare wrapping 32-bit timer
// values): the same trick widens a free-running, wrapping hardware
// counter into an unbounded int64 position here, generalized to also
// cover 16-bit counters via hal.CounterWidth.
package encoder

import (
	"time"

	"linebot/hal"
)

// Encoder tracks wheel rotation from a raw hardware pulse counter.
type Encoder struct {
	counter hal.QuadratureCounter

	countsPerRev    int
	circumferenceCm float64

	initialized bool
	lastRaw     uint64
	lastWidth   hal.CounterWidth

	position    int64
	velocityCps float64 // counts per second, signed
}

// New creates an Encoder. countsPerRev is the number of quadrature
// counts per wheel revolution; circumferenceCm is the wheel's rolling
// circumference in centimeters.
func New(counter hal.QuadratureCounter, countsPerRev int, circumferenceCm float64) *Encoder {
	if countsPerRev <= 0 {
		panic("encoder: countsPerRev must be positive")
	}
	return &Encoder{counter: counter, countsPerRev: countsPerRev, circumferenceCm: circumferenceCm}
}

// Update samples the hardware counter and folds its movement into the
// accumulated position and instantaneous velocity. dt must be positive
// on every call after the first; the first call only establishes the
// baseline and reports zero movement, since there is no prior sample
// to difference against.
func (e *Encoder) Update(dt time.Duration) {
	raw, width := e.counter.Count()

	if !e.initialized {
		e.lastRaw = raw
		e.lastWidth = width
		e.initialized = true
		return
	}

	delta := wrapDelta(raw, e.lastRaw, width)
	e.lastRaw = raw
	e.lastWidth = width
	e.position += delta

	if dt > 0 {
		e.velocityCps = float64(delta) / dt.Seconds()
	} else {
		e.velocityCps = 0
	}
}

// wrapDelta computes cur-prev as a signed difference in the counter's
// native bit width, so a wraparound in either direction still yields
// the correct small delta instead of a huge spurious jump.
func wrapDelta(cur, prev uint64, width hal.CounterWidth) int64 {
	switch width {
	case hal.CounterWidth16:
		return int64(int16(uint16(cur) - uint16(prev)))
	default:
		return int64(int32(uint32(cur) - uint32(prev)))
	}
}

// Position returns the accumulated distance traveled in centimeters,
// signed by direction of travel.
func (e *Encoder) Position() float64 {
	return float64(e.position) * e.circumferenceCm / float64(e.countsPerRev)
}

// Velocity returns the instantaneous linear velocity in cm/s, signed
// by direction of travel, as measured over the most recent Update.
func (e *Encoder) Velocity() float64 {
	return e.velocityCps / float64(e.countsPerRev) * e.circumferenceCm
}

// Reset zeroes the accumulated position without touching the velocity
// estimate or the hardware counter baseline.
func (e *Encoder) Reset() {
	e.position = 0
}
