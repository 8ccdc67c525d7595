// Package linesensor drives a 6-channel I2C reflectance array used for
// line following.
//
// Grounded on core/i2c_hal.go's capability split (bus
// address + register read), generalized here to the sensor's specific
// quirks: readings must be taken with a calibration pass before the
// raw ADC counts are meaningful, the hardware silently returns stale
// data on the first read after any gap and must be read twice to
// settle, and channel position on the board does not match channel
// order on the bus, requiring a remap table.
package linesensor

import (
	"math"
	"time"

	"linebot/hal"
)

// NumChannels is the number of reflectance channels on the array.
const NumChannels = 6

const (
	calibSamples     = 20
	calibSampleDelay = 25 * time.Millisecond

	// DefaultEdgeThreshold is the default discrete-derivative threshold,
	// in raw LSB units, above which the spatial derivative between two
	// adjacent channels is reported as a line-boundary crossing.
	DefaultEdgeThreshold = 110

	// analogReadReg selects the analog-read register; the second
	// argument byte picks which physical pin to convert.
	analogReadReg = 0x0C

	// middleChannelStart is the offset into the 10-entry PinMap where
	// the array's six usable middle channels begin; the outer two pins
	// on either side are unused on this board.
	middleChannelStart = 2
)

// PinMap remaps the 6 logical line-sensor channels onto physical
// positions in a 10-entry register layout, since the board's channel
// wiring does not match the bus register order.
type PinMap [10]uint8

// IdentityPinMap is the no-remap pin map: logical channel i reads
// physical register i. Mostly useful for driving the array with a fake
// bus in tests.
func IdentityPinMap() PinMap {
	return PinMap{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
}

// DefaultPinMap is the board's wire-level remap table: channel position
// at the connector does not match channel order on the I2C expander.
func DefaultPinMap() PinMap {
	return PinMap{0, 4, 5, 6, 8, 7, 3, 2, 1, 9}
}

// Array is a calibrated 6-channel reflectance sensor.
type Array struct {
	bus  hal.I2CBus
	addr uint8
	pins PinMap

	edgeThreshold uint16

	correction [NumChannels]int32
	calibrated bool

	last [NumChannels]uint16
}

// New creates an uncalibrated Array. Calibrate must be run before
// Read's corrected output is meaningful.
func New(bus hal.I2CBus, addr uint8, pins PinMap, edgeThreshold uint16) *Array {
	if bus == nil {
		panic("linesensor: bus must be non-nil")
	}
	return &Array{bus: bus, addr: addr, pins: pins, edgeThreshold: edgeThreshold}
}

// Calibrate takes calibSamples readings calibSampleDelay apart on each
// channel, averages them, and sets each channel's additive correction
// to (mean of all six channel means) - (that channel's own mean), both
// rounded to the nearest integer LSB before subtracting, so a
// fully calibrated array reads an equal corrected value across all six
// channels when presented with a uniform surface. sleep is injected so
// tests can calibrate without waiting in real time.
func (a *Array) Calibrate(sleep func(time.Duration)) error {
	var sums [NumChannels]int64

	for i := 0; i < calibSamples; i++ {
		raw, err := a.readRaw()
		if err != nil {
			return err
		}
		for ch := 0; ch < NumChannels; ch++ {
			sums[ch] += int64(raw[ch])
		}
		if sleep != nil {
			sleep(calibSampleDelay)
		}
	}

	var means [NumChannels]float64
	var meanOfMeans float64
	for ch := 0; ch < NumChannels; ch++ {
		means[ch] = float64(sums[ch]) / float64(calibSamples)
		meanOfMeans += means[ch]
	}
	meanOfMeans /= NumChannels

	target := math.Round(meanOfMeans)
	for ch := 0; ch < NumChannels; ch++ {
		a.correction[ch] = int32(target - math.Round(means[ch]))
	}
	a.calibrated = true
	return nil
}

// Calibrated reports whether Calibrate has completed at least once.
func (a *Array) Calibrated() bool { return a.calibrated }

// readRaw converts each of the array's six middle channels in turn,
// selecting analogReadReg with the channel's physical pin as argument
// and reading back a 2-byte big-endian sample. Each channel is read
// twice and the first reply discarded: the hardware returns the
// previous conversion's stale value on the first read after any gap,
// and only settles on the second.
func (a *Array) readRaw() ([NumChannels]uint16, error) {
	var out [NumChannels]uint16

	for ch := 0; ch < NumChannels; ch++ {
		physical := a.pins[middleChannelStart+ch]
		regSelect := []byte{analogReadReg, physical}

		if _, err := a.bus.Read(a.addr, regSelect, 2); err != nil {
			return out, err
		}
		data, err := a.bus.Read(a.addr, regSelect, 2)
		if err != nil {
			return out, err
		}
		out[ch] = uint16(data[0])<<8 | uint16(data[1])
	}
	return out, nil
}

// Read takes a fresh reading and returns it with the per-channel
// calibration correction applied. Corrected values are clamped to the
// uint16 range since the underlying reading is an unsigned LSB count.
func (a *Array) Read() ([NumChannels]uint16, error) {
	raw, err := a.readRaw()
	if err != nil {
		return [NumChannels]uint16{}, err
	}

	var out [NumChannels]uint16
	for ch := 0; ch < NumChannels; ch++ {
		v := int64(raw[ch]) + int64(a.correction[ch])
		if v < 0 {
			v = 0
		}
		if v > 0xFFFF {
			v = 0xFFFF
		}
		out[ch] = uint16(v)
	}
	a.last = out
	return out, nil
}

// Last returns the most recent corrected reading without touching the
// hardware.
func (a *Array) Last() [NumChannels]uint16 { return a.last }

// Derivative computes the first discrete derivative across the most
// recent corrected reading: element i is last[i+1] - last[i], so a
// dark line under the array shows up as one large derivative of one
// sign followed by one large derivative of the opposite sign as the
// scan crosses first one edge of the line, then the other.
func (a *Array) Derivative() [NumChannels - 1]int32 {
	var d [NumChannels - 1]int32
	for i := 0; i < NumChannels-1; i++ {
		d[i] = int32(a.last[i+1]) - int32(a.last[i])
	}
	return d
}

// Extremum is one spatial-derivative index whose magnitude exceeds the
// edge threshold.
type Extremum struct {
	// Index identifies the position in Derivative()'s output (the
	// boundary between channel Index and channel Index+1).
	Index int
	Value int32
}

// Extrema reports every derivative index whose absolute value exceeds
// the array's edge threshold, in ascending index order.
func (a *Array) Extrema() []Extremum {
	d := a.Derivative()
	var out []Extremum
	for i, v := range d {
		abs := v
		if abs < 0 {
			abs = -abs
		}
		if uint16(abs) > a.edgeThreshold {
			out = append(out, Extremum{Index: i, Value: v})
		}
	}
	return out
}

// LineBounds reports the first pair of opposite-sign extrema in the
// most recent reading: the line the array is tracking is bounded by
// two edges of opposite derivative sign (entering, then leaving, the
// line). ok is false when no such pair exists (no line under the
// array, or only one edge of it is visible).
func (a *Array) LineBounds() (left, right Extremum, ok bool) {
	extrema := a.Extrema()
	for i := 0; i < len(extrema); i++ {
		for j := i + 1; j < len(extrema); j++ {
			if (extrema[i].Value < 0) != (extrema[j].Value < 0) {
				return extrema[i], extrema[j], true
			}
		}
	}
	return Extremum{}, Extremum{}, false
}
