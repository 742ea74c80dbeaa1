// Package control maps channel statistics onto MIDI control-change messages.
package control

import "math"

// MaxValue is the largest 7-bit MIDI data value.
const MaxValue = 127

// Normalize maps value from [min, max] onto [0, 127] with truncation.
//
// A degenerate range (max <= min) yields 0. The result is clamped, so values
// outside the declared range and floating-point overshoot never escape
// [0, 127].
func Normalize(value, min, max float64) uint8 {
	if !(max > min) {
		return 0
	}
	r := MaxValue * ((value - min) / (max - min))
	switch {
	case math.IsNaN(r), r <= 0:
		return 0
	case r >= MaxValue:
		return MaxValue
	}
	return uint8(r)
}
