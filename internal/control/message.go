package control

import (
	"errors"
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// StatusControlChange is the control-change status byte for MIDI channel 0.
const StatusControlChange = 0xB0

// ErrOutOfRange is returned when a control number or value does not fit in 7 bits.
var ErrOutOfRange = errors.New("out of range")

// Build returns the 3-byte control-change message [0xB0, number, value].
func Build(number, value int) (midi.Message, error) {
	if number < 0 || number > MaxValue {
		return nil, fmt.Errorf("%w: control number %d", ErrOutOfRange, number)
	}
	if value < 0 || value > MaxValue {
		return nil, fmt.Errorf("%w: value %d for control %d", ErrOutOfRange, value, number)
	}
	return midi.ControlChange(0, uint8(number), uint8(value)), nil
}

// Decode extracts the control number and value from a control-change message.
func Decode(msg midi.Message) (number, value uint8, ok bool) {
	var ch uint8
	ok = msg.GetControlChange(&ch, &number, &value)
	return number, value, ok
}
