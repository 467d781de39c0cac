// Package encoder converts resolved commands into MIDI channel messages.
package encoder

import (
	"math"

	"github.com/leandrodaf/framemidi/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
)

// NoteOn encodes [0x90|ch, note, velocity].
func NoteOn(key contracts.NoteKey, velocity uint8) midi.Message {
	return midi.NoteOn(key.Channel, key.Note, velocity)
}

// NoteOff encodes [0x80|ch, note, 0].
func NoteOff(key contracts.NoteKey) midi.Message {
	return midi.NoteOffVelocity(key.Channel, key.Note, 0)
}

// Encode returns the message for a single-message command. AllNotesOff
// depends on which notes are playing; use AllNotesOff for it.
func Encode(c contracts.Command) (midi.Message, bool) {
	switch c := c.(type) {
	case contracts.NoteOn:
		return NoteOn(c.Key(), c.Velocity), true
	case contracts.NoteOnWithDuration:
		return NoteOn(c.Key(), c.Velocity), true
	case contracts.NoteOff:
		return NoteOff(c.Key()), true
	case contracts.ControlChange:
		return midi.ControlChange(c.Channel, c.Controller, c.Value), true
	case contracts.PitchBend:
		return midi.Pitchbend(c.Channel, int16(int(c.Value)-contracts.PitchCenter)), true
	}
	return nil, false
}

// AllNotesOff returns one note off per playing note of the channel. It never
// emits the all-sound-off or all-notes-off controllers.
func AllNotesOff(channel uint8, playing []uint8) []midi.Message {
	msgs := make([]midi.Message, 0, len(playing))
	for _, n := range playing {
		msgs = append(msgs, NoteOff(contracts.NoteKey{Channel: channel, Note: n}))
	}
	return msgs
}

// BendValue maps a bend in [-1, 1] to a 14-bit pitch wheel value: -1 is 0,
// 0 is 8192 and 1 is 16383. Values outside the range are clamped.
func BendValue(bend float64) uint16 {
	bend = math.Max(-1, math.Min(1, bend))
	span := float64(contracts.MaxPitchBend - contracts.PitchCenter)
	if bend < 0 {
		span = contracts.PitchCenter
	}
	return uint16(contracts.PitchCenter + int(math.Round(span*bend)))
}
