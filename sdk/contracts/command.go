package contracts

// Channel, note and value limits for queued commands.
const (
	MaxChannel    = 15    // Highest zero-indexed MIDI channel.
	MaxNote       = 127   // Highest MIDI note number.
	MaxVelocity   = 127   // Highest note-on velocity.
	MaxController = 119   // Highest controller number; 120-127 are channel mode messages.
	MaxValue      = 127   // Highest controller value.
	MaxPitchBend  = 16383 // Highest 14-bit pitch bend value.
	PitchCenter   = 8192  // Pitch bend value for no bend.
	NumChannels   = MaxChannel + 1
	NumNotes      = MaxNote + 1
)

// Command is one event requested during a frame. It is one of NoteOn,
// NoteOnWithDuration, NoteOff, ControlChange, PitchBend or AllNotesOff.
type Command interface {
	// Chan returns the zero-indexed channel the command addresses.
	Chan() uint8
	command()
}

// NoteKey identifies a note on a channel.
type NoteKey struct {
	Channel uint8
	Note    uint8
}

// NoteOn starts a note that plays until turned off.
type NoteOn struct {
	Channel  uint8
	Note     uint8
	Velocity uint8 // 1-127, never 0.
}

// NoteOnWithDuration starts a note that is turned off automatically after
// Duration duration units.
type NoteOnWithDuration struct {
	Channel  uint8
	Note     uint8
	Velocity uint8
	Duration int // Strictly positive, in duration units.
}

// NoteOff stops a note.
type NoteOff struct {
	Channel uint8
	Note    uint8
}

// ControlChange sets a controller to a value.
type ControlChange struct {
	Channel    uint8
	Controller uint8
	Value      uint8
}

// PitchBend sets the 14-bit pitch wheel position of a channel.
type PitchBend struct {
	Channel uint8
	Value   uint16
}

// AllNotesOff stops every note currently playing on a channel.
type AllNotesOff struct {
	Channel uint8
}

func (c NoteOn) Chan() uint8             { return c.Channel }
func (c NoteOnWithDuration) Chan() uint8 { return c.Channel }
func (c NoteOff) Chan() uint8            { return c.Channel }
func (c ControlChange) Chan() uint8      { return c.Channel }
func (c PitchBend) Chan() uint8          { return c.Channel }
func (c AllNotesOff) Chan() uint8        { return c.Channel }

func (NoteOn) command()             {}
func (NoteOnWithDuration) command() {}
func (NoteOff) command()            {}
func (ControlChange) command()      {}
func (PitchBend) command()          {}
func (AllNotesOff) command()        {}

// Key returns the note addressed by the command.
func (c NoteOn) Key() NoteKey { return NoteKey{c.Channel, c.Note} }

// Key returns the note addressed by the command.
func (c NoteOnWithDuration) Key() NoteKey { return NoteKey{c.Channel, c.Note} }

// Key returns the note addressed by the command.
func (c NoteOff) Key() NoteKey { return NoteKey{c.Channel, c.Note} }

// NoteStart reports whether c triggers a note and returns the note and its
// velocity.
func NoteStart(c Command) (key NoteKey, velocity uint8, ok bool) {
	switch c := c.(type) {
	case NoteOn:
		return c.Key(), c.Velocity, true
	case NoteOnWithDuration:
		return c.Key(), c.Velocity, true
	}
	return NoteKey{}, 0, false
}

// FlushStats summarizes one flush.
type FlushStats struct {
	Queued      int // Commands in the queue when the flush started.
	Dropped     int // Commands removed by conflict resolution.
	Transmitted int // Messages handed to the transport immediately.
	Deferred    int // Note-ons moved to the delayed batch.
}
