package midi

// InvalidNote is returned by NoteNumber for names it cannot map to a MIDI note.
const InvalidNote = -1

// Octave range of note names; C3 is middle C (note 60).
const (
	lowestOctave  = -2
	highestOctave = 8
)

var letterSemitones = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

// NoteNumber converts a note name such as "C3", "g#-1" or "Ab6" to a MIDI
// note number. The letter is case-insensitive and may be followed by one
// sharp ('#') or flat ('b'), then an octave from -2 to 8. Malformed names and
// names outside 0-127 return InvalidNote.
func NoteNumber(name string) int {
	if len(name) < 2 || len(name) > 4 {
		return InvalidNote
	}

	letter := name[0]
	if letter >= 'A' && letter <= 'G' {
		letter += 'a' - 'A'
	}
	semitone, ok := letterSemitones[letter]
	if !ok {
		return InvalidNote
	}

	i := 1
	switch name[i] {
	case '#':
		semitone++
		i++
	case 'b':
		semitone--
		i++
	}

	sign := 1
	if i < len(name) && name[i] == '-' {
		sign = -1
		i++
	}

	// Exactly one octave digit must remain.
	if i != len(name)-1 || name[i] < '0' || name[i] > '9' {
		return InvalidNote
	}
	octave := sign * int(name[i]-'0')
	if octave < lowestOctave || octave > highestOctave {
		return InvalidNote
	}

	note := 12*(octave-lowestOctave) + semitone
	if note < 0 || note > 127 {
		return InvalidNote
	}
	return note
}
