// Package registry tracks which notes are sounding and a generation counter
// per (channel, note) used to detect stale deferred actions.
//
// Every method runs under a single mutex. Callbacks passed to the methods are
// invoked while the lock is held, so the transmission they perform is atomic
// with the state change it causes. Callbacks must not call back into the
// Registry.
package registry

import (
	"sync"

	"github.com/leandrodaf/framemidi/sdk/contracts"
)

// entry is the state of one (channel, note). The generation is 64 bits wide;
// wrapping it would take 2^64 state changes on one note.
type entry struct {
	playing    bool
	generation uint64
}

// Registry is safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	notes [contracts.NumChannels][contracts.NumNotes]entry
}

// New returns a Registry with every note silent.
func New() *Registry {
	return &Registry{}
}

// Playing reports whether the note is marked as sounding.
func (r *Registry) Playing(key contracts.NoteKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notes[key.Channel][key.Note].playing
}

// Generation returns the current generation of the note.
func (r *Registry) Generation(key contracts.NoteKey) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notes[key.Channel][key.Note].generation
}

// Update runs fn with the lock held. The Batch passed to fn reads and changes
// notes without other goroutines observing intermediate states, and is
// invalid once fn returns.
func (r *Registry) Update(fn func(b *Batch)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&Batch{r: r})
}

// Trigger calls send, marks the note playing and advances its generation.
// It returns the new generation.
func (r *Registry) Trigger(key contracts.NoteKey, send func()) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trigger(key, send)
}

// TriggerIf behaves like Trigger when the note's generation still equals gen.
// Otherwise it does nothing and reports false.
func (r *Registry) TriggerIf(key contracts.NoteKey, gen uint64, send func()) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.notes[key.Channel][key.Note].generation != gen {
		return 0, false
	}
	return r.trigger(key, send), true
}

// Release marks the note silent and advances its generation, calling send
// first if the note was playing. It returns the new generation.
func (r *Registry) Release(key contracts.NoteKey, send func()) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.release(key, send)
}

// ReleaseIf behaves like Release when the note's generation
// still equals gen and the note is playing. Otherwise it reports false.
func (r *Registry) ReleaseIf(key contracts.NoteKey, gen uint64, send func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := &r.notes[key.Channel][key.Note]
	if e.generation != gen || !e.playing {
		return false
	}
	r.release(key, send)
	return true
}

// ReleaseChannel calls send once with the playing notes of the channel, in
// ascending order, and marks them silent. send is not called when no note is
// playing. Every note of the channel has its generation advanced. It returns
// the number of notes released.
func (r *Registry) ReleaseChannel(channel uint8, send func(notes []uint8)) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.releaseChannel(channel, send)
}

// PlayingOn returns the playing notes of a channel in ascending order.
func (r *Registry) PlayingOn(channel uint8) []uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var notes []uint8
	for n, e := range r.notes[channel] {
		if e.playing {
			notes = append(notes, uint8(n))
		}
	}
	return notes
}

// Reset marks every note silent and advances every generation without
// transmitting anything.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.notes {
		for n := range r.notes[ch] {
			r.notes[ch][n].playing = false
			r.notes[ch][n].generation++
		}
	}
}

func (r *Registry) trigger(key contracts.NoteKey, send func()) uint64 {
	e := &r.notes[key.Channel][key.Note]
	send()
	e.playing = true
	e.generation++
	return e.generation
}

func (r *Registry) release(key contracts.NoteKey, send func()) uint64 {
	e := &r.notes[key.Channel][key.Note]
	if e.playing {
		send()
	}
	e.playing = false
	e.generation++
	return e.generation
}

func (r *Registry) releaseChannel(channel uint8, send func(notes []uint8)) int {
	var playing []uint8
	for n := range r.notes[channel] {
		e := &r.notes[channel][n]
		if e.playing {
			playing = append(playing, uint8(n))
			e.playing = false
		}
		e.generation++
	}
	if len(playing) > 0 {
		send(playing)
	}
	return len(playing)
}

// Batch exposes Registry operations inside Update. Its methods behave like
// the Registry methods of the same name.
type Batch struct {
	r *Registry
}

// Playing reports whether the note is marked as sounding.
func (b *Batch) Playing(key contracts.NoteKey) bool {
	return b.r.notes[key.Channel][key.Note].playing
}

// Trigger calls send, marks the note playing and advances its generation.
func (b *Batch) Trigger(key contracts.NoteKey, send func()) uint64 {
	return b.r.trigger(key, send)
}

// Release marks the note silent, calling send first if it was playing.
func (b *Batch) Release(key contracts.NoteKey, send func()) uint64 {
	return b.r.release(key, send)
}

// ReleaseChannel marks every note of the channel silent, calling send with
// the notes that were playing.
func (b *Batch) ReleaseChannel(channel uint8, send func(notes []uint8)) int {
	return b.r.releaseChannel(channel, send)
}
