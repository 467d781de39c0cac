// Package queue accumulates the commands of one frame and removes the ones a
// later command makes redundant.
package queue

import "github.com/leandrodaf/framemidi/sdk/contracts"

// blockSize is the initial capacity; the slice grows from there and keeps its
// capacity across frames.
const blockSize = 64

// Queue is an ordered list of commands. It is owned by the frame thread and
// is not safe for concurrent use.
type Queue struct {
	cmds []contracts.Command
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{cmds: make([]contracts.Command, 0, blockSize)}
}

// Push appends a command. Later commands take precedence over earlier ones.
func (q *Queue) Push(c contracts.Command) {
	q.cmds = append(q.cmds, c)
}

// Len returns the number of queued commands.
func (q *Queue) Len() int {
	return len(q.cmds)
}

// Commands returns the queued commands in insertion order. The slice is only
// valid until the next Push or Reset.
func (q *Queue) Commands() []contracts.Command {
	return q.cmds
}

// Reset empties the queue, keeping its storage.
func (q *Queue) Reset() {
	clear(q.cmds)
	q.cmds = q.cmds[:0]
}

type ccKey struct {
	channel    uint8
	controller uint8
}

// Resolve returns the commands that survive conflict resolution, in their
// original order, and the number dropped. The queue itself is not modified.
//
// Scanning from newest to oldest:
//   - a note on is dropped when a later note on, note off or all-notes-off
//     addresses the same note;
//   - a control change is dropped when a later one targets the same
//     controller on the same channel;
//   - a pitch bend is dropped when a later one targets the same channel;
//   - note offs and all-notes-offs are always kept.
func (q *Queue) Resolve() ([]contracts.Command, int) {
	n := len(q.cmds)
	if n == 0 {
		return nil, 0
	}

	keep := make([]bool, n)
	notesSeen := make(map[contracts.NoteKey]struct{})
	ccsSeen := make(map[ccKey]struct{})
	var channelReset, bendSeen [contracts.NumChannels]bool

	kept := 0
	for i := n - 1; i >= 0; i-- {
		switch c := q.cmds[i].(type) {
		case contracts.NoteOn, contracts.NoteOnWithDuration:
			key, _, _ := contracts.NoteStart(c)
			if _, later := notesSeen[key]; later || channelReset[key.Channel] {
				continue
			}
			notesSeen[key] = struct{}{}
		case contracts.NoteOff:
			notesSeen[c.Key()] = struct{}{}
		case contracts.AllNotesOff:
			channelReset[c.Channel] = true
		case contracts.ControlChange:
			k := ccKey{c.Channel, c.Controller}
			if _, later := ccsSeen[k]; later {
				continue
			}
			ccsSeen[k] = struct{}{}
		case contracts.PitchBend:
			if bendSeen[c.Channel] {
				continue
			}
			bendSeen[c.Channel] = true
		}
		keep[i] = true
		kept++
	}

	out := make([]contracts.Command, 0, kept)
	for i, c := range q.cmds {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out, n - kept
}
