// Package engine implements the per-frame flush: conflict resolution,
// retrigger protection, immediate transmission and scheduling of delayed
// note-ons and note expiries.
package engine

import (
	"sync"
	"time"

	"github.com/leandrodaf/framemidi/internal/encoder"
	"github.com/leandrodaf/framemidi/internal/queue"
	"github.com/leandrodaf/framemidi/internal/registry"
	"github.com/leandrodaf/framemidi/internal/timing"
	"github.com/leandrodaf/framemidi/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
)

// Config wires an Engine to its collaborators. All fields are required
// except OnTransmitError.
type Config struct {
	Logger          contracts.Logger
	Transport       contracts.Transport
	Scheduler       contracts.Scheduler
	Timing          *timing.Store
	OnTransmitError func(error)
}

// Engine owns the frame's queue and the note registry. Enqueue, Flush and
// Reset must be called from a single goroutine; deferred actions run on the
// scheduler's goroutines.
type Engine struct {
	logger    contracts.Logger
	transport contracts.Transport
	sched     contracts.Scheduler
	timing    *timing.Store
	onError   func(error)

	queue *queue.Queue
	notes *registry.Registry

	sendMu sync.Mutex // Serializes Transmit calls; taken after the registry lock.
}

// New returns an Engine with an empty queue and every note silent.
func New(cfg Config) *Engine {
	return &Engine{
		logger:    cfg.Logger,
		transport: cfg.Transport,
		sched:     cfg.Scheduler,
		timing:    cfg.Timing,
		onError:   cfg.OnTransmitError,
		queue:     queue.New(),
		notes:     registry.New(),
	}
}

// Enqueue appends a validated command to the current frame.
func (e *Engine) Enqueue(c contracts.Command) {
	e.queue.Push(c)
}

// Pending returns the number of commands queued in the current frame.
func (e *Engine) Pending() int {
	return e.queue.Len()
}

// Playing reports whether the note is marked as sounding.
func (e *Engine) Playing(key contracts.NoteKey) bool {
	return e.notes.Playing(key)
}

// PlayingOn returns the notes marked as sounding on a channel.
func (e *Engine) PlayingOn(channel uint8) []uint8 {
	return e.notes.PlayingOn(channel)
}

// Flush resolves and transmits the current frame, then empties the queue.
// The whole frame is applied in one registry update, so deferred actions
// cannot interleave with it.
func (e *Engine) Flush() contracts.FlushStats {
	stats := contracts.FlushStats{Queued: e.queue.Len()}
	if stats.Queued == 0 {
		return stats
	}
	cfg := e.timing.Load()

	cmds, dropped := e.queue.Resolve()
	stats.Dropped = dropped

	var failed failures
	e.notes.Update(func(b *registry.Batch) {
		// Notes already sounding from an earlier frame are released now and
		// retriggered after the note-on delay, so receivers never see an off
		// and an on for the same note with the same timestamp.
		retrigger := sounding(b, cmds)

		for i, c := range cmds {
			if retrigger[i] {
				key, _, _ := contracts.NoteStart(c)
				gen := b.Release(key, func() {
					failed.add(e.transmit(encoder.NoteOff(key)))
					stats.Transmitted++
				})
				e.deferNoteOn(c, gen, cfg)
				stats.Deferred++
				continue
			}
			stats.Transmitted += e.apply(b, c, cfg, &failed)
		}
	})
	e.report(failed)

	e.queue.Reset()

	e.logger.Debug("Frame flushed",
		e.logger.Field().Int("queued", stats.Queued),
		e.logger.Field().Int("dropped", stats.Dropped),
		e.logger.Field().Int("transmitted", stats.Transmitted),
		e.logger.Field().Int("deferred", stats.Deferred))
	return stats
}

// Reset empties the queue, marks every note silent and invalidates pending
// deferred actions. Nothing is transmitted.
func (e *Engine) Reset() {
	e.queue.Reset()
	e.notes.Reset()
}

// Close stops deferred work and closes the transport.
func (e *Engine) Close() error {
	e.sched.Stop()
	return e.transport.Close()
}

// sounding reports, per command, whether it is a note on for a note that was
// playing when the flush started.
func sounding(b *registry.Batch, cmds []contracts.Command) []bool {
	out := make([]bool, len(cmds))
	for i, c := range cmds {
		if key, _, ok := contracts.NoteStart(c); ok {
			out[i] = b.Playing(key)
		}
	}
	return out
}

// apply transmits one command immediately and returns the number of messages sent.
func (e *Engine) apply(b *registry.Batch, c contracts.Command, cfg timing.Config, failed *failures) int {
	sent := 0
	send := func(msg midi.Message) func() {
		return func() {
			failed.add(e.transmit(msg))
			sent++
		}
	}

	switch c := c.(type) {
	case contracts.NoteOn:
		b.Trigger(c.Key(), send(encoder.NoteOn(c.Key(), c.Velocity)))
	case contracts.NoteOnWithDuration:
		gen := b.Trigger(c.Key(), send(encoder.NoteOn(c.Key(), c.Velocity)))
		e.expire(c.Key(), gen, cfg.Expiry(c.Duration, 0))
	case contracts.NoteOff:
		// Silent notes produce no message but still invalidate pending
		// deferred actions.
		b.Release(c.Key(), send(encoder.NoteOff(c.Key())))
	case contracts.AllNotesOff:
		b.ReleaseChannel(c.Channel, func(notes []uint8) {
			for _, msg := range encoder.AllNotesOff(c.Channel, notes) {
				send(msg)()
			}
		})
	default:
		if msg, ok := encoder.Encode(c); ok {
			send(msg)()
		}
	}
	return sent
}

// deferNoteOn transmits the note on of c after the note-on delay, unless the
// note's generation has moved past gen by then.
func (e *Engine) deferNoteOn(c contracts.Command, gen uint64, cfg timing.Config) {
	key, velocity, _ := contracts.NoteStart(c)
	delay := cfg.NoteOnDelay()

	e.sched.AfterFunc(delay, func() {
		var failed failures
		newGen, ok := e.notes.TriggerIf(key, gen, func() {
			failed.add(e.transmit(encoder.NoteOn(key, velocity)))
		})
		e.report(failed)
		if !ok {
			e.logger.Debug("Delayed note on superseded",
				e.logger.Field().Uint8("channel", key.Channel),
				e.logger.Field().Uint8("note", key.Note))
			return
		}
		if timed, isTimed := c.(contracts.NoteOnWithDuration); isTimed {
			e.expire(key, newGen, cfg.Expiry(timed.Duration, delay))
		}
	})
}

// expire schedules the note off ending a timed note. It is skipped if the
// note was retriggered or released in the meantime.
func (e *Engine) expire(key contracts.NoteKey, gen uint64, after time.Duration) {
	e.sched.AfterFunc(after, func() {
		var failed failures
		released := e.notes.ReleaseIf(key, gen, func() {
			failed.add(e.transmit(encoder.NoteOff(key)))
		})
		e.report(failed)
		if !released {
			e.logger.Debug("Note expiry superseded",
				e.logger.Field().Uint8("channel", key.Channel),
				e.logger.Field().Uint8("note", key.Note))
		}
	})
}

// transmit hands one message to the transport. It runs under the registry
// lock, so failures are logged here and reported later through report.
func (e *Engine) transmit(msg midi.Message) error {
	e.sendMu.Lock()
	err := e.transport.Transmit(msg)
	e.sendMu.Unlock()

	if err != nil {
		e.logger.Warn("Failed to transmit MIDI message",
			e.logger.Field().String("message", msg.String()),
			e.logger.Field().Error("error", err))
		return err
	}
	e.logger.Debug("MIDI message transmitted", e.logger.Field().String("message", msg.String()))
	return nil
}

// failures collects transmit errors raised while the registry is locked.
type failures []error

func (f *failures) add(err error) {
	if err != nil {
		*f = append(*f, err)
	}
}

// report passes collected failures to the error handler. It must be called
// with the registry unlocked, so the handler may call back into the engine.
// Failures are never retried.
func (e *Engine) report(failed failures) {
	if e.onError == nil {
		return
	}
	for _, err := range failed {
		e.onError(err)
	}
}
