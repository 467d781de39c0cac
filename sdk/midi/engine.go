package midi

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/leandrodaf/framemidi/internal/encoder"
	"github.com/leandrodaf/framemidi/internal/engine"
	"github.com/leandrodaf/framemidi/internal/timing"
	"github.com/leandrodaf/framemidi/sdk/contracts"
)

// Engine is the per-frame MIDI command queue a host drives. Producer calls
// queue commands for the current frame; Flush, called once per frame,
// resolves and transmits them.
//
// Producer calls, Flush, Reset and ConfigureTiming are meant to be called
// from the host's frame goroutine. Channels are numbered 1-16.
//
// A nil or zero-value Engine, or one that has been closed, returns
// contracts.ErrUninitialized from every method.
type Engine struct {
	core      *engine.Engine
	timing    *timing.Store
	logger    contracts.Logger
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewEngine creates an initialized engine with the specified options.
// It applies default options for anything not provided.
//
// opts ...contracts.Option: A variadic list of option functions to customize the engine.
//
// Returns:
//   - *Engine: The engine, ready to queue commands.
//   - error: An error if the options are invalid or the default transport cannot be opened.
func NewEngine(opts ...contracts.Option) (*Engine, error) {
	options, err := applyDefaultOptions(opts...)
	if err != nil {
		return nil, err
	}

	store := timing.NewStore(timing.Config{
		DurationUnitMs: options.Timing.DurationUnitMs,
		NoteOnDelayMs:  options.Timing.NoteOnDelayMs,
	})

	e := &Engine{
		timing: store,
		logger: options.Logger,
		core: engine.New(engine.Config{
			Logger:          options.Logger,
			Transport:       options.Transport,
			Scheduler:       options.Scheduler,
			Timing:          store,
			OnTransmitError: options.OnTransmitError,
		}),
	}

	options.Logger.Info("MIDI engine initialized",
		options.Logger.Field().Float64("durationUnitMs", options.Timing.DurationUnitMs),
		options.Logger.Field().Float64("noteOnDelayMs", options.Timing.NoteOnDelayMs))
	return e, nil
}

func (e *Engine) ready() error {
	if e == nil || e.core == nil || e.closed.Load() {
		return contracts.ErrUninitialized
	}
	return nil
}

// NoteOn queues a note that plays until turned off. A velocity of 0 is a no-op.
func (e *Engine) NoteOn(note, velocity, channel int) error {
	if err := e.ready(); err != nil {
		return err
	}
	ch, n, vel, err := noteArgs(note, velocity, channel)
	if err != nil || vel == 0 {
		return err
	}
	e.core.Enqueue(contracts.NoteOn{Channel: ch, Note: n, Velocity: vel})
	return nil
}

// NoteOnWithDuration queues a note that is turned off after duration
// duration units. A velocity of 0 or a duration below 1 is a no-op.
func (e *Engine) NoteOnWithDuration(note, velocity, duration, channel int) error {
	if err := e.ready(); err != nil {
		return err
	}
	ch, n, vel, err := noteArgs(note, velocity, channel)
	if err != nil || vel == 0 || duration <= 0 {
		return err
	}
	e.core.Enqueue(contracts.NoteOnWithDuration{Channel: ch, Note: n, Velocity: vel, Duration: duration})
	return nil
}

// NoteOff queues the release of a note.
func (e *Engine) NoteOff(note, channel int) error {
	if err := e.ready(); err != nil {
		return err
	}
	ch, err := channelArg(channel)
	if err != nil {
		return err
	}
	n, err := rangeArg("note", note, contracts.MaxNote)
	if err != nil {
		return err
	}
	e.core.Enqueue(contracts.NoteOff{Channel: ch, Note: n})
	return nil
}

// ControlChange queues a controller change. Controllers 120-127 are channel
// mode messages and are rejected.
func (e *Engine) ControlChange(controller, value, channel int) error {
	if err := e.ready(); err != nil {
		return err
	}
	ch, err := channelArg(channel)
	if err != nil {
		return err
	}
	cc, err := rangeArg("controller", controller, contracts.MaxController)
	if err != nil {
		return err
	}
	v, err := rangeArg("value", value, contracts.MaxValue)
	if err != nil {
		return err
	}
	e.core.Enqueue(contracts.ControlChange{Channel: ch, Controller: cc, Value: v})
	return nil
}

// PitchBend queues a pitch wheel position. bend runs from -1 (lowest) through
// 0 (center) to 1 (highest); values outside that range are clamped.
func (e *Engine) PitchBend(bend float64, channel int) error {
	if err := e.ready(); err != nil {
		return err
	}
	ch, err := channelArg(channel)
	if err != nil {
		return err
	}
	if math.IsNaN(bend) {
		return fmt.Errorf("%w: pitch bend is NaN", contracts.ErrInvalidArgument)
	}
	e.core.Enqueue(contracts.PitchBend{Channel: ch, Value: encoder.BendValue(bend)})
	return nil
}

// AllNotesOff queues the release of every note playing on the channel.
func (e *Engine) AllNotesOff(channel int) error {
	if err := e.ready(); err != nil {
		return err
	}
	ch, err := channelArg(channel)
	if err != nil {
		return err
	}
	e.core.Enqueue(contracts.AllNotesOff{Channel: ch})
	return nil
}

// ConfigureTiming sets the length of one duration unit and the delay between
// a forced note off and its deferred note on, both in milliseconds. The
// values apply from the next Flush.
func (e *Engine) ConfigureTiming(durationUnitMs, noteOnDelayMs float64) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.timing.Set(timing.Config{DurationUnitMs: durationUnitMs, NoteOnDelayMs: noteOnDelayMs}); err != nil {
		return err
	}
	e.logger.Info("Timing configured",
		e.logger.Field().Float64("durationUnitMs", durationUnitMs),
		e.logger.Field().Float64("noteOnDelayMs", noteOnDelayMs))
	return nil
}

// Flush resolves and transmits the commands queued since the last Flush.
func (e *Engine) Flush() (contracts.FlushStats, error) {
	if err := e.ready(); err != nil {
		return contracts.FlushStats{}, err
	}
	return e.core.Flush(), nil
}

// Pending returns the number of commands queued in the current frame.
func (e *Engine) Pending() (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	return e.core.Pending(), nil
}

// Playing reports whether a note is marked as sounding.
func (e *Engine) Playing(note, channel int) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	ch, err := channelArg(channel)
	if err != nil {
		return false, err
	}
	n, err := rangeArg("note", note, contracts.MaxNote)
	if err != nil {
		return false, err
	}
	return e.core.Playing(contracts.NoteKey{Channel: ch, Note: n}), nil
}

// PlayingNotes returns the notes marked as sounding on a channel.
func (e *Engine) PlayingNotes(channel int) ([]int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	ch, err := channelArg(channel)
	if err != nil {
		return nil, err
	}
	playing := e.core.PlayingOn(ch)
	notes := make([]int, len(playing))
	for i, n := range playing {
		notes[i] = int(n)
	}
	return notes, nil
}

// Reset discards the current frame, marks every note silent and invalidates
// delayed note-ons and expiries. Nothing is transmitted.
//
// Notes the receiver is still sounding stay on: after Reset, NoteOff and
// AllNotesOff only release notes triggered since. To silence the receiver,
// queue AllNotesOff for each channel in use and Flush before calling Reset.
func (e *Engine) Reset() error {
	if err := e.ready(); err != nil {
		return err
	}
	e.core.Reset()
	e.logger.Info("MIDI engine reset")
	return nil
}

// Close stops deferred work and closes the transport. Later calls on the
// engine return contracts.ErrUninitialized. Closing twice is safe.
func (e *Engine) Close() error {
	if e == nil || e.core == nil {
		return contracts.ErrUninitialized
	}
	e.closeOnce.Do(func() {
		e.closed.Store(true)
		if err := e.core.Close(); err != nil {
			e.closeErr = fmt.Errorf("close transport: %w", err)
			e.logger.Error("Failed to close transport", e.logger.Field().Error("error", err))
			return
		}
		e.logger.Info("MIDI engine closed")
	})
	return e.closeErr
}

func channelArg(channel int) (uint8, error) {
	if channel < 1 || channel > contracts.NumChannels {
		return 0, fmt.Errorf("%w: channel %d outside 1-%d", contracts.ErrInvalidArgument, channel, contracts.NumChannels)
	}
	return uint8(channel - 1), nil
}

func rangeArg(name string, v, max int) (uint8, error) {
	if v < 0 || v > max {
		return 0, fmt.Errorf("%w: %s %d outside 0-%d", contracts.ErrInvalidArgument, name, v, max)
	}
	return uint8(v), nil
}

func noteArgs(note, velocity, channel int) (ch, n, vel uint8, err error) {
	if ch, err = channelArg(channel); err != nil {
		return
	}
	if n, err = rangeArg("note", note, contracts.MaxNote); err != nil {
		return
	}
	vel, err = rangeArg("velocity", velocity, contracts.MaxVelocity)
	return
}

func validateTiming(t contracts.TimingConfig) error {
	return timing.Config{DurationUnitMs: t.DurationUnitMs, NoteOnDelayMs: t.NoteOnDelayMs}.Validate()
}
