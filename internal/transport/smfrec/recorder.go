// Package smfrec records engine output to a Standard MIDI File.
//
// Messages are stamped with the wall-clock time they were transmitted, so a
// recording replays deferred note-ons and expiries where they happened.
package smfrec

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/leandrodaf/framemidi/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Recording defaults.
const (
	DefaultTempoBPM   = 120.0
	DefaultResolution = 960
)

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock replaces time.Now as the source of event times.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithTempo sets the tempo written to the file and used to convert times to ticks.
func WithTempo(bpm float64) Option {
	return func(r *Recorder) {
		r.tempo = bpm
	}
}

// WithResolution sets the ticks per quarter note.
func WithResolution(ticks uint16) Option {
	return func(r *Recorder) {
		r.resolution = smf.MetricTicks(ticks)
	}
}

// Recorder is a transport that buffers messages in a single track and
// writes the file on Close.
type Recorder struct {
	logger     contracts.Logger
	w          io.Writer
	closer     io.Closer
	now        func() time.Time
	tempo      float64
	resolution smf.MetricTicks

	mu      sync.Mutex
	track   smf.Track
	start   time.Time
	started bool
	tick    uint32 // absolute tick of the last event
	events  int
	closed  bool
}

// New returns a recorder that writes the file to w on Close.
func New(log contracts.Logger, w io.Writer, opts ...Option) (*Recorder, error) {
	r := &Recorder{
		logger:     log,
		w:          w,
		now:        time.Now,
		tempo:      DefaultTempoBPM,
		resolution: smf.MetricTicks(DefaultResolution),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tempo <= 0 || r.resolution == 0 {
		return nil, fmt.Errorf("%w: tempo %v, resolution %d", contracts.ErrInvalidArgument, r.tempo, r.resolution)
	}

	r.track.Add(0, smf.MetaTempo(r.tempo))
	return r, nil
}

// Create returns a recorder that writes to a new file at path.
func Create(log contracts.Logger, path string, opts ...Option) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	r, err := New(log, f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	log.Info("Recording MIDI output", log.Field().String("path", path))
	return r, nil
}

// Transmit appends msg to the track. The first message marks time zero.
func (r *Recorder) Transmit(msg []byte) error {
	at := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return contracts.ErrTransportClosed
	}
	if !r.started {
		r.start = at
		r.started = true
	}

	tick := r.resolution.Ticks(r.tempo, at.Sub(r.start))
	if tick < r.tick {
		tick = r.tick
	}
	r.track.Add(tick-r.tick, append([]byte(nil), msg...))
	r.tick = tick
	r.events++
	return nil
}

// Close ends the track and writes the file. Calling it again is a no-op.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	r.track.Close(0)
	s := smf.New()
	s.TimeFormat = r.resolution
	if err := s.Add(r.track); err != nil {
		return fmt.Errorf("add track: %w", err)
	}

	_, err := s.WriteTo(r.w)
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		r.logger.Error("Failed to write recording", r.logger.Field().Error("error", err))
		return fmt.Errorf("write recording: %w", err)
	}

	r.logger.Info("Recording written",
		r.logger.Field().Int("events", r.events),
		r.logger.Field().Duration("length", r.resolution.Duration(r.tempo, r.tick)))
	return nil
}
