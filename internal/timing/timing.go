// Package timing holds the engine's process-wide timing configuration.
package timing

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/leandrodaf/framemidi/sdk/contracts"
)

// Config is an immutable snapshot of the timing settings.
type Config struct {
	DurationUnitMs float64
	NoteOnDelayMs  float64
}

// NoteOnDelay returns the gap between a forced note off and its deferred note on.
func (c Config) NoteOnDelay() time.Duration {
	return millis(c.NoteOnDelayMs)
}

// Expiry returns how long after its note on a note of the given duration is
// released. consumed is the part of the duration already spent waiting for a
// deferred note on.
func (c Config) Expiry(duration int, consumed time.Duration) time.Duration {
	d := millis(float64(duration)*c.DurationUnitMs) - consumed
	if d < 0 {
		return 0
	}
	return d
}

// Validate checks the timing invariants.
func (c Config) Validate() error {
	if math.IsNaN(c.DurationUnitMs) || math.IsInf(c.DurationUnitMs, 0) || c.DurationUnitMs <= 0 {
		return fmt.Errorf("%w: duration unit %vms must be positive", contracts.ErrInvalidArgument, c.DurationUnitMs)
	}
	if math.IsNaN(c.NoteOnDelayMs) || math.IsInf(c.NoteOnDelayMs, 0) || c.NoteOnDelayMs < 0 {
		return fmt.Errorf("%w: note-on delay %vms must not be negative", contracts.ErrInvalidArgument, c.NoteOnDelayMs)
	}
	return nil
}

// Store publishes the current Config to the frame thread. Updates apply to
// flushes that start after Set returns.
type Store struct {
	current atomic.Pointer[Config]
}

// NewStore returns a Store holding c. c must be valid.
func NewStore(c Config) *Store {
	s := &Store{}
	s.current.Store(&c)
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() Config {
	return *s.current.Load()
}

// Set validates c and makes it current.
func (s *Store) Set(c Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.current.Store(&c)
	return nil
}

func millis(ms float64) time.Duration {
	return time.Duration(math.Round(ms * float64(time.Millisecond)))
}
