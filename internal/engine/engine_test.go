package engine

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/leandrodaf/framemidi/internal/logger"
	"github.com/leandrodaf/framemidi/internal/scheduler"
	"github.com/leandrodaf/framemidi/internal/timing"
	"github.com/leandrodaf/framemidi/internal/transport/capture"
	"github.com/leandrodaf/framemidi/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	engine *Engine
	wire   *capture.Transport
	clock  *scheduler.Manual
	timing *timing.Store
}

func newFixture(t *testing.T, cfg timing.Config) *fixture {
	t.Helper()
	log := logger.New(zaptest.NewLogger(t))
	log.SetLevel(contracts.DebugLevel)

	f := &fixture{
		wire:   capture.New(),
		clock:  scheduler.NewManual(),
		timing: timing.NewStore(cfg),
	}
	f.engine = New(Config{
		Logger:    log,
		Transport: f.wire,
		Scheduler: f.clock,
		Timing:    f.timing,
	})
	return f
}

func (f *fixture) frame(cmds ...contracts.Command) contracts.FlushStats {
	for _, c := range cmds {
		f.engine.Enqueue(c)
	}
	return f.engine.Flush()
}

func noteOn(ch, note, vel uint8) contracts.NoteOn {
	return contracts.NoteOn{Channel: ch, Note: note, Velocity: vel}
}

func noteOff(ch, note uint8) contracts.NoteOff {
	return contracts.NoteOff{Channel: ch, Note: note}
}

func expectWire(t *testing.T, got []midi.Message, want ...[]byte) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d messages %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Errorf("message %d = % X, want % X", i, []byte(got[i]), want[i])
		}
	}
}

var frameTiming = timing.Config{DurationUnitMs: 16.67, NoteOnDelayMs: 0}

func TestRepeatedNoteOnSendsOnce(t *testing.T) {
	f := newFixture(t, frameTiming)

	stats := f.frame(noteOn(0, 60, 100), noteOn(0, 60, 100))

	expectWire(t, f.wire.Take(), []byte{0x90, 60, 100})
	if stats.Queued != 2 || stats.Dropped != 1 || stats.Transmitted != 1 || stats.Deferred != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if f.engine.Pending() != 0 {
		t.Errorf("queue not reset after flush")
	}
}

func TestNoteOnThenOffInSameFrameSendsNothing(t *testing.T) {
	f := newFixture(t, frameTiming)

	f.frame(noteOn(0, 60, 100), noteOff(0, 60))

	expectWire(t, f.wire.Take())
	if f.engine.Playing(contracts.NoteKey{Channel: 0, Note: 60}) {
		t.Error("note marked playing")
	}
}

func TestNoteOffAfterEarlierFrameSendsOff(t *testing.T) {
	f := newFixture(t, frameTiming)
	f.frame(noteOn(0, 60, 100))
	f.wire.Take()

	f.frame(noteOn(0, 60, 90), noteOff(0, 60))

	expectWire(t, f.wire.Take(), []byte{0x80, 60, 0})
}

func TestRetriggerOfSoundingNoteIsDeferred(t *testing.T) {
	f := newFixture(t, timing.Config{DurationUnitMs: 16.67, NoteOnDelayMs: 5})
	f.frame(noteOn(0, 60, 100))
	f.wire.Take()

	stats := f.frame(noteOn(0, 60, 110))
	expectWire(t, f.wire.Take(), []byte{0x80, 60, 0})
	if stats.Deferred != 1 || stats.Transmitted != 1 {
		t.Errorf("stats = %+v", stats)
	}

	f.clock.Advance(4 * time.Millisecond)
	expectWire(t, f.wire.Take())

	f.clock.Advance(time.Millisecond)
	expectWire(t, f.wire.Take(), []byte{0x90, 60, 110})
	if !f.engine.Playing(contracts.NoteKey{Channel: 0, Note: 60}) {
		t.Error("deferred note not marked playing")
	}

	f.clock.Advance(time.Second)
	expectWire(t, f.wire.Take())
}

func TestRetriggerAfterAllNotesOffInSameFrameDoesNotDoubleOff(t *testing.T) {
	f := newFixture(t, timing.Config{DurationUnitMs: 16.67, NoteOnDelayMs: 2})
	f.frame(noteOn(1, 60, 100))
	f.wire.Take()

	f.frame(contracts.AllNotesOff{Channel: 1}, noteOn(1, 60, 100))
	expectWire(t, f.wire.Take(), []byte{0x81, 60, 0})

	f.clock.Advance(2 * time.Millisecond)
	expectWire(t, f.wire.Take(), []byte{0x91, 60, 100})
}

func TestDeferredNoteOnDroppedByLaterNoteOff(t *testing.T) {
	f := newFixture(t, timing.Config{DurationUnitMs: 16.67, NoteOnDelayMs: 20})
	f.frame(noteOn(0, 60, 100))
	f.frame(noteOn(0, 60, 100))
	f.wire.Take()

	f.clock.Advance(10 * time.Millisecond)
	f.frame(noteOff(0, 60))
	f.clock.Advance(time.Second)

	expectWire(t, f.wire.Take())
	if f.engine.Playing(contracts.NoteKey{Channel: 0, Note: 60}) {
		t.Error("stale deferred note on marked the note playing")
	}
}

func TestDeferredNoteOnDroppedByNewerNoteOn(t *testing.T) {
	f := newFixture(t, timing.Config{DurationUnitMs: 16.67, NoteOnDelayMs: 20})
	f.frame(noteOn(0, 60, 100))
	f.frame(noteOn(0, 60, 90))
	f.wire.Take()

	// The note is silent now, so this note on goes out immediately and owns the note.
	f.clock.Advance(10 * time.Millisecond)
	f.frame(noteOn(0, 60, 80))
	expectWire(t, f.wire.Take(), []byte{0x90, 60, 80})

	f.clock.Advance(time.Second)
	expectWire(t, f.wire.Take())
}

func TestTimedNoteExpires(t *testing.T) {
	f := newFixture(t, frameTiming)

	f.frame(contracts.NoteOnWithDuration{Channel: 0, Note: 60, Velocity: 100, Duration: 4})
	expectWire(t, f.wire.Take(), []byte{0x90, 60, 100})

	f.clock.Advance(66 * time.Millisecond)
	expectWire(t, f.wire.Take())

	f.clock.Advance(time.Millisecond)
	expectWire(t, f.wire.Take(), []byte{0x80, 60, 0})
	if f.engine.Playing(contracts.NoteKey{Channel: 0, Note: 60}) {
		t.Error("expired note still playing")
	}
}

func TestRetriggerCancelsPendingExpiry(t *testing.T) {
	f := newFixture(t, frameTiming)

	f.frame(contracts.NoteOnWithDuration{Channel: 0, Note: 60, Velocity: 100, Duration: 4})
	f.clock.Advance(62 * time.Millisecond)
	f.frame(noteOn(0, 60, 100))
	f.clock.Advance(time.Second)

	expectWire(t, f.wire.Take(),
		[]byte{0x90, 60, 100},
		[]byte{0x80, 60, 0},
		[]byte{0x90, 60, 100},
	)
	if !f.engine.Playing(contracts.NoteKey{Channel: 0, Note: 60}) {
		t.Error("retriggered note released by the stale expiry")
	}
}

func TestExplicitNoteOffCancelsPendingExpiry(t *testing.T) {
	f := newFixture(t, frameTiming)

	f.frame(contracts.NoteOnWithDuration{Channel: 0, Note: 60, Velocity: 100, Duration: 4})
	f.clock.Advance(20 * time.Millisecond)
	f.frame(noteOff(0, 60))
	f.clock.Advance(20 * time.Millisecond)
	f.frame(noteOn(0, 60, 50))
	f.clock.Advance(time.Second)

	expectWire(t, f.wire.Take(),
		[]byte{0x90, 60, 100},
		[]byte{0x80, 60, 0},
		[]byte{0x90, 60, 50},
	)
}

func TestDeferredTimedNoteExpiryAccountsForDelay(t *testing.T) {
	f := newFixture(t, timing.Config{DurationUnitMs: 10, NoteOnDelayMs: 10})
	f.frame(noteOn(0, 60, 100))
	f.wire.Take()

	f.frame(contracts.NoteOnWithDuration{Channel: 0, Note: 60, Velocity: 100, Duration: 5})
	expectWire(t, f.wire.Take(), []byte{0x80, 60, 0})

	f.clock.Advance(10 * time.Millisecond)
	expectWire(t, f.wire.Take(), []byte{0x90, 60, 100})

	f.clock.Advance(39 * time.Millisecond)
	expectWire(t, f.wire.Take())

	f.clock.Advance(time.Millisecond)
	expectWire(t, f.wire.Take(), []byte{0x80, 60, 0})
}

func TestTimingChangeIsNotRetroactive(t *testing.T) {
	f := newFixture(t, timing.Config{DurationUnitMs: 10, NoteOnDelayMs: 0})

	f.frame(contracts.NoteOnWithDuration{Channel: 0, Note: 60, Velocity: 100, Duration: 2})
	if err := f.timing.Set(timing.Config{DurationUnitMs: 100, NoteOnDelayMs: 0}); err != nil {
		t.Fatal(err)
	}
	f.frame(contracts.NoteOnWithDuration{Channel: 0, Note: 61, Velocity: 100, Duration: 2})
	f.wire.Take()

	f.clock.Advance(20 * time.Millisecond)
	expectWire(t, f.wire.Take(), []byte{0x80, 60, 0})

	f.clock.Advance(180 * time.Millisecond)
	expectWire(t, f.wire.Take(), []byte{0x80, 61, 0})
}

func TestControlChangeKeepsLastValue(t *testing.T) {
	f := newFixture(t, frameTiming)

	f.frame(
		contracts.ControlChange{Channel: 3, Controller: 74, Value: 1},
		contracts.ControlChange{Channel: 3, Controller: 74, Value: 2},
		contracts.ControlChange{Channel: 3, Controller: 74, Value: 3},
	)

	expectWire(t, f.wire.Take(), []byte{0xB3, 74, 3})
}

func TestPitchBendKeepsLastValue(t *testing.T) {
	f := newFixture(t, frameTiming)

	f.frame(
		contracts.PitchBend{Channel: 0, Value: 0},
		contracts.PitchBend{Channel: 0, Value: contracts.PitchCenter},
	)

	expectWire(t, f.wire.Take(), []byte{0xE0, 0x00, 0x40})
}

func TestAllNotesOffReleasesOnlyPlayingNotes(t *testing.T) {
	f := newFixture(t, frameTiming)

	f.frame(contracts.AllNotesOff{Channel: 2})
	expectWire(t, f.wire.Take())

	f.frame(noteOn(2, 64, 100), noteOn(2, 60, 100), noteOn(5, 60, 100))
	f.wire.Take()

	f.frame(contracts.AllNotesOff{Channel: 2})
	expectWire(t, f.wire.Take(), []byte{0x82, 60, 0}, []byte{0x82, 64, 0})
	if !f.engine.Playing(contracts.NoteKey{Channel: 5, Note: 60}) {
		t.Error("note on another channel released")
	}
	if len(f.engine.PlayingOn(2)) != 0 {
		t.Error("channel 2 still has playing notes")
	}
}

func TestOrderIsPreserved(t *testing.T) {
	f := newFixture(t, frameTiming)

	f.frame(
		contracts.ControlChange{Channel: 0, Controller: 1, Value: 10},
		noteOn(0, 60, 100),
		contracts.PitchBend{Channel: 0, Value: 100},
		noteOn(0, 62, 100),
	)

	expectWire(t, f.wire.Take(),
		[]byte{0xB0, 1, 10},
		[]byte{0x90, 60, 100},
		[]byte{0xE0, 100, 0},
		[]byte{0x90, 62, 100},
	)
}

func TestTransmitErrorsAreReportedNotRetried(t *testing.T) {
	f := newFixture(t, frameTiming)
	boom := errors.New("port gone")
	var reported []error
	f.engine.onError = func(err error) { reported = append(reported, err) }

	f.wire.FailWith(boom)
	f.frame(noteOn(0, 60, 100), contracts.ControlChange{Channel: 0, Controller: 1, Value: 1})
	f.wire.FailWith(nil)
	f.frame()

	if len(reported) != 2 || !errors.Is(reported[0], boom) {
		t.Errorf("reported = %v", reported)
	}
	expectWire(t, f.wire.Take())
}

func TestErrorHandlerMayCallEngine(t *testing.T) {
	f := newFixture(t, frameTiming)
	boom := errors.New("port gone")
	key := contracts.NoteKey{Channel: 0, Note: 60}
	var playing []bool
	f.engine.onError = func(err error) {
		playing = append(playing, f.engine.Playing(key))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.wire.FailWith(boom)
		f.frame(contracts.NoteOnWithDuration{Channel: 0, Note: 60, Velocity: 100, Duration: 1})
		f.clock.Advance(time.Second)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("error handler calling back into the engine deadlocked")
	}
	// The note on failed while the flush held the registry; the expiry failed
	// from a deferred action.
	if len(playing) != 2 || !playing[0] || playing[1] {
		t.Errorf("handler saw playing = %v, want [true false]", playing)
	}
}

func TestResetInvalidatesPendingWork(t *testing.T) {
	f := newFixture(t, frameTiming)
	f.frame(contracts.NoteOnWithDuration{Channel: 0, Note: 60, Velocity: 100, Duration: 1})
	f.engine.Enqueue(noteOn(0, 61, 100))
	f.wire.Take()

	f.engine.Reset()
	if f.engine.Pending() != 0 {
		t.Error("queue not emptied")
	}
	f.clock.Advance(time.Second)
	expectWire(t, f.wire.Take())
	if f.engine.Playing(contracts.NoteKey{Channel: 0, Note: 60}) {
		t.Error("note still playing after Reset")
	}
}

func TestCloseStopsDeferredWork(t *testing.T) {
	f := newFixture(t, frameTiming)
	f.frame(contracts.NoteOnWithDuration{Channel: 0, Note: 60, Velocity: 100, Duration: 1})

	if err := f.engine.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if f.clock.Pending() != 0 {
		t.Errorf("%d deferred actions survived Close", f.clock.Pending())
	}
}

func TestWallClockSchedulerExpiresNote(t *testing.T) {
	wire := capture.New()
	sched := scheduler.NewTimer()
	e := New(Config{
		Logger:    logger.New(zaptest.NewLogger(t)),
		Transport: wire,
		Scheduler: sched,
		Timing:    timing.NewStore(timing.Config{DurationUnitMs: 1, NoteOnDelayMs: 1}),
	})
	defer e.Close()

	e.Enqueue(noteOn(0, 60, 100))
	e.Flush()
	e.Enqueue(contracts.NoteOnWithDuration{Channel: 0, Note: 60, Velocity: 100, Duration: 3})
	e.Flush()

	deadline := time.Now().Add(2 * time.Second)
	for len(wire.Messages()) < 4 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	expectWire(t, wire.Messages(),
		[]byte{0x90, 60, 100},
		[]byte{0x80, 60, 0},
		[]byte{0x90, 60, 100},
		[]byte{0x80, 60, 0},
	)
}
