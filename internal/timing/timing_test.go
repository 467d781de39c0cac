package timing

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/leandrodaf/framemidi/sdk/contracts"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		valid bool
	}{
		{"defaults", Config{1000.0 / 60.0, 0}, true},
		{"with delay", Config{16, 5}, true},
		{"zero unit", Config{0, 0}, false},
		{"negative unit", Config{-1, 0}, false},
		{"negative delay", Config{16, -0.5}, false},
		{"nan unit", Config{math.NaN(), 0}, false},
		{"inf delay", Config{16, math.Inf(1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid && !errors.Is(err, contracts.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestConfigExpiry(t *testing.T) {
	c := Config{DurationUnitMs: 16.67, NoteOnDelayMs: 10}

	if got, want := c.Expiry(4, 0), 66680*time.Microsecond; got != want {
		t.Errorf("Expiry(4, 0) = %v, want %v", got, want)
	}
	if got, want := c.Expiry(4, c.NoteOnDelay()), 56680*time.Microsecond; got != want {
		t.Errorf("Expiry(4, delay) = %v, want %v", got, want)
	}
	if got := c.Expiry(1, time.Second); got != 0 {
		t.Errorf("Expiry clamps to zero, got %v", got)
	}
}

func TestStoreSet(t *testing.T) {
	s := NewStore(Config{DurationUnitMs: 16, NoteOnDelayMs: 0})

	if err := s.Set(Config{DurationUnitMs: 20, NoteOnDelayMs: 2}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := s.Load(); got.DurationUnitMs != 20 || got.NoteOnDelayMs != 2 {
		t.Errorf("Load() = %+v after Set", got)
	}

	if err := s.Set(Config{DurationUnitMs: 0}); err == nil {
		t.Fatal("Set accepted a zero duration unit")
	}
	if got := s.Load(); got.DurationUnitMs != 20 {
		t.Errorf("invalid Set replaced the config: %+v", got)
	}
}
