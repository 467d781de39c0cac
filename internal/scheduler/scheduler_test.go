package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/leandrodaf/framemidi/sdk/contracts"
)

var (
	_ contracts.Scheduler = (*Timer)(nil)
	_ contracts.Scheduler = (*Manual)(nil)
)

func TestManualRunsInDueOrder(t *testing.T) {
	m := NewManual()
	var got []string
	m.AfterFunc(30*time.Millisecond, func() { got = append(got, "c") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	m.AfterFunc(10*time.Millisecond, func() { got = append(got, "b") })

	m.Advance(20 * time.Millisecond)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("after 20ms ran %v", got)
	}
	if m.Now() != 20*time.Millisecond {
		t.Errorf("Now() = %v", m.Now())
	}

	m.Advance(10 * time.Millisecond)
	if len(got) != 3 || got[2] != "c" {
		t.Fatalf("after 30ms ran %v", got)
	}
}

func TestManualRunsNestedTasks(t *testing.T) {
	m := NewManual()
	var at []time.Duration
	m.AfterFunc(5*time.Millisecond, func() {
		at = append(at, m.Now())
		m.AfterFunc(5*time.Millisecond, func() { at = append(at, m.Now()) })
	})

	m.Advance(10 * time.Millisecond)
	if len(at) != 2 || at[0] != 5*time.Millisecond || at[1] != 10*time.Millisecond {
		t.Fatalf("nested tasks ran at %v", at)
	}
}

func TestManualStop(t *testing.T) {
	m := NewManual()
	m.AfterFunc(time.Millisecond, func() { t.Error("ran after Stop") })
	m.Stop()
	m.Advance(time.Second)
	if m.Pending() != 0 {
		t.Errorf("Pending() = %d", m.Pending())
	}
}

func TestTimerRuns(t *testing.T) {
	s := NewTimer()
	defer s.Stop()

	done := make(chan struct{})
	s.AfterFunc(time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("function did not run")
	}
}

func TestTimerStopDiscardsPending(t *testing.T) {
	s := NewTimer()
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		s.AfterFunc(time.Hour, func() { ran.Add(1) })
	}
	if s.Pending() != 5 {
		t.Fatalf("Pending() = %d, want 5", s.Pending())
	}

	s.Stop()
	s.Stop()
	s.AfterFunc(0, func() { ran.Add(1) })

	time.Sleep(10 * time.Millisecond)
	if ran.Load() != 0 {
		t.Errorf("%d functions ran after Stop", ran.Load())
	}
}

func TestTimerStopWaitsForRunning(t *testing.T) {
	s := NewTimer()
	started := make(chan struct{})
	var finished atomic.Bool
	s.AfterFunc(0, func() {
		close(started)
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
	})

	<-started
	s.Stop()
	if !finished.Load() {
		t.Error("Stop returned before the running function finished")
	}
}
