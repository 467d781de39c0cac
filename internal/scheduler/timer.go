// Package scheduler runs deferred engine actions off the frame thread.
package scheduler

import (
	"sync"
	"time"
)

// Timer runs functions on wall-clock timers. Pending functions are tracked so
// Stop can discard them and wait for the ones already running.
type Timer struct {
	mu      sync.Mutex
	timers  map[uint64]*time.Timer
	nextID  uint64
	stopped bool
	wg      sync.WaitGroup // Counts scheduled functions that have not finished or been discarded.
}

// NewTimer returns a running Timer scheduler.
func NewTimer() *Timer {
	return &Timer{timers: make(map[uint64]*time.Timer)}
}

// AfterFunc runs fn on its own goroutine after d. It does nothing once Stop
// has been called.
func (s *Timer) AfterFunc(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	id := s.nextID
	s.nextID++
	s.wg.Add(1)
	s.timers[id] = time.AfterFunc(d, func() {
		defer s.wg.Done()

		s.mu.Lock()
		_, live := s.timers[id]
		delete(s.timers, id)
		s.mu.Unlock()

		if live {
			fn()
		}
	})
}

// Pending returns the number of functions not yet started.
func (s *Timer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop discards pending functions and waits for running ones to return.
// Calling Stop more than once is safe.
func (s *Timer) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
}
