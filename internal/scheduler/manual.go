package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

type plannedTask struct {
	at  time.Duration
	seq uint64
	fn  func()
}

// taskHeap orders tasks by due time, then by scheduling order.
type taskHeap []plannedTask

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x any)   { *h = append(*h, x.(plannedTask)) }
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = plannedTask{}
	*h = old[:n-1]
	return x
}

// Manual is a scheduler driven by a virtual clock. Functions run
// synchronously inside Advance, in due-time order. It is used by tests and by
// offline rendering, where frames are simulated rather than waited for.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	tasks taskHeap
}

// NewManual returns a Manual scheduler at virtual time zero.
func NewManual() *Manual {
	return &Manual{}
}

// AfterFunc schedules fn at Now()+d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	heap.Push(&m.tasks, plannedTask{at: m.now + d, seq: m.seq, fn: fn})
	m.seq++
}

// Advance moves the clock forward by d, running every function that falls
// due, including ones scheduled by functions run during this call.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		if len(m.tasks) == 0 || m.tasks[0].at > target {
			m.now = target
			m.mu.Unlock()
			return
		}
		t := heap.Pop(&m.tasks).(plannedTask)
		m.now = t.at
		m.mu.Unlock()

		t.fn()
	}
}

// Now returns the virtual time elapsed since creation.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Pending returns the number of functions not yet run.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Stop discards every pending function.
func (m *Manual) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = nil
}
