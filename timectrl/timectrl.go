// Package timectrl provides simulated time for the channel simulator: an
// opaque monotonic clock plus delayed-callback scheduling, driven by a
// single-threaded discrete-event loop.
package timectrl

import (
	"container/heap"
	"time"
)

// SimClock exposes the current simulated time as an offset from the start
// of the run. Components that only need to read time depend on this rather
// than on the concrete Scheduler.
type SimClock interface {
	Now() time.Duration
}

type event struct {
	at  time.Duration
	seq uint64 // insertion order, breaks ties between equal timestamps
	fn  func()
}

type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(*event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return ev
}

// Scheduler runs callbacks in simulated-time order. All methods must be
// called from a single goroutine; callbacks may schedule further events.
// Simulated time only advances between callbacks, never during one.
type Scheduler struct {
	now     time.Duration
	queue   eventHeap
	seq     uint64
	stopped bool
}

// NewScheduler constructs a scheduler with simulated time at zero.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Now returns the current simulated time. Implements SimClock.
func (s *Scheduler) Now() time.Duration { return s.now }

// Schedule queues fn to run after delay of simulated time. A non-positive
// delay runs fn at the current instant, after already-queued events for
// that instant.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) {
	if delay < 0 {
		delay = 0
	}
	s.ScheduleAt(s.now+delay, fn)
}

// ScheduleAt queues fn to run at the absolute simulated time at. Times in
// the past are clamped to the current instant.
func (s *Scheduler) ScheduleAt(at time.Duration, fn func()) {
	if at < s.now {
		at = s.now
	}
	s.seq++
	heap.Push(&s.queue, &event{at: at, seq: s.seq, fn: fn})
}

// Run dispatches events in order until the queue is empty or Stop is
// called. It returns the final simulated time.
func (s *Scheduler) Run() time.Duration {
	return s.RunUntil(-1)
}

// RunUntil dispatches events with timestamps up to and including horizon,
// or all events when horizon is negative. Events beyond the horizon stay
// queued.
func (s *Scheduler) RunUntil(horizon time.Duration) time.Duration {
	s.stopped = false
	for s.queue.Len() > 0 && !s.stopped {
		next := s.queue[0]
		if horizon >= 0 && next.at > horizon {
			break
		}
		heap.Pop(&s.queue)
		s.now = next.at
		next.fn()
	}
	if horizon >= 0 && horizon > s.now && !s.stopped {
		s.now = horizon
	}
	return s.now
}

// Stop halts the event loop after the currently running callback returns.
func (s *Scheduler) Stop() { s.stopped = true }

// Pending reports the number of queued events.
func (s *Scheduler) Pending() int { return s.queue.Len() }
