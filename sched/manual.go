package sched

import (
	"sync"
	"time"
)

// ManualClock is a Clock whose time only moves when told to. For tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a ManualClock starting at the given time.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// ManualScheduler records scheduled tasks and runs them only when the
// test calls Tick. For tests.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	interval  time.Duration
	fn        func()
	cancelled bool
}

// NewManualScheduler returns an empty ManualScheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

var _ Scheduler = (*ManualScheduler)(nil)

func (s *ManualScheduler) ScheduleRepeating(interval time.Duration, fn func()) CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	task := &manualTask{interval: interval, fn: fn}
	s.tasks = append(s.tasks, task)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		task.cancelled = true
	}
}

// Tick fires every live task once, as if one interval elapsed for each.
func (s *ManualScheduler) Tick() {
	s.mu.Lock()
	var fns []func()
	for _, t := range s.tasks {
		if !t.cancelled {
			fns = append(fns, t.fn)
		}
	}
	s.mu.Unlock()
	// Run outside the lock so tasks may schedule or cancel.
	for _, fn := range fns {
		fn()
	}
}

// ActiveTasks returns the number of tasks that have not been cancelled.
func (s *ManualScheduler) ActiveTasks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.cancelled {
			n++
		}
	}
	return n
}
