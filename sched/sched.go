// Package sched abstracts wall-clock reads and repeating timers so the
// engine's state machines can be driven deterministically in tests.
// Platform ports supply their own Scheduler; everything else is shared.
package sched

import (
	"sync"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Scheduler runs fn repeatedly at the given interval until the
// returned CancelFunc is called. Implementations must tolerate
// CancelFunc being invoked more than once.
type Scheduler interface {
	ScheduleRepeating(interval time.Duration, fn func()) CancelFunc
}

// CancelFunc stops a repeating task. Safe to call multiple times.
type CancelFunc func()

// SystemClock reads time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// TickerScheduler runs tasks on goroutines backed by time.Ticker.
type TickerScheduler struct{}

var _ Scheduler = TickerScheduler{}

func (TickerScheduler) ScheduleRepeating(interval time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
