package sched

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualClock(t *testing.T) {
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())

	jump := start.Add(24 * time.Hour)
	c.Set(jump)
	assert.Equal(t, jump, c.Now())
}

func TestManualScheduler_TickRunsLiveTasks(t *testing.T) {
	s := NewManualScheduler()
	var ran int
	cancel := s.ScheduleRepeating(time.Second, func() { ran++ })
	require.Equal(t, 1, s.ActiveTasks())

	s.Tick()
	s.Tick()
	assert.Equal(t, 2, ran)

	cancel()
	assert.Zero(t, s.ActiveTasks())
	s.Tick()
	assert.Equal(t, 2, ran, "cancelled task no longer fires")
}

func TestManualScheduler_TaskMayCancelDuringTick(t *testing.T) {
	s := NewManualScheduler()
	var cancel CancelFunc
	ran := 0
	cancel = s.ScheduleRepeating(time.Second, func() {
		ran++
		cancel()
	})

	s.Tick()
	s.Tick()
	assert.Equal(t, 1, ran)
}

func TestTickerScheduler_FiresAndCancels(t *testing.T) {
	s := TickerScheduler{}
	var mu sync.Mutex
	ran := 0
	cancel := s.ScheduleRepeating(5*time.Millisecond, func() {
		mu.Lock()
		ran++
		mu.Unlock()
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ran >= 2
	}, time.Second, time.Millisecond)

	cancel()
	cancel() // idempotent

	mu.Lock()
	after := ran
	mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, ran, after+1, "at most one tick could straddle the cancel")
}

func TestSystemClock(t *testing.T) {
	before := time.Now()
	got := SystemClock{}.Now()
	assert.False(t, got.Before(before))
}
