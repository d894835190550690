package lockout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Allow2/brave-core-sub002/sched"
)

func newTestTracker(cfg Config) (*Tracker, *sched.ManualClock) {
	clock := sched.NewManualClock(time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC))
	return New(cfg, clock), clock
}

func TestTracker_AllowsBeforeThreshold(t *testing.T) {
	tr, _ := newTestTracker(DefaultConfig())

	for i := 0; i < DefaultConfig().Threshold-1; i++ {
		tr.RecordFailure("child-1")
		locked, _ := tr.IsLockedOut("child-1")
		assert.False(t, locked, "should not lock before reaching the threshold")
	}
}

func TestTracker_LocksAtThreshold(t *testing.T) {
	tr, _ := newTestTracker(DefaultConfig())

	for i := 0; i < DefaultConfig().Threshold; i++ {
		tr.RecordFailure("child-1")
	}
	locked, remaining := tr.IsLockedOut("child-1")
	require.True(t, locked, "threshold failures must lock")
	assert.Equal(t, DefaultConfig().BaseLockout, remaining)
}

func TestTracker_ExponentialBackoff(t *testing.T) {
	tr, _ := newTestTracker(DefaultConfig())

	for i := 0; i < DefaultConfig().Threshold; i++ {
		tr.RecordFailure("child-1")
	}
	_, first := tr.IsLockedOut("child-1")

	tr.RecordFailure("child-1")
	_, second := tr.IsLockedOut("child-1")
	assert.Equal(t, first*2, second, "one more failure should double the lockout")
}

func TestTracker_BackoffCap(t *testing.T) {
	cfg := DefaultConfig()
	tr, _ := newTestTracker(cfg)

	for i := 0; i < cfg.Threshold+20; i++ {
		tr.RecordFailure("child-1")
	}
	_, remaining := tr.IsLockedOut("child-1")
	assert.LessOrEqual(t, remaining, cfg.MaxLockout)
}

func TestTracker_SuccessClearsAtomically(t *testing.T) {
	tr, _ := newTestTracker(DefaultConfig())

	for i := 0; i < DefaultConfig().Threshold; i++ {
		tr.RecordFailure("child-1")
	}
	locked, _ := tr.IsLockedOut("child-1")
	require.True(t, locked)

	tr.RecordSuccess("child-1")
	locked, _ = tr.IsLockedOut("child-1")
	assert.False(t, locked)
	assert.Zero(t, tr.Failures("child-1"), "success resets attempts to zero")
}

func TestTracker_LockoutExpiresButAttemptsPersist(t *testing.T) {
	cfg := DefaultConfig()
	tr, clock := newTestTracker(cfg)

	for i := 0; i < cfg.Threshold; i++ {
		tr.RecordFailure("child-1")
	}
	clock.Advance(cfg.BaseLockout + time.Second)

	locked, _ := tr.IsLockedOut("child-1")
	assert.False(t, locked, "lockout expires with time")
	assert.Equal(t, cfg.Threshold, tr.Failures("child-1"),
		"attempts do not decay with mere time passing")

	// The next failure counts from the previous total, producing a
	// longer lockout immediately.
	tr.RecordFailure("child-1")
	locked, remaining := tr.IsLockedOut("child-1")
	require.True(t, locked)
	assert.Equal(t, cfg.BaseLockout*2, remaining)
}

func TestTracker_IsolatesIdentities(t *testing.T) {
	tr, _ := newTestTracker(DefaultConfig())

	for i := 0; i < DefaultConfig().Threshold; i++ {
		tr.RecordFailure("child-1")
	}
	locked, _ := tr.IsLockedOut("child-2")
	assert.False(t, locked, "one identity's lockout must not leak to another")
}

func TestTracker_UnknownIdentityNotLocked(t *testing.T) {
	tr, _ := newTestTracker(DefaultConfig())
	locked, remaining := tr.IsLockedOut("nobody")
	assert.False(t, locked)
	assert.Zero(t, remaining)
}

func TestTracker_SweepRemovesStaleRecords(t *testing.T) {
	cfg := DefaultConfig()
	tr, clock := newTestTracker(cfg)

	tr.RecordFailure("old")
	clock.Advance(cfg.AttemptExpiry + time.Minute)
	tr.Sweep()

	assert.Zero(t, tr.Failures("old"), "sweep drops expired records wholesale")
}

func TestTracker_VoiceCodeConfig(t *testing.T) {
	cfg := VoiceCodeConfig()
	tr, _ := newTestTracker(cfg)

	tr.RecordFailure("voice:123456")
	tr.RecordFailure("voice:123456")
	locked, _ := tr.IsLockedOut("voice:123456")
	assert.False(t, locked)

	tr.RecordFailure("voice:123456")
	locked, remaining := tr.IsLockedOut("voice:123456")
	require.True(t, locked, "three strikes lock the voice flow")
	assert.Equal(t, 30*time.Second, remaining)
}
