package session

import (
	"time"

	"github.com/Allow2/brave-core-sub002/remote"
)

// Credentials is the pairing secret owned by the device. Cleared in
// full on unpair; transmitted only as bearer material on checks.
type Credentials = remote.Credentials

// Child is a profile snapshot cached from the last authoritative
// refresh. Snapshots are replaced wholesale, never merged.
type Child = remote.Child

// SessionState is the persisted value object describing the current
// session. SharedDeviceMode is true exactly when the device is paired,
// no child is selected, and more than one child exists.
type SessionState struct {
	Paired           bool   `json:"paired"`
	SelectedChildID  string `json:"selectedChildId,omitempty"`
	SharedDeviceMode bool   `json:"sharedDeviceMode"`
}

// MaxRemainingSeconds caps ingested remaining time at 24 hours to
// tolerate a hostile or buggy server.
const MaxRemainingSeconds = 86400

// ClampRemainingSeconds clamps a reported remaining time into
// [0, MaxRemainingSeconds].
func ClampRemainingSeconds(r int) int {
	if r < 0 {
		return 0
	}
	if r > MaxRemainingSeconds {
		return MaxRemainingSeconds
	}
	return r
}

// CachedCheckResult is the last trusted verdict from the remote
// service. It is replaced wholesale on every successful check and
// treated as unusable once the clock passes ExpiresAt.
type CachedCheckResult struct {
	Allowed          bool                             `json:"allowed"`
	RemainingSeconds int                              `json:"remainingSeconds"`
	DayType          string                           `json:"dayType,omitempty"`
	Banned           bool                             `json:"banned,omitempty"`
	BlockReason      string                           `json:"blockReason,omitempty"`
	PerActivity      map[string]remote.ActivityResult `json:"perActivity,omitempty"`
	FetchedAt        time.Time                        `json:"fetchedAt"`
	ExpiresAt        time.Time                        `json:"expiresAt"`

	// Stale marks a result served from cache after a failed refresh,
	// so the UI can indicate "may be outdated". Not persisted.
	Stale bool `json:"-"`
}

// Expired reports whether the cached verdict is too old to act on.
func (c CachedCheckResult) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// ingestCheckResult converts a wire result into a cached verdict,
// clamping the remaining time at the boundary.
func ingestCheckResult(r remote.CheckResult, now time.Time, ttl time.Duration) CachedCheckResult {
	return CachedCheckResult{
		Allowed:          r.Allowed,
		RemainingSeconds: ClampRemainingSeconds(r.MinimumRemainingSeconds),
		DayType:          r.DayType,
		Banned:           r.Banned,
		BlockReason:      r.BlockReason,
		PerActivity:      r.Activities,
		FetchedAt:        now,
		ExpiresAt:        now.Add(ttl),
	}
}
