package session

import (
	"errors"

	"github.com/Allow2/brave-core-sub002/remote"
)

var (
	// ErrNotPaired is returned by operations that require a completed
	// pairing.
	ErrNotPaired = errors.New("device is not paired")
	// ErrNoChildSelected is returned when an operation needs an active
	// child but the device is in shared-device mode.
	ErrNoChildSelected = errors.New("no child selected")
	// ErrChildNotFound means the referenced child is not in the cached
	// snapshot.
	ErrChildNotFound = errors.New("child not found")
	// ErrInvalidPin means PIN verification failed. Retryable, subject
	// to lockout.
	ErrInvalidPin = errors.New("invalid PIN")
	// ErrLockedOut rejects an authentication attempt during an active
	// lockout without evaluating it.
	ErrLockedOut = errors.New("too many failed attempts")
	// ErrStaleCache means a remote check failed and the cached result
	// had already expired, so no trustworthy verdict exists.
	ErrStaleCache = errors.New("check failed and cached result is stale")
	// ErrGrantRejected means an offline grant token failed validation
	// on this device.
	ErrGrantRejected = errors.New("grant token rejected")
	// ErrPairingActive is returned when starting a pairing while one
	// is already in progress.
	ErrPairingActive = errors.New("pairing already in progress")
)

// ErrUnauthorized re-exports the remote sentinel: the service revoked
// this pairing and the engine has already unpaired locally by the time
// a caller sees it.
var ErrUnauthorized = remote.ErrUnauthorized
