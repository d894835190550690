// Package storage defines the persistence abstraction consumed by the
// authorization engine. The engine treats records as opaque blobs; the
// platform supplies an implementation backed by its encrypted store.
package storage

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Well-known record keys used by the engine.
const (
	KeyCredentials  = "credentials"
	KeyDeviceToken  = "device_token"
	KeyChildren     = "children"
	KeySessionState = "session_state"
	KeyCachedCheck  = "cached_check"
)

// Store is an opaque keyed blob store. Implementations must make each
// call atomic: no reader may observe a half-written record, and
// DeleteAll removes every named key in one unit (unpair depends on
// this).
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	DeleteAll(keys ...string) error
}

// NonceStore records consumed grant-token nonces for replay detection.
// Implementations keep a bounded set; the oldest entries may be
// discarded once Capacity is exceeded, which is safe because grants
// expire within 24 hours anyway.
type NonceStore interface {
	IsUsed(nonce string) (bool, error)
	MarkUsed(nonce string) error
}
