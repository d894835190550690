package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Allow2/brave-core-sub002/storage"
)

func TestStore_RoundTrip(t *testing.T) {
	s := NewStore()

	_, err := s.Get(storage.KeyCredentials)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Put(storage.KeyCredentials, []byte(`{"userId":"u"}`)))
	got, err := s.Get(storage.KeyCredentials)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"userId":"u"}`), got)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put("k", []byte("abc")))

	got, err := s.Get("k")
	require.NoError(t, err)
	got[0] = 'X'

	again, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again, "callers must not alias stored bytes")
}

func TestStore_Delete(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put("k", []byte("v")))
	require.NoError(t, s.Delete("k"))
	_, err := s.Get("k")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting a missing key is not an error.
	assert.NoError(t, s.Delete("missing"))
}

func TestStore_DeleteAll(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Put(storage.KeyCredentials, []byte("a")))
	require.NoError(t, s.Put(storage.KeyChildren, []byte("b")))
	require.NoError(t, s.Put(storage.KeyDeviceToken, []byte("c")))

	require.NoError(t, s.DeleteAll(storage.KeyCredentials, storage.KeyChildren))

	_, err := s.Get(storage.KeyCredentials)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.Get(storage.KeyChildren)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// The device token survives an unpair wipe of the other keys.
	got, err := s.Get(storage.KeyDeviceToken)
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), got)
}

func TestNonceStore_MarkAndCheck(t *testing.T) {
	n := NewNonceStore(0)

	used, err := n.IsUsed("nonce-1")
	require.NoError(t, err)
	assert.False(t, used)

	require.NoError(t, n.MarkUsed("nonce-1"))
	used, err = n.IsUsed("nonce-1")
	require.NoError(t, err)
	assert.True(t, used)

	// Idempotent.
	require.NoError(t, n.MarkUsed("nonce-1"))
	used, err = n.IsUsed("nonce-1")
	require.NoError(t, err)
	assert.True(t, used)
}

func TestNonceStore_EvictsOldestPastCapacity(t *testing.T) {
	n := NewNonceStore(3)
	for _, nonce := range []string{"a", "b", "c", "d"} {
		require.NoError(t, n.MarkUsed(nonce))
	}

	used, err := n.IsUsed("a")
	require.NoError(t, err)
	assert.False(t, used, "oldest evicted")
	for _, nonce := range []string{"b", "c", "d"} {
		used, err := n.IsUsed(nonce)
		require.NoError(t, err)
		assert.True(t, used, "nonce %s retained", nonce)
	}
}
