package bbolt

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Allow2/brave-core-sub002/storage"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warden.db")
	s, err := NewStoreFromFile(path, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(storage.KeyCredentials)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Put(storage.KeyCredentials, []byte(`{"pairToken":"secret"}`)))
	got, err := s.Get(storage.KeyCredentials)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"pairToken":"secret"}`), got)
}

func TestStore_DeleteAllIsAtomic(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(storage.KeyCredentials, []byte("a")))
	require.NoError(t, s.Put(storage.KeyChildren, []byte("b")))
	require.NoError(t, s.Put(storage.KeySessionState, []byte("c")))
	require.NoError(t, s.Put(storage.KeyCachedCheck, []byte("d")))

	require.NoError(t, s.DeleteAll(
		storage.KeyCredentials,
		storage.KeyChildren,
		storage.KeySessionState,
		storage.KeyCachedCheck,
	))

	for _, key := range []string{
		storage.KeyCredentials, storage.KeyChildren,
		storage.KeySessionState, storage.KeyCachedCheck,
	} {
		_, err := s.Get(key)
		assert.ErrorIs(t, err, storage.ErrNotFound, "key %s should be gone", key)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.db")
	s, err := NewStoreFromFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(storage.KeyDeviceToken, []byte("token-1")))
	require.NoError(t, s.MarkUsed("nonce-1"))
	require.NoError(t, s.Close())

	s, err = NewStoreFromFile(path, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(storage.KeyDeviceToken)
	require.NoError(t, err)
	assert.Equal(t, []byte("token-1"), got)

	used, err := s.IsUsed("nonce-1")
	require.NoError(t, err)
	assert.True(t, used, "replay set survives restart")
}

func TestStore_NoncePruning(t *testing.T) {
	s := newTestStore(t, WithNonceCapacity(2))

	require.NoError(t, s.MarkUsed("a"))
	require.NoError(t, s.MarkUsed("b"))
	require.NoError(t, s.MarkUsed("c"))

	used, err := s.IsUsed("a")
	require.NoError(t, err)
	assert.False(t, used, "oldest nonce pruned past capacity")

	used, err = s.IsUsed("b")
	require.NoError(t, err)
	assert.True(t, used)
	used, err = s.IsUsed("c")
	require.NoError(t, err)
	assert.True(t, used)
}

func TestStore_MarkUsedIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.MarkUsed("n"))
	require.NoError(t, s.MarkUsed("n"))
	used, err := s.IsUsed("n")
	require.NoError(t, err)
	assert.True(t, used)
}
