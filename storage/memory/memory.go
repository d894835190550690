// Package memory provides thread-safe in-memory implementations of
// storage.Store and storage.NonceStore. Suitable for tests, demos, and
// ephemeral sessions.
package memory

import (
	"sync"

	"github.com/Allow2/brave-core-sub002/storage"
)

// Store is a thread-safe in-memory storage.Store.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ storage.Store = (*Store)(nil)

// NewStore creates an empty in-memory Store.
func NewStore() *Store {
	return &Store{data: make(map[string][]byte)}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (s *Store) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneBytes(v), nil
}

func (s *Store) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = cloneBytes(value)
	return nil
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *Store) DeleteAll(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

// NonceStore is a bounded in-memory storage.NonceStore. Once capacity
// is exceeded the oldest nonce is evicted FIFO.
type NonceStore struct {
	mu       sync.Mutex
	capacity int
	order    []string
	seen     map[string]struct{}
}

var _ storage.NonceStore = (*NonceStore)(nil)

// DefaultNonceCapacity bounds the replay set. Grants expire within 24
// hours, so a few hundred entries comfortably covers real usage.
const DefaultNonceCapacity = 256

// NewNonceStore creates a NonceStore holding at most capacity nonces.
// A capacity of zero or less uses DefaultNonceCapacity.
func NewNonceStore(capacity int) *NonceStore {
	if capacity <= 0 {
		capacity = DefaultNonceCapacity
	}
	return &NonceStore{
		capacity: capacity,
		seen:     make(map[string]struct{}),
	}
}

func (n *NonceStore) IsUsed(nonce string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.seen[nonce]
	return ok, nil
}

func (n *NonceStore) MarkUsed(nonce string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.seen[nonce]; ok {
		return nil
	}
	n.seen[nonce] = struct{}{}
	n.order = append(n.order, nonce)
	for len(n.order) > n.capacity {
		oldest := n.order[0]
		n.order = n.order[1:]
		delete(n.seen, oldest)
	}
	return nil
}
