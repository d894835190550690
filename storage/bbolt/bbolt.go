// Package bbolt provides a BBolt-backed implementation of
// storage.Store and storage.NonceStore for devices with a filesystem.
package bbolt

import (
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/Allow2/brave-core-sub002/storage"
)

var (
	recordBucket = []byte("records")
	nonceBucket  = []byte("nonces")
	nonceSeq     = []byte("nonce_seq")
)

// Store implements storage.Store and storage.NonceStore backed by a
// BBolt database.
type Store struct {
	db            *bbolt.DB
	nonceCapacity int
}

var (
	_ storage.Store      = (*Store)(nil)
	_ storage.NonceStore = (*Store)(nil)
)

// Option customizes a Store.
type Option func(*Store)

// WithNonceCapacity bounds the persisted replay set. Defaults to 256.
func WithNonceCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.nonceCapacity = n
		}
	}
}

// NewStore wraps an already-open BBolt database.
func NewStore(db *bbolt.DB, opts ...Option) (*Store, error) {
	s := &Store{db: db, nonceCapacity: 256}
	for _, opt := range opts {
		opt(s)
	}
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(recordBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(nonceBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("initializing buckets: %w", err)
	}
	return s, nil
}

// NewStoreFromFile opens a BBolt database at path and returns a Store.
func NewStoreFromFile(path string, options *bbolt.Options, opts ...Option) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db, opts...)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(recordBucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
		}
		out = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Put(key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordBucket).Put([]byte(key), value)
	})
}

func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(recordBucket).Delete([]byte(key))
	})
}

// DeleteAll removes every named key in a single transaction so unpair
// never leaves partial credentials behind.
func (s *Store) DeleteAll(keys ...string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(recordBucket)
		for _, k := range keys {
			if err := b.Delete([]byte(k)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Nonces are stored under a monotonically increasing sequence key so
// the oldest can be pruned once the capacity is exceeded. A secondary
// reverse index (nonce -> seq) answers IsUsed.

func (s *Store) IsUsed(nonce string) (bool, error) {
	var used bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		used = tx.Bucket(nonceBucket).Get([]byte("n:"+nonce)) != nil
		return nil
	})
	return used, err
}

func (s *Store) MarkUsed(nonce string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(nonceBucket)
		if b.Get([]byte("n:"+nonce)) != nil {
			return nil
		}
		seq := uint64(1)
		if raw := b.Get(nonceSeq); len(raw) == 8 {
			seq = binary.BigEndian.Uint64(raw) + 1
		}
		var seqKey [8]byte
		binary.BigEndian.PutUint64(seqKey[:], seq)
		if err := b.Put(nonceSeq, seqKey[:]); err != nil {
			return err
		}
		if err := b.Put([]byte("s:"+string(seqKey[:])), []byte(nonce)); err != nil {
			return err
		}
		if err := b.Put([]byte("n:"+nonce), seqKey[:]); err != nil {
			return err
		}
		return s.pruneNonces(b)
	})
}

func (s *Store) pruneNonces(b *bbolt.Bucket) error {
	c := b.Cursor()
	count := 0
	for k, _ := c.Seek([]byte("s:")); k != nil && len(k) > 2 && k[0] == 's'; k, _ = c.Next() {
		count++
	}
	for count > s.nonceCapacity {
		k, v := b.Cursor().Seek([]byte("s:"))
		if k == nil {
			break
		}
		if err := b.Delete(append([]byte(nil), k...)); err != nil {
			return err
		}
		if err := b.Delete([]byte("n:" + string(v))); err != nil {
			return err
		}
		count--
	}
	return nil
}
