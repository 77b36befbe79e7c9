package localcache

import (
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// Slot is a small key-value store holding whole blobs.
// A Put is atomic: readers see either the previous or the new value.
type Slot interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}

type memorySlot struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemorySlot() Slot {
	return &memorySlot{data: make(map[string][]byte)}
}

func (s *memorySlot) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *memorySlot) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *memorySlot) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *memorySlot) Close() error { return nil }

type badgerSlot struct {
	db *badger.DB
}

// OpenBadgerSlot opens a badger database at dir. An empty dir keeps it in memory.
func OpenBadgerSlot(dir string) (Slot, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "opening badger")
	}
	return &badgerSlot{db: db}, nil
}

func (s *badgerSlot) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "reading badger")
	}
	return value, true, nil
}

func (s *badgerSlot) Put(key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	return errors.Wrap(err, "writing badger")
}

func (s *badgerSlot) Delete(key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return errors.Wrap(err, "deleting from badger")
}

func (s *badgerSlot) Close() error {
	return s.db.Close()
}
