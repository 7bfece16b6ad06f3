package cache

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned when a cache entry doesn't exist.
var ErrNotFound = errors.New("cache entry not found")

// Store wraps Badger for token storage.
type Store struct {
	db *badger.DB
}

// OpenStore opens or creates a store at the given directory.
func OpenStore(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get retrieves an entry by root and relative path.
func (s *Store) Get(root, relPath string) (*CachedToken, error) {
	key := MakeKey(root, relPath)
	var entry CachedToken

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(entry.Decode)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Put stores an entry.
func (s *Store) Put(root, relPath string, entry *CachedToken) error {
	value, err := entry.Encode()
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(MakeKey(root, relPath), value)
	})
}

// Delete removes an entry.
func (s *Store) Delete(root, relPath string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(MakeKey(root, relPath))
	})
}

// DeletePrefix removes every entry under root. An empty root removes all
// entries.
func (s *Store) DeletePrefix(root string) error {
	var prefix []byte
	if root != "" {
		prefix = MakeKeyPrefix(root)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of entries under root, or all entries when root
// is empty.
func (s *Store) Count(root string) (int, error) {
	var prefix []byte
	if root != "" {
		prefix = MakeKeyPrefix(root)
	}

	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// PutBatch stores multiple entries in a single write batch.
func (s *Store) PutBatch(root string, entries map[string]*CachedToken) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for relPath, entry := range entries {
		value, err := entry.Encode()
		if err != nil {
			return err
		}
		if err := wb.Set(MakeKey(root, relPath), value); err != nil {
			return err
		}
	}

	return wb.Flush()
}
