package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// stateKeyPrefix namespaces state entries so the database can be shared with
// other subsystems later.
const stateKeyPrefix = "state:"

// BadgerStore implements Store on an embedded BadgerDB. It is the durable
// alternative to FileStore for deployments where the state document outgrows
// a single pretty-printed file. Each key of the state document becomes one
// database entry, so Add touches only the key it sets.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (creating if necessary) a Badger database at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already opened database.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Load implements Store by scanning all state entries.
func (s *BadgerStore) Load() (map[string]any, error) {
	state := map[string]any{}

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(stateKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				var v any
				if err := json.Unmarshal(val, &v); err != nil {
					return fmt.Errorf("%w: key %q: %v", ErrCorruptState, key, err)
				}
				state[key] = v
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Save implements Store. The whole document is replaced: keys absent from the
// given mapping are deleted, matching FileStore's overwrite semantics.
func (s *BadgerStore) Save(state map[string]any) error {
	current, err := s.Load()
	if err != nil && !errors.Is(err, ErrCorruptState) {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		for key := range current {
			if _, ok := state[key]; ok {
				continue
			}
			if err := txn.Delete([]byte(stateKeyPrefix + key)); err != nil {
				return fmt.Errorf("delete state key %q: %w", key, err)
			}
		}
		for key, value := range state {
			raw, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("encode state key %q: %w", key, err)
			}
			if err := txn.Set([]byte(stateKeyPrefix+key), raw); err != nil {
				return fmt.Errorf("set state key %q: %w", key, err)
			}
		}
		return nil
	})
}

// Add implements Store. Unlike FileStore, only the given key is written;
// Badger transactions make this safe under concurrent writers.
func (s *BadgerStore) Add(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode state key %q: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(stateKeyPrefix+key), raw)
	})
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
