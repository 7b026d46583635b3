// Package history records sync runs in a local Badger database.
package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/jamesainslie/dexsync/pkg/dexsync/snapshot"
)

// ErrNotFound is returned when a run ID doesn't exist.
var ErrNotFound = errors.New("history entry not found")

var (
	runPrefix = []byte("run:")
	idPrefix  = []byte("id:")
)

// Entry is one recorded sync run for one resource.
type Entry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Report    snapshot.Report `json:"report"`
}

// Filter narrows List results.
type Filter struct {
	Resource string
	Limit    int
}

// Store wraps Badger for run history.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens or creates a history store at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable badger logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// runKey orders entries by time: run:<unix nanos, big endian>:<id>.
func runKey(ts time.Time, id string) []byte {
	key := make([]byte, 0, len(runPrefix)+8+1+len(id))
	key = append(key, runPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(ts.UnixNano()))
	key = append(key, ':')
	key = append(key, id...)
	return key
}

func idKey(id string) []byte {
	return append(append([]byte{}, idPrefix...), id...)
}

// Record stores a report and returns the new entry.
func (s *Store) Record(report *snapshot.Report) (*Entry, error) {
	ts := report.StartedAt
	if ts.IsZero() {
		ts = s.now()
	}
	entry := &Entry{
		ID:        uuid.NewString(),
		Timestamp: ts.UTC(),
		Report:    *report,
	}

	value, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode history entry: %w", err)
	}

	key := runKey(entry.Timestamp, entry.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(idKey(entry.ID), key)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Get retrieves an entry by ID.
func (s *Store) Get(id string) (*Entry, error) {
	var entry Entry

	err := s.db.View(func(txn *badger.Txn) error {
		ref, err := txn.Get(idKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		key, err := ref.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})

	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns entries newest first.
func (s *Store) List(f Filter) ([]Entry, error) {
	var entries []Entry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = runPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration seeks from just past the prefix range.
		seek := append(append([]byte{}, runPrefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(runPrefix); it.Next() {
			var entry Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			}); err != nil {
				return err
			}
			if f.Resource != "" && entry.Report.Resource != f.Resource {
				continue
			}
			entries = append(entries, entry)
			if f.Limit > 0 && len(entries) >= f.Limit {
				break
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Latest returns the newest entry for resource, or ErrNotFound.
func (s *Store) Latest(resource string) (*Entry, error) {
	entries, err := s.List(Filter{Resource: resource, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return &entries[0], nil
}

// Cleanup removes entries older than retentionDays and reports how many
// were removed.
func (s *Store) Cleanup(retentionDays int) (int, error) {
	cutoff := runKey(s.now().AddDate(0, 0, -retentionDays), "")

	var stale [][]byte
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(runPrefix); it.ValidForPrefix(runPrefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if string(key) >= string(cutoff) {
				break
			}
			stale = append(stale, key)
			ids = append(ids, string(key[len(runPrefix)+9:]))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
		if err := wb.Delete(idKey(ids[i])); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(stale), nil
}
