// Package snapshot implements incremental synchronization of one catalog
// resource into a dated snapshot file referenced by a manifest.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jamesainslie/dexsync/pkg/dexsync/blobstore"
	"github.com/jamesainslie/dexsync/pkg/dexsync/resource"
)

// ErrCorruptSnapshot is returned when the file a manifest points at exists
// but is not a JSON object.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Snapshot maps entry keys to their encoded records. Records loaded from a
// previous snapshot are carried over byte for byte.
type Snapshot map[string]json.RawMessage

// Keys returns the snapshot keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether key is present.
func (s Snapshot) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Put encodes rec under key. Existing keys are left untouched; it reports
// whether rec was added.
func (s Snapshot) Put(key string, rec resource.Record) (bool, error) {
	if s.Has(key) {
		return false, nil
	}
	raw, err := blobstore.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encoding %s: %w", key, err)
	}
	s[key] = json.RawMessage(bytes.TrimSpace(raw))
	return true, nil
}

// LoadSnapshot reads the snapshot at p. A missing file yields an empty
// snapshot and found=false.
func LoadSnapshot(store blobstore.Store, p string) (snap Snapshot, found bool, err error) {
	data, err := store.Read(p)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return Snapshot{}, false, nil
		}
		return nil, false, err
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, true, fmt.Errorf("%w: %s: %v", ErrCorruptSnapshot, p, err)
	}
	if s == nil {
		s = Snapshot{}
	}
	return s, true, nil
}

// SaveSnapshot writes s to p.
func SaveSnapshot(store blobstore.Store, p string, s Snapshot) error {
	return blobstore.WriteJSON(store, p, s)
}
