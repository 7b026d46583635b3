package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jamesainslie/dexsync/pkg/dexsync/blobstore"
	"github.com/jamesainslie/dexsync/pkg/dexsync/resource"
)

// ErrManifestNotFound is returned when a resource has no manifest file.
// Run "dexsync init" to create one.
var ErrManifestNotFound = errors.New("manifest not found")

// ErrMalformedManifest is returned when a manifest cannot be decoded.
var ErrMalformedManifest = errors.New("malformed manifest")

// Manifest points at the currently published snapshot of one resource.
//
// On disk it is {"version": "...", "<key>_url": "..." | null}. Fields the
// engine does not own are kept and written back unchanged.
type Manifest struct {
	Version string
	// URL is the logical path of the current snapshot, or nil before the
	// first successful sync.
	URL *string

	urlField string
	extra    map[string]json.RawMessage
}

// NewManifest returns an unpublished manifest for def.
func NewManifest(def resource.Definition) *Manifest {
	return &Manifest{urlField: def.URLField()}
}

// ParseManifest decodes a manifest document for def.
func ParseManifest(def resource.Definition, data []byte) (*Manifest, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: document is null", ErrMalformedManifest)
	}

	m := NewManifest(def)
	if raw, ok := fields["version"]; ok {
		var v *string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: version: %v", ErrMalformedManifest, err)
		}
		if v != nil {
			m.Version = *v
		}
		delete(fields, "version")
	}
	if raw, ok := fields[m.urlField]; ok {
		if err := json.Unmarshal(raw, &m.URL); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedManifest, m.urlField, err)
		}
		if m.URL != nil {
			if c := blobstore.Canonical(*m.URL); c == "" {
				m.URL = nil
			} else {
				m.URL = &c
			}
		}
		delete(fields, m.urlField)
	}
	if len(fields) > 0 {
		m.extra = fields
	}
	return m, nil
}

// Extra returns the names of fields preserved from the decoded document.
func (m *Manifest) Extra() []string {
	names := make([]string, 0, len(m.extra))
	for k := range m.extra {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// CurrentPath returns the snapshot path, or "" when unpublished.
func (m *Manifest) CurrentPath() string {
	if m.URL == nil {
		return ""
	}
	return *m.URL
}

// MarshalJSON implements json.Marshaler.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(m.extra)+2)
	for k, v := range m.extra {
		out[k] = v
	}
	out["version"] = m.Version
	out[m.urlField] = m.URL
	return json.Marshal(out)
}

// LoadManifest reads def's manifest from store.
func LoadManifest(store blobstore.Store, def resource.Definition) (*Manifest, error) {
	p := def.ManifestPath()
	data, err := store.Read(p)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, p)
		}
		return nil, err
	}
	m, err := ParseManifest(def, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return m, nil
}

// SaveManifest writes m as def's manifest.
func SaveManifest(store blobstore.Store, def resource.Definition, m *Manifest) error {
	return blobstore.WriteJSON(store, def.ManifestPath(), m)
}

// Bootstrap writes an unpublished manifest for def unless one already
// exists. It reports whether a manifest was created.
func Bootstrap(store blobstore.Store, def resource.Definition) (bool, error) {
	exists, err := store.Exists(def.ManifestPath())
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := SaveManifest(store, def, NewManifest(def)); err != nil {
		return false, err
	}
	return true, nil
}
