// Package blobstore stores whole JSON documents at logical slash-separated
// paths. Writes replace a document atomically: readers see either the old
// document or the new one, never a partial write.
package blobstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// ErrNotFound is returned when no document exists at a path.
var ErrNotFound = errors.New("blob not found")

// Store is the document store used by the sync engine.
type Store interface {
	// Read returns the document at p, or an error wrapping ErrNotFound.
	Read(p string) ([]byte, error)
	// Write replaces the document at p.
	Write(p string, data []byte) error
	// Delete removes the document at p. Deleting a missing document is not an error.
	Delete(p string) error
	// Exists reports whether a document exists at p.
	Exists(p string) (bool, error)
}

// FS is a Store backed by an afero filesystem.
type FS struct {
	fs afero.Fs
}

// New returns a store over fs. Logical paths are resolved against the
// root of fs.
func New(fs afero.Fs) *FS {
	return &FS{fs: fs}
}

// NewDir returns a store rooted at an OS directory.
func NewDir(root string) (*FS, error) {
	if root == "" {
		return nil, errors.New("blobstore root cannot be empty")
	}
	return New(afero.NewBasePathFs(afero.NewOsFs(), root)), nil
}

// NewMemory returns a store backed by an in-memory filesystem.
func NewMemory() *FS {
	return New(afero.NewMemMapFs())
}

// Fs exposes the underlying filesystem.
func (s *FS) Fs() afero.Fs {
	return s.fs
}

// Read implements Store.
func (s *FS) Read(p string) ([]byte, error) {
	name, err := clean(p)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// Write implements Store using a sibling temp file and rename.
func (s *FS) Write(p string, data []byte) error {
	name, err := clean(p)
	if err != nil {
		return err
	}

	if err := s.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", p, err)
	}

	tmp := name + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := s.fs.Rename(tmp, name); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *FS) Delete(p string) error {
	name, err := clean(p)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", p, err)
	}
	return nil
}

// Exists implements Store.
func (s *FS) Exists(p string) (bool, error) {
	name, err := clean(p)
	if err != nil {
		return false, err
	}
	info, err := s.fs.Stat(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	return !info.IsDir(), nil
}

// clean turns a logical path into a filesystem path. Leading slashes are
// accepted; escaping the root is not.
func clean(p string) (string, error) {
	trimmed := strings.TrimLeft(p, "/")
	if trimmed == "" {
		return "", fmt.Errorf("invalid blob path %q", p)
	}
	name := path.Clean(trimmed)
	if name == "." || name == ".." || strings.HasPrefix(name, "../") {
		return "", fmt.Errorf("invalid blob path %q", p)
	}
	return name, nil
}

// Canonical returns the rooted, cleaned spelling of a logical path, so
// "abilities/x.json", "/abilities/x.json" and "/abilities/./x.json" compare
// equal. Empty input stays empty. Paths that escape the root keep their
// leading ".." and are still rejected by the store.
func Canonical(p string) string {
	trimmed := strings.TrimLeft(p, "/")
	if trimmed == "" {
		return ""
	}
	return "/" + path.Clean(trimmed)
}

// ReadJSON decodes the document at p into v.
func ReadJSON(s Store, p string, v any) error {
	data, err := s.Read(p)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", p, err)
	}
	return nil
}

// WriteJSON encodes v with two-space indentation and a trailing newline and
// writes it to p.
func WriteJSON(s Store, p string, v any) error {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", p, err)
	}
	return s.Write(p, data)
}

// Marshal renders v the way WriteJSON stores it.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
