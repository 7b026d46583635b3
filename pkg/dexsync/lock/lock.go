// Package lock provides a per-resource advisory run lock so two syncs of
// the same resource cannot race on its manifest.
package lock

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("resource is locked by another sync")

// FileName is the lock file created inside a resource directory.
const FileName = ".lock"

// Lock is a held run lock. Release it when the run ends.
type Lock struct {
	path string
	file *os.File
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire takes the lock for the resource directory dir without blocking.
// The directory is created if needed.
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	if err := tryLock(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Lock{path: path, file: f}, nil
}

// Release drops the lock. The lock file stays on disk.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := unlock(l.file)
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.file = nil
	return err
}
