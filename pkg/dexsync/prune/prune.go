// Package prune finds and removes snapshot files no manifest references.
//
// Snapshots are normally retired by the sync that supersedes them; files
// left behind by a failed delete or an interrupted write end up here.
package prune

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/jamesainslie/dexsync/pkg/dexsync/blobstore"
	"github.com/jamesainslie/dexsync/pkg/dexsync/logging"
	"github.com/jamesainslie/dexsync/pkg/dexsync/resource"
	"github.com/jamesainslie/dexsync/pkg/dexsync/snapshot"
)

// Orphan is one unreferenced file.
type Orphan struct {
	Resource string
	// Path is the logical path under the data root.
	Path string
	Size int64
}

// Result summarizes a prune.
type Result struct {
	Orphans []Orphan
	Removed int
	// Skipped lists resources whose manifest could not be read.
	Skipped map[string]error
	DryRun  bool
}

// Bytes returns the combined size of all orphans.
func (r *Result) Bytes() int64 {
	var n int64
	for _, o := range r.Orphans {
		n += o.Size
	}
	return n
}

// Pruner scans a data directory.
type Pruner struct {
	root  string
	store blobstore.Store
	log   *logging.Logger
}

// New returns a Pruner for the data directory root. store must be rooted at
// the same directory.
func New(root string, store blobstore.Store) *Pruner {
	return &Pruner{root: root, store: store, log: logging.Get("store")}
}

// Run finds orphaned files for each definition and removes them unless
// dryRun is set. Resources without a readable manifest are skipped.
func (p *Pruner) Run(defs []resource.Definition, dryRun bool) (*Result, error) {
	res := &Result{Skipped: make(map[string]error), DryRun: dryRun}

	for _, def := range defs {
		m, err := snapshot.LoadManifest(p.store, def)
		if err != nil {
			p.log.Warn("skipping resource", "resource", def.Name, "err", err)
			res.Skipped[def.Name] = err
			continue
		}

		orphans, err := p.find(def, m.CurrentPath())
		if err != nil {
			return res, fmt.Errorf("scanning %s: %w", def.Dir, err)
		}
		res.Orphans = append(res.Orphans, orphans...)
	}

	if dryRun {
		return res, nil
	}

	var errs []error
	for _, o := range res.Orphans {
		if err := p.store.Delete(o.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		p.log.Info("removed orphaned snapshot", "resource", o.Resource, "path", o.Path)
		res.Removed++
	}
	return res, errors.Join(errs...)
}

// Matches reports whether name is a snapshot file, or the temp file of an
// interrupted write, belonging to def.
func Matches(def resource.Definition, name string) bool {
	if name == "manifest.json.tmp" {
		return true
	}
	name = strings.TrimSuffix(name, ".tmp")
	prefix := def.Key + "_map."
	return strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".json") && len(name) > len(prefix)+len(".json")
}

func (p *Pruner) find(def resource.Definition, current string) ([]Orphan, error) {
	dir := filepath.Join(p.root, filepath.FromSlash(def.Dir))
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		orphans []Orphan
	)

	conf := fastwalk.Config{
		Follow: false, // Don't follow symlinks.
	}
	err := fastwalk.Walk(&conf, dir, func(fullPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if fullPath == dir {
				return nil
			}
			return filepath.SkipDir
		}
		if !d.Type().IsRegular() || !Matches(def, d.Name()) {
			return nil
		}

		logical := path.Join("/", def.Dir, d.Name())
		if logical == blobstore.Canonical(current) {
			return nil
		}

		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}

		mu.Lock()
		orphans = append(orphans, Orphan{Resource: def.Name, Path: logical, Size: size})
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(orphans, func(i, j int) bool { return orphans[i].Path < orphans[j].Path })
	return orphans, nil
}
