//go:build unix

package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/dexsync/pkg/dexsync/blobstore"
	"github.com/jamesainslie/dexsync/pkg/dexsync/lock"
	"github.com/jamesainslie/dexsync/pkg/dexsync/resource"
	"github.com/jamesainslie/dexsync/pkg/dexsync/snapshot"
)

func TestSyncResource_Locked(t *testing.T) {
	srv := newCatalogServer(t)
	cfg := testConfig(srv.URL, t.TempDir())
	def := resource.Abilities(locales(cfg))

	held, err := lock.Acquire(filepath.Join(cfg.DataDir, def.Dir))
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	defer held.Release()

	store, _ := blobstore.NewDir(cfg.DataDir)
	cat, err := newCatalog(cfg)
	if err != nil {
		t.Fatalf("newCatalog() error: %v", err)
	}

	rep := syncResource(context.Background(), cfg, store, cat, nil, def)
	if rep.Outcome != snapshot.OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", rep.Outcome)
	}
	if !strings.Contains(rep.Error, lock.ErrLocked.Error()) {
		t.Errorf("error = %q, want lock error", rep.Error)
	}
}
