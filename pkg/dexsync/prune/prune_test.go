package prune

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/dexsync/pkg/dexsync/blobstore"
	"github.com/jamesainslie/dexsync/pkg/dexsync/resource"
	"github.com/jamesainslie/dexsync/pkg/dexsync/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var locales = resource.Locales{Primary: "ko", Secondary: "en"}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func exists(t *testing.T, root, rel string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	return err == nil
}

func setup(t *testing.T) (string, *blobstore.FS) {
	t.Helper()
	root := t.TempDir()
	store, err := blobstore.NewDir(root)
	require.NoError(t, err)

	writeFile(t, root, "moves/manifest.json", `{"version": "2024-06-15", "move_url": "/moves/move_map.2024-06-15.json"}`)
	writeFile(t, root, "moves/move_map.2024-06-15.json", `{}`)
	writeFile(t, root, "moves/move_map.2024-06-01.json", `{"old": {}}`)
	writeFile(t, root, "moves/move_map.2024-06-16.json.tmp", `{"parti`)
	writeFile(t, root, "moves/notes.txt", "keep me")
	writeFile(t, root, "moves/archive/move_map.2023-01-01.json", `{}`)
	return root, store
}

func TestMatches(t *testing.T) {
	moves := resource.Moves(locales)
	tests := map[string]bool{
		"move_map.2024-06-15.json":     true,
		"move_map.2024-06-15.json.tmp": true,
		"manifest.json.tmp":            true,
		"manifest.json":                false,
		"ability_map.2024-06-15.json":  false,
		"move_map..json":               false,
		"move_map.json":                false,
		"notes.txt":                    false,
	}
	for name, want := range tests {
		assert.Equal(t, want, Matches(moves, name), name)
	}
}

func TestRun_DryRun(t *testing.T) {
	root, store := setup(t)

	res, err := New(root, store).Run([]resource.Definition{resource.Moves(locales)}, true)
	require.NoError(t, err)

	require.Len(t, res.Orphans, 2)
	assert.Equal(t, "/moves/move_map.2024-06-01.json", res.Orphans[0].Path)
	assert.Equal(t, "/moves/move_map.2024-06-16.json.tmp", res.Orphans[1].Path)
	assert.Equal(t, int64(len(`{"old": {}}`)+len(`{"parti`)), res.Bytes())
	assert.Zero(t, res.Removed)
	assert.True(t, res.DryRun)

	assert.True(t, exists(t, root, "moves/move_map.2024-06-01.json"), "dry run deletes nothing")
}

func TestRun_RemovesOrphans(t *testing.T) {
	root, store := setup(t)

	res, err := New(root, store).Run([]resource.Definition{resource.Moves(locales)}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Removed)

	assert.False(t, exists(t, root, "moves/move_map.2024-06-01.json"))
	assert.False(t, exists(t, root, "moves/move_map.2024-06-16.json.tmp"))
	assert.True(t, exists(t, root, "moves/move_map.2024-06-15.json"), "current snapshot is kept")
	assert.True(t, exists(t, root, "moves/manifest.json"))
	assert.True(t, exists(t, root, "moves/notes.txt"))
	assert.True(t, exists(t, root, "moves/archive/move_map.2023-01-01.json"), "subdirectories are not scanned")
}

func TestRun_SkipsResourcesWithoutManifest(t *testing.T) {
	root, store := setup(t)
	writeFile(t, root, "abilities/ability_map.2024-06-01.json", `{}`)

	defs := []resource.Definition{resource.Abilities(locales), resource.Species(locales), resource.Moves(locales)}
	res, err := New(root, store).Run(defs, true)
	require.NoError(t, err)

	require.Contains(t, res.Skipped, "abilities")
	assert.True(t, errors.Is(res.Skipped["abilities"], snapshot.ErrManifestNotFound))
	assert.Contains(t, res.Skipped, "species")
	assert.Len(t, res.Orphans, 2)
}

func TestRun_UnpublishedManifestOrphansEverything(t *testing.T) {
	root, store := setup(t)
	writeFile(t, root, "species/manifest.json", `{"version": "", "species_url": null}`)
	writeFile(t, root, "species/species_map.2024-06-01.json", `{}`)

	res, err := New(root, store).Run([]resource.Definition{resource.Species(locales)}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.True(t, exists(t, root, "species/manifest.json"))
}

func TestRun_RelativeManifestURLKeepsCurrent(t *testing.T) {
	root, store := setup(t)
	writeFile(t, root, "moves/manifest.json", `{"version": "2024-06-15", "move_url": "moves/./move_map.2024-06-15.json"}`)

	res, err := New(root, store).Run([]resource.Definition{resource.Moves(locales)}, false)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Removed)
	for _, o := range res.Orphans {
		assert.NotEqual(t, "/moves/move_map.2024-06-15.json", o.Path)
	}
	assert.True(t, exists(t, root, "moves/move_map.2024-06-15.json"), "current snapshot is kept")
}
