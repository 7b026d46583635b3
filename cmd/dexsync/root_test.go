package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jamesainslie/dexsync/pkg/dexsync/blobstore"
	"github.com/jamesainslie/dexsync/pkg/dexsync/config"
	"github.com/jamesainslie/dexsync/pkg/dexsync/logging"
	"github.com/jamesainslie/dexsync/pkg/dexsync/resource"
	"github.com/jamesainslie/dexsync/pkg/dexsync/snapshot"
	"github.com/spf13/viper"
)

func TestLoadConfig(t *testing.T) {
	dataDir := t.TempDir()
	logPath := filepath.Join(t.TempDir(), "dexsync.log")

	tests := []struct {
		name        string
		setup       func()
		wantBaseURL string
		wantWorkers int
		wantErr     bool
	}{
		{
			name:        "defaults",
			setup:       func() {},
			wantBaseURL: config.DefaultBaseURL,
			wantWorkers: config.DefaultWorkers,
		},
		{
			name: "overrides",
			setup: func() {
				viper.Set("base_url", "http://localhost:8080/api/v2/")
				viper.Set("moves.workers", 12)
			},
			wantBaseURL: "http://localhost:8080/api/v2",
			wantWorkers: 12,
		},
		{
			name: "invalid log level",
			setup: func() {
				viper.Set("logging.level", "loud")
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			config.Bind(viper.GetViper())
			viper.Set("data_dir", dataDir)
			viper.Set("logging.path", logPath)
			viper.Set("quiet", true)
			tt.setup()
			defer func() {
				viper.Reset()
				_ = logging.Close()
			}()

			cfg, err := loadConfig()
			if tt.wantErr {
				if err == nil {
					t.Fatal("loadConfig() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("loadConfig() error: %v", err)
			}
			if cfg.BaseURL != tt.wantBaseURL {
				t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, tt.wantBaseURL)
			}
			if cfg.DataDir != dataDir {
				t.Errorf("DataDir = %q, want %q", cfg.DataDir, dataDir)
			}
			if got := cfg.Workers("moves"); got != tt.wantWorkers {
				t.Errorf("Workers(moves) = %d, want %d", got, tt.wantWorkers)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	env := []string{
		"HOME=/home/ash",
		"DEXSYNC_MOVES_WORKERS=8",
		"DEXSYNC_BASE_URL=http://localhost",
		"DEXSYNCX=1",
	}
	want := []string{"DEXSYNC_BASE_URL=http://localhost", "DEXSYNC_MOVES_WORKERS=8"}
	if got := envOverrides(env); !reflect.DeepEqual(got, want) {
		t.Errorf("envOverrides() = %v, want %v", got, want)
	}
}

func TestStatusOf(t *testing.T) {
	cfg := testConfig("http://unused", t.TempDir())
	l := locales(cfg)
	store, err := blobstore.NewDir(cfg.DataDir)
	if err != nil {
		t.Fatalf("NewDir() error: %v", err)
	}

	abilities := resource.Abilities(l)
	species := resource.Species(l)
	moves := resource.Moves(l)

	// abilities: published with two entries.
	path := abilities.SnapshotPath("2024-06-15")
	if err := snapshot.SaveSnapshot(store, path, snapshot.Snapshot{
		"stench":  []byte(`{"id":1}`),
		"drizzle": []byte(`{"id":2}`),
	}); err != nil {
		t.Fatalf("SaveSnapshot() error: %v", err)
	}
	m := snapshot.NewManifest(abilities)
	m.Version = "2024-06-15"
	m.URL = &path
	if err := snapshot.SaveManifest(store, abilities, m); err != nil {
		t.Fatalf("SaveManifest() error: %v", err)
	}

	// species: initialized, never published.
	if _, err := snapshot.Bootstrap(store, species); err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}

	got := statusOf(cfg, store, abilities)
	if got.Version != "2024-06-15" || got.Path != path || got.Entries != "2" {
		t.Errorf("abilities status = %+v", got)
	}
	if got.Age == "-" {
		t.Error("abilities age should come from the snapshot file")
	}

	if got := statusOf(cfg, store, species); got.Path != "(never published)" {
		t.Errorf("species path = %q", got.Path)
	}

	if got := statusOf(cfg, store, moves); !strings.Contains(got.Path, "not initialized") {
		t.Errorf("moves path = %q", got.Path)
	}

	// A manifest pointing at a deleted file.
	if err := os.Remove(filepath.Join(cfg.DataDir, filepath.FromSlash(path))); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if got := statusOf(cfg, store, abilities); got.Entries != "missing" {
		t.Errorf("entries = %q, want missing", got.Entries)
	}
}
