package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func isolate(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()
	t.Setenv("HOME", tempDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	return tempDir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.DataDir != DefaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, DefaultDataDir)
	}
	if cfg.HTTP.Timeout != DefaultTimeout {
		t.Errorf("HTTP.Timeout = %v, want %v", cfg.HTTP.Timeout, DefaultTimeout)
	}
	if cfg.HTTP.PageSize != DefaultPageSize {
		t.Errorf("HTTP.PageSize = %d, want %d", cfg.HTTP.PageSize, DefaultPageSize)
	}
	if cfg.Locale.Primary != DefaultPrimaryLocale || cfg.Locale.Secondary != DefaultSecondaryLocale {
		t.Errorf("Locale = %+v, want %s/%s", cfg.Locale, DefaultPrimaryLocale, DefaultSecondaryLocale)
	}
	for _, name := range Resources {
		if got := cfg.Workers(name); got != DefaultWorkers {
			t.Errorf("Workers(%q) = %d, want %d", name, got, DefaultWorkers)
		}
	}
	if !cfg.History.Enabled {
		t.Error("History.Enabled = false, want true")
	}
}

func TestLoad_FromFile(t *testing.T) {
	tempDir := isolate(t)
	configDir := filepath.Join(tempDir, ".config", "dexsync")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	content := `
base_url: http://localhost:9000/api/v2/
data_dir: /srv/static
http:
  timeout: 5s
  rate_limit: 0
locale:
  primary: ja
moves:
  workers: 12
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.BaseURL != "http://localhost:9000/api/v2" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", cfg.BaseURL)
	}
	if cfg.DataDir != "/srv/static" {
		t.Errorf("DataDir = %q, want /srv/static", cfg.DataDir)
	}
	if cfg.HTTP.Timeout != 5*time.Second {
		t.Errorf("HTTP.Timeout = %v, want 5s", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.RateLimit != 0 {
		t.Errorf("HTTP.RateLimit = %v, want 0", cfg.HTTP.RateLimit)
	}
	if cfg.Locale.Primary != "ja" {
		t.Errorf("Locale.Primary = %q, want ja", cfg.Locale.Primary)
	}
	if cfg.Locale.Secondary != DefaultSecondaryLocale {
		t.Errorf("Locale.Secondary = %q, want default", cfg.Locale.Secondary)
	}
	if got := cfg.Workers("moves"); got != 12 {
		t.Errorf("Workers(moves) = %d, want 12", got)
	}
	if got := cfg.Workers("abilities"); got != DefaultWorkers {
		t.Errorf("Workers(abilities) = %d, want %d", got, DefaultWorkers)
	}
}

func TestLoad_ExplicitPath(t *testing.T) {
	tempDir := isolate(t)
	path := filepath.Join(tempDir, "custom.yaml")
	if err := os.WriteFile(path, []byte("data_dir: /tmp/dex\n"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != "/tmp/dex" {
		t.Errorf("DataDir = %q, want /tmp/dex", cfg.DataDir)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("DEXSYNC_ABILITIES_WORKERS", "9")
	t.Setenv("DEXSYNC_LOCALE_PRIMARY", "fr")
	t.Setenv("DEXSYNC_DATA_DIR", "/var/lib/dex")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.Workers("abilities"); got != 9 {
		t.Errorf("Workers(abilities) = %d, want 9", got)
	}
	if cfg.Locale.Primary != "fr" {
		t.Errorf("Locale.Primary = %q, want fr", cfg.Locale.Primary)
	}
	if cfg.DataDir != "/var/lib/dex" {
		t.Errorf("DataDir = %q, want /var/lib/dex", cfg.DataDir)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	tempDir := isolate(t)
	path := filepath.Join(tempDir, "broken.yaml")
	if err := os.WriteFile(path, []byte("http: [unclosed"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
}

func TestConfig_WorkersFallback(t *testing.T) {
	cfg := &Config{}
	cfg.Species.Workers = -3
	if got := cfg.Workers("species"); got != DefaultWorkers {
		t.Errorf("Workers(species) = %d, want %d", got, DefaultWorkers)
	}
	if got := cfg.Workers("berries"); got != DefaultWorkers {
		t.Errorf("Workers(berries) = %d, want %d", got, DefaultWorkers)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{BaseURL: "http://x", DataDir: "d"}, false},
		{"empty base url", Config{DataDir: "d"}, true},
		{"empty data dir", Config{BaseURL: "http://x"}, true},
		{"negative timeout", Config{BaseURL: "http://x", DataDir: "d", HTTP: HTTPConfig{Timeout: -time.Second}}, true},
		{"negative rate", Config{BaseURL: "http://x", DataDir: "d", HTTP: HTTPConfig{RateLimit: -1}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	created, err := WriteDefault(path)
	if err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}
	if !created {
		t.Fatal("WriteDefault() created = false on first call")
	}

	created, err = WriteDefault(path)
	if err != nil {
		t.Fatalf("WriteDefault() second call error = %v", err)
	}
	if created {
		t.Error("WriteDefault() overwrote an existing file")
	}

	isolate(t)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(default file) error = %v", err)
	}
	if cfg.Workers("moves") != DefaultWorkers {
		t.Errorf("default file Workers(moves) = %d", cfg.Workers("moves"))
	}
}

func TestExpandPath(t *testing.T) {
	home := isolate(t)

	got, err := ExpandPath("~/static")
	if err != nil {
		t.Fatalf("ExpandPath() error = %v", err)
	}
	if got != filepath.Join(home, "static") {
		t.Errorf("ExpandPath() = %q, want %q", got, filepath.Join(home, "static"))
	}

	got, err = ExpandPath("/abs/path")
	if err != nil || got != "/abs/path" {
		t.Errorf("ExpandPath(/abs/path) = %q, %v", got, err)
	}
}
