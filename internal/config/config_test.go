package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"montage/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Render.KeepPerQuality != 3 {
		t.Fatalf("unexpected retention default: %d", cfg.Render.KeepPerQuality)
	}
	if cfg.Fetch.MaxRedirects != 3 {
		t.Fatalf("unexpected redirect default: %d", cfg.Fetch.MaxRedirects)
	}
}

func TestLoadAppliesOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
library_dir = "` + filepath.Join(dir, "library") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[fetch]
timeout_seconds = 5
max_bytes = 1024

[render]
keep_per_quality = 1

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved existing path, got %q exists=%v", resolved, exists)
	}
	if cfg.Fetch.MaxBytes != 1024 || cfg.Fetch.TimeoutSeconds != 5 {
		t.Fatalf("fetch overrides not applied: %+v", cfg.Fetch)
	}
	if cfg.Render.KeepPerQuality != 1 {
		t.Fatalf("render override not applied: %+v", cfg.Render)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized format, got %q", cfg.Logging.Format)
	}
	if cfg.Fetch.MaxAttempts != 3 {
		t.Fatalf("expected defaulted max_attempts, got %d", cfg.Fetch.MaxAttempts)
	}
	if !strings.HasSuffix(cfg.ProjectsDir(), filepath.Join("library", "projects")) {
		t.Fatalf("unexpected projects dir %q", cfg.ProjectsDir())
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name    string
		content string
	}{
		{"bad format", "[logging]\nformat = \"yaml\"\n"},
		{"bad level", "[logging]\nlevel = \"trace\"\n"},
		{"too many redirects", "[fetch]\nmax_redirects = 11\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tc.name, " ", "_")+".toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LibraryDir = filepath.Join(dir, "library")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, p := range []string{cfg.Paths.LogDir, cfg.ProjectsDir()} {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", p, err)
		}
	}
}
