package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"montage/internal/config"
	"montage/internal/daemon"
	"montage/internal/logging"
	"montage/internal/projectstore"
	"montage/internal/refcache"
	"montage/internal/renderjobs"
	"montage/internal/safefetch"
	"montage/internal/services"
	"montage/internal/tasks"
	"montage/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *projectstore.Store
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, func(cfg *config.Config) {
		cfg.Recovery.RunAtStartup = false
	})
	store := testsupport.MustOpenStore(t, cfg)

	configPath := filepath.Join(filepath.Dir(cfg.Paths.LibraryDir), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, store: store, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nlibrary_dir = %q\nlog_dir = %q\napi_bind = %q\n\n[recovery]\nrun_at_startup = false\n",
		cfg.Paths.LibraryDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// startTestDaemon wires a full daemon around env's library and returns its
// API address.
func startTestDaemon(t *testing.T, env *cliTestEnv) string {
	t.Helper()

	logger := logging.NewNop()
	registry := tasks.NewRegistry(logger)
	fetcher := safefetch.New(logger)
	cache := refcache.New(env.store, fetcher, env.cfg.Fetch, logger)
	queue := renderjobs.NewQueue(env.store, idleEngine{}, env.cfg.Render, logger)

	d, err := daemon.New(env.cfg, daemon.Core{
		Store:    env.store,
		Registry: registry,
		Cache:    cache,
		Queue:    queue,
	}, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("daemon.Close: %v", err)
		}
	})
	return d.APIAddr()
}

type idleEngine struct{}

func (idleEngine) Render(ctx context.Context, plan services.RenderPlan, outputPath string, onProgress func(float64)) error {
	<-ctx.Done()
	return ctx.Err()
}

func seedProject(t *testing.T, store *projectstore.Store, project *projectstore.Project) {
	t.Helper()
	if err := store.Create(context.Background(), project); err != nil {
		t.Fatalf("seed project %s: %v", project.ID, err)
	}
}

func runCLI(t *testing.T, args []string, configPath, addr string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := make([]string, 0, 4)
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	if addr != "" {
		flags = append(flags, "--addr", addr)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
