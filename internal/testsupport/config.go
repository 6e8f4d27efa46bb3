package testsupport

import (
	"path/filepath"
	"testing"

	"montage/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithRenderKeep overrides the render retention count on the test config.
func WithRenderKeep(keep int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Render.KeepPerQuality = keep
	}
}

// WithProgressStep overrides the progress persistence step on the test config.
func WithProgressStep(step float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Render.ProgressStep = step
	}
}

// WithFetchMaxBytes overrides the fetch byte cap on the test config.
func WithFetchMaxBytes(max int64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Fetch.MaxBytes = max
	}
}

// WithFetchMaxAttempts overrides the download attempt budget on the test
// config.
func WithFetchMaxAttempts(attempts int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Fetch.MaxAttempts = attempts
	}
}
