package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"montage/internal/config"
	"montage/internal/daemon"
	"montage/internal/projectstore"
	"montage/internal/refcache"
	"montage/internal/renderjobs"
	"montage/internal/safefetch"
	"montage/internal/services"
	"montage/internal/tasks"
)

// unconfiguredEngine rejects renders until an external render command is set.
type unconfiguredEngine struct{}

func (unconfiguredEngine) Render(ctx context.Context, plan services.RenderPlan, outputPath string, onProgress func(float64)) error {
	return errors.New("render.command is not configured")
}

// buildCore wires the coordination components from configuration.
func buildCore(cfg *config.Config, logger *slog.Logger) (daemon.Core, error) {
	store, err := projectstore.Open(cfg, logger)
	if err != nil {
		return daemon.Core{}, fmt.Errorf("open project store: %w", err)
	}

	registry := tasks.NewRegistry(logger)
	fetcher := safefetch.New(logger)
	cache := refcache.New(store, fetcher, cfg.Fetch, logger)

	var engine services.RenderEngine = unconfiguredEngine{}
	if cfg.Render.Command != "" {
		engine = newCommandEngine(cfg.Render.Command, logger)
	}
	queue := renderjobs.NewQueue(store, engine, cfg.Render, logger)

	// A generation provider is a deployment concern wired by the operator;
	// without one the daemon still serves state, localization, and renders.
	return daemon.Core{
		Store:    store,
		Registry: registry,
		Cache:    cache,
		Queue:    queue,
	}, nil
}
