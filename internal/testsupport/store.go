package testsupport

import (
	"context"
	"testing"

	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/projectstore"
)

// MustOpenStore opens a projectstore.Store for tests.
func MustOpenStore(t testing.TB, cfg *config.Config) *projectstore.Store {
	t.Helper()

	store, err := projectstore.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("projectstore.Open: %v", err)
	}
	return store
}

// SeedProject creates a project document with the provided shots.
func SeedProject(t testing.TB, store *projectstore.Store, projectID string, shots ...projectstore.Shot) *projectstore.Project {
	t.Helper()

	project := &projectstore.Project{
		ID:    projectID,
		Stage: "shots",
		Shots: shots,
	}
	if err := store.Create(context.Background(), project); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return project
}

// NewShot builds a shot with sensible defaults for tests.
func NewShot(id string, order int) projectstore.Shot {
	return projectstore.Shot{
		ID:              id,
		Order:           order,
		Status:          projectstore.ShotStatusDraft,
		GeneratedImages: []string{},
		EnhancedImages:  []string{},
	}
}
