package main

import (
	"context"
	"testing"

	"montage/internal/projectstore"
)

func TestRecoverLocalizesDataReferences(t *testing.T) {
	env := setupCLITestEnv(t)
	seedProject(t, env.store, &projectstore.Project{
		ID: "alpha",
		Shots: []projectstore.Shot{
			{
				ID:              "shot-1",
				Order:           1,
				Status:          projectstore.ShotStatusReviewing,
				GeneratedImages: []string{"data:image/png;base64,aGVsbG8="},
			},
		},
	})
	addr := startTestDaemon(t, env)

	out, _, err := runCLI(t, []string{"recover", "alpha"}, env.configPath, addr)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	requireContains(t, out, "Scanned 1 projects (1 shots)")
	requireContains(t, out, "External references found: 1")
	requireContains(t, out, "Localized: 1")

	project, err := env.store.Read(context.Background(), "alpha")
	if err != nil {
		t.Fatalf("read project: %v", err)
	}
	ref := project.Shots[0].GeneratedImages[0]
	if len(ref) == 0 || ref[:4] == "data" {
		t.Fatalf("reference not localized: %q", ref)
	}
}

func TestRecoverWholeLibraryWhenNoArgs(t *testing.T) {
	env := setupCLITestEnv(t)
	seedProject(t, env.store, &projectstore.Project{ID: "alpha"})
	seedProject(t, env.store, &projectstore.Project{ID: "beta"})
	addr := startTestDaemon(t, env)

	out, _, err := runCLI(t, []string{"recover"}, env.configPath, addr)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	requireContains(t, out, "Scanned 2 projects")
	requireContains(t, out, "Localized: 0")
}
