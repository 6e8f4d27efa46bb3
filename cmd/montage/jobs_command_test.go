package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"montage/internal/projectstore"
)

func TestJobsListsRenderJobs(t *testing.T) {
	env := setupCLITestEnv(t)
	seedProject(t, env.store, &projectstore.Project{
		ID: "alpha",
		RenderJobs: []projectstore.RenderJob{
			{
				ID:         "100-preview-aaaa",
				Quality:    projectstore.QualityPreview,
				Status:     projectstore.RenderStatusDone,
				Progress:   100,
				OutputFile: "100-preview-aaaa.mp4",
				CreatedAt:  time.Now().UTC().Add(-time.Hour),
			},
			{
				ID:           "200-final-bbbb",
				Quality:      projectstore.QualityFinal,
				Status:       projectstore.RenderStatusFailed,
				ErrorMessage: "render command exited with status 3",
				CreatedAt:    time.Now().UTC(),
			},
		},
	})

	outputPath, err := env.store.RenderOutputPath("alpha", "100-preview-aaaa")
	if err != nil {
		t.Fatalf("output path: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		t.Fatalf("mkdir renders: %v", err)
	}
	if err := os.WriteFile(outputPath, []byte("frames"), 0o644); err != nil {
		t.Fatalf("write output: %v", err)
	}

	out, _, err := runCLI(t, []string{"jobs", "alpha"}, env.configPath, "")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, "100-preview-aaaa")
	requireContains(t, out, "100-preview-aaaa.mp4 (6 B)")
	requireContains(t, out, "200-final-bbbb")
	requireContains(t, out, "Failed")
	requireContains(t, out, "render command exited with status 3")
}

func TestJobsEmptyProject(t *testing.T) {
	env := setupCLITestEnv(t)
	seedProject(t, env.store, &projectstore.Project{ID: "alpha"})

	out, _, err := runCLI(t, []string{"jobs", "alpha"}, env.configPath, "")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, "No render jobs")
}

func TestJobsMissingProjectFails(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"jobs", "ghost"}, env.configPath, "")
	if err == nil {
		t.Fatal("expected error for missing project")
	}
}
