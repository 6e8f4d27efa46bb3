package projectstore_test

import (
	"errors"
	"testing"

	"montage/internal/projectstore"
	"montage/internal/services"
	"montage/internal/testsupport"
)

func TestDecodeShotPatchAllowList(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"prompt only", `{"prompt":"wide shot of the harbor"}`, false},
		{"duration only", `{"durationSeconds":4.5}`, false},
		{"both", `{"prompt":"x","durationSeconds":2}`, false},
		{"server-managed status", `{"status":"ready"}`, true},
		{"server-managed media list", `{"generatedImages":["a.png"]}`, true},
		{"server-managed order", `{"order":5}`, true},
		{"negative duration", `{"durationSeconds":-1}`, true},
		{"malformed", `{"prompt":`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := projectstore.DecodeShotPatch([]byte(tc.body))
			if tc.wantErr {
				if !errors.Is(err, services.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestApplyShotPatch(t *testing.T) {
	shot := testsupport.NewShot("shot-1", 0)
	shot.Prompt = "old prompt"
	project := &projectstore.Project{ID: "proj-1", Shots: []projectstore.Shot{shot}}

	patch, err := projectstore.DecodeShotPatch([]byte(`{"prompt":"new prompt","durationSeconds":3}`))
	if err != nil {
		t.Fatalf("DecodeShotPatch: %v", err)
	}
	if err := projectstore.ApplyShotPatch(project, "shot-1", patch); err != nil {
		t.Fatalf("ApplyShotPatch: %v", err)
	}
	got := project.Shots[0]
	if got.Prompt != "new prompt" || got.DurationSeconds != 3 {
		t.Fatalf("patch not applied: %+v", got)
	}

	if err := projectstore.ApplyShotPatch(project, "missing", patch); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found for unknown shot, got %v", err)
	}
}

func TestReplaceReference(t *testing.T) {
	video := "https://cdn.example.com/clip.mp4"
	shot := projectstore.Shot{
		ID:              "shot-1",
		GeneratedImages: []string{"local.png", "https://cdn.example.com/img.png"},
		EnhancedImages:  []string{"https://cdn.example.com/img.png"},
		VideoFile:       &video,
	}

	if got := shot.ReplaceReference("https://cdn.example.com/img.png", "img-local.png"); got != 2 {
		t.Fatalf("expected 2 replacements, got %d", got)
	}
	if shot.GeneratedImages[1] != "img-local.png" || shot.EnhancedImages[0] != "img-local.png" {
		t.Fatalf("lists not rewritten: %+v", shot)
	}
	if got := shot.ReplaceReference(video, "clip-local.mp4"); got != 1 {
		t.Fatalf("expected video replacement, got %d", got)
	}
	if shot.VideoFile == nil || *shot.VideoFile != "clip-local.mp4" {
		t.Fatalf("video not rewritten: %+v", shot.VideoFile)
	}
	if shot.ContainsReference(video) {
		t.Fatal("stale reference still reported present")
	}
}
