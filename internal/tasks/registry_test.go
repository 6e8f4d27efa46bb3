package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"montage/internal/logging"
	"montage/internal/services"
)

func newTestRegistry() *Registry {
	return NewRegistry(logging.NewNop())
}

func TestBeginYieldsLiveToken(t *testing.T) {
	registry := newTestRegistry()

	token := registry.Begin(context.Background(), "proj", "shot", KindImage)
	if err := token.Checkpoint(); err != nil {
		t.Fatalf("Checkpoint() on fresh token = %v, want nil", err)
	}
	if got := registry.Live(); got != 1 {
		t.Fatalf("Live() = %d, want 1", got)
	}
}

func TestBeginSupersedesPriorToken(t *testing.T) {
	registry := newTestRegistry()

	first := registry.Begin(context.Background(), "proj", "shot", KindImage)
	second := registry.Begin(context.Background(), "proj", "shot", KindImage)

	if err := first.Checkpoint(); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("superseded Checkpoint() = %v, want ErrCancelled", err)
	}
	if err := second.Checkpoint(); err != nil {
		t.Fatalf("fresh Checkpoint() = %v, want nil", err)
	}
	if got := registry.Live(); got != 1 {
		t.Fatalf("Live() = %d, want 1", got)
	}
}

func TestBeginDifferentKindsCoexist(t *testing.T) {
	registry := newTestRegistry()

	image := registry.Begin(context.Background(), "proj", "shot", KindImage)
	video := registry.Begin(context.Background(), "proj", "shot", KindVideo)

	if err := image.Checkpoint(); err != nil {
		t.Fatalf("image Checkpoint() = %v, want nil", err)
	}
	if err := video.Checkpoint(); err != nil {
		t.Fatalf("video Checkpoint() = %v, want nil", err)
	}
	if got := registry.Live(); got != 2 {
		t.Fatalf("Live() = %d, want 2", got)
	}
}

func TestCancelRevokesToken(t *testing.T) {
	registry := newTestRegistry()

	token := registry.Begin(context.Background(), "proj", "shot", KindEnhance)
	if !registry.Cancel("proj", "shot", KindEnhance) {
		t.Fatal("Cancel() = false, want true for live task")
	}
	if err := token.Checkpoint(); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("Checkpoint() after Cancel = %v, want ErrCancelled", err)
	}
	if registry.Cancel("proj", "other", KindEnhance) {
		t.Fatal("Cancel() = true for unknown key, want false")
	}
}

func TestCancelAllCoversProject(t *testing.T) {
	registry := newTestRegistry()

	a := registry.Begin(context.Background(), "proj", "shot-a", KindImage)
	b := registry.Begin(context.Background(), "proj", "shot-b", KindVideo)
	other := registry.Begin(context.Background(), "other", "shot-a", KindImage)

	if got := registry.CancelAll("proj"); got != 2 {
		t.Fatalf("CancelAll() = %d, want 2", got)
	}
	if err := a.Checkpoint(); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("shot-a Checkpoint() = %v, want ErrCancelled", err)
	}
	if err := b.Checkpoint(); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("shot-b Checkpoint() = %v, want ErrCancelled", err)
	}
	if err := other.Checkpoint(); err != nil {
		t.Fatalf("other project Checkpoint() = %v, want nil", err)
	}
}

func TestCancelShotSpansKinds(t *testing.T) {
	registry := newTestRegistry()

	image := registry.Begin(context.Background(), "proj", "shot-a", KindImage)
	video := registry.Begin(context.Background(), "proj", "shot-a", KindVideo)
	other := registry.Begin(context.Background(), "proj", "shot-b", KindImage)

	if got := registry.CancelShot("proj", "shot-a"); got != 2 {
		t.Fatalf("CancelShot() = %d, want 2", got)
	}
	if err := image.Checkpoint(); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("image Checkpoint() = %v, want ErrCancelled", err)
	}
	if err := video.Checkpoint(); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("video Checkpoint() = %v, want ErrCancelled", err)
	}
	if err := other.Checkpoint(); err != nil {
		t.Fatalf("other shot Checkpoint() = %v, want nil", err)
	}
}

func TestEndRemovesOwnEntryOnly(t *testing.T) {
	registry := newTestRegistry()

	stale := registry.Begin(context.Background(), "proj", "shot", KindImage)
	fresh := registry.Begin(context.Background(), "proj", "shot", KindImage)

	// The superseded task finishing must not clobber the new registration.
	registry.End("proj", "shot", KindImage, stale)
	if got := registry.Live(); got != 1 {
		t.Fatalf("Live() after stale End = %d, want 1", got)
	}
	if err := fresh.Checkpoint(); err != nil {
		t.Fatalf("fresh Checkpoint() after stale End = %v, want nil", err)
	}

	registry.End("proj", "shot", KindImage, fresh)
	if got := registry.Live(); got != 0 {
		t.Fatalf("Live() after End = %d, want 0", got)
	}
}

func TestTokenInheritsParentCancellation(t *testing.T) {
	registry := newTestRegistry()

	parent, cancel := context.WithCancel(context.Background())
	token := registry.Begin(parent, "proj", "shot", KindVoice)
	cancel()

	select {
	case <-token.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("token context not cancelled after parent cancel")
	}
	if err := token.Checkpoint(); !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("Checkpoint() = %v, want ErrCancelled", err)
	}
}

func TestKindValid(t *testing.T) {
	for _, kind := range []Kind{KindImage, KindEnhance, KindVideo, KindVoice} {
		if !kind.Valid() {
			t.Fatalf("Valid() = false for %q", kind)
		}
	}
	if Kind("subtitle").Valid() {
		t.Fatal("Valid() = true for unknown kind")
	}
}
