package generation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"montage/internal/logging"
	"montage/internal/projectstore"
	"montage/internal/services"
	"montage/internal/tasks"
	"montage/internal/testsupport"
)

type providerResult struct {
	url string
	err error
}

// providerCall exposes one in-flight Generate invocation so tests control
// when and how it resolves.
type providerCall struct {
	ctx    context.Context
	spec   services.GenerationSpec
	finish chan providerResult
}

type scriptedProvider struct {
	calls chan *providerCall
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{calls: make(chan *providerCall, 4)}
}

func (p *scriptedProvider) Generate(ctx context.Context, spec services.GenerationSpec) (string, error) {
	call := &providerCall{ctx: ctx, spec: spec, finish: make(chan providerResult)}
	p.calls <- call
	select {
	case result := <-call.finish:
		return result.url, result.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *scriptedProvider) nextCall(t *testing.T) *providerCall {
	t.Helper()

	select {
	case call := <-p.calls:
		return call
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for provider call")
		return nil
	}
}

// rewritingLocalizer behaves like the reference cache: it rewrites the
// reference in the document and reports how often it was invoked.
type rewritingLocalizer struct {
	store *projectstore.Store
	name  string
	err   error
	calls atomic.Int64
}

func (l *rewritingLocalizer) Localize(ctx context.Context, projectID, shotID, ref string) (string, error) {
	l.calls.Add(1)
	if l.err != nil {
		return "", l.err
	}
	replaced := 0
	if _, err := l.store.Mutate(ctx, projectID, func(p *projectstore.Project) error {
		if shot := p.FindShot(shotID); shot != nil {
			replaced = shot.ReplaceReference(ref, l.name)
		}
		return nil
	}); err != nil {
		return "", err
	}
	if replaced == 0 {
		return "", nil
	}
	return l.name, nil
}

func newTestService(t *testing.T) (*Service, *scriptedProvider, *rewritingLocalizer, *projectstore.Store, *tasks.Registry) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	provider := newScriptedProvider()
	localizer := &rewritingLocalizer{store: store, name: "ref-1-local.png"}
	registry := tasks.NewRegistry(logging.NewNop())
	service := NewService(store, registry, provider, localizer, logging.NewNop())
	return service, provider, localizer, store, registry
}

func shotStatus(t *testing.T, store *projectstore.Store, projectID, shotID string) projectstore.ShotStatus {
	t.Helper()

	project, err := store.Read(context.Background(), projectID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	shot := project.FindShot(shotID)
	if shot == nil {
		t.Fatalf("shot %s missing", shotID)
	}
	return shot.Status
}

func TestRunImageSucceeds(t *testing.T) {
	service, provider, localizer, store, registry := newTestService(t)
	testsupport.SeedProject(t, store, "proj", testsupport.NewShot("shot-1", 0))

	done := make(chan struct{})
	var name string
	var runErr error
	go func() {
		defer close(done)
		name, runErr = service.Run(context.Background(), "proj", "shot-1", tasks.KindImage, services.GenerationSpec{Prompt: "sunrise"})
	}()

	call := provider.nextCall(t)
	if call.spec.Prompt != "sunrise" {
		t.Errorf("provider spec prompt = %q", call.spec.Prompt)
	}
	if got := shotStatus(t, store, "proj", "shot-1"); got != projectstore.ShotStatusGenerating {
		t.Errorf("mid-flight status = %q, want generating", got)
	}

	call.finish <- providerResult{url: "https://cdn.example.com/out.png"}
	<-done

	if runErr != nil {
		t.Fatalf("Run() error = %v", runErr)
	}
	if name != "ref-1-local.png" {
		t.Fatalf("Run() name = %q", name)
	}
	if got := localizer.calls.Load(); got != 1 {
		t.Errorf("localizer calls = %d, want 1", got)
	}
	if got := shotStatus(t, store, "proj", "shot-1"); got != projectstore.ShotStatusReviewing {
		t.Errorf("final status = %q, want reviewing", got)
	}

	project, err := store.Read(context.Background(), "proj")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	images := project.FindShot("shot-1").GeneratedImages
	if len(images) != 1 || images[0] != "ref-1-local.png" {
		t.Fatalf("GeneratedImages = %v", images)
	}
	if got := registry.Live(); got != 0 {
		t.Fatalf("registry still holds %d tokens", got)
	}
}

func TestRunVideoAttachesVideoFile(t *testing.T) {
	service, provider, localizer, store, _ := newTestService(t)
	localizer.name = "ref-1-local.mp4"
	shot := testsupport.NewShot("shot-1", 0)
	shot.Status = projectstore.ShotStatusReviewing
	testsupport.SeedProject(t, store, "proj", shot)

	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		_, runErr = service.Run(context.Background(), "proj", "shot-1", tasks.KindVideo, services.GenerationSpec{})
	}()

	call := provider.nextCall(t)
	if got := shotStatus(t, store, "proj", "shot-1"); got != projectstore.ShotStatusAnimating {
		t.Errorf("mid-flight status = %q, want animating", got)
	}
	call.finish <- providerResult{url: "https://cdn.example.com/out.mp4"}
	<-done

	if runErr != nil {
		t.Fatalf("Run() error = %v", runErr)
	}
	project, err := store.Read(context.Background(), "proj")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	s := project.FindShot("shot-1")
	if s.Status != projectstore.ShotStatusReady {
		t.Errorf("final status = %q, want ready", s.Status)
	}
	if s.VideoFile == nil || *s.VideoFile != "ref-1-local.mp4" {
		t.Errorf("VideoFile = %v", s.VideoFile)
	}
}

func TestRunCancelledRevertsShotStatus(t *testing.T) {
	service, provider, _, store, _ := newTestService(t)
	shot := testsupport.NewShot("shot-1", 0)
	shot.Status = projectstore.ShotStatusReviewing
	testsupport.SeedProject(t, store, "proj", shot)

	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		_, runErr = service.Run(context.Background(), "proj", "shot-1", tasks.KindEnhance, services.GenerationSpec{})
	}()

	call := provider.nextCall(t)
	if got := shotStatus(t, store, "proj", "shot-1"); got != projectstore.ShotStatusEnhancing {
		t.Errorf("mid-flight status = %q, want enhancing", got)
	}

	if got := service.Cancel("proj", "shot-1"); got != 1 {
		t.Fatalf("Cancel() = %d, want 1", got)
	}
	<-done

	if !errors.Is(runErr, services.ErrCancelled) {
		t.Fatalf("Run() error = %v, want ErrCancelled", runErr)
	}
	if got := shotStatus(t, store, "proj", "shot-1"); got != projectstore.ShotStatusReviewing {
		t.Fatalf("status after cancel = %q, want reverted reviewing", got)
	}
	if call.ctx.Err() == nil {
		t.Error("provider context not cancelled")
	}
}

func TestRunProviderFailureRevertsShotStatus(t *testing.T) {
	service, provider, _, store, _ := newTestService(t)
	shot := testsupport.NewShot("shot-1", 0)
	shot.Status = projectstore.ShotStatusReviewing
	testsupport.SeedProject(t, store, "proj", shot)

	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		_, runErr = service.Run(context.Background(), "proj", "shot-1", tasks.KindImage, services.GenerationSpec{})
	}()

	call := provider.nextCall(t)
	call.finish <- providerResult{err: errors.New("provider exploded")}
	<-done

	if runErr == nil || errors.Is(runErr, services.ErrCancelled) {
		t.Fatalf("Run() error = %v, want non-cancelled failure", runErr)
	}
	if got := shotStatus(t, store, "proj", "shot-1"); got != projectstore.ShotStatusReviewing {
		t.Fatalf("status after failure = %q, want pre-generation reviewing", got)
	}
}

func TestRunSupersededTaskDoesNotRevertNewStatus(t *testing.T) {
	service, provider, _, store, _ := newTestService(t)
	testsupport.SeedProject(t, store, "proj", testsupport.NewShot("shot-1", 0))

	firstDone := make(chan error, 1)
	go func() {
		_, err := service.Run(context.Background(), "proj", "shot-1", tasks.KindImage, services.GenerationSpec{})
		firstDone <- err
	}()
	provider.nextCall(t)

	secondDone := make(chan error, 1)
	go func() {
		_, err := service.Run(context.Background(), "proj", "shot-1", tasks.KindImage, services.GenerationSpec{})
		secondDone <- err
	}()
	second := provider.nextCall(t)

	if err := <-firstDone; !errors.Is(err, services.ErrCancelled) {
		t.Fatalf("superseded Run() error = %v, want ErrCancelled", err)
	}
	// The superseded task must not have knocked the shot out of its
	// in-flight state.
	if got := shotStatus(t, store, "proj", "shot-1"); got != projectstore.ShotStatusGenerating {
		t.Fatalf("status after supersede = %q, want generating", got)
	}

	second.finish <- providerResult{url: "https://cdn.example.com/out.png"}
	if err := <-secondDone; err != nil {
		t.Fatalf("superseding Run() error = %v", err)
	}
	if got := shotStatus(t, store, "proj", "shot-1"); got != projectstore.ShotStatusReviewing {
		t.Fatalf("final status = %q, want reviewing", got)
	}
}

func TestRunMissingShot(t *testing.T) {
	service, _, _, store, _ := newTestService(t)
	testsupport.SeedProject(t, store, "proj", testsupport.NewShot("shot-1", 0))

	_, err := service.Run(context.Background(), "proj", "ghost", tasks.KindImage, services.GenerationSpec{})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Run(missing shot) error = %v, want ErrNotFound", err)
	}
	_, err = service.Run(context.Background(), "ghost", "shot-1", tasks.KindImage, services.GenerationSpec{})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Run(missing project) error = %v, want ErrNotFound", err)
	}
}

func TestRunLocalResultSkipsLocalization(t *testing.T) {
	service, provider, localizer, store, _ := newTestService(t)
	testsupport.SeedProject(t, store, "proj", testsupport.NewShot("shot-1", 0))

	done := make(chan struct{})
	var name string
	var runErr error
	go func() {
		defer close(done)
		name, runErr = service.Run(context.Background(), "proj", "shot-1", tasks.KindImage, services.GenerationSpec{})
	}()

	call := provider.nextCall(t)
	call.finish <- providerResult{url: "already-local.png"}
	<-done

	if runErr != nil {
		t.Fatalf("Run() error = %v", runErr)
	}
	if name != "already-local.png" {
		t.Fatalf("Run() name = %q", name)
	}
	if got := localizer.calls.Load(); got != 0 {
		t.Fatalf("localizer calls = %d, want 0", got)
	}
}
