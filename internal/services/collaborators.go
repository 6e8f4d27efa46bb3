package services

import "context"

// GenerationSpec carries the inputs a generation provider needs for one shot.
// The core treats the prompt and reference inputs as opaque; providers decide
// how to interpret them.
type GenerationSpec struct {
	Prompt          string
	ReferenceImages []string
	DurationSeconds float64
	Options         map[string]string
}

// GenerationProvider is the delegated image/video/voice backend. Generate
// blocks until the provider finishes and returns the URL (or data URI) of the
// produced asset. The supplied context is derived from the generation task's
// cancellation token, so providers that honor context abort early when the
// task is superseded or cancelled.
type GenerationProvider interface {
	Generate(ctx context.Context, spec GenerationSpec) (resultURL string, err error)
}

// RenderPlan describes one montage render request. The core never inspects
// the plan beyond persisting job bookkeeping around it.
type RenderPlan struct {
	ShotIDs []string
	Payload map[string]any
}

// RenderEngine executes a render plan into outputPath, reporting fractional
// progress in [0,1] through onProgress. A nil onProgress must be tolerated.
// Render owns outputPath only for the duration of the call; on error the
// caller removes whatever partial output was written.
type RenderEngine interface {
	Render(ctx context.Context, plan RenderPlan, outputPath string, onProgress func(float64)) error
}
