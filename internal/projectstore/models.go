package projectstore

import (
	"encoding/json"
	"time"
)

// ShotStatus tracks where a shot sits in the generation lifecycle.
type ShotStatus string

const (
	ShotStatusDraft      ShotStatus = "draft"
	ShotStatusGenerating ShotStatus = "generating"
	ShotStatusReviewing  ShotStatus = "reviewing"
	ShotStatusEnhancing  ShotStatus = "enhancing"
	ShotStatusAnimating  ShotStatus = "animating"
	ShotStatusReady      ShotStatus = "ready"
	ShotStatusFailed     ShotStatus = "failed"
)

// InFlight reports whether the status marks a generation in progress. A
// failed or cancelled generation reverts the shot from one of these to the
// status captured when the task began.
func (s ShotStatus) InFlight() bool {
	switch s {
	case ShotStatusGenerating, ShotStatusEnhancing, ShotStatusAnimating:
		return true
	}
	return false
}

// RenderQuality selects the render tier.
type RenderQuality string

const (
	QualityPreview RenderQuality = "preview"
	QualityFinal   RenderQuality = "final"
)

// Valid reports whether the quality is a known tier.
func (q RenderQuality) Valid() bool {
	return q == QualityPreview || q == QualityFinal
}

// RenderStatus tracks the render job state machine:
// queued → rendering → {done | failed}.
type RenderStatus string

const (
	RenderStatusQueued    RenderStatus = "queued"
	RenderStatusRendering RenderStatus = "rendering"
	RenderStatusDone      RenderStatus = "done"
	RenderStatusFailed    RenderStatus = "failed"
)

// Terminal reports whether no further transition may leave the status except
// deletion.
func (s RenderStatus) Terminal() bool {
	return s == RenderStatusDone || s == RenderStatusFailed
}

// Shot is one entry in a project's ordered shot list. ID and Order are
// immutable after creation; Status, the media lists, and VideoFile are only
// mutated by the coordination core, never echoed from client requests.
type Shot struct {
	ID              string     `json:"id"`
	Order           int        `json:"order"`
	Status          ShotStatus `json:"status"`
	Prompt          string     `json:"prompt,omitempty"`
	DurationSeconds float64    `json:"durationSeconds,omitempty"`
	GeneratedImages []string   `json:"generatedImages"`
	EnhancedImages  []string   `json:"enhancedImages"`
	VideoFile       *string    `json:"videoFile"`
}

// ContainsReference reports whether ref appears in any of the shot's media
// fields.
func (s *Shot) ContainsReference(ref string) bool {
	for _, img := range s.GeneratedImages {
		if img == ref {
			return true
		}
	}
	for _, img := range s.EnhancedImages {
		if img == ref {
			return true
		}
	}
	return s.VideoFile != nil && *s.VideoFile == ref
}

// ReplaceReference rewrites every occurrence of old in the shot's media fields
// to new and returns how many were replaced.
func (s *Shot) ReplaceReference(old, new string) int {
	replaced := 0
	for i, img := range s.GeneratedImages {
		if img == old {
			s.GeneratedImages[i] = new
			replaced++
		}
	}
	for i, img := range s.EnhancedImages {
		if img == old {
			s.EnhancedImages[i] = new
			replaced++
		}
	}
	if s.VideoFile != nil && *s.VideoFile == old {
		v := new
		s.VideoFile = &v
		replaced++
	}
	return replaced
}

// RenderJob is the persisted record of one asynchronous montage render.
type RenderJob struct {
	ID           string        `json:"id"`
	Quality      RenderQuality `json:"quality"`
	Status       RenderStatus  `json:"status"`
	Progress     int           `json:"progress"`
	OutputFile   string        `json:"outputFile,omitempty"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// Project is the per-project document. Settings and Brief are opaque blobs
// owned by collaborators outside this core.
type Project struct {
	ID         string          `json:"id"`
	Stage      string          `json:"stage,omitempty"`
	Shots      []Shot          `json:"shots"`
	RenderJobs []RenderJob     `json:"renderJobs"`
	Settings   json.RawMessage `json:"settings,omitempty"`
	Brief      json.RawMessage `json:"brief,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// FindShot returns the shot with the given id, or nil.
func (p *Project) FindShot(shotID string) *Shot {
	for i := range p.Shots {
		if p.Shots[i].ID == shotID {
			return &p.Shots[i]
		}
	}
	return nil
}

// FindRenderJob returns the render job with the given id and its index, or
// (nil, -1).
func (p *Project) FindRenderJob(jobID string) (*RenderJob, int) {
	for i := range p.RenderJobs {
		if p.RenderJobs[i].ID == jobID {
			return &p.RenderJobs[i], i
		}
	}
	return nil, -1
}

// RemoveRenderJob deletes the job record at index i.
func (p *Project) RemoveRenderJob(i int) {
	p.RenderJobs = append(p.RenderJobs[:i], p.RenderJobs[i+1:]...)
}
