// Package api defines the transport representations shared by the daemon's
// HTTP server and the CLI, plus converters from the persisted project model.
package api

import (
	"time"

	"montage/internal/projectstore"
	"montage/internal/refcache"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// FromShot converts a persisted shot to its transport form.
func FromShot(shot projectstore.Shot) ShotView {
	view := ShotView{
		ID:              shot.ID,
		Order:           shot.Order,
		Status:          string(shot.Status),
		Prompt:          shot.Prompt,
		DurationSeconds: shot.DurationSeconds,
		GeneratedImages: shot.GeneratedImages,
		EnhancedImages:  shot.EnhancedImages,
		VideoFile:       shot.VideoFile,
	}
	if view.GeneratedImages == nil {
		view.GeneratedImages = []string{}
	}
	if view.EnhancedImages == nil {
		view.EnhancedImages = []string{}
	}
	return view
}

// FromRenderJob converts a persisted render job to its transport form.
func FromRenderJob(job projectstore.RenderJob) RenderJobView {
	return RenderJobView{
		ID:           job.ID,
		Quality:      string(job.Quality),
		Status:       string(job.Status),
		Progress:     job.Progress,
		OutputFile:   job.OutputFile,
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    formatTime(job.CreatedAt),
	}
}

// FromProject converts a project document to its full transport form.
func FromProject(project *projectstore.Project) ProjectDetail {
	detail := ProjectDetail{
		ID:         project.ID,
		Stage:      project.Stage,
		Shots:      make([]ShotView, 0, len(project.Shots)),
		RenderJobs: make([]RenderJobView, 0, len(project.RenderJobs)),
		CreatedAt:  formatTime(project.CreatedAt),
		UpdatedAt:  formatTime(project.UpdatedAt),
	}
	for _, shot := range project.Shots {
		detail.Shots = append(detail.Shots, FromShot(shot))
	}
	for _, job := range project.RenderJobs {
		detail.RenderJobs = append(detail.RenderJobs, FromRenderJob(job))
	}
	return detail
}

// Summarize converts a project document to its list form.
func Summarize(project *projectstore.Project) ProjectSummary {
	return ProjectSummary{
		ID:         project.ID,
		Stage:      project.Stage,
		Shots:      len(project.Shots),
		RenderJobs: len(project.RenderJobs),
		UpdatedAt:  formatTime(project.UpdatedAt),
	}
}

// FromRecoveryReport converts a recovery report to its transport form.
func FromRecoveryReport(report refcache.RecoveryReport) RecoveryResponse {
	return RecoveryResponse{
		Projects:        report.Projects,
		Shots:           report.Shots,
		ReferencesFound: report.ReferencesFound,
		Localized:       report.Localized,
		Failed:          report.Failed,
	}
}
