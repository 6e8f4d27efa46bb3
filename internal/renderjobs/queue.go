// Package renderjobs runs the asynchronous montage render queue. Start
// returns as soon as a queued job record is persisted; a background goroutine
// sweeps old completed jobs, drives the external render engine, and persists
// coarse progress updates through the project store so every visible state
// change is serialized with other writers.
package renderjobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"montage/internal/config"
	"montage/internal/fileutil"
	"montage/internal/logging"
	"montage/internal/projectstore"
	"montage/internal/services"
)

// Queue coordinates render job lifecycle and retention.
type Queue struct {
	store  *projectstore.Store
	engine services.RenderEngine
	logger *slog.Logger

	keepPerQuality int
	progressStep   float64

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewQueue constructs a queue bound to the render engine. Close stops
// accepting work and waits for in-flight renders.
func NewQueue(store *projectstore.Store, engine services.RenderEngine, cfg config.Render, logger *slog.Logger) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	keep := cfg.KeepPerQuality
	if keep <= 0 {
		keep = 3
	}
	return &Queue{
		store:          store,
		engine:         engine,
		logger:         logging.NewComponentLogger(logger, "renderjobs"),
		keepPerQuality: keep,
		progressStep:   cfg.ProgressStep,
		baseCtx:        ctx,
		cancel:         cancel,
	}
}

// Close cancels in-flight renders and waits for their goroutines to finish
// persisting terminal state.
func (q *Queue) Close() {
	q.cancel()
	q.wg.Wait()
}

// Wait blocks until every background render started so far has concluded.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Start persists a queued job record and hands the render to the engine in
// the background, returning the new job id immediately.
func (q *Queue) Start(ctx context.Context, projectID string, plan services.RenderPlan, quality projectstore.RenderQuality) (string, error) {
	if !quality.Valid() {
		return "", services.Wrap(services.ErrValidation, "renderjobs", "start", fmt.Sprintf("unknown quality %q", quality), nil)
	}
	if q.engine == nil {
		return "", services.Wrap(nil, "renderjobs", "start", "no render engine configured", nil)
	}

	jobID := newJobID(quality)
	outputPath, err := q.store.RenderOutputPath(projectID, jobID)
	if err != nil {
		return "", err
	}

	job := projectstore.RenderJob{
		ID:        jobID,
		Quality:   quality,
		Status:    projectstore.RenderStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := q.store.Mutate(ctx, projectID, func(p *projectstore.Project) error {
		p.RenderJobs = append(p.RenderJobs, job)
		return nil
	}); err != nil {
		return "", err
	}

	q.logger.Info("render job queued",
		logging.String(logging.FieldProjectID, projectID),
		logging.String(logging.FieldJobID, jobID),
		logging.String("quality", string(quality)))

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.run(q.baseCtx, projectID, jobID, plan, quality, outputPath)
	}()
	return jobID, nil
}

// Get returns the job record, or (nil, nil) when the project exists but the
// job does not.
func (q *Queue) Get(ctx context.Context, projectID, jobID string) (*projectstore.RenderJob, error) {
	project, err := q.store.Read(ctx, projectID)
	if err != nil {
		return nil, err
	}
	job, _ := project.FindRenderJob(jobID)
	if job == nil {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

// Delete removes the job record and its output file. An actively rendering
// job cannot be deleted.
func (q *Queue) Delete(ctx context.Context, projectID, jobID string) error {
	found := false
	if _, err := q.store.Mutate(ctx, projectID, func(p *projectstore.Project) error {
		job, i := p.FindRenderJob(jobID)
		if job == nil {
			return nil
		}
		if job.Status == projectstore.RenderStatusRendering {
			return services.Wrap(services.ErrConflict, "renderjobs", "delete", fmt.Sprintf("job %s is rendering", jobID), nil)
		}
		found = true
		p.RemoveRenderJob(i)
		return nil
	}); err != nil {
		return err
	}
	if !found {
		return services.Wrap(services.ErrNotFound, "renderjobs", "delete", fmt.Sprintf("job %s", jobID), nil)
	}

	outputPath, err := q.store.RenderOutputPath(projectID, jobID)
	if err != nil {
		return err
	}
	if err := fileutil.RemoveIfExists(outputPath); err != nil {
		q.logger.Warn("failed to remove render output",
			logging.String(logging.FieldProjectID, projectID),
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err))
	}
	return nil
}

func (q *Queue) run(ctx context.Context, projectID, jobID string, plan services.RenderPlan, quality projectstore.RenderQuality, outputPath string) {
	logger := q.logger.With(
		logging.String(logging.FieldProjectID, projectID),
		logging.String(logging.FieldJobID, jobID))

	q.sweep(ctx, projectID, quality, jobID)

	if !q.transition(ctx, projectID, jobID, func(job *projectstore.RenderJob) {
		job.Status = projectstore.RenderStatusRendering
	}) {
		// Deleted between queueing and pickup.
		logger.Warn("render job vanished before start")
		return
	}

	persister := newProgressPersister(q, projectID, jobID, logger)
	err := q.engine.Render(ctx, plan, outputPath, persister.report)
	persister.stop()

	// Terminal state persists even when the queue is shutting down, so a job
	// interrupted by Close is recorded failed instead of stuck rendering.
	finalCtx := context.WithoutCancel(ctx)

	if err != nil {
		_ = fileutil.RemoveIfExists(outputPath)
		q.transition(finalCtx, projectID, jobID, func(job *projectstore.RenderJob) {
			job.Status = projectstore.RenderStatusFailed
			job.ErrorMessage = err.Error()
		})
		logger.Error("render job failed", logging.Error(err))
		return
	}

	q.transition(finalCtx, projectID, jobID, func(job *projectstore.RenderJob) {
		job.Status = projectstore.RenderStatusDone
		job.Progress = 100
		job.OutputFile = jobID + ".mp4"
	})
	logger.Info("render job complete", logging.String("output", outputPath))
}

// transition applies fn to the job record under the store's per-project lock.
// It reports false when the project or job no longer exists, and never
// touches a job already in a terminal state.
func (q *Queue) transition(ctx context.Context, projectID, jobID string, fn func(*projectstore.RenderJob)) bool {
	applied := false
	_, err := q.store.Mutate(ctx, projectID, func(p *projectstore.Project) error {
		job, _ := p.FindRenderJob(jobID)
		if job == nil || job.Status.Terminal() {
			return nil
		}
		fn(job)
		applied = true
		return nil
	})
	if err != nil {
		q.logger.Warn("render job transition failed",
			logging.String(logging.FieldProjectID, projectID),
			logging.String(logging.FieldJobID, jobID),
			logging.Error(err))
		return false
	}
	return applied
}
