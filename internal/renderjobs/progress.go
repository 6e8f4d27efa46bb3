package renderjobs

import (
	"context"
	"log/slog"
	"math"

	"montage/internal/logging"
	"montage/internal/projectstore"
)

// progressPersister decouples engine progress callbacks from store writes.
// Callbacks push fractions into a buffered channel and a dedicated goroutine
// drains it, so a slow persist never blocks the engine and a persist is never
// issued from inside the callback. A sampler gates writes to bucket
// boundaries to bound write volume.
type progressPersister struct {
	queue   *Queue
	updates chan float64
	done    chan struct{}
}

func newProgressPersister(queue *Queue, projectID, jobID string, logger *slog.Logger) *progressPersister {
	p := &progressPersister{
		queue:   queue,
		updates: make(chan float64, 64),
		done:    make(chan struct{}),
	}
	go p.drain(projectID, jobID, logger)
	return p
}

// report is handed to the render engine as its onProgress callback. When the
// channel is full the update is dropped; the next callback carries a fresher
// value.
func (p *progressPersister) report(fraction float64) {
	select {
	case p.updates <- fraction:
	default:
	}
}

// stop closes the update stream and waits for the final persist to land.
func (p *progressPersister) stop() {
	close(p.updates)
	<-p.done
}

func (p *progressPersister) drain(projectID, jobID string, logger *slog.Logger) {
	defer close(p.done)

	sampler := logging.NewProgressSampler(p.queue.progressStep)
	for fraction := range p.updates {
		percent := math.Max(0, math.Min(100, fraction*100))
		if !sampler.ShouldEmit(percent) {
			continue
		}
		value := int(percent)
		p.queue.transition(context.WithoutCancel(p.queue.baseCtx), projectID, jobID, func(job *projectstore.RenderJob) {
			// Progress never moves backwards, even if callbacks arrive out
			// of order.
			if value > job.Progress {
				job.Progress = value
			}
		})
		logger.Debug("render progress", logging.Int("percent", value))
	}
}
