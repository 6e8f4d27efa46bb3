package renderjobs

import (
	"context"
	"sort"

	"montage/internal/fileutil"
	"montage/internal/logging"
	"montage/internal/projectstore"
)

// sweep prunes completed jobs of the given quality so that, counting the job
// being started, at most the configured retention count remain, preferring the
// newest by creation time. Output files are removed
// before their records so a sweep interrupted midway leaves records whose
// files can be re-swept, never files without records. The sweep is best
// effort: failures are logged and never block the new render.
func (q *Queue) sweep(ctx context.Context, projectID string, quality projectstore.RenderQuality, newJobID string) {
	project, err := q.store.Read(ctx, projectID)
	if err != nil {
		q.logger.Warn("retention sweep skipped",
			logging.String(logging.FieldProjectID, projectID),
			logging.Error(err))
		return
	}

	var completed []projectstore.RenderJob
	for _, job := range project.RenderJobs {
		if job.ID == newJobID || job.Quality != quality || !job.Status.Terminal() {
			continue
		}
		completed = append(completed, job)
	}
	// The job being started counts against the budget, so a fourth render
	// with three completed jobs retires the oldest of them.
	if len(completed) < q.keepPerQuality {
		return
	}

	sort.Slice(completed, func(i, j int) bool {
		if !completed[i].CreatedAt.Equal(completed[j].CreatedAt) {
			return completed[i].CreatedAt.After(completed[j].CreatedAt)
		}
		return completed[i].ID > completed[j].ID
	})
	victims := completed[q.keepPerQuality-1:]

	for _, victim := range victims {
		outputPath, err := q.store.RenderOutputPath(projectID, victim.ID)
		if err == nil {
			err = fileutil.RemoveIfExists(outputPath)
		}
		if err != nil {
			q.logger.Warn("retention sweep failed to remove output",
				logging.String(logging.FieldProjectID, projectID),
				logging.String(logging.FieldJobID, victim.ID),
				logging.Error(err))
			continue
		}

		victimID := victim.ID
		_, err = q.store.Mutate(ctx, projectID, func(p *projectstore.Project) error {
			job, i := p.FindRenderJob(victimID)
			// Only terminal records are swept; a record revived or replaced
			// since the snapshot is left alone.
			if job == nil || !job.Status.Terminal() {
				return nil
			}
			p.RemoveRenderJob(i)
			return nil
		})
		if err != nil {
			q.logger.Warn("retention sweep failed to remove record",
				logging.String(logging.FieldProjectID, projectID),
				logging.String(logging.FieldJobID, victimID),
				logging.Error(err))
			continue
		}
		q.logger.Info("retired old render job",
			logging.String(logging.FieldProjectID, projectID),
			logging.String(logging.FieldJobID, victimID),
			logging.String("quality", string(quality)))
	}
}
