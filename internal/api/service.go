package api

import (
	"context"

	"montage/internal/projectstore"
)

// ProjectService exposes read-side project views over the store for the
// daemon's HTTP handlers and the CLI.
type ProjectService struct {
	store *projectstore.Store
}

// NewProjectService wraps the store for view access.
func NewProjectService(store *projectstore.Store) *ProjectService {
	return &ProjectService{store: store}
}

// List returns a summary for every persisted project, sorted by id.
func (s *ProjectService) List(ctx context.Context) ([]ProjectSummary, error) {
	ids, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]ProjectSummary, 0, len(ids))
	for _, id := range ids {
		project, err := s.store.Read(ctx, id)
		if err != nil {
			// Deleted between listing and reading.
			continue
		}
		summaries = append(summaries, Summarize(project))
	}
	return summaries, nil
}

// Describe returns the full transport form of one project.
func (s *ProjectService) Describe(ctx context.Context, projectID string) (*ProjectDetail, error) {
	project, err := s.store.Read(ctx, projectID)
	if err != nil {
		return nil, err
	}
	detail := FromProject(project)
	return &detail, nil
}
