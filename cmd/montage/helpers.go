package main

import (
	"context"

	"montage/internal/projectstore"
)

// projectReader is the read-side slice of the project store the CLI needs.
type projectReader interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, projectID string) (*projectstore.Project, error)
	RenderOutputPath(projectID, jobID string) (string, error)
}
