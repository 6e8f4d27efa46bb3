package projectstore

import (
	"fmt"

	"montage/internal/fileutil"
	"montage/internal/services"
)

func validateComponent(kind, value string) error {
	if !fileutil.SafeComponent(value) {
		return services.Wrap(services.ErrForbidden, "projectstore", "path", fmt.Sprintf("unsafe %s %q", kind, value), nil)
	}
	return nil
}

// ProjectDir returns the root directory of a project's files.
func (s *Store) ProjectDir(projectID string) (string, error) {
	if err := validateComponent("project id", projectID); err != nil {
		return "", err
	}
	return fileutil.WithinRoot(s.root, projectID)
}

// DocumentPath returns the location of the project's JSON document.
func (s *Store) DocumentPath(projectID string) (string, error) {
	dir, err := s.ProjectDir(projectID)
	if err != nil {
		return "", err
	}
	return fileutil.WithinRoot(dir, documentName)
}

// ShotMediaDir returns the directory for a shot's generated still images.
func (s *Store) ShotMediaDir(projectID, shotID string) (string, error) {
	if err := validateComponent("shot id", shotID); err != nil {
		return "", err
	}
	dir, err := s.ProjectDir(projectID)
	if err != nil {
		return "", err
	}
	return fileutil.WithinRoot(dir, "shots", shotID, "generated")
}

// ShotVideoDir returns the directory for a shot's video files.
func (s *Store) ShotVideoDir(projectID, shotID string) (string, error) {
	if err := validateComponent("shot id", shotID); err != nil {
		return "", err
	}
	dir, err := s.ProjectDir(projectID)
	if err != nil {
		return "", err
	}
	return fileutil.WithinRoot(dir, "shots", shotID, "video")
}

// RenderDir returns the directory holding montage render outputs.
func (s *Store) RenderDir(projectID string) (string, error) {
	dir, err := s.ProjectDir(projectID)
	if err != nil {
		return "", err
	}
	return fileutil.WithinRoot(dir, "montage", "renders")
}

// RenderOutputPath returns the output file location for a render job.
func (s *Store) RenderOutputPath(projectID, jobID string) (string, error) {
	if err := validateComponent("job id", jobID); err != nil {
		return "", err
	}
	dir, err := s.RenderDir(projectID)
	if err != nil {
		return "", err
	}
	return fileutil.WithinRoot(dir, jobID+".mp4")
}
