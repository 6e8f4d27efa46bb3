package projectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"montage/internal/config"
	"montage/internal/fileutil"
	"montage/internal/logging"
	"montage/internal/services"
)

const documentName = "project.json"

// Store manages per-project document persistence rooted at the configured
// library directory.
type Store struct {
	root   string
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open initializes the store, creating the projects directory if needed.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("projectstore: config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return &Store{
		root:   cfg.ProjectsDir(),
		logger: logging.NewComponentLogger(logger, "projectstore"),
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the directory holding all project subdirectories.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) projectLock(projectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[projectID] = lock
	}
	return lock
}

// Read returns the current persisted snapshot of the project.
func (s *Store) Read(ctx context.Context, projectID string) (*Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.DocumentPath(projectID)
	if err != nil {
		return nil, err
	}
	return loadDocument(path, projectID)
}

// Mutate applies fn to the current persisted snapshot under the project's
// lock and persists the result only when fn returns nil. Mutations against
// the same project id are serialized; a project deleted concurrently surfaces
// services.ErrNotFound rather than being recreated.
func (s *Store) Mutate(ctx context.Context, projectID string, fn func(*Project) error) (*Project, error) {
	if fn == nil {
		return nil, services.Wrap(services.ErrValidation, "projectstore", "mutate", "nil mutation", nil)
	}
	path, err := s.DocumentPath(projectID)
	if err != nil {
		return nil, err
	}

	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	project, err := loadDocument(path, projectID)
	if err != nil {
		return nil, err
	}
	if err := fn(project); err != nil {
		return nil, err
	}
	project.UpdatedAt = time.Now().UTC()
	if err := s.persist(path, project); err != nil {
		return nil, err
	}
	return project, nil
}

// Create persists a new project document. An existing document with the same
// id is a conflict.
func (s *Store) Create(ctx context.Context, project *Project) error {
	if project == nil || project.ID == "" {
		return services.Wrap(services.ErrValidation, "projectstore", "create", "project id is required", nil)
	}
	path, err := s.DocumentPath(project.ID)
	if err != nil {
		return err
	}

	lock := s.projectLock(project.ID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return services.Wrap(services.ErrConflict, "projectstore", "create", fmt.Sprintf("project %s already exists", project.ID), nil)
	}

	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}
	return s.persist(path, project)
}

// Delete removes the project document and every file under its root.
func (s *Store) Delete(ctx context.Context, projectID string) error {
	dir, err := s.ProjectDir(projectID)
	if err != nil {
		return err
	}

	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(dir, documentName)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "projectstore", "delete", fmt.Sprintf("project %s", projectID), nil)
		}
		return fmt.Errorf("stat project document: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove project directory: %w", err)
	}
	return nil
}

// List returns the ids of every project with a persisted document, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read projects directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, entry.Name(), documentName)); err == nil {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) persist(path string, project *Project) error {
	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return fmt.Errorf("encode project document: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("persist project document: %w", err)
	}
	return nil
}

func loadDocument(path, projectID string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "projectstore", "read", fmt.Sprintf("project %s", projectID), nil)
		}
		return nil, fmt.Errorf("read project document: %w", err)
	}
	var project Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("decode project document %s: %w", projectID, err)
	}
	return &project, nil
}
