// Package generation orchestrates one delegated media generation for a shot:
// it registers a cancellable task, moves the shot into its in-flight status,
// calls the provider, localizes the returned reference, and finalizes the
// shot. Any failure or cancellation reverts the shot to the status it held
// when the task began, so a shot is never left stuck mid-flight.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"montage/internal/logging"
	"montage/internal/projectstore"
	"montage/internal/refcache"
	"montage/internal/services"
	"montage/internal/tasks"
)

// Localizer is the reference cache surface the service needs.
type Localizer interface {
	Localize(ctx context.Context, projectID, shotID, ref string) (string, error)
}

// Service runs generation operations against a single provider.
type Service struct {
	store    *projectstore.Store
	registry *tasks.Registry
	provider services.GenerationProvider
	cache    Localizer
	logger   *slog.Logger
}

// NewService wires the generation pipeline together.
func NewService(store *projectstore.Store, registry *tasks.Registry, provider services.GenerationProvider, cache Localizer, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		registry: registry,
		provider: provider,
		cache:    cache,
		logger:   logging.NewComponentLogger(logger, "generation"),
	}
}

// inFlightStatus maps an operation kind to the status a shot holds while the
// operation runs.
func inFlightStatus(kind tasks.Kind) projectstore.ShotStatus {
	switch kind {
	case tasks.KindEnhance:
		return projectstore.ShotStatusEnhancing
	case tasks.KindVideo:
		return projectstore.ShotStatusAnimating
	default:
		return projectstore.ShotStatusGenerating
	}
}

// completedStatus maps an operation kind to the status a shot moves to after
// the operation succeeds.
func completedStatus(kind tasks.Kind) projectstore.ShotStatus {
	switch kind {
	case tasks.KindVideo:
		return projectstore.ShotStatusReady
	default:
		return projectstore.ShotStatusReviewing
	}
}

// Run executes one generation operation for a shot and returns the localized
// filename of the produced asset. A second Run for the same (project, shot,
// kind) supersedes the first.
func (s *Service) Run(ctx context.Context, projectID, shotID string, kind tasks.Kind, spec services.GenerationSpec) (string, error) {
	if !kind.Valid() {
		return "", services.Wrap(services.ErrValidation, "generation", "run", fmt.Sprintf("unknown kind %q", kind), nil)
	}
	if s.provider == nil {
		return "", services.Wrap(nil, "generation", "run", "no provider configured", nil)
	}

	ctx = services.WithProjectID(ctx, projectID)
	ctx = services.WithShotID(ctx, shotID)
	logger := logging.WithContext(ctx, s.logger)

	// Capture the shot's current status and move it in flight in one
	// serialized mutation.
	var priorStatus projectstore.ShotStatus
	if _, err := s.store.Mutate(ctx, projectID, func(p *projectstore.Project) error {
		shot := p.FindShot(shotID)
		if shot == nil {
			return services.Wrap(services.ErrNotFound, "generation", "run", fmt.Sprintf("shot %s", shotID), nil)
		}
		priorStatus = shot.Status
		if priorStatus.InFlight() {
			// A superseded task reverts to the last settled status, not to
			// another in-flight one.
			priorStatus = projectstore.ShotStatusDraft
		}
		shot.Status = inFlightStatus(kind)
		return nil
	}); err != nil {
		return "", err
	}

	token := s.registry.Begin(ctx, projectID, shotID, kind)
	defer s.registry.End(projectID, shotID, kind, token)

	name, err := s.generate(token, projectID, shotID, kind, spec)
	if err != nil {
		// A superseding task owns the shot's status now; only the task still
		// registered for the key reverts it.
		if s.registry.Owns(projectID, shotID, kind, token) {
			s.revert(projectID, shotID, priorStatus)
		}
		return "", err
	}

	if _, err := s.store.Mutate(context.WithoutCancel(ctx), projectID, func(p *projectstore.Project) error {
		shot := p.FindShot(shotID)
		if shot == nil {
			return services.Wrap(services.ErrNotFound, "generation", "finalize", fmt.Sprintf("shot %s", shotID), nil)
		}
		shot.Status = completedStatus(kind)
		return nil
	}); err != nil {
		return "", err
	}

	logger.Info("generation complete",
		logging.String(logging.FieldOperation, string(kind)),
		logging.String("asset", name))
	return name, nil
}

// Cancel revokes every live generation task for the shot and returns how many
// were cancelled.
func (s *Service) Cancel(projectID, shotID string) int {
	return s.registry.CancelShot(projectID, shotID)
}

func (s *Service) generate(token *tasks.Token, projectID, shotID string, kind tasks.Kind, spec services.GenerationSpec) (string, error) {
	if err := token.Checkpoint(); err != nil {
		return "", err
	}
	resultURL, err := s.provider.Generate(token.Context(), spec)
	if err != nil {
		if token.Err() != nil {
			return "", services.Wrap(services.ErrCancelled, "generation", string(kind), "", err)
		}
		return "", services.Wrap(nil, "generation", string(kind), "provider call", err)
	}
	if err := token.Checkpoint(); err != nil {
		return "", err
	}

	if err := s.attach(token.Context(), projectID, shotID, kind, resultURL); err != nil {
		return "", err
	}
	if err := token.Checkpoint(); err != nil {
		return "", err
	}

	if !refcache.IsExternal(resultURL) {
		return resultURL, nil
	}
	name, err := s.cache.Localize(token.Context(), projectID, shotID, resultURL)
	if err != nil {
		return "", err
	}
	if name == "" {
		// The reference vanished between attach and rewrite, which means the
		// task was superseded.
		return "", services.Wrap(services.ErrCancelled, "generation", string(kind), "result superseded before localization", nil)
	}
	return name, nil
}

// attach records the provider's result on the shot's media field for the
// operation kind so the reference cache can find and rewrite it.
func (s *Service) attach(ctx context.Context, projectID, shotID string, kind tasks.Kind, ref string) error {
	_, err := s.store.Mutate(ctx, projectID, func(p *projectstore.Project) error {
		shot := p.FindShot(shotID)
		if shot == nil {
			return services.Wrap(services.ErrNotFound, "generation", "attach", fmt.Sprintf("shot %s", shotID), nil)
		}
		switch kind {
		case tasks.KindEnhance:
			shot.EnhancedImages = append(shot.EnhancedImages, ref)
		case tasks.KindVideo:
			shot.VideoFile = &ref
		default:
			shot.GeneratedImages = append(shot.GeneratedImages, ref)
		}
		return nil
	})
	return err
}

// revert restores the shot to its pre-generation status. Failure and
// cancellation both roll back; any media attached before the error stays on
// the shot.
func (s *Service) revert(projectID, shotID string, prior projectstore.ShotStatus) {
	_, err := s.store.Mutate(context.Background(), projectID, func(p *projectstore.Project) error {
		shot := p.FindShot(shotID)
		if shot == nil {
			return nil
		}
		if !shot.Status.InFlight() {
			return nil
		}
		shot.Status = prior
		return nil
	})
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		s.logger.Warn("failed to revert shot status",
			logging.String(logging.FieldProjectID, projectID),
			logging.String(logging.FieldShotID, shotID),
			logging.Error(err))
	}
}
