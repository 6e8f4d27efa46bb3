package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"montage/internal/api"
	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/projectstore"
	"montage/internal/services"
	"montage/internal/tasks"
)

// patchBodyLimit bounds PATCH and POST request bodies.
const patchBodyLimit = 1 << 20

type apiServer struct {
	bind       string
	daemon     *Daemon
	projectSvc *api.ProjectService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon) *apiServer {
	srv := &apiServer{
		bind:       strings.TrimSpace(cfg.Paths.APIBind),
		daemon:     d,
		projectSvc: api.NewProjectService(d.core.Store),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("GET /api/projects", srv.handleProjects)
	mux.HandleFunc("GET /api/projects/{id}", srv.handleProject)
	mux.HandleFunc("PATCH /api/projects/{id}/shots/{shotId}", srv.handleShotPatch)
	mux.HandleFunc("POST /api/projects/{id}/shots/{shotId}/generate", srv.handleGenerate)
	mux.HandleFunc("POST /api/projects/{id}/shots/{shotId}/cancel", srv.handleCancel)
	mux.HandleFunc("POST /api/projects/{id}/render", srv.handleRenderStart)
	mux.HandleFunc("GET /api/projects/{id}/render/{jobId}", srv.handleRenderGet)
	mux.HandleFunc("DELETE /api/projects/{id}/render/{jobId}", srv.handleRenderDelete)
	mux.HandleFunc("POST /api/recover", srv.handleRecover)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// handler exposes the mux for in-process tests.
func (s *apiServer) handler() http.Handler {
	return s.server.Handler
}

// requestContext annotates the request context with the route identifiers and
// a correlation id so downstream logs can be tied back to the original call.
// The annotation helpers ignore empty values, so routes without a shot or job
// segment pick up only what they carry.
func requestContext(r *http.Request) context.Context {
	ctx := services.WithRequestID(r.Context(), uuid.NewString()[:8])
	ctx = services.WithProjectID(ctx, r.PathValue("id"))
	ctx = services.WithShotID(ctx, r.PathValue("shotId"))
	ctx = services.WithJobID(ctx, r.PathValue("jobId"))
	return ctx
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		LibraryDir:   status.LibraryDir,
		LockFilePath: status.LockFilePath,
		Projects:     status.Projects,
		LiveTasks:    status.LiveTasks,
	})
}

func (s *apiServer) handleProjects(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	summaries, err := s.projectSvc.List(ctx)
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ProjectListResponse{Projects: summaries})
}

func (s *apiServer) handleProject(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	detail, err := s.projectSvc.Describe(ctx, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *apiServer) handleShotPatch(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	projectID := r.PathValue("id")
	shotID := r.PathValue("shotId")

	body, err := io.ReadAll(io.LimitReader(r.Body, patchBodyLimit))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read request body")
		return
	}
	patch, err := projectstore.DecodeShotPatch(body)
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}

	project, err := s.daemon.core.Store.Mutate(ctx, projectID, func(p *projectstore.Project) error {
		return projectstore.ApplyShotPatch(p, shotID, patch)
	})
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromShot(*project.FindShot(shotID)))
}

type generateRequest struct {
	Kind            string            `json:"kind"`
	Prompt          string            `json:"prompt"`
	ReferenceImages []string          `json:"referenceImages"`
	DurationSeconds float64           `json:"durationSeconds"`
	Options         map[string]string `json:"options"`
}

func (s *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.daemon.core.Generator == nil {
		s.writeError(w, http.StatusServiceUnavailable, "no generation provider configured")
		return
	}

	var req generateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, patchBodyLimit)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	kind := tasks.Kind(req.Kind)
	if !kind.Valid() {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown kind %q", req.Kind))
		return
	}

	spec := services.GenerationSpec{
		Prompt:          req.Prompt,
		ReferenceImages: req.ReferenceImages,
		DurationSeconds: req.DurationSeconds,
		Options:         req.Options,
	}
	// Generation outlives the HTTP request; the task token is the only
	// cancellation surface.
	ctx := requestContext(r)
	name, err := s.daemon.core.Generator.Run(context.WithoutCancel(ctx), r.PathValue("id"), r.PathValue("shotId"), kind, spec)
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"asset": name})
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	cancelled := s.daemon.core.Registry.CancelShot(r.PathValue("id"), r.PathValue("shotId"))
	s.writeJSON(w, http.StatusOK, api.CancelResponse{Cancelled: cancelled})
}

type renderRequest struct {
	Quality string         `json:"quality"`
	ShotIDs []string       `json:"shotIds"`
	Payload map[string]any `json:"payload"`
}

func (s *apiServer) handleRenderStart(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, patchBodyLimit)).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	ctx := requestContext(r)
	plan := services.RenderPlan{ShotIDs: req.ShotIDs, Payload: req.Payload}
	jobID, err := s.daemon.core.Queue.Start(ctx, r.PathValue("id"), plan, projectstore.RenderQuality(req.Quality))
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.RenderStartResponse{JobID: jobID})
}

func (s *apiServer) handleRenderGet(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	job, err := s.daemon.core.Queue.Get(ctx, r.PathValue("id"), r.PathValue("jobId"))
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "render job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, api.RenderJobResponse{Job: api.FromRenderJob(*job)})
}

func (s *apiServer) handleRenderDelete(w http.ResponseWriter, r *http.Request) {
	ctx := requestContext(r)
	if err := s.daemon.core.Queue.Delete(ctx, r.PathValue("id"), r.PathValue("jobId")); err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *apiServer) handleRecover(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, value := range r.URL.Query()["project"] {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	ctx := requestContext(r)
	report, err := s.daemon.core.Cache.RecoverAll(ctx, ids...)
	if err != nil {
		s.writeServiceError(ctx, w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromRecoveryReport(report))
}

// writeServiceError maps the service error taxonomy onto HTTP status codes.
// Unclassified errors are the daemon's fault, so those also get logged with
// the request's correlation fields.
func (s *apiServer) writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		s.writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrCancelled):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		logging.WithContext(ctx, s.log()).Error("api request failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.daemon != nil && s.daemon.logger != nil {
		return s.daemon.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
