// Package tasks tracks in-flight generation work so it can be cancelled
// cooperatively.
//
// The registry holds at most one live token per (project, shot, operation)
// key. Beginning a new task supersedes any prior token under the same key,
// cancelling it; callers poll their token at checkpoints and fail fast with a
// Cancelled outcome when it has been revoked. Registries are plain values
// injected into the components that need them, so tests construct isolated
// instances.
package tasks

import (
	"context"
	"log/slog"
	"sync"

	"montage/internal/logging"
	"montage/internal/services"
)

// Kind identifies the operation a generation task performs.
type Kind string

const (
	KindImage   Kind = "image"
	KindEnhance Kind = "enhance"
	KindVideo   Kind = "video"
	KindVoice   Kind = "voice"
)

// Kinds lists every known operation.
var Kinds = []Kind{KindImage, KindEnhance, KindVideo, KindVoice}

// Valid reports whether the kind is a known operation.
func (k Kind) Valid() bool {
	switch k {
	case KindImage, KindEnhance, KindVideo, KindVoice:
		return true
	}
	return false
}

type taskKey struct {
	projectID string
	shotID    string
	kind      Kind
}

// Token is the cooperative cancellation handle a generation task carries.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Context returns the token's context, derived from the context passed to
// Begin. Provider calls should run under it so transports abort early.
func (t *Token) Context() context.Context {
	return t.ctx
}

// Err returns nil while the token is live and the context error once it has
// been revoked.
func (t *Token) Err() error {
	return t.ctx.Err()
}

// Checkpoint returns services.ErrCancelled once the token has been revoked,
// and nil otherwise. Callers test it immediately before a remote call,
// immediately after the response, and before any chained remote call.
func (t *Token) Checkpoint() error {
	select {
	case <-t.ctx.Done():
		return services.Wrap(services.ErrCancelled, "tasks", "checkpoint", "", t.ctx.Err())
	default:
		return nil
	}
}

// Registry tracks live generation tokens keyed by (project, shot, kind).
type Registry struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries map[taskKey]*Token
}

// NewRegistry constructs an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:  logging.NewComponentLogger(logger, "tasks"),
		entries: make(map[taskKey]*Token),
	}
}

// Begin registers a fresh token under the composite key, cancelling and
// replacing any prior token: starting a new generation for a shot implicitly
// supersedes an old one.
func (r *Registry) Begin(ctx context.Context, projectID, shotID string, kind Kind) *Token {
	key := taskKey{projectID: projectID, shotID: shotID, kind: kind}
	taskCtx, cancel := context.WithCancel(ctx)
	token := &Token{ctx: taskCtx, cancel: cancel}

	r.mu.Lock()
	prior := r.entries[key]
	r.entries[key] = token
	r.mu.Unlock()

	if prior != nil {
		prior.cancel()
		r.logger.Debug("superseded generation task",
			logging.String(logging.FieldProjectID, projectID),
			logging.String(logging.FieldShotID, shotID),
			logging.String(logging.FieldOperation, string(kind)))
	}
	return token
}

// Cancel revokes the live token for the key, if any.
func (r *Registry) Cancel(projectID, shotID string, kind Kind) bool {
	key := taskKey{projectID: projectID, shotID: shotID, kind: kind}

	r.mu.Lock()
	token := r.entries[key]
	r.mu.Unlock()

	if token == nil {
		return false
	}
	token.cancel()
	return true
}

// CancelAll revokes every live token belonging to the project and returns
// how many were cancelled.
func (r *Registry) CancelAll(projectID string) int {
	return r.cancelMatching(func(key taskKey) bool {
		return key.projectID == projectID
	})
}

// CancelShot revokes every live token for one shot, across operation kinds.
func (r *Registry) CancelShot(projectID, shotID string) int {
	return r.cancelMatching(func(key taskKey) bool {
		return key.projectID == projectID && key.shotID == shotID
	})
}

func (r *Registry) cancelMatching(match func(taskKey) bool) int {
	r.mu.Lock()
	var tokens []*Token
	for key, token := range r.entries {
		if match(key) {
			tokens = append(tokens, token)
		}
	}
	r.mu.Unlock()

	for _, token := range tokens {
		token.cancel()
	}
	return len(tokens)
}

// End removes the entry once the task concludes, successfully or not, so a
// later Begin for the same key is never blocked by a stale entry. The entry
// is only removed if it still belongs to the supplied token; a superseding
// task's registration is left intact.
func (r *Registry) End(projectID, shotID string, kind Kind, token *Token) {
	key := taskKey{projectID: projectID, shotID: shotID, kind: kind}

	r.mu.Lock()
	if current, ok := r.entries[key]; ok && (token == nil || current == token) {
		delete(r.entries, key)
	}
	r.mu.Unlock()

	if token != nil {
		token.cancel()
	}
}

// Owns reports whether token is still the registered entry for the key. A
// superseded task uses this to tell replacement apart from an explicit
// cancel: after replacement the key belongs to the new task.
func (r *Registry) Owns(projectID, shotID string, kind Kind, token *Token) bool {
	key := taskKey{projectID: projectID, shotID: shotID, kind: kind}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[key] == token
}

// Live returns the number of registered tokens, for diagnostics.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
