package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound marks lookups for projects, shots, or render jobs that no
	// longer exist. Mutations never recreate a missing document.
	ErrNotFound = errors.New("not found")
	// ErrForbidden marks path construction that would escape the owning
	// project's root. It is returned before any filesystem operation runs.
	ErrForbidden = errors.New("forbidden path")
	// ErrValidation marks malformed caller input, including patches that name
	// server-managed fields.
	ErrValidation = errors.New("validation error")
	// ErrCancelled marks cooperative cancellation observed at a task
	// checkpoint.
	ErrCancelled = errors.New("cancelled")
	// ErrConflict marks operations rejected because of the target's current
	// state, e.g. deleting a render job that is actively rendering.
	ErrConflict = errors.New("conflict")
	// ErrTransient marks failures a caller may retry with backoff.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
