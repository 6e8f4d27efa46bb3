// Package logging builds the slog stack shared by the daemon and CLI.
//
// It provides console and JSON handlers, component-scoped loggers with
// standardized field keys, a no-op logger for tests, and a ProgressSampler
// that keeps repetitive render-progress output down to bucket boundaries.
package logging
