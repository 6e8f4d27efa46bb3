// Package projectstore persists one JSON document per project and serializes
// every mutation against it.
//
// The document is the unit of atomicity: Mutate applies a caller function to
// the current persisted snapshot under a per-project lock and writes the
// result back through an atomic rename, so overlapping mutations (render
// progress updates interleaved with status changes) can never drop each
// other's writes. The store also owns path construction for all per-project
// media directories and refuses any path that resolves outside the owning
// project's root.
package projectstore
