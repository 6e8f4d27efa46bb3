// Package services defines the shared contracts the coordination core is
// built around.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper so every component
//     classifies failures the same way (not found, forbidden, validation,
//     conflict, cancelled, transient).
//   - Context helpers that stamp project, shot, and job identifiers for
//     logging and tracing.
//   - Collaborator interfaces for the pieces this core deliberately does not
//     implement: generation providers and the render engine.
package services
