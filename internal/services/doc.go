// Package services implements the business logic behind the example HTTP
// API: an in-memory notes store and the health checks.
//
// Services know nothing about HTTP. They return plain sentinel errors
// (ErrNoteNotFound, ErrNoteConflict, ErrNotReady) wrapped with context via
// fmt.Errorf, and the transport layer decides which business error each one
// becomes.
//
// # Concurrency
//
// NoteService and HealthService are safe for concurrent use. Reads take a
// shared lock, so summary handlers may fan out Count and TagCounts in
// parallel.
package services
