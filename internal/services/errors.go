package services

import "errors"

// Note service errors
var (
	ErrNoteNotFound = errors.New("note not found")
	ErrNoteConflict = errors.New("note was modified concurrently")
)

// Health errors
var (
	ErrNotReady = errors.New("service not ready")
)
