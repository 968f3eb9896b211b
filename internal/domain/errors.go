package domain

import "errors"

// Sentinel errors - used with errors.Is()
//
// Services wrap these with context via fmt.Errorf("...: %w", ...); the handler
// layer is the single place that translates them into HTTP responses.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already exists")
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable indicates a required external dependency (Ollama, the
	// vector store) could not be reached before streaming started.
	ErrUnavailable = errors.New("dependency unavailable")
)
