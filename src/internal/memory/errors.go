package memory

import "errors"

// Error taxonomy. Validation errors (ErrEmptyContent, ErrInvalidFilter) are
// detected before any external call and never retried. Collaborator failures
// (ErrEmbeddingUnavailable, ErrIndexUnavailable) are surfaced as-is; retry
// policy belongs to the collaborator clients.
var (
	ErrEmptyContent         = errors.New("memory content is empty")
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	ErrIndexUnavailable     = errors.New("vector index unavailable")
	ErrInvalidFilter        = errors.New("invalid filter")
	ErrNotFound             = errors.New("memory not found")
	ErrAccessDenied         = errors.New("access denied")
)
