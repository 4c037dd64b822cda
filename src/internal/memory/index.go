package memory

import "context"

// Hit is one raw result returned by a vector index: the stored payload plus
// an optional similarity score. Listing calls leave Score at zero; the
// result formatter decides what that means.
type Hit struct {
	ID      string
	Payload map[string]string
	Score   float64
}

// Index is the vector storage collaborator. Implementations must provide
// atomic per-record insert and delete; the facade holds no lock across
// calls. A limit <= 0 on List means no cap.
type Index interface {
	// Insert stores a record under id. The payload is the flat string map
	// described by the Field* constants.
	Insert(ctx context.Context, id string, vector []float32, payload map[string]string) error
	// Search returns up to limit hits matching pred, ranked by similarity
	// to vector (highest first), with Score set.
	Search(ctx context.Context, vector []float32, pred Predicate, limit int) ([]Hit, error)
	// List returns up to limit hits matching pred in descending creation
	// order, without scores.
	List(ctx context.Context, pred Predicate, limit int) ([]Hit, error)
	// Get returns the record with the given id, or nil if absent.
	Get(ctx context.Context, id string) (*Hit, error)
	// Delete removes a record and reports whether one was removed.
	Delete(ctx context.Context, id string) (bool, error)
}
