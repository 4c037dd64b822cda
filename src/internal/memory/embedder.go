package memory

import "context"

// Embedder converts text to a vector suitable for similarity ranking.
// Identical text must yield identical vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}
