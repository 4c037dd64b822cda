package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// StaticEmbedder embeds text by mean-pooling per-token vectors from a fixed
// table and L2-normalizing the result. Tokens missing from the table fall
// back to a deterministic pseudo-random vector derived from the token hash,
// so any text embeds and identical text always embeds identically. It needs
// no network and is the default provider for local use and tests.
type StaticEmbedder struct {
	mu      sync.RWMutex
	vectors map[string][]float32
	dim     int
}

// NewStaticEmbedder builds an embedder over an in-memory token table.
// vectors may be nil; every token then uses the hash fallback.
func NewStaticEmbedder(dim int, vectors map[string][]float32) *StaticEmbedder {
	if vectors == nil {
		vectors = make(map[string][]float32)
	}
	return &StaticEmbedder{vectors: vectors, dim: dim}
}

// LoadStaticEmbedder reads a msgpack weight file of the shape
// {dim: int, embeddings: map[token][]float64}.
func LoadStaticEmbedder(path string) (*StaticEmbedder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights: %w", err)
	}

	var loaded struct {
		Dim        int                  `msgpack:"dim"`
		Embeddings map[string][]float64 `msgpack:"embeddings"`
	}
	if err := msgpack.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("msgpack unmarshal: %w", err)
	}
	if loaded.Dim <= 0 {
		return nil, fmt.Errorf("weights file %s declares dimension %d", path, loaded.Dim)
	}

	// Keep float32 in RAM.
	vectors := make(map[string][]float32, len(loaded.Embeddings))
	for token, v := range loaded.Embeddings {
		v32 := make([]float32, len(v))
		for i, f := range v {
			v32[i] = float32(f)
		}
		vectors[token] = v32
	}

	slog.Info("loaded static embedder", "path", path, "tokens", len(vectors), "dim", loaded.Dim)
	return &StaticEmbedder{vectors: vectors, dim: loaded.Dim}, nil
}

// Embed implements Embedder. It never fails; empty text yields the zero
// vector.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sum := make([]float32, e.dim)
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		return sum, nil
	}

	for _, token := range tokens {
		vec, ok := e.vectors[token]
		if !ok {
			vec = hashVector(token, e.dim)
		}
		for i := range sum {
			sum[i] += vec[i]
		}
	}
	count := float32(len(tokens))
	for i := range sum {
		sum[i] /= count
	}

	// L2 normalization; cosine-similarity indexes expect unit vectors.
	var norm float32
	for _, v := range sum {
		norm += v * v
	}
	if norm > 0 {
		norm = float32(math.Sqrt(float64(norm)))
		for i := range sum {
			sum[i] /= norm
		}
	}
	return sum, nil
}

// Dimensions implements Embedder.
func (e *StaticEmbedder) Dimensions() int {
	return e.dim
}

// hashVector derives a stable pseudo-random unit-range vector from a token.
func hashVector(token string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	state := h.Sum64()

	vec := make([]float32, dim)
	for i := range vec {
		// xorshift64 keeps the sequence deterministic per token.
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		vec[i] = float32(int64(state%2000)-1000) / 1000
	}
	return vec
}
