// Package memindex provides an in-process map-backed vector index. It keeps
// everything in RAM and exists for tests and ephemeral setups.
package memindex

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync"

	"mnemo/src/internal/memory"
)

type document struct {
	vector  []float32
	payload map[string]string
	seq     int
}

// Index implements memory.Index over an in-memory map.
type Index struct {
	mu   sync.RWMutex
	docs map[string]document
	seq  int
}

// New returns an empty index.
func New() *Index {
	return &Index{docs: make(map[string]document)}
}

// Insert implements memory.Index.
func (ix *Index) Insert(_ context.Context, id string, vector []float32, payload map[string]string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	stored := make(map[string]string, len(payload))
	for k, v := range payload {
		stored[k] = v
	}
	ix.seq++
	ix.docs[id] = document{vector: vector, payload: stored, seq: ix.seq}
	return nil
}

// Search implements memory.Index: linear-scan cosine over matching records.
func (ix *Index) Search(_ context.Context, vector []float32, pred memory.Predicate, limit int) ([]memory.Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var hits []memory.Hit
	for id, doc := range ix.docs {
		if !memory.Matches(pred, doc.payload) {
			continue
		}
		hits = append(hits, memory.Hit{
			ID:      id,
			Payload: clonePayload(doc.payload),
			Score:   cosineSimilarity(vector, doc.vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// List implements memory.Index: matching records in descending creation
// order, no scores.
func (ix *Index) List(_ context.Context, pred memory.Predicate, limit int) ([]memory.Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	type entry struct {
		hit  memory.Hit
		unix int64
		seq  int
	}
	var entries []entry
	for id, doc := range ix.docs {
		if !memory.Matches(pred, doc.payload) {
			continue
		}
		unix, _ := strconv.ParseInt(doc.payload[memory.FieldCreatedAtUnix], 10, 64)
		entries = append(entries, entry{
			hit:  memory.Hit{ID: id, Payload: clonePayload(doc.payload)},
			unix: unix,
			seq:  doc.seq,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].unix != entries[j].unix {
			return entries[i].unix > entries[j].unix
		}
		return entries[i].seq > entries[j].seq
	})

	hits := make([]memory.Hit, 0, len(entries))
	for _, e := range entries {
		hits = append(hits, e.hit)
		if limit > 0 && len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// Get implements memory.Index.
func (ix *Index) Get(_ context.Context, id string) (*memory.Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	doc, ok := ix.docs[id]
	if !ok {
		return nil, nil
	}
	return &memory.Hit{ID: id, Payload: clonePayload(doc.payload)}, nil
}

// Delete implements memory.Index.
func (ix *Index) Delete(_ context.Context, id string) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.docs[id]; !ok {
		return false, nil
	}
	delete(ix.docs, id)
	return true, nil
}

func clonePayload(payload map[string]string) map[string]string {
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
