// Package chromem adapts chromem-go, an embedded pure-Go vector database,
// to the memory.Index contract.
//
// chromem exposes similarity queries and deletes but no get-by-id and no
// unranked listing, so the adapter keeps a payload catalog (id -> payload)
// beside the database. The catalog is persisted as a msgpack sidecar and
// reloaded on startup, keeping Get/List available across restarts.
package chromem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"
	"github.com/vmihailenco/msgpack/v5"

	"mnemo/src/internal/memory"
	"mnemo/src/internal/system"
)

const catalogFile = "catalog.msgpack"

// Index implements memory.Index over a persistent chromem collection.
type Index struct {
	db  *chromemgo.DB
	col *chromemgo.Collection

	mu          sync.RWMutex
	catalog     map[string]map[string]string
	catalogPath string
}

// New opens (or creates) a persistent index under storageDir. Embeddings
// are always supplied by the caller, so no chromem embedding func is
// configured.
func New(storageDir, collection string) (*Index, error) {
	dbPath := filepath.Join(storageDir, "vector_db")
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("create vector db directory: %w", err)
	}

	db, err := chromemgo.NewPersistentDB(dbPath, false)
	if err != nil {
		return nil, fmt.Errorf("open persistent db: %w", err)
	}
	col, err := db.GetOrCreateCollection(collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}

	ix := &Index{
		db:          db,
		col:         col,
		catalog:     make(map[string]map[string]string),
		catalogPath: filepath.Join(dbPath, catalogFile),
	}
	if err := ix.loadCatalog(); err != nil {
		return nil, err
	}

	system.LogMemoryUsage("vector_index_init")
	return ix, nil
}

// Insert implements memory.Index.
func (ix *Index) Insert(ctx context.Context, id string, vector []float32, payload map[string]string) error {
	stored := clonePayload(payload)
	doc := chromemgo.Document{
		ID:        id,
		Content:   stored[memory.FieldData],
		Embedding: vector,
		Metadata:  stored,
	}
	if err := ix.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.catalog[id] = stored
	return ix.saveCatalogLocked()
}

// Search implements memory.Index. chromem has no predicate pushdown, so the
// whole collection is ranked and the predicate applied to the ranked
// candidates.
func (ix *Index) Search(ctx context.Context, vector []float32, pred memory.Predicate, limit int) ([]memory.Hit, error) {
	// The lock covers Count and QueryEmbedding together; a delete landing
	// between them would leave nResults above the document count, which
	// chromem rejects.
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	count := ix.col.Count()
	if count == 0 {
		return nil, nil
	}

	results, err := ix.col.QueryEmbedding(ctx, vector, count, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	var hits []memory.Hit
	for _, r := range results {
		payload, ok := ix.catalog[r.ID]
		if !ok {
			payload = r.Metadata
		}
		if !memory.Matches(pred, payload) {
			continue
		}
		hits = append(hits, memory.Hit{
			ID:      r.ID,
			Payload: clonePayload(payload),
			Score:   float64(r.Similarity),
		})
		if limit > 0 && len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// List implements memory.Index, serving from the catalog in descending
// creation order.
func (ix *Index) List(_ context.Context, pred memory.Predicate, limit int) ([]memory.Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var hits []memory.Hit
	for id, payload := range ix.catalog {
		if !memory.Matches(pred, payload) {
			continue
		}
		hits = append(hits, memory.Hit{ID: id, Payload: clonePayload(payload)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if u1, u2 := createdUnix(hits[i]), createdUnix(hits[j]); u1 != u2 {
			return u1 > u2
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Get implements memory.Index.
func (ix *Index) Get(_ context.Context, id string) (*memory.Hit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	payload, ok := ix.catalog[id]
	if !ok {
		return nil, nil
	}
	return &memory.Hit{ID: id, Payload: clonePayload(payload)}, nil
}

// Delete implements memory.Index.
func (ix *Index) Delete(ctx context.Context, id string) (bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.catalog[id]; !ok {
		return false, nil
	}
	if err := ix.col.Delete(ctx, nil, nil, id); err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	delete(ix.catalog, id)
	if err := ix.saveCatalogLocked(); err != nil {
		return false, err
	}
	return true, nil
}

func (ix *Index) loadCatalog() error {
	data, err := os.ReadFile(ix.catalogPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	if err := msgpack.Unmarshal(data, &ix.catalog); err != nil {
		return fmt.Errorf("unmarshal catalog: %w", err)
	}
	return nil
}

func (ix *Index) saveCatalogLocked() error {
	data, err := msgpack.Marshal(ix.catalog)
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := os.WriteFile(ix.catalogPath, data, 0644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}

func createdUnix(hit memory.Hit) int64 {
	unix, _ := strconv.ParseInt(hit.Payload[memory.FieldCreatedAtUnix], 10, 64)
	return unix
}

func clonePayload(payload map[string]string) map[string]string {
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	return out
}
