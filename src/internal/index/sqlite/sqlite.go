// Package sqlite adapts a SQLite database to the memory.Index contract.
// Vectors and payloads are stored as JSON columns; similarity is computed
// in-process with a linear scan, which is fine for the per-tenant record
// counts this store is built for.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"mnemo/src/internal/memory"
)

// Index implements memory.Index over a single SQLite table.
type Index struct {
	db *sql.DB
}

// New opens (or creates) the database at path and ensures the schema.
func New(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		vector TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at_unix INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at_unix DESC);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Insert implements memory.Index.
func (ix *Index) Insert(ctx context.Context, id string, vector []float32, payload map[string]string) error {
	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	createdAt, _ := strconv.ParseInt(payload[memory.FieldCreatedAtUnix], 10, 64)

	_, err = ix.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO records (id, vector, payload, created_at_unix)
		VALUES (?, ?, ?, ?)
	`, id, string(vectorJSON), string(payloadJSON), createdAt)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Search implements memory.Index.
func (ix *Index) Search(ctx context.Context, vector []float32, pred memory.Predicate, limit int) ([]memory.Hit, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT id, vector, payload FROM records`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var hits []memory.Hit
	for rows.Next() {
		var id, vectorJSON, payloadJSON string
		if err := rows.Scan(&id, &vectorJSON, &payloadJSON); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		payload, stored, err := decodeRecord(vectorJSON, payloadJSON)
		if err != nil {
			return nil, err
		}
		if !memory.Matches(pred, payload) {
			continue
		}
		hits = append(hits, memory.Hit{
			ID:      id,
			Payload: payload,
			Score:   cosineSimilarity(vector, stored),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// List implements memory.Index.
func (ix *Index) List(ctx context.Context, pred memory.Predicate, limit int) ([]memory.Hit, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT id, payload FROM records ORDER BY created_at_unix DESC`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var hits []memory.Hit
	for rows.Next() {
		var id, payloadJSON string
		if err := rows.Scan(&id, &payloadJSON); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var payload map[string]string
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		if !memory.Matches(pred, payload) {
			continue
		}
		hits = append(hits, memory.Hit{ID: id, Payload: payload})
		if limit > 0 && len(hits) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return hits, nil
}

// Get implements memory.Index.
func (ix *Index) Get(ctx context.Context, id string) (*memory.Hit, error) {
	var payloadJSON string
	err := ix.db.QueryRowContext(ctx, `SELECT payload FROM records WHERE id = ?`, id).Scan(&payloadJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &memory.Hit{ID: id, Payload: payload}, nil
}

// Delete implements memory.Index.
func (ix *Index) Delete(ctx context.Context, id string) (bool, error) {
	result, err := ix.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func decodeRecord(vectorJSON, payloadJSON string) (map[string]string, []float32, error) {
	var vector []float32
	if err := json.Unmarshal([]byte(vectorJSON), &vector); err != nil {
		return nil, nil, fmt.Errorf("unmarshal vector: %w", err)
	}
	var payload map[string]string
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return nil, nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return payload, vector, nil
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
