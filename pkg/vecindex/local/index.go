// Package local implements vecindex.Index on an embedded SQLite database.
//
// Vectors are stored as JSON and ranked with in-process cosine similarity.
// This backend exists for local runs and tests; cluster deployments use the
// opensearch client.
package local

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/aws-samples/genai-data-governance-assistant/pkg/vecindex"
)

// Index stores passages in a single SQLite table.
type Index struct {
	db *sql.DB
}

const createSQL = `
CREATE TABLE IF NOT EXISTS passages (
	doc_id    TEXT PRIMARY KEY,
	passage   TEXT NOT NULL,
	embedding TEXT NOT NULL
)`

// Open opens (and initializes if needed) a local index at the given DSN.
// Use ":memory:" for an ephemeral index.
func Open(ctx context.Context, dsn string) (*Index, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create passages table: %w", err)
	}
	return &Index{db: db}, nil
}

func (x *Index) Close() error { return x.db.Close() }

// Index upserts one passage. Re-indexing an id overwrites the stored row.
func (x *Index) Index(ctx context.Context, p vecindex.Passage) error {
	if strings.TrimSpace(p.ID) == "" {
		return &vecindex.IndexError{Op: "index", Err: fmt.Errorf("passage id is required")}
	}
	vec, err := json.Marshal(p.Vector)
	if err != nil {
		return &vecindex.IndexError{Op: "index", Err: err}
	}
	_, err = x.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO passages (doc_id, passage, embedding) VALUES (?, ?, ?)`,
		p.ID, p.Text, string(vec),
	)
	if err != nil {
		return &vecindex.IndexError{Op: "index", Err: err}
	}
	return nil
}

// Query ranks all stored passages by cosine similarity against query.Vector
// and returns the top k, excluding query.ID. Ties keep insertion order.
func (x *Index) Query(ctx context.Context, query vecindex.Passage, k int) ([]vecindex.Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	rows, err := x.db.QueryContext(ctx,
		`SELECT doc_id, passage, embedding FROM passages ORDER BY rowid`)
	if err != nil {
		return nil, &vecindex.IndexError{Op: "query", Err: err}
	}
	defer func() {
		_ = rows.Close()
	}()

	var hits []vecindex.Hit
	for rows.Next() {
		var id, text, rawVec string
		if err := rows.Scan(&id, &text, &rawVec); err != nil {
			return nil, &vecindex.IndexError{Op: "query", Err: err}
		}
		if id == query.ID {
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(rawVec), &vec); err != nil {
			return nil, &vecindex.IndexError{Op: "query", Err: fmt.Errorf("decode embedding for %q: %w", id, err)}
		}
		hits = append(hits, vecindex.Hit{
			Passage: vecindex.Passage{ID: id, Text: text, Vector: vec},
			Score:   vecindex.Cosine(query.Vector, vec),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &vecindex.IndexError{Op: "query", Err: err}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}
