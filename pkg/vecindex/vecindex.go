// Package vecindex defines the similarity-index surface used for duplicate
// retrieval: store embedded passages, query the nearest neighbours of a
// vector.
package vecindex

import (
	"context"
	"math"
)

// Passage is one indexed schema description: an opaque id, the description
// text, and its embedding vector.
type Passage struct {
	ID     string
	Text   string
	Vector []float32
}

// Hit is one retrieval result with its similarity score (higher is more
// similar).
type Hit struct {
	Passage Passage
	Score   float64
}

// Index stores passages and retrieves the most similar ones.
//
// Indexing has at-least-once semantics: re-indexing an id may overwrite or
// duplicate depending on the backing store. Query returns at most k hits in
// descending score order and never includes query.ID; an empty result is
// valid and means no candidates exist.
type Index interface {
	Index(ctx context.Context, p Passage) error
	Query(ctx context.Context, query Passage, k int) ([]Hit, error)
}

// IndexError reports a failed index or query call.
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string {
	if e == nil || e.Err == nil {
		return "index error"
	}
	if e.Op != "" {
		return "index " + e.Op + ": " + e.Err.Error()
	}
	return "index: " + e.Err.Error()
}

func (e *IndexError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Cosine returns the cosine similarity of two vectors, or 0 when dimensions
// mismatch or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
