// Package vectorstore persists chunk vectors with their metadata and answers
// nearest-neighbor queries, optionally restricted to a set of source
// documents. All backends guarantee that a document's entries are replaced
// atomically: no reader ever observes a mix of two ingestion generations.
package vectorstore

import (
	"context"
	"math"
)

// Entry is one indexed chunk: its vector plus enough metadata to attribute
// the chunk back to its source document.
type Entry struct {
	ChunkID    string
	DocumentID string
	Ordinal    int
	Content    string
	Embedding  []float32
}

// Result is a query hit ranked by cosine similarity.
type Result struct {
	Entry
	Similarity float32
}

// Store is the vector index capability. Implementations: in-memory (tests and
// single-process use), chromem (embedded persistent), postgres (shared
// persistent).
type Store interface {
	// Upsert atomically replaces all entries for documentID with the given
	// ordered entries. Concurrent upserts for the same document serialize.
	Upsert(ctx context.Context, documentID string, entries []Entry) error

	// Query returns the k most similar entries to vector, restricted to
	// documentIDs when the filter is non-empty. Ties break deterministically
	// by insertion then ordinal order. Fewer than k hits is not an error.
	Query(ctx context.Context, vector []float32, k int, documentIDs []string) ([]Result, error)

	// Delete removes all entries for the document. Idempotent.
	Delete(ctx context.Context, documentID string) error
}

// CosineSimilarity computes the cosine of the angle between a and b.
// Zero-length or mismatched vectors score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
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
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
