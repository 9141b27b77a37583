package vectorstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a brute-force cosine-similarity store guarded by a single
// RWMutex. Upsert holds the write lock for the whole replacement, so readers
// see either the old generation or the new one, never a mix.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
	order   []string // document insertion order, for deterministic ties
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]Entry)}
}

func (s *MemoryStore) Upsert(ctx context.Context, documentID string, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.entries[documentID]; !known {
		s.order = append(s.order, documentID)
	}
	copied := make([]Entry, len(entries))
	copy(copied, entries)
	s.entries[documentID] = copied
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, vector []float32, k int, documentIDs []string) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 {
		return []Result{}, nil
	}

	var allowed map[string]bool
	if len(documentIDs) > 0 {
		allowed = make(map[string]bool, len(documentIDs))
		for _, id := range documentIDs {
			allowed[id] = true
		}
	}

	var results []Result
	for _, docID := range s.order {
		if allowed != nil && !allowed[docID] {
			continue
		}
		for _, entry := range s.entries[docID] {
			results = append(results, Result{
				Entry:      entry,
				Similarity: CosineSimilarity(vector, entry.Embedding),
			})
		}
	}

	// Stable sort keeps insertion/ordinal order for equal similarities.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func (s *MemoryStore) Delete(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, known := s.entries[documentID]; !known {
		return nil
	}
	delete(s.entries, documentID)
	for i, id := range s.order {
		if id == documentID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
