package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(docID string, ordinal int, content string, vec ...float32) Entry {
	return Entry{
		ChunkID:    fmt.Sprintf("%s-%d", docID, ordinal),
		DocumentID: docID,
		Ordinal:    ordinal,
		Content:    content,
		Embedding:  vec,
	}
}

func TestMemoryStoreOrderPreservation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	// i-th vector must stay associated with the i-th text.
	entries := []Entry{
		entry("d1", 0, "chunk zero", 1, 0, 0),
		entry("d1", 1, "chunk one", 0, 1, 0),
		entry("d1", 2, "chunk two", 0, 0, 1),
	}
	require.NoError(t, s.Upsert(ctx, "d1", entries))

	for i, e := range entries {
		results, err := s.Query(ctx, e.Embedding, 1, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, entries[i].Content, results[0].Content)
		assert.InDelta(t, 1.0, float64(results[0].Similarity), 1e-6)
	}
}

func TestMemoryStoreTwoChunkScenario(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, "d1", []Entry{
		entry("d1", 0, "first", 1, 0),
		entry("d1", 1, "second", 0, 1),
	}))

	// Query vector equal to chunk 0's vector: chunk 0 first with sim 1.0.
	results, err := s.Query(ctx, []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Content)
	assert.InDelta(t, 1.0, float64(results[0].Similarity), 1e-6)
	assert.Equal(t, "second", results[1].Content)
}

func TestMemoryStoreFilterCorrectness(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, "d1", []Entry{entry("d1", 0, "from d1", 1, 0)}))
	require.NoError(t, s.Upsert(ctx, "d2", []Entry{entry("d2", 0, "from d2", 1, 0)}))

	results, err := s.Query(ctx, []float32{1, 0}, 10, []string{"d1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "d1", results[0].DocumentID)
}

func TestMemoryStoreEmptyFilterIsUnrestricted(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, "d1", []Entry{entry("d1", 0, "a", 1, 0)}))
	require.NoError(t, s.Upsert(ctx, "d2", []Entry{entry("d2", 0, "b", 0.9, 0.1)}))

	results, err := s.Query(ctx, []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMemoryStoreUnderSupply(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, "d1", []Entry{entry("d1", 0, "only one", 1, 0)}))

	results, err := s.Query(ctx, []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestMemoryStoreReplacementIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, "d1", []Entry{
		entry("d1", 0, "gen1-a", 1, 0),
		entry("d1", 1, "gen1-b", 1, 0),
	}))
	require.NoError(t, s.Upsert(ctx, "d1", []Entry{
		entry("d1", 0, "gen2-a", 1, 0),
		entry("d1", 1, "gen2-b", 1, 0),
	}))

	results, err := s.Query(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, result := range results {
		assert.Contains(t, result.Content, "gen2")
	}
}

func TestMemoryStoreConcurrentReplacementNeverMixesGenerations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	gen := func(n int) []Entry {
		return []Entry{
			entry("d1", 0, fmt.Sprintf("gen%d-a", n), 1, 0),
			entry("d1", 1, fmt.Sprintf("gen%d-b", n), 1, 0),
		}
	}
	require.NoError(t, s.Upsert(ctx, "d1", gen(0)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for n := 1; n <= 50; n++ {
			_ = s.Upsert(ctx, "d1", gen(n))
		}
	}()

	for i := 0; i < 200; i++ {
		results, err := s.Query(ctx, []float32{1, 0}, 10, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)
		// Both entries must come from the same ingestion generation.
		assert.Equal(t, results[0].Content[:4], results[1].Content[:4])
	}
	<-done
}

func TestMemoryStoreDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Upsert(ctx, "d1", []Entry{entry("d1", 0, "a", 1, 0)}))

	require.NoError(t, s.Delete(ctx, "d1"))
	results, err := s.Query(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Second delete is a no-op with identical observable state.
	require.NoError(t, s.Delete(ctx, "d1"))
	results, err = s.Query(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, s.Delete(ctx, "never-existed"))
}

func TestMemoryStoreDeterministicTies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	// Identical vectors: ranking falls back to insertion then ordinal order.
	require.NoError(t, s.Upsert(ctx, "d1", []Entry{
		entry("d1", 0, "d1-0", 1, 0),
		entry("d1", 1, "d1-1", 1, 0),
	}))
	require.NoError(t, s.Upsert(ctx, "d2", []Entry{entry("d2", 0, "d2-0", 1, 0)}))

	results, err := s.Query(ctx, []float32{1, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "d1-0", results[0].Content)
	assert.Equal(t, "d1-1", results[1].Content)
	assert.Equal(t, "d2-0", results[2].Content)
}

func TestMemoryStoreConcurrentDifferentDocuments(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			docID := fmt.Sprintf("d%d", i)
			for n := 0; n < 20; n++ {
				_ = s.Upsert(ctx, docID, []Entry{entry(docID, 0, docID, 1, 0)})
			}
		}(i)
	}
	wg.Wait()

	results, err := s.Query(ctx, []float32{1, 0}, 100, nil)
	require.NoError(t, err)
	assert.Len(t, results, 8)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, float64(CosineSimilarity([]float32{1, 2}, []float32{2, 4})), 1e-6)
	assert.InDelta(t, 0.0, float64(CosineSimilarity([]float32{1, 0}, []float32{0, 1})), 1e-6)
	assert.InDelta(t, -1.0, float64(CosineSimilarity([]float32{1, 0}, []float32{-1, 0})), 1e-6)
	assert.Zero(t, CosineSimilarity(nil, []float32{1}))
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
}
