package vectorstore

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"docchat/internal/models"
)

// ChromemStore persists entries in an embedded chromem-go collection.
// chromem cannot stage-then-swap a document's entries, so upserts for the
// same document serialize on a per-document mutex.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewChromemStore opens (or creates) a persistent collection at path. An
// empty path selects an in-memory database.
func NewChromemStore(path, collectionName string) (*ChromemStore, error) {
	var db *chromem.DB
	var err error
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %v: %w", err, models.ErrIndexUnavailable)
		}
	}

	// The embedding func is never invoked: entries always carry vectors.
	c, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get collection: %v: %w", err, models.ErrIndexUnavailable)
	}

	return &ChromemStore{
		db:         db,
		collection: c,
		locks:      make(map[string]*sync.Mutex),
	}, nil
}

func (s *ChromemStore) docLock(documentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[documentID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[documentID] = l
	}
	return l
}

func (s *ChromemStore) Upsert(ctx context.Context, documentID string, entries []Entry) error {
	l := s.docLock(documentID)
	l.Lock()
	defer l.Unlock()

	if err := s.collection.Delete(ctx, map[string]string{"document_id": documentID}, nil); err != nil {
		return fmt.Errorf("clear old entries: %v: %w", err, models.ErrIndexUnavailable)
	}
	if len(entries) == 0 {
		return nil
	}

	docs := make([]chromem.Document, len(entries))
	for i, entry := range entries {
		docs[i] = chromem.Document{
			ID:      entry.ChunkID,
			Content: entry.Content,
			Metadata: map[string]string{
				"document_id": entry.DocumentID,
				"ordinal":     strconv.Itoa(entry.Ordinal),
			},
			Embedding: entry.Embedding,
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add entries: %v: %w", err, models.ErrIndexUnavailable)
	}
	return nil
}

// Query ranks the whole collection and filters in process. chromem's own
// metadata filter supports a single value only; ranking here keeps the
// multi-document filter and the deterministic tie order in one place.
func (s *ChromemStore) Query(ctx context.Context, vector []float32, k int, documentIDs []string) ([]Result, error) {
	if k <= 0 {
		return []Result{}, nil
	}
	total := s.collection.Count()
	if total == 0 {
		return []Result{}, nil
	}

	hits, err := s.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       total,
	})
	if err != nil {
		return nil, fmt.Errorf("query: %v: %w", err, models.ErrIndexUnavailable)
	}

	var allowed map[string]bool
	if len(documentIDs) > 0 {
		allowed = make(map[string]bool, len(documentIDs))
		for _, id := range documentIDs {
			allowed[id] = true
		}
	}

	var results []Result
	for _, hit := range hits {
		docID := hit.Metadata["document_id"]
		if allowed != nil && !allowed[docID] {
			continue
		}
		ordinal, _ := strconv.Atoi(hit.Metadata["ordinal"])
		results = append(results, Result{
			Entry: Entry{
				ChunkID:    hit.ID,
				DocumentID: docID,
				Ordinal:    ordinal,
				Content:    hit.Content,
				Embedding:  hit.Embedding,
			},
			Similarity: hit.Similarity,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].DocumentID != results[j].DocumentID {
			return results[i].DocumentID < results[j].DocumentID
		}
		return results[i].Ordinal < results[j].Ordinal
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func (s *ChromemStore) Delete(ctx context.Context, documentID string) error {
	l := s.docLock(documentID)
	l.Lock()
	defer l.Unlock()

	if err := s.collection.Delete(ctx, map[string]string{"document_id": documentID}, nil); err != nil {
		return fmt.Errorf("delete entries: %v: %w", err, models.ErrIndexUnavailable)
	}
	return nil
}
