// Package ingest turns an uploaded document into index entries: extract,
// chunk, embed, then atomically replace the document's entries in the vector
// index. Chunk order is preserved end to end.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"docchat/internal/chunker"
	"docchat/internal/models"
	"docchat/internal/vectorstore"
)

// Embedder embeds a batch of texts in order. embedding.Gateway implements it.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentRegistry persists document metadata and the raw payload.
// registry.Registry implements it; tests use a stub.
type DocumentRegistry interface {
	SaveDocument(ctx context.Context, doc models.Document, raw []byte) error
	DeleteDocument(ctx context.Context, id string) error
}

// Extractor converts raw bytes plus MIME type into text.
type Extractor interface {
	Extract(data []byte, mimeType string) (string, error)
}

// Service drives the ingestion path. Ingestions for the same document id
// serialize on a per-document mutex; different documents run independently.
type Service struct {
	extractor    Extractor
	embedder     Embedder
	store        vectorstore.Store
	registry     DocumentRegistry
	chunkSize    int
	chunkOverlap int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(extractor Extractor, embedder Embedder, store vectorstore.Store, registry DocumentRegistry, chunkSize, chunkOverlap int) *Service {
	return &Service{
		extractor:    extractor,
		embedder:     embedder,
		store:        store,
		registry:     registry,
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		locks:        make(map[string]*sync.Mutex),
	}
}

func (s *Service) docLock(documentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[documentID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[documentID] = l
	}
	return l
}

// Ingest processes one document and returns the number of chunks indexed.
// A failure aborts this document only; other documents are unaffected.
func (s *Service) Ingest(ctx context.Context, req models.IngestRequest) (int, error) {
	l := s.docLock(req.DocumentID)
	l.Lock()
	defer l.Unlock()

	text, err := s.extractor.Extract(req.Raw, req.MimeType)
	if err != nil {
		return 0, fmt.Errorf("extract %s: %w", req.Filename, err)
	}

	meta := models.ChunkMeta{DocumentID: req.DocumentID, Filename: req.Filename}
	chunks, err := chunker.Split(text, meta, s.chunkSize, s.chunkOverlap)
	if err != nil {
		return 0, fmt.Errorf("split %s: %w", req.Filename, err)
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", req.Filename, err)
	}

	entries := make([]vectorstore.Entry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = vectorstore.Entry{
			ChunkID:    fmt.Sprintf("%s-%d", chunk.DocumentID, chunk.Index),
			DocumentID: chunk.DocumentID,
			Ordinal:    chunk.Index,
			Content:    chunk.Content,
			Embedding:  vectors[i],
		}
	}
	if err := s.store.Upsert(ctx, req.DocumentID, entries); err != nil {
		return 0, fmt.Errorf("index %s: %w", req.Filename, err)
	}

	if s.registry != nil {
		doc := models.Document{
			ID:         req.DocumentID,
			Filename:   req.Filename,
			MimeType:   req.MimeType,
			ByteSize:   int64(len(req.Raw)),
			UploadedAt: time.Now(),
		}
		if err := s.registry.SaveDocument(ctx, doc, req.Raw); err != nil {
			return 0, fmt.Errorf("register %s: %w", req.Filename, err)
		}
	}

	log.Info().Str("document", req.DocumentID).Int("chunks", len(entries)).Msg("document ingested")
	return len(entries), nil
}

// Remove deletes the document's registry row and index entries. Idempotent at
// the index layer.
func (s *Service) Remove(ctx context.Context, documentID string) error {
	l := s.docLock(documentID)
	l.Lock()
	defer l.Unlock()

	if err := s.store.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("deindex %s: %w", documentID, err)
	}
	if s.registry != nil {
		if err := s.registry.DeleteDocument(ctx, documentID); err != nil {
			return fmt.Errorf("deregister %s: %w", documentID, err)
		}
	}
	return nil
}
