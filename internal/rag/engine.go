// Package rag answers conversational questions grounded in the indexed
// documents: rewrite the question using session history, retrieve the most
// similar chunks, synthesize an answer from them, then record the turn.
package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"docchat/internal/convmemory"
	"docchat/internal/models"
	"docchat/internal/vectorstore"
)

// Chat is the chat-completion capability. llmservice.Client implements it.
type Chat interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// QueryEmbedder embeds a single query text. embedding.Gateway implements it.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Engine orchestrates one retrieval-QA request. It holds no per-request
// state; Conversation Memory is the only shared mutable collaborator.
type Engine struct {
	store    vectorstore.Store
	embedder QueryEmbedder
	chat     Chat
	history  convmemory.History
	topK     int
}

func NewEngine(store vectorstore.Store, embedder QueryEmbedder, chat Chat, history convmemory.History, topK int) *Engine {
	if topK <= 0 {
		topK = 4
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		chat:     chat,
		history:  history,
		topK:     topK,
	}
}

// Answer runs the five-step request state machine. The turn is appended to
// the session history only after synthesis succeeds, so a failed or
// abandoned request never leaves a partial turn behind.
func (e *Engine) Answer(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, models.ErrEmptyQuestion
	}

	turns, err := e.history.Turns(ctx, req.SessionKey)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	standalone, err := e.condense(ctx, req.Question, turns)
	if err != nil {
		return nil, err
	}

	vector, err := e.embedder.EmbedQuery(ctx, standalone)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	results, err := e.store.Query(ctx, vector, e.pickK(req.DocumentIDs), req.DocumentIDs)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	answer, err := e.synthesize(ctx, standalone, results)
	if err != nil {
		return nil, err
	}

	turn := models.Turn{Question: req.Question, Answer: answer, At: time.Now()}
	if err := e.history.Append(ctx, req.SessionKey, turn); err != nil {
		return nil, fmt.Errorf("record turn: %w", err)
	}

	sources := make([]models.Source, len(results))
	for i, result := range results {
		sources[i] = models.Source{DocumentID: result.DocumentID, ChunkText: result.Content}
	}
	return &models.QueryResponse{Answer: answer, Sources: sources}, nil
}

// pickK narrows retrieval when documents are selected: one chunk per selected
// document on average, the configured top-k otherwise.
func (e *Engine) pickK(documentIDs []string) int {
	if len(documentIDs) > 0 {
		return len(documentIDs)
	}
	return e.topK
}

// condense rewrites a follow-up question into a standalone one. With no
// prior turns the raw question already stands alone.
func (e *Engine) condense(ctx context.Context, question string, turns []models.Turn) (string, error) {
	if len(turns) == 0 {
		return question, nil
	}

	prompt := fmt.Sprintf(models.CondensePromptTemplate, FormatHistory(turns), question)
	standalone, err := e.chat.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("condense question: %w", err)
	}
	standalone = strings.TrimSpace(standalone)
	if standalone == "" {
		// A blank rewrite would retrieve nothing useful; keep the original.
		return question, nil
	}
	log.Debug().Str("standalone", standalone).Msg("condensed follow-up question")
	return standalone, nil
}

func (e *Engine) synthesize(ctx context.Context, question string, results []vectorstore.Result) (string, error) {
	var contextText strings.Builder
	for _, result := range results {
		contextText.WriteString(result.Content)
		contextText.WriteString("\n\n")
	}

	prompt := fmt.Sprintf(models.QAPromptTemplate, contextText.String(), question)
	answer, err := e.chat.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("synthesize answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// FormatHistory renders turns for the condense prompt, oldest first.
func FormatHistory(turns []models.Turn) string {
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf(models.HistoryTurnFormat, turn.Question, turn.Answer))
	}
	return b.String()
}
