// Package embedding wraps the embedding capability with batching, proactive
// rate limiting and bounded retry, while preserving input order exactly.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"docchat/internal/config"
	"docchat/internal/models"
)

// Client is the narrow surface of the underlying embedding capability.
// langchaingo's embeddings.EmbedderImpl satisfies it.
type Client interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

const (
	defaultMaxBatchSize = 16
	defaultMaxAttempts  = 4
	defaultBaseDelay    = 500 * time.Millisecond

	// requestsPerSecond throttles calls to the capability ahead of its own
	// rate limiter, so the retry path is the exception, not the norm.
	requestsPerSecond = 5
)

// Gateway batches and retries embedding requests. The i-th output vector
// always corresponds to the i-th input text; on failure the whole input
// fails, never a partial prefix.
type Gateway struct {
	client       Client
	limiter      *rate.Limiter
	maxBatchSize int
	maxAttempts  int
	baseDelay    time.Duration
}

// Option configures the Gateway.
type Option func(*Gateway)

func WithMaxBatchSize(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxBatchSize = n
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.baseDelay = d
		}
	}
}

func NewGateway(client Client, opts ...Option) *Gateway {
	g := &Gateway{
		client:       client,
		limiter:      rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		maxBatchSize: defaultMaxBatchSize,
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewOpenAIClient builds an OpenAI-compatible embedder from config.
func NewOpenAIClient(cfg *config.LLMConfig) (Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}

// NewOllamaClient builds a local ollama embedder from config.
func NewOllamaClient(cfg *config.LLMConfig) (Client, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}

// EmbedTexts embeds the texts in order. Internally the input is cut into
// batches of at most maxBatchSize; each batch is retried with exponential
// backoff before the whole call fails with models.ErrEmbeddingUnavailable.
func (g *Gateway) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += g.maxBatchSize {
		end := start + g.maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		batchVectors, err := g.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(batchVectors) != len(batch) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts: %w",
				len(batchVectors), len(batch), models.ErrEmbeddingUnavailable)
		}
		vectors = append(vectors, batchVectors...)
	}
	return vectors, nil
}

// EmbedQuery embeds a single text with the same retry policy.
func (g *Gateway) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := g.withRetry(ctx, func() error {
		var err error
		vec, err = g.client.EmbedQuery(ctx, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

func (g *Gateway) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32
	err := g.withRetry(ctx, func() error {
		var err error
		vectors, err = g.client.EmbedDocuments(ctx, batch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return vectors, nil
}

func (g *Gateway) withRetry(ctx context.Context, call func() error) error {
	var lastErr error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %v: %w", err, models.ErrEmbeddingUnavailable)
		}

		lastErr = call()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			// Caller abandoned the request; not a capability failure to retry.
			return fmt.Errorf("embedding cancelled: %v: %w", lastErr, models.ErrEmbeddingUnavailable)
		}

		delay := g.baseDelay << attempt
		log.Debug().Err(lastErr).Int("attempt", attempt+1).Dur("backoff", delay).Msg("embedding call failed, retrying")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("embedding cancelled: %v: %w", ctx.Err(), models.ErrEmbeddingUnavailable)
		}
	}
	return fmt.Errorf("after %d attempts: %v: %w", g.maxAttempts, lastErr, models.ErrEmbeddingUnavailable)
}
