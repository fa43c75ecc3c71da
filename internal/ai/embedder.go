package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	openaiembed "github.com/cloudwego/eino-ext/components/embedding/openai"

	"github.com/juanmh10/RAG-AWS/internal/config"
)

// ErrEmbeddingUnavailable marks a failed call to the embedding backend.
var ErrEmbeddingUnavailable = errors.New("ai: embedding backend unavailable")

// TextEmbedder embeds single texts through the OpenAI-compatible embeddings
// API. It satisfies rag.Embedder.
type TextEmbedder struct {
	inner *openaiembed.Embedder
	model string
}

func NewTextEmbedder(ctx context.Context, cfg config.AIConfig) (*TextEmbedder, error) {
	inner, err := openaiembed.NewEmbedder(ctx, &openaiembed.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		Model:   cfg.EmbedModel,
		BaseURL: cfg.BaseURL,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	return &TextEmbedder{inner: inner, model: cfg.EmbedModel}, nil
}

func (e *TextEmbedder) Model() string { return e.model }

func (e *TextEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vecs, err := e.inner.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", ErrEmbeddingUnavailable, len(vecs))
	}
	return vecs[0], nil
}
