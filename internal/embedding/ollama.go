package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/hyperjump/copilot/pkg/utils"
)

// OllamaConfig configures the Ollama embedding provider.
type OllamaConfig struct {
	ServerURL  string
	Model      string
	Dimensions int
	BatchSize  int
}

// LangchainEmbedder adapts a langchaingo embedder to Embedder. Vectors are normalized to
// unit length so inner product equals cosine similarity.
type LangchainEmbedder struct {
	impl       embeddings.Embedder
	dimensions int
}

// NewOllamaEmbedder connects to an Ollama server through langchaingo.
func NewOllamaEmbedder(cfg OllamaConfig) (*LangchainEmbedder, error) {
	if cfg.Model == "" {
		return nil, errors.New("ollama embedding model is required")
	}
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.ServerURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
	}
	client, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 32
	}
	impl, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(batch),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}
	return WrapEmbedder(impl, cfg.Dimensions)
}

// WrapEmbedder adapts any langchaingo embedder producing vectors of the given width.
func WrapEmbedder(impl embeddings.Embedder, dimensions int) (*LangchainEmbedder, error) {
	if impl == nil {
		return nil, errors.New("embedder implementation is required")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive, got %d", dimensions)
	}
	return &LangchainEmbedder{impl: impl, dimensions: dimensions}, nil
}

// Embed embeds a single query text.
func (e *LangchainEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.impl.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return e.finish(v)
}

// EmbedBatch embeds corpus texts in provider-sized batches.
func (e *LangchainEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vs, err := e.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vs) != len(texts) {
		return nil, fmt.Errorf("embed documents: got %d vectors for %d texts", len(vs), len(texts))
	}
	out := make([][]float32, len(vs))
	for i, v := range vs {
		if out[i], err = e.finish(v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *LangchainEmbedder) finish(v []float32) ([]float32, error) {
	if len(v) != e.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(v), e.dimensions)
	}
	out := make([]float32, len(v))
	copy(out, v)
	utils.NormalizeL2(out)
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *LangchainEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client holds no resources.
func (e *LangchainEmbedder) Close() error {
	return nil
}
