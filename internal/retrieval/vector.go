package retrieval

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/copilot/internal/embedding"
	"github.com/hyperjump/copilot/internal/models"
	"github.com/hyperjump/copilot/internal/storage"
	"github.com/hyperjump/copilot/internal/vector"
)

// VectorRetriever embeds the query and searches the vector index built at ingestion.
type VectorRetriever struct {
	embedder  embedding.Embedder
	index     vector.VectorIndex
	store     storage.Storage
	relevance Relevance
	opts      options
}

// NewVectorRetriever returns a retriever over index. A nil relevance selects Euclidean.
func NewVectorRetriever(e embedding.Embedder, index vector.VectorIndex, store storage.Storage, relevance Relevance, opts ...Option) *VectorRetriever {
	if relevance == nil {
		relevance = Euclidean
	}
	return &VectorRetriever{
		embedder:  e,
		index:     index,
		store:     store,
		relevance: relevance,
		opts:      newOptions(opts),
	}
}

// Retrieve returns up to k passages by descending similarity.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string, k int) (models.RetrievalResult, error) {
	k = r.opts.clampK(k)
	if r.index.Size() == 0 {
		return nil, fmt.Errorf("%w: vector index is empty, run ingest first", ErrUnavailable)
	}

	qv, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", ErrUnavailable, err)
	}
	hits, err := r.index.Search(ctx, qv, k)
	if err != nil {
		return nil, fmt.Errorf("%w: vector search: %w", ErrUnavailable, err)
	}

	result := make(models.RetrievalResult, 0, len(hits))
	for _, hit := range hits {
		chunk, err := r.store.GetChunk(ctx, hit.ID)
		if errors.Is(err, storage.ErrNotFound) {
			r.opts.logger.Warn("indexed chunk missing from storage", zap.String("chunk_id", hit.ID))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: load chunk: %w", ErrUnavailable, err)
		}
		result = append(result, models.ScoredPassage{
			Passage: chunk.Passage(),
			Score:   r.relevance(hit.Score),
		})
	}

	if len(hits) > 0 && len(result) == 0 {
		return nil, fmt.Errorf("%w: vector index and storage out of sync, restart after ingest", ErrUnavailable)
	}

	r.opts.logger.Debug("vector retrieval",
		zap.Int("k", k),
		zap.Int("hits", len(result)),
	)
	return result, nil
}
